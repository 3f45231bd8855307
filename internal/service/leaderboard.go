package service

import (
	"context"
	"fmt"

	"github.com/sakif/matchday-predictor/internal/model"
	"github.com/sakif/matchday-predictor/internal/repository"
)

const defaultLeaderboardSize = 10

// LeaderboardService ranks users by winning rate.
type LeaderboardService struct {
	users repository.UserRepository
	size  int
}

// NewLeaderboardService returns a service that ranks the top size users.
// size <= 0 means 10.
func NewLeaderboardService(users repository.UserRepository, size int) *LeaderboardService {
	if size <= 0 {
		size = defaultLeaderboardSize
	}
	return &LeaderboardService{users: users, size: size}
}

// Top returns the leaderboard, best first.
func (s *LeaderboardService) Top(ctx context.Context) ([]model.LeaderboardEntry, error) {
	entries, err := s.users.TopUsers(ctx, s.size)
	if err != nil {
		return nil, fmt.Errorf("service/leaderboard: %w", err)
	}
	if entries == nil {
		entries = []model.LeaderboardEntry{}
	}
	return entries, nil
}
