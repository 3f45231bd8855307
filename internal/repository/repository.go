// Package repository declares the persistence interfaces the services
// depend on. Implementations live in subpackages (keyvalue).
package repository

import (
	"context"

	"github.com/sakif/matchday-predictor/internal/model"
)

// UserRepository stores users and their running score.
type UserRepository interface {
	Create(ctx context.Context, username, hashedPin string) (*model.User, error)
	// FindByUsername is case-insensitive. It returns every match rather than
	// failing on duplicates; callers decide what more than one means.
	FindByUsername(ctx context.Context, username string) ([]model.User, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
	Update(ctx context.Context, id string, attrs map[string]any) error
	IncrementPredictionCount(ctx context.Context, id string, delta int) (int, error)
	IncrementScore(ctx context.Context, id string, delta int) (int, error)
	TopUsers(ctx context.Context, limit int) ([]model.LeaderboardEntry, error)
}

// PredictionRepository stores predictions keyed by (match, user).
type PredictionRepository interface {
	// Create inserts a new pick. It returns apperror.ErrConflict if one
	// already exists for the same (match, user).
	Create(ctx context.Context, p *model.Prediction) error
	// ReplaceOpen changes an existing pick only while it is still uncounted.
	// It returns apperror.ErrConflict once the pick has been counted.
	ReplaceOpen(ctx context.Context, p *model.Prediction) error
	Get(ctx context.Context, matchID, userID string) (*model.Prediction, error)
	Update(ctx context.Context, matchID, userID string, attrs map[string]any) error
	// MarkCounted flips counted from false to true and records the actual
	// outcome. It returns apperror.ErrConflict if the prediction was already
	// counted, so at most one caller ever gets to credit it.
	MarkCounted(ctx context.Context, matchID, userID string, actual model.Outcome) error
	ListByUser(ctx context.Context, userID, pageToken string) (*PredictionPage, error)
	ListUncounted(ctx context.Context, userID string) ([]model.Prediction, error)
}

// PredictionPage is one page of a user's predictions. NextPageToken is
// empty once there is nothing left.
type PredictionPage struct {
	Items         []model.Prediction `json:"items"`
	NextPageToken string             `json:"lastEvaluatedKey,omitempty"`
}
