package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/matchday-predictor/internal/apperror"
	"github.com/sakif/matchday-predictor/internal/football"
	"github.com/sakif/matchday-predictor/internal/metrics"
	"github.com/sakif/matchday-predictor/internal/model"
	"github.com/sakif/matchday-predictor/internal/repository"
)

// MatchSource is the part of football.Source the services use. Both
// methods degrade to an empty list when the provider is unavailable.
type MatchSource interface {
	ListUpcoming(ctx context.Context) []model.Match
	FetchFinished(ctx context.Context, ids []string) []model.Match
}

// SubmitInput is a prediction as the client sends it. Team names, flags and
// the match date are display data and are stored as given.
type SubmitInput struct {
	MatchID      string
	HomeTeam     string
	AwayTeam     string
	HomeTeamFlag string
	AwayTeamFlag string
	MatchDate    string
	Prediction   string
	IsFinished   bool
}

// PredictionService handles submission and listing of predictions.
type PredictionService struct {
	predictions repository.PredictionRepository
	users       repository.UserRepository
	matches     MatchSource
	metrics     *metrics.Recorder
	logger      *slog.Logger
	now         func() time.Time
}

// NewPredictionService creates a PredictionService. rec may be nil.
func NewPredictionService(
	predictions repository.PredictionRepository,
	users repository.UserRepository,
	matches MatchSource,
	rec *metrics.Recorder,
	logger *slog.Logger,
) *PredictionService {
	return &PredictionService{
		predictions: predictions,
		users:       users,
		matches:     matches,
		metrics:     rec,
		logger:      logger,
		now:         time.Now,
	}
}

// Submit stores userID's prediction for a match.
//
// A user may change an open pick as often as they like; only the first
// submission for a match bumps prediction_counts. Once the pick has been
// counted it is frozen and Submit returns apperror.ErrConflict.
//
// prediction_counts is bumped before the record is inserted and taken back
// if the insert fails, so a stored pick is always already counted toward
// it and score can never overtake prediction_counts.
func (s *PredictionService) Submit(ctx context.Context, userID string, in SubmitInput) (*model.Prediction, error) {
	matchID := strings.TrimSpace(in.MatchID)
	if matchID == "" {
		return nil, apperror.ValidationFailed("match_id", "match_id is required")
	}
	outcome, err := model.ParseOutcome(in.Prediction)
	if err != nil {
		return nil, apperror.ValidationFailed("prediction", "prediction must be one of HOME, AWAY or DRAW")
	}

	existing, err := s.predictions.Get(ctx, matchID, userID)
	switch {
	case err == nil && existing.Counted:
		return nil, apperror.Conflict("prediction", matchID)
	case err != nil && !errors.Is(err, apperror.ErrNotFound):
		return nil, fmt.Errorf("service/prediction: loading prediction %s: %w", matchID, err)
	}

	p := &model.Prediction{
		MatchID:      matchID,
		UserID:       userID,
		HomeTeam:     in.HomeTeam,
		AwayTeam:     in.AwayTeam,
		HomeTeamFlag: in.HomeTeamFlag,
		AwayTeamFlag: in.AwayTeamFlag,
		MatchDate:    in.MatchDate,
		Prediction:   outcome,
		IsFinished:   in.IsFinished,
		CreatedAt:    s.now().UTC().Format(time.RFC3339),
	}

	replaced := existing != nil
	if replaced {
		p.CreatedAt = existing.CreatedAt
		err = s.replace(ctx, p)
	} else {
		replaced, err = s.create(ctx, p)
	}
	if err != nil {
		return nil, err
	}

	s.metrics.RecordSubmission()
	s.logger.Info("prediction submitted",
		slog.String("userID", userID),
		slog.String("matchID", matchID),
		slog.String("prediction", string(outcome)),
		slog.Bool("replaced", replaced),
	)
	return p, nil
}

// create counts and inserts a first pick. If another request inserted the
// same pick in the meantime, the count is taken back and the pick is
// replaced instead; replaced reports that case.
func (s *PredictionService) create(ctx context.Context, p *model.Prediction) (replaced bool, err error) {
	if _, err := s.users.IncrementPredictionCount(ctx, p.UserID, 1); err != nil {
		return false, fmt.Errorf("service/prediction: counting prediction for user %s: %w", p.UserID, err)
	}

	err = s.predictions.Create(ctx, p)
	if err == nil {
		return false, nil
	}
	s.uncount(ctx, p)
	if !errors.Is(err, apperror.ErrConflict) {
		return false, fmt.Errorf("service/prediction: saving prediction %s: %w", p.MatchID, err)
	}

	existing, err := s.predictions.Get(ctx, p.MatchID, p.UserID)
	if err != nil {
		return false, fmt.Errorf("service/prediction: loading prediction %s: %w", p.MatchID, err)
	}
	p.CreatedAt = existing.CreatedAt
	return true, s.replace(ctx, p)
}

// replace swaps an open pick. apperror.ErrConflict means an evaluation
// counted it after Submit looked.
func (s *PredictionService) replace(ctx context.Context, p *model.Prediction) error {
	err := s.predictions.ReplaceOpen(ctx, p)
	if errors.Is(err, apperror.ErrConflict) {
		return apperror.Conflict("prediction", p.MatchID)
	}
	if err != nil {
		return fmt.Errorf("service/prediction: replacing prediction %s: %w", p.MatchID, err)
	}
	return nil
}

// uncount reverts the increment made for a pick that was not inserted. If
// that fails too, prediction_counts stays one high, which keeps
// score <= prediction_counts intact.
func (s *PredictionService) uncount(ctx context.Context, p *model.Prediction) {
	if _, err := s.users.IncrementPredictionCount(ctx, p.UserID, -1); err != nil {
		s.logger.Error("reverting prediction count failed",
			slog.String("userID", p.UserID),
			slog.String("matchID", p.MatchID),
			slog.Any("error", err),
		)
	}
}

// ListUserPredictions returns one page of the user's predictions. Pass the
// previous page's NextPageToken to continue.
func (s *PredictionService) ListUserPredictions(ctx context.Context, userID, pageToken string) (*repository.PredictionPage, error) {
	page, err := s.predictions.ListByUser(ctx, userID, pageToken)
	if err != nil {
		return nil, fmt.Errorf("service/prediction: listing predictions for user %s: %w", userID, err)
	}
	return page, nil
}

// UpcomingMatches returns the upcoming matches, each marked with the user's
// open pick. If the picks cannot be loaded the matches are still returned,
// marked as unpredicted.
func (s *PredictionService) UpcomingMatches(ctx context.Context, userID string) []model.Match {
	open, err := s.predictions.ListUncounted(ctx, userID)
	if err != nil {
		s.logger.Warn("loading open predictions failed",
			slog.String("userID", userID),
			slog.Any("error", err),
		)
		open = nil
	}

	return football.Annotate(s.matches.ListUpcoming(ctx), open, s.logger)
}
