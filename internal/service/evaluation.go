package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/rs/xid"

	"github.com/sakif/matchday-predictor/internal/apperror"
	"github.com/sakif/matchday-predictor/internal/football"
	"github.com/sakif/matchday-predictor/internal/metrics"
	"github.com/sakif/matchday-predictor/internal/model"
	"github.com/sakif/matchday-predictor/internal/repository"
)

// EvaluationStatus says how far an evaluation got.
type EvaluationStatus string

const (
	// StatusNothingToEvaluate: the user has no uncounted predictions.
	StatusNothingToEvaluate EvaluationStatus = "nothing_to_evaluate"
	// StatusNoFinishedMatches: none of the predicted matches has finished
	// yet. Nothing was written; calling again later is safe.
	StatusNoFinishedMatches EvaluationStatus = "no_finished_matches"
	// StatusScored: finished matches were reconciled and the score updated.
	StatusScored EvaluationStatus = "scored"
)

// EvaluationResult summarises one Evaluate call. NewScore is only
// meaningful when Status is StatusScored.
type EvaluationResult struct {
	RunID     string           `json:"run_id"`
	Status    EvaluationStatus `json:"status"`
	Evaluated int              `json:"evaluated"`
	Correct   int              `json:"correct"`
	NewScore  int              `json:"new_score"`
}

// EvaluationService reconciles a user's open predictions against finished
// matches and credits their score.
type EvaluationService struct {
	predictions repository.PredictionRepository
	users       repository.UserRepository
	matches     MatchSource
	metrics     *metrics.Recorder
	logger      *slog.Logger
}

// NewEvaluationService creates an EvaluationService. rec may be nil.
func NewEvaluationService(
	predictions repository.PredictionRepository,
	users repository.UserRepository,
	matches MatchSource,
	rec *metrics.Recorder,
	logger *slog.Logger,
) *EvaluationService {
	return &EvaluationService{
		predictions: predictions,
		users:       users,
		matches:     matches,
		metrics:     rec,
		logger:      logger,
	}
}

// Evaluate scores every open prediction of userID whose match has finished.
//
// Each prediction is moved to counted with a compare-and-set, so a
// prediction is credited at most once even when evaluations for the same
// user run concurrently: the loser of the race gets a conflict and skips
// it. If a write fails midway, the points for predictions already moved
// are still credited before the error is returned. The remaining ones
// stay uncounted and are picked up by the next call.
func (s *EvaluationService) Evaluate(ctx context.Context, userID string) (*EvaluationResult, error) {
	res := &EvaluationResult{RunID: xid.New().String()}
	log := s.logger.With(slog.String("runID", res.RunID), slog.String("userID", userID))

	open, err := s.predictions.ListUncounted(ctx, userID)
	if err != nil {
		s.metrics.RecordEvaluation("error")
		return nil, fmt.Errorf("service/evaluation: loading open predictions: %w", err)
	}
	if len(open) == 0 {
		res.Status = StatusNothingToEvaluate
		s.metrics.RecordEvaluation(string(res.Status))
		return res, nil
	}

	finished := s.matches.FetchFinished(ctx, distinctMatchIDs(open))
	if len(finished) == 0 {
		res.Status = StatusNoFinishedMatches
		s.metrics.RecordEvaluation(string(res.Status))
		log.Info("no finished matches yet", slog.Int("open", len(open)))
		return res, nil
	}

	actual := make(map[string]model.Outcome, len(finished))
	for _, m := range finished {
		actual[strconv.FormatInt(m.ID, 10)] = football.OutcomeFromWinner(m.Score.Winner)
	}

	var writeErr error
	for _, p := range open {
		outcome, ok := actual[p.MatchID]
		if !ok {
			continue
		}
		err := s.predictions.MarkCounted(ctx, p.MatchID, userID, outcome)
		if errors.Is(err, apperror.ErrConflict) {
			log.Debug("prediction already counted", slog.String("matchID", p.MatchID))
			continue
		}
		if err != nil {
			writeErr = fmt.Errorf("service/evaluation: marking prediction %s counted: %w", p.MatchID, err)
			break
		}
		res.Evaluated++
		correct := p.Prediction == outcome
		if correct {
			res.Correct++
		}
		s.metrics.RecordScored(correct)
	}

	score, err := s.credit(ctx, userID, res.Correct)
	if err != nil {
		s.metrics.RecordEvaluation("error")
		log.Error("crediting score failed", slog.Int("correct", res.Correct), slog.Any("error", err))
		return nil, errors.Join(writeErr, err)
	}
	if writeErr != nil {
		s.metrics.RecordEvaluation("error")
		log.Error("evaluation aborted",
			slog.Int("evaluated", res.Evaluated),
			slog.Int("credited", res.Correct),
			slog.Any("error", writeErr),
		)
		return nil, writeErr
	}

	res.Status = StatusScored
	res.NewScore = score
	s.metrics.RecordEvaluation(string(res.Status))
	log.Info("evaluation finished",
		slog.Int("evaluated", res.Evaluated),
		slog.Int("correct", res.Correct),
		slog.Int("score", score),
	)
	return res, nil
}

// credit adds delta to the user's score and returns the new total. A zero
// delta reads the score instead of writing it.
func (s *EvaluationService) credit(ctx context.Context, userID string, delta int) (int, error) {
	if delta == 0 {
		user, err := s.users.GetByID(ctx, userID)
		if err != nil {
			return 0, fmt.Errorf("service/evaluation: reading score: %w", err)
		}
		return user.Score, nil
	}
	score, err := s.users.IncrementScore(ctx, userID, delta)
	if err != nil {
		return 0, fmt.Errorf("service/evaluation: adding %d to score: %w", delta, err)
	}
	return score, nil
}

func distinctMatchIDs(preds []model.Prediction) []string {
	seen := make(map[string]struct{}, len(preds))
	ids := make([]string, 0, len(preds))
	for _, p := range preds {
		if p.MatchID == "" {
			continue
		}
		if _, ok := seen[p.MatchID]; ok {
			continue
		}
		seen[p.MatchID] = struct{}{}
		ids = append(ids, p.MatchID)
	}
	return ids
}
