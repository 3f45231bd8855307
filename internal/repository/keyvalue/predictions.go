package keyvalue

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sakif/matchday-predictor/internal/apperror"
	"github.com/sakif/matchday-predictor/internal/model"
	"github.com/sakif/matchday-predictor/internal/repository"
	"github.com/sakif/matchday-predictor/internal/store"
)

// compile-time check that *PredictionStore implements repository.PredictionRepository
var _ repository.PredictionRepository = (*PredictionStore)(nil)

// PredictionStore keeps predictions in a table partitioned by match_id and
// sorted by user_id. Per-user reads are scans filtered on user_id.
type PredictionStore struct {
	table  store.Table
	guard  repository.Guard
	logger *slog.Logger
}

func NewPredictionStore(table store.Table, logger *slog.Logger, timeout time.Duration) *PredictionStore {
	return &PredictionStore{
		table:  table,
		guard:  repository.Guard{Logger: logger, Timeout: timeout},
		logger: logger,
	}
}

// Create inserts p. A pick that already exists for the same (match, user)
// is left untouched and apperror.ErrConflict is returned.
func (s *PredictionStore) Create(ctx context.Context, p *model.Prediction) error {
	return s.guard.Run(ctx, "CreatePrediction", func(ctx context.Context) error {
		item, err := store.Encode(p)
		if err != nil {
			return err
		}
		err = s.table.Insert(ctx, item)
		if errors.Is(err, store.ErrConditionFailed) {
			return apperror.Conflict("prediction", p.MatchID+"/"+p.UserID)
		}
		return err
	})
}

// ReplaceOpen overwrites the pick and its display fields in one write
// guarded on counted == false. counted, actual_outcome and created_at are
// never touched, so an evaluation that wins the race keeps its result.
func (s *PredictionStore) ReplaceOpen(ctx context.Context, p *model.Prediction) error {
	id := p.MatchID + "/" + p.UserID
	return s.guard.Run(ctx, "UpdatePrediction", func(ctx context.Context) error {
		err := s.table.Update(ctx, predictionKey(p.MatchID, p.UserID),
			map[string]any{
				attrPrediction:   string(p.Prediction),
				attrHomeTeam:     p.HomeTeam,
				attrAwayTeam:     p.AwayTeam,
				attrHomeTeamFlag: p.HomeTeamFlag,
				attrAwayTeamFlag: p.AwayTeamFlag,
				attrMatchDate:    p.MatchDate,
				attrIsFinished:   p.IsFinished,
			},
			store.Filter{store.Eq(attrCounted, false)},
		)
		if errors.Is(err, store.ErrConditionFailed) {
			return apperror.Conflict("prediction", id)
		}
		return notFoundAs(err, "prediction", id)
	})
}

func (s *PredictionStore) Get(ctx context.Context, matchID, userID string) (*model.Prediction, error) {
	var p *model.Prediction
	err := s.guard.Run(ctx, "GetPrediction", func(ctx context.Context) error {
		item, err := s.table.Get(ctx, predictionKey(matchID, userID))
		if err != nil {
			return notFoundAs(err, "prediction", matchID+"/"+userID)
		}
		p, err = predictionFromItem(item)
		return err
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PredictionStore) Update(ctx context.Context, matchID, userID string, attrs map[string]any) error {
	return s.guard.Run(ctx, "UpdatePrediction", func(ctx context.Context) error {
		err := s.table.Update(ctx, predictionKey(matchID, userID), attrs, nil)
		return notFoundAs(err, "prediction", matchID+"/"+userID)
	})
}

// MarkCounted is a compare-and-set on counted == false.
func (s *PredictionStore) MarkCounted(ctx context.Context, matchID, userID string, actual model.Outcome) error {
	return s.guard.Run(ctx, "UpdatePrediction", func(ctx context.Context) error {
		err := s.table.Update(ctx, predictionKey(matchID, userID),
			map[string]any{
				attrCounted:       true,
				attrActualOutcome: string(actual),
				attrIsFinished:    true,
			},
			store.Filter{store.Eq(attrCounted, false)},
		)
		if errors.Is(err, store.ErrConditionFailed) {
			return apperror.Conflict("prediction", matchID+"/"+userID)
		}
		return notFoundAs(err, "prediction", matchID+"/"+userID)
	})
}

// ListByUser returns one logical page of the user's predictions. The token
// is the opaque cursor from the previous page; empty starts from the top.
func (s *PredictionStore) ListByUser(ctx context.Context, userID, pageToken string) (*repository.PredictionPage, error) {
	start, err := store.DecodeCursor(pageToken)
	if err != nil {
		return nil, apperror.ValidationFailed("lastEvaluatedKey", "invalid page token")
	}

	page := &repository.PredictionPage{Items: []model.Prediction{}}
	err = s.guard.Run(ctx, "GetUserPredictions", func(ctx context.Context) error {
		items, next, err := store.ScanPartition(ctx, s.table,
			store.Filter{store.Eq(attrUserID, userID)},
			start, attrUserID, userID,
		)
		if err != nil {
			return err
		}
		for _, item := range items {
			p, err := predictionFromItem(item)
			if err != nil {
				return err
			}
			page.Items = append(page.Items, *p)
		}
		page.NextPageToken = store.EncodeCursor(next)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// ListUncounted drains every page, so the result covers the whole table
// no matter how the backend splits it.
func (s *PredictionStore) ListUncounted(ctx context.Context, userID string) ([]model.Prediction, error) {
	var out []model.Prediction
	err := s.guard.Run(ctx, "GetUncountedPredictions", func(ctx context.Context) error {
		items, err := store.ScanAll(ctx, s.table, store.Filter{
			store.Eq(attrUserID, userID),
			store.Eq(attrCounted, false),
		})
		if err != nil {
			return err
		}
		out = make([]model.Prediction, 0, len(items))
		for _, item := range items {
			p, err := predictionFromItem(item)
			if err != nil {
				return err
			}
			out = append(out, *p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func predictionKey(matchID, userID string) store.Key {
	return store.Key{attrMatchID: matchID, attrUserID: userID}
}

// predictionFromItem tolerates numeric match ids written by older clients.
func predictionFromItem(item store.Item) (*model.Prediction, error) {
	item[attrMatchID] = item.String(attrMatchID)
	var p model.Prediction
	if err := store.Decode(item, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
