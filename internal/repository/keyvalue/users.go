package keyvalue

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sakif/matchday-predictor/internal/apperror"
	"github.com/sakif/matchday-predictor/internal/model"
	"github.com/sakif/matchday-predictor/internal/repository"
	"github.com/sakif/matchday-predictor/internal/store"
)

const defaultLeaderboardSize = 10

// compile-time check that *UserStore implements repository.UserRepository
var _ repository.UserRepository = (*UserStore)(nil)

// UserStore keeps users in a table keyed by user_id.
type UserStore struct {
	table  store.Table
	guard  repository.Guard
	logger *slog.Logger
}

// NewUserStore wraps table. Every call runs under timeout.
func NewUserStore(table store.Table, logger *slog.Logger, timeout time.Duration) *UserStore {
	return &UserStore{
		table:  table,
		guard:  repository.Guard{Logger: logger, Timeout: timeout},
		logger: logger,
	}
}

// Create stores a new user with a fresh UUID and zeroed counters.
// The username is lower-cased before it is stored.
func (s *UserStore) Create(ctx context.Context, username, hashedPin string) (*model.User, error) {
	user := &model.User{
		ID:       uuid.NewString(),
		Username: strings.ToLower(strings.TrimSpace(username)),
		Pin:      hashedPin,
	}
	err := s.guard.Run(ctx, "CreateUser", func(ctx context.Context) error {
		return s.table.Put(ctx, userItem(user))
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserStore) FindByUsername(ctx context.Context, username string) ([]model.User, error) {
	var users []model.User
	err := s.guard.Run(ctx, "GetUserByUsername", func(ctx context.Context) error {
		items, err := store.ScanAll(ctx, s.table, store.Filter{
			store.Eq(attrUsername, strings.ToLower(strings.TrimSpace(username))),
		})
		if err != nil {
			return err
		}
		users = make([]model.User, 0, len(items))
		for _, item := range items {
			users = append(users, userFromItem(item))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

// GetByID returns apperror.ErrNotFound when the user does not exist.
func (s *UserStore) GetByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := s.guard.Run(ctx, "GetUserById", func(ctx context.Context) error {
		item, err := s.table.Get(ctx, store.Key{attrUserID: id})
		if err != nil {
			return notFoundAs(err, "user", id)
		}
		user = userFromItem(item)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *UserStore) Update(ctx context.Context, id string, attrs map[string]any) error {
	return s.guard.Run(ctx, "UpdateUser", func(ctx context.Context) error {
		return notFoundAs(s.table.Update(ctx, store.Key{attrUserID: id}, attrs, nil), "user", id)
	})
}

func (s *UserStore) IncrementPredictionCount(ctx context.Context, id string, delta int) (int, error) {
	return s.increment(ctx, "UpdateUser", id, attrPredictionCounts, delta)
}

// IncrementScore adds delta to the user's score and returns the new score.
func (s *UserStore) IncrementScore(ctx context.Context, id string, delta int) (int, error) {
	return s.increment(ctx, "UpdateUserScore", id, attrScore, delta)
}

func (s *UserStore) increment(ctx context.Context, op, id, attr string, delta int) (int, error) {
	var next int
	err := s.guard.Run(ctx, op, func(ctx context.Context) error {
		v, err := s.table.Increment(ctx, store.Key{attrUserID: id}, attr, delta)
		if err != nil {
			return notFoundAs(err, "user", id)
		}
		next = v
		return nil
	})
	return next, err
}

// TopUsers walks every page of the users table and keeps the best limit
// entries in a bounded heap. limit <= 0 means the default of 10.
func (s *UserStore) TopUsers(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = defaultLeaderboardSize
	}
	top := newTopK(limit)

	err := s.guard.Run(ctx, "GetTopUsers", func(ctx context.Context) error {
		var start store.Key
		for {
			out, err := s.table.Scan(ctx, store.ScanInput{StartKey: start})
			if err != nil {
				return err
			}
			for _, item := range out.Items {
				u := userFromItem(item)
				top.Offer(model.LeaderboardEntry{WinningRate: u.WinningRate(), Username: u.Username})
			}
			if out.LastKey == nil {
				return nil
			}
			start = out.LastKey
		}
	})
	if err != nil {
		return nil, err
	}
	return top.Sorted(), nil
}

func userItem(u *model.User) store.Item {
	return store.Item{
		attrUserID:           u.ID,
		attrUsername:         u.Username,
		attrPin:              u.Pin,
		attrPredictionCounts: u.PredictionCounts,
		attrScore:            u.Score,
	}
}

func userFromItem(item store.Item) model.User {
	return model.User{
		ID:               item.String(attrUserID),
		Username:         item.String(attrUsername),
		Pin:              item.String(attrPin),
		PredictionCounts: item.Int(attrPredictionCounts),
		Score:            item.Int(attrScore),
	}
}

// notFoundAs converts store.ErrNotFound into the domain error; other errors
// are returned as-is for the guard to tag.
func notFoundAs(err error, resource, id string) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperror.NotFound(resource, id)
	}
	return err
}
