package service

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sakif/matchday-predictor/internal/apperror"
	"github.com/sakif/matchday-predictor/internal/model"
	"github.com/sakif/matchday-predictor/internal/repository"
	"github.com/sakif/matchday-predictor/internal/repository/keyvalue"
	"github.com/sakif/matchday-predictor/internal/store/memory"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// testStores are the real key-value repositories over small-page memory
// tables, so pagination and compare-and-set behave as in production.
type testStores struct {
	users       *keyvalue.UserStore
	predictions *keyvalue.PredictionStore
}

func newTestStores(t *testing.T) testStores {
	t.Helper()
	users := memory.New(keyvalue.UsersSchema("users"), memory.WithPageSize(2))
	preds := memory.New(keyvalue.PredictionsSchema("predictions"), memory.WithPageSize(2))
	return testStores{
		users:       keyvalue.NewUserStore(users, testLogger(), time.Second),
		predictions: keyvalue.NewPredictionStore(preds, testLogger(), time.Second),
	}
}

func (s testStores) createUser(t *testing.T, name string) *model.User {
	t.Helper()
	u, err := s.users.Create(context.Background(), name, "hash")
	require.NoError(t, err)
	return u
}

// fakeSource serves canned matches. FetchFinished only returns matches
// whose id was asked for, like the real provider's ids filter.
type fakeSource struct {
	mu            sync.Mutex
	upcoming      []model.Match
	finished      []model.Match
	finishedCalls [][]string
}

func (f *fakeSource) ListUpcoming(context.Context) []model.Match {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Match, len(f.upcoming))
	copy(out, f.upcoming)
	return out
}

func (f *fakeSource) FetchFinished(_ context.Context, ids []string) []model.Match {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finishedCalls = append(f.finishedCalls, ids)

	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	out := []model.Match{}
	for _, m := range f.finished {
		if want[strconv.FormatInt(m.ID, 10)] {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeSource) finish(id int64, winner *string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished = append(f.finished, model.Match{
		ID:     id,
		Status: model.MatchStatusFinished,
		Score:  model.MatchScore{Winner: winner},
	})
}

func winner(w string) *string { return &w }

// flakyPredictions lets the first okWrites MarkCounted calls through and
// fails every later one with err.
type flakyPredictions struct {
	repository.PredictionRepository
	okWrites int
	writes   int
	err      error
}

func (f *flakyPredictions) MarkCounted(ctx context.Context, matchID, userID string, actual model.Outcome) error {
	f.writes++
	if f.writes > f.okWrites {
		return f.err
	}
	return f.PredictionRepository.MarkCounted(ctx, matchID, userID, actual)
}

// failingUsers fails the selected UserRepository calls.
type failingUsers struct {
	repository.UserRepository
	findErr      error
	incrementErr error
}

func (f failingUsers) FindByUsername(ctx context.Context, username string) ([]model.User, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.UserRepository.FindByUsername(ctx, username)
}

func (f failingUsers) IncrementScore(ctx context.Context, id string, delta int) (int, error) {
	if f.incrementErr != nil {
		return 0, f.incrementErr
	}
	return f.UserRepository.IncrementScore(ctx, id, delta)
}

// failingPredictions fails ListUncounted with err.
type failingPredictions struct {
	repository.PredictionRepository
	err error
}

func (f failingPredictions) ListUncounted(context.Context, string) ([]model.Prediction, error) {
	return nil, f.err
}

// racingPredictions runs afterGet once, right after the first Get returns.
// It stands in for a request that lands between Submit's read and write.
type racingPredictions struct {
	repository.PredictionRepository
	afterGet func()
}

func (r *racingPredictions) Get(ctx context.Context, matchID, userID string) (*model.Prediction, error) {
	p, err := r.PredictionRepository.Get(ctx, matchID, userID)
	if r.afterGet != nil {
		hook := r.afterGet
		r.afterGet = nil
		hook()
	}
	return p, err
}

// staleGetPredictions reports the first Get as not found, as if another
// request inserted the pick just after this one looked.
type staleGetPredictions struct {
	repository.PredictionRepository
	stale bool
}

func (s *staleGetPredictions) Get(ctx context.Context, matchID, userID string) (*model.Prediction, error) {
	if !s.stale {
		s.stale = true
		return nil, apperror.NotFound("prediction", matchID+"/"+userID)
	}
	return s.PredictionRepository.Get(ctx, matchID, userID)
}

// failCreateOnce fails the first Create with err.
type failCreateOnce struct {
	repository.PredictionRepository
	err    error
	failed bool
}

func (f *failCreateOnce) Create(ctx context.Context, p *model.Prediction) error {
	if !f.failed {
		f.failed = true
		return f.err
	}
	return f.PredictionRepository.Create(ctx, p)
}

// failCountOnce fails the first positive IncrementPredictionCount with err.
type failCountOnce struct {
	repository.UserRepository
	err    error
	failed bool
}

func (f *failCountOnce) IncrementPredictionCount(ctx context.Context, id string, delta int) (int, error) {
	if delta > 0 && !f.failed {
		f.failed = true
		return 0, f.err
	}
	return f.UserRepository.IncrementPredictionCount(ctx, id, delta)
}

// requireTally asserts the user's score and prediction_counts.
func (s testStores) requireTally(t *testing.T, userID string, score, counts int) {
	t.Helper()
	u, err := s.users.GetByID(context.Background(), userID)
	require.NoError(t, err)
	require.Equal(t, score, u.Score, "score")
	require.Equal(t, counts, u.PredictionCounts, "prediction_counts")
	require.LessOrEqual(t, u.Score, u.PredictionCounts)
}
