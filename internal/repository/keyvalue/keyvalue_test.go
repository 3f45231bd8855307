package keyvalue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/matchday-predictor/internal/apperror"
	"github.com/sakif/matchday-predictor/internal/model"
	"github.com/sakif/matchday-predictor/internal/store"
	"github.com/sakif/matchday-predictor/internal/store/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func newTestUserStore(t *testing.T, pageSize int) (*UserStore, *memory.Table) {
	t.Helper()
	tbl := memory.New(UsersSchema("users"), memory.WithPageSize(pageSize))
	return NewUserStore(tbl, testLogger(), time.Second), tbl
}

func newTestPredictionStore(t *testing.T, pageSize int) (*PredictionStore, *memory.Table) {
	t.Helper()
	tbl := memory.New(PredictionsSchema("predictions"), memory.WithPageSize(pageSize))
	return NewPredictionStore(tbl, testLogger(), time.Second), tbl
}

func putUser(t *testing.T, tbl store.Table, id, username string, score, counts int) {
	t.Helper()
	err := tbl.Put(context.Background(), userItem(&model.User{
		ID: id, Username: username, Pin: "hash", Score: score, PredictionCounts: counts,
	}))
	require.NoError(t, err)
}

func newPrediction(matchID, userID string, outcome model.Outcome) *model.Prediction {
	return &model.Prediction{
		MatchID:    matchID,
		UserID:     userID,
		HomeTeam:   "Arsenal FC",
		AwayTeam:   "Chelsea FC",
		MatchDate:  "2024-08-17T14:00:00Z",
		Prediction: outcome,
	}
}

// failingTable fails every call with err.
type failingTable struct {
	store.Table
	err error
}

func (f failingTable) Scan(context.Context, store.ScanInput) (*store.ScanOutput, error) {
	return nil, f.err
}

func (f failingTable) Update(context.Context, store.Key, map[string]any, store.Filter) error {
	return f.err
}

// =========================================================================
// USERS
// =========================================================================

func TestUserCreate(t *testing.T) {
	users, _ := newTestUserStore(t, 10)
	ctx := context.Background()

	u, err := users.Create(ctx, "  Alice ", "hashed")
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "alice", u.Username)
	assert.Zero(t, u.Score)
	assert.Zero(t, u.PredictionCounts)

	got, err := users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "hashed", got.Pin)
	assert.Equal(t, "alice", got.Username)
}

func TestUserFindByUsernameIsCaseInsensitive(t *testing.T) {
	users, tbl := newTestUserStore(t, 1)
	putUser(t, tbl, "1", "bob", 0, 0)
	putUser(t, tbl, "2", "carol", 0, 0)
	putUser(t, tbl, "3", "dave", 0, 0)

	found, err := users.FindByUsername(context.Background(), "CAROL")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "2", found[0].ID)

	none, err := users.FindByUsername(context.Background(), "erin")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestUserGetByIDNotFound(t *testing.T) {
	users, _ := newTestUserStore(t, 10)
	_, err := users.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.NotErrorIs(t, err, apperror.ErrStore)
}

func TestUserIncrements(t *testing.T) {
	users, tbl := newTestUserStore(t, 10)
	putUser(t, tbl, "u1", "alice", 1, 2)
	ctx := context.Background()

	counts, err := users.IncrementPredictionCount(ctx, "u1", 1)
	require.NoError(t, err)
	assert.Equal(t, 3, counts)

	score, err := users.IncrementScore(ctx, "u1", 2)
	require.NoError(t, err)
	assert.Equal(t, 3, score)

	_, err = users.IncrementScore(ctx, "ghost", 1)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestUserUpdate(t *testing.T) {
	users, tbl := newTestUserStore(t, 10)
	putUser(t, tbl, "u1", "alice", 0, 0)
	ctx := context.Background()

	require.NoError(t, users.Update(ctx, "u1", map[string]any{"score": 4, "prediction_counts": 5}))
	u, err := users.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 4, u.Score)
	assert.Equal(t, 5, u.PredictionCounts)

	assert.ErrorIs(t, users.Update(ctx, "ghost", map[string]any{"score": 1}), apperror.ErrNotFound)
}

func TestUserStoreFailuresAreTagged(t *testing.T) {
	boom := errors.New("connection reset")
	users := NewUserStore(failingTable{err: boom}, testLogger(), time.Second)

	_, err := users.FindByUsername(context.Background(), "alice")
	assert.ErrorIs(t, err, apperror.ErrStore)
	assert.ErrorIs(t, err, boom)

	_, err = users.TopUsers(context.Background(), 5)
	assert.ErrorIs(t, err, apperror.ErrStore)
}

// =========================================================================
// LEADERBOARD
// =========================================================================

func TestTopUsersOrdering(t *testing.T) {
	users, tbl := newTestUserStore(t, 2)
	putUser(t, tbl, "1", "zed", 1, 2) // 0.5
	putUser(t, tbl, "2", "amy", 1, 2) // 0.5, wins the tie
	putUser(t, tbl, "3", "bea", 3, 3) // 1.0
	putUser(t, tbl, "4", "cal", 0, 0) // 0
	putUser(t, tbl, "5", "dan", 2, 3) // 0.67

	top, err := users.TopUsers(context.Background(), 3)
	require.NoError(t, err)

	assert.Equal(t, []model.LeaderboardEntry{
		{WinningRate: 1, Username: "bea"},
		{WinningRate: 0.67, Username: "dan"},
		{WinningRate: 0.5, Username: "amy"},
	}, top)
}

func TestTopUsersDefaultLimit(t *testing.T) {
	users, tbl := newTestUserStore(t, 4)
	for i := 0; i < 15; i++ {
		putUser(t, tbl, fmt.Sprintf("id-%02d", i), fmt.Sprintf("user%02d", i), i%3, 3)
	}

	top, err := users.TopUsers(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, top, 10)

	small, err := users.TopUsers(context.Background(), 50)
	require.NoError(t, err)
	assert.Len(t, small, 15)
}

func TestTopUsersMatchesFullSort(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	users, tbl := newTestUserStore(t, 7)

	var all []model.LeaderboardEntry
	for i := 0; i < 200; i++ {
		counts := rng.Intn(20)
		score := 0
		if counts > 0 {
			score = rng.Intn(counts + 1)
		}
		name := fmt.Sprintf("user-%03d", rng.Intn(1000))
		putUser(t, tbl, fmt.Sprintf("id-%03d", i), name, score, counts)
		all = append(all, model.LeaderboardEntry{WinningRate: model.WinningRate(score, counts), Username: name})
	}
	sort.SliceStable(all, func(i, j int) bool { return ranksAbove(all[i], all[j]) })

	for _, limit := range []int{1, 5, 10, 37, 200, 500} {
		top, err := users.TopUsers(context.Background(), limit)
		require.NoError(t, err)

		want := all
		if limit < len(all) {
			want = all[:limit]
		}
		assert.Equal(t, want, top, "limit %d", limit)
		for _, e := range top {
			assert.GreaterOrEqual(t, e.WinningRate, 0.0)
			assert.LessOrEqual(t, e.WinningRate, 1.0)
		}
	}
}

// =========================================================================
// PREDICTIONS
// =========================================================================

func TestPredictionCreateAndGet(t *testing.T) {
	preds, _ := newTestPredictionStore(t, 10)
	ctx := context.Background()

	require.NoError(t, preds.Create(ctx, newPrediction("123", "u1", model.OutcomeHome)))

	got, err := preds.Get(ctx, "123", "u1")
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeHome, got.Prediction)
	assert.False(t, got.Counted)
	assert.Nil(t, got.ActualOutcome)

	_, err = preds.Get(ctx, "123", "u2")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestPredictionNumericMatchIDIsCoerced(t *testing.T) {
	preds, tbl := newTestPredictionStore(t, 10)
	require.NoError(t, tbl.Put(context.Background(), store.Item{
		"match_id": "456", "user_id": "u1", "prediction": "DRAW", "counted": false,
	}))
	// Simulate a legacy record that stored the id as a number.
	item, err := tbl.Get(context.Background(), store.Key{"match_id": "456", "user_id": "u1"})
	require.NoError(t, err)
	item["match_id"] = float64(456)

	p, err := predictionFromItem(item)
	require.NoError(t, err)
	assert.Equal(t, "456", p.MatchID)

	item["match_id"] = float64(1000000)
	p, err = predictionFromItem(item)
	require.NoError(t, err)
	assert.Equal(t, "1000000", p.MatchID)
}

func TestPredictionCreateDoesNotOverwrite(t *testing.T) {
	preds, _ := newTestPredictionStore(t, 10)
	ctx := context.Background()
	require.NoError(t, preds.Create(ctx, newPrediction("123", "u1", model.OutcomeHome)))
	require.NoError(t, preds.MarkCounted(ctx, "123", "u1", model.OutcomeHome))

	err := preds.Create(ctx, newPrediction("123", "u1", model.OutcomeAway))
	assert.ErrorIs(t, err, apperror.ErrConflict)

	got, err := preds.Get(ctx, "123", "u1")
	require.NoError(t, err)
	assert.True(t, got.Counted)
	assert.Equal(t, model.OutcomeHome, got.Prediction)
}

func TestReplaceOpen(t *testing.T) {
	preds, _ := newTestPredictionStore(t, 10)
	ctx := context.Background()
	orig := newPrediction("123", "u1", model.OutcomeHome)
	orig.CreatedAt = "2024-08-10T12:00:00Z"
	require.NoError(t, preds.Create(ctx, orig))

	change := newPrediction("123", "u1", model.OutcomeDraw)
	change.HomeTeamFlag = "https://crests/57.png"
	change.CreatedAt = "ignored"
	require.NoError(t, preds.ReplaceOpen(ctx, change))

	got, err := preds.Get(ctx, "123", "u1")
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeDraw, got.Prediction)
	assert.Equal(t, "https://crests/57.png", got.HomeTeamFlag)
	assert.Equal(t, "2024-08-10T12:00:00Z", got.CreatedAt)
	assert.False(t, got.Counted)

	require.NoError(t, preds.MarkCounted(ctx, "123", "u1", model.OutcomeDraw))
	err = preds.ReplaceOpen(ctx, newPrediction("123", "u1", model.OutcomeAway))
	assert.ErrorIs(t, err, apperror.ErrConflict)

	got, err = preds.Get(ctx, "123", "u1")
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeDraw, got.Prediction)
	require.NotNil(t, got.ActualOutcome)
	assert.Equal(t, model.OutcomeDraw, *got.ActualOutcome)

	err = preds.ReplaceOpen(ctx, newPrediction("999", "u1", model.OutcomeAway))
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestMarkCountedIsCompareAndSet(t *testing.T) {
	preds, _ := newTestPredictionStore(t, 10)
	ctx := context.Background()
	require.NoError(t, preds.Create(ctx, newPrediction("123", "u1", model.OutcomeHome)))

	require.NoError(t, preds.MarkCounted(ctx, "123", "u1", model.OutcomeHome))

	err := preds.MarkCounted(ctx, "123", "u1", model.OutcomeAway)
	assert.ErrorIs(t, err, apperror.ErrConflict)

	got, err := preds.Get(ctx, "123", "u1")
	require.NoError(t, err)
	assert.True(t, got.Counted)
	assert.True(t, got.IsFinished)
	require.NotNil(t, got.ActualOutcome)
	assert.Equal(t, model.OutcomeHome, *got.ActualOutcome, "second write must not overwrite the outcome")

	assert.ErrorIs(t, preds.MarkCounted(ctx, "999", "u1", model.OutcomeHome), apperror.ErrNotFound)
}

func TestPredictionUpdate(t *testing.T) {
	preds, _ := newTestPredictionStore(t, 10)
	ctx := context.Background()
	require.NoError(t, preds.Create(ctx, newPrediction("1", "u1", model.OutcomeHome)))

	require.NoError(t, preds.Update(ctx, "1", "u1", map[string]any{"prediction": "AWAY"}))
	got, err := preds.Get(ctx, "1", "u1")
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeAway, got.Prediction)
}

func TestListUncountedFlattensPages(t *testing.T) {
	preds, _ := newTestPredictionStore(t, 2)
	ctx := context.Background()
	for i := 1; i <= 7; i++ {
		require.NoError(t, preds.Create(ctx, newPrediction(fmt.Sprint(i), "u1", model.OutcomeDraw)))
		require.NoError(t, preds.Create(ctx, newPrediction(fmt.Sprint(i), "u2", model.OutcomeDraw)))
	}
	require.NoError(t, preds.MarkCounted(ctx, "3", "u1", model.OutcomeDraw))

	got, err := preds.ListUncounted(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, got, 6)
	for _, p := range got {
		assert.Equal(t, "u1", p.UserID)
		assert.False(t, p.Counted)
	}
}

func TestListByUserPagesThroughForeignCursors(t *testing.T) {
	preds, _ := newTestPredictionStore(t, 3)
	ctx := context.Background()
	for i := 1; i <= 6; i++ {
		require.NoError(t, preds.Create(ctx, newPrediction(fmt.Sprint(i), "other", model.OutcomeHome)))
	}
	require.NoError(t, preds.Create(ctx, newPrediction("2", "me", model.OutcomeAway)))
	require.NoError(t, preds.Create(ctx, newPrediction("5", "me", model.OutcomeDraw)))

	var seen []string
	token := ""
	for pages := 0; pages < 10; pages++ {
		page, err := preds.ListByUser(ctx, "me", token)
		require.NoError(t, err)
		for _, p := range page.Items {
			assert.Equal(t, "me", p.UserID)
			seen = append(seen, p.MatchID)
		}
		if page.NextPageToken == "" {
			break
		}
		key, err := store.DecodeCursor(page.NextPageToken)
		require.NoError(t, err)
		assert.Equal(t, "me", key["user_id"], "cursor must belong to the caller")
		token = page.NextPageToken
	}

	assert.Equal(t, []string{"2", "5"}, seen)
}

func TestListByUserRejectsBadToken(t *testing.T) {
	preds, _ := newTestPredictionStore(t, 10)
	_, err := preds.ListByUser(context.Background(), "me", "%%%not-a-token")
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestMarkCountedStoreFailure(t *testing.T) {
	boom := errors.New("throughput exceeded")
	preds := NewPredictionStore(failingTable{err: boom}, testLogger(), time.Second)

	err := preds.MarkCounted(context.Background(), "1", "u1", model.OutcomeHome)
	assert.ErrorIs(t, err, apperror.ErrStore)
	assert.NotErrorIs(t, err, apperror.ErrConflict)
}
