package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/matchday-predictor/internal/apperror"
	"github.com/sakif/matchday-predictor/internal/metrics"
	"github.com/sakif/matchday-predictor/internal/model"
	"github.com/sakif/matchday-predictor/internal/repository"
)

func newTestPredictionService(t *testing.T, preds repository.PredictionRepository, users repository.UserRepository, src MatchSource) *PredictionService {
	t.Helper()
	svc := NewPredictionService(preds, users, src, metrics.NewRecorder(), testLogger())
	svc.now = func() time.Time { return time.Date(2024, 8, 10, 12, 0, 0, 0, time.UTC) }
	return svc
}

func homePick(matchID string) SubmitInput {
	return SubmitInput{
		MatchID:    matchID,
		HomeTeam:   "Arsenal FC",
		AwayTeam:   "Chelsea FC",
		MatchDate:  "2024-08-17T14:00:00Z",
		Prediction: "home",
	}
}

// =========================================================================
// Submit TESTS
// =========================================================================

func TestSubmit_CreatesAndCounts(t *testing.T) {
	stores := newTestStores(t)
	user := stores.createUser(t, "alice")
	svc := newTestPredictionService(t, stores.predictions, stores.users, &fakeSource{})
	ctx := context.Background()

	p, err := svc.Submit(ctx, user.ID, homePick("123"))
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeHome, p.Prediction, "prediction is upper-cased")
	assert.False(t, p.Counted)
	assert.Nil(t, p.ActualOutcome)
	assert.Equal(t, "2024-08-10T12:00:00Z", p.CreatedAt)

	stored, err := stores.predictions.Get(ctx, "123", user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Arsenal FC", stored.HomeTeam)

	got, err := stores.users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.PredictionCounts)
}

func TestSubmit_ChangingOpenPickDoesNotRecount(t *testing.T) {
	stores := newTestStores(t)
	user := stores.createUser(t, "alice")
	svc := newTestPredictionService(t, stores.predictions, stores.users, &fakeSource{})
	ctx := context.Background()

	_, err := svc.Submit(ctx, user.ID, homePick("123"))
	require.NoError(t, err)

	change := homePick("123")
	change.Prediction = "DRAW"
	_, err = svc.Submit(ctx, user.ID, change)
	require.NoError(t, err)

	stored, err := stores.predictions.Get(ctx, "123", user.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeDraw, stored.Prediction)

	got, err := stores.users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.PredictionCounts)
}

func TestSubmit_CountedPickIsFrozen(t *testing.T) {
	stores := newTestStores(t)
	user := stores.createUser(t, "alice")
	svc := newTestPredictionService(t, stores.predictions, stores.users, &fakeSource{})
	ctx := context.Background()

	_, err := svc.Submit(ctx, user.ID, homePick("123"))
	require.NoError(t, err)
	require.NoError(t, stores.predictions.MarkCounted(ctx, "123", user.ID, model.OutcomeAway))

	_, err = svc.Submit(ctx, user.ID, homePick("123"))
	require.ErrorIs(t, err, apperror.ErrConflict)

	stored, err := stores.predictions.Get(ctx, "123", user.ID)
	require.NoError(t, err)
	assert.True(t, stored.Counted)
	require.NotNil(t, stored.ActualOutcome)
	assert.Equal(t, model.OutcomeAway, *stored.ActualOutcome)
}

func TestSubmit_EvaluationBetweenReadAndWriteKeepsItsResult(t *testing.T) {
	stores := newTestStores(t)
	user := stores.createUser(t, "alice")
	src := &fakeSource{}
	src.finish(123, winner("HOME_TEAM"))
	eval, _ := newTestEvaluationService(t, stores.predictions, stores.users, src)
	ctx := context.Background()

	_, err := newTestPredictionService(t, stores.predictions, stores.users, src).Submit(ctx, user.ID, homePick("123"))
	require.NoError(t, err)

	racing := &racingPredictions{
		PredictionRepository: stores.predictions,
		afterGet: func() {
			res, err := eval.Evaluate(ctx, user.ID)
			require.NoError(t, err)
			require.Equal(t, StatusScored, res.Status)
		},
	}
	svc := newTestPredictionService(t, racing, stores.users, src)

	change := homePick("123")
	change.Prediction = "DRAW"
	_, err = svc.Submit(ctx, user.ID, change)
	require.ErrorIs(t, err, apperror.ErrConflict)

	stored, err := stores.predictions.Get(ctx, "123", user.ID)
	require.NoError(t, err)
	assert.True(t, stored.Counted)
	assert.Equal(t, model.OutcomeHome, stored.Prediction)
	require.NotNil(t, stored.ActualOutcome)
	assert.Equal(t, model.OutcomeHome, *stored.ActualOutcome)

	res, err := eval.Evaluate(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusNothingToEvaluate, res.Status)
	stores.requireTally(t, user.ID, 1, 1)
}

func TestSubmit_RetryAfterCountFailureIsCounted(t *testing.T) {
	stores := newTestStores(t)
	user := stores.createUser(t, "alice")
	src := &fakeSource{}
	boom := errors.New("throttled")
	users := &failCountOnce{UserRepository: stores.users, err: boom}
	svc := newTestPredictionService(t, stores.predictions, users, src)
	ctx := context.Background()

	_, err := svc.Submit(ctx, user.ID, homePick("123"))
	require.ErrorIs(t, err, boom)

	_, err = stores.predictions.Get(ctx, "123", user.ID)
	require.ErrorIs(t, err, apperror.ErrNotFound, "nothing is stored until the count is taken")
	stores.requireTally(t, user.ID, 0, 0)

	_, err = svc.Submit(ctx, user.ID, homePick("123"))
	require.NoError(t, err)
	stores.requireTally(t, user.ID, 0, 1)

	src.finish(123, winner("HOME_TEAM"))
	eval, _ := newTestEvaluationService(t, stores.predictions, stores.users, src)
	res, err := eval.Evaluate(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Correct)
	stores.requireTally(t, user.ID, 1, 1)
}

func TestSubmit_InsertFailureRevertsCount(t *testing.T) {
	stores := newTestStores(t)
	user := stores.createUser(t, "alice")
	boom := apperror.Store("CreatePrediction", errors.New("throttled"))
	preds := &failCreateOnce{PredictionRepository: stores.predictions, err: boom}
	svc := newTestPredictionService(t, preds, stores.users, &fakeSource{})
	ctx := context.Background()

	_, err := svc.Submit(ctx, user.ID, homePick("123"))
	require.ErrorIs(t, err, apperror.ErrStore)
	stores.requireTally(t, user.ID, 0, 0)

	_, err = svc.Submit(ctx, user.ID, homePick("123"))
	require.NoError(t, err)
	stores.requireTally(t, user.ID, 0, 1)
}

func TestSubmit_LosingFirstInsertReplacesInstead(t *testing.T) {
	stores := newTestStores(t)
	user := stores.createUser(t, "alice")
	ctx := context.Background()

	first, err := newTestPredictionService(t, stores.predictions, stores.users, &fakeSource{}).Submit(ctx, user.ID, homePick("123"))
	require.NoError(t, err)

	stale := &staleGetPredictions{PredictionRepository: stores.predictions}
	svc := newTestPredictionService(t, stale, stores.users, &fakeSource{})
	svc.now = func() time.Time { return time.Date(2024, 8, 11, 9, 0, 0, 0, time.UTC) }

	change := homePick("123")
	change.Prediction = "AWAY"
	p, err := svc.Submit(ctx, user.ID, change)
	require.NoError(t, err)
	assert.Equal(t, first.CreatedAt, p.CreatedAt)

	stored, err := stores.predictions.Get(ctx, "123", user.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeAway, stored.Prediction)
	assert.False(t, stored.Counted)
	stores.requireTally(t, user.ID, 0, 1)
}

func TestSubmit_Validation(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*SubmitInput)
		field string
	}{
		{"missing match id", func(in *SubmitInput) { in.MatchID = " " }, "match_id"},
		{"unknown outcome", func(in *SubmitInput) { in.Prediction = "WIN" }, "prediction"},
		{"missing outcome", func(in *SubmitInput) { in.Prediction = "" }, "prediction"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stores := newTestStores(t)
			svc := newTestPredictionService(t, stores.predictions, stores.users, &fakeSource{})

			in := homePick("123")
			tt.edit(&in)
			_, err := svc.Submit(context.Background(), "u1", in)

			var appErr *apperror.AppError
			require.ErrorAs(t, err, &appErr)
			assert.ErrorIs(t, err, apperror.ErrValidation)
			assert.Equal(t, tt.field, appErr.Field)
		})
	}
}

// =========================================================================
// ListUserPredictions / UpcomingMatches TESTS
// =========================================================================

func TestListUserPredictions_FollowsTokens(t *testing.T) {
	stores := newTestStores(t)
	alice := stores.createUser(t, "alice")
	bob := stores.createUser(t, "bob")
	svc := newTestPredictionService(t, stores.predictions, stores.users, &fakeSource{})
	ctx := context.Background()

	for _, id := range []string{"1", "2", "3", "4", "5"} {
		_, err := svc.Submit(ctx, alice.ID, homePick(id))
		require.NoError(t, err)
		_, err = svc.Submit(ctx, bob.ID, homePick(id))
		require.NoError(t, err)
	}

	var seen []string
	token := ""
	for range 20 {
		page, err := svc.ListUserPredictions(ctx, alice.ID, token)
		require.NoError(t, err)
		for _, p := range page.Items {
			assert.Equal(t, alice.ID, p.UserID)
			seen = append(seen, p.MatchID)
		}
		if page.NextPageToken == "" {
			break
		}
		token = page.NextPageToken
	}
	assert.ElementsMatch(t, []string{"1", "2", "3", "4", "5"}, seen)
}

func TestUpcomingMatches_Annotated(t *testing.T) {
	stores := newTestStores(t)
	user := stores.createUser(t, "alice")
	src := &fakeSource{upcoming: []model.Match{
		{ID: 123, Status: model.MatchStatusTimed},
		{ID: 456, Status: model.MatchStatusTimed},
	}}
	svc := newTestPredictionService(t, stores.predictions, stores.users, src)
	ctx := context.Background()

	_, err := svc.Submit(ctx, user.ID, homePick("123"))
	require.NoError(t, err)

	matches := svc.UpcomingMatches(ctx, user.ID)
	require.Len(t, matches, 2)

	require.NotNil(t, matches[0].Prediction)
	assert.True(t, matches[0].Prediction.Status)
	require.NotNil(t, matches[0].Prediction.Winner)
	assert.Equal(t, model.OutcomeHome, *matches[0].Prediction.Winner)

	require.NotNil(t, matches[1].Prediction)
	assert.False(t, matches[1].Prediction.Status)
	assert.Nil(t, matches[1].Prediction.Winner)
}

func TestUpcomingMatches_DegradesWhenPicksFail(t *testing.T) {
	stores := newTestStores(t)
	src := &fakeSource{upcoming: []model.Match{{ID: 123, Status: model.MatchStatusTimed}}}
	preds := failingPredictions{
		PredictionRepository: stores.predictions,
		err:                  apperror.Store("GetUncountedRecords", errors.New("throttled")),
	}
	svc := newTestPredictionService(t, preds, stores.users, src)

	matches := svc.UpcomingMatches(context.Background(), "u1")
	require.Len(t, matches, 1)
	assert.False(t, matches[0].Prediction.Status)
}
