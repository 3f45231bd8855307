package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/matchday-predictor/internal/metrics"
	"github.com/sakif/matchday-predictor/internal/model"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

type putCall struct {
	bucket, key, contentType string
	body                     []byte
}

type fakePutter struct {
	mu    sync.Mutex
	calls []putCall
	err   error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.calls = append(f.calls, putCall{
		bucket:      aws.ToString(in.Bucket),
		key:         aws.ToString(in.Key),
		contentType: aws.ToString(in.ContentType),
		body:        body,
	})
	return &s3.PutObjectOutput{}, nil
}

func (f *fakePutter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeBoard struct {
	entries []model.LeaderboardEntry
	err     error
}

func (f fakeBoard) Top(context.Context) ([]model.LeaderboardEntry, error) {
	return f.entries, f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestPublisher(putter *fakePutter) *Publisher {
	p := NewPublisher(putter, "scores", "leaderboard")
	p.now = func() time.Time { return time.Date(2024, 8, 17, 16, 5, 0, 0, time.UTC) }
	p.newID = func() string { return "cr1q2" }
	return p
}

// =========================================================================
// PUBLISHER
// =========================================================================

func TestPublishWritesHistoryThenLatest(t *testing.T) {
	putter := &fakePutter{}
	pub := newTestPublisher(putter)

	key, err := pub.Publish(context.Background(), []model.LeaderboardEntry{
		{WinningRate: 0.75, Username: "bob"},
		{WinningRate: 0.5, Username: "alice"},
	})
	require.NoError(t, err)
	assert.Equal(t, "leaderboard/20240817T160500Z-cr1q2.json", key)

	require.Len(t, putter.calls, 2)
	assert.Equal(t, key, putter.calls[0].key)
	assert.Equal(t, "leaderboard/latest.json", putter.calls[1].key)
	for _, c := range putter.calls {
		assert.Equal(t, "scores", c.bucket)
		assert.Equal(t, "application/json", c.contentType)
		assert.JSONEq(t, `{"generatedAt":"2024-08-17T16:05:00Z","entries":[[0.75,"bob"],[0.5,"alice"]]}`, string(c.body))
	}
}

func TestPublishEmptyLeaderboard(t *testing.T) {
	putter := &fakePutter{}
	_, err := newTestPublisher(putter).Publish(context.Background(), nil)
	require.NoError(t, err)

	var snap map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(putter.calls[0].body, &snap))
	assert.JSONEq(t, `[]`, string(snap["entries"]))
}

func TestPublishWithoutPrefix(t *testing.T) {
	putter := &fakePutter{}
	pub := newTestPublisher(putter)
	pub.prefix = ""

	_, err := pub.Publish(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "latest.json", putter.calls[1].key)
}

func TestPublishUploadError(t *testing.T) {
	putter := &fakePutter{err: errors.New("access denied")}
	_, err := newTestPublisher(putter).Publish(context.Background(), nil)
	assert.ErrorContains(t, err, "access denied")
}

// =========================================================================
// SCHEDULER
// =========================================================================

func TestRunOnceRecordsOutcome(t *testing.T) {
	rec := metrics.NewRecorder()
	putter := &fakePutter{}

	ok, err := NewScheduler(fakeBoard{}, newTestPublisher(putter), time.Hour, rec, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = ok.Shutdown() })
	require.NoError(t, ok.RunOnce(context.Background()))

	failing, err := NewScheduler(fakeBoard{err: errors.New("store down")}, newTestPublisher(putter), time.Hour, rec, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = failing.Shutdown() })
	assert.Error(t, failing.RunOnce(context.Background()))

	n, err := testutil.GatherAndCount(rec.Registry(), "matchday_leaderboard_snapshots_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "one success and one error series")
	assert.Equal(t, 2, putter.count(), "the failed run uploads nothing")
}

func TestSchedulerRunsOnStart(t *testing.T) {
	putter := &fakePutter{}
	s, err := NewScheduler(fakeBoard{}, newTestPublisher(putter), time.Hour, nil, testLogger())
	require.NoError(t, err)

	s.Start()
	assert.Eventually(t, func() bool { return putter.count() >= 2 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, s.Shutdown())
}

func TestNewSchedulerRejectsBadInterval(t *testing.T) {
	_, err := NewScheduler(fakeBoard{}, newTestPublisher(&fakePutter{}), 0, nil, testLogger())
	assert.Error(t, err)
}
