package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/sakif/matchday-predictor/internal/metrics"
	"github.com/sakif/matchday-predictor/internal/model"
)

// Leaderboard is what the scheduler snapshots. service.LeaderboardService
// satisfies it.
type Leaderboard interface {
	Top(ctx context.Context) ([]model.LeaderboardEntry, error)
}

// Scheduler runs the snapshot job on a fixed interval. Runs never overlap:
// a run still in flight when the next tick fires makes gocron skip that
// tick. Failures are logged and counted, never propagated.
type Scheduler struct {
	sched    gocron.Scheduler
	board    Leaderboard
	pub      *Publisher
	interval time.Duration
	metrics  *metrics.Recorder
	logger   *slog.Logger
}

// NewScheduler registers the job; call Start to begin running it. The
// first run happens immediately on Start.
func NewScheduler(board Leaderboard, pub *Publisher, interval time.Duration, rec *metrics.Recorder, logger *slog.Logger) (*Scheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("snapshot: interval must be positive, got %s", interval)
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("snapshot: creating scheduler: %w", err)
	}

	s := &Scheduler{
		sched:    sched,
		board:    board,
		pub:      pub,
		interval: interval,
		metrics:  rec,
		logger:   logger,
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.run),
		gocron.WithName("leaderboard-snapshot"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("snapshot: registering job: %w", err)
	}
	return s, nil
}

// Start begins running the job in the background.
func (s *Scheduler) Start() {
	s.sched.Start()
	s.logger.Info("leaderboard snapshots enabled", slog.Duration("interval", s.interval))
}

// Shutdown stops the scheduler and waits for a running job to finish.
func (s *Scheduler) Shutdown() error {
	return s.sched.Shutdown()
}

// run bounds each snapshot by the interval.
func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()
	_ = s.RunOnce(ctx)
}

// RunOnce takes and publishes one snapshot.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	entries, err := s.board.Top(ctx)
	if err == nil {
		var key string
		key, err = s.pub.Publish(ctx, entries)
		if err == nil {
			s.logger.Debug("leaderboard snapshot published", slog.String("key", key), slog.Int("entries", len(entries)))
		}
	}

	s.metrics.RecordSnapshot(err)
	if err != nil {
		s.logger.Warn("leaderboard snapshot failed", slog.Any("error", err))
	}
	return err
}
