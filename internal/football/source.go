package football

import (
	"context"
	"log/slog"
	"time"

	"github.com/sakif/matchday-predictor/internal/model"
)

const (
	// DefaultCompetitionID is the Premier League on football-data.org.
	DefaultCompetitionID = 2021
	defaultWindow        = 14 * 24 * time.Hour
	dateLayout           = "2006-01-02"
)

// Source is what the services read matches from. Upstream failures are
// logged and reported as empty results, never as errors.
type Source struct {
	provider      Provider
	competitionID int
	window        time.Duration
	now           func() time.Time
	logger        *slog.Logger
}

// NewSource wraps provider. competitionID and window fall back to the
// Premier League and 14 days.
func NewSource(provider Provider, competitionID int, window time.Duration, logger *slog.Logger) *Source {
	if competitionID <= 0 {
		competitionID = DefaultCompetitionID
	}
	if window <= 0 {
		window = defaultWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{
		provider:      provider,
		competitionID: competitionID,
		window:        window,
		now:           time.Now,
		logger:        logger,
	}
}

// ListUpcoming returns the competition's TIMED matches between today and
// today+window. The API only filters on SCHEDULED, which includes matches
// without a confirmed kick-off time, so those are dropped here.
func (s *Source) ListUpcoming(ctx context.Context) []model.Match {
	today := s.now()
	matches, err := s.provider.FetchMatches(ctx, Query{
		CompetitionID: s.competitionID,
		Status:        model.MatchStatusScheduled,
		DateFrom:      today.Format(dateLayout),
		DateTo:        today.Add(s.window).Format(dateLayout),
	})
	if err != nil {
		s.logger.Warn("fetching upcoming matches failed", "competition", s.competitionID, "error", err)
		return []model.Match{}
	}

	timed := make([]model.Match, 0, len(matches))
	for _, m := range matches {
		if m.Status == model.MatchStatusTimed {
			timed = append(timed, m)
		}
	}
	return timed
}

// FetchFinished returns the FINISHED matches among ids. An empty ids list
// makes no request.
func (s *Source) FetchFinished(ctx context.Context, ids []string) []model.Match {
	if len(ids) == 0 {
		return []model.Match{}
	}
	matches, err := s.provider.FetchMatches(ctx, Query{
		Status: model.MatchStatusFinished,
		IDs:    ids,
	})
	if err != nil {
		s.logger.Warn("fetching finished matches failed", "ids", len(ids), "error", err)
		return []model.Match{}
	}
	return matches
}
