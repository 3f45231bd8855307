package football

import (
	"log/slog"
	"strconv"

	"github.com/sakif/matchday-predictor/internal/model"
)

// Annotate marks each match with the caller's open prediction, if any.
// Predictions missing a match id or an outcome are skipped with a warning.
// The matches slice is modified in place and returned.
func Annotate(matches []model.Match, open []model.Prediction, logger *slog.Logger) []model.Match {
	picks := make(map[string]model.Outcome, len(open))
	for _, p := range open {
		if p.MatchID == "" || p.Prediction == "" {
			if logger != nil {
				logger.Warn("skipping malformed prediction record", "match_id", p.MatchID, "user_id", p.UserID)
			}
			continue
		}
		picks[p.MatchID] = p.Prediction
	}

	for i := range matches {
		mark := &model.PredictionMark{}
		if pick, ok := picks[strconv.FormatInt(matches[i].ID, 10)]; ok {
			pick := pick
			mark.Status = true
			mark.Winner = &pick
		}
		matches[i].Prediction = mark
	}
	return matches
}

// OutcomeFromWinner maps the provider's winner field to an Outcome. Anything
// other than a home or away win, including null, counts as a draw.
func OutcomeFromWinner(winner *string) model.Outcome {
	if winner == nil {
		return model.OutcomeDraw
	}
	switch *winner {
	case model.WinnerHomeTeam:
		return model.OutcomeHome
	case model.WinnerAwayTeam:
		return model.OutcomeAway
	default:
		return model.OutcomeDraw
	}
}
