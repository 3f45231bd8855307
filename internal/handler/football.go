package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sakif/matchday-predictor/internal/auth"
	"github.com/sakif/matchday-predictor/internal/model"
	"github.com/sakif/matchday-predictor/internal/service"
)

// FootballHandler serves the /football routes. Every route sits behind
// RequireAuth, so the user ID always comes from the token, never the body.
type FootballHandler struct {
	predictions *service.PredictionService
	evaluation  *service.EvaluationService
	leaderboard *service.LeaderboardService
	logger      *slog.Logger
}

// NewFootballHandler creates a FootballHandler.
func NewFootballHandler(
	predictions *service.PredictionService,
	evaluation *service.EvaluationService,
	leaderboard *service.LeaderboardService,
	logger *slog.Logger,
) *FootballHandler {
	return &FootballHandler{
		predictions: predictions,
		evaluation:  evaluation,
		leaderboard: leaderboard,
		logger:      logger,
	}
}

// matchID accepts the id as a JSON string or number. The frontend sends
// the provider's numeric id; it is stored as a string.
type matchID string

func (m *matchID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*m = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*m = matchID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*m = matchID(n.String())
	return nil
}

// SubmitPredictionRequest is the body of POST /football/matches.
type SubmitPredictionRequest struct {
	MatchID      matchID `json:"match_id"`
	HomeTeam     string  `json:"home_team"`
	AwayTeam     string  `json:"away_team"`
	HomeTeamFlag string  `json:"home_team_flag"`
	AwayTeamFlag string  `json:"away_team_flag"`
	MatchDate    string  `json:"match_date"`
	Prediction   string  `json:"prediction"`
	IsFinished   bool    `json:"isFinished"`
}

// SubmitPredictionResponse echoes the stored record.
type SubmitPredictionResponse struct {
	Message    string            `json:"message"`
	Prediction *model.Prediction `json:"prediction"`
}

// UserPredictionsRequest is the body of POST /football/user-predictions.
type UserPredictionsRequest struct {
	LastEvaluatedKey string `json:"lastEvaluatedKey"`
}

// EvaluateResponse reports an evaluation run. NewScore is only present
// once something was scored.
type EvaluateResponse struct {
	Message   string                   `json:"message"`
	RunID     string                   `json:"run_id"`
	Status    service.EvaluationStatus `json:"status"`
	Evaluated int                      `json:"evaluated"`
	Correct   int                      `json:"correct"`
	NewScore  *int                     `json:"new_score,omitempty"`
}

// HandleMatches lists the upcoming matches annotated with the caller's picks.
//
// HTTP: GET /football/matches
//
// Provider outages produce an empty list, not an error.
func (h *FootballHandler) HandleMatches(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	writeJSON(w, http.StatusOK, h.predictions.UpcomingMatches(r.Context(), userID))
}

// HandleSubmit stores a prediction.
//
// HTTP: POST /football/matches → 201
func (h *FootballHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req SubmitPredictionRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, err)
		return
	}

	p, err := h.predictions.Submit(r.Context(), userID, service.SubmitInput{
		MatchID:      string(req.MatchID),
		HomeTeam:     req.HomeTeam,
		AwayTeam:     req.AwayTeam,
		HomeTeamFlag: req.HomeTeamFlag,
		AwayTeamFlag: req.AwayTeamFlag,
		MatchDate:    req.MatchDate,
		Prediction:   req.Prediction,
		IsFinished:   req.IsFinished,
	})
	if err != nil {
		logFailure(h.logger, "submitting prediction failed", err,
			slog.String("userID", userID),
			slog.String("matchID", string(req.MatchID)),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, SubmitPredictionResponse{
		Message:    "Created a match prediction record",
		Prediction: p,
	})
}

// HandleEvaluate scores the caller's open predictions against finished
// matches.
//
// HTTP: GET or POST /football/matches/evaluate
//
// Both early exits answer 200; calling again later is always safe.
func (h *FootballHandler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	res, err := h.evaluation.Evaluate(r.Context(), userID)
	if err != nil {
		logFailure(h.logger, "evaluation failed", err, slog.String("userID", userID))
		writeError(w, err)
		return
	}

	resp := EvaluateResponse{
		RunID:     res.RunID,
		Status:    res.Status,
		Evaluated: res.Evaluated,
		Correct:   res.Correct,
	}
	switch res.Status {
	case service.StatusNothingToEvaluate:
		resp.Message = "No uncounted predictions found."
	case service.StatusNoFinishedMatches:
		resp.Message = "No finished matches found for evaluation."
	default:
		resp.Message = "User score updated"
		resp.NewScore = &res.NewScore
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleUserPredictions returns one page of the caller's predictions.
//
// HTTP: POST /football/user-predictions {"lastEvaluatedKey": "<token>"}
//
// An empty body or missing token starts from the first page. The response
// carries lastEvaluatedKey while more pages remain.
func (h *FootballHandler) HandleUserPredictions(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req UserPredictionsRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		writeError(w, err)
		return
	}

	page, err := h.predictions.ListUserPredictions(r.Context(), userID, req.LastEvaluatedKey)
	if err != nil {
		logFailure(h.logger, "listing predictions failed", err, slog.String("userID", userID))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// HandleScoreboard returns the leaderboard as [[rate, "username"], ...].
//
// HTTP: GET /football/scoreboard
func (h *FootballHandler) HandleScoreboard(w http.ResponseWriter, r *http.Request) {
	entries, err := h.leaderboard.Top(r.Context())
	if err != nil {
		logFailure(h.logger, "loading leaderboard failed", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
