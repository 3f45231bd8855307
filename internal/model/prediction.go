package model

import (
	"fmt"
	"strings"
)

// Outcome is the result of a match from the home side's point of view.
type Outcome string

const (
	OutcomeHome Outcome = "HOME"
	OutcomeAway Outcome = "AWAY"
	OutcomeDraw Outcome = "DRAW"
)

// ParseOutcome normalizes raw input ("home", " Draw ") to an Outcome.
func ParseOutcome(raw string) (Outcome, error) {
	o := Outcome(strings.ToUpper(strings.TrimSpace(raw)))
	switch o {
	case OutcomeHome, OutcomeAway, OutcomeDraw:
		return o, nil
	default:
		return "", fmt.Errorf("unknown outcome %q", raw)
	}
}

// Prediction is a user's pick for one match, keyed by (MatchID, UserID).
//
// Counted starts false and flips exactly once, when the evaluation engine
// reconciles the pick against the finished match. At that point
// ActualOutcome is set and the record is never scored again.
type Prediction struct {
	MatchID       string   `json:"match_id"`
	UserID        string   `json:"user_id"`
	HomeTeam      string   `json:"home_team"`
	AwayTeam      string   `json:"away_team"`
	HomeTeamFlag  string   `json:"home_team_flag"`
	AwayTeamFlag  string   `json:"away_team_flag"`
	MatchDate     string   `json:"match_date"`
	Prediction    Outcome  `json:"prediction"`
	Counted       bool     `json:"counted"`
	ActualOutcome *Outcome `json:"actual_outcome"`
	IsFinished    bool     `json:"isFinished"`
	CreatedAt     string   `json:"created_at,omitempty"`
}

// Correct reports whether an evaluated prediction matched the result.
func (p Prediction) Correct() bool {
	return p.Counted && p.ActualOutcome != nil && *p.ActualOutcome == p.Prediction
}
