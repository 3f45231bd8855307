package model

// Match statuses reported by football-data.org.
const (
	MatchStatusScheduled = "SCHEDULED"
	MatchStatusTimed     = "TIMED"
	MatchStatusFinished  = "FINISHED"
)

// Winner values reported in Match.Score.Winner. A nil winner is a draw.
const (
	WinnerHomeTeam = "HOME_TEAM"
	WinnerAwayTeam = "AWAY_TEAM"
	WinnerDraw     = "DRAW"
)

// Match is fetched on demand from the match provider and never persisted.
// Only the fields the service reads or the frontend renders are decoded.
type Match struct {
	ID         int64           `json:"id"`
	UTCDate    string          `json:"utcDate"`
	Status     string          `json:"status"`
	Matchday   int             `json:"matchday"`
	Stage      string          `json:"stage,omitempty"`
	HomeTeam   Team            `json:"homeTeam"`
	AwayTeam   Team            `json:"awayTeam"`
	Score      MatchScore      `json:"score"`
	Prediction *PredictionMark `json:"prediction,omitempty"`
}

// Team is the provider's team shape.
type Team struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	ShortName string `json:"shortName"`
	TLA       string `json:"tla"`
	Crest     string `json:"crest"`
}

// MatchScore carries the final winner and full-time goals.
type MatchScore struct {
	Winner   *string   `json:"winner"`
	Duration string    `json:"duration,omitempty"`
	FullTime GoalsPair `json:"fullTime"`
	HalfTime GoalsPair `json:"halfTime"`
}

// GoalsPair holds nullable goal counts; both are null before kick-off.
type GoalsPair struct {
	Home *int `json:"home"`
	Away *int `json:"away"`
}

// PredictionMark annotates an upcoming match with the caller's open pick.
type PredictionMark struct {
	Status bool     `json:"status"`
	Winner *Outcome `json:"winner"`
}
