package model

import (
	"encoding/json"
	"math"
)

// LeaderboardEntry is one ranked row of the scoreboard.
//
// It marshals as a two-element array, [winningRate, "username"], which is
// the shape existing clients already parse.
type LeaderboardEntry struct {
	WinningRate float64
	Username    string
}

func (e LeaderboardEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{e.WinningRate, e.Username})
}

// WinningRate is score/predictions rounded half away from zero to two
// decimals, or 0 when the user has not predicted anything yet.
func WinningRate(score, predictionCounts int) float64 {
	if predictionCounts <= 0 {
		return 0
	}
	return math.Round(float64(score)/float64(predictionCounts)*100) / 100
}
