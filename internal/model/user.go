// Package model defines the data structures used throughout the application.
package model

// User is a registered predictor.
//
// Username is stored lower-cased so lookups are case-insensitive.
// Pin holds the bcrypt hash and is never serialized to clients.
//
// Invariant: Score <= PredictionCounts. Each prediction can contribute at
// most one point, and only the evaluation engine ever increments Score.
type User struct {
	ID               string `json:"user_id"`
	Username         string `json:"username"`
	Pin              string `json:"-"`
	PredictionCounts int    `json:"prediction_counts"`
	Score            int    `json:"score"`
}

// WinningRate returns the user's accuracy as a two-decimal ratio.
func (u User) WinningRate() float64 {
	return WinningRate(u.Score, u.PredictionCounts)
}
