// Package keyvalue implements the repository interfaces on top of any
// store.Table, so the same code runs against memory, SQLite and DynamoDB.
package keyvalue

import (
	"github.com/sakif/matchday-predictor/internal/store"
)

// Attribute names shared with the stored documents.
const (
	attrUserID           = "user_id"
	attrUsername         = "username"
	attrPin              = "pin"
	attrPredictionCounts = "prediction_counts"
	attrScore            = "score"

	attrMatchID       = "match_id"
	attrCounted       = "counted"
	attrActualOutcome = "actual_outcome"
	attrIsFinished    = "isFinished"
	attrPrediction    = "prediction"
	attrHomeTeam      = "home_team"
	attrAwayTeam      = "away_team"
	attrHomeTeamFlag  = "home_team_flag"
	attrAwayTeamFlag  = "away_team_flag"
	attrMatchDate     = "match_date"
)

// UsersSchema is the layout of the users table.
func UsersSchema(name string) store.Schema {
	return store.Schema{Name: name, PartitionKey: attrUserID}
}

// PredictionsSchema is the layout of the predictions table.
func PredictionsSchema(name string) store.Schema {
	return store.Schema{Name: name, PartitionKey: attrMatchID, SortKey: attrUserID}
}
