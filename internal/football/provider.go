// Package football adapts the football-data.org v4 API to the prediction
// service: a raw HTTP client, a retrying wrapper, and a Source that turns
// upstream failures into empty results.
package football

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sakif/matchday-predictor/internal/model"
)

// ProviderName labels metrics and logs for the upstream API.
const ProviderName = "football-data"

// Provider fetches matches matching q.
type Provider interface {
	FetchMatches(ctx context.Context, q Query) ([]model.Match, error)
}

// Query selects matches. A zero CompetitionID queries the cross-competition
// /matches endpoint, which is the only one that accepts IDs.
type Query struct {
	CompetitionID int
	Status        string
	DateFrom      string // YYYY-MM-DD
	DateTo        string // YYYY-MM-DD
	IDs           []string
}

// StatusError is returned for any non-200 response.
type StatusError struct {
	StatusCode int
	Body       string
	// RetryAfter is taken from X-RequestCounter-Reset on 429 responses.
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("football-data: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether a retry could succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// AsStatusError unwraps err into a *StatusError.
func AsStatusError(err error) (*StatusError, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
