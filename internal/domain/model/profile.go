package model

import (
	"errors"
	"time"

	"github.com/okian/kudos/internal/domain/ledger"
)

// ErrInvalidValue is returned by the Parse helpers of this package.
var ErrInvalidValue = errors.New("invalid value")

// Profile is one participant with its cached current and past scores.
// Both score sets are written only by the ledger aggregator and the
// snapshot job.
type Profile struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Inactive  bool          `json:"inactive"`
	Scores    ledger.Scores `json:"scores"`
	Past      ledger.Scores `json:"past_scores"`
	CreatedAt time.Time     `json:"created_at"`
}

// Snapshot is a profile's score set as of one calendar date.
type Snapshot struct {
	ProfileID string
	Date      time.Time
	Scores    ledger.Scores
}

// DateOf truncates t to its UTC calendar date.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween counts calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(DateOf(b).Sub(DateOf(a)).Hours() / 24)
}
