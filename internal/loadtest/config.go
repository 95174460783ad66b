// Package loadtest drives a running ledger service over HTTP with a
// generated workload, then audits every profile it touched.
package loadtest

import (
	"sync/atomic"
	"time"
)

// Config holds configuration for a load run.
type Config struct {
	BaseURL       string        // Base URL of the service
	Profiles      int           // Number of profiles to create
	Events        int           // Number of events to run end to end
	TasksPerEvent int           // Tasks created per event
	Workers       int           // Number of concurrent workers
	Timeout       time.Duration // HTTP request timeout
	Seed          uint64        // Workload seed; 0 picks one from the clock
	TopN          int           // Leaderboard rows printed in the report
	Verbose       bool          // Log every failed request
}

// Worker configuration constants.
const (
	workerChannelMultiplier = 2
	progressInterval        = time.Second
)

// Stats holds run counters. Workers update them atomically.
type Stats struct {
	Requests              atomic.Int64
	Failed                atomic.Int64
	ProfilesCreated       atomic.Int64
	EventsBilled          atomic.Int64
	TasksCompleted        atomic.Int64
	TransactionsConfirmed atomic.Int64
	ProfilesVerified      atomic.Int64

	StartTime time.Time
	Duration  time.Duration
}

// Report is the outcome of a run.
type Report struct {
	Stats      *Stats
	Mismatches []string
	Top        []Standing
}
