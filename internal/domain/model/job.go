package model

import (
	"fmt"
	"time"
)

// JobKind names a periodic operation an external scheduler may trigger.
type JobKind string

const (
	JobOverdueTasks       JobKind = "overdue_tasks"
	JobTaskReminders      JobKind = "task_reminders"
	JobScoreSnapshots     JobKind = "score_snapshots"
	JobEventStatus        JobKind = "event_status"
	JobContributionStatus JobKind = "contribution_status"
	JobGiftSearchResults  JobKind = "gift_search_results"
)

// JobKinds lists every job kind.
var JobKinds = []JobKind{ //nolint:gochecknoglobals // closed set
	JobOverdueTasks, JobTaskReminders, JobScoreSnapshots, JobEventStatus, JobContributionStatus,
	JobGiftSearchResults,
}

// ParseJobKind validates s.
func ParseJobKind(s string) (JobKind, error) {
	for _, k := range JobKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: job kind %q", ErrInvalidValue, s)
}

// Job is one submitted run. At is the instant the job evaluates "now" at.
type Job struct {
	ID   string    `json:"job_id"`
	Kind JobKind   `json:"kind"`
	At   time.Time `json:"at"`
}
