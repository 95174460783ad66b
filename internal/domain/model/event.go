// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
	"time"
)

// EventStatus is the lifecycle of an event.
type EventStatus string

const (
	EventPlanned   EventStatus = "planned"
	EventActive    EventStatus = "active"
	EventCompleted EventStatus = "completed"
	EventBilled    EventStatus = "billed"
	EventPaid      EventStatus = "paid"
	EventCanceled  EventStatus = "canceled"
)

// Event groups tasks, participants and the costs settled among them.
type Event struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	Status    EventStatus `json:"status"`
	Date      *time.Time  `json:"date,omitempty"`       // calendar date, UTC midnight
	StartTime string      `json:"start_time,omitempty"` // "15:04"
	Location  string      `json:"location,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// Scheduled reports whether date, start time and location are all set.
func (e Event) Scheduled() bool {
	return e.Date != nil && e.StartTime != "" && e.Location != ""
}

// Role is a participant's role in an event.
type Role string

const (
	RoleOrganizer Role = "organizer"
	RoleAttendee  Role = "attendee"
	RoleManager   Role = "manager"
	RoleHonouree  Role = "honouree"
)

// ParseRole validates s as a participant role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case RoleOrganizer, RoleAttendee, RoleManager, RoleHonouree:
		return r, nil
	}
	return "", fmt.Errorf("%w: role %q", ErrInvalidValue, s)
}

// Participant links a profile to an event in one role.
type Participant struct {
	ID        string    `json:"id"`
	EventID   string    `json:"event_id"`
	ProfileID string    `json:"profile_id"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}
