package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/okian/kudos/internal/domain/model"
)

const eventColumns = `id, title, status, event_date, start_time, location, created_at`

// CreateEvent inserts e. An empty ID is generated and an empty status
// defaults to planned.
func (t *Tx) CreateEvent(ctx context.Context, e model.Event) (model.Event, error) {
	if e.ID == "" {
		e.ID = newID()
	}
	if e.Status == "" {
		e.Status = model.EventPlanned
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = t.now().UTC()
	}

	var date sql.NullString
	if e.Date != nil {
		date = sql.NullString{String: formatDate(*e.Date), Valid: true}
	}
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO events (`+eventColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Title, string(e.Status), date, e.StartTime, e.Location, formatTime(e.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return model.Event{}, fmt.Errorf("event %q: %w", e.ID, ErrConflict)
		}
		return model.Event{}, fmt.Errorf("insert event: %w", err)
	}
	return e, nil
}

// GetEvent loads one event.
func (t *Tx) GetEvent(ctx context.Context, id string) (model.Event, error) {
	e, err := scanEvent(t.tx.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id))
	if isNoRows(err) {
		return model.Event{}, notFound("event", id)
	}
	return e, err
}

// ListEvents returns events in the given statuses (all when none given),
// oldest first.
func (t *Tx) ListEvents(ctx context.Context, statuses ...model.EventStatus) ([]model.Event, error) {
	q := `SELECT ` + eventColumns + ` FROM events`
	var args []any
	if len(statuses) > 0 {
		q += ` WHERE status IN (` + placeholders(len(statuses)) + `)`
		for _, s := range statuses {
			args = append(args, string(s))
		}
	}
	q += ` ORDER BY created_at, id`

	rows, err := t.tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SetEventStatus changes the status of an event.
func (t *Tx) SetEventStatus(ctx context.Context, id string, status model.EventStatus) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE events SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("update event status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("event", id)
	}
	return nil
}

func scanEvent(row rowScanner) (model.Event, error) {
	var (
		e         model.Event
		status    string
		date      sql.NullString
		createdAt string
	)
	err := row.Scan(&e.ID, &e.Title, &status, &date, &e.StartTime, &e.Location, &createdAt)
	if err != nil {
		if isNoRows(err) {
			return model.Event{}, err
		}
		return model.Event{}, fmt.Errorf("scan event: %w", err)
	}
	e.Status = model.EventStatus(status)
	if date.Valid && date.String != "" {
		d, err := parseDate(date.String)
		if err != nil {
			return model.Event{}, err
		}
		e.Date = &d
	}
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.Event{}, err
	}
	return e, nil
}

const participantColumns = `id, event_id, profile_id, role, created_at`

// CreateParticipant inserts p. A second row for the same event, profile and
// role fails with ErrConflict.
func (t *Tx) CreateParticipant(ctx context.Context, p model.Participant) (model.Participant, error) {
	if p.ID == "" {
		p.ID = newID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = t.now().UTC()
	}
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO participants (`+participantColumns+`) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.EventID, p.ProfileID, string(p.Role), formatTime(p.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return model.Participant{}, fmt.Errorf("participant %s/%s/%s: %w", p.EventID, p.ProfileID, p.Role, ErrConflict)
		}
		return model.Participant{}, fmt.Errorf("insert participant: %w", err)
	}
	return p, nil
}

// GetParticipant loads one participation.
func (t *Tx) GetParticipant(ctx context.Context, id string) (model.Participant, error) {
	p, err := scanParticipant(t.tx.QueryRowContext(ctx,
		`SELECT `+participantColumns+` FROM participants WHERE id = ?`, id))
	if isNoRows(err) {
		return model.Participant{}, notFound("participant", id)
	}
	return p, err
}

// ListParticipants returns the participants of an event, optionally limited
// to roles, in insertion order.
func (t *Tx) ListParticipants(ctx context.Context, eventID string, roles ...model.Role) ([]model.Participant, error) {
	q := `SELECT ` + participantColumns + ` FROM participants WHERE event_id = ?`
	args := []any{eventID}
	if len(roles) > 0 {
		q += ` AND role IN (` + placeholders(len(roles)) + `)`
		for _, r := range roles {
			args = append(args, string(r))
		}
	}
	q += ` ORDER BY created_at, rowid`

	rows, err := t.tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query participants: %w", err)
	}
	defer rows.Close()

	var out []model.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeleteParticipant removes one participation.
func (t *Tx) DeleteParticipant(ctx context.Context, id string) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM participants WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete participant: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("participant", id)
	}
	return nil
}

func scanParticipant(row rowScanner) (model.Participant, error) {
	var (
		p         model.Participant
		role      string
		createdAt string
	)
	if err := row.Scan(&p.ID, &p.EventID, &p.ProfileID, &role, &createdAt); err != nil {
		if isNoRows(err) {
			return model.Participant{}, err
		}
		return model.Participant{}, fmt.Errorf("scan participant: %w", err)
	}
	p.Role = model.Role(role)
	var err error
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.Participant{}, err
	}
	return p, nil
}
