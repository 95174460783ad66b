package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/okian/kudos/internal/domain/ledger"
	"github.com/okian/kudos/internal/domain/model"
)

const profileColumns = `id, name, inactive,
	task_score, role_score, gift_score, payment_score, total_score,
	task_past, role_past, gift_past, payment_past, total_past, created_at`

// CreateProfile inserts p with zero scores. An empty ID is generated.
func (t *Tx) CreateProfile(ctx context.Context, p model.Profile) (model.Profile, error) {
	if p.ID == "" {
		p.ID = newID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = t.now().UTC()
	}
	p.Scores, p.Past = ledger.Scores{}, ledger.Scores{}

	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO profiles (id, name, inactive, created_at) VALUES (?, ?, ?, ?)`,
		p.ID, p.Name, boolInt(p.Inactive), formatTime(p.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return model.Profile{}, fmt.Errorf("profile %q: %w", p.ID, ErrConflict)
		}
		return model.Profile{}, fmt.Errorf("insert profile: %w", err)
	}
	return p, nil
}

// GetProfile loads one profile. A total that drifted from its categories
// fails with ledger.ErrIntegrity.
func (t *Tx) GetProfile(ctx context.Context, id string) (model.Profile, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = ?`, id)
	p, err := scanProfile(row)
	if isNoRows(err) {
		return model.Profile{}, notFound("profile", id)
	}
	return p, err
}

// ListProfiles returns profiles ordered by name, active ones only unless
// includeInactive is set.
func (t *Tx) ListProfiles(ctx context.Context, includeInactive bool) ([]model.Profile, error) {
	q := `SELECT ` + profileColumns + ` FROM profiles`
	if !includeInactive {
		q += ` WHERE inactive = 0`
	}
	q += ` ORDER BY name, id`

	rows, err := t.tx.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query profiles: %w", err)
	}
	defer rows.Close()

	var out []model.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CountProfiles returns the number of stored profiles.
func (t *Tx) CountProfiles(ctx context.Context) (int, error) {
	var n int
	if err := t.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM profiles`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count profiles: %w", err)
	}
	return n, nil
}

// SetProfileInactive flags a profile as (in)active. Inactive profiles keep
// their ledger but are left out of the leaderboard.
func (t *Tx) SetProfileInactive(ctx context.Context, id string, inactive bool) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE profiles SET inactive = ? WHERE id = ?`, boolInt(inactive), id)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("profile", id)
	}
	return nil
}

// SetPastScores writes the past score set, total included, in one UPDATE.
func (t *Tx) SetPastScores(ctx context.Context, id string, s ledger.Scores) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE profiles SET task_past = ?, role_past = ?, gift_past = ?, payment_past = ?, total_past = ? WHERE id = ?`,
		s.Task, s.Role, s.Gift, s.Payment, s.Sum(), id)
	if err != nil {
		return fmt.Errorf("update past scores: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("profile", id)
	}
	return nil
}

func scanProfile(row rowScanner) (model.Profile, error) {
	var (
		p         model.Profile
		inactive  int
		createdAt string
	)
	err := row.Scan(&p.ID, &p.Name, &inactive,
		&p.Scores.Task, &p.Scores.Role, &p.Scores.Gift, &p.Scores.Payment, &p.Scores.Total,
		&p.Past.Task, &p.Past.Role, &p.Past.Gift, &p.Past.Payment, &p.Past.Total, &createdAt)
	if err != nil {
		if isNoRows(err) {
			return model.Profile{}, err
		}
		return model.Profile{}, fmt.Errorf("scan profile: %w", err)
	}
	p.Inactive = inactive != 0
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.Profile{}, err
	}
	if err := p.Scores.Check(); err != nil {
		return model.Profile{}, fmt.Errorf("profile %s current scores: %w", p.ID, err)
	}
	if err := p.Past.Check(); err != nil {
		return model.Profile{}, fmt.Errorf("profile %s past scores: %w", p.ID, err)
	}
	return p, nil
}

// UpsertSnapshot stores s, replacing the snapshot of the same profile and date.
func (t *Tx) UpsertSnapshot(ctx context.Context, s model.Snapshot) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO snapshots (profile_id, snapshot_date, task, role, gift, payment, total)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (profile_id, snapshot_date) DO UPDATE SET
			task = excluded.task, role = excluded.role, gift = excluded.gift,
			payment = excluded.payment, total = excluded.total`,
		s.ProfileID, formatDate(s.Date), s.Scores.Task, s.Scores.Role, s.Scores.Gift,
		s.Scores.Payment, s.Scores.Sum())
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

// GetSnapshot loads the snapshot of a profile on one date.
func (t *Tx) GetSnapshot(ctx context.Context, profileID string, date time.Time) (model.Snapshot, error) {
	row := t.tx.QueryRowContext(ctx,
		`SELECT profile_id, snapshot_date, task, role, gift, payment, total
		FROM snapshots WHERE profile_id = ? AND snapshot_date = ?`,
		profileID, formatDate(date))
	s, err := scanSnapshot(row)
	if isNoRows(err) {
		return model.Snapshot{}, fmt.Errorf("snapshot %s@%s: %w", profileID, formatDate(date), ErrNotFound)
	}
	return s, err
}

// ListSnapshots returns the snapshots dated within [from, to], ordered by
// date then profile. profileIDs, when given, limits the result.
func (t *Tx) ListSnapshots(ctx context.Context, from, to time.Time, profileIDs ...string) ([]model.Snapshot, error) {
	q := `SELECT profile_id, snapshot_date, task, role, gift, payment, total
		FROM snapshots WHERE snapshot_date >= ? AND snapshot_date <= ?`
	args := []any{formatDate(from), formatDate(to)}
	if len(profileIDs) > 0 {
		q += ` AND profile_id IN (` + placeholders(len(profileIDs)) + `)`
		for _, id := range profileIDs {
			args = append(args, id)
		}
	}
	q += ` ORDER BY snapshot_date, profile_id`

	rows, err := t.tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var out []model.Snapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanSnapshot(row rowScanner) (model.Snapshot, error) {
	var (
		s    model.Snapshot
		date string
	)
	err := row.Scan(&s.ProfileID, &date, &s.Scores.Task, &s.Scores.Role, &s.Scores.Gift,
		&s.Scores.Payment, &s.Scores.Total)
	if err != nil {
		if isNoRows(err) {
			return model.Snapshot{}, err
		}
		return model.Snapshot{}, fmt.Errorf("scan snapshot: %w", err)
	}
	if s.Date, err = parseDate(strings.TrimSpace(date)); err != nil {
		return model.Snapshot{}, err
	}
	return s, nil
}
