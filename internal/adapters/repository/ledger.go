package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/okian/kudos/internal/domain/ledger"
	"github.com/okian/kudos/pkg/metrics"
	"github.com/shopspring/decimal"
)

var _ ledger.Writer = (*Tx)(nil)

// recomputeSQL writes one subtotal and the total in a single statement. The
// right-hand side sees the row before the update, so the total adds the new
// subtotal to the three untouched ones.
var recomputeSQL = map[ledger.Category]string{ //nolint:gochecknoglobals // closed set
	ledger.CategoryTask: `UPDATE profiles SET task_score = ?,
		total_score = ? + role_score + gift_score + payment_score WHERE id = ?`,
	ledger.CategoryRole: `UPDATE profiles SET role_score = ?,
		total_score = task_score + ? + gift_score + payment_score WHERE id = ?`,
	ledger.CategoryGift: `UPDATE profiles SET gift_score = ?,
		total_score = task_score + role_score + ? + payment_score WHERE id = ?`,
	ledger.CategoryPayment: `UPDATE profiles SET payment_score = ?,
		total_score = task_score + role_score + gift_score + ? WHERE id = ?`,
}

const entryColumns = `id, category, source_id, profile_id, kind, points, amount, note, reversible, created_at, updated_at`

// RecordOrUpdate creates the entry for r's natural key, or updates its points,
// amount and note when they changed. The owning profile is recomputed in the
// same transaction whenever the ledger changed.
func (t *Tx) RecordOrUpdate(ctx context.Context, r ledger.Record) (ledger.Entry, error) {
	if err := r.Validate(); err != nil {
		metrics.RecordLedgerRejection("invalid")
		return ledger.Entry{}, err
	}

	existing, err := t.findEntries(ctx, ledger.Key{
		Category: r.Category, SourceID: r.SourceID, Kind: r.Kind, ProfileID: r.ProfileID,
	})
	if err != nil {
		return ledger.Entry{}, err
	}
	if len(existing) > 1 {
		return ledger.Entry{}, fmt.Errorf("%w: %s/%s/%s/%s",
			ledger.ErrDuplicateEntry, r.Category, r.SourceID, r.ProfileID, r.Kind)
	}

	now := t.now().UTC()
	if len(existing) == 0 {
		e := ledger.Entry{
			ID:         newID(),
			Category:   r.Category,
			SourceID:   r.SourceID,
			ProfileID:  r.ProfileID,
			Kind:       r.Kind,
			Points:     r.Points,
			Amount:     r.Amount,
			Note:       r.Note,
			Reversible: ledger.Reversible(r.Category, r.Kind),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		_, err := t.tx.ExecContext(ctx,
			`INSERT INTO score_entries (`+entryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, string(e.Category), e.SourceID, e.ProfileID, string(e.Kind), e.Points,
			e.Amount.String(), e.Note, boolInt(e.Reversible), formatTime(now), formatTime(now))
		if err != nil {
			if isUniqueViolation(err) {
				return ledger.Entry{}, fmt.Errorf("%w: %v", ledger.ErrDuplicateEntry, err)
			}
			return ledger.Entry{}, fmt.Errorf("insert ledger entry: %w", err)
		}
		if err := t.recompute(ctx, e.ProfileID, e.Category); err != nil {
			return ledger.Entry{}, err
		}
		metrics.RecordLedgerWrite(string(e.Category), "create")
		return e, nil
	}

	e := existing[0]
	if e.Points == r.Points && e.Amount.Equal(r.Amount) && e.Note == r.Note {
		return e, nil
	}
	e.Points, e.Amount, e.Note, e.UpdatedAt = r.Points, r.Amount, r.Note, now
	_, err = t.tx.ExecContext(ctx,
		`UPDATE score_entries SET points = ?, amount = ?, note = ?, updated_at = ? WHERE id = ?`,
		e.Points, e.Amount.String(), e.Note, formatTime(now), e.ID)
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("update ledger entry: %w", err)
	}
	if err := t.recompute(ctx, e.ProfileID, e.Category); err != nil {
		return ledger.Entry{}, err
	}
	metrics.RecordLedgerWrite(string(e.Category), "update")
	return e, nil
}

// Retract deletes the entries matching k and recomputes every profile that
// held one. When any match is irreversible nothing is deleted and
// ledger.ErrIrreversible is returned.
func (t *Tx) Retract(ctx context.Context, k ledger.Key) (int, error) {
	if !ledger.ValidKind(k.Category, k.Kind) || k.SourceID == "" {
		metrics.RecordLedgerRejection("invalid")
		return 0, fmt.Errorf("%w: %s/%s/%s", ledger.ErrInvalidKind, k.Category, k.SourceID, k.Kind)
	}

	matches, err := t.findEntries(ctx, k)
	if err != nil {
		return 0, err
	}
	for _, e := range matches {
		if !e.Reversible {
			metrics.RecordLedgerRejection("irreversible")
			return 0, fmt.Errorf("%w: %s %s/%s for %s",
				ledger.ErrIrreversible, e.Category, e.SourceID, e.Kind, e.ProfileID)
		}
	}

	seen := make(map[string]bool, len(matches))
	for _, e := range matches {
		if _, err := t.tx.ExecContext(ctx, `DELETE FROM score_entries WHERE id = ?`, e.ID); err != nil {
			return 0, fmt.Errorf("delete ledger entry: %w", err)
		}
		if seen[e.ProfileID] {
			continue
		}
		seen[e.ProfileID] = true
		if err := t.recompute(ctx, e.ProfileID, e.Category); err != nil {
			return 0, err
		}
	}
	if len(matches) > 0 {
		metrics.RecordLedgerWrite(string(k.Category), "retract")
	}
	return len(matches), nil
}

// Entries lists a profile's ledger, optionally limited to one category,
// oldest first.
func (t *Tx) Entries(ctx context.Context, profileID string, category ledger.Category) ([]ledger.Entry, error) {
	q := `SELECT ` + entryColumns + ` FROM score_entries WHERE profile_id = ?`
	args := []any{profileID}
	if category != "" {
		q += ` AND category = ?`
		args = append(args, string(category))
	}
	q += ` ORDER BY created_at, id`
	return t.queryEntries(ctx, q, args...)
}

// Audit compares each cached subtotal of a profile with the sum of its
// entries, and the total with the subtotals.
func (t *Tx) Audit(ctx context.Context, profileID string) error {
	p, err := t.GetProfile(ctx, profileID)
	if err != nil {
		return err
	}
	for _, c := range ledger.Categories {
		sum, err := t.sumEntries(ctx, profileID, c)
		if err != nil {
			return err
		}
		if cached := p.Scores.Get(c); cached != sum {
			return fmt.Errorf("%w: profile %s %s subtotal %d != entries %d",
				ledger.ErrIntegrity, profileID, c, cached, sum)
		}
	}
	return nil
}

func (t *Tx) findEntries(ctx context.Context, k ledger.Key) ([]ledger.Entry, error) {
	q := `SELECT ` + entryColumns + ` FROM score_entries WHERE category = ? AND source_id = ? AND kind = ?`
	args := []any{string(k.Category), k.SourceID, string(k.Kind)}
	if k.ProfileID != "" {
		q += ` AND profile_id = ?`
		args = append(args, k.ProfileID)
	}
	q += ` ORDER BY created_at, id`
	return t.queryEntries(ctx, q, args...)
}

func (t *Tx) queryEntries(ctx context.Context, q string, args ...any) ([]ledger.Entry, error) {
	rows, err := t.tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query ledger entries: %w", err)
	}
	defer rows.Close()

	var out []ledger.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEntry(row rowScanner) (ledger.Entry, error) {
	var (
		e                    ledger.Entry
		category, kind       string
		amount               string
		reversible           int
		createdAt, updatedAt string
	)
	if err := row.Scan(&e.ID, &category, &e.SourceID, &e.ProfileID, &kind, &e.Points,
		&amount, &e.Note, &reversible, &createdAt, &updatedAt); err != nil {
		return ledger.Entry{}, fmt.Errorf("scan ledger entry: %w", err)
	}
	e.Category, e.Kind, e.Reversible = ledger.Category(category), ledger.Kind(kind), reversible != 0

	var err error
	if e.Amount, err = decimal.NewFromString(amount); err != nil {
		return ledger.Entry{}, fmt.Errorf("parse entry amount: %w", err)
	}
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return ledger.Entry{}, err
	}
	if e.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return ledger.Entry{}, err
	}
	return e, nil
}

func (t *Tx) sumEntries(ctx context.Context, profileID string, c ledger.Category) (int64, error) {
	var sum int64
	err := t.tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(points), 0) FROM score_entries WHERE profile_id = ? AND category = ?`,
		profileID, string(c)).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum %s entries: %w", c, err)
	}
	return sum, nil
}

// recompute sums a profile's entries of one category and writes the subtotal
// and total in one UPDATE.
func (t *Tx) recompute(ctx context.Context, profileID string, c ledger.Category) error {
	start := time.Now()
	defer func() {
		metrics.RecordRecomputeLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	stmt, ok := recomputeSQL[c]
	if !ok {
		return fmt.Errorf("%w: %q", ledger.ErrInvalidCategory, c)
	}
	sum, err := t.sumEntries(ctx, profileID, c)
	if err != nil {
		return err
	}
	res, err := t.tx.ExecContext(ctx, stmt, sum, sum, profileID)
	if err != nil {
		return fmt.Errorf("recompute %s for %s: %w", c, profileID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFound("profile", profileID)
	}
	return nil
}

func isNoRows(err error) bool { return errors.Is(err, sql.ErrNoRows) }
