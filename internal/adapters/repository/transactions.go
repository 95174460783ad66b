package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/okian/kudos/internal/domain/model"
	"github.com/shopspring/decimal"
)

const transactionColumns = `id, from_id, to_id, amount, category, status, event_id, contribution_id, created_at, updated_at`

// TransactionFilter narrows ListTransactions. Zero fields do not filter.
type TransactionFilter struct {
	EventID        string
	ContributionID string
	Statuses       []model.TransactionStatus
}

// CreateTransaction inserts tr. An empty ID is generated.
func (t *Tx) CreateTransaction(ctx context.Context, tr model.Transaction) (model.Transaction, error) {
	if tr.ID == "" {
		tr.ID = newID()
	}
	now := t.now().UTC()
	if tr.CreatedAt.IsZero() {
		tr.CreatedAt = now
	}
	if tr.UpdatedAt.IsZero() {
		tr.UpdatedAt = tr.CreatedAt
	}
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO transactions (`+transactionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tr.ID, tr.FromID, tr.ToID, tr.Amount.String(), string(tr.Category), string(tr.Status),
		nullString(tr.EventID), nullString(tr.ContributionID),
		formatTime(tr.CreatedAt), formatTime(tr.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return model.Transaction{}, fmt.Errorf("transaction %q: %w", tr.ID, ErrConflict)
		}
		return model.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	return tr, nil
}

// GetTransaction loads one transaction.
func (t *Tx) GetTransaction(ctx context.Context, id string) (model.Transaction, error) {
	tr, err := scanTransaction(t.tx.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id))
	if isNoRows(err) {
		return model.Transaction{}, notFound("transaction", id)
	}
	return tr, err
}

// ListTransactions returns the transactions matching f in insertion order.
func (t *Tx) ListTransactions(ctx context.Context, f TransactionFilter) ([]model.Transaction, error) {
	q := `SELECT ` + transactionColumns + ` FROM transactions WHERE 1 = 1`
	var args []any
	if f.EventID != "" {
		q += ` AND event_id = ?`
		args = append(args, f.EventID)
	}
	if f.ContributionID != "" {
		q += ` AND contribution_id = ?`
		args = append(args, f.ContributionID)
	}
	if len(f.Statuses) > 0 {
		q += ` AND status IN (` + placeholders(len(f.Statuses)) + `)`
		for _, s := range f.Statuses {
			args = append(args, string(s))
		}
	}
	q += ` ORDER BY rowid`

	rows, err := t.tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []model.Transaction
	for rows.Next() {
		tr, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tr)
	}
	return out, rows.Err()
}

// SetTransactionStatus changes the status of a transaction and stamps it.
func (t *Tx) SetTransactionStatus(ctx context.Context, id string, status model.TransactionStatus) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE transactions SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), formatTime(t.now()), id)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("transaction", id)
	}
	return nil
}

// DeleteTransaction removes one transaction.
func (t *Tx) DeleteTransaction(ctx context.Context, id string) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("transaction", id)
	}
	return nil
}

func scanTransaction(row rowScanner) (model.Transaction, error) {
	var (
		tr                   model.Transaction
		amount               string
		category, status     string
		eventID, contribID   sql.NullString
		createdAt, updatedAt string
	)
	err := row.Scan(&tr.ID, &tr.FromID, &tr.ToID, &amount, &category, &status,
		&eventID, &contribID, &createdAt, &updatedAt)
	if err != nil {
		if isNoRows(err) {
			return model.Transaction{}, err
		}
		return model.Transaction{}, fmt.Errorf("scan transaction: %w", err)
	}
	tr.Category = model.TransactionCategory(category)
	tr.Status = model.TransactionStatus(status)
	tr.EventID, tr.ContributionID = eventID.String, contribID.String

	if tr.Amount, err = decimal.NewFromString(amount); err != nil {
		return model.Transaction{}, fmt.Errorf("parse transaction amount: %w", err)
	}
	if tr.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.Transaction{}, err
	}
	if tr.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return model.Transaction{}, err
	}
	return tr, nil
}
