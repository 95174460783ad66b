package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/okian/kudos/internal/domain/model"
	"github.com/shopspring/decimal"
)

const giftSearchColumns = `id, title, created_by, finalized, deadline, created_at`

// CreateGiftSearch inserts s. An empty ID is generated.
func (t *Tx) CreateGiftSearch(ctx context.Context, s model.GiftSearch) (model.GiftSearch, error) {
	if s.ID == "" {
		s.ID = newID()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = t.now().UTC()
	}
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO gift_searches (`+giftSearchColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		s.ID, s.Title, s.CreatedBy, boolInt(s.Finalized), nullTime(s.Deadline), formatTime(s.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return model.GiftSearch{}, fmt.Errorf("gift search %q: %w", s.ID, ErrConflict)
		}
		return model.GiftSearch{}, fmt.Errorf("insert gift search: %w", err)
	}
	return s, nil
}

// GetGiftSearch loads one gift search.
func (t *Tx) GetGiftSearch(ctx context.Context, id string) (model.GiftSearch, error) {
	s, err := scanGiftSearch(t.tx.QueryRowContext(ctx,
		`SELECT `+giftSearchColumns+` FROM gift_searches WHERE id = ?`, id))
	if isNoRows(err) {
		return model.GiftSearch{}, notFound("gift search", id)
	}
	return s, err
}

// ListDueGiftSearches returns the open searches whose deadline is before
// before, oldest first.
func (t *Tx) ListDueGiftSearches(ctx context.Context, before time.Time) ([]model.GiftSearch, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT `+giftSearchColumns+` FROM gift_searches
		WHERE finalized = 0 AND deadline IS NOT NULL AND deadline < ?
		ORDER BY created_at, id`, formatTime(before))
	if err != nil {
		return nil, fmt.Errorf("query gift searches: %w", err)
	}
	defer rows.Close()

	var out []model.GiftSearch
	for rows.Next() {
		s, err := scanGiftSearch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanGiftSearch(row rowScanner) (model.GiftSearch, error) {
	var (
		s         model.GiftSearch
		finalized int
		deadline  sql.NullString
		createdAt string
	)
	if err := row.Scan(&s.ID, &s.Title, &s.CreatedBy, &finalized, &deadline, &createdAt); err != nil {
		if isNoRows(err) {
			return model.GiftSearch{}, err
		}
		return model.GiftSearch{}, fmt.Errorf("scan gift search: %w", err)
	}
	s.Finalized = finalized != 0
	var err error
	if s.Deadline, err = parseNullTime(deadline); err != nil {
		return model.GiftSearch{}, err
	}
	if s.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.GiftSearch{}, err
	}
	return s, nil
}

// SetGiftSearchFinalized flips the finalized flag.
func (t *Tx) SetGiftSearchFinalized(ctx context.Context, id string, finalized bool) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE gift_searches SET finalized = ? WHERE id = ?`, boolInt(finalized), id)
	if err != nil {
		return fmt.Errorf("update gift search: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("gift search", id)
	}
	return nil
}

const proposalSelect = `SELECT p.id, p.search_id, p.proposed_by, p.title, p.created_at,
	(SELECT COUNT(*) FROM votes v WHERE v.proposal_id = p.id)
	FROM gift_proposals p`

// CreateProposal inserts p. An empty ID is generated.
func (t *Tx) CreateProposal(ctx context.Context, p model.GiftProposal) (model.GiftProposal, error) {
	if p.ID == "" {
		p.ID = newID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = t.now().UTC()
	}
	p.Votes = 0
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO gift_proposals (id, search_id, proposed_by, title, created_at) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.SearchID, p.ProposedBy, p.Title, formatTime(p.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return model.GiftProposal{}, fmt.Errorf("gift proposal %q: %w", p.ID, ErrConflict)
		}
		return model.GiftProposal{}, fmt.Errorf("insert gift proposal: %w", err)
	}
	return p, nil
}

// GetProposal loads one proposal with its vote count.
func (t *Tx) GetProposal(ctx context.Context, id string) (model.GiftProposal, error) {
	p, err := scanProposal(t.tx.QueryRowContext(ctx, proposalSelect+` WHERE p.id = ?`, id))
	if isNoRows(err) {
		return model.GiftProposal{}, notFound("gift proposal", id)
	}
	return p, err
}

// ListProposals returns the proposals of a search, earliest created first.
func (t *Tx) ListProposals(ctx context.Context, searchID string) ([]model.GiftProposal, error) {
	rows, err := t.tx.QueryContext(ctx,
		proposalSelect+` WHERE p.search_id = ? ORDER BY p.created_at, p.id`, searchID)
	if err != nil {
		return nil, fmt.Errorf("query gift proposals: %w", err)
	}
	defer rows.Close()

	var out []model.GiftProposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanProposal(row rowScanner) (model.GiftProposal, error) {
	var (
		p         model.GiftProposal
		createdAt string
	)
	if err := row.Scan(&p.ID, &p.SearchID, &p.ProposedBy, &p.Title, &createdAt, &p.Votes); err != nil {
		if isNoRows(err) {
			return model.GiftProposal{}, err
		}
		return model.GiftProposal{}, fmt.Errorf("scan gift proposal: %w", err)
	}
	var err error
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.GiftProposal{}, err
	}
	return p, nil
}

// AddVote records voterID's vote on a proposal. It reports false when the
// vote already existed.
func (t *Tx) AddVote(ctx context.Context, proposalID, voterID string) (bool, error) {
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO votes (proposal_id, voter_id, created_at) VALUES (?, ?, ?)
		ON CONFLICT (proposal_id, voter_id) DO NOTHING`,
		proposalID, voterID, formatTime(t.now()))
	if err != nil {
		return false, fmt.Errorf("insert vote: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert vote: %w", err)
	}
	return n == 1, nil
}

// DeleteVote removes a vote. It reports false when there was none.
func (t *Tx) DeleteVote(ctx context.Context, proposalID, voterID string) (bool, error) {
	res, err := t.tx.ExecContext(ctx,
		`DELETE FROM votes WHERE proposal_id = ? AND voter_id = ?`, proposalID, voterID)
	if err != nil {
		return false, fmt.Errorf("delete vote: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete vote: %w", err)
	}
	return n == 1, nil
}

const giftContributionColumns = `id, title, manager_id, status, deadline, created_at`

// CreateGiftContribution inserts c, open unless a status is given.
func (t *Tx) CreateGiftContribution(ctx context.Context, c model.GiftContribution) (model.GiftContribution, error) {
	if c.ID == "" {
		c.ID = newID()
	}
	if c.Status == "" {
		c.Status = model.ContributionOpen
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = t.now().UTC()
	}
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO gift_contributions (`+giftContributionColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.Title, c.ManagerID, string(c.Status), nullTime(c.Deadline), formatTime(c.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return model.GiftContribution{}, fmt.Errorf("gift contribution %q: %w", c.ID, ErrConflict)
		}
		return model.GiftContribution{}, fmt.Errorf("insert gift contribution: %w", err)
	}
	return c, nil
}

// GetGiftContribution loads one contribution pool.
func (t *Tx) GetGiftContribution(ctx context.Context, id string) (model.GiftContribution, error) {
	c, err := scanGiftContribution(t.tx.QueryRowContext(ctx,
		`SELECT `+giftContributionColumns+` FROM gift_contributions WHERE id = ?`, id))
	if isNoRows(err) {
		return model.GiftContribution{}, notFound("gift contribution", id)
	}
	return c, err
}

// ListGiftContributions returns pools in status whose deadline is before
// deadlineBefore (any deadline when nil), oldest first.
func (t *Tx) ListGiftContributions(ctx context.Context, status model.ContributionStatus, deadlineBefore *time.Time) ([]model.GiftContribution, error) {
	q := `SELECT ` + giftContributionColumns + ` FROM gift_contributions WHERE status = ?`
	args := []any{string(status)}
	if deadlineBefore != nil {
		q += ` AND deadline IS NOT NULL AND deadline < ?`
		args = append(args, formatTime(*deadlineBefore))
	}
	q += ` ORDER BY created_at, id`

	rows, err := t.tx.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query gift contributions: %w", err)
	}
	defer rows.Close()

	var out []model.GiftContribution
	for rows.Next() {
		c, err := scanGiftContribution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SetGiftContributionStatus changes the status of a pool.
func (t *Tx) SetGiftContributionStatus(ctx context.Context, id string, status model.ContributionStatus) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE gift_contributions SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("update gift contribution: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("gift contribution", id)
	}
	return nil
}

func scanGiftContribution(row rowScanner) (model.GiftContribution, error) {
	var (
		c         model.GiftContribution
		status    string
		deadline  sql.NullString
		createdAt string
	)
	if err := row.Scan(&c.ID, &c.Title, &c.ManagerID, &status, &deadline, &createdAt); err != nil {
		if isNoRows(err) {
			return model.GiftContribution{}, err
		}
		return model.GiftContribution{}, fmt.Errorf("scan gift contribution: %w", err)
	}
	c.Status = model.ContributionStatus(status)
	var err error
	if c.Deadline, err = parseNullTime(deadline); err != nil {
		return model.GiftContribution{}, err
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.GiftContribution{}, err
	}
	return c, nil
}

// AddContribution inserts one pledge. An empty ID is generated.
func (t *Tx) AddContribution(ctx context.Context, c model.Contribution) (model.Contribution, error) {
	if c.ID == "" {
		c.ID = newID()
	}
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO contributions (id, contribution_id, contributor_id, value) VALUES (?, ?, ?, ?)`,
		c.ID, c.ContributionID, c.ContributorID, c.Value.String())
	if err != nil {
		return model.Contribution{}, fmt.Errorf("insert contribution: %w", err)
	}
	return c, nil
}

// ListContributions returns the pledges of a pool in insertion order.
func (t *Tx) ListContributions(ctx context.Context, contributionID string) ([]model.Contribution, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT id, contribution_id, contributor_id, value FROM contributions
		WHERE contribution_id = ? ORDER BY rowid`, contributionID)
	if err != nil {
		return nil, fmt.Errorf("query contributions: %w", err)
	}
	defer rows.Close()

	var out []model.Contribution
	for rows.Next() {
		var (
			c     model.Contribution
			value string
		)
		if err := rows.Scan(&c.ID, &c.ContributionID, &c.ContributorID, &value); err != nil {
			return nil, fmt.Errorf("scan contribution: %w", err)
		}
		if c.Value, err = decimal.NewFromString(value); err != nil {
			return nil, fmt.Errorf("parse contribution value: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteContributions removes every pledge of a pool and returns how many.
func (t *Tx) DeleteContributions(ctx context.Context, contributionID string) (int, error) {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM contributions WHERE contribution_id = ?`, contributionID)
	if err != nil {
		return 0, fmt.Errorf("delete contributions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete contributions: %w", err)
	}
	return int(n), nil
}
