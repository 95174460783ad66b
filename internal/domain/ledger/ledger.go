// Package ledger defines the score history ledger: categories, entry kinds,
// the natural key of an entry and the per-profile aggregate it feeds.
//
// The ledger is the unit of truth for points. A profile's cached scores are
// always derived from it; see Scores.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Category partitions the ledger.
type Category string

const (
	CategoryTask    Category = "task"
	CategoryRole    Category = "role"
	CategoryGift    Category = "gift"
	CategoryPayment Category = "payment"
)

// Categories lists every ledger category in display order.
var Categories = []Category{CategoryTask, CategoryRole, CategoryGift, CategoryPayment}

// ParseCategory validates s as a ledger category.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case CategoryTask, CategoryRole, CategoryGift, CategoryPayment:
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
}

func (c Category) String() string { return string(c) }

// Kind is the category specific sub-type of an entry.
type Kind string

const (
	KindAward    Kind = "award"
	KindPenalty  Kind = "penalty"
	KindProposal Kind = "proposal"
	KindVote     Kind = "vote"
	KindWinner   Kind = "winner"
)

// Kinds returns the kinds allowed in a category.
func Kinds(c Category) []Kind {
	switch c {
	case CategoryTask, CategoryPayment:
		return []Kind{KindAward, KindPenalty}
	case CategoryRole:
		return []Kind{KindAward}
	case CategoryGift:
		return []Kind{KindProposal, KindVote, KindWinner}
	}
	return nil
}

// ValidKind reports whether k belongs to c.
func ValidKind(c Category, k Kind) bool {
	for _, allowed := range Kinds(c) {
		if allowed == k {
			return true
		}
	}
	return false
}

// Reversible reports whether an entry of this category and kind may be
// retracted once written. Overdue task penalties and late payment penalties
// stay forever.
func Reversible(c Category, k Kind) bool {
	switch c {
	case CategoryTask, CategoryPayment:
		return k != KindPenalty
	case CategoryRole, CategoryGift:
		return true
	}
	return true
}

// Entry is one row of the score history.
type Entry struct {
	ID         string
	Category   Category
	SourceID   string
	ProfileID  string
	Kind       Kind
	Points     int64
	Amount     decimal.Decimal // payment entries only
	Note       string
	Reversible bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Record is the input of RecordOrUpdate. Category, SourceID, ProfileID and
// Kind form the natural key.
type Record struct {
	Category  Category
	SourceID  string
	ProfileID string
	Kind      Kind
	Points    int64
	Amount    decimal.Decimal
	Note      string
}

// Validate checks the natural key of r.
func (r Record) Validate() error {
	if _, err := ParseCategory(string(r.Category)); err != nil {
		return err
	}
	if !ValidKind(r.Category, r.Kind) {
		return fmt.Errorf("%w: %s/%s", ErrInvalidKind, r.Category, r.Kind)
	}
	if r.SourceID == "" || r.ProfileID == "" {
		return fmt.Errorf("%w: source and profile are required", ErrInvalidRecord)
	}
	return nil
}

// Key selects entries to retract. An empty ProfileID matches every profile
// holding an entry for the source.
type Key struct {
	Category  Category
	SourceID  string
	Kind      Kind
	ProfileID string
}

// Writer is the transactional write surface of the ledger. Every call
// recomputes the affected profile aggregates before returning.
type Writer interface {
	RecordOrUpdate(ctx context.Context, r Record) (Entry, error)
	Retract(ctx context.Context, k Key) (int, error)
}
