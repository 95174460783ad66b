package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus is the payment state of a transaction.
type TransactionStatus string

const (
	TransactionBilled    TransactionStatus = "billed"
	TransactionPaid      TransactionStatus = "paid"
	TransactionConfirmed TransactionStatus = "confirmed"
)

// TransactionCategory says what a transaction settles.
type TransactionCategory string

const (
	TransactionTask  TransactionCategory = "task"
	TransactionEvent TransactionCategory = "event"
	TransactionGift  TransactionCategory = "gift"
)

// ParseTransactionCategory validates s.
func ParseTransactionCategory(s string) (TransactionCategory, error) {
	switch c := TransactionCategory(s); c {
	case TransactionTask, TransactionEvent, TransactionGift:
		return c, nil
	}
	return "", fmt.Errorf("%w: transaction category %q", ErrInvalidValue, s)
}

// Transaction is a directed payment from one profile to another.
type Transaction struct {
	ID             string              `json:"id"`
	FromID         string              `json:"from_id"`
	ToID           string              `json:"to_id"`
	Amount         decimal.Decimal     `json:"amount"`
	Category       TransactionCategory `json:"category"`
	Status         TransactionStatus   `json:"status"`
	EventID        string              `json:"event_id,omitempty"`
	ContributionID string              `json:"contribution_id,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}
