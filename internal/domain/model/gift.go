package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// GiftSearch collects gift proposals and votes until it is finalized. A
// search with a deadline is finalized by the gift search results job once
// the deadline day has passed.
type GiftSearch struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	CreatedBy string     `json:"created_by"`
	Finalized bool       `json:"finalized"`
	Deadline  *time.Time `json:"deadline,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// GiftProposal is one candidate gift.
type GiftProposal struct {
	ID         string    `json:"id"`
	SearchID   string    `json:"search_id"`
	ProposedBy string    `json:"proposed_by"`
	Title      string    `json:"title"`
	Votes      int       `json:"votes"`
	CreatedAt  time.Time `json:"created_at"`
}

// ContributionStatus is the state of a gift contribution pool.
type ContributionStatus string

const (
	ContributionOpen     ContributionStatus = "open"
	ContributionClosed   ContributionStatus = "closed"
	ContributionCanceled ContributionStatus = "canceled"
)

// GiftContribution pools money for a gift, collected by its manager.
type GiftContribution struct {
	ID        string             `json:"id"`
	Title     string             `json:"title"`
	ManagerID string             `json:"manager_id"`
	Status    ContributionStatus `json:"status"`
	Deadline  *time.Time         `json:"deadline,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

// Contribution is one profile's pledge to a GiftContribution.
type Contribution struct {
	ID             string          `json:"id"`
	ContributionID string          `json:"contribution_id"`
	ContributorID  string          `json:"contributor_id"`
	Value          decimal.Decimal `json:"value"`
}
