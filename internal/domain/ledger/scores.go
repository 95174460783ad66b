package ledger

import "fmt"

// Scores is a profile's per-category subtotal set plus its total.
type Scores struct {
	Task    int64 `json:"task"`
	Role    int64 `json:"role"`
	Gift    int64 `json:"gift"`
	Payment int64 `json:"payment"`
	Total   int64 `json:"total"`
}

// Get returns the subtotal of c.
func (s Scores) Get(c Category) int64 {
	switch c {
	case CategoryTask:
		return s.Task
	case CategoryRole:
		return s.Role
	case CategoryGift:
		return s.Gift
	case CategoryPayment:
		return s.Payment
	}
	return 0
}

// With returns a copy of s with c set to v and Total recomputed.
func (s Scores) With(c Category, v int64) Scores {
	switch c {
	case CategoryTask:
		s.Task = v
	case CategoryRole:
		s.Role = v
	case CategoryGift:
		s.Gift = v
	case CategoryPayment:
		s.Payment = v
	}
	s.Total = s.Sum()
	return s
}

// Sum adds the four categories.
func (s Scores) Sum() int64 {
	return s.Task + s.Role + s.Gift + s.Payment
}

// Check returns ErrIntegrity when Total drifted from the categories.
func (s Scores) Check() error {
	if s.Total != s.Sum() {
		return fmt.Errorf("%w: total %d != %d+%d+%d+%d",
			ErrIntegrity, s.Total, s.Task, s.Role, s.Gift, s.Payment)
	}
	return nil
}
