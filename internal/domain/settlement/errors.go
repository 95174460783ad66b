package settlement

import "errors"

// Validation errors.
var (
	ErrMissingPayer    = errors.New("cost-bearing task has no payer")
	ErrNoBeneficiaries = errors.New("settlement needs at least one beneficiary")
	ErrInvalidAmount   = errors.New("invalid monetary amount")
)

// ErrUnbalanced means a plan does not conserve money. It is an integrity fault.
var ErrUnbalanced = errors.New("settlement does not balance")
