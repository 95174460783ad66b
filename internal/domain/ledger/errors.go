package ledger

import "errors"

// Sentinel kinds for ledger errors.
var (
	ErrInvalidCategory = errors.New("invalid ledger category")
	ErrInvalidKind     = errors.New("invalid ledger entry kind")
	ErrInvalidRecord   = errors.New("invalid ledger record")

	// ErrIrreversible rejects a retract that matches an entry which may never be removed.
	ErrIrreversible = errors.New("ledger entry is irreversible")

	// ErrIntegrity signals a total that does not match its categories, or a
	// subtotal that does not match its entries.
	ErrIntegrity = errors.New("ledger integrity violation")

	// ErrDuplicateEntry signals two rows for one natural key.
	ErrDuplicateEntry = errors.New("duplicate ledger entry")
)
