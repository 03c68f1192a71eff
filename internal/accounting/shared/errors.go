package shared

import "errors"

var (
	// ErrValidation indicates malformed or incomplete input.
	ErrValidation = errors.New("accounting: invalid input")
	// ErrUnbalancedEntries indicates total debits != total credits.
	ErrUnbalancedEntries = errors.New("accounting: entries do not balance")
	// ErrInsufficientEntries indicates fewer than two entries.
	ErrInsufficientEntries = errors.New("accounting: transaction requires at least two entries")
	// ErrInvalidEntry indicates an entry without exactly one positive side.
	ErrInvalidEntry = errors.New("accounting: entry must carry exactly one positive side")
	// ErrStructural indicates a cyclic or otherwise invalid account hierarchy.
	ErrStructural = errors.New("accounting: account hierarchy violation")
	// ErrConflict indicates a deletion blocked by dependent records.
	ErrConflict = errors.New("accounting: dependent records exist")
	// ErrLockedTransaction indicates a mutation attempted on a locked transaction.
	ErrLockedTransaction = errors.New("accounting: transaction is locked")
	// ErrAlreadyApproved indicates a second approval attempt.
	ErrAlreadyApproved = errors.New("accounting: transaction already approved")
	// ErrNoOp indicates a redundant lock or unlock.
	ErrNoOp = errors.New("accounting: state unchanged")
	// ErrContention indicates balance-update retries were exhausted.
	ErrContention = errors.New("accounting: balance update contention")
	// ErrNotFound indicates a missing record.
	ErrNotFound = errors.New("accounting: record not found")
	// ErrVersionConflict indicates a stale balance version during compare-and-swap.
	ErrVersionConflict = errors.New("accounting: balance version conflict")
)
