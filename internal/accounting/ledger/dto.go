package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aurum-erp/aurum-erp/internal/accounting/shared"
)

// EntryInput describes one leg of a draft transaction.
type EntryInput struct {
	AccountID int64
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

// Draft groups the fields required to create or replace a transaction.
type Draft struct {
	Description  string
	Date         time.Time
	Type         TransactionType
	Source       SourceRef
	TotalAmount  decimal.Decimal
	Currency     string
	ExchangeRate decimal.Decimal
	CostCenterID *int64
	Tags         []string
	Notes        string
	Entries      []EntryInput
}

// Validate enforces the double-entry invariant on the draft. Amounts are
// decimal so the sum comparison is exact at minor-unit precision.
func (d Draft) Validate() error {
	if !d.Type.Valid() {
		return fmt.Errorf("%w: unknown transaction type %q", shared.ErrValidation, d.Type)
	}
	if d.Date.IsZero() {
		return fmt.Errorf("%w: transaction date required", shared.ErrValidation)
	}
	if d.Currency == "" {
		return fmt.Errorf("%w: currency required", shared.ErrValidation)
	}
	if d.ExchangeRate.Sign() <= 0 {
		return fmt.Errorf("%w: exchange rate must be positive", shared.ErrValidation)
	}
	if len(d.Entries) < 2 {
		return shared.ErrInsufficientEntries
	}
	debit := decimal.Zero
	credit := decimal.Zero
	for idx, entry := range d.Entries {
		if entry.AccountID == 0 {
			return fmt.Errorf("%w: entry %d missing account", shared.ErrValidation, idx)
		}
		if entry.Debit.Sign() < 0 || entry.Credit.Sign() < 0 {
			return fmt.Errorf("%w: entry %d negative amount", shared.ErrInvalidEntry, idx)
		}
		hasDebit := entry.Debit.Sign() > 0
		hasCredit := entry.Credit.Sign() > 0
		if hasDebit == hasCredit {
			return fmt.Errorf("%w: entry %d", shared.ErrInvalidEntry, idx)
		}
		debit = debit.Add(entry.Debit)
		credit = credit.Add(entry.Credit)
	}
	if !debit.Equal(credit) {
		return fmt.Errorf("%w: debits %s vs credits %s", shared.ErrUnbalancedEntries, debit.StringFixed(2), credit.StringFixed(2))
	}
	if !debit.Equal(d.TotalAmount) {
		return fmt.Errorf("%w: total %s does not match entry sum %s", shared.ErrUnbalancedEntries, d.TotalAmount.StringFixed(2), debit.StringFixed(2))
	}
	return nil
}

// normalizeSource defaults a nil source to a manual journal entry.
func (d Draft) normalizeSource() SourceRef {
	if d.Source == nil {
		return ManualSource{}
	}
	return d.Source
}
