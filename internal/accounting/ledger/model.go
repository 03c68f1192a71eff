package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType enumerates ledger transaction kinds.
type TransactionType string

const (
	TypeJournal    TransactionType = "JOURNAL"
	TypeInvoice    TransactionType = "INVOICE"
	TypePayment    TransactionType = "PAYMENT"
	TypeAdjustment TransactionType = "ADJUSTMENT"
	TypeRecurring  TransactionType = "RECURRING"
)

// Valid reports whether the type is a known kind.
func (t TransactionType) Valid() bool {
	switch t {
	case TypeJournal, TypeInvoice, TypePayment, TypeAdjustment, TypeRecurring:
		return true
	}
	return false
}

// SourceKind tags the business document a transaction originated from.
type SourceKind string

const (
	SourceKindInvoice          SourceKind = "invoice"
	SourceKindAssetDisposal    SourceKind = "asset_disposal"
	SourceKindRecurringInvoice SourceKind = "recurring_invoice"
	SourceKindManual           SourceKind = "manual"
)

// SourceRef is a sealed variant over the originating business document,
// so report classification switches are exhaustive at compile time.
type SourceRef interface {
	Kind() SourceKind
	sourceRef()
}

// InvoiceSource links a transaction to a sales or purchase invoice.
type InvoiceSource struct {
	InvoiceID uuid.UUID
	DueDate   time.Time
}

func (InvoiceSource) Kind() SourceKind { return SourceKindInvoice }
func (InvoiceSource) sourceRef()       {}

// AssetDisposalSource links a transaction to a fixed-asset disposal.
type AssetDisposalSource struct {
	AssetID uuid.UUID
}

func (AssetDisposalSource) Kind() SourceKind { return SourceKindAssetDisposal }
func (AssetDisposalSource) sourceRef()       {}

// RecurringInvoiceSource links a transaction to a recurring schedule.
type RecurringInvoiceSource struct {
	ScheduleID uuid.UUID
}

func (RecurringInvoiceSource) Kind() SourceKind { return SourceKindRecurringInvoice }
func (RecurringInvoiceSource) sourceRef()       {}

// ManualSource marks a hand-keyed journal entry.
type ManualSource struct{}

func (ManualSource) Kind() SourceKind { return SourceKindManual }
func (ManualSource) sourceRef()       {}

// SourceParts flattens a source variant into the persisted columns.
func SourceParts(s SourceRef) (string, *uuid.UUID, *time.Time) {
	switch src := s.(type) {
	case InvoiceSource:
		id := src.InvoiceID
		due := src.DueDate
		return string(SourceKindInvoice), &id, &due
	case AssetDisposalSource:
		id := src.AssetID
		return string(SourceKindAssetDisposal), &id, nil
	case RecurringInvoiceSource:
		id := src.ScheduleID
		return string(SourceKindRecurringInvoice), &id, nil
	default:
		return string(SourceKindManual), nil, nil
	}
}

// SourceFromParts rebuilds the source variant from persisted columns.
func SourceFromParts(kind string, id *uuid.UUID, due *time.Time) SourceRef {
	switch SourceKind(kind) {
	case SourceKindInvoice:
		src := InvoiceSource{}
		if id != nil {
			src.InvoiceID = *id
		}
		if due != nil {
			src.DueDate = *due
		}
		return src
	case SourceKindAssetDisposal:
		src := AssetDisposalSource{}
		if id != nil {
			src.AssetID = *id
		}
		return src
	case SourceKindRecurringInvoice:
		src := RecurringInvoiceSource{}
		if id != nil {
			src.ScheduleID = *id
		}
		return src
	default:
		return ManualSource{}
	}
}

// Transaction is a balanced set of debit and credit entries.
type Transaction struct {
	ID              int64
	ReferenceNumber string
	Description     string
	Date            time.Time
	Type            TransactionType
	Source          SourceRef
	TotalAmount     decimal.Decimal
	Currency        string
	ExchangeRate    decimal.Decimal
	CostCenterID    *int64
	Tags            []string
	Notes           string
	IsLocked        bool
	ApprovedBy      *int64
	ApprovedAt      *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Entries         []Entry
}

// Approved reports whether the transaction carries an approval.
func (t Transaction) Approved() bool {
	return t.ApprovedBy != nil
}

// Entry is a single debit or credit leg against one account.
type Entry struct {
	ID            int64
	TransactionID int64
	AccountID     int64
	Debit         decimal.Decimal
	Credit        decimal.Decimal
	CreatedAt     time.Time
}
