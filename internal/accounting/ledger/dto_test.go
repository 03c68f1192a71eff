package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aurum-erp/aurum-erp/internal/accounting/shared"
	_ "github.com/aurum-erp/aurum-erp/testing"
)

func validDraft() Draft {
	return Draft{
		Description:  "cash sale",
		Date:         time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		Type:         TypeJournal,
		TotalAmount:  decimal.NewFromInt(500),
		Currency:     "SAR",
		ExchangeRate: decimal.NewFromInt(1),
		Entries: []EntryInput{
			{AccountID: 1, Debit: decimal.NewFromInt(500)},
			{AccountID: 2, Credit: decimal.NewFromInt(500)},
		},
	}
}

func TestDraftValidateAccepts(t *testing.T) {
	if err := validDraft().Validate(); err != nil {
		t.Fatalf("expected valid draft, got %v", err)
	}
}

func TestDraftValidateRejectsSingleEntry(t *testing.T) {
	d := validDraft()
	d.Entries = d.Entries[:1]
	if err := d.Validate(); !errors.Is(err, shared.ErrInsufficientEntries) {
		t.Fatalf("expected ErrInsufficientEntries, got %v", err)
	}
}

func TestDraftValidateRejectsUnbalanced(t *testing.T) {
	d := validDraft()
	d.Entries[1].Credit = decimal.NewFromInt(400)
	if err := d.Validate(); !errors.Is(err, shared.ErrUnbalancedEntries) {
		t.Fatalf("expected ErrUnbalancedEntries, got %v", err)
	}
}

func TestDraftValidateRejectsTotalMismatch(t *testing.T) {
	d := validDraft()
	d.TotalAmount = decimal.NewFromInt(400)
	if err := d.Validate(); !errors.Is(err, shared.ErrUnbalancedEntries) {
		t.Fatalf("expected ErrUnbalancedEntries, got %v", err)
	}
}

func TestDraftValidateRejectsBothSides(t *testing.T) {
	d := validDraft()
	d.Entries[0].Credit = decimal.NewFromInt(100)
	if err := d.Validate(); !errors.Is(err, shared.ErrInvalidEntry) {
		t.Fatalf("expected ErrInvalidEntry, got %v", err)
	}
}

func TestDraftValidateRejectsZeroEntry(t *testing.T) {
	d := validDraft()
	d.Entries[0] = EntryInput{AccountID: 1}
	if err := d.Validate(); !errors.Is(err, shared.ErrInvalidEntry) {
		t.Fatalf("expected ErrInvalidEntry, got %v", err)
	}
}

func TestDraftValidateRejectsNegativeAmount(t *testing.T) {
	d := validDraft()
	d.Entries[0].Debit = decimal.NewFromInt(-500)
	if err := d.Validate(); !errors.Is(err, shared.ErrInvalidEntry) {
		t.Fatalf("expected ErrInvalidEntry, got %v", err)
	}
}

func TestDraftValidateRejectsBadRate(t *testing.T) {
	d := validDraft()
	d.ExchangeRate = decimal.Zero
	if err := d.Validate(); !errors.Is(err, shared.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestSourcePartsRoundTrip(t *testing.T) {
	due := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	cases := []SourceRef{
		ManualSource{},
		InvoiceSource{InvoiceID: mustUUID(t), DueDate: due},
		AssetDisposalSource{AssetID: mustUUID(t)},
		RecurringInvoiceSource{ScheduleID: mustUUID(t)},
	}
	for _, src := range cases {
		kind, id, dueDate := SourceParts(src)
		back := SourceFromParts(kind, id, dueDate)
		if back != src {
			t.Fatalf("round trip mismatch: %#v != %#v", back, src)
		}
	}
}
