package accounting

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"

	"github.com/aurum-erp/aurum-erp/internal/accounting/coa"
	"github.com/aurum-erp/aurum-erp/internal/accounting/ledger"
	"github.com/aurum-erp/aurum-erp/internal/accounting/shared"
)

const dateLayout = "2006-01-02"

// accountRequest is the JSON body for creating an account.
type accountRequest struct {
	Code           string `json:"code" validate:"required"`
	Name           string `json:"name" validate:"required"`
	NameAr         string `json:"name_ar"`
	Type           string `json:"type" validate:"required,oneof=ASSET LIABILITY EQUITY REVENUE EXPENSE"`
	Subtype        string `json:"subtype"`
	ParentID       *int64 `json:"parent_id"`
	Currency       string `json:"currency" validate:"required,len=3"`
	OpeningBalance string `json:"opening_balance"`
	IsSystem       bool   `json:"is_system"`
}

func (r accountRequest) toInput() (coa.RegisterInput, error) {
	opening := decimal.Zero
	if r.OpeningBalance != "" {
		var err error
		opening, err = decimal.NewFromString(r.OpeningBalance)
		if err != nil {
			return coa.RegisterInput{}, fmt.Errorf("%w: opening_balance: %v", shared.ErrValidation, err)
		}
	}
	return coa.RegisterInput{
		Code:           r.Code,
		Name:           r.Name,
		NameAr:         r.NameAr,
		Type:           coa.AccountType(r.Type),
		Subtype:        r.Subtype,
		ParentID:       r.ParentID,
		Currency:       r.Currency,
		OpeningBalance: opening,
		IsSystem:       r.IsSystem,
	}, nil
}

type renameRequest struct {
	Name    string `json:"name" validate:"required"`
	NameAr  string `json:"name_ar"`
	Subtype string `json:"subtype"`
}

type reparentRequest struct {
	ParentID *int64 `json:"parent_id"`
}

// accountSummary is the outbound account contract. Name carries the
// localized display name negotiated from Accept-Language.
type accountSummary struct {
	ID             int64           `json:"id"`
	Code           string          `json:"code"`
	Name           string          `json:"name"`
	Type           coa.AccountType `json:"type"`
	Subtype        string          `json:"subtype,omitempty"`
	ParentID       *int64          `json:"parent_id"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
	IsActive       bool            `json:"is_active"`
}

func summarizeAccount(a coa.Account, lang language.Tag) accountSummary {
	name := a.Name
	if base, _ := lang.Base(); base.String() == "ar" && a.NameAr != "" {
		name = a.NameAr
	}
	return accountSummary{
		ID:             a.ID,
		Code:           a.Code,
		Name:           name,
		Type:           a.Type,
		Subtype:        a.Subtype,
		ParentID:       a.ParentID,
		CurrentBalance: a.CurrentBalance,
		IsActive:       a.IsActive,
	}
}

type entryRequest struct {
	AccountID int64  `json:"account_id" validate:"required"`
	Debit     string `json:"debit"`
	Credit    string `json:"credit"`
}

type sourceRequest struct {
	Kind    string  `json:"kind" validate:"omitempty,oneof=invoice asset_disposal recurring_invoice manual"`
	ID      string  `json:"id" validate:"omitempty,uuid"`
	DueDate *string `json:"due_date"`
}

func (r *sourceRequest) toRef() (ledger.SourceRef, error) {
	if r == nil || r.Kind == "" || r.Kind == string(ledger.SourceKindManual) {
		return ledger.ManualSource{}, nil
	}
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: source id: %v", shared.ErrValidation, err)
	}
	switch ledger.SourceKind(r.Kind) {
	case ledger.SourceKindInvoice:
		src := ledger.InvoiceSource{InvoiceID: id}
		if r.DueDate != nil {
			due, err := time.Parse(dateLayout, *r.DueDate)
			if err != nil {
				return nil, fmt.Errorf("%w: source due_date: %v", shared.ErrValidation, err)
			}
			src.DueDate = due
		}
		return src, nil
	case ledger.SourceKindAssetDisposal:
		return ledger.AssetDisposalSource{AssetID: id}, nil
	case ledger.SourceKindRecurringInvoice:
		return ledger.RecurringInvoiceSource{ScheduleID: id}, nil
	}
	return nil, fmt.Errorf("%w: unknown source kind %q", shared.ErrValidation, r.Kind)
}

// transactionRequest is the JSON body for creating or replacing a
// transaction.
type transactionRequest struct {
	Description  string         `json:"description"`
	Date         string         `json:"date" validate:"required"`
	Type         string         `json:"type" validate:"required,oneof=JOURNAL INVOICE PAYMENT ADJUSTMENT RECURRING"`
	Source       *sourceRequest `json:"source"`
	TotalAmount  string         `json:"total_amount" validate:"required"`
	Currency     string         `json:"currency" validate:"required,len=3"`
	ExchangeRate string         `json:"exchange_rate"`
	CostCenterID *int64         `json:"cost_center_id"`
	Tags         []string       `json:"tags"`
	Notes        string         `json:"notes"`
	Entries      []entryRequest `json:"entries" validate:"required,min=2,dive"`
}

func parseAmount(field, raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %s: %v", shared.ErrValidation, field, err)
	}
	return d, nil
}

func (r transactionRequest) toDraft() (ledger.Draft, error) {
	date, err := time.Parse(dateLayout, r.Date)
	if err != nil {
		return ledger.Draft{}, fmt.Errorf("%w: date: %v", shared.ErrValidation, err)
	}
	total, err := parseAmount("total_amount", r.TotalAmount)
	if err != nil {
		return ledger.Draft{}, err
	}
	rate := decimal.NewFromInt(1)
	if r.ExchangeRate != "" {
		rate, err = parseAmount("exchange_rate", r.ExchangeRate)
		if err != nil {
			return ledger.Draft{}, err
		}
	}
	source, err := r.Source.toRef()
	if err != nil {
		return ledger.Draft{}, err
	}
	entries := make([]ledger.EntryInput, 0, len(r.Entries))
	for _, e := range r.Entries {
		debit, err := parseAmount("debit", e.Debit)
		if err != nil {
			return ledger.Draft{}, err
		}
		credit, err := parseAmount("credit", e.Credit)
		if err != nil {
			return ledger.Draft{}, err
		}
		entries = append(entries, ledger.EntryInput{AccountID: e.AccountID, Debit: debit, Credit: credit})
	}
	return ledger.Draft{
		Description:  r.Description,
		Date:         date,
		Type:         ledger.TransactionType(r.Type),
		Source:       source,
		TotalAmount:  total,
		Currency:     r.Currency,
		ExchangeRate: rate,
		CostCenterID: r.CostCenterID,
		Tags:         r.Tags,
		Notes:        r.Notes,
		Entries:      entries,
	}, nil
}

type entrySummary struct {
	AccountID int64           `json:"account_id"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
}

// transactionSummary is the outbound transaction contract.
type transactionSummary struct {
	ID              int64           `json:"id"`
	ReferenceNumber string          `json:"reference_number"`
	Date            string          `json:"date"`
	Type            string          `json:"type"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Currency        string          `json:"currency"`
	Entries         []entrySummary  `json:"entries"`
	IsLocked        bool            `json:"is_locked"`
	ApprovedBy      *int64          `json:"approved_by"`
}

func summarizeTransaction(t ledger.Transaction) transactionSummary {
	entries := make([]entrySummary, 0, len(t.Entries))
	for _, e := range t.Entries {
		entries = append(entries, entrySummary{AccountID: e.AccountID, Debit: e.Debit, Credit: e.Credit})
	}
	return transactionSummary{
		ID:              t.ID,
		ReferenceNumber: t.ReferenceNumber,
		Date:            t.Date.Format(dateLayout),
		Type:            string(t.Type),
		TotalAmount:     t.TotalAmount,
		Currency:        t.Currency,
		Entries:         entries,
		IsLocked:        t.IsLocked,
		ApprovedBy:      t.ApprovedBy,
	}
}

type approveRequest struct {
	ApproverID int64 `json:"approver_id" validate:"required"`
}

type costCenterRequest struct {
	Code        string `json:"code" validate:"required"`
	Name        string `json:"name" validate:"required"`
	NameAr      string `json:"name_ar"`
	Description string `json:"description"`
}

type currencyRequest struct {
	Code string `json:"code" validate:"required,len=3"`
	Name string `json:"name" validate:"required"`
	Rate string `json:"rate"`
}

type rateRequest struct {
	Rate string `json:"rate" validate:"required"`
}
