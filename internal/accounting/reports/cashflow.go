package reports

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aurum-erp/aurum-erp/internal/accounting/ledger"
)

// Activity classifies cash movements for the cash flow statement.
type Activity string

const (
	ActivityOperating Activity = "OPERATING"
	ActivityInvesting Activity = "INVESTING"
	ActivityFinancing Activity = "FINANCING"
)

// ClassifyActivity maps a transaction to a cash flow activity. The
// source document wins when it carries one: invoice and
// recurring-invoice flows trade goods, asset disposals are investing.
// Manually keyed transactions fall back to the transaction type —
// trading and corrective types are operating, while plain journals
// (capital, drawings, loans) are financing.
func ClassifyActivity(t ledger.TransactionType, source ledger.SourceRef) Activity {
	switch source.(type) {
	case ledger.InvoiceSource, ledger.RecurringInvoiceSource:
		return ActivityOperating
	case ledger.AssetDisposalSource:
		return ActivityInvesting
	}
	switch t {
	case ledger.TypeInvoice, ledger.TypePayment, ledger.TypeRecurring, ledger.TypeAdjustment:
		return ActivityOperating
	default:
		return ActivityFinancing
	}
}

// CashMovement is one transaction's net effect on cash-like accounts.
type CashMovement struct {
	TransactionID int64
	Reference     string
	Description   string
	Date          time.Time
	Type          ledger.TransactionType
	Source        ledger.SourceRef
	Inflow        decimal.Decimal
	Outflow       decimal.Decimal
}

// CashFlowSection accumulates movements for one activity.
type CashFlowSection struct {
	Label   string          `json:"label"`
	Lines   []Line          `json:"lines"`
	Inflow  decimal.Decimal `json:"inflow"`
	Outflow decimal.Decimal `json:"outflow"`
	Net     decimal.Decimal `json:"net"`
}

// CashFlowStatement summarises cash and bank movements over a range.
type CashFlowStatement struct {
	Start     time.Time       `json:"start"`
	End       time.Time       `json:"end"`
	Operating CashFlowSection `json:"operating"`
	Investing CashFlowSection `json:"investing"`
	Financing CashFlowSection `json:"financing"`
	NetChange decimal.Decimal `json:"net_change"`
}

// BuildCashFlowStatement groups cash movements by activity.
func BuildCashFlowStatement(start, end time.Time, movements []CashMovement) CashFlowStatement {
	sort.Slice(movements, func(i, j int) bool {
		if movements[i].Date.Equal(movements[j].Date) {
			return movements[i].TransactionID < movements[j].TransactionID
		}
		return movements[i].Date.Before(movements[j].Date)
	})

	operating := CashFlowSection{Label: "Operating Activities"}
	investing := CashFlowSection{Label: "Investing Activities"}
	financing := CashFlowSection{Label: "Financing Activities"}

	for _, m := range movements {
		section := &operating
		switch ClassifyActivity(m.Type, m.Source) {
		case ActivityInvesting:
			section = &investing
		case ActivityFinancing:
			section = &financing
		}
		label := m.Reference
		if m.Description != "" {
			label += " " + m.Description
		}
		net := m.Inflow.Sub(m.Outflow)
		section.Lines = append(section.Lines, Line{Label: label, Amount: net})
		section.Inflow = section.Inflow.Add(m.Inflow)
		section.Outflow = section.Outflow.Add(m.Outflow)
		section.Net = section.Net.Add(net)
	}

	return CashFlowStatement{
		Start:     start,
		End:       end,
		Operating: operating,
		Investing: investing,
		Financing: financing,
		NetChange: operating.Net.Add(investing.Net).Add(financing.Net),
	}
}
