package reports

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OutstandingInvoice is an invoice-linked transaction not yet settled by
// payments referencing the same invoice.
type OutstandingInvoice struct {
	InvoiceID uuid.UUID
	Reference string
	DueDate   time.Time
	Total     decimal.Decimal
	Settled   decimal.Decimal
}

// Outstanding returns the unsettled remainder.
func (o OutstandingInvoice) Outstanding() decimal.Decimal {
	return o.Total.Sub(o.Settled)
}

// AgingBucket is one time-since-due range with its outstanding total.
type AgingBucket struct {
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
}

// AgingReport groups outstanding amounts into age buckets.
type AgingReport struct {
	AsOf    time.Time       `json:"as_of"`
	Buckets []AgingBucket   `json:"buckets"`
	Total   decimal.Decimal `json:"total"`
}

var bucketLabels = []string{"Current", "1-30", "31-60", "61-90", "90+"}

func bucketIndex(dueDate, asOf time.Time) int {
	days := int(asOf.Sub(dueDate).Hours() / 24)
	switch {
	case days <= 0:
		return 0
	case days <= 30:
		return 1
	case days <= 60:
		return 2
	case days <= 90:
		return 3
	default:
		return 4
	}
}

// BuildAging measures each invoice's age from due date to asOf and sums
// the unsettled remainders per bucket. Fully settled invoices drop out.
func BuildAging(asOf time.Time, invoices []OutstandingInvoice) AgingReport {
	amounts := make([]decimal.Decimal, len(bucketLabels))
	for i := range amounts {
		amounts[i] = decimal.Zero
	}
	total := decimal.Zero
	for _, inv := range invoices {
		outstanding := inv.Outstanding()
		if outstanding.Sign() <= 0 {
			continue
		}
		idx := bucketIndex(inv.DueDate, asOf)
		amounts[idx] = amounts[idx].Add(outstanding)
		total = total.Add(outstanding)
	}
	report := AgingReport{AsOf: asOf, Total: total}
	for i, label := range bucketLabels {
		report.Buckets = append(report.Buckets, AgingBucket{Label: label, Amount: amounts[i]})
	}
	return report
}
