package reports

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/aurum-erp/aurum-erp/internal/accounting/coa"
)

// IncomeStatement is the revenue minus expense view over a date range.
type IncomeStatement struct {
	Start     time.Time       `json:"start"`
	End       time.Time       `json:"end"`
	Revenue   Section         `json:"revenue"`
	Expense   Section         `json:"expense"`
	NetProfit decimal.Decimal `json:"net_profit"`
}

// BuildIncomeStatement sums entry movements inside the range only; the
// rows' Opening field is ignored since revenue and expense accounts are
// never closed and their cumulative balances would overstate the period.
func BuildIncomeStatement(start, end time.Time, accounts []AccountRow) IncomeStatement {
	revenue := Section{Label: "Revenue"}
	expense := Section{Label: "Expense"}

	for _, acc := range accounts {
		switch acc.Type {
		case coa.AccountTypeRevenue:
			amount := acc.Credit.Sub(acc.Debit)
			if !amount.IsZero() {
				revenue.add(Line{Code: acc.Code, Label: acc.Name, Amount: amount})
			}
		case coa.AccountTypeExpense:
			amount := acc.Debit.Sub(acc.Credit)
			if !amount.IsZero() {
				expense.add(Line{Code: acc.Code, Label: acc.Name, Amount: amount})
			}
		}
	}

	revenue.sortByCode()
	expense.sortByCode()

	return IncomeStatement{
		Start:     start,
		End:       end,
		Revenue:   revenue,
		Expense:   expense,
		NetProfit: revenue.Total.Sub(expense.Total),
	}
}
