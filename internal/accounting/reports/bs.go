package reports

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aurum-erp/aurum-erp/internal/accounting/coa"
)

// Line is a labelled amount inside a report section.
type Line struct {
	Code   string          `json:"code,omitempty"`
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
}

// Section groups lines under one classification.
type Section struct {
	Label string          `json:"label"`
	Lines []Line          `json:"lines"`
	Total decimal.Decimal `json:"total"`
}

func (s *Section) add(line Line) {
	s.Lines = append(s.Lines, line)
	s.Total = s.Total.Add(line.Amount)
}

func (s *Section) sortByCode() {
	sort.Slice(s.Lines, func(i, j int) bool { return s.Lines[i].Code < s.Lines[j].Code })
}

// BalanceSheet is the structured assets vs liabilities+equity view.
type BalanceSheet struct {
	AsOf                      time.Time       `json:"as_of"`
	Assets                    Section         `json:"assets"`
	Liabilities               Section         `json:"liabilities"`
	Equity                    Section         `json:"equity"`
	TotalLiabilitiesAndEquity decimal.Decimal `json:"total_liabilities_and_equity"`
}

// BuildBalanceSheet aggregates account closings into sections. Equity
// carries an accumulated net income line so the statement ties out:
// revenue and expense accounts are never closed in this ledger.
func BuildBalanceSheet(asOf time.Time, accounts []AccountRow) BalanceSheet {
	assets := Section{Label: "Assets"}
	liabilities := Section{Label: "Liabilities"}
	equity := Section{Label: "Equity"}
	netIncome := decimal.Zero

	for _, acc := range accounts {
		closing := acc.Closing()
		line := Line{Code: acc.Code, Label: acc.Name, Amount: closing}
		switch acc.Type {
		case coa.AccountTypeAsset:
			assets.add(line)
		case coa.AccountTypeLiability:
			liabilities.add(line)
		case coa.AccountTypeEquity:
			equity.add(line)
		case coa.AccountTypeRevenue:
			netIncome = netIncome.Add(closing)
		case coa.AccountTypeExpense:
			netIncome = netIncome.Sub(closing)
		}
	}

	assets.sortByCode()
	liabilities.sortByCode()
	equity.sortByCode()
	equity.add(Line{Label: "Accumulated Net Income", Amount: netIncome})

	return BalanceSheet{
		AsOf:                      asOf,
		Assets:                    assets,
		Liabilities:               liabilities,
		Equity:                    equity,
		TotalLiabilitiesAndEquity: liabilities.Total.Add(equity.Total),
	}
}
