package reports

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aurum-erp/aurum-erp/internal/accounting/coa"
)

// AccountRow carries one account's own aggregates: its opening balance
// and the debit/credit totals of entries posted directly against it.
// Descendant roll-ups are presented through code-prefix groups instead,
// so report totals never count an entry twice.
type AccountRow struct {
	AccountID int64
	Code      string
	Name      string
	Type      coa.AccountType
	Opening   decimal.Decimal
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

// Closing computes the account's own closing balance per its normal side.
func (r AccountRow) Closing() decimal.Decimal {
	return r.Opening.Add(coa.SignedAmount(r.Type, r.Debit, r.Credit))
}

// GroupKey returns the code prefix used for grouping report rows.
func (r AccountRow) GroupKey() string {
	if idx := strings.Index(r.Code, "."); idx > 0 {
		return r.Code[:idx]
	}
	if len(r.Code) >= 2 {
		return r.Code[:2]
	}
	return r.Code
}

// TrialBalanceRow is one account displayed in its normal-side column.
type TrialBalanceRow struct {
	Code   string          `json:"code"`
	Name   string          `json:"name"`
	Debit  decimal.Decimal `json:"debit"`
	Credit decimal.Decimal `json:"credit"`
}

// TrialBalanceGroup aggregates rows sharing a code prefix.
type TrialBalanceGroup struct {
	Key    string            `json:"key"`
	Rows   []TrialBalanceRow `json:"rows"`
	Debit  decimal.Decimal   `json:"debit"`
	Credit decimal.Decimal   `json:"credit"`
}

// TrialBalance is the rendered report. TotalDebit equals TotalCredit
// whenever every posted transaction balanced.
type TrialBalance struct {
	AsOf        time.Time           `json:"as_of"`
	Groups      []TrialBalanceGroup `json:"groups"`
	TotalDebit  decimal.Decimal     `json:"total_debit"`
	TotalCredit decimal.Decimal     `json:"total_credit"`
}

// BuildTrialBalance places every account's closing balance into its
// debit or credit column and groups rows by code prefix.
func BuildTrialBalance(asOf time.Time, accounts []AccountRow) TrialBalance {
	groups := make(map[string]*TrialBalanceGroup)
	var keys []string
	for _, acc := range accounts {
		row := TrialBalanceRow{Code: acc.Code, Name: acc.Name}
		closing := acc.Closing()
		switch {
		case acc.Type.NormalSide() == coa.SideDebit && closing.Sign() >= 0:
			row.Debit = closing
		case acc.Type.NormalSide() == coa.SideDebit:
			row.Credit = closing.Neg()
		case closing.Sign() >= 0:
			row.Credit = closing
		default:
			row.Debit = closing.Neg()
		}
		key := acc.GroupKey()
		grp, ok := groups[key]
		if !ok {
			grp = &TrialBalanceGroup{Key: key}
			groups[key] = grp
			keys = append(keys, key)
		}
		grp.Rows = append(grp.Rows, row)
		grp.Debit = grp.Debit.Add(row.Debit)
		grp.Credit = grp.Credit.Add(row.Credit)
	}

	sort.Strings(keys)
	result := TrialBalance{AsOf: asOf}
	for _, key := range keys {
		grp := groups[key]
		sort.Slice(grp.Rows, func(i, j int) bool { return grp.Rows[i].Code < grp.Rows[j].Code })
		result.Groups = append(result.Groups, *grp)
		result.TotalDebit = result.TotalDebit.Add(grp.Debit)
		result.TotalCredit = result.TotalCredit.Add(grp.Credit)
	}
	return result
}
