package coa

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountType enumerates chart of accounts categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// Valid reports whether the type is a known category.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// Side identifies which posting side increases an account's balance.
type Side string

const (
	SideDebit  Side = "DEBIT"
	SideCredit Side = "CREDIT"
)

// NormalSide returns the conventional balance side for the type.
func (t AccountType) NormalSide() Side {
	switch t {
	case AccountTypeAsset, AccountTypeExpense:
		return SideDebit
	default:
		return SideCredit
	}
}

// Well-known subtypes the report generators key on.
const (
	SubtypeCash       = "cash"
	SubtypeBank       = "bank"
	SubtypeReceivable = "accounts_receivable"
	SubtypePayable    = "accounts_payable"
)

// Account models a chart of accounts node. CurrentBalance is a cache
// maintained by the ledger engine; ComputeBalance is the ground truth.
type Account struct {
	ID             int64
	Code           string
	Name           string
	NameAr         string
	Type           AccountType
	Subtype        string
	ParentID       *int64
	Currency       string
	OpeningBalance decimal.Decimal
	CurrentBalance decimal.Decimal
	BalanceVersion int64
	IsActive       bool
	IsSystem       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsCashLike reports whether the account feeds the cash flow statement.
func (a Account) IsCashLike() bool {
	return a.Subtype == SubtypeCash || a.Subtype == SubtypeBank
}

// EntrySum aggregates posted debit and credit totals for an account.
type EntrySum struct {
	Debit  decimal.Decimal
	Credit decimal.Decimal
}

// Signed converts the sum into a balance movement per the account's
// normal side: +debit/-credit for debit-normal accounts, inverted for
// credit-normal ones.
func (s EntrySum) Signed(t AccountType) decimal.Decimal {
	if t.NormalSide() == SideDebit {
		return s.Debit.Sub(s.Credit)
	}
	return s.Credit.Sub(s.Debit)
}

// SignedAmount applies the same convention to a single debit/credit pair.
func SignedAmount(t AccountType, debit, credit decimal.Decimal) decimal.Decimal {
	return EntrySum{Debit: debit, Credit: credit}.Signed(t)
}
