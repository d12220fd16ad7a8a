package dashboard

import (
	"time"

	"github.com/shopspring/decimal"
)

// Dashboard summarizes one calendar month of a user's ledger.
type Dashboard struct {
	From        time.Time
	To          time.Time
	Income      decimal.Decimal
	Expense     decimal.Decimal
	Savings     decimal.Decimal
	SavingsRate decimal.Decimal
}

type TopCategory struct {
	// Id is empty for uncategorized spend and when there was no expense at all.
	Id     string
	Name   string
	Amount decimal.Decimal
}

// Snapshot is the financial position used to answer affordability questions.
type Snapshot struct {
	MonthlyIncomeActual decimal.Decimal
	RecurringIncome     decimal.Decimal
	FixedExpenses       decimal.Decimal
	EffectiveIncome     decimal.Decimal
	AvgVariableExpenses decimal.Decimal
	Surplus             decimal.Decimal
	TopCategory         TopCategory
}

// MonthWindow returns the first and the last instant of the calendar month containing now,
// in now's location.
func MonthWindow(now time.Time) (time.Time, time.Time) {
	year, month, _ := now.Date()
	from := time.Date(year, month, 1, 0, 0, 0, 0, now.Location())
	to := from.AddDate(0, 1, 0).Add(-time.Nanosecond)
	return from, to
}
