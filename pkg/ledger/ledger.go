package ledger

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smartspend/smartspend/pkg/planclock"
)

const DefaultCurrency = "INR"

// DefaultCategoryName names spend that has no category attached.
const DefaultCategoryName = "General"

var ErrInvalidTransactionType = errors.New("invalid transaction type")

type TransactionType string

const (
	Income  TransactionType = "INCOME"
	Expense TransactionType = "EXPENSE"
)

func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(strings.ToUpper(strings.TrimSpace(s)))
	switch t {
	case Income, Expense:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q (expected INCOME or EXPENSE)", ErrInvalidTransactionType, s)
}

// Transaction is a single ledger entry. Amount is always a magnitude, the sign comes from Type.
type Transaction struct {
	Id          string
	UserId      string
	Amount      decimal.Decimal
	Currency    string
	Type        TransactionType
	Description string
	Merchant    string
	// Date is when the transaction is recognized, not when it was stored.
	Date       time.Time
	CategoryId string
	// CategoryName is filled on reads only.
	CategoryName string
	// RecurringPlanId is set only for entries generated from a recurring plan.
	RecurringPlanId string
	IsAiGenerated   bool
	ConfidenceScore *float64
	CreatedAt       time.Time
}

func (t Transaction) IsRecurring() bool {
	return t.RecurringPlanId != ""
}

type RecurringPlan struct {
	Id        string
	UserId    string
	Name      string
	Amount    decimal.Decimal
	Currency  string
	Frequency planclock.Frequency
	Type      TransactionType
	// Category is a display tag only, scheduling ignores it.
	Category    string
	NextDueDate time.Time
	IsActive    bool
	CreatedAt   time.Time
}

// IsDue reports whether the plan should be charged at now.
func (p RecurringPlan) IsDue(now time.Time) bool {
	return p.IsActive && !p.NextDueDate.After(now)
}

type Category struct {
	Id    string
	Name  string
	Icon  string
	Color string
}

// CategoryTotal is the summed expense of one category. An empty CategoryId stands for
// uncategorized spend.
type CategoryTotal struct {
	CategoryId   string
	CategoryName string
	Total        decimal.Decimal
}

// SumFilter selects the transactions summed by Store.SumTransactions.
// From and To are both inclusive.
type SumFilter struct {
	UserId string
	Type   TransactionType
	From   time.Time
	To     time.Time
	// ManualOnly excludes entries generated from recurring plans.
	ManualOnly bool
}

func (f SumFilter) matches(t Transaction) bool {
	if t.UserId != f.UserId || t.Type != f.Type {
		return false
	}
	if t.Date.Before(f.From) || t.Date.After(f.To) {
		return false
	}
	return !f.ManualOnly || !t.IsRecurring()
}
