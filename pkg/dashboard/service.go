package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/smartspend/smartspend/pkg/ledger"
)

const (
	// variableSpendDays is the trailing window of manual spend used for the monthly average.
	variableSpendDays = 60
	// variableSpendMonths normalizes the trailing window to one month. It is fixed, not derived
	// from the window length in days.
	variableSpendMonths = 2
)

var (
	hundred = decimal.NewFromInt(100)
	half    = decimal.NewFromFloat(0.5)
)

type Service interface {
	ComputeDashboard(ctx context.Context, userId string, now time.Time) (Dashboard, error)
	ComputeAffordabilitySnapshot(ctx context.Context, userId string, now time.Time) (Snapshot, error)
}

type ServiceImpl struct {
	store ledger.Store
}

func NewService(store ledger.Store) *ServiceImpl {
	return &ServiceImpl{store: store}
}

func (s *ServiceImpl) ComputeDashboard(ctx context.Context, userId string, now time.Time) (Dashboard, error) {
	from, to := MonthWindow(now)
	income, err := s.sum(ctx, userId, ledger.Income, from, to, false)
	if err != nil {
		return Dashboard{}, err
	}
	expense, err := s.sum(ctx, userId, ledger.Expense, from, to, false)
	if err != nil {
		return Dashboard{}, err
	}
	savings := income.Sub(expense)
	log.Tracef("dashboard for user %s [%s, %s]: income %s, expense %s", userId, from, to, income, expense)

	return Dashboard{
		From:        from,
		To:          to,
		Income:      income,
		Expense:     expense,
		Savings:     savings,
		SavingsRate: SavingsRate(income, savings),
	}, nil
}

// SavingsRate is savings as a percentage of income rounded to one decimal, halves towards
// positive infinity (-6.25 gives -6.2). It is zero when there is no income.
func SavingsRate(income, savings decimal.Decimal) decimal.Decimal {
	if !income.IsPositive() {
		return decimal.Zero
	}
	return roundHalfUp(savings.Mul(hundred).Div(income), 1)
}

func roundHalfUp(d decimal.Decimal, places int32) decimal.Decimal {
	return d.Shift(places).Add(half).Floor().Shift(-places)
}

func (s *ServiceImpl) ComputeAffordabilitySnapshot(ctx context.Context, userId string, now time.Time) (Snapshot, error) {
	from, to := MonthWindow(now)
	actualIncome, err := s.sum(ctx, userId, ledger.Income, from, to, false)
	if err != nil {
		return Snapshot{}, err
	}

	plans, err := s.store.ListActivePlans(ctx, userId)
	if err != nil {
		return Snapshot{}, fmt.Errorf("could not load recurring plans: %w", err)
	}
	recurringIncome, fixedExpenses := decimal.Zero, decimal.Zero
	for _, plan := range plans {
		switch plan.Type {
		case ledger.Income:
			recurringIncome = recurringIncome.Add(plan.Amount)
		case ledger.Expense:
			fixedExpenses = fixedExpenses.Add(plan.Amount)
		}
	}

	variableSpend, err := s.sum(ctx, userId, ledger.Expense, now.AddDate(0, 0, -variableSpendDays), now, true)
	if err != nil {
		return Snapshot{}, err
	}
	avgVariable := variableSpend.Div(decimal.NewFromInt(variableSpendMonths))

	topCategory, err := s.topCategory(ctx, userId, from, to)
	if err != nil {
		return Snapshot{}, err
	}

	effectiveIncome := decimal.Max(actualIncome, recurringIncome)
	return Snapshot{
		MonthlyIncomeActual: actualIncome,
		RecurringIncome:     recurringIncome,
		FixedExpenses:       fixedExpenses,
		EffectiveIncome:     effectiveIncome,
		AvgVariableExpenses: avgVariable,
		Surplus:             effectiveIncome.Sub(fixedExpenses).Sub(avgVariable),
		TopCategory:         topCategory,
	}, nil
}

func (s *ServiceImpl) topCategory(ctx context.Context, userId string, from, to time.Time) (TopCategory, error) {
	total, found, err := s.store.TopExpenseCategory(ctx, userId, from, to)
	if err != nil {
		return TopCategory{}, fmt.Errorf("could not find top expense category: %w", err)
	}
	if !found {
		return TopCategory{Name: ledger.DefaultCategoryName, Amount: decimal.Zero}, nil
	}
	if total.CategoryId == "" {
		return TopCategory{Name: ledger.DefaultCategoryName, Amount: total.Total}, nil
	}
	return TopCategory{Id: total.CategoryId, Name: total.CategoryName, Amount: total.Total}, nil
}

func (s *ServiceImpl) sum(ctx context.Context, userId string, t ledger.TransactionType, from, to time.Time, manualOnly bool) (decimal.Decimal, error) {
	total, err := s.store.SumTransactions(ctx, ledger.SumFilter{
		UserId:     userId,
		Type:       t,
		From:       from,
		To:         to,
		ManualOnly: manualOnly,
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("could not sum %s transactions: %w", t, err)
	}
	return total, nil
}
