package ledger

import (
	"context"
	"errors"
	"flag"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/smartspend/smartspend/internal/test_utils"
	"github.com/smartspend/smartspend/pkg/planclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDB *test_utils.TestDB

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}
	var cleanup func()
	testDB, cleanup = test_utils.TestWithDB()
	code := m.Run()
	cleanup()
	os.Exit(code)
}

func setupTestStore(t *testing.T) (context.Context, Store) {
	if testDB == nil {
		t.Skip("postgres tests disabled in short mode")
	}
	return context.Background(), NewStore(testDB.Pool(t))
}

var jan20 = time.Date(2024, time.January, 20, 10, 0, 0, 0, time.UTC)

func aPlan(userId string, dueDate time.Time) RecurringPlan {
	return RecurringPlan{
		UserId:      userId,
		Name:        "Rent",
		Amount:      decimal.RequireFromString("500.00"),
		Currency:    "INR",
		Frequency:   planclock.Monthly,
		Type:        Expense,
		NextDueDate: dueDate,
		IsActive:    true,
	}
}

func TestStore_InsertAndListTransactions(t *testing.T) {
	// given
	ctx, store := setupTestStore(t)
	score := 0.87
	category, err := store.FindOrCreateCategory(ctx, "Food")
	require.NoError(t, err)

	// when
	older, err := store.InsertTransaction(ctx, Transaction{
		UserId: "u1", Amount: decimal.RequireFromString("12.50"), Currency: "INR", Type: Expense,
		Description: "Lunch", Merchant: "Cafe", Date: jan20.AddDate(0, 0, -1), CategoryId: category.Id,
		IsAiGenerated: true, ConfidenceScore: &score,
	})
	require.NoError(t, err)
	newer, err := store.InsertTransaction(ctx, Transaction{
		UserId: "u1", Amount: decimal.RequireFromString("1000"), Currency: "INR", Type: Income,
		Description: "Salary", Date: jan20,
	})
	require.NoError(t, err)
	_, err = store.InsertTransaction(ctx, Transaction{
		UserId: "u2", Amount: decimal.NewFromInt(1), Currency: "INR", Type: Expense, Date: jan20,
	})
	require.NoError(t, err)

	// then
	transactions, err := store.ListTransactions(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, transactions, 2)
	assert.Equal(t, newer.Id, transactions[0].Id)
	assert.Equal(t, older.Id, transactions[1].Id)

	stored := transactions[1]
	assert.True(t, decimal.RequireFromString("12.50").Equal(stored.Amount))
	assert.Equal(t, "Cafe", stored.Merchant)
	assert.Equal(t, "Food", stored.CategoryName)
	assert.True(t, stored.IsAiGenerated)
	require.NotNil(t, stored.ConfidenceScore)
	assert.InDelta(t, 0.87, *stored.ConfidenceScore, 1e-9)
	assert.False(t, stored.IsRecurring())
	assert.Nil(t, transactions[0].ConfidenceScore)
}

func TestStore_DeleteTransaction_OnlyOwnTransactions(t *testing.T) {
	// given
	ctx, store := setupTestStore(t)
	created, err := store.InsertTransaction(ctx, Transaction{
		UserId: "u1", Amount: decimal.NewFromInt(5), Currency: "INR", Type: Expense, Date: jan20,
	})
	require.NoError(t, err)

	// when
	deletedByOther, err := store.DeleteTransaction(ctx, "u2", created.Id)
	require.NoError(t, err)
	deletedByOwner, err := store.DeleteTransaction(ctx, "u1", created.Id)
	require.NoError(t, err)
	deletedInvalidId, err := store.DeleteTransaction(ctx, "u1", "not-a-uuid")
	require.NoError(t, err)

	// then
	assert.False(t, deletedByOther)
	assert.True(t, deletedByOwner)
	assert.False(t, deletedInvalidId)
}

func TestStore_SumTransactions(t *testing.T) {
	// given
	ctx, store := setupTestStore(t)
	plan, err := store.InsertPlan(ctx, aPlan("u1", jan20))
	require.NoError(t, err)
	from := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond)
	for _, tx := range []Transaction{
		{UserId: "u1", Amount: decimal.RequireFromString("10.10"), Type: Expense, Date: from},
		{UserId: "u1", Amount: decimal.RequireFromString("20.20"), Type: Expense, Date: jan20},
		{UserId: "u1", Amount: decimal.RequireFromString("500"), Type: Expense, Date: jan20, RecurringPlanId: plan.Id},
		{UserId: "u1", Amount: decimal.RequireFromString("99"), Type: Expense, Date: to.Add(time.Nanosecond)},
		{UserId: "u1", Amount: decimal.RequireFromString("1000"), Type: Income, Date: jan20},
		{UserId: "u2", Amount: decimal.RequireFromString("7"), Type: Expense, Date: jan20},
	} {
		tx.Currency = "INR"
		_, err := store.InsertTransaction(ctx, tx)
		require.NoError(t, err)
	}

	// when
	all, err := store.SumTransactions(ctx, SumFilter{UserId: "u1", Type: Expense, From: from, To: to})
	require.NoError(t, err)
	manual, err := store.SumTransactions(ctx, SumFilter{UserId: "u1", Type: Expense, From: from, To: to, ManualOnly: true})
	require.NoError(t, err)
	none, err := store.SumTransactions(ctx, SumFilter{UserId: "nobody", Type: Expense, From: from, To: to})
	require.NoError(t, err)

	// then
	assert.Equal(t, "530.3", all.String())
	assert.Equal(t, "30.3", manual.String())
	assert.True(t, none.IsZero())
}

func TestStore_TopExpenseCategory(t *testing.T) {
	from := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, time.January, 31, 23, 59, 59, 0, time.UTC)

	t.Run("largest total wins", func(t *testing.T) {
		ctx, store := setupTestStore(t)
		food, _ := store.FindOrCreateCategory(ctx, "Food")
		travel, _ := store.FindOrCreateCategory(ctx, "Travel")
		insertExpense(t, ctx, store, "40", food.Id)
		insertExpense(t, ctx, store, "30", travel.Id)
		insertExpense(t, ctx, store, "30", travel.Id)

		top, found, err := store.TopExpenseCategory(ctx, "u1", from, to)

		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "Travel", top.CategoryName)
		assert.Equal(t, "60", top.Total.String())
	})

	t.Run("uncategorized loses ties", func(t *testing.T) {
		ctx, store := setupTestStore(t)
		food, _ := store.FindOrCreateCategory(ctx, "Food")
		insertExpense(t, ctx, store, "50", "")
		insertExpense(t, ctx, store, "50", food.Id)

		top, found, err := store.TopExpenseCategory(ctx, "u1", from, to)

		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, food.Id, top.CategoryId)
	})

	t.Run("no expenses", func(t *testing.T) {
		ctx, store := setupTestStore(t)

		_, found, err := store.TopExpenseCategory(ctx, "u1", from, to)

		require.NoError(t, err)
		assert.False(t, found)
	})
}

func insertExpense(t *testing.T, ctx context.Context, store Store, amount string, categoryId string) {
	t.Helper()
	_, err := store.InsertTransaction(ctx, Transaction{
		UserId: "u1", Amount: decimal.RequireFromString(amount), Currency: "INR", Type: Expense,
		Date: jan20, CategoryId: categoryId,
	})
	require.NoError(t, err)
}

func TestStore_FindOrCreateCategory_IsIdempotent(t *testing.T) {
	ctx, store := setupTestStore(t)

	first, err := store.FindOrCreateCategory(ctx, "Utilities")
	require.NoError(t, err)
	second, err := store.FindOrCreateCategory(ctx, "Utilities")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestStore_Plans(t *testing.T) {
	t.Run("insert and get", func(t *testing.T) {
		ctx, store := setupTestStore(t)
		plan := aPlan("u1", jan20)
		plan.Category = "Housing"

		created, err := store.InsertPlan(ctx, plan)
		require.NoError(t, err)
		stored, err := store.GetPlan(ctx, created.Id)
		require.NoError(t, err)

		assert.Equal(t, "Rent", stored.Name)
		assert.Equal(t, "Housing", stored.Category)
		assert.Equal(t, planclock.Monthly, stored.Frequency)
		assert.Equal(t, Expense, stored.Type)
		assert.True(t, stored.NextDueDate.Equal(jan20))
		assert.True(t, stored.IsActive)
	})

	t.Run("get unknown plan", func(t *testing.T) {
		ctx, store := setupTestStore(t)

		_, errUnknown := store.GetPlan(ctx, uuid.NewString())
		_, errInvalid := store.GetPlan(ctx, "42")

		assert.ErrorIs(t, errUnknown, ErrPlanNotFound)
		assert.ErrorIs(t, errInvalid, ErrPlanNotFound)
	})

	t.Run("list active plans newest first", func(t *testing.T) {
		ctx, store := setupTestStore(t)
		first, _ := store.InsertPlan(ctx, aPlan("u1", jan20))
		second, _ := store.InsertPlan(ctx, aPlan("u1", jan20))
		inactive, _ := store.InsertPlan(ctx, aPlan("u1", jan20))
		_, _ = store.InsertPlan(ctx, aPlan("u2", jan20))
		ok, err := store.DeactivatePlan(ctx, "u1", inactive.Id)
		require.NoError(t, err)
		require.True(t, ok)

		plans, err := store.ListActivePlans(ctx, "u1")

		require.NoError(t, err)
		require.Len(t, plans, 2)
		assert.Equal(t, second.Id, plans[0].Id)
		assert.Equal(t, first.Id, plans[1].Id)
	})

	t.Run("deactivate only own active plan", func(t *testing.T) {
		ctx, store := setupTestStore(t)
		plan, _ := store.InsertPlan(ctx, aPlan("u1", jan20))

		byOther, err := store.DeactivatePlan(ctx, "u2", plan.Id)
		require.NoError(t, err)
		byOwner, err := store.DeactivatePlan(ctx, "u1", plan.Id)
		require.NoError(t, err)
		again, err := store.DeactivatePlan(ctx, "u1", plan.Id)
		require.NoError(t, err)

		assert.False(t, byOther)
		assert.True(t, byOwner)
		assert.False(t, again)
	})
}

func TestStore_FindDuePlans_PagesById(t *testing.T) {
	// given
	ctx, store := setupTestStore(t)
	var dueIds []string
	for i := 0; i < 5; i++ {
		plan, err := store.InsertPlan(ctx, aPlan("u1", jan20.AddDate(0, 0, -i)))
		require.NoError(t, err)
		dueIds = append(dueIds, plan.Id)
	}
	_, err := store.InsertPlan(ctx, aPlan("u1", jan20.Add(time.Second)))
	require.NoError(t, err)
	inactive := aPlan("u1", jan20.AddDate(0, -1, 0))
	inactive.IsActive = false
	_, err = store.InsertPlan(ctx, inactive)
	require.NoError(t, err)

	// when
	var seen []string
	afterId := ""
	for {
		page, err := store.FindDuePlans(ctx, jan20, afterId, 2)
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		for _, p := range page {
			seen = append(seen, p.Id)
		}
		afterId = page[len(page)-1].Id
	}

	// then
	assert.ElementsMatch(t, dueIds, seen)
	assert.IsIncreasing(t, seen)
}

func TestStore_AdvancePlan_ComparesDueDate(t *testing.T) {
	// given
	ctx, store := setupTestStore(t)
	plan, err := store.InsertPlan(ctx, aPlan("u1", jan20))
	require.NoError(t, err)
	next := jan20.AddDate(0, 1, 0)

	// when
	first, err := store.AdvancePlan(ctx, plan.Id, jan20, next)
	require.NoError(t, err)
	second, err := store.AdvancePlan(ctx, plan.Id, jan20, next.AddDate(0, 1, 0))
	require.NoError(t, err)

	// then
	assert.True(t, first)
	assert.False(t, second)
	stored, err := store.GetPlan(ctx, plan.Id)
	require.NoError(t, err)
	assert.True(t, stored.NextDueDate.Equal(next))
}

func TestStore_WithTransaction(t *testing.T) {
	t.Run("commits all writes", func(t *testing.T) {
		ctx, store := setupTestStore(t)
		plan, _ := store.InsertPlan(ctx, aPlan("u1", jan20))

		err := store.WithTransaction(ctx, func(tx Store) error {
			if _, err := tx.AdvancePlan(ctx, plan.Id, jan20, jan20.AddDate(0, 1, 0)); err != nil {
				return err
			}
			_, err := tx.InsertTransaction(ctx, Transaction{
				UserId: "u1", Amount: plan.Amount, Currency: "INR", Type: Expense, Date: jan20,
				RecurringPlanId: plan.Id,
			})
			return err
		})

		require.NoError(t, err)
		generated, err := store.ListPlanTransactions(ctx, plan.Id)
		require.NoError(t, err)
		assert.Len(t, generated, 1)
		assert.True(t, generated[0].IsRecurring())
	})

	t.Run("rolls back all writes on error", func(t *testing.T) {
		ctx, store := setupTestStore(t)
		plan, _ := store.InsertPlan(ctx, aPlan("u1", jan20))
		failure := errors.New("boom")

		err := store.WithTransaction(ctx, func(tx Store) error {
			if _, err := tx.AdvancePlan(ctx, plan.Id, jan20, jan20.AddDate(0, 1, 0)); err != nil {
				return err
			}
			if _, err := tx.InsertTransaction(ctx, Transaction{
				UserId: "u1", Amount: plan.Amount, Currency: "INR", Type: Expense, Date: jan20,
				RecurringPlanId: plan.Id,
			}); err != nil {
				return err
			}
			return failure
		})

		assert.ErrorIs(t, err, failure)
		stored, err := store.GetPlan(ctx, plan.Id)
		require.NoError(t, err)
		assert.True(t, stored.NextDueDate.Equal(jan20))
		generated, err := store.ListPlanTransactions(ctx, plan.Id)
		require.NoError(t, err)
		assert.Empty(t, generated)
	})
}
