package ledger

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StoreStub is an in-memory Store used by tests of the packages built on top of the ledger.
// WithTransaction keeps a snapshot of the state and restores it when fn fails.
type StoreStub struct {
	mu           sync.Mutex
	plans        map[string]RecurringPlan
	transactions []Transaction
	categories   map[string]Category

	duePlansErr    error
	failInsert     map[string]error // planId -> error
	failAdvance    map[string]error // planId -> error
	advanceHook    func(planId string)
	insertSequence int
}

func NewStoreStub() *StoreStub {
	s := &StoreStub{}
	s.Reset()
	return s
}

type stubSnapshot struct {
	plans        map[string]RecurringPlan
	transactions []Transaction
	categories   map[string]Category
}

func (s *StoreStub) snapshot() stubSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	plans := make(map[string]RecurringPlan, len(s.plans))
	for k, v := range s.plans {
		plans[k] = v
	}
	categories := make(map[string]Category, len(s.categories))
	for k, v := range s.categories {
		categories[k] = v
	}
	return stubSnapshot{
		plans:        plans,
		transactions: slices.Clone(s.transactions),
		categories:   categories,
	}
}

// WithTransaction rolls back only the writes made through this call. Concurrent units touching
// disjoint plans are restored independently.
func (s *StoreStub) WithTransaction(ctx context.Context, fn func(tx Store) error) error {
	tx := &stubTx{StoreStub: s, before: s.snapshot()}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

// stubTx records the plan and transaction ids written inside one WithTransaction call.
type stubTx struct {
	*StoreStub
	before            stubSnapshot
	touchedPlans      []string
	insertedTxIds     []string
	createdCategories []string
}

func (tx *stubTx) WithTransaction(ctx context.Context, fn func(tx Store) error) error {
	return fn(tx)
}

func (tx *stubTx) InsertTransaction(ctx context.Context, t Transaction) (Transaction, error) {
	inserted, err := tx.StoreStub.InsertTransaction(ctx, t)
	if err == nil {
		tx.insertedTxIds = append(tx.insertedTxIds, inserted.Id)
	}
	return inserted, err
}

func (tx *stubTx) InsertPlan(ctx context.Context, plan RecurringPlan) (RecurringPlan, error) {
	inserted, err := tx.StoreStub.InsertPlan(ctx, plan)
	if err == nil {
		tx.touchedPlans = append(tx.touchedPlans, inserted.Id)
	}
	return inserted, err
}

func (tx *stubTx) AdvancePlan(ctx context.Context, planId string, expected time.Time, next time.Time) (bool, error) {
	ok, err := tx.StoreStub.AdvancePlan(ctx, planId, expected, next)
	if ok {
		tx.touchedPlans = append(tx.touchedPlans, planId)
	}
	return ok, err
}

func (tx *stubTx) DeactivatePlan(ctx context.Context, userId string, planId string) (bool, error) {
	ok, err := tx.StoreStub.DeactivatePlan(ctx, userId, planId)
	if ok {
		tx.touchedPlans = append(tx.touchedPlans, planId)
	}
	return ok, err
}

func (tx *stubTx) FindOrCreateCategory(ctx context.Context, name string) (Category, error) {
	_, existed := tx.before.categories[name]
	c, err := tx.StoreStub.FindOrCreateCategory(ctx, name)
	if err == nil && !existed {
		tx.createdCategories = append(tx.createdCategories, name)
	}
	return c, err
}

func (tx *stubTx) rollback() {
	s := tx.StoreStub
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range tx.touchedPlans {
		if previous, ok := tx.before.plans[id]; ok {
			s.plans[id] = previous
		} else {
			delete(s.plans, id)
		}
	}
	s.transactions = slices.DeleteFunc(s.transactions, func(t Transaction) bool {
		return slices.Contains(tx.insertedTxIds, t.Id)
	})
	for _, name := range tx.createdCategories {
		delete(s.categories, name)
	}
}

func (s *StoreStub) InsertTransaction(ctx context.Context, t Transaction) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return Transaction{}, err
	}
	if err, ok := s.failInsert[t.RecurringPlanId]; ok && t.RecurringPlanId != "" {
		return Transaction{}, err
	}
	if t.Id == "" {
		t.Id = uuid.NewString()
	}
	s.insertSequence++
	// distinct, increasing creation times keep newest-first ordering deterministic
	t.CreatedAt = time.Unix(0, 0).UTC().Add(time.Duration(s.insertSequence) * time.Millisecond)
	s.transactions = append(s.transactions, t)
	return t, nil
}

func (s *StoreStub) ListTransactions(ctx context.Context, userId string) ([]Transaction, error) {
	return s.filterTransactions(func(t Transaction) bool { return t.UserId == userId }), nil
}

func (s *StoreStub) ListPlanTransactions(ctx context.Context, planId string) ([]Transaction, error) {
	return s.filterTransactions(func(t Transaction) bool { return t.RecurringPlanId == planId }), nil
}

func (s *StoreStub) filterTransactions(keep func(t Transaction) bool) []Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]Transaction, 0)
	for _, t := range s.transactions {
		if keep(t) {
			t.CategoryName = s.categoryName(t.CategoryId)
			result = append(result, t)
		}
	}
	slices.SortStableFunc(result, func(a, b Transaction) int {
		if c := b.Date.Compare(a.Date); c != 0 {
			return c
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return result
}

func (s *StoreStub) categoryName(id string) string {
	for _, c := range s.categories {
		if c.Id == id {
			return c.Name
		}
	}
	return ""
}

func (s *StoreStub) DeleteTransaction(ctx context.Context, userId string, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := len(s.transactions)
	s.transactions = slices.DeleteFunc(s.transactions, func(t Transaction) bool {
		return t.Id == id && t.UserId == userId
	})
	return len(s.transactions) < before, nil
}

func (s *StoreStub) SumTransactions(ctx context.Context, filter SumFilter) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := decimal.Zero
	for _, t := range s.transactions {
		if filter.matches(t) {
			sum = sum.Add(t.Amount)
		}
	}
	return sum, nil
}

func (s *StoreStub) TopExpenseCategory(ctx context.Context, userId string, from, to time.Time) (CategoryTotal, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	filter := SumFilter{UserId: userId, Type: Expense, From: from, To: to}
	totals := make(map[string]decimal.Decimal)
	for _, t := range s.transactions {
		if filter.matches(t) {
			totals[t.CategoryId] = totals[t.CategoryId].Add(t.Amount)
		}
	}
	if len(totals) == 0 {
		return CategoryTotal{}, false, nil
	}

	ids := make([]string, 0, len(totals))
	for id := range totals {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int {
		if c := totals[b].Cmp(totals[a]); c != 0 {
			return c
		}
		// uncategorized sorts last
		if a == "" {
			return 1
		}
		if b == "" {
			return -1
		}
		return strings.Compare(a, b)
	})
	top := ids[0]
	return CategoryTotal{CategoryId: top, CategoryName: s.categoryName(top), Total: totals[top]}, true, nil
}

func (s *StoreStub) FindOrCreateCategory(ctx context.Context, name string) (Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.categories[name]; ok {
		return c, nil
	}
	c := Category{Id: uuid.NewString(), Name: name, Icon: "tag", Color: "#cccccc"}
	s.categories[name] = c
	return c, nil
}

func (s *StoreStub) InsertPlan(ctx context.Context, plan RecurringPlan) (RecurringPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if plan.Id == "" {
		plan.Id = uuid.NewString()
	}
	if _, exists := s.plans[plan.Id]; exists {
		return RecurringPlan{}, fmt.Errorf("could not insert recurring plan: duplicate id %s", plan.Id)
	}
	s.insertSequence++
	plan.CreatedAt = time.Unix(0, 0).UTC().Add(time.Duration(s.insertSequence) * time.Millisecond)
	s.plans[plan.Id] = plan
	return plan, nil
}

func (s *StoreStub) GetPlan(ctx context.Context, planId string) (RecurringPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	plan, ok := s.plans[planId]
	if !ok {
		return RecurringPlan{}, ErrPlanNotFound
	}
	return plan, nil
}

func (s *StoreStub) ListActivePlans(ctx context.Context, userId string) ([]RecurringPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]RecurringPlan, 0)
	for _, p := range s.plans {
		if p.UserId == userId && p.IsActive {
			result = append(result, p)
		}
	}
	slices.SortFunc(result, func(a, b RecurringPlan) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.Id, a.Id)
	})
	return result, nil
}

func (s *StoreStub) FindDuePlans(ctx context.Context, now time.Time, afterId string, limit int) ([]RecurringPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.duePlansErr != nil {
		return nil, s.duePlansErr
	}
	due := make([]RecurringPlan, 0)
	for _, p := range s.plans {
		if p.IsDue(now) && p.Id > afterId {
			due = append(due, p)
		}
	}
	slices.SortFunc(due, func(a, b RecurringPlan) int { return strings.Compare(a.Id, b.Id) })
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *StoreStub) AdvancePlan(ctx context.Context, planId string, expected time.Time, next time.Time) (bool, error) {
	if hook := s.hook(); hook != nil {
		hook(planId)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err, ok := s.failAdvance[planId]; ok {
		return false, err
	}
	plan, ok := s.plans[planId]
	if !ok || !plan.IsActive || !plan.NextDueDate.Equal(expected) {
		return false, nil
	}
	plan.NextDueDate = next
	s.plans[planId] = plan
	return true, nil
}

func (s *StoreStub) hook() func(string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.advanceHook
}

func (s *StoreStub) DeactivatePlan(ctx context.Context, userId string, planId string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	plan, ok := s.plans[planId]
	if !ok || plan.UserId != userId || !plan.IsActive {
		return false, nil
	}
	plan.IsActive = false
	s.plans[planId] = plan
	return true, nil
}

// Helper methods for test setup

// SetPlan stores plan as is, overwriting any plan with the same id.
func (s *StoreStub) SetPlan(plan RecurringPlan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans[plan.Id] = plan
}

func (s *StoreStub) AddTransaction(t Transaction) Transaction {
	inserted, err := s.InsertTransaction(context.Background(), t)
	if err != nil {
		panic(err)
	}
	return inserted
}

func (s *StoreStub) SetCategory(c Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[c.Name] = c
}

func (s *StoreStub) Plan(planId string) RecurringPlan {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.plans[planId]
}

func (s *StoreStub) Transactions() []Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.transactions)
}

func (s *StoreStub) SetDuePlansError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.duePlansErr = err
}

// FailInsertFor makes inserting a transaction linked to planId fail with err. A nil err clears the fault.
func (s *StoreStub) FailInsertFor(planId string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	setFault(s.failInsert, planId, err)
}

func (s *StoreStub) FailAdvanceFor(planId string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	setFault(s.failAdvance, planId, err)
}

func setFault(faults map[string]error, planId string, err error) {
	if err == nil {
		delete(faults, planId)
		return
	}
	faults[planId] = err
}

// OnAdvance registers a hook called before every AdvancePlan, outside the stub's lock.
func (s *StoreStub) OnAdvance(hook func(planId string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advanceHook = hook
}

func (s *StoreStub) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans = make(map[string]RecurringPlan)
	s.transactions = nil
	s.categories = make(map[string]Category)
	s.duePlansErr = nil
	s.failInsert = make(map[string]error)
	s.failAdvance = make(map[string]error)
	s.advanceHook = nil
	s.insertSequence = 0
}
