package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/smartspend/smartspend/pkg/planclock"
)

var ErrPlanNotFound = errors.New("recurring plan not found")

// Store is the durable ledger: transactions, recurring plans and categories.
type Store interface {
	// WithTransaction runs fn against a Store bound to a single database transaction.
	// Everything fn writes is committed together, or rolled back when fn returns an error.
	WithTransaction(ctx context.Context, fn func(tx Store) error) error

	InsertTransaction(ctx context.Context, t Transaction) (Transaction, error)
	ListTransactions(ctx context.Context, userId string) ([]Transaction, error)
	ListPlanTransactions(ctx context.Context, planId string) ([]Transaction, error)
	DeleteTransaction(ctx context.Context, userId string, id string) (bool, error)
	SumTransactions(ctx context.Context, filter SumFilter) (decimal.Decimal, error)
	// TopExpenseCategory returns the category with the largest expense total in [from, to].
	// Ties go to the lowest category id; uncategorized spend loses ties.
	TopExpenseCategory(ctx context.Context, userId string, from, to time.Time) (CategoryTotal, bool, error)
	FindOrCreateCategory(ctx context.Context, name string) (Category, error)

	InsertPlan(ctx context.Context, plan RecurringPlan) (RecurringPlan, error)
	GetPlan(ctx context.Context, planId string) (RecurringPlan, error)
	ListActivePlans(ctx context.Context, userId string) ([]RecurringPlan, error)
	// FindDuePlans returns up to limit active plans due at now with an id greater than afterId,
	// ordered by id.
	FindDuePlans(ctx context.Context, now time.Time, afterId string, limit int) ([]RecurringPlan, error)
	// AdvancePlan moves the due date of an active plan from expected to next. It returns false
	// when the stored due date no longer equals expected.
	AdvancePlan(ctx context.Context, planId string, expected time.Time, next time.Time) (bool, error)
	DeactivatePlan(ctx context.Context, userId string, planId string) (bool, error)
}

type queryer interface {
	Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, query string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) pgx.Row
}

type storeImpl struct {
	db *pgxpool.Pool
	tx pgx.Tx
}

func NewStore(db *pgxpool.Pool) Store {
	return &storeImpl{db: db}
}

func (s *storeImpl) getQueryer() queryer {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

func (s *storeImpl) WithTransaction(ctx context.Context, fn func(tx Store) error) error {
	if s.tx != nil {
		return fn(s)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			log.Errorf("rollback error: %v", rbErr)
		}
	}()

	if err := fn(&storeImpl{db: s.db, tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

const transactionColumns = `
	t.id,
	t.user_id,
	t.amount,
	t.currency,
	t.type,
	t.description,
	t.merchant,
	t.date,
	t.category_id,
	c.name,
	t.recurring_plan_id,
	t.is_ai_generated,
	t.confidence_score,
	t.created_at`

func (s *storeImpl) InsertTransaction(ctx context.Context, t Transaction) (Transaction, error) {
	if t.Id == "" {
		t.Id = uuid.NewString()
	}
	query := `INSERT INTO ledger_transaction (
					id,
					user_id,
					amount,
					currency,
					type,
					description,
					merchant,
					date,
					category_id,
					recurring_plan_id,
					is_ai_generated,
					confidence_score
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12) RETURNING created_at`

	var confidence sql.NullFloat64
	if t.ConfidenceScore != nil {
		confidence = sql.NullFloat64{Float64: *t.ConfidenceScore, Valid: true}
	}
	err := s.getQueryer().QueryRow(ctx, query,
		t.Id,
		t.UserId,
		t.Amount,
		t.Currency,
		string(t.Type),
		t.Description,
		nullString(t.Merchant),
		t.Date,
		nullString(t.CategoryId),
		nullString(t.RecurringPlanId),
		t.IsAiGenerated,
		confidence,
	).Scan(&t.CreatedAt)
	if err != nil {
		err := fmt.Errorf("could not insert transaction: %w", err)
		log.Error(err)
		return Transaction{}, err
	}
	return t, nil
}

func (s *storeImpl) ListTransactions(ctx context.Context, userId string) ([]Transaction, error) {
	query := `SELECT ` + transactionColumns + `
			  FROM ledger_transaction t
			  LEFT JOIN category c ON c.id = t.category_id
			  WHERE t.user_id = $1
			  ORDER BY t.date DESC, t.created_at DESC`
	return s.queryTransactions(ctx, query, userId)
}

func (s *storeImpl) ListPlanTransactions(ctx context.Context, planId string) ([]Transaction, error) {
	query := `SELECT ` + transactionColumns + `
			  FROM ledger_transaction t
			  LEFT JOIN category c ON c.id = t.category_id
			  WHERE t.recurring_plan_id = $1
			  ORDER BY t.date DESC, t.created_at DESC`
	return s.queryTransactions(ctx, query, planId)
}

func (s *storeImpl) queryTransactions(ctx context.Context, query string, args ...any) ([]Transaction, error) {
	rows, err := s.getQueryer().Query(ctx, query, args...)
	if err != nil {
		err := fmt.Errorf("could not query transactions: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	transactions := make([]Transaction, 0)
	for rows.Next() {
		var (
			t               Transaction
			txType          string
			merchant        sql.NullString
			categoryId      sql.NullString
			categoryName    sql.NullString
			recurringPlanId sql.NullString
			confidence      sql.NullFloat64
		)
		if err := rows.Scan(
			&t.Id,
			&t.UserId,
			&t.Amount,
			&t.Currency,
			&txType,
			&t.Description,
			&merchant,
			&t.Date,
			&categoryId,
			&categoryName,
			&recurringPlanId,
			&t.IsAiGenerated,
			&confidence,
			&t.CreatedAt,
		); err != nil {
			err := fmt.Errorf("error scanning row: %w", err)
			log.Error(err)
			return nil, err
		}
		t.Type = TransactionType(txType)
		t.Merchant = merchant.String
		t.CategoryId = categoryId.String
		t.CategoryName = categoryName.String
		t.RecurringPlanId = recurringPlanId.String
		if confidence.Valid {
			score := confidence.Float64
			t.ConfidenceScore = &score
		}
		transactions = append(transactions, t)
	}

	if err := rows.Err(); err != nil {
		err := fmt.Errorf("error iterating over rows: %w", err)
		log.Error(err)
		return nil, err
	}
	return transactions, nil
}

func (s *storeImpl) DeleteTransaction(ctx context.Context, userId string, id string) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, nil
	}
	query := "DELETE FROM ledger_transaction WHERE id = $1 AND user_id = $2"
	result, err := s.getQueryer().Exec(ctx, query, id, userId)
	if err != nil {
		err := fmt.Errorf("could not delete transaction: %w", err)
		log.Error(err)
		return false, err
	}
	return result.RowsAffected() == 1, nil
}

func (s *storeImpl) SumTransactions(ctx context.Context, filter SumFilter) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(amount), 0)
			  FROM ledger_transaction
			  WHERE user_id = $1
				AND type = $2
				AND date BETWEEN $3 AND $4
				AND ($5 = FALSE OR recurring_plan_id IS NULL)`

	var sum decimal.Decimal
	err := s.getQueryer().QueryRow(ctx, query,
		filter.UserId,
		string(filter.Type),
		filter.From,
		filter.To,
		filter.ManualOnly,
	).Scan(&sum)
	if err != nil {
		err := fmt.Errorf("could not sum transactions: %w", err)
		log.Error(err)
		return decimal.Zero, err
	}
	return sum, nil
}

func (s *storeImpl) TopExpenseCategory(ctx context.Context, userId string, from, to time.Time) (CategoryTotal, bool, error) {
	query := `SELECT t.category_id, c.name, SUM(t.amount) AS total
			  FROM ledger_transaction t
			  LEFT JOIN category c ON c.id = t.category_id
			  WHERE t.user_id = $1
				AND t.type = $2
				AND t.date BETWEEN $3 AND $4
			  GROUP BY t.category_id, c.name
			  ORDER BY total DESC, t.category_id ASC NULLS LAST
			  LIMIT 1`

	var (
		categoryId   sql.NullString
		categoryName sql.NullString
		total        decimal.Decimal
	)
	err := s.getQueryer().QueryRow(ctx, query, userId, string(Expense), from, to).
		Scan(&categoryId, &categoryName, &total)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CategoryTotal{}, false, nil
		}
		err := fmt.Errorf("could not find top category: %w", err)
		log.Error(err)
		return CategoryTotal{}, false, err
	}
	return CategoryTotal{
		CategoryId:   categoryId.String,
		CategoryName: categoryName.String,
		Total:        total,
	}, true, nil
}

func (s *storeImpl) FindOrCreateCategory(ctx context.Context, name string) (Category, error) {
	// the no-op update makes RETURNING yield the existing row on conflict
	query := `INSERT INTO category (id, name, icon, color) VALUES ($1, $2, $3, $4)
			  ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
			  RETURNING id, name, icon, color`

	var c Category
	err := s.getQueryer().QueryRow(ctx, query, uuid.NewString(), name, "tag", "#cccccc").
		Scan(&c.Id, &c.Name, &c.Icon, &c.Color)
	if err != nil {
		err := fmt.Errorf("could not find or create category %q: %w", name, err)
		log.Error(err)
		return Category{}, err
	}
	return c, nil
}

const planColumns = `
	id,
	user_id,
	name,
	amount,
	currency,
	frequency,
	type,
	category,
	next_due_date,
	is_active,
	created_at`

func (s *storeImpl) InsertPlan(ctx context.Context, plan RecurringPlan) (RecurringPlan, error) {
	if plan.Id == "" {
		plan.Id = uuid.NewString()
	}
	query := `INSERT INTO recurring_plan (
					id,
					user_id,
					name,
					amount,
					currency,
					frequency,
					type,
					category,
					next_due_date,
					is_active
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING created_at`

	err := s.getQueryer().QueryRow(ctx, query,
		plan.Id,
		plan.UserId,
		plan.Name,
		plan.Amount,
		plan.Currency,
		string(plan.Frequency),
		string(plan.Type),
		nullString(plan.Category),
		plan.NextDueDate,
		plan.IsActive,
	).Scan(&plan.CreatedAt)
	if err != nil {
		err := fmt.Errorf("could not insert recurring plan: %w", err)
		log.Error(err)
		return RecurringPlan{}, err
	}
	return plan, nil
}

func (s *storeImpl) GetPlan(ctx context.Context, planId string) (RecurringPlan, error) {
	if _, err := uuid.Parse(planId); err != nil {
		return RecurringPlan{}, ErrPlanNotFound
	}
	query := `SELECT ` + planColumns + ` FROM recurring_plan WHERE id = $1`
	plans, err := s.queryPlans(ctx, query, planId)
	if err != nil {
		return RecurringPlan{}, err
	}
	if len(plans) == 0 {
		return RecurringPlan{}, ErrPlanNotFound
	}
	return plans[0], nil
}

func (s *storeImpl) ListActivePlans(ctx context.Context, userId string) ([]RecurringPlan, error) {
	query := `SELECT ` + planColumns + `
			  FROM recurring_plan
			  WHERE user_id = $1 AND is_active
			  ORDER BY created_at DESC, id DESC`
	return s.queryPlans(ctx, query, userId)
}

func (s *storeImpl) FindDuePlans(ctx context.Context, now time.Time, afterId string, limit int) ([]RecurringPlan, error) {
	query := `SELECT ` + planColumns + `
			  FROM recurring_plan
			  WHERE is_active
				AND next_due_date <= $1
				AND id::text > $2
			  ORDER BY id
			  LIMIT $3`
	return s.queryPlans(ctx, query, now, afterId, limit)
}

func (s *storeImpl) queryPlans(ctx context.Context, query string, args ...any) ([]RecurringPlan, error) {
	rows, err := s.getQueryer().Query(ctx, query, args...)
	if err != nil {
		err := fmt.Errorf("could not query recurring plans: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	plans := make([]RecurringPlan, 0)
	for rows.Next() {
		var (
			plan      RecurringPlan
			frequency string
			planType  string
			category  sql.NullString
		)
		if err := rows.Scan(
			&plan.Id,
			&plan.UserId,
			&plan.Name,
			&plan.Amount,
			&plan.Currency,
			&frequency,
			&planType,
			&category,
			&plan.NextDueDate,
			&plan.IsActive,
			&plan.CreatedAt,
		); err != nil {
			err := fmt.Errorf("error scanning row: %w", err)
			log.Error(err)
			return nil, err
		}
		plan.Frequency = planclock.Frequency(frequency)
		plan.Type = TransactionType(planType)
		plan.Category = category.String
		plans = append(plans, plan)
	}

	if err := rows.Err(); err != nil {
		err := fmt.Errorf("error iterating over rows: %w", err)
		log.Error(err)
		return nil, err
	}
	return plans, nil
}

func (s *storeImpl) AdvancePlan(ctx context.Context, planId string, expected time.Time, next time.Time) (bool, error) {
	query := `UPDATE recurring_plan
			  SET next_due_date = $3
			  WHERE id = $1 AND next_due_date = $2 AND is_active`
	result, err := s.getQueryer().Exec(ctx, query, planId, expected, next)
	if err != nil {
		err := fmt.Errorf("could not advance recurring plan %s: %w", planId, err)
		log.Error(err)
		return false, err
	}
	return result.RowsAffected() == 1, nil
}

func (s *storeImpl) DeactivatePlan(ctx context.Context, userId string, planId string) (bool, error) {
	if _, err := uuid.Parse(planId); err != nil {
		return false, nil
	}
	query := "UPDATE recurring_plan SET is_active = FALSE WHERE id = $1 AND user_id = $2 AND is_active"
	result, err := s.getQueryer().Exec(ctx, query, planId, userId)
	if err != nil {
		err := fmt.Errorf("could not deactivate recurring plan %s: %w", planId, err)
		log.Error(err)
		return false, err
	}
	return result.RowsAffected() == 1, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
