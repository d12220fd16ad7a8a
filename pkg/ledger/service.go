package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

var (
	ErrInvalidTransaction  = errors.New("invalid transaction")
	ErrInvalidCurrency     = errors.New("invalid currency")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrTransactionNotFound = errors.New("transaction not found")
)

// NormalizeCurrency upper-cases a three letter currency code. An empty code resolves to fallback.
func NormalizeCurrency(code string, fallback string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return fallback, nil
	}
	if len(code) != 3 {
		return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
		}
	}
	return code, nil
}

// maxAmount is the first magnitude that no longer fits NUMERIC(14,2).
var maxAmount = decimal.New(1, 12)

// CheckAmount accepts positive amounts with at most two decimal places that fit the amount columns.
func CheckAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: must be greater than zero", ErrInvalidAmount)
	}
	if !amount.Equal(amount.Truncate(2)) {
		return fmt.Errorf("%w: %s has more than two decimal places", ErrInvalidAmount, amount)
	}
	if amount.GreaterThanOrEqual(maxAmount) {
		return fmt.Errorf("%w: %s exceeds %s", ErrInvalidAmount, amount, maxAmount.Sub(decimal.New(1, -2)))
	}
	return nil
}

type CreateTransactionRequest struct {
	Amount      decimal.Decimal
	Currency    string
	Type        string
	Description string
	Merchant    string
	// Date defaults to now when nil.
	Date *time.Time
	// Category is resolved by name, creating it on first use.
	Category        string
	IsAiGenerated   bool
	ConfidenceScore *float64
}

type Service interface {
	CreateTransaction(ctx context.Context, userId string, req CreateTransactionRequest, now time.Time) (Transaction, error)
	ListTransactions(ctx context.Context, userId string) ([]Transaction, error)
	DeleteTransaction(ctx context.Context, userId string, id string) error
}

type ServiceImpl struct {
	store           Store
	defaultCurrency string
}

func NewService(store Store, defaultCurrency string) *ServiceImpl {
	if defaultCurrency == "" {
		defaultCurrency = DefaultCurrency
	}
	return &ServiceImpl{store: store, defaultCurrency: defaultCurrency}
}

func (s *ServiceImpl) CreateTransaction(ctx context.Context, userId string, req CreateTransactionRequest, now time.Time) (Transaction, error) {
	t, err := s.validate(userId, req, now)
	if err != nil {
		return Transaction{}, err
	}

	var created Transaction
	err = s.store.WithTransaction(ctx, func(tx Store) error {
		if name := strings.TrimSpace(req.Category); name != "" {
			category, err := tx.FindOrCreateCategory(ctx, name)
			if err != nil {
				return err
			}
			t.CategoryId = category.Id
			t.CategoryName = category.Name
		}
		created, err = tx.InsertTransaction(ctx, t)
		return err
	})
	if err != nil {
		return Transaction{}, fmt.Errorf("could not create transaction: %w", err)
	}
	log.Debugf("created %s transaction %s for user %s", created.Type, created.Id, userId)
	return created, nil
}

func (s *ServiceImpl) validate(userId string, req CreateTransactionRequest, now time.Time) (Transaction, error) {
	if err := CheckAmount(req.Amount); err != nil {
		return Transaction{}, fmt.Errorf("%w: %w", ErrInvalidTransaction, err)
	}
	txType := Expense
	if strings.TrimSpace(req.Type) != "" {
		parsed, err := ParseTransactionType(req.Type)
		if err != nil {
			return Transaction{}, fmt.Errorf("%w: %w", ErrInvalidTransaction, err)
		}
		txType = parsed
	}
	currency, err := NormalizeCurrency(req.Currency, s.defaultCurrency)
	if err != nil {
		return Transaction{}, fmt.Errorf("%w: %w", ErrInvalidTransaction, err)
	}
	if score := req.ConfidenceScore; score != nil && (*score < 0 || *score > 1) {
		return Transaction{}, fmt.Errorf("%w: confidence score must be between 0 and 1", ErrInvalidTransaction)
	}

	date := now
	if req.Date != nil {
		date = *req.Date
	}
	return Transaction{
		UserId:          userId,
		Amount:          req.Amount,
		Currency:        currency,
		Type:            txType,
		Description:     strings.TrimSpace(req.Description),
		Merchant:        strings.TrimSpace(req.Merchant),
		Date:            date,
		IsAiGenerated:   req.IsAiGenerated,
		ConfidenceScore: req.ConfidenceScore,
	}, nil
}

func (s *ServiceImpl) ListTransactions(ctx context.Context, userId string) ([]Transaction, error) {
	return s.store.ListTransactions(ctx, userId)
}

func (s *ServiceImpl) DeleteTransaction(ctx context.Context, userId string, id string) error {
	deleted, err := s.store.DeleteTransaction(ctx, userId, id)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrTransactionNotFound
	}
	return nil
}
