package recurring

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/smartspend/smartspend/pkg/ledger"
	"github.com/smartspend/smartspend/pkg/planclock"
)

var ErrInvalidPlan = errors.New("invalid recurring plan")

const initialDescriptionPrefix = "Recurring (Initial): "

type CreatePlanRequest struct {
	UserId    string
	Name      string
	Amount    decimal.Decimal
	Currency  string
	Frequency string
	Type      string
	Category  string
}

type Service interface {
	CreatePlan(ctx context.Context, req CreatePlanRequest, now time.Time) (ledger.RecurringPlan, error)
	ListPlans(ctx context.Context, userId string) ([]ledger.RecurringPlan, error)
	DeactivatePlan(ctx context.Context, userId string, planId string) error
	ListPlanTransactions(ctx context.Context, userId string, planId string) ([]ledger.Transaction, error)
}

type ServiceImpl struct {
	store           ledger.Store
	defaultCurrency string
}

func NewService(store ledger.Store, defaultCurrency string) *ServiceImpl {
	if defaultCurrency == "" {
		defaultCurrency = ledger.DefaultCurrency
	}
	return &ServiceImpl{store: store, defaultCurrency: defaultCurrency}
}

// CreatePlan registers a plan whose first occurrence is charged immediately. The plan and its
// seed transaction are stored together, and the plan is next due one period after now.
func (s *ServiceImpl) CreatePlan(ctx context.Context, req CreatePlanRequest, now time.Time) (ledger.RecurringPlan, error) {
	plan, err := s.validate(req)
	if err != nil {
		return ledger.RecurringPlan{}, err
	}
	plan.NextDueDate, err = planclock.Advance(now, plan.Frequency)
	if err != nil {
		return ledger.RecurringPlan{}, fmt.Errorf("%w: %w", ErrInvalidPlan, err)
	}

	var created ledger.RecurringPlan
	err = s.store.WithTransaction(ctx, func(tx ledger.Store) error {
		created, err = tx.InsertPlan(ctx, plan)
		if err != nil {
			return err
		}
		_, err = tx.InsertTransaction(ctx, ledger.Transaction{
			UserId:          created.UserId,
			Amount:          created.Amount,
			Currency:        created.Currency,
			Type:            created.Type,
			Description:     initialDescriptionPrefix + created.Name,
			Date:            now,
			RecurringPlanId: created.Id,
		})
		return err
	})
	if err != nil {
		return ledger.RecurringPlan{}, fmt.Errorf("could not create recurring plan: %w", err)
	}

	log.WithFields(log.Fields{
		"planId": created.Id,
		"userId": created.UserId,
	}).Infof("created %s recurring plan %q, next due %s", created.Frequency, created.Name, created.NextDueDate.Format(time.DateOnly))
	return created, nil
}

func (s *ServiceImpl) validate(req CreatePlanRequest) (ledger.RecurringPlan, error) {
	userId := strings.TrimSpace(req.UserId)
	if userId == "" {
		return ledger.RecurringPlan{}, fmt.Errorf("%w: user id is required", ErrInvalidPlan)
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return ledger.RecurringPlan{}, fmt.Errorf("%w: name is required", ErrInvalidPlan)
	}
	if err := ledger.CheckAmount(req.Amount); err != nil {
		return ledger.RecurringPlan{}, fmt.Errorf("%w: %w", ErrInvalidPlan, err)
	}
	planType, err := ledger.ParseTransactionType(req.Type)
	if err != nil {
		return ledger.RecurringPlan{}, fmt.Errorf("%w: %w", ErrInvalidPlan, err)
	}
	frequency, err := planclock.ParseFrequency(req.Frequency)
	if err != nil {
		return ledger.RecurringPlan{}, fmt.Errorf("%w: %w", ErrInvalidPlan, err)
	}
	currency, err := ledger.NormalizeCurrency(req.Currency, s.defaultCurrency)
	if err != nil {
		return ledger.RecurringPlan{}, fmt.Errorf("%w: %w", ErrInvalidPlan, err)
	}

	return ledger.RecurringPlan{
		UserId:    userId,
		Name:      name,
		Amount:    req.Amount,
		Currency:  currency,
		Frequency: frequency,
		Type:      planType,
		Category:  strings.TrimSpace(req.Category),
		IsActive:  true,
	}, nil
}

func (s *ServiceImpl) ListPlans(ctx context.Context, userId string) ([]ledger.RecurringPlan, error) {
	return s.store.ListActivePlans(ctx, userId)
}

// DeactivatePlan stops future charges. Already generated transactions stay in the ledger.
func (s *ServiceImpl) DeactivatePlan(ctx context.Context, userId string, planId string) error {
	deactivated, err := s.store.DeactivatePlan(ctx, userId, planId)
	if err != nil {
		return err
	}
	if !deactivated {
		return ledger.ErrPlanNotFound
	}
	log.WithFields(log.Fields{"planId": planId, "userId": userId}).Info("deactivated recurring plan")
	return nil
}

func (s *ServiceImpl) ListPlanTransactions(ctx context.Context, userId string, planId string) ([]ledger.Transaction, error) {
	plan, err := s.store.GetPlan(ctx, planId)
	if err != nil {
		return nil, err
	}
	if plan.UserId != userId {
		return nil, ledger.ErrPlanNotFound
	}
	return s.store.ListPlanTransactions(ctx, planId)
}
