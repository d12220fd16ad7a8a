package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/smartspend/smartspend/internal/event_bus"
	"github.com/smartspend/smartspend/internal/utils"
	"github.com/smartspend/smartspend/pkg/ledger"
	"github.com/smartspend/smartspend/pkg/planclock"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrDuePlansUnavailable means the due set could not be read; no plan was processed.
	ErrDuePlansUnavailable = errors.New("due plans unavailable")
	// ErrPlanNotDue means the plan was advanced or deactivated after the due set was read.
	ErrPlanNotDue = errors.New("plan no longer due")
)

const descriptionPrefix = "Recurring: "

type Config struct {
	Workers     int
	PlanTimeout time.Duration
	PageSize    int
	// Location is the ledger time zone in which due dates are stepped by calendar months.
	Location *time.Location
}

func DefaultConfig() Config {
	return Config{
		Workers:     4,
		PlanTimeout: 30 * time.Second,
		PageSize:    500,
		Location:    time.UTC,
	}
}

type Scheduler struct {
	store ledger.Store
	bus   *event_bus.EventBus
	clock utils.Clock
	cfg   Config
}

func NewScheduler(store ledger.Store, bus *event_bus.EventBus, clock utils.Clock, cfg Config) *Scheduler {
	if clock == nil {
		clock = utils.SystemClock{}
	}
	defaults := DefaultConfig()
	if cfg.Workers < 1 {
		cfg.Workers = defaults.Workers
	}
	if cfg.PlanTimeout <= 0 {
		cfg.PlanTimeout = defaults.PlanTimeout
	}
	if cfg.PageSize < 1 {
		cfg.PageSize = defaults.PageSize
	}
	if cfg.Location == nil {
		cfg.Location = defaults.Location
	}
	return &Scheduler{store: store, bus: bus, clock: clock, cfg: cfg}
}

// RunOnce charges every active plan due at now: each plan gets a transaction dated now and its due
// date moved one period forward, both in one store transaction. A plan that fails is reported and
// stays due for the next run; it never affects the other plans of the batch.
func (s *Scheduler) RunOnce(ctx context.Context, now time.Time) (RunReport, error) {
	startedAt := s.clock.Now()
	due, err := s.loadDuePlans(ctx, now)
	if err != nil {
		log.Errorf("recurring run at %s aborted: %v", now.Format(time.RFC3339), err)
		return RunReport{StartedAt: startedAt, FinishedAt: s.clock.Now(), Failed: make([]PlanFailure, 0)}, err
	}
	log.Infof("recurring run at %s: %d plan(s) due", now.Format(time.RFC3339), len(due))

	results := make([]unitResult, len(due))
	var g errgroup.Group
	g.SetLimit(s.cfg.Workers)
	for i, plan := range due {
		g.Go(func() error {
			results[i] = s.runUnit(ctx, plan, now)
			return nil
		})
	}
	_ = g.Wait()

	report := buildReport(startedAt, s.clock.Now(), results)
	log.WithFields(log.Fields{
		"processed": report.Processed,
		"succeeded": report.Succeeded,
		"skipped":   report.Skipped,
		"failed":    len(report.Failed),
	}).Infof("recurring run finished in %s", report.Duration())

	s.publish(ctx, report)
	return report, nil
}

func (s *Scheduler) loadDuePlans(ctx context.Context, now time.Time) ([]ledger.RecurringPlan, error) {
	due := make([]ledger.RecurringPlan, 0)
	afterId := ""
	for {
		page, err := s.store.FindDuePlans(ctx, now, afterId, s.cfg.PageSize)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDuePlansUnavailable, err)
		}
		due = append(due, page...)
		if len(page) < s.cfg.PageSize {
			return due, nil
		}
		afterId = page[len(page)-1].Id
	}
}

func (s *Scheduler) runUnit(ctx context.Context, plan ledger.RecurringPlan, now time.Time) unitResult {
	logger := log.WithFields(log.Fields{"planId": plan.Id, "userId": plan.UserId})

	err := s.chargePlan(ctx, plan, now)
	switch {
	case err == nil:
		logger.Debugf("charged recurring plan %q", plan.Name)
		return unitResult{planId: plan.Id, outcome: outcomeSucceeded}
	case errors.Is(err, ErrPlanNotDue):
		logger.Info("recurring plan already advanced by another run, skipping")
		return unitResult{planId: plan.Id, outcome: outcomeSkipped, err: err}
	default:
		logger.Errorf("failed to charge recurring plan: %v", err)
		return unitResult{planId: plan.Id, outcome: outcomeFailed, err: err}
	}
}

func (s *Scheduler) chargePlan(ctx context.Context, plan ledger.RecurringPlan, now time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.PlanTimeout)
	defer cancel()

	// stored due dates come back in the driver's zone; calendar steps belong to the ledger zone
	next, err := planclock.Advance(plan.NextDueDate.In(s.cfg.Location), plan.Frequency)
	if err != nil {
		return err
	}

	return s.store.WithTransaction(ctx, func(tx ledger.Store) error {
		advanced, err := tx.AdvancePlan(ctx, plan.Id, plan.NextDueDate, next)
		if err != nil {
			return err
		}
		if !advanced {
			return ErrPlanNotDue
		}
		_, err = tx.InsertTransaction(ctx, ledger.Transaction{
			UserId:          plan.UserId,
			Amount:          plan.Amount,
			Currency:        plan.Currency,
			Type:            plan.Type,
			Description:     descriptionPrefix + plan.Name,
			Date:            now,
			RecurringPlanId: plan.Id,
			IsAiGenerated:   false,
		})
		return err
	})
}

func (s *Scheduler) publish(ctx context.Context, report RunReport) {
	if s.bus == nil {
		return
	}
	event := event_bus.NewEvent(context.WithoutCancel(ctx), event_bus.RecurringRunCompleted, report)
	if err := s.bus.Publish(event); err != nil {
		log.Errorf("failed to publish run report: %v", err)
	}
}
