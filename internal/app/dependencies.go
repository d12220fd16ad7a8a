package app

import (
	"fmt"
	"time"

	"github.com/smartspend/smartspend/internal/config"
	"github.com/smartspend/smartspend/internal/event_bus"
	"github.com/smartspend/smartspend/internal/utils"
	"github.com/smartspend/smartspend/pkg/dashboard"
	"github.com/smartspend/smartspend/pkg/ledger"
	"github.com/smartspend/smartspend/pkg/recurring"
	"github.com/smartspend/smartspend/pkg/scheduler"
)

// Dependencies holds all services and handlers for the application.
type Dependencies struct {
	Store    ledger.Store
	EventBus *event_bus.EventBus
	Clock    utils.Clock

	LedgerService *ledger.ServiceImpl
	LedgerHandler *ledger.Handler

	RecurringService *recurring.ServiceImpl
	RecurringHandler *recurring.Handler

	DashboardService    *dashboard.ServiceImpl
	CsvSnapshotRenderer *dashboard.CsvSnapshotRendererImpl
	DashboardHandler    *dashboard.Handler

	Scheduler        *scheduler.Scheduler
	RunHistory       *scheduler.RunHistory
	SchedulerTrigger *scheduler.Trigger
	SchedulerHandler *scheduler.Handler
}

// BuildDependencies initializes and wires all application services and handlers.
func BuildDependencies(store ledger.Store, runLock scheduler.RunLock, cfg config.Application) (*Dependencies, error) {
	ledgerLocation, err := time.LoadLocation(cfg.Ledger.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid ledger timezone: %w", err)
	}
	schedulerLocation, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid scheduler timezone: %w", err)
	}
	hour, minute, err := cfg.Scheduler.RunAtClock()
	if err != nil {
		return nil, err
	}

	deps := &Dependencies{}
	deps.Store = store
	deps.EventBus = event_bus.NewEventBus()
	deps.Clock = utils.SystemClock{Location: ledgerLocation}

	deps.LedgerService = ledger.NewService(store, cfg.Ledger.DefaultCurrency)
	deps.LedgerHandler = ledger.NewHandler(deps.LedgerService, deps.Clock)

	deps.RecurringService = recurring.NewService(store, cfg.Ledger.DefaultCurrency)
	deps.RecurringHandler = recurring.NewHandler(deps.RecurringService, deps.Clock)

	deps.DashboardService = dashboard.NewService(store)
	deps.CsvSnapshotRenderer = dashboard.NewCsvSnapshotRenderer()
	deps.DashboardHandler = dashboard.NewHandler(deps.DashboardService, deps.CsvSnapshotRenderer, deps.Clock)

	deps.Scheduler = scheduler.NewScheduler(store, deps.EventBus, deps.Clock, scheduler.Config{
		Workers:     cfg.Scheduler.Workers,
		PlanTimeout: cfg.Scheduler.PlanTimeout,
		PageSize:    cfg.Scheduler.PageSize,
		Location:    ledgerLocation,
	})
	deps.RunHistory = scheduler.NewRunHistory(cfg.Scheduler.HistorySize)
	deps.RunHistory.Subscribe(deps.EventBus)
	deps.SchedulerTrigger = scheduler.NewTrigger(deps.Scheduler, runLock, deps.Clock, hour, minute, schedulerLocation)
	deps.SchedulerHandler = scheduler.NewHandler(deps.SchedulerTrigger, deps.RunHistory)

	return deps, nil
}
