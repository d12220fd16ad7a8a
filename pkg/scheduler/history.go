package scheduler

import (
	"slices"
	"sync"

	"github.com/smartspend/smartspend/internal/event_bus"
)

// RunHistory keeps the most recent run reports in memory.
type RunHistory struct {
	mu      sync.RWMutex
	size    int
	reports []RunReport
}

func NewRunHistory(size int) *RunHistory {
	if size < 1 {
		size = 1
	}
	return &RunHistory{size: size, reports: make([]RunReport, 0, size)}
}

// Subscribe records every report published on bus.
func (h *RunHistory) Subscribe(bus *event_bus.EventBus) (unsubscribe func()) {
	return event_bus.SubscribeTyped(bus, event_bus.RecurringRunCompleted, func(e event_bus.EventT[RunReport]) error {
		h.Add(e.Data)
		return nil
	})
}

func (h *RunHistory) Add(report RunReport) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.reports) == h.size {
		h.reports = slices.Delete(h.reports, 0, 1)
	}
	h.reports = append(h.reports, report)
}

// Recent returns the stored reports, newest first.
func (h *RunHistory) Recent() []RunReport {
	h.mu.RLock()
	defer h.mu.RUnlock()
	recent := slices.Clone(h.reports)
	slices.Reverse(recent)
	return recent
}
