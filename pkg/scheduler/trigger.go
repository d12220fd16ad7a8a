package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/smartspend/smartspend/internal/utils"
)

type Runner interface {
	RunOnce(ctx context.Context, now time.Time) (RunReport, error)
}

// NextRunAt returns the first hour:minute wall-clock time in now's location strictly after now.
func NextRunAt(now time.Time, hour, minute int) time.Time {
	year, month, day := now.Date()
	next := time.Date(year, month, day, hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = time.Date(year, month, day+1, hour, minute, 0, 0, now.Location())
	}
	return next
}

// Trigger runs the scheduler once a day at a fixed wall-clock time.
type Trigger struct {
	runner   Runner
	lock     RunLock
	clock    utils.Clock
	hour     int
	minute   int
	location *time.Location

	// one batch per process; lock covers the other instances
	runMu sync.Mutex

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

func NewTrigger(runner Runner, lock RunLock, clock utils.Clock, hour, minute int, location *time.Location) *Trigger {
	if lock == nil {
		lock = NoopRunLock{}
	}
	if location == nil {
		location = time.UTC
	}
	return &Trigger{
		runner:   runner,
		lock:     lock,
		clock:    clock,
		hour:     hour,
		minute:   minute,
		location: location,
	}
}

// Fire runs one batch now. The batch is not cancelled with ctx once it has started.
func (t *Trigger) Fire(ctx context.Context) (RunReport, error) {
	if !t.runMu.TryLock() {
		return RunReport{}, ErrLockHeld
	}
	defer t.runMu.Unlock()

	release, err := t.lock.Acquire(ctx)
	if err != nil {
		return RunReport{}, err
	}
	defer release()

	return t.runner.RunOnce(context.WithoutCancel(ctx), t.clock.Now())
}

func (t *Trigger) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return
	}
	t.stopCh = make(chan struct{})
	t.running = true
	t.wg.Add(1)
	go t.loop(t.stopCh)
	log.Infof("Recurring plan trigger started, daily at %02d:%02d %s", t.hour, t.minute, t.location)
}

// Stop ends the daily loop and waits for a batch that is already running.
func (t *Trigger) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return
	}
	close(t.stopCh)
	t.running = false
	t.wg.Wait()
	log.Info("Recurring plan trigger stopped")
}

func (t *Trigger) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

func (t *Trigger) loop(stopCh chan struct{}) {
	defer t.wg.Done()
	for {
		now := t.clock.Now().In(t.location)
		next := NextRunAt(now, t.hour, t.minute)
		log.Debugf("next recurring run at %s", next.Format(time.RFC3339))
		timer := time.NewTimer(next.Sub(now))

		select {
		case <-stopCh:
			timer.Stop()
			return
		case <-timer.C:
			if _, err := t.Fire(context.Background()); err != nil {
				if errors.Is(err, ErrLockHeld) {
					log.Info("recurring run skipped: another run is in progress")
				} else {
					log.Errorf("recurring run failed: %v", err)
				}
			}
		}
	}
}
