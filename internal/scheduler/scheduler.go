// Package scheduler runs the ingestion fetch loop on a fixed interval.
// Overlapping invocations are mutually excluded: a tick that fires while
// a run is still in flight is skipped, so two runs can never race on the
// uniqueness gate from within one process.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Runner is one ingestion run.
type Runner interface {
	Run(ctx context.Context) error
}

// Scheduler manages the periodic ingestion runs.
type Scheduler struct {
	cron            *cron.Cron
	entryID         cron.EntryID
	intervalMinutes int
	runner          Runner
	ctx             context.Context
	cancel          context.CancelFunc
	wg              sync.WaitGroup
	runMu           sync.Mutex
	isRunning       bool
	mu              sync.RWMutex
}

// New creates a scheduler that triggers the runner every intervalMinutes.
func New(intervalMinutes int, runner Runner) *Scheduler {
	return &Scheduler{
		cron:            cron.New(cron.WithSeconds()),
		intervalMinutes: intervalMinutes,
		runner:          runner,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())

	// @every accepts any positive interval; a */N minute field would
	// reject intervals of an hour or more.
	schedule := fmt.Sprintf("@every %dm", s.intervalMinutes)
	entryID, err := s.cron.AddFunc(schedule, s.runOnce)
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.entryID = entryID
	s.cron.Start()
	s.isRunning = true

	logrus.Infof("scheduler started with interval: %d minutes", s.intervalMinutes)
	return nil
}

// Stop stops the scheduler and waits briefly for an in-flight run.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}

	s.cancel()
	s.cron.Remove(s.entryID)
	ctx := s.cron.Stop()

	select {
	case <-ctx.Done():
		logrus.Info("scheduler stopped gracefully")
	case <-time.After(30 * time.Second):
		logrus.Warn("scheduler stop timeout, forcing shutdown")
	}

	s.isRunning = false
	return nil
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// runOnce executes a single ingestion run under the run-level lock.
func (s *Scheduler) runOnce() {
	if !s.runMu.TryLock() {
		logrus.Warn("previous ingestion run still in flight, skipping this tick")
		return
	}
	defer s.runMu.Unlock()

	s.wg.Add(1)
	defer s.wg.Done()

	s.mu.RLock()
	ctx := s.ctx
	running := s.isRunning
	s.mu.RUnlock()
	if !running {
		return
	}

	start := time.Now()
	logrus.Info("starting ingestion run")
	if err := s.runner.Run(ctx); err != nil {
		logrus.Errorf("ingestion run failed: %v", err)
		return
	}
	logrus.Infof("ingestion run completed in %v", time.Since(start))
}

// TriggerNow runs the ingestion once outside the cron schedule (manual
// trigger from the ops API).
func (s *Scheduler) TriggerNow() {
	s.runOnce()
}

// GetNextRun returns the time of the next scheduled run
func (s *Scheduler) GetNextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.isRunning {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

// GetLastRun returns the time of the last run
func (s *Scheduler) GetLastRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.isRunning {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Prev
}

// Wait waits for in-flight runs to finish.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
