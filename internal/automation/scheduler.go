package automation

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
)

// Scheduler runs SCHEDULE-triggered scenarios on their cron expressions.
//
// Jobs are registered from the registry on Start and re-synced with
// Reload after scenario CRUD. Scheduled runs share the manual execution
// path, so a scenario disabled after registration is skipped silently.
type Scheduler struct {
	engine   *Engine
	registry *Registry
	cron     *cron.Cron
	logger   Logger

	mu      sync.Mutex
	entries map[string]cron.EntryID // scenario ID -> cron entry
}

// NewScheduler creates a cron scheduler for SCHEDULE scenarios.
func NewScheduler(engine *Engine, registry *Registry, logger Logger) *Scheduler {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Scheduler{
		engine:   engine,
		registry: registry,
		cron:     cron.New(),
		logger:   logger,
		entries:  make(map[string]cron.EntryID),
	}
}

// Start registers all SCHEDULE scenarios and starts the cron loop.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.Reload(ctx); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.entries))
	return nil
}

// Reload re-syncs cron jobs against the current set of enabled SCHEDULE
// scenarios. Call after creating, updating or deleting scenarios.
//
// A scenario with an unparseable cron expression is logged and skipped;
// it does not block the rest of the schedule.
func (s *Scheduler) Reload(ctx context.Context) error {
	scenarios, err := s.registry.ListEnabledByTrigger(ctx, TriggerSchedule)
	if err != nil {
		return fmt.Errorf("loading schedule scenarios: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, entryID := range s.entries {
		s.cron.Remove(entryID)
		delete(s.entries, id)
	}

	for i := range scenarios {
		scn := scenarios[i]
		entryID, addErr := s.cron.AddFunc(scn.Trigger.Cron, func() {
			s.logger.Debug("scheduled run", "scenario_id", scn.ID, "name", scn.Name)
			s.engine.RunManual(context.Background(), scn.ID)
		})
		if addErr != nil {
			s.logger.Error("invalid cron expression, scenario skipped",
				"scenario_id", scn.ID,
				"cron", scn.Trigger.Cron,
				"error", addErr,
			)
			continue
		}
		s.entries[scn.ID] = entryID
	}

	return nil
}

// JobCount returns the number of registered cron jobs.
func (s *Scheduler) JobCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Stop halts the cron loop and waits for running jobs to return.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}
