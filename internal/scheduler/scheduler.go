// Package scheduler runs Wisp's periodic duties on cron schedules.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/normanking/wisp/internal/logging"
	"github.com/normanking/wisp/internal/memory"
	"github.com/normanking/wisp/internal/pipeline"
)

// Scheduler owns the cron jobs: the twice-daily memory decay pass and
// the hourly ambient reaction.
type Scheduler struct {
	cron   *cron.Cron
	store  memory.Store
	orch   *pipeline.Orchestrator
	logger *logging.Logger
}

// New creates a scheduler with the standard jobs registered.
func New(store memory.Store, orch *pipeline.Orchestrator, logger *logging.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:   cron.New(),
		store:  store,
		orch:   orch,
		logger: logger,
	}

	if _, err := s.cron.AddFunc("0 */12 * * *", s.runDecay); err != nil {
		return nil, err
	}
	if _, err := s.cron.AddFunc("0 * * * *", s.runHourly); err != nil {
		return nil, err
	}
	return s, nil
}

// Start starts the scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Scheduler) runDecay() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.store.ApplyDecay(ctx); err != nil {
		s.logger.Warn("scheduler", "Memory decay pass failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (s *Scheduler) runHourly() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	s.orch.HourlyReaction(ctx)
}
