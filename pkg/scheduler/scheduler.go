// Package scheduler polls for due executions and queues them for workers.
// One instance per deployment is enough; duplicate queue events are
// tolerated because every advance takes the per-execution lock.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/netpilot/netpilot/pkg/eventbus"
	"github.com/netpilot/netpilot/pkg/events"
	"github.com/netpilot/netpilot/pkg/models"
	"github.com/netpilot/netpilot/pkg/persistence"
)

const defaultPollSchedule = "@every 30s"

// Scheduler is the centralized due-execution poller. It wakes on a cron
// cadence, queries for executions whose scheduled start or wait resumption
// has passed, re-arms recurring executions and publishes queue events.
type Scheduler struct {
	persistence  persistence.Persistence
	bus          eventbus.EventBus
	logger       *slog.Logger
	pollSchedule string

	cron    *cron.Cron
	started bool
	mu      sync.Mutex
}

// NewScheduler creates a scheduler polling on the given cron cadence.
// An empty pollSchedule falls back to a 30 second cadence.
func NewScheduler(p persistence.Persistence, bus eventbus.EventBus, logger *slog.Logger, pollSchedule string) *Scheduler {
	if pollSchedule == "" {
		pollSchedule = defaultPollSchedule
	}

	return &Scheduler{
		persistence:  p,
		bus:          bus,
		logger:       logger.With("module", "scheduler"),
		pollSchedule: pollSchedule,
	}
}

// Start begins polling. It returns immediately; polling runs on the cron's
// own goroutine until Stop or context cancellation.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.cron = cron.New()

	_, err := s.cron.AddFunc(s.pollSchedule, func() {
		s.processDue(ctx)
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.started = true

	s.logger.Info("Scheduler started", "poll_schedule", s.pollSchedule)

	return nil
}

// Stop halts polling and waits for an in-flight poll to finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	stopCtx := s.cron.Stop()

	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
		return ctx.Err()
	}

	s.started = false
	s.logger.Info("Scheduler stopped")

	return nil
}

func (s *Scheduler) processDue(ctx context.Context) {
	now := time.Now().UTC()

	due, err := s.persistence.Executions().Due(ctx, now)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to query due executions", "error", err)

		return
	}

	if len(due) > 0 {
		s.logger.InfoContext(ctx, "Processing due executions", "count", len(due))
	}

	for _, execution := range due {
		err := s.dispatch(ctx, execution, now)
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to dispatch due execution",
				"execution_id", execution.ID,
				"error", err)
		}
	}
}

// dispatch moves a due scheduled execution to pending, re-arms its
// recurrence if it has one, and publishes a queue event. Executions due
// through resume_at keep their status; the advance clears resume_at itself.
func (s *Scheduler) dispatch(ctx context.Context, execution *models.Execution, now time.Time) error {
	if execution.Status == models.ExecutionScheduled {
		if execution.Recurrence != "" {
			err := s.armNextOccurrence(ctx, execution, now)
			if err != nil {
				return err
			}
		}

		execution.Status = models.ExecutionPending

		err := s.persistence.Executions().Save(ctx, execution)
		if err != nil {
			return err
		}
	}

	return s.bus.Publish(ctx, execution.ID, &events.ExecutionQueued{
		BaseEvent: events.BaseEvent{
			ID:          uuid.NewString(),
			Type:        events.ExecutionQueuedEvent,
			Timestamp:   now,
			ExecutionID: execution.ID,
			WorkflowID:  execution.WorkflowID,
		},
		Operation: execution.Operation,
	})
}

// armNextOccurrence creates the next scheduled run of a recurring
// execution. The clone carries the frozen inputs and targets of the
// original; approval state and results never carry over.
func (s *Scheduler) armNextOccurrence(ctx context.Context, execution *models.Execution, now time.Time) error {
	schedule, err := cron.ParseStandard(execution.Recurrence)
	if err != nil {
		s.logger.WarnContext(ctx, "Recurring execution has an unparseable recurrence, not re-arming",
			"execution_id", execution.ID,
			"recurrence", execution.Recurrence)

		return nil
	}

	next := schedule.Next(now)

	clone := &models.Execution{
		ID:           uuid.NewString(),
		WorkflowID:   execution.WorkflowID,
		Status:       models.ExecutionScheduled,
		Operation:    execution.Operation,
		Inputs:       execution.Inputs,
		Targets:      execution.Targets,
		RequestedBy:  execution.RequestedBy,
		ScheduledFor: &next,
		Recurrence:   execution.Recurrence,
	}

	err = s.persistence.Executions().Save(ctx, clone)
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "Re-armed recurring execution",
		"execution_id", execution.ID,
		"next_execution_id", clone.ID,
		"next_due_at", next)

	return nil
}
