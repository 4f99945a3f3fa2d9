package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/netpilot/netpilot/pkg/engine"
	"github.com/netpilot/netpilot/pkg/eventbus"
	"github.com/netpilot/netpilot/pkg/events"
	"github.com/netpilot/netpilot/pkg/scheduler"
)

// WorkerManager consumes execution queue events and drives the engine. Each
// event is one advance attempt; a losing race for the per-execution lock is
// not an error because the winning advance covers the work.
type WorkerManager struct {
	id        string
	logger    *slog.Logger
	engine    *engine.Engine
	eventBus  eventbus.EventBus
	scheduler *scheduler.Scheduler
}

func NewWorkerManager(
	id string,
	eng *engine.Engine,
	eventBus eventbus.EventBus,
	sched *scheduler.Scheduler,
	logger *slog.Logger,
) *WorkerManager {
	return &WorkerManager{
		id:        id,
		logger:    logger.With("module", "netpilot-worker", "worker_id", id),
		engine:    eng,
		eventBus:  eventBus,
		scheduler: sched,
	}
}

func (w *WorkerManager) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker manager", "worker_id", w.id)

	err := w.eventBus.Handle(events.ExecutionQueuedEvent, w.handleExecutionQueued)
	if err != nil {
		return err
	}

	err = w.eventBus.Subscribe(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	err = w.scheduler.Start(ctx)
	if err != nil {
		return err
	}

	w.logger.InfoContext(ctx, "Worker started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	w.logger.InfoContext(ctx, "Shutting down worker...")

	return w.scheduler.Stop(ctx)
}

func (w *WorkerManager) handleExecutionQueued(ctx context.Context, event any) error {
	queuedEvent, ok := event.(*events.ExecutionQueued)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for ExecutionQueued")

		return nil
	}

	logger := w.logger.With(
		"execution_id", queuedEvent.ExecutionID,
		"workflow_id", queuedEvent.WorkflowID,
		"event_id", queuedEvent.ID,
	)
	logger.InfoContext(ctx, "Processing execution queued event")

	err := w.engine.Advance(ctx, queuedEvent.ExecutionID)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, engine.ErrAdvanceInProgress):
		// Another worker holds the lock; its advance covers this event.
		logger.InfoContext(ctx, "Execution already being advanced")

		return nil
	case errors.Is(err, engine.ErrExecutionNotRunnable):
		// Duplicate or stale queue event. The execution is suspended or
		// already terminal; nothing to redo.
		logger.InfoContext(ctx, "Execution not runnable", "reason", err)

		return nil
	default:
		logger.ErrorContext(ctx, "Failed to advance execution", "error", err)

		return err
	}
}
