// Package events defines the execution lifecycle events published on the
// event bus. Workers consume ExecutionQueued to pick up advance work; the
// rest is notification fan-out.
package events

import (
	"time"

	"github.com/netpilot/netpilot/pkg/models"
)

// EventType discriminates event payloads on the wire.
type EventType string

// Topic is the bus topic carrying all execution events.
const Topic = "netpilot.executions"

const (
	EventMetadataKey     = "key"
	EventTypeMetadataKey = "event_type"
)

const (
	ExecutionQueuedEvent            EventType = "execution.queued"
	ExecutionStartedEvent           EventType = "execution.started"
	ExecutionAwaitingApprovalEvent  EventType = "execution.awaiting_approval"
	ExecutionCompletedEvent         EventType = "execution.completed"
	ExecutionFailedEvent            EventType = "execution.failed"
	ExecutionCancelledEvent         EventType = "execution.cancelled"
	ExecutionStepFinishedEvent      EventType = "execution.step.finished"
)

// BaseEvent carries the fields every execution event shares.
type BaseEvent struct {
	ID          string         `json:"id"`
	Type        EventType      `json:"type"`
	Timestamp   time.Time      `json:"timestamp"`
	ExecutionID string         `json:"execution_id"`
	WorkflowID  string         `json:"workflow_id"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// ExecutionQueued announces an execution eligible for an advance.
type ExecutionQueued struct {
	BaseEvent

	Operation models.Operation `json:"operation"`
}

func (e ExecutionQueued) GetType() EventType { return ExecutionQueuedEvent }

// ExecutionStarted announces the pending-to-running transition.
type ExecutionStarted struct {
	BaseEvent
}

func (e ExecutionStarted) GetType() EventType { return ExecutionStartedEvent }

// ExecutionAwaitingApproval announces a durable approval suspension.
type ExecutionAwaitingApproval struct {
	BaseEvent
}

func (e ExecutionAwaitingApproval) GetType() EventType { return ExecutionAwaitingApprovalEvent }

// ExecutionCompleted announces a terminal successful run.
type ExecutionCompleted struct {
	BaseEvent

	Duration time.Duration `json:"duration"`
}

func (e ExecutionCompleted) GetType() EventType { return ExecutionCompletedEvent }

// ExecutionFailed announces a terminal failed run with its preserved error.
type ExecutionFailed struct {
	BaseEvent

	Error string `json:"error"`
}

func (e ExecutionFailed) GetType() EventType { return ExecutionFailedEvent }

// ExecutionCancelled announces an operator cancellation.
type ExecutionCancelled struct {
	BaseEvent
}

func (e ExecutionCancelled) GetType() EventType { return ExecutionCancelledEvent }

// ExecutionStepFinished announces one finalized execution step.
type ExecutionStepFinished struct {
	BaseEvent

	Order      int               `json:"order"`
	StepName   string            `json:"step_name"`
	StepStatus models.StepStatus `json:"step_status"`
}

func (e ExecutionStepFinished) GetType() EventType { return ExecutionStepFinishedEvent }
