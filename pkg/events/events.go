// Package events defines the typed lifecycle events the engine emits for
// workflow and node state transitions.
package events

import (
	"time"

	"github.com/dukex/maestro/pkg/models"
)

type EventType string

// Topic is the event-bus topic run lifecycle events are published on.
const Topic = "maestro.runs"

const EventKeyMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	WorkflowStartedEvent   EventType = "workflow.started"
	WorkflowCompletedEvent EventType = "workflow.completed"
	WorkflowFailedEvent    EventType = "workflow.failed"
	WorkflowPausedEvent    EventType = "workflow.paused"
	WorkflowResumedEvent   EventType = "workflow.resumed"
	WorkflowCancelledEvent EventType = "workflow.cancelled"

	NodeStartedEvent   EventType = "node.started"
	NodeCompletedEvent EventType = "node.completed"
	NodeFailedEvent    EventType = "node.failed"
	NodeRetriedEvent   EventType = "node.retried"
	NodeSkippedEvent   EventType = "node.skipped"

	StateCheckpointedEvent EventType = "state.checkpointed"
)

// BaseEvent carries the fields every lifecycle event shares.
type BaseEvent struct {
	ID           string         `json:"id"`
	Type         EventType      `json:"type"`
	Timestamp    time.Time      `json:"timestamp"`
	RunID        string         `json:"run_id"`
	WorkflowName string         `json:"workflow_name,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

type WorkflowStarted struct {
	BaseEvent

	EntryNode string `json:"entry_node"`
	NodeCount int    `json:"node_count"`
}

func (e WorkflowStarted) GetType() EventType { return WorkflowStartedEvent }

type WorkflowCompleted struct {
	BaseEvent

	Duration time.Duration `json:"duration"`
}

func (e WorkflowCompleted) GetType() EventType { return WorkflowCompletedEvent }

type WorkflowFailed struct {
	BaseEvent

	Error    string        `json:"error"`
	Duration time.Duration `json:"duration"`
}

func (e WorkflowFailed) GetType() EventType { return WorkflowFailedEvent }

type WorkflowPaused struct {
	BaseEvent
}

func (e WorkflowPaused) GetType() EventType { return WorkflowPausedEvent }

type WorkflowResumed struct {
	BaseEvent

	CheckpointID string `json:"checkpoint_id,omitempty"`
}

func (e WorkflowResumed) GetType() EventType { return WorkflowResumedEvent }

type WorkflowCancelled struct {
	BaseEvent

	Reason   string        `json:"reason,omitempty"`
	Duration time.Duration `json:"duration"`
}

func (e WorkflowCancelled) GetType() EventType { return WorkflowCancelledEvent }

type NodeStarted struct {
	BaseEvent

	NodeID  string `json:"node_id"`
	Attempt int    `json:"attempt"`
}

func (e NodeStarted) GetType() EventType { return NodeStartedEvent }

type NodeCompleted struct {
	BaseEvent

	NodeID   string        `json:"node_id"`
	Status   string        `json:"status"`
	Attempts int           `json:"attempts"`
	Duration time.Duration `json:"duration"`
}

func (e NodeCompleted) GetType() EventType { return NodeCompletedEvent }

type NodeFailed struct {
	BaseEvent

	NodeID    string        `json:"node_id"`
	Error     string        `json:"error"`
	ErrorKind string        `json:"error_kind,omitempty"`
	Attempts  int           `json:"attempts"`
	Duration  time.Duration `json:"duration"`
}

func (e NodeFailed) GetType() EventType { return NodeFailedEvent }

// NodeRetried is emitted before every re-attempt of a failed node.
type NodeRetried struct {
	BaseEvent

	NodeID  string        `json:"node_id"`
	Attempt int           `json:"attempt"` // The attempt about to start
	Delay   time.Duration `json:"delay"`
	Error   string        `json:"error"` // The failure that triggered the retry
}

func (e NodeRetried) GetType() EventType { return NodeRetriedEvent }

type NodeSkipped struct {
	BaseEvent

	NodeID string `json:"node_id"`
	Reason string `json:"reason,omitempty"`
}

func (e NodeSkipped) GetType() EventType { return NodeSkippedEvent }

type StateCheckpointed struct {
	BaseEvent

	CheckpointID string           `json:"checkpoint_id"`
	Label        string           `json:"label,omitempty"`
	RunStatus    models.RunStatus `json:"run_status"`
}

func (e StateCheckpointed) GetType() EventType { return StateCheckpointedEvent }
