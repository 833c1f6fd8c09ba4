package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// NodeOutputBinding returns the context binding name under which a completed
// node's output is published, e.g. "node_fetch_output".
func NodeOutputBinding(nodeID string) string {
	return "node_" + nodeID + "_output"
}

// ExecutionState is the single owner of all run-mutable data for one workflow
// run. It is mutated only by the scheduler goroutine; everyone else observes
// it through snapshots and checkpoints.
type ExecutionState struct {
	RunID         string                 `json:"run_id"`
	WorkflowName  string                 `json:"workflow_name"`
	Status        RunStatus              `json:"status"`
	Definition    *WorkflowDefinition    `json:"definition"`
	Results       map[string]*NodeResult `json:"results"`
	Context       map[string]any         `json:"context"`
	Error         string                 `json:"error,omitempty"`
	CheckpointIDs []string               `json:"checkpoint_ids,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
	FinishedAt    *time.Time             `json:"finished_at,omitempty"`
}

// Result returns the node's result, allocating a pending one on first use.
func (s *ExecutionState) Result(nodeID string) *NodeResult {
	if s.Results == nil {
		s.Results = make(map[string]*NodeResult)
	}

	result, ok := s.Results[nodeID]
	if !ok {
		result = &NodeResult{NodeID: nodeID, Status: NodeStatusPending}
		s.Results[nodeID] = result
	}

	return result
}

// NodeStatus returns the node's current status, pending if it has none yet.
func (s *ExecutionState) NodeStatus(nodeID string) NodeStatus {
	if result, ok := s.Results[nodeID]; ok {
		return result.Status
	}

	return NodeStatusPending
}

// Clone returns a deep copy of the state via a JSON round-trip. All state
// content is JSON-serializable by construction, since it must survive
// persistence anyway.
func (s *ExecutionState) Clone() (*ExecutionState, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize execution state: %w", err)
	}

	clone := &ExecutionState{}
	if err := json.Unmarshal(raw, clone); err != nil {
		return nil, fmt.Errorf("failed to deserialize execution state: %w", err)
	}

	return clone, nil
}

// Checkpoint is an immutable deep snapshot of an ExecutionState at one
// instant, identified by id and timestamp.
type Checkpoint struct {
	ID      string          `json:"id"`
	RunID   string          `json:"run_id"`
	Label   string          `json:"label,omitempty"`
	TakenAt time.Time       `json:"taken_at"`
	State   *ExecutionState `json:"state"`
}

// Clone returns a deep copy of the checkpoint, including its state snapshot.
func (c *Checkpoint) Clone() (*Checkpoint, error) {
	clone := *c

	if c.State != nil {
		state, err := c.State.Clone()
		if err != nil {
			return nil, err
		}

		clone.State = state
	}

	return &clone, nil
}
