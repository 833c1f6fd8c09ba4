package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleState() *ExecutionState {
	return &ExecutionState{
		RunID:        "run-abc12345",
		WorkflowName: "sample",
		Status:       RunStatusRunning,
		Definition: &WorkflowDefinition{
			Metadata:  Metadata{Name: "sample"},
			EntryNode: "fetch",
			Nodes: []*WorkflowNode{
				{ID: "fetch", Kind: NodeKindTool, Target: "http_request"},
			},
		},
		Results: map[string]*NodeResult{
			"fetch": {NodeID: "fetch", Status: NodeStatusCompleted, Output: map[string]any{"status_code": float64(200)}},
		},
		Context:   map[string]any{"region": "eu-west-1"},
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
}

func TestExecutionState_CloneIsDeep(t *testing.T) {
	state := sampleState()

	clone, err := state.Clone()
	require.NoError(t, err)

	clone.Results["fetch"].Status = NodeStatusFailed
	clone.Context["region"] = "us-east-1"

	assert.Equal(t, NodeStatusCompleted, state.Results["fetch"].Status)
	assert.Equal(t, "eu-west-1", state.Context["region"])
	assert.Equal(t, state.RunID, clone.RunID)
	assert.Equal(t, state.Definition.EntryNode, clone.Definition.EntryNode)
}

func TestExecutionState_ResultAllocatesPending(t *testing.T) {
	state := &ExecutionState{}

	result := state.Result("new")
	assert.Equal(t, NodeStatusPending, result.Status)
	assert.Equal(t, "new", result.NodeID)

	// Same pointer on subsequent access.
	result.Status = NodeStatusRunning
	assert.Equal(t, NodeStatusRunning, state.Result("new").Status)
}

func TestExecutionState_NodeStatusDefaultsToPending(t *testing.T) {
	state := sampleState()

	assert.Equal(t, NodeStatusCompleted, state.NodeStatus("fetch"))
	assert.Equal(t, NodeStatusPending, state.NodeStatus("unknown"))
}

func TestNodeOutputBinding(t *testing.T) {
	assert.Equal(t, "node_fetch_output", NodeOutputBinding("fetch"))
}

func TestNodeResult_Duration(t *testing.T) {
	start := time.Now().UTC()

	result := &NodeResult{StartedAt: start, FinishedAt: start.Add(3 * time.Second)}
	assert.Equal(t, 3*time.Second, result.Duration())

	assert.Zero(t, (&NodeResult{}).Duration())
	assert.Zero(t, (&NodeResult{StartedAt: start}).Duration())
}
