package state

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/maestro/pkg/models"
	"github.com/dukex/maestro/pkg/persistence"
	"github.com/dukex/maestro/pkg/persistence/memory"
)

func newManager() *Manager {
	return NewManager(memory.NewStore(), slog.Default())
}

func runningState(runID string) *models.ExecutionState {
	return &models.ExecutionState{
		RunID:        runID,
		WorkflowName: "sample",
		Status:       models.RunStatusRunning,
		Results: map[string]*models.NodeResult{
			"done":    {NodeID: "done", Status: models.NodeStatusCompleted, Output: "kept"},
			"inflight": {NodeID: "inflight", Status: models.NodeStatusRunning, StartedAt: time.Now().UTC()},
			"waiting": {NodeID: "waiting", Status: models.NodeStatusPending},
		},
		Context:   map[string]any{"node_done_output": "kept"},
		CreatedAt: time.Now().UTC(),
	}
}

func TestManager_SaveLoad(t *testing.T) {
	manager := newManager()
	state := runningState("run-1")

	require.NoError(t, manager.Save(t.Context(), state))
	assert.False(t, state.UpdatedAt.IsZero())

	loaded, err := manager.Load(t.Context(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "sample", loaded.WorkflowName)
}

func TestManager_LoadNotFound(t *testing.T) {
	manager := newManager()

	_, err := manager.Load(t.Context(), "ghost")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestManager_CreateCheckpointRecordsID(t *testing.T) {
	manager := newManager()
	state := runningState("run-1")

	checkpointID, err := manager.CreateCheckpoint(t.Context(), state, "after-node")
	require.NoError(t, err)
	require.NotEmpty(t, checkpointID)
	assert.Equal(t, []string{checkpointID}, state.CheckpointIDs)

	checkpoints, err := manager.ListCheckpoints(t.Context(), "run-1")
	require.NoError(t, err)
	require.Len(t, checkpoints, 1)
	assert.Equal(t, "after-node", checkpoints[0].Label)
}

func TestManager_CheckpointIsImmutableSnapshot(t *testing.T) {
	manager := newManager()
	state := runningState("run-1")

	checkpointID, err := manager.CreateCheckpoint(t.Context(), state, "")
	require.NoError(t, err)

	// Later mutations to the live state must not leak into the snapshot.
	state.Results["waiting"].Status = models.NodeStatusCompleted

	resumed, err := manager.Resume(t.Context(), "run-1", checkpointID)
	require.NoError(t, err)
	assert.Equal(t, models.NodeStatusPending, resumed.Results["waiting"].Status)
}

func TestManager_ResumeResetsRunningNodes(t *testing.T) {
	manager := newManager()
	state := runningState("run-1")

	_, err := manager.CreateCheckpoint(t.Context(), state, "")
	require.NoError(t, err)

	resumed, err := manager.Resume(t.Context(), "run-1", "")
	require.NoError(t, err)

	// Completed results survive; in-flight work is re-dispatched.
	assert.Equal(t, models.NodeStatusCompleted, resumed.Results["done"].Status)
	assert.Equal(t, "kept", resumed.Results["done"].Output)
	assert.Equal(t, models.NodeStatusPending, resumed.Results["inflight"].Status)
	assert.True(t, resumed.Results["inflight"].StartedAt.IsZero())
	assert.Equal(t, models.NodeStatusPending, resumed.Results["waiting"].Status)
	assert.Equal(t, "kept", resumed.Context["node_done_output"])
}

func TestManager_ResumePicksLatestCheckpoint(t *testing.T) {
	manager := newManager()
	state := runningState("run-1")

	_, err := manager.CreateCheckpoint(t.Context(), state, "first")
	require.NoError(t, err)

	state.Results["waiting"].Status = models.NodeStatusCompleted
	time.Sleep(5 * time.Millisecond)

	_, err = manager.CreateCheckpoint(t.Context(), state, "second")
	require.NoError(t, err)

	resumed, err := manager.Resume(t.Context(), "run-1", "")
	require.NoError(t, err)
	assert.Equal(t, models.NodeStatusCompleted, resumed.Results["waiting"].Status)
}

func TestManager_ResumeWithoutCheckpoints(t *testing.T) {
	manager := newManager()

	_, err := manager.Resume(t.Context(), "never-ran", "")
	require.ErrorIs(t, err, persistence.ErrCheckpointNotFound)
	assert.True(t, IsNotFound(err))
}

func TestManager_ResumeUnknownCheckpoint(t *testing.T) {
	manager := newManager()
	state := runningState("run-1")

	_, err := manager.CreateCheckpoint(t.Context(), state, "")
	require.NoError(t, err)

	_, err = manager.Resume(t.Context(), "run-1", "ghost")
	require.ErrorIs(t, err, persistence.ErrCheckpointNotFound)
}

func TestManager_HealthCheck(t *testing.T) {
	manager := newManager()
	require.NoError(t, manager.HealthCheck(t.Context()))
}
