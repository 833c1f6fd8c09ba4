package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/maestro/pkg/models"
	"github.com/dukex/maestro/pkg/persistence"
)

func sampleState(runID string) *models.ExecutionState {
	return &models.ExecutionState{
		RunID:        runID,
		WorkflowName: "sample",
		Status:       models.RunStatusRunning,
		Results: map[string]*models.NodeResult{
			"a": {NodeID: "a", Status: models.NodeStatusCompleted},
		},
		Context:   map[string]any{"key": "value"},
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
}

func TestStore_PutGetState(t *testing.T) {
	store := NewStore()
	state := sampleState("run-1")

	require.NoError(t, store.PutState(t.Context(), state))

	loaded, err := store.GetState(t.Context(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, state.RunID, loaded.RunID)
	assert.Equal(t, models.NodeStatusCompleted, loaded.Results["a"].Status)
}

func TestStore_GetStateNotFound(t *testing.T) {
	store := NewStore()

	_, err := store.GetState(t.Context(), "ghost")
	require.ErrorIs(t, err, persistence.ErrStateNotFound)
}

func TestStore_StoredStateDoesNotAliasCaller(t *testing.T) {
	store := NewStore()
	state := sampleState("run-1")

	require.NoError(t, store.PutState(t.Context(), state))

	// Mutating the caller's copy after Put must not affect the store.
	state.Results["a"].Status = models.NodeStatusFailed

	loaded, err := store.GetState(t.Context(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, models.NodeStatusCompleted, loaded.Results["a"].Status)

	// Mutating a loaded copy must not affect subsequent loads.
	loaded.Context["key"] = "mutated"

	again, err := store.GetState(t.Context(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "value", again.Context["key"])
}

func TestStore_Checkpoints(t *testing.T) {
	store := NewStore()
	base := time.Now().UTC()

	for i, id := range []string{"cp-b", "cp-a", "cp-c"} {
		checkpoint := &models.Checkpoint{
			ID:      id,
			RunID:   "run-1",
			TakenAt: base.Add(time.Duration(i) * time.Second),
			State:   sampleState("run-1"),
		}
		require.NoError(t, store.PutCheckpoint(t.Context(), checkpoint))
	}

	loaded, err := store.GetCheckpoint(t.Context(), "run-1", "cp-a")
	require.NoError(t, err)
	assert.Equal(t, "cp-a", loaded.ID)

	list, err := store.ListCheckpoints(t.Context(), "run-1")
	require.NoError(t, err)
	require.Len(t, list, 3)

	// Ordered by TakenAt, insertion order here.
	assert.Equal(t, "cp-b", list[0].ID)
	assert.Equal(t, "cp-c", list[2].ID)
}

func TestStore_StoredCheckpointDoesNotAliasCaller(t *testing.T) {
	store := NewStore()
	checkpoint := &models.Checkpoint{
		ID:      "cp-1",
		RunID:   "run-1",
		TakenAt: time.Now().UTC(),
		State:   sampleState("run-1"),
	}

	require.NoError(t, store.PutCheckpoint(t.Context(), checkpoint))

	// Mutating the caller's snapshot after Put must not affect the store.
	checkpoint.State.Results["a"].Status = models.NodeStatusFailed
	checkpoint.Label = "mutated"

	loaded, err := store.GetCheckpoint(t.Context(), "run-1", "cp-1")
	require.NoError(t, err)
	assert.Equal(t, models.NodeStatusCompleted, loaded.State.Results["a"].Status)
	assert.Empty(t, loaded.Label)

	// Mutating a loaded copy must not affect subsequent reads.
	loaded.State.Context["key"] = "mutated"

	list, err := store.ListCheckpoints(t.Context(), "run-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "value", list[0].State.Context["key"])
}

func TestStore_GetCheckpointNotFound(t *testing.T) {
	store := NewStore()

	_, err := store.GetCheckpoint(t.Context(), "run-1", "ghost")
	require.ErrorIs(t, err, persistence.ErrCheckpointNotFound)
}

func TestStore_HealthCheck(t *testing.T) {
	store := NewStore()
	require.NoError(t, store.HealthCheck(t.Context()))
	require.NoError(t, store.Close(t.Context()))
}
