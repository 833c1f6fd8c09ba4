// Package state owns persistence and recovery of execution state: saving,
// loading, checkpointing and resume normalization.
package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dukex/maestro/pkg/models"
	"github.com/dukex/maestro/pkg/persistence"
)

// Manager mediates every state-store interaction for the engine.
type Manager struct {
	store  persistence.Store
	logger *slog.Logger
}

func NewManager(store persistence.Store, logger *slog.Logger) *Manager {
	return &Manager{store: store, logger: logger.With("module", "state_manager")}
}

// Save persists the current execution state.
func (m *Manager) Save(ctx context.Context, state *models.ExecutionState) error {
	state.UpdatedAt = time.Now().UTC()

	return m.store.PutState(ctx, state)
}

// Load fetches the last saved state for a run.
func (m *Manager) Load(ctx context.Context, runID string) (*models.ExecutionState, error) {
	return m.store.GetState(ctx, runID)
}

// CreateCheckpoint stores an immutable deep snapshot of the state and
// records its id on the live state. Returns the checkpoint id.
func (m *Manager) CreateCheckpoint(ctx context.Context, state *models.ExecutionState, label string) (string, error) {
	snapshot, err := state.Clone()
	if err != nil {
		return "", persistence.NewStateError("CreateCheckpoint", state.RunID, err)
	}

	checkpoint := &models.Checkpoint{
		ID:      uuid.New().String(),
		RunID:   state.RunID,
		Label:   label,
		TakenAt: time.Now().UTC(),
		State:   snapshot,
	}

	if err := m.store.PutCheckpoint(ctx, checkpoint); err != nil {
		return "", err
	}

	state.CheckpointIDs = append(state.CheckpointIDs, checkpoint.ID)

	if err := m.Save(ctx, state); err != nil {
		return "", err
	}

	m.logger.Debug("checkpoint created",
		"run_id", state.RunID,
		"checkpoint_id", checkpoint.ID,
		"label", label)

	return checkpoint.ID, nil
}

// ListCheckpoints returns the run's checkpoints in the order they were taken.
func (m *Manager) ListCheckpoints(ctx context.Context, runID string) ([]*models.Checkpoint, error) {
	return m.store.ListCheckpoints(ctx, runID)
}

// Resume reconstructs a runnable state from a checkpoint (the latest when
// checkpointID is empty). Nodes that were running when the snapshot was taken
// are reset to pending and will be re-dispatched; completed nodes keep their
// results and are not re-executed. Re-dispatch assumes node executions are
// idempotent or deduplicated by the collaborator.
func (m *Manager) Resume(ctx context.Context, runID, checkpointID string) (*models.ExecutionState, error) {
	checkpoint, err := m.resolveCheckpoint(ctx, runID, checkpointID)
	if err != nil {
		return nil, err
	}

	state, err := checkpoint.State.Clone()
	if err != nil {
		return nil, persistence.NewCheckpointError("Resume", runID, checkpoint.ID,
			fmt.Errorf("%w: %w", persistence.ErrCheckpointCorrupt, err))
	}

	reset := 0

	for _, result := range state.Results {
		if result.Status == models.NodeStatusRunning {
			result.Status = models.NodeStatusPending
			result.Error = ""
			result.ErrorKind = ""
			result.StartedAt = time.Time{}
			result.FinishedAt = time.Time{}
			reset++
		}
	}

	m.logger.Info("resuming from checkpoint",
		"run_id", runID,
		"checkpoint_id", checkpoint.ID,
		"reset_nodes", reset)

	return state, nil
}

func (m *Manager) resolveCheckpoint(ctx context.Context, runID, checkpointID string) (*models.Checkpoint, error) {
	if checkpointID != "" {
		return m.store.GetCheckpoint(ctx, runID, checkpointID)
	}

	checkpoints, err := m.store.ListCheckpoints(ctx, runID)
	if err != nil {
		return nil, err
	}

	if len(checkpoints) == 0 {
		return nil, persistence.NewStateError("Resume", runID, persistence.ErrCheckpointNotFound)
	}

	return checkpoints[len(checkpoints)-1], nil
}

// HealthCheck reports whether the underlying store is reachable.
func (m *Manager) HealthCheck(ctx context.Context) error {
	return m.store.HealthCheck(ctx)
}

// IsNotFound reports whether the error is any of the store's not-found kinds.
func IsNotFound(err error) bool {
	return errors.Is(err, persistence.ErrStateNotFound) || errors.Is(err, persistence.ErrCheckpointNotFound)
}
