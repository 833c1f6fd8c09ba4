// Package file provides a file-system Store: one JSON blob per execution
// state, one per checkpoint.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dukex/maestro/pkg/models"
	"github.com/dukex/maestro/pkg/persistence"
)

// Store lays runs out as <root>/runs/<run_id>.json and checkpoints as
// <root>/checkpoints/<run_id>/<checkpoint_id>.json.
type Store struct {
	root string
}

func NewStore(root string) *Store {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Store{root: cleanRoot}
}

func (s *Store) PutState(_ context.Context, state *models.ExecutionState) error {
	if err := os.MkdirAll(filepath.Join(s.root, "runs"), 0o755); err != nil {
		return persistence.NewStateError("PutState", state.RunID, err)
	}

	raw, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return persistence.NewStateError("PutState", state.RunID, err)
	}

	if err := os.WriteFile(s.statePath(state.RunID), raw, 0o644); err != nil {
		return persistence.NewStateError("PutState", state.RunID, err)
	}

	return nil
}

func (s *Store) GetState(_ context.Context, runID string) (*models.ExecutionState, error) {
	raw, err := os.ReadFile(s.statePath(runID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, persistence.NewStateError("GetState", runID, persistence.ErrStateNotFound)
		}

		return nil, persistence.NewStateError("GetState", runID, err)
	}

	state := &models.ExecutionState{}
	if err := json.Unmarshal(raw, state); err != nil {
		return nil, persistence.NewStateError("GetState", runID, err)
	}

	return state, nil
}

func (s *Store) PutCheckpoint(_ context.Context, checkpoint *models.Checkpoint) error {
	dir := filepath.Join(s.root, "checkpoints", checkpoint.RunID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return persistence.NewCheckpointError("PutCheckpoint", checkpoint.RunID, checkpoint.ID, err)
	}

	raw, err := json.MarshalIndent(checkpoint, "", "  ")
	if err != nil {
		return persistence.NewCheckpointError("PutCheckpoint", checkpoint.RunID, checkpoint.ID, err)
	}

	path := filepath.Join(dir, checkpoint.ID+".json")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return persistence.NewCheckpointError("PutCheckpoint", checkpoint.RunID, checkpoint.ID, err)
	}

	return nil
}

func (s *Store) GetCheckpoint(_ context.Context, runID, checkpointID string) (*models.Checkpoint, error) {
	path := filepath.Join(s.root, "checkpoints", runID, checkpointID+".json")

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, persistence.NewCheckpointError("GetCheckpoint", runID, checkpointID, persistence.ErrCheckpointNotFound)
		}

		return nil, persistence.NewCheckpointError("GetCheckpoint", runID, checkpointID, err)
	}

	checkpoint := &models.Checkpoint{}
	if err := json.Unmarshal(raw, checkpoint); err != nil {
		// A blob that no longer decodes fails only this checkpoint, not the store.
		return nil, persistence.NewCheckpointError("GetCheckpoint", runID, checkpointID,
			fmt.Errorf("%w: %w", persistence.ErrCheckpointCorrupt, err))
	}

	return checkpoint, nil
}

func (s *Store) ListCheckpoints(ctx context.Context, runID string) ([]*models.Checkpoint, error) {
	dir := filepath.Join(s.root, "checkpoints", runID)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, persistence.NewStateError("ListCheckpoints", runID, err)
	}

	var checkpoints []*models.Checkpoint

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		checkpointID := strings.TrimSuffix(entry.Name(), ".json")

		checkpoint, err := s.GetCheckpoint(ctx, runID, checkpointID)
		if err != nil {
			if errors.Is(err, persistence.ErrCheckpointCorrupt) {
				continue
			}

			return nil, err
		}

		checkpoints = append(checkpoints, checkpoint)
	}

	sort.Slice(checkpoints, func(i, j int) bool {
		if checkpoints[i].TakenAt.Equal(checkpoints[j].TakenAt) {
			return checkpoints[i].ID < checkpoints[j].ID
		}

		return checkpoints[i].TakenAt.Before(checkpoints[j].TakenAt)
	})

	return checkpoints, nil
}

func (s *Store) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(s.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (s *Store) Close(_ context.Context) error {
	return nil
}

func (s *Store) statePath(runID string) string {
	return filepath.Join(s.root, "runs", runID+".json")
}
