// Package memory provides an in-memory Store for tests and embedded use.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/dukex/maestro/pkg/models"
	"github.com/dukex/maestro/pkg/persistence"
)

// Store keeps states and checkpoints in process memory. Values are deep
// copied on the way in and out so callers can never alias stored state.
type Store struct {
	mu          sync.RWMutex
	states      map[string]*models.ExecutionState
	checkpoints map[string]map[string]*models.Checkpoint
}

func NewStore() *Store {
	return &Store{
		states:      make(map[string]*models.ExecutionState),
		checkpoints: make(map[string]map[string]*models.Checkpoint),
	}
}

func (s *Store) PutState(_ context.Context, state *models.ExecutionState) error {
	clone, err := state.Clone()
	if err != nil {
		return persistence.NewStateError("PutState", state.RunID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.states[state.RunID] = clone

	return nil
}

func (s *Store) GetState(_ context.Context, runID string) (*models.ExecutionState, error) {
	s.mu.RLock()
	state, ok := s.states[runID]
	s.mu.RUnlock()

	if !ok {
		return nil, persistence.NewStateError("GetState", runID, persistence.ErrStateNotFound)
	}

	clone, err := state.Clone()
	if err != nil {
		return nil, persistence.NewStateError("GetState", runID, err)
	}

	return clone, nil
}

func (s *Store) PutCheckpoint(_ context.Context, checkpoint *models.Checkpoint) error {
	clone, err := checkpoint.Clone()
	if err != nil {
		return persistence.NewCheckpointError("PutCheckpoint", checkpoint.RunID, checkpoint.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	byID, ok := s.checkpoints[checkpoint.RunID]
	if !ok {
		byID = make(map[string]*models.Checkpoint)
		s.checkpoints[checkpoint.RunID] = byID
	}

	byID[checkpoint.ID] = clone

	return nil
}

func (s *Store) GetCheckpoint(_ context.Context, runID, checkpointID string) (*models.Checkpoint, error) {
	s.mu.RLock()
	checkpoint, ok := s.checkpoints[runID][checkpointID]
	s.mu.RUnlock()

	if !ok {
		return nil, persistence.NewCheckpointError("GetCheckpoint", runID, checkpointID, persistence.ErrCheckpointNotFound)
	}

	clone, err := checkpoint.Clone()
	if err != nil {
		return nil, persistence.NewCheckpointError("GetCheckpoint", runID, checkpointID, err)
	}

	return clone, nil
}

func (s *Store) ListCheckpoints(_ context.Context, runID string) ([]*models.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	checkpoints := make([]*models.Checkpoint, 0, len(s.checkpoints[runID]))

	for _, checkpoint := range s.checkpoints[runID] {
		clone, err := checkpoint.Clone()
		if err != nil {
			return nil, persistence.NewCheckpointError("ListCheckpoints", runID, checkpoint.ID, err)
		}

		checkpoints = append(checkpoints, clone)
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
	return nil
}

func (s *Store) Close(_ context.Context) error {
	return nil
}
