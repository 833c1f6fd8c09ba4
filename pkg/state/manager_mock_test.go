package state

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dukex/maestro/pkg/mocks"
)

func TestManager_SavePropagatesStoreError(t *testing.T) {
	store := &mocks.StoreMock{}
	store.On("PutState", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	manager := NewManager(store, slog.Default())

	err := manager.Save(t.Context(), runningState("run-1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	store.AssertExpectations(t)
}

func TestManager_CreateCheckpointPropagatesStoreError(t *testing.T) {
	store := &mocks.StoreMock{}
	store.On("PutCheckpoint", mock.Anything, mock.Anything).Return(errors.New("write refused"))

	manager := NewManager(store, slog.Default())
	state := runningState("run-1")

	_, err := manager.CreateCheckpoint(t.Context(), state, "after-node")
	require.Error(t, err)

	// A failed checkpoint must not be recorded on the live state.
	assert.Empty(t, state.CheckpointIDs)
	store.AssertExpectations(t)
}

func TestManager_ResumePropagatesListError(t *testing.T) {
	store := &mocks.StoreMock{}
	store.On("ListCheckpoints", mock.Anything, "run-1").Return(nil, errors.New("backend down"))

	manager := NewManager(store, slog.Default())

	_, err := manager.Resume(t.Context(), "run-1", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend down")
}

func TestManager_HealthCheckDelegates(t *testing.T) {
	store := &mocks.StoreMock{}
	store.On("HealthCheck", mock.Anything).Return(nil)

	manager := NewManager(store, slog.Default())
	require.NoError(t, manager.HealthCheck(t.Context()))
	store.AssertExpectations(t)
}
