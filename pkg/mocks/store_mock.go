// Package mocks provides testify mocks for the persistence and event bus
// interfaces, for tests that need to script error paths the real backends
// cannot produce on demand.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dukex/maestro/pkg/models"
)

// StoreMock is a mock implementation of persistence.Store.
type StoreMock struct {
	mock.Mock
}

func (m *StoreMock) PutState(ctx context.Context, state *models.ExecutionState) error {
	args := m.Called(ctx, state)

	return args.Error(0)
}

func (m *StoreMock) GetState(ctx context.Context, runID string) (*models.ExecutionState, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.ExecutionState), args.Error(1)
}

func (m *StoreMock) PutCheckpoint(ctx context.Context, checkpoint *models.Checkpoint) error {
	args := m.Called(ctx, checkpoint)

	return args.Error(0)
}

func (m *StoreMock) GetCheckpoint(ctx context.Context, runID, checkpointID string) (*models.Checkpoint, error) {
	args := m.Called(ctx, runID, checkpointID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Checkpoint), args.Error(1)
}

func (m *StoreMock) ListCheckpoints(ctx context.Context, runID string) ([]*models.Checkpoint, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Checkpoint), args.Error(1)
}

func (m *StoreMock) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *StoreMock) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
