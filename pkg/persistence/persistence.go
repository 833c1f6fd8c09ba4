// Package persistence abstracts the state store behind the engine. No
// specific storage technology is mandated; the engine only needs the Store
// contract below.
package persistence

import (
	"context"

	"github.com/dukex/maestro/pkg/models"
)

// Store persists execution states and their checkpoints.
type Store interface {
	PutState(ctx context.Context, state *models.ExecutionState) error
	GetState(ctx context.Context, runID string) (*models.ExecutionState, error)

	PutCheckpoint(ctx context.Context, checkpoint *models.Checkpoint) error
	GetCheckpoint(ctx context.Context, runID, checkpointID string) (*models.Checkpoint, error)
	ListCheckpoints(ctx context.Context, runID string) ([]*models.Checkpoint, error)

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
