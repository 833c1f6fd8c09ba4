// Package redis provides a redis-backed Store for deployments that need
// shared run state across processes.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dukex/maestro/pkg/models"
	"github.com/dukex/maestro/pkg/persistence"
)

const keyPrefix = "maestro"

// Store keeps execution states under maestro:run:<id>, checkpoints under
// maestro:checkpoint:<run>:<id>, and the per-run checkpoint order in a list.
type Store struct {
	client *goredis.Client
}

func NewStore(url string) (*Store, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	return &Store{client: goredis.NewClient(opts)}, nil
}

// NewStoreWithClient wraps an existing client, mainly for tests.
func NewStoreWithClient(client *goredis.Client) *Store {
	return &Store{client: client}
}

func (s *Store) PutState(ctx context.Context, state *models.ExecutionState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return persistence.NewStateError("PutState", state.RunID, err)
	}

	if err := s.client.Set(ctx, stateKey(state.RunID), raw, 0).Err(); err != nil {
		return persistence.NewStateError("PutState", state.RunID, err)
	}

	return nil
}

func (s *Store) GetState(ctx context.Context, runID string) (*models.ExecutionState, error) {
	raw, err := s.client.Get(ctx, stateKey(runID)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
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

func (s *Store) PutCheckpoint(ctx context.Context, checkpoint *models.Checkpoint) error {
	raw, err := json.Marshal(checkpoint)
	if err != nil {
		return persistence.NewCheckpointError("PutCheckpoint", checkpoint.RunID, checkpoint.ID, err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, checkpointKey(checkpoint.RunID, checkpoint.ID), raw, 0)
	pipe.RPush(ctx, checkpointIndexKey(checkpoint.RunID), checkpoint.ID)

	if _, err := pipe.Exec(ctx); err != nil {
		return persistence.NewCheckpointError("PutCheckpoint", checkpoint.RunID, checkpoint.ID, err)
	}

	return nil
}

func (s *Store) GetCheckpoint(ctx context.Context, runID, checkpointID string) (*models.Checkpoint, error) {
	raw, err := s.client.Get(ctx, checkpointKey(runID, checkpointID)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, persistence.NewCheckpointError("GetCheckpoint", runID, checkpointID, persistence.ErrCheckpointNotFound)
		}

		return nil, persistence.NewCheckpointError("GetCheckpoint", runID, checkpointID, err)
	}

	checkpoint := &models.Checkpoint{}
	if err := json.Unmarshal(raw, checkpoint); err != nil {
		return nil, persistence.NewCheckpointError("GetCheckpoint", runID, checkpointID,
			fmt.Errorf("%w: %w", persistence.ErrCheckpointCorrupt, err))
	}

	return checkpoint, nil
}

func (s *Store) ListCheckpoints(ctx context.Context, runID string) ([]*models.Checkpoint, error) {
	ids, err := s.client.LRange(ctx, checkpointIndexKey(runID), 0, -1).Result()
	if err != nil {
		return nil, persistence.NewStateError("ListCheckpoints", runID, err)
	}

	checkpoints := make([]*models.Checkpoint, 0, len(ids))

	for _, id := range ids {
		checkpoint, err := s.GetCheckpoint(ctx, runID, id)
		if err != nil {
			if errors.Is(err, persistence.ErrCheckpointCorrupt) {
				continue
			}

			return nil, err
		}

		checkpoints = append(checkpoints, checkpoint)
	}

	return checkpoints, nil
}

func (s *Store) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close(_ context.Context) error {
	return s.client.Close()
}

func stateKey(runID string) string {
	return fmt.Sprintf("%s:run:%s", keyPrefix, runID)
}

func checkpointKey(runID, checkpointID string) string {
	return fmt.Sprintf("%s:checkpoint:%s:%s", keyPrefix, runID, checkpointID)
}

func checkpointIndexKey(runID string) string {
	return fmt.Sprintf("%s:checkpoints:%s", keyPrefix, runID)
}
