package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrStateNotFound indicates no execution state exists for the run id.
	ErrStateNotFound = errors.New("execution state not found")

	// ErrCheckpointNotFound indicates the checkpoint id does not exist for the run.
	ErrCheckpointNotFound = errors.New("checkpoint not found")

	// ErrCheckpointCorrupt indicates a stored checkpoint could not be decoded.
	// A corrupt checkpoint fails only the resume attempt that touched it.
	ErrCheckpointCorrupt = errors.New("checkpoint corrupt")
)

// StateError wraps state-store failures with operation context.
type StateError struct {
	Op           string
	RunID        string
	CheckpointID string
	Err          error
}

func (e *StateError) Error() string {
	if e.CheckpointID != "" {
		return fmt.Sprintf("%s failed for run %s checkpoint %s: %v", e.Op, e.RunID, e.CheckpointID, e.Err)
	}

	return fmt.Sprintf("%s failed for run %s: %v", e.Op, e.RunID, e.Err)
}

func (e *StateError) Unwrap() error {
	return e.Err
}

func (e *StateError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewStateError creates a state error with operation context.
func NewStateError(op, runID string, err error) *StateError {
	return &StateError{Op: op, RunID: runID, Err: err}
}

// NewCheckpointError creates a state error scoped to one checkpoint.
func NewCheckpointError(op, runID, checkpointID string, err error) *StateError {
	return &StateError{Op: op, RunID: runID, CheckpointID: checkpointID, Err: err}
}

// IsStateNotFound checks if an error indicates a missing execution state.
func IsStateNotFound(err error) bool {
	return errors.Is(err, ErrStateNotFound)
}

// IsCheckpointNotFound checks if an error indicates a missing checkpoint.
func IsCheckpointNotFound(err error) bool {
	return errors.Is(err, ErrCheckpointNotFound)
}
