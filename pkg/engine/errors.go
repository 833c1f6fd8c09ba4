// Package engine implements the workflow executor: dynamic readiness
// scheduling over the dependency DAG, retry with backoff, condition and loop
// control flow, pause/resume/cancel, and checkpointed state.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukex/maestro/pkg/registry"
	"github.com/dukex/maestro/pkg/template"
)

// Error kinds raised per node. Retry policies match against these names.
const (
	ErrKindTargetNotFound     = "target_not_found"
	ErrKindUnresolvedVariable = "unresolved_variable"
	ErrKindNodeTimeout        = "node_timeout"
	ErrKindNodeFailure        = "node_failure"
)

// Orchestration errors raised by the scheduler itself; always terminal.
var (
	ErrWorkflowTimeout = errors.New("workflow timeout exceeded")
	ErrCancelled       = errors.New("workflow cancelled")
	ErrRunNotFound     = errors.New("run not active")
)

// ExecutionError is a per-node failure, classified so retry policies can
// select which kinds to retry.
type ExecutionError struct {
	NodeID string
	Kind   string
	Err    error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("node %q failed (%s): %v", e.NodeID, e.Kind, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// LoopLimitError indicates a loop exceeded its max_iterations hard bound.
type LoopLimitError struct {
	NodeID        string
	MaxIterations int
}

func (e *LoopLimitError) Error() string {
	return fmt.Sprintf("loop %q exceeded max_iterations (%d)", e.NodeID, e.MaxIterations)
}

// classify wraps a raw node failure into an ExecutionError with the matching
// kind, leaving already-classified errors alone.
func classify(nodeID string, err error) *ExecutionError {
	execErr := &ExecutionError{}
	if errors.As(err, &execErr) {
		return execErr
	}

	kind := ErrKindNodeFailure

	var unresolved *template.UnresolvedVariableError

	switch {
	case errors.Is(err, registry.ErrTargetNotFound):
		kind = ErrKindTargetNotFound
	case errors.As(err, &unresolved):
		kind = ErrKindUnresolvedVariable
	case errors.Is(err, context.DeadlineExceeded):
		kind = ErrKindNodeTimeout
	}

	return &ExecutionError{NodeID: nodeID, Kind: kind, Err: err}
}
