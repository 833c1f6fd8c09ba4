package engine

import (
	"time"

	"github.com/dukex/maestro/pkg/dag"
)

// DependencyPolicy decides when a node with multiple dependencies becomes
// ready versus skipped.
type DependencyPolicy string

const (
	// DependencyPolicyAll requires every dependency to complete; any skipped
	// or failed dependency skips the dependent. The safer default.
	DependencyPolicyAll DependencyPolicy = "all"

	// DependencyPolicyAny readies the dependent as soon as all dependencies
	// are terminal and at least one completed.
	DependencyPolicyAny DependencyPolicy = "any"
)

// FailurePolicy decides what an exhausted node failure does to the run.
type FailurePolicy string

const (
	// FailFast transitions the run to failed and cancels not-yet-started
	// nodes. Per-node continue_on_error overrides this for that node's
	// subtree. The default.
	FailFast FailurePolicy = "fail_fast"

	// ContinueOnError keeps dispatching independent paths; dependents of the
	// failed node are skipped.
	ContinueOnError FailurePolicy = "continue"
)

// Config tunes one engine instance. The zero value is usable.
type Config struct {
	// MaxConcurrency bounds how many nodes run at once. Default 4.
	MaxConcurrency int

	// WorkflowTimeout aborts the run like a cancellation when exceeded.
	// Zero means no workflow-level timeout.
	WorkflowTimeout time.Duration

	// DefaultNodeTimeout applies to nodes that declare none. Zero means
	// no per-node timeout unless the node declares one.
	DefaultNodeTimeout time.Duration

	// DependencyPolicy defaults to DependencyPolicyAll.
	DependencyPolicy DependencyPolicy

	// FailurePolicy defaults to FailFast.
	FailurePolicy FailurePolicy

	// StrictConditions escalates condition evaluation errors to node
	// failures instead of failing closed to false.
	StrictConditions bool

	// CheckpointEvery checkpoints after every N terminal node transitions.
	// Default 1. Terminal run transitions always checkpoint.
	CheckpointEvery int

	// UnreachablePolicy is forwarded to the DAG builder. Default warn.
	UnreachablePolicy dag.UnreachablePolicy
}

func (c Config) withDefaults() Config {
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = 4
	}

	if c.DependencyPolicy == "" {
		c.DependencyPolicy = DependencyPolicyAll
	}

	if c.FailurePolicy == "" {
		c.FailurePolicy = FailFast
	}

	if c.CheckpointEvery <= 0 {
		c.CheckpointEvery = 1
	}

	if c.UnreachablePolicy == "" {
		c.UnreachablePolicy = dag.UnreachableWarn
	}

	return c
}
