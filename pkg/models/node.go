package models

// NodeKind discriminates the variants a workflow node can take. Each kind
// carries only the fields relevant to it; the definition validator rejects
// mismatched combinations.
type NodeKind string

const (
	NodeKindAgent     NodeKind = "agent"     // Work delegated to a registered agent
	NodeKindTool      NodeKind = "tool"      // Direct tool invocation
	NodeKindService   NodeKind = "service"   // External service call
	NodeKindCondition NodeKind = "condition" // Boolean branch over the run context
	NodeKindLoop      NodeKind = "loop"      // foreach / while iteration over a body
	NodeKindParallel  NodeKind = "parallel"  // Inline children executed concurrently
	NodeKindSequence  NodeKind = "sequence"  // Inline children executed in order
)

// IsInvokable reports whether the kind resolves a target through a
// capability registry.
func (k NodeKind) IsInvokable() bool {
	return k == NodeKindAgent || k == NodeKindTool || k == NodeKindService
}

// HasChildren reports whether the kind carries inline child nodes.
func (k NodeKind) HasChildren() bool {
	return k == NodeKindLoop || k == NodeKindParallel || k == NodeKindSequence
}

func (k NodeKind) Valid() bool {
	switch k {
	case NodeKindAgent, NodeKindTool, NodeKindService, NodeKindCondition,
		NodeKindLoop, NodeKindParallel, NodeKindSequence:
		return true
	default:
		return false
	}
}

// WorkflowNode is one work item in a workflow graph.
type WorkflowNode struct {
	ID              string          `json:"id"                          yaml:"id"                validate:"required"`
	Kind            NodeKind        `json:"type"                        yaml:"type"              validate:"required"`
	Name            string          `json:"name,omitempty"              yaml:"name"`
	Target          string          `json:"target,omitempty"            yaml:"target"`
	Params          map[string]any  `json:"params,omitempty"            yaml:"params"`
	DependsOn       []string        `json:"depends_on,omitempty"        yaml:"depends_on"`
	Retry           *RetryPolicy    `json:"retry_policy,omitempty"      yaml:"retry_policy"`
	Condition       *Condition      `json:"condition,omitempty"         yaml:"condition"`
	Loop            *LoopConfig     `json:"loop,omitempty"              yaml:"loop"`
	Nodes           []*WorkflowNode `json:"nodes,omitempty"             yaml:"nodes"`
	Timeout         Duration        `json:"timeout,omitempty"           yaml:"timeout"`
	ContinueOnError bool            `json:"continue_on_error,omitempty" yaml:"continue_on_error"`
}

// RetryPolicy governs automatic re-execution of a failed node.
type RetryPolicy struct {
	MaxAttempts   int      `json:"max_attempts"              yaml:"max_attempts"    validate:"required,gte=1"`
	InitialDelay  Duration `json:"initial_delay"             yaml:"initial_delay"`
	BackoffFactor float64  `json:"backoff_factor"            yaml:"backoff_factor"  validate:"omitempty,gte=1"`
	MaxDelay      Duration `json:"max_delay,omitempty"       yaml:"max_delay"`
	RetryOn       []string `json:"retry_on_errors,omitempty" yaml:"retry_on_errors"` // Error kinds; empty retries any
}

// Condition is a branch expression over declared context variables. The
// grammar is restricted to comparisons and boolean combinators; see pkg/expr.
type Condition struct {
	Expression string `json:"expression"       yaml:"expression" validate:"required"`
	Strict     bool   `json:"strict,omitempty" yaml:"strict"` // Escalate evaluation errors instead of failing closed
}

// LoopKind selects between foreach and while iteration.
type LoopKind string

const (
	LoopKindForeach LoopKind = "foreach"
	LoopKindWhile   LoopKind = "while"
)

// LoopConfig configures a loop node. Foreach loops resolve Items against the
// run context; while loops re-evaluate Predicate before every iteration.
// MaxIterations is a hard safety bound independent of predicate correctness.
type LoopConfig struct {
	Kind          LoopKind `json:"kind"                yaml:"kind"           validate:"required,oneof=foreach while"`
	Items         string   `json:"items,omitempty"     yaml:"items"`
	Predicate     string   `json:"predicate,omitempty" yaml:"predicate"`
	MaxIterations int      `json:"max_iterations"      yaml:"max_iterations" validate:"required,gte=1"`
	ItemVar       string   `json:"item_var,omitempty"  yaml:"item_var"`
	Parallel      bool     `json:"parallel,omitempty"  yaml:"parallel"`
}
