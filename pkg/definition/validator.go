package definition

import (
	"github.com/go-playground/validator/v10"

	"github.com/dukex/maestro/pkg/expr"
	"github.com/dukex/maestro/pkg/models"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate runs all structural checks on a decoded definition. It is called
// once before any scheduling; node dispatch can assume a well-formed graph.
func Validate(def *models.WorkflowDefinition) error {
	if err := validate.Struct(def); err != nil {
		return &Error{Kind: ErrKindValidation, Message: "definition failed field validation", Err: err}
	}

	ids := make(map[string]bool)
	if err := collectIDs(def.Nodes, ids); err != nil {
		return err
	}

	if !ids[def.EntryNode] {
		return newError(ErrKindMissingEntryNode, "", "entry node %q is not defined", def.EntryNode)
	}

	topLevel := make(map[string]bool, len(def.Nodes))
	for _, node := range def.Nodes {
		topLevel[node.ID] = true
	}

	for _, node := range def.Nodes {
		for _, dep := range node.DependsOn {
			if !topLevel[dep] {
				return newError(ErrKindDanglingDependency, node.ID, "depends on undefined node %q", dep)
			}

			if dep == node.ID {
				return newError(ErrKindDanglingDependency, node.ID, "depends on itself")
			}
		}
	}

	return validateNodes(def.Nodes, false)
}

func collectIDs(nodes []*models.WorkflowNode, seen map[string]bool) error {
	for _, node := range nodes {
		if seen[node.ID] {
			return newError(ErrKindDuplicateID, node.ID, "id defined more than once")
		}

		seen[node.ID] = true

		if err := collectIDs(node.Nodes, seen); err != nil {
			return err
		}
	}

	return nil
}

func validateNodes(nodes []*models.WorkflowNode, nested bool) error {
	for _, node := range nodes {
		if err := validateNode(node, nested); err != nil {
			return err
		}

		if err := validateNodes(node.Nodes, true); err != nil {
			return err
		}
	}

	return nil
}

// validateNode enforces kind/field coherence: each node variant carries only
// the fields relevant to it.
func validateNode(node *models.WorkflowNode, nested bool) error {
	if !node.Kind.Valid() {
		return newError(ErrKindInvalidPolicy, node.ID, "unknown node type %q", node.Kind)
	}

	if nested && len(node.DependsOn) > 0 {
		return newError(ErrKindInvalidPolicy, node.ID, "inline child nodes cannot declare depends_on")
	}

	if node.Kind.IsInvokable() && node.Target == "" {
		return newError(ErrKindInvalidPolicy, node.ID, "%s nodes require a target", node.Kind)
	}

	if !node.Kind.IsInvokable() && node.Target != "" {
		return newError(ErrKindInvalidPolicy, node.ID, "%s nodes cannot have a target", node.Kind)
	}

	if node.Condition != nil && node.Kind != models.NodeKindCondition {
		return newError(ErrKindInvalidPolicy, node.ID, "condition is only valid on condition nodes")
	}

	if node.Kind == models.NodeKindCondition {
		if node.Condition == nil {
			return newError(ErrKindInvalidPolicy, node.ID, "condition nodes require an expression")
		}

		if _, err := expr.Parse(node.Condition.Expression); err != nil {
			return &Error{Kind: ErrKindInvalidExpression, NodeID: node.ID, Message: "condition does not parse", Err: err}
		}
	}

	if node.Loop != nil && node.Kind != models.NodeKindLoop {
		return newError(ErrKindInvalidPolicy, node.ID, "loop config is only valid on loop nodes")
	}

	if node.Kind == models.NodeKindLoop {
		if err := validateLoop(node); err != nil {
			return err
		}
	}

	if len(node.Nodes) > 0 && !node.Kind.HasChildren() {
		return newError(ErrKindInvalidPolicy, node.ID, "%s nodes cannot have inline children", node.Kind)
	}

	if node.Kind.HasChildren() && len(node.Nodes) == 0 {
		return newError(ErrKindInvalidPolicy, node.ID, "%s nodes require at least one inline child", node.Kind)
	}

	if node.Retry != nil {
		if node.Retry.MaxAttempts < 1 {
			return newError(ErrKindInvalidPolicy, node.ID, "retry max_attempts must be at least 1")
		}

		if node.Retry.BackoffFactor != 0 && node.Retry.BackoffFactor < 1 {
			return newError(ErrKindInvalidPolicy, node.ID, "retry backoff_factor must be at least 1")
		}
	}

	return nil
}

func validateLoop(node *models.WorkflowNode) error {
	loop := node.Loop
	if loop == nil {
		return newError(ErrKindInvalidPolicy, node.ID, "loop nodes require a loop config")
	}

	switch loop.Kind {
	case models.LoopKindForeach:
		if loop.Items == "" {
			return newError(ErrKindInvalidPolicy, node.ID, "foreach loops require items")
		}
	case models.LoopKindWhile:
		if loop.Predicate == "" {
			return newError(ErrKindInvalidPolicy, node.ID, "while loops require a predicate")
		}

		if _, err := expr.Parse(loop.Predicate); err != nil {
			return &Error{Kind: ErrKindInvalidExpression, NodeID: node.ID, Message: "loop predicate does not parse", Err: err}
		}
	default:
		return newError(ErrKindInvalidPolicy, node.ID, "unknown loop kind %q", loop.Kind)
	}

	if loop.MaxIterations < 1 {
		return newError(ErrKindInvalidPolicy, node.ID, "loop max_iterations must be at least 1")
	}

	return nil
}
