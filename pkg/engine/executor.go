package engine

import (
	"context"
	"fmt"
	"maps"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/dukex/maestro/pkg/expr"
	"github.com/dukex/maestro/pkg/models"
	"github.com/dukex/maestro/pkg/otelhelper"
	"github.com/dukex/maestro/pkg/template"
)

// nodeOutcome is the raw result of one execution attempt, before retry
// bookkeeping turns it into a NodeResult.
type nodeOutcome struct {
	output         any
	iterations     []*models.NodeResult
	branchNotTaken bool // Condition nodes: expression evaluated false
}

// executeOnce performs a single attempt of one node against an immutable
// context snapshot.
func (e *Engine) executeOnce(ctx context.Context, node *models.WorkflowNode, snapshot map[string]any) (nodeOutcome, error) {
	ctx, span := e.tracer.Start(ctx, "node.execute")
	span.SetAttributes(
		attribute.String("maestro.node.id", node.ID),
		attribute.String("maestro.node.kind", string(node.Kind)),
	)
	defer span.End()

	outcome, err := e.executeKind(ctx, node, snapshot)
	if err != nil {
		otelhelper.SetError(span, err, attribute.String("maestro.node.id", node.ID))
	}

	return outcome, err
}

func (e *Engine) executeKind(ctx context.Context, node *models.WorkflowNode, snapshot map[string]any) (nodeOutcome, error) {
	switch node.Kind {
	case models.NodeKindAgent, models.NodeKindTool, models.NodeKindService:
		return e.invokeCapability(ctx, node, snapshot)
	case models.NodeKindCondition:
		return e.evaluateCondition(node, snapshot)
	case models.NodeKindLoop:
		return e.executeLoop(ctx, node, snapshot)
	case models.NodeKindParallel:
		return e.executeParallel(ctx, node, snapshot)
	case models.NodeKindSequence:
		return e.executeSequence(ctx, node, snapshot)
	default:
		return nodeOutcome{}, fmt.Errorf("unsupported node kind %q", node.Kind)
	}
}

// invokeCapability resolves the node's target through the injected registry,
// substitutes context bindings into its params, and invokes it under the
// node's timeout.
func (e *Engine) invokeCapability(ctx context.Context, node *models.WorkflowNode, snapshot map[string]any) (nodeOutcome, error) {
	capability, err := e.registry.Resolve(node.Kind, node.Target)
	if err != nil {
		return nodeOutcome{}, err
	}

	params, err := template.Render(node.Params, snapshot)
	if err != nil {
		return nodeOutcome{}, err
	}

	timeout := node.Timeout.Duration()
	if timeout == 0 {
		timeout = e.config.DefaultNodeTimeout
	}

	invokeCtx := ctx

	if timeout > 0 {
		var cancel context.CancelFunc

		invokeCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	output, err := capability.Invoke(invokeCtx, params, snapshot)
	if err != nil {
		// Distinguish the node's own deadline from an outer cancellation.
		if invokeCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return nodeOutcome{}, fmt.Errorf("node timed out after %s: %w", timeout, context.DeadlineExceeded)
		}

		return nodeOutcome{}, err
	}

	return nodeOutcome{output: output}, nil
}

// evaluateCondition evaluates the node's expression over the context
// snapshot. Evaluation errors fail closed to false by default, logged
// distinctly; strict mode escalates them to a node failure instead.
func (e *Engine) evaluateCondition(node *models.WorkflowNode, snapshot map[string]any) (nodeOutcome, error) {
	result, err := expr.Evaluate(node.Condition.Expression, snapshot)
	if err != nil {
		if node.Condition.Strict || e.config.StrictConditions {
			return nodeOutcome{}, fmt.Errorf("condition evaluation failed: %w", err)
		}

		e.logger.Warn("condition evaluation failed, failing closed to false",
			"node_id", node.ID,
			"expression", node.Condition.Expression,
			"error", err)

		return nodeOutcome{output: false, branchNotTaken: true}, nil
	}

	return nodeOutcome{output: result, branchNotTaken: !result}, nil
}

// executeParallel runs the node's inline children concurrently, bounded by
// the engine's concurrency limit, and aggregates their outputs by child id.
func (e *Engine) executeParallel(ctx context.Context, node *models.WorkflowNode, snapshot map[string]any) (nodeOutcome, error) {
	results := make([]*models.NodeResult, len(node.Nodes))

	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.MaxConcurrency)

	for i, child := range node.Nodes {
		g.Go(func() error {
			childSnapshot := make(map[string]any, len(snapshot))
			maps.Copy(childSnapshot, snapshot)

			result, execErr := e.executeChild(groupCtx, child, childSnapshot)
			results[i] = result

			if execErr != nil {
				return execErr
			}

			return nil
		})
	}

	err := g.Wait()
	outcome := nodeOutcome{iterations: results, output: childOutputs(results)}

	if err != nil {
		return outcome, fmt.Errorf("parallel branch failed: %w", err)
	}

	return outcome, nil
}

// executeSequence runs the node's inline children in order. Each child's
// output is visible to the children after it.
func (e *Engine) executeSequence(ctx context.Context, node *models.WorkflowNode, snapshot map[string]any) (nodeOutcome, error) {
	localContext := make(map[string]any, len(snapshot))
	maps.Copy(localContext, snapshot)

	results := make([]*models.NodeResult, 0, len(node.Nodes))

	for _, child := range node.Nodes {
		result, execErr := e.executeChild(ctx, child, localContext)
		results = append(results, result)

		if execErr != nil {
			return nodeOutcome{iterations: results},
				fmt.Errorf("sequence stopped at child %q: %w", child.ID, execErr)
		}

		localContext[models.NodeOutputBinding(child.ID)] = result.Output
	}

	return nodeOutcome{iterations: results, output: childOutputs(results)}, nil
}

// executeChild runs an inline child node with its own retry policy. Children
// skipped by a false condition are not failures.
func (e *Engine) executeChild(ctx context.Context, child *models.WorkflowNode, snapshot map[string]any) (*models.NodeResult, *ExecutionError) {
	result, execErr := e.executeWithRetry(ctx, child, snapshot, "", "")

	if result.Status == models.NodeStatusFailed {
		return result, execErr
	}

	return result, nil
}

func childOutputs(results []*models.NodeResult) map[string]any {
	outputs := make(map[string]any, len(results))

	for _, result := range results {
		if result != nil && result.Status == models.NodeStatusCompleted {
			outputs[result.NodeID] = result.Output
		}
	}

	return outputs
}
