package engine

import (
	"context"
	"fmt"
	"maps"

	"golang.org/x/sync/errgroup"

	"github.com/dukex/maestro/pkg/expr"
	"github.com/dukex/maestro/pkg/models"
	"github.com/dukex/maestro/pkg/template"
)

const (
	defaultItemVar   = "item"
	loopIndexBinding = "loop_index"
	iterationBinding = "iteration"
)

func (e *Engine) executeLoop(ctx context.Context, node *models.WorkflowNode, snapshot map[string]any) (nodeOutcome, error) {
	switch node.Loop.Kind {
	case models.LoopKindForeach:
		return e.executeForeach(ctx, node, snapshot)
	case models.LoopKindWhile:
		return e.executeWhile(ctx, node, snapshot)
	default:
		return nodeOutcome{}, fmt.Errorf("unsupported loop kind %q", node.Loop.Kind)
	}
}

// executeForeach runs the loop body once per item of the resolved collection.
// The collection size is checked against max_iterations before any iteration
// starts.
func (e *Engine) executeForeach(ctx context.Context, node *models.WorkflowNode, snapshot map[string]any) (nodeOutcome, error) {
	resolved, err := template.Resolve(node.Loop.Items, snapshot)
	if err != nil {
		return nodeOutcome{}, err
	}

	items, ok := resolved.([]any)
	if !ok {
		return nodeOutcome{}, fmt.Errorf("loop items %q resolved to %T, want a list", node.Loop.Items, resolved)
	}

	if len(items) > node.Loop.MaxIterations {
		return nodeOutcome{}, &LoopLimitError{NodeID: node.ID, MaxIterations: node.Loop.MaxIterations}
	}

	itemVar := node.Loop.ItemVar
	if itemVar == "" {
		itemVar = defaultItemVar
	}

	iterations := make([]*models.NodeResult, len(items))

	if node.Loop.Parallel {
		g, groupCtx := errgroup.WithContext(ctx)
		g.SetLimit(e.config.MaxConcurrency)

		for i, item := range items {
			g.Go(func() error {
				iterCtx := make(map[string]any, len(snapshot)+2)
				maps.Copy(iterCtx, snapshot)
				iterCtx[itemVar] = item
				iterCtx[loopIndexBinding] = i

				result, iterErr := e.executeIteration(groupCtx, node, i, iterCtx)
				iterations[i] = result

				return iterErr
			})
		}

		if err := g.Wait(); err != nil {
			return nodeOutcome{iterations: iterations}, err
		}

		return nodeOutcome{iterations: iterations, output: iterationOutputs(iterations)}, nil
	}

	for i, item := range items {
		iterCtx := make(map[string]any, len(snapshot)+2)
		maps.Copy(iterCtx, snapshot)
		iterCtx[itemVar] = item
		iterCtx[loopIndexBinding] = i

		result, iterErr := e.executeIteration(ctx, node, i, iterCtx)
		iterations[i] = result

		if iterErr != nil {
			return nodeOutcome{iterations: iterations[:i+1]}, iterErr
		}
	}

	return nodeOutcome{iterations: iterations, output: iterationOutputs(iterations)}, nil
}

// executeWhile re-evaluates the predicate before each iteration. Body outputs
// feed back into the evaluation context, so the predicate can observe loop
// progress. Reaching max_iterations with the predicate still true is a hard
// failure, not a silent stop.
func (e *Engine) executeWhile(ctx context.Context, node *models.WorkflowNode, snapshot map[string]any) (nodeOutcome, error) {
	iterCtx := make(map[string]any, len(snapshot)+1)
	maps.Copy(iterCtx, snapshot)

	var iterations []*models.NodeResult

	for i := 0; ; i++ {
		// The current iteration index is visible to the predicate.
		iterCtx[iterationBinding] = i

		proceed, err := expr.Evaluate(node.Loop.Predicate, iterCtx)
		if err != nil {
			if e.config.StrictConditions {
				return nodeOutcome{iterations: iterations},
					fmt.Errorf("loop predicate evaluation failed: %w", err)
			}

			e.logger.Warn("loop predicate evaluation failed, stopping loop",
				"node_id", node.ID,
				"predicate", node.Loop.Predicate,
				"error", err)

			break
		}

		if !proceed {
			break
		}

		if i >= node.Loop.MaxIterations {
			return nodeOutcome{iterations: iterations},
				&LoopLimitError{NodeID: node.ID, MaxIterations: node.Loop.MaxIterations}
		}

		result, iterErr := e.executeIteration(ctx, node, i, iterCtx)
		iterations = append(iterations, result)

		if iterErr != nil {
			return nodeOutcome{iterations: iterations}, iterErr
		}

		// Body outputs become visible to the next predicate evaluation.
		for _, child := range result.Iterations {
			if child.Status == models.NodeStatusCompleted {
				iterCtx[models.NodeOutputBinding(child.NodeID)] = child.Output
			}
		}
	}

	return nodeOutcome{iterations: iterations, output: iterationOutputs(iterations)}, nil
}

// executeIteration runs the loop body (the node's inline children, in order)
// against an iteration-local context copy.
func (e *Engine) executeIteration(ctx context.Context, node *models.WorkflowNode, index int, iterCtx map[string]any) (*models.NodeResult, error) {
	iteration := &models.NodeResult{
		NodeID: fmt.Sprintf("%s[%d]", node.ID, index),
		Status: models.NodeStatusRunning,
	}

	localContext := make(map[string]any, len(iterCtx))
	maps.Copy(localContext, iterCtx)

	for _, child := range node.Nodes {
		result, execErr := e.executeChild(ctx, child, localContext)
		iteration.Iterations = append(iteration.Iterations, result)

		if execErr != nil {
			iteration.Status = models.NodeStatusFailed
			iteration.Error = execErr.Error()
			iteration.ErrorKind = execErr.Kind

			return iteration, fmt.Errorf("loop iteration %d failed at child %q: %w", index, child.ID, execErr)
		}

		localContext[models.NodeOutputBinding(child.ID)] = result.Output
	}

	iteration.Status = models.NodeStatusCompleted
	iteration.Output = childOutputs(iteration.Iterations)

	return iteration, nil
}

func iterationOutputs(iterations []*models.NodeResult) []any {
	outputs := make([]any, 0, len(iterations))

	for _, iteration := range iterations {
		if iteration != nil && iteration.Status == models.NodeStatusCompleted {
			outputs = append(outputs, iteration.Output)
		}
	}

	return outputs
}
