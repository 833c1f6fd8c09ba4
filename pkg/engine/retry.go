package engine

import (
	"context"
	"math"
	"time"

	"github.com/dukex/maestro/pkg/events"
	"github.com/dukex/maestro/pkg/models"
)

// executeWithRetry runs a node to a terminal NodeResult, re-attempting failed
// executions per the node's retry policy. The returned error is the final
// classified failure, nil unless the result is failed.
func (e *Engine) executeWithRetry(ctx context.Context, node *models.WorkflowNode, snapshot map[string]any, runID, workflowName string) (*models.NodeResult, *ExecutionError) {
	result := &models.NodeResult{
		NodeID:    node.ID,
		Status:    models.NodeStatusRunning,
		StartedAt: time.Now().UTC(),
	}

	maxAttempts := 1
	if node.Retry != nil && node.Retry.MaxAttempts > 0 {
		maxAttempts = node.Retry.MaxAttempts
	}

	var lastErr *ExecutionError

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if ctx.Err() != nil {
			result.Status = models.NodeStatusCancelled
			result.FinishedAt = time.Now().UTC()

			return result, nil
		}

		result.Attempts = attempt

		outcome, err := e.executeOnce(ctx, node, snapshot)

		// Partial iteration progress is kept even when the attempt failed.
		result.Iterations = outcome.iterations

		if err == nil {
			result.Output = outcome.output
			result.FinishedAt = time.Now().UTC()

			if outcome.branchNotTaken {
				result.Status = models.NodeStatusSkipped
			} else {
				result.Status = models.NodeStatusCompleted
			}

			return result, nil
		}

		// Outer cancellation is not a node failure and is never retried.
		if ctx.Err() != nil {
			result.Status = models.NodeStatusCancelled
			result.FinishedAt = time.Now().UTC()

			return result, nil
		}

		lastErr = classify(node.ID, err)

		if attempt == maxAttempts || !retryable(node.Retry, lastErr.Kind) {
			break
		}

		delay := backoffDelay(node.Retry, attempt)

		e.logger.Warn("node attempt failed, retrying",
			"node_id", node.ID,
			"attempt", attempt,
			"next_delay", delay,
			"error_kind", lastErr.Kind,
			"error", err)

		e.emit(ctx, runID, events.NodeRetried{
			BaseEvent: e.newBase(events.NodeRetriedEvent, runID, workflowName),
			NodeID:    node.ID,
			Attempt:   attempt + 1,
			Delay:     delay,
			Error:     err.Error(),
		})

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			result.Status = models.NodeStatusCancelled
			result.FinishedAt = time.Now().UTC()

			return result, nil
		}
	}

	result.Status = models.NodeStatusFailed
	result.Error = lastErr.Err.Error()
	result.ErrorKind = lastErr.Kind
	result.FinishedAt = time.Now().UTC()

	return result, lastErr
}

// retryable reports whether the policy covers the failure kind. An empty
// retry_on_errors list retries every kind.
func retryable(policy *models.RetryPolicy, kind string) bool {
	if policy == nil {
		return false
	}

	if len(policy.RetryOn) == 0 {
		return true
	}

	for _, k := range policy.RetryOn {
		if k == kind {
			return true
		}
	}

	return false
}

// backoffDelay computes the wait before the next attempt: the initial delay
// multiplied by the backoff factor for each completed attempt, capped at the
// policy's max delay.
func backoffDelay(policy *models.RetryPolicy, attempt int) time.Duration {
	initial := policy.InitialDelay.Duration()
	if initial <= 0 {
		initial = time.Second
	}

	factor := policy.BackoffFactor
	if factor < 1 {
		factor = 2
	}

	delay := time.Duration(float64(initial) * math.Pow(factor, float64(attempt-1)))

	if max := policy.MaxDelay.Duration(); max > 0 && delay > max {
		delay = max
	}

	return delay
}
