package engine

import (
	"context"
	"errors"
	"maps"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/dukex/maestro/pkg/dag"
	"github.com/dukex/maestro/pkg/events"
	"github.com/dukex/maestro/pkg/models"
)

// completion is the message a worker sends back when a node reaches a
// terminal status (after its retries, if any).
type completion struct {
	nodeID string
	result *models.NodeResult
	err    *ExecutionError // Final classified failure, nil unless result is failed
}

// scheduler drives one run. It is the single writer of the run's
// ExecutionState: workers never touch the state, they only report over the
// completions channel, so near-simultaneous completions cannot lose updates.
type scheduler struct {
	engine *Engine
	dag    *dag.DAG
	state  *models.ExecutionState

	ops         <-chan controlOp
	completions chan completion
	cancelNodes context.CancelFunc

	inflight        int
	paused          bool
	cancelled       bool
	failure         error
	cancelReason    string
	sinceCheckpoint int
	resumedFrom     string
	startedAt       time.Time
}

func newScheduler(e *Engine, d *dag.DAG, st *models.ExecutionState, ops <-chan controlOp, resumedFrom string) *scheduler {
	return &scheduler{
		engine:      e,
		dag:         d,
		state:       st,
		ops:         ops,
		completions: make(chan completion),
		resumedFrom: resumedFrom,
	}
}

// loop is the dispatch loop: dispatch every ready node, then suspend until a
// completion, a control operation, a timeout or a cancellation arrives.
func (s *scheduler) loop(ctx context.Context) (*models.ExecutionState, error) {
	e := s.engine

	ctx, span := e.tracer.Start(ctx, "workflow.run")
	span.SetAttributes(
		attribute.String("maestro.run.id", s.state.RunID),
		attribute.String("maestro.workflow.name", s.state.WorkflowName),
	)
	defer span.End()

	runCtx, cancelNodes := context.WithCancel(ctx)
	defer cancelNodes()

	s.cancelNodes = cancelNodes
	s.startedAt = time.Now().UTC()

	var timeout <-chan time.Time

	if e.config.WorkflowTimeout > 0 {
		timer := time.NewTimer(e.config.WorkflowTimeout)
		defer timer.Stop()

		timeout = timer.C
	}

	s.state.Status = models.RunStatusRunning
	s.save(ctx)
	s.announce(ctx)

	logger := e.logger.With("run_id", s.state.RunID, "workflow", s.state.WorkflowName)
	logger.Info("run started", "nodes", len(s.dag.NodeIDs()), "resumed_from", s.resumedFrom)

	s.dispatch(ctx, runCtx)

	for !s.done() {
		select {
		case c := <-s.completions:
			s.handleCompletion(ctx, c)
			s.dispatch(ctx, runCtx)
		case op := <-s.ops:
			s.handleOp(ctx, op)
			s.dispatch(ctx, runCtx)
		case <-timeout:
			logger.Warn("workflow timeout exceeded, aborting run")
			s.abort(ErrWorkflowTimeout, "workflow timeout exceeded")
		case <-ctx.Done():
			s.abort(ErrCancelled, "context cancelled")
		}
	}

	st, err := s.finalize(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	logger.Info("run finished", "status", st.Status)

	return st, err
}

// done reports whether the loop can finalize: nothing in flight and either
// the run aborted or every node is terminal. While paused with pending nodes
// the loop keeps waiting for control operations.
func (s *scheduler) done() bool {
	if s.inflight > 0 {
		return false
	}

	if s.cancelled || s.failure != nil {
		return true
	}

	if s.paused {
		return false
	}

	return s.allTerminal()
}

func (s *scheduler) allTerminal() bool {
	for _, id := range s.dag.NodeIDs() {
		if !s.state.NodeStatus(id).IsTerminal() {
			return false
		}
	}

	return true
}

// dispatch starts every currently-ready node (bounded by MaxConcurrency) and
// applies skip propagation to a fixpoint: skipping a node can make its
// dependents skippable in the same pass.
func (s *scheduler) dispatch(ctx context.Context, runCtx context.Context) {
	if s.paused || s.cancelled || s.failure != nil {
		return
	}

	for changed := true; changed; {
		changed = false

		for _, id := range s.dag.NodeIDs() {
			if s.state.NodeStatus(id) != models.NodeStatusPending {
				continue
			}

			ready, skip, reason := s.readiness(id)

			if skip {
				s.markSkipped(ctx, id, reason)

				changed = true

				continue
			}

			if !ready || s.inflight >= s.engine.config.MaxConcurrency {
				continue
			}

			node, ok := s.dag.Node(id)
			if !ok {
				continue
			}

			s.start(ctx, runCtx, node)

			changed = true
		}
	}
}

// readiness decides whether a pending node can start, must be skipped, or
// has to keep waiting. A node is ready only when every dependency reached a
// terminal status; whether non-completed dependencies skip it depends on the
// dependency policy.
func (s *scheduler) readiness(id string) (ready bool, skip bool, reason string) {
	deps := s.dag.Dependencies(id)

	completed := 0
	blocked := ""

	for _, dep := range deps {
		status := s.state.NodeStatus(dep)
		if !status.IsTerminal() {
			return false, false, ""
		}

		if status == models.NodeStatusCompleted {
			completed++
		} else if blocked == "" {
			blocked = "dependency " + dep + " " + string(status)
		}
	}

	switch s.engine.config.DependencyPolicy {
	case DependencyPolicyAny:
		if len(deps) == 0 || completed > 0 {
			return true, false, ""
		}

		return false, true, blocked
	default: // DependencyPolicyAll
		if completed == len(deps) {
			return true, false, ""
		}

		return false, true, blocked
	}
}

func (s *scheduler) start(ctx context.Context, runCtx context.Context, node *models.WorkflowNode) {
	result := s.state.Result(node.ID)
	result.Status = models.NodeStatusRunning
	result.StartedAt = time.Now().UTC()

	s.inflight++

	e := s.engine

	e.emit(ctx, s.state.RunID, events.NodeStarted{
		BaseEvent: e.newBase(events.NodeStartedEvent, s.state.RunID, s.state.WorkflowName),
		NodeID:    node.ID,
		Attempt:   1,
	})

	// Workers get an immutable snapshot of the context; the live map stays
	// owned by this goroutine.
	snapshot := make(map[string]any, len(s.state.Context))
	maps.Copy(snapshot, s.state.Context)

	runID := s.state.RunID
	workflowName := s.state.WorkflowName

	go func() {
		result, execErr := e.executeWithRetry(runCtx, node, snapshot, runID, workflowName)
		s.completions <- completion{nodeID: node.ID, result: result, err: execErr}
	}()
}

func (s *scheduler) handleCompletion(ctx context.Context, c completion) {
	s.inflight--

	e := s.engine
	result := c.result
	s.state.Results[c.nodeID] = result

	switch result.Status {
	case models.NodeStatusCompleted:
		// Output becomes immutable and visible to all dependents.
		s.state.Context[models.NodeOutputBinding(c.nodeID)] = result.Output

		e.emit(ctx, s.state.RunID, events.NodeCompleted{
			BaseEvent: e.newBase(events.NodeCompletedEvent, s.state.RunID, s.state.WorkflowName),
			NodeID:    c.nodeID,
			Status:    string(result.Status),
			Attempts:  result.Attempts,
			Duration:  result.Duration(),
		})
	case models.NodeStatusSkipped:
		e.emit(ctx, s.state.RunID, events.NodeSkipped{
			BaseEvent: e.newBase(events.NodeSkippedEvent, s.state.RunID, s.state.WorkflowName),
			NodeID:    c.nodeID,
			Reason:    "condition evaluated to false",
		})
	case models.NodeStatusFailed:
		e.emit(ctx, s.state.RunID, events.NodeFailed{
			BaseEvent: e.newBase(events.NodeFailedEvent, s.state.RunID, s.state.WorkflowName),
			NodeID:    c.nodeID,
			Error:     result.Error,
			ErrorKind: result.ErrorKind,
			Attempts:  result.Attempts,
			Duration:  result.Duration(),
		})

		node, _ := s.dag.Node(c.nodeID)

		// continue_on_error confines the failure to this node's subtree;
		// otherwise the run's failure policy decides.
		if !s.cancelled && s.failure == nil && node != nil && !node.ContinueOnError &&
			s.engine.config.FailurePolicy == FailFast {
			if c.err != nil {
				s.failure = c.err
			} else {
				s.failure = &ExecutionError{NodeID: c.nodeID, Kind: result.ErrorKind, Err: errors.New(result.Error)}
			}
		}
	case models.NodeStatusCancelled:
		// Covered by the run-level cancellation event.
	}

	s.save(ctx)
	s.maybeCheckpoint(ctx, "")
}

func (s *scheduler) handleOp(ctx context.Context, op controlOp) {
	e := s.engine

	switch op {
	case opPause:
		if s.paused || s.cancelled || s.failure != nil {
			return
		}

		s.paused = true
		s.state.Status = models.RunStatusPaused
		s.save(ctx)

		e.emit(ctx, s.state.RunID, events.WorkflowPaused{
			BaseEvent: e.newBase(events.WorkflowPausedEvent, s.state.RunID, s.state.WorkflowName),
		})
	case opResume:
		if !s.paused {
			return
		}

		s.paused = false
		s.state.Status = models.RunStatusRunning
		s.save(ctx)

		e.emit(ctx, s.state.RunID, events.WorkflowResumed{
			BaseEvent: e.newBase(events.WorkflowResumedEvent, s.state.RunID, s.state.WorkflowName),
		})
	case opCancel:
		s.abort(ErrCancelled, "cancelled by caller")
	}
}

// abort stops new dispatch and signals in-flight nodes cooperatively. The
// loop drains their completions before finalizing.
func (s *scheduler) abort(cause error, reason string) {
	if s.cancelled {
		return
	}

	s.cancelled = true
	s.failure = cause
	s.cancelReason = reason
	s.paused = false
	s.cancelNodes()
}

func (s *scheduler) finalize(ctx context.Context) (*models.ExecutionState, error) {
	e := s.engine
	now := time.Now().UTC()
	duration := now.Sub(s.startedAt)

	// Nodes that never started are cancelled, never silently dropped.
	if s.cancelled || s.failure != nil {
		for _, id := range s.dag.NodeIDs() {
			result := s.state.Result(id)
			if !result.Status.IsTerminal() {
				result.Status = models.NodeStatusCancelled
			}
		}
	}

	var runErr error

	switch {
	case s.cancelled:
		s.state.Status = models.RunStatusCancelled
		s.state.Error = s.failure.Error()
		runErr = s.failure

		e.emit(ctx, s.state.RunID, events.WorkflowCancelled{
			BaseEvent: e.newBase(events.WorkflowCancelledEvent, s.state.RunID, s.state.WorkflowName),
			Reason:    s.cancelReason,
			Duration:  duration,
		})
	case s.failure != nil:
		s.state.Status = models.RunStatusFailed
		s.state.Error = s.failure.Error()
		runErr = s.failure

		e.emit(ctx, s.state.RunID, events.WorkflowFailed{
			BaseEvent: e.newBase(events.WorkflowFailedEvent, s.state.RunID, s.state.WorkflowName),
			Error:     s.state.Error,
			Duration:  duration,
		})
	default:
		// Under the continue policy the run kept dispatching past failures,
		// but an untolerated node failure still fails the run.
		if failed := s.firstUntoleratedFailure(); failed != nil {
			s.state.Status = models.RunStatusFailed
			s.state.Error = failed.Error()
			runErr = failed

			e.emit(ctx, s.state.RunID, events.WorkflowFailed{
				BaseEvent: e.newBase(events.WorkflowFailedEvent, s.state.RunID, s.state.WorkflowName),
				Error:     s.state.Error,
				Duration:  duration,
			})

			break
		}

		s.state.Status = models.RunStatusCompleted

		e.emit(ctx, s.state.RunID, events.WorkflowCompleted{
			BaseEvent: e.newBase(events.WorkflowCompletedEvent, s.state.RunID, s.state.WorkflowName),
			Duration:  duration,
		})
	}

	s.state.FinishedAt = &now
	s.save(ctx)
	s.checkpoint(ctx, "terminal")

	return s.state, runErr
}

// firstUntoleratedFailure returns an error for the first failed node whose
// failure is not tolerated by continue_on_error, nil when every failure was
// tolerated.
func (s *scheduler) firstUntoleratedFailure() error {
	for _, id := range s.dag.NodeIDs() {
		result, ok := s.state.Results[id]
		if !ok || result.Status != models.NodeStatusFailed {
			continue
		}

		if node, ok := s.dag.Node(id); ok && node.ContinueOnError {
			continue
		}

		return &ExecutionError{NodeID: id, Kind: result.ErrorKind, Err: errors.New(result.Error)}
	}

	return nil
}

func (s *scheduler) markSkipped(ctx context.Context, id, reason string) {
	result := s.state.Result(id)
	result.Status = models.NodeStatusSkipped

	e := s.engine

	e.emit(ctx, s.state.RunID, events.NodeSkipped{
		BaseEvent: e.newBase(events.NodeSkippedEvent, s.state.RunID, s.state.WorkflowName),
		NodeID:    id,
		Reason:    reason,
	})
}

func (s *scheduler) save(ctx context.Context) {
	if err := s.engine.states.Save(ctx, s.state); err != nil {
		s.engine.logger.Error("failed to save execution state",
			"run_id", s.state.RunID, "error", err)
	}
}

func (s *scheduler) maybeCheckpoint(ctx context.Context, label string) {
	s.sinceCheckpoint++

	if s.sinceCheckpoint < s.engine.config.CheckpointEvery {
		return
	}

	s.checkpoint(ctx, label)
}

func (s *scheduler) checkpoint(ctx context.Context, label string) {
	s.sinceCheckpoint = 0

	checkpointID, err := s.engine.states.CreateCheckpoint(ctx, s.state, label)
	if err != nil {
		s.engine.logger.Error("failed to create checkpoint",
			"run_id", s.state.RunID, "error", err)

		return
	}

	e := s.engine

	e.emit(ctx, s.state.RunID, events.StateCheckpointed{
		BaseEvent:    e.newBase(events.StateCheckpointedEvent, s.state.RunID, s.state.WorkflowName),
		CheckpointID: checkpointID,
		Label:        label,
		RunStatus:    s.state.Status,
	})
}

// announce emits the start-of-run event, distinguishing fresh runs from
// checkpoint resumes.
func (s *scheduler) announce(ctx context.Context) {
	e := s.engine

	if s.resumedFrom != "" || s.hasProgress() {
		e.emit(ctx, s.state.RunID, events.WorkflowResumed{
			BaseEvent:    e.newBase(events.WorkflowResumedEvent, s.state.RunID, s.state.WorkflowName),
			CheckpointID: s.resumedFrom,
		})

		return
	}

	e.emit(ctx, s.state.RunID, events.WorkflowStarted{
		BaseEvent: e.newBase(events.WorkflowStartedEvent, s.state.RunID, s.state.WorkflowName),
		EntryNode: s.state.Definition.EntryNode,
		NodeCount: len(s.dag.NodeIDs()),
	})
}

func (s *scheduler) hasProgress() bool {
	for _, result := range s.state.Results {
		if result.Status != models.NodeStatusPending {
			return true
		}
	}

	return false
}
