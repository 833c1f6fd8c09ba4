package engine

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"dario.cat/mergo"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/dukex/maestro/pkg/dag"
	"github.com/dukex/maestro/pkg/definition"
	"github.com/dukex/maestro/pkg/eventbus"
	"github.com/dukex/maestro/pkg/events"
	"github.com/dukex/maestro/pkg/models"
	"github.com/dukex/maestro/pkg/registry"
	"github.com/dukex/maestro/pkg/state"
)

// Engine executes workflow definitions. It owns no ambient global state: the
// state manager, capability registry and event publisher are all injected.
type Engine struct {
	config    Config
	registry  *registry.Registry
	states    *state.Manager
	publisher eventbus.EventPublisher
	logger    *slog.Logger
	tracer    trace.Tracer

	mu   sync.Mutex
	runs map[string]*runControl
}

type controlOp int

const (
	opPause controlOp = iota
	opResume
	opCancel
)

type runControl struct {
	ops chan controlOp
}

// NewEngine builds an engine. The publisher may be nil when no event
// consumers exist (tests, one-shot CLI runs without a bus).
func NewEngine(states *state.Manager, reg *registry.Registry, publisher eventbus.EventPublisher, logger *slog.Logger, config Config) *Engine {
	return &Engine{
		config:    config.withDefaults(),
		registry:  reg,
		states:    states,
		publisher: publisher,
		logger:    logger.With("module", "engine"),
		tracer:    otel.Tracer("maestro/engine"),
		runs:      make(map[string]*runControl),
	}
}

// Run validates and executes a definition to a terminal state. Inputs are
// merged over the definition's declared variables to seed the run context.
// The returned state is terminal; err is non-nil when the run did not
// complete (node failure, cancellation, workflow timeout).
func (e *Engine) Run(ctx context.Context, def *models.WorkflowDefinition, inputs map[string]any) (*models.ExecutionState, error) {
	if err := definition.Validate(def); err != nil {
		return nil, err
	}

	if err := e.registry.ValidateTargets(def); err != nil {
		return nil, err
	}

	d, err := dag.Build(def,
		dag.WithUnreachablePolicy(e.config.UnreachablePolicy),
		dag.WithLogger(e.logger))
	if err != nil {
		return nil, err
	}

	runContext := make(map[string]any, len(def.Variables))
	maps.Copy(runContext, def.Variables)

	if err := mergo.Merge(&runContext, inputs, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("failed to merge run inputs: %w", err)
	}

	now := time.Now().UTC()

	st := &models.ExecutionState{
		RunID:        "run-" + uuid.New().String()[:8],
		WorkflowName: def.Metadata.Name,
		Status:       models.RunStatusCreated,
		Definition:   def,
		Results:      make(map[string]*models.NodeResult, len(def.Nodes)),
		Context:      runContext,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	for _, node := range def.Nodes {
		st.Results[node.ID] = &models.NodeResult{NodeID: node.ID, Status: models.NodeStatusPending}
	}

	return e.execute(ctx, d, st, "")
}

// Resume continues a run from a checkpoint; an empty checkpoint id selects
// the latest. Completed nodes keep their results; nodes that were running
// when the checkpoint was taken are re-dispatched.
func (e *Engine) Resume(ctx context.Context, runID, checkpointID string) (*models.ExecutionState, error) {
	st, err := e.states.Resume(ctx, runID, checkpointID)
	if err != nil {
		return nil, err
	}

	d, err := dag.Build(st.Definition,
		dag.WithUnreachablePolicy(e.config.UnreachablePolicy),
		dag.WithLogger(e.logger))
	if err != nil {
		return nil, err
	}

	return e.execute(ctx, d, st, checkpointID)
}

// Pause blocks new dispatch on the run; in-flight nodes run to completion.
func (e *Engine) Pause(runID string) error {
	return e.send(runID, opPause)
}

// ResumeRun clears a pause and continues dispatch from the current state.
func (e *Engine) ResumeRun(runID string) error {
	return e.send(runID, opResume)
}

// Cancel stops new dispatch and propagates a cooperative cancellation signal
// to in-flight node executions. Non-cooperating external work is not
// forcibly terminated.
func (e *Engine) Cancel(runID string) error {
	return e.send(runID, opCancel)
}

func (e *Engine) send(runID string, op controlOp) error {
	e.mu.Lock()
	control, ok := e.runs[runID]
	e.mu.Unlock()

	if !ok {
		return fmt.Errorf("run %q: %w", runID, ErrRunNotFound)
	}

	control.ops <- op

	return nil
}

func (e *Engine) execute(ctx context.Context, d *dag.DAG, st *models.ExecutionState, resumedFrom string) (*models.ExecutionState, error) {
	control := &runControl{ops: make(chan controlOp, 8)}

	e.mu.Lock()
	e.runs[st.RunID] = control
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		delete(e.runs, st.RunID)
		e.mu.Unlock()
	}()

	s := newScheduler(e, d, st, control.ops, resumedFrom)

	return s.loop(ctx)
}

// emit publishes a lifecycle event, dropping it when no publisher is wired.
// Event delivery is best-effort; a broken bus must never wedge the run.
func (e *Engine) emit(ctx context.Context, key string, event eventbus.Event) {
	if e.publisher == nil {
		return
	}

	if err := e.publisher.Publish(ctx, key, event); err != nil {
		e.logger.Warn("failed to publish event", "event_type", event.GetType(), "error", err)
	}
}

func (e *Engine) newBase(eventType events.EventType, runID, workflowName string) events.BaseEvent {
	return events.BaseEvent{
		ID:           uuid.New().String(),
		Type:         eventType,
		Timestamp:    time.Now().UTC(),
		RunID:        runID,
		WorkflowName: workflowName,
	}
}
