// Package registry holds the typed capability registries the engine resolves
// node targets against. The engine never embeds capability logic itself; it
// only dispatches to what was registered here.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/dukex/maestro/pkg/models"
)

// ErrTargetNotFound indicates a node references a capability name that was
// never registered.
var ErrTargetNotFound = errors.New("target not registered")

// Capability is one invokable unit of work: an agent, a tool or a service.
// Implementations must honor ctx cancellation; the scheduler's cancellation
// contract is cooperative.
type Capability interface {
	Invoke(ctx context.Context, params map[string]any, runContext map[string]any) (any, error)
}

// CapabilityFunc adapts a plain function to the Capability interface.
type CapabilityFunc func(ctx context.Context, params map[string]any, runContext map[string]any) (any, error)

func (f CapabilityFunc) Invoke(ctx context.Context, params map[string]any, runContext map[string]any) (any, error) {
	return f(ctx, params, runContext)
}

// Registry aggregates the agent, tool and service registries and resolves
// targets by node kind.
type Registry struct {
	logger   *slog.Logger
	agents   map[string]Capability
	tools    map[string]Capability
	services map[string]Capability
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:   logger,
		agents:   make(map[string]Capability),
		tools:    make(map[string]Capability),
		services: make(map[string]Capability),
	}
}

func (r *Registry) RegisterAgent(name string, capability Capability) {
	r.agents[name] = capability
	r.logger.Debug("registered agent capability", "name", name)
}

func (r *Registry) RegisterTool(name string, capability Capability) {
	r.tools[name] = capability
	r.logger.Debug("registered tool capability", "name", name)
}

func (r *Registry) RegisterService(name string, capability Capability) {
	r.services[name] = capability
	r.logger.Debug("registered service capability", "name", name)
}

// Resolve returns the capability registered for the given kind and target.
func (r *Registry) Resolve(kind models.NodeKind, target string) (Capability, error) {
	pool, err := r.pool(kind)
	if err != nil {
		return nil, err
	}

	capability, ok := pool[target]
	if !ok {
		return nil, fmt.Errorf("%s %q: %w", kind, target, ErrTargetNotFound)
	}

	return capability, nil
}

// ValidateTargets checks at load time that every invokable node in the
// definition resolves, so missing capabilities surface before any scheduling.
func (r *Registry) ValidateTargets(def *models.WorkflowDefinition) error {
	var walk func(nodes []*models.WorkflowNode) error

	walk = func(nodes []*models.WorkflowNode) error {
		for _, node := range nodes {
			if node.Kind.IsInvokable() {
				if _, err := r.Resolve(node.Kind, node.Target); err != nil {
					return fmt.Errorf("node %q: %w", node.ID, err)
				}
			}

			if err := walk(node.Nodes); err != nil {
				return err
			}
		}

		return nil
	}

	return walk(def.Nodes)
}

// Registered returns the capability names registered for a kind, sorted.
func (r *Registry) Registered(kind models.NodeKind) []string {
	pool, err := r.pool(kind)
	if err != nil {
		return nil
	}

	names := make([]string, 0, len(pool))
	for name := range pool {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

func (r *Registry) pool(kind models.NodeKind) (map[string]Capability, error) {
	switch kind {
	case models.NodeKindAgent:
		return r.agents, nil
	case models.NodeKindTool:
		return r.tools, nil
	case models.NodeKindService:
		return r.services, nil
	default:
		return nil, fmt.Errorf("node kind %q does not resolve capabilities", kind)
	}
}
