package registry

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/maestro/pkg/models"
)

func noop(_ context.Context, _ map[string]any, _ map[string]any) (any, error) {
	return nil, nil
}

func TestRegistry_ResolveByKind(t *testing.T) {
	reg := NewRegistry(slog.Default())
	reg.RegisterAgent("planner", CapabilityFunc(noop))
	reg.RegisterTool("echo", CapabilityFunc(noop))
	reg.RegisterService("billing", CapabilityFunc(noop))

	for _, kind := range []models.NodeKind{models.NodeKindAgent, models.NodeKindTool, models.NodeKindService} {
		target := map[models.NodeKind]string{
			models.NodeKindAgent:   "planner",
			models.NodeKindTool:    "echo",
			models.NodeKindService: "billing",
		}[kind]

		capability, err := reg.Resolve(kind, target)
		require.NoError(t, err)
		assert.NotNil(t, capability)
	}
}

func TestRegistry_KindsAreSeparateNamespaces(t *testing.T) {
	reg := NewRegistry(slog.Default())
	reg.RegisterTool("echo", CapabilityFunc(noop))

	_, err := reg.Resolve(models.NodeKindAgent, "echo")
	require.ErrorIs(t, err, ErrTargetNotFound)
}

func TestRegistry_ResolveUnknownTarget(t *testing.T) {
	reg := NewRegistry(slog.Default())

	_, err := reg.Resolve(models.NodeKindTool, "ghost")
	require.ErrorIs(t, err, ErrTargetNotFound)
}

func TestRegistry_ResolveNonInvokableKind(t *testing.T) {
	reg := NewRegistry(slog.Default())

	_, err := reg.Resolve(models.NodeKindCondition, "anything")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTargetNotFound)
}

func TestRegistry_ValidateTargets(t *testing.T) {
	reg := NewRegistry(slog.Default())
	reg.RegisterTool("echo", CapabilityFunc(noop))

	def := &models.WorkflowDefinition{
		Metadata:  models.Metadata{Name: "targets"},
		EntryNode: "a",
		Nodes: []*models.WorkflowNode{
			{ID: "a", Kind: models.NodeKindTool, Target: "echo"},
			{ID: "cond", Kind: models.NodeKindCondition, Condition: &models.Condition{Expression: "x == 1"}},
		},
	}

	require.NoError(t, reg.ValidateTargets(def))
}

func TestRegistry_ValidateTargetsWalksInlineChildren(t *testing.T) {
	reg := NewRegistry(slog.Default())
	reg.RegisterTool("echo", CapabilityFunc(noop))

	def := &models.WorkflowDefinition{
		Metadata:  models.Metadata{Name: "targets"},
		EntryNode: "seq",
		Nodes: []*models.WorkflowNode{
			{
				ID:   "seq",
				Kind: models.NodeKindSequence,
				Nodes: []*models.WorkflowNode{
					{ID: "inner", Kind: models.NodeKindService, Target: "missing"},
				},
			},
		},
	}

	err := reg.ValidateTargets(def)
	require.ErrorIs(t, err, ErrTargetNotFound)
	assert.Contains(t, err.Error(), "inner")
}

func TestRegistry_Registered(t *testing.T) {
	reg := NewRegistry(slog.Default())
	reg.RegisterTool("zeta", CapabilityFunc(noop))
	reg.RegisterTool("alpha", CapabilityFunc(noop))

	assert.Equal(t, []string{"alpha", "zeta"}, reg.Registered(models.NodeKindTool))
	assert.Empty(t, reg.Registered(models.NodeKindAgent))
}
