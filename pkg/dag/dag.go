// Package dag builds the dependency graph for a workflow definition, detects
// cycles, and derives topological order and parallel execution levels.
package dag

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/dukex/maestro/pkg/models"
)

// UnreachablePolicy decides what happens when nodes have no dependency path
// from the entry node.
type UnreachablePolicy string

const (
	UnreachableWarn UnreachablePolicy = "warn" // Log and keep going (default)
	UnreachableFail UnreachablePolicy = "fail" // Reject the definition
)

// CycleError reports a concrete dependency cycle found in the definition.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Path, " -> "))
}

// UnreachableError reports nodes with no dependency path from the entry node
// under UnreachableFail.
type UnreachableError struct {
	NodeIDs []string
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("nodes unreachable from entry node: %s", strings.Join(e.NodeIDs, ", "))
}

// Option configures Build.
type Option func(*builder)

func WithUnreachablePolicy(policy UnreachablePolicy) Option {
	return func(b *builder) {
		b.unreachable = policy
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(b *builder) {
		b.logger = logger
	}
}

type builder struct {
	unreachable UnreachablePolicy
	logger      *slog.Logger
}

// DAG is the dependency graph of a validated workflow definition. It is
// immutable after Build; the scheduler only reads from it.
type DAG struct {
	nodes       map[string]*models.WorkflowNode
	ids         []string // Sorted, for deterministic iteration
	deps        map[string][]string
	dependents  map[string][]string
	entry       string
	unreachable []string
}

// Build constructs the DAG from a definition the validator already accepted.
// It fails with *CycleError if the depends_on relation is cyclic.
func Build(def *models.WorkflowDefinition, opts ...Option) (*DAG, error) {
	b := &builder{unreachable: UnreachableWarn, logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}

	d := &DAG{
		nodes:      make(map[string]*models.WorkflowNode, len(def.Nodes)),
		deps:       make(map[string][]string, len(def.Nodes)),
		dependents: make(map[string][]string, len(def.Nodes)),
		entry:      def.EntryNode,
	}

	for _, node := range def.Nodes {
		d.nodes[node.ID] = node
		d.ids = append(d.ids, node.ID)

		deps := append([]string(nil), node.DependsOn...)
		sort.Strings(deps)
		d.deps[node.ID] = deps
	}

	sort.Strings(d.ids)

	for _, id := range d.ids {
		for _, dep := range d.deps[id] {
			d.dependents[dep] = append(d.dependents[dep], id)
		}
	}

	for _, dependents := range d.dependents {
		sort.Strings(dependents)
	}

	if cycle := d.findCycle(); cycle != nil {
		return nil, cycle
	}

	d.unreachable = d.findUnreachable()
	if len(d.unreachable) > 0 {
		if b.unreachable == UnreachableFail {
			return nil, &UnreachableError{NodeIDs: d.unreachable}
		}

		b.logger.Warn("workflow has nodes unreachable from the entry node",
			"entry_node", d.entry,
			"unreachable", d.unreachable)
	}

	return d, nil
}

// Node returns the node with the given id.
func (d *DAG) Node(id string) (*models.WorkflowNode, bool) {
	node, ok := d.nodes[id]

	return node, ok
}

// NodeIDs returns all node ids in lexical order.
func (d *DAG) NodeIDs() []string {
	return append([]string(nil), d.ids...)
}

// Dependencies returns the ids the given node depends on, in lexical order.
func (d *DAG) Dependencies(id string) []string {
	return append([]string(nil), d.deps[id]...)
}

// Dependents returns the ids that depend on the given node, in lexical order.
func (d *DAG) Dependents(id string) []string {
	return append([]string(nil), d.dependents[id]...)
}

// Unreachable returns nodes with no dependency path from the entry node.
func (d *DAG) Unreachable() []string {
	return append([]string(nil), d.unreachable...)
}

// TopologicalOrder returns a deterministic order satisfying every dependency
// constraint, ties broken by node id. Used for diagnostics and tests; the
// live scheduler dispatches on dynamic readiness instead.
func (d *DAG) TopologicalOrder() []string {
	indegree := make(map[string]int, len(d.ids))
	for _, id := range d.ids {
		indegree[id] = len(d.deps[id])
	}

	var ready []string

	for _, id := range d.ids {
		if indegree[id] == 0 {
			ready = append(ready, id)
		}
	}

	order := make([]string, 0, len(d.ids))

	for len(ready) > 0 {
		sort.Strings(ready)

		id := ready[0]
		ready = ready[1:]
		order = append(order, id)

		for _, dependent := range d.dependents[id] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
	}

	return order
}

// ExecutionLevels partitions nodes into ordered sets where members of a set
// share no dependency path and all their dependencies lie in earlier sets.
// This is the maximum theoretical parallelism of the graph.
func (d *DAG) ExecutionLevels() [][]string {
	level := make(map[string]int, len(d.ids))

	for _, id := range d.TopologicalOrder() {
		max := 0

		for _, dep := range d.deps[id] {
			if level[dep]+1 > max {
				max = level[dep] + 1
			}
		}

		level[id] = max
	}

	depth := 0
	for _, l := range level {
		if l > depth {
			depth = l
		}
	}

	levels := make([][]string, depth+1)
	for _, id := range d.ids {
		levels[level[id]] = append(levels[level[id]], id)
	}

	for _, l := range levels {
		sort.Strings(l)
	}

	return levels
}

// findCycle runs a recursive depth-first traversal with a three-color
// marking and reconstructs the concrete cycle path when it closes one.
func (d *DAG) findCycle() *CycleError {
	const (
		white = 0 // unvisited
		gray  = 1 // on the current path
		black = 2 // fully explored
	)

	color := make(map[string]int, len(d.ids))

	var path []string

	var visit func(id string) *CycleError

	visit = func(id string) *CycleError {
		color[id] = gray
		path = append(path, id)

		for _, dep := range d.deps[id] {
			switch color[dep] {
			case gray:
				// Close the loop for the error report.
				start := 0
				for i, p := range path {
					if p == dep {
						start = i

						break
					}
				}

				cycle := append([]string(nil), path[start:]...)
				cycle = append(cycle, dep)

				return &CycleError{Path: cycle}
			case white:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}

		color[id] = black
		path = path[:len(path)-1]

		return nil
	}

	for _, id := range d.ids {
		if color[id] == white {
			if err := visit(id); err != nil {
				return err
			}
		}
	}

	return nil
}

// findUnreachable walks dependent edges from the entry node; anything not
// visited has no dependency path from the entry and is flagged.
func (d *DAG) findUnreachable() []string {
	if _, ok := d.nodes[d.entry]; !ok {
		return nil
	}

	visited := map[string]bool{d.entry: true}
	queue := []string{d.entry}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		for _, dependent := range d.dependents[id] {
			if !visited[dependent] {
				visited[dependent] = true
				queue = append(queue, dependent)
			}
		}
	}

	var unreachable []string

	for _, id := range d.ids {
		if !visited[id] {
			unreachable = append(unreachable, id)
		}
	}

	return unreachable
}
