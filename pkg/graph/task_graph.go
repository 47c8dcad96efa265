package graph

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	gonum "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// TaskGraph is the directed acyclic graph of build tasks. An edge u -> v
// means u must complete before v. Edges added with AddDependency also pull u
// into any plan that contains v; edges added with AddOrdering only constrain
// the order when both ends are already planned.
type TaskGraph struct {
	graph    *simple.DirectedGraph
	ids      map[string]int64 // Map from task name to graph ID
	names    map[int64]string
	requires map[[2]int64]bool
	nextID   int64
}

// CycleError reports tasks whose ordering constraints form a cycle.
type CycleError struct {
	Cycles [][]string
}

func (e *CycleError) Error() string {
	parts := make([]string, len(e.Cycles))
	for i, c := range e.Cycles {
		parts[i] = strings.Join(c, " -> ")
	}
	return "task graph has cycles: " + strings.Join(parts, "; ")
}

// NewTaskGraph creates an empty task graph
func NewTaskGraph() *TaskGraph {
	return &TaskGraph{
		graph:    simple.NewDirectedGraph(),
		ids:      make(map[string]int64),
		names:    make(map[int64]string),
		requires: make(map[[2]int64]bool),
	}
}

// AddTask adds a named node. Names are unique.
func (g *TaskGraph) AddTask(name string) error {
	if name == "" {
		return errors.New("task name must not be empty")
	}
	if _, exists := g.ids[name]; exists {
		return fmt.Errorf("task %q already registered", name)
	}

	g.ids[name] = g.nextID
	g.names[g.nextID] = name
	g.graph.AddNode(simple.Node(g.nextID))
	g.nextID++
	return nil
}

// Has reports whether a task is registered.
func (g *TaskGraph) Has(name string) bool {
	_, ok := g.ids[name]
	return ok
}

// Tasks lists task names in registration order.
func (g *TaskGraph) Tasks() []string {
	names := make([]string, 0, len(g.ids))
	for id := int64(0); id < g.nextID; id++ {
		names = append(names, g.names[id])
	}
	return names
}

// AddDependency records that task requires dep to run first.
func (g *TaskGraph) AddDependency(task, dep string) error {
	from, to, err := g.edge(dep, task)
	if err != nil {
		return err
	}
	g.requires[[2]int64{from, to}] = true
	return nil
}

// AddOrdering records that before must run ahead of after whenever both are planned.
func (g *TaskGraph) AddOrdering(before, after string) error {
	_, _, err := g.edge(before, after)
	return err
}

// Chain orders the named tasks one after another.
func (g *TaskGraph) Chain(names ...string) error {
	for i := 1; i < len(names); i++ {
		if err := g.AddOrdering(names[i-1], names[i]); err != nil {
			return err
		}
	}
	return nil
}

func (g *TaskGraph) edge(from, to string) (int64, int64, error) {
	fromID, ok := g.ids[from]
	if !ok {
		return 0, 0, fmt.Errorf("unknown task %q", from)
	}
	toID, ok := g.ids[to]
	if !ok {
		return 0, 0, fmt.Errorf("unknown task %q", to)
	}
	if fromID == toID {
		return 0, 0, fmt.Errorf("task %q cannot depend on itself", from)
	}

	// Add edge if it doesn't already exist
	if !g.graph.HasEdgeFromTo(fromID, toID) {
		g.graph.SetEdge(g.graph.NewEdge(g.graph.Node(fromID), g.graph.Node(toID)))
	}
	return fromID, toID, nil
}

// Dependencies returns the tasks the given task requires, in registration order.
func (g *TaskGraph) Dependencies(name string) []string {
	id, exists := g.ids[name]
	if !exists {
		return nil
	}

	var deps []int64
	iter := g.graph.To(id)
	for iter.Next() {
		from := iter.Node().ID()
		if g.requires[[2]int64{from, id}] {
			deps = append(deps, from)
		}
	}
	sort.Slice(deps, func(i, j int) bool { return deps[i] < deps[j] })

	names := make([]string, len(deps))
	for i, dep := range deps {
		names[i] = g.names[dep]
	}
	return names
}

// Closure returns the targets plus everything they transitively require.
func (g *TaskGraph) Closure(targets ...string) (map[string]bool, error) {
	seen := make(map[string]bool)
	var visit func(name string)
	visit = func(name string) {
		if seen[name] {
			return
		}
		seen[name] = true
		for _, dep := range g.Dependencies(name) {
			visit(dep)
		}
	}

	for _, target := range targets {
		if !g.Has(target) {
			return nil, fmt.Errorf("unknown task %q", target)
		}
		visit(target)
	}
	return seen, nil
}

// Order returns the closure of targets in execution order. Ties between
// independent tasks are broken by registration order, so the plan is stable.
func (g *TaskGraph) Order(targets ...string) ([]string, error) {
	planned, err := g.Closure(targets...)
	if err != nil {
		return nil, err
	}

	sorted, err := topo.SortStabilized(g.graph, func(nodes []gonum.Node) {
		sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID() < nodes[j].ID() })
	})
	if err != nil {
		var unorderable topo.Unorderable
		if errors.As(err, &unorderable) {
			return nil, g.cycleError(unorderable)
		}
		return nil, err
	}

	order := make([]string, 0, len(planned))
	for _, node := range sorted {
		if name := g.names[node.ID()]; planned[name] {
			order = append(order, name)
		}
	}
	return order, nil
}

// Validate reports a *CycleError when the graph cannot be ordered.
func (g *TaskGraph) Validate() error {
	_, err := topo.Sort(g.graph)
	var unorderable topo.Unorderable
	if errors.As(err, &unorderable) {
		return g.cycleError(unorderable)
	}
	return err
}

func (g *TaskGraph) cycleError(components topo.Unorderable) *CycleError {
	cycles := make([][]string, 0, len(components))
	for _, component := range components {
		ids := make([]int64, len(component))
		for i, node := range component {
			ids[i] = node.ID()
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		names := make([]string, len(ids))
		for i, id := range ids {
			names[i] = g.names[id]
		}
		cycles = append(cycles, names)
	}
	return &CycleError{Cycles: cycles}
}
