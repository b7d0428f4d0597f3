package graph

import (
	"slices"

	"github.com/matzehuels/stackforge/pkg/dag"
	"github.com/matzehuels/stackforge/pkg/requirement"
)

// WarningKind classifies non-fatal findings of a build.
type WarningKind string

const (
	WarnOverride        WarningKind = "override"
	WarnOptionsConflict WarningKind = "options_conflict"
)

// Warning is a non-fatal finding, attached to the node it concerns.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Node    string      `json:"node"`
	Message string      `json:"message"`
}

const metaRequirement = "requirement"

// DepsGraph is a finalized dependency graph. It is immutable apart from
// the Skip flags set by binary analysis.
type DepsGraph struct {
	dag   *dag.DAG
	nodes []*Node
	byID  map[string]*Node
	root  *Node

	Warnings []Warning
}

func newDepsGraph() *DepsGraph {
	return &DepsGraph{dag: dag.New(nil), byID: make(map[string]*Node)}
}

// Root returns the root node.
func (g *DepsGraph) Root() *Node { return g.root }

// Nodes returns every node in breadth-first order from the root.
func (g *DepsGraph) Nodes() []*Node { return slices.Clone(g.nodes) }

// Len returns the number of nodes.
func (g *DepsGraph) Len() int { return len(g.nodes) }

// Node returns the node with the given ID.
func (g *DepsGraph) Node(id string) (*Node, bool) {
	n, ok := g.byID[id]
	return n, ok
}

// ByName returns the nodes of the package name, in breadth-first order.
func (g *DepsGraph) ByName(name string) []*Node {
	var out []*Node
	for _, n := range g.nodes {
		if !n.Virtual && n.Ref.Name == name {
			out = append(out, n)
		}
	}
	return out
}

// Dependencies returns the direct dependencies of n in declaration order.
func (g *DepsGraph) Dependencies(n *Node) []*Node {
	return g.lookup(g.dag.Children(n.ID))
}

// Dependants returns the nodes that depend directly on n.
func (g *DepsGraph) Dependants(n *Node) []*Node {
	return g.lookup(g.dag.Parents(n.ID))
}

// TransitiveDeps returns every node reachable from n, breadth-first.
func (g *DepsGraph) TransitiveDeps(n *Node) []*Node {
	return g.lookup(g.dag.Descendants(n.ID))
}

// EdgesFrom returns the outgoing edges of n in declaration order.
func (g *DepsGraph) EdgesFrom(n *Node) []Edge {
	return g.edges(g.dag.EdgesFrom(n.ID))
}

// Edges returns every edge of the graph.
func (g *DepsGraph) Edges() []Edge {
	return g.edges(g.dag.Edges())
}

// BottomUp returns the nodes with every dependency before its consumers.
func (g *DepsGraph) BottomUp() []*Node {
	return g.lookup(g.dag.TopologicalOrder())
}

// DAG exposes the underlying structure for rendering. Callers must not
// modify it.
func (g *DepsGraph) DAG() *dag.DAG { return g.dag }

func (g *DepsGraph) lookup(ids []string) []*Node {
	out := make([]*Node, 0, len(ids))
	for _, id := range ids {
		if n, ok := g.byID[id]; ok {
			out = append(out, n)
		}
	}
	return out
}

func (g *DepsGraph) edges(es []dag.Edge) []Edge {
	out := make([]Edge, 0, len(es))
	for _, e := range es {
		req, _ := e.Meta[metaRequirement].(requirement.Requirement)
		out = append(out, Edge{From: g.byID[e.From], To: g.byID[e.To], Requirement: req})
	}
	return out
}

func (g *DepsGraph) add(n *Node) error {
	if err := g.dag.AddNode(dag.Node{ID: n.ID}); err != nil {
		return err
	}
	g.nodes = append(g.nodes, n)
	g.byID[n.ID] = n
	if g.root == nil {
		g.root = n
	}
	return nil
}

func (g *DepsGraph) link(from, to *Node, req requirement.Requirement) error {
	for _, c := range g.dag.Children(from.ID) {
		if c == to.ID {
			return nil
		}
	}
	return g.dag.AddEdge(dag.Edge{From: from.ID, To: to.ID, Meta: dag.Metadata{metaRequirement: req}})
}

func (g *DepsGraph) remove(n *Node) {
	g.dag.RemoveNode(n.ID)
	delete(g.byID, n.ID)
	g.nodes = slices.DeleteFunc(g.nodes, func(o *Node) bool { return o == n })
}
