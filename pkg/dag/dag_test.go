package dag

import (
	"errors"
	"slices"
	"testing"
)

func build(t *testing.T, nodes []string, edges [][2]string) *DAG {
	t.Helper()
	g := New(nil)
	for _, id := range nodes {
		if err := g.AddNode(Node{ID: id}); err != nil {
			t.Fatalf("AddNode(%s): %v", id, err)
		}
	}
	for _, e := range edges {
		if err := g.AddEdge(Edge{From: e[0], To: e[1]}); err != nil {
			t.Fatalf("AddEdge(%v): %v", e, err)
		}
	}
	return g
}

func TestAddErrors(t *testing.T) {
	g := build(t, []string{"a"}, nil)
	if err := g.AddNode(Node{}); !errors.Is(err, ErrInvalidNodeID) {
		t.Errorf("empty ID: %v", err)
	}
	if err := g.AddNode(Node{ID: "a"}); !errors.Is(err, ErrDuplicateNodeID) {
		t.Errorf("duplicate: %v", err)
	}
	if err := g.AddEdge(Edge{From: "x", To: "a"}); !errors.Is(err, ErrUnknownSourceNode) {
		t.Errorf("unknown source: %v", err)
	}
	if err := g.AddEdge(Edge{From: "a", To: "x"}); !errors.Is(err, ErrUnknownTargetNode) {
		t.Errorf("unknown target: %v", err)
	}
}

func TestNodesKeepInsertionOrder(t *testing.T) {
	ids := []string{"z", "a", "m", "b"}
	g := build(t, ids, nil)
	if got := NodeIDs(g.Nodes()); !slices.Equal(got, ids) {
		t.Errorf("Nodes() = %v, want %v", got, ids)
	}
}

func TestRemoveNode(t *testing.T) {
	g := build(t, []string{"a", "b", "c"}, [][2]string{{"a", "b"}, {"b", "c"}, {"a", "c"}})
	g.RemoveNode("b")
	g.RemoveNode("missing")
	if g.NodeCount() != 2 || g.EdgeCount() != 1 {
		t.Fatalf("NodeCount=%d EdgeCount=%d", g.NodeCount(), g.EdgeCount())
	}
	if !slices.Equal(g.Parents("c"), []string{"a"}) {
		t.Errorf("Parents(c) = %v", g.Parents("c"))
	}
}

func TestRedirectEdgesKeepsExisting(t *testing.T) {
	g := build(t, []string{"app", "old", "new"}, [][2]string{{"app", "old"}, {"app", "new"}})
	sources, err := g.RedirectEdges("old", "new")
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(sources, []string{"app"}) {
		t.Errorf("sources = %v", sources)
	}
	if g.EdgeCount() != 1 || !slices.Equal(g.Children("app"), []string{"new"}) {
		t.Errorf("edges = %v", g.Edges())
	}
	if _, err := g.RedirectEdges("old", "missing"); !errors.Is(err, ErrUnknownTargetNode) {
		t.Errorf("redirect to missing: %v", err)
	}
}

func TestPathToAndReaches(t *testing.T) {
	g := build(t, []string{"a", "b", "c", "d"}, [][2]string{{"a", "b"}, {"b", "c"}, {"a", "c"}})
	if got := g.PathTo("a", "c"); !slices.Equal(got, []string{"a", "c"}) {
		t.Errorf("PathTo(a,c) = %v", got)
	}
	if got := g.PathTo("a", "a"); !slices.Equal(got, []string{"a"}) {
		t.Errorf("PathTo(a,a) = %v", got)
	}
	if g.Reaches("c", "a") || g.Reaches("a", "d") {
		t.Error("unexpected reachability")
	}
	if got := g.Ancestors("c"); !slices.Equal(got, []string{"b", "a"}) {
		t.Errorf("Ancestors(c) = %v", got)
	}
}

func TestValidate(t *testing.T) {
	g := build(t, []string{"a", "b"}, [][2]string{{"a", "b"}})
	if err := g.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	_ = g.AddEdge(Edge{From: "b", To: "a"})
	if err := g.Validate(); !errors.Is(err, ErrGraphHasCycle) {
		t.Errorf("Validate = %v, want cycle", err)
	}
	if got := g.FindCycle(); !slices.Equal(got, []string{"a", "b", "a"}) {
		t.Errorf("FindCycle = %v", got)
	}
}

func TestLevelsSkipsCycles(t *testing.T) {
	g := build(t, []string{"a", "b", "c"}, [][2]string{{"a", "b"}, {"b", "a"}})
	levels := g.Levels()
	if len(levels) != 1 || !slices.Equal(levels[0], []string{"c"}) {
		t.Errorf("Levels = %v", levels)
	}
}
