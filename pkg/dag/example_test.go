package dag_test

import (
	"fmt"

	"github.com/matzehuels/stackforge/pkg/dag"
)

func ExampleDAG_basic() {
	// Create a simple dependency graph: app → libb → liba
	g := dag.New(nil)
	_ = g.AddNode(dag.Node{ID: "app"})
	_ = g.AddNode(dag.Node{ID: "libb"})
	_ = g.AddNode(dag.Node{ID: "liba"})
	_ = g.AddEdge(dag.Edge{From: "app", To: "libb"})
	_ = g.AddEdge(dag.Edge{From: "libb", To: "liba"})

	fmt.Println("Nodes:", g.NodeCount())
	fmt.Println("Edges:", g.EdgeCount())
	fmt.Println("Order:", g.TopologicalOrder())
	// Output:
	// Nodes: 3
	// Edges: 2
	// Order: [liba libb app]
}

func ExampleDAG_traversal() {
	// Build a diamond: app depends on libb and libc, both depend on liba
	g := dag.New(nil)
	for _, id := range []string{"app", "libb", "libc", "liba"} {
		_ = g.AddNode(dag.Node{ID: id})
	}
	_ = g.AddEdge(dag.Edge{From: "app", To: "libb"})
	_ = g.AddEdge(dag.Edge{From: "app", To: "libc"})
	_ = g.AddEdge(dag.Edge{From: "libb", To: "liba"})
	_ = g.AddEdge(dag.Edge{From: "libc", To: "liba"})

	fmt.Println("Children of app:", g.Children("app"))
	fmt.Println("Parents of liba:", g.Parents("liba"))
	fmt.Println("Descendants of app:", g.Descendants("app"))
	fmt.Println("Levels:", g.Levels())
	// Output:
	// Children of app: [libb libc]
	// Parents of liba: [libb libc]
	// Descendants of app: [libb libc liba]
	// Levels: [[liba] [libb libc] [app]]
}

func ExampleDAG_FindCycle() {
	g := dag.New(nil)
	for _, id := range []string{"a", "b", "c"} {
		_ = g.AddNode(dag.Node{ID: id})
	}
	_ = g.AddEdge(dag.Edge{From: "a", To: "b"})
	_ = g.AddEdge(dag.Edge{From: "b", To: "c"})
	_ = g.AddEdge(dag.Edge{From: "c", To: "b"})

	fmt.Println("Cycle:", g.FindCycle())
	fmt.Println("Valid:", g.Validate())
	// Output:
	// Cycle: [b c b]
	// Valid: graph contains a cycle
}

func ExampleDAG_RedirectEdges() {
	// An override replaces zlib/1.0 with zlib/2.0 for every consumer
	g := dag.New(nil)
	for _, id := range []string{"app", "libb", "zlib/1.0", "zlib/2.0"} {
		_ = g.AddNode(dag.Node{ID: id})
	}
	_ = g.AddEdge(dag.Edge{From: "app", To: "zlib/1.0"})
	_ = g.AddEdge(dag.Edge{From: "libb", To: "zlib/1.0"})

	sources, _ := g.RedirectEdges("zlib/1.0", "zlib/2.0")
	g.RemoveNode("zlib/1.0")

	fmt.Println("Redirected:", sources)
	fmt.Println("Parents of zlib/2.0:", g.Parents("zlib/2.0"))
	fmt.Println("Nodes:", g.NodeCount())
	// Output:
	// Redirected: [app libb]
	// Parents of zlib/2.0: [app libb]
	// Nodes: 3
}

func ExampleDAG_metadata() {
	// Attach resolution metadata to nodes
	g := dag.New(dag.Metadata{"profile": "default"})
	_ = g.AddNode(dag.Node{
		ID: "zlib/1.2.13",
		Meta: dag.Metadata{
			"context": "host",
			"visible": true,
		},
	})

	node, _ := g.Node("zlib/1.2.13")
	fmt.Println("Package:", node.ID)
	fmt.Println("Context:", node.Meta["context"])
	// Output:
	// Package: zlib/1.2.13
	// Context: host
}
