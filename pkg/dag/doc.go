// Package dag provides the directed acyclic graph that stores resolved
// dependency graphs.
//
// # Overview
//
// Nodes are identified by string IDs and carry arbitrary [Metadata]; edges
// point from a consumer to one of its dependencies. Insertion order is kept
// for nodes and edges so that every traversal, and therefore every error
// message derived from one, is deterministic.
//
// # Basic Usage
//
// Create a new graph with [New], add nodes with [DAG.AddNode], and edges with
// [DAG.AddEdge]:
//
//	g := dag.New(nil)
//	g.AddNode(dag.Node{ID: "app"})
//	g.AddNode(dag.Node{ID: "zlib"})
//	g.AddEdge(dag.Edge{From: "app", To: "zlib"})
//
// Query the graph structure with [DAG.Children], [DAG.Parents],
// [DAG.Descendants] and related methods. Use [DAG.Validate] to verify
// structural integrity.
//
// # Cycles
//
// Acyclicity is not enforced on insertion. The resolver checks
// [DAG.Reaches] before adding an edge to an existing node and reports the
// path from [DAG.PathTo]; [DAG.FindCycle] returns a full cycle for
// diagnostics. Cycle detection uses depth-first search with white/gray/black
// coloring.
//
// # Overrides
//
// [DAG.RedirectEdges] moves all edges from one dependency node to another,
// which is how an override replaces a reference that is already in the graph.
//
// # Ordering
//
// [DAG.Levels] groups nodes so that dependencies come before their
// consumers. Binary analysis and installation process nodes level by level.
//
// # Concurrency
//
// DAG instances are not safe for concurrent use. Callers must synchronize access
// if multiple goroutines read or modify the same graph.
package dag
