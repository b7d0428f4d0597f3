package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Document is the JSON form of a DepsGraph, used by `graph info --format
// json`. Nodes keep breadth-first order.
type Document struct {
	Root     string         `json:"root"`
	Nodes    []NodeDocument `json:"nodes"`
	Edges    []EdgeDocument `json:"edges"`
	Warnings []Warning      `json:"warnings,omitempty"`
}

// NodeDocument is the JSON form of a Node.
type NodeDocument struct {
	ID       string            `json:"id"`
	Ref      string            `json:"ref,omitempty"`
	Context  string            `json:"context"`
	Visible  bool              `json:"visible"`
	Options  map[string]string `json:"options,omitempty"`
	Settings map[string]string `json:"settings,omitempty"`
	Requires []string          `json:"requires,omitempty"`
	Path     []string          `json:"path,omitempty"`
}

// EdgeDocument is the JSON form of an Edge.
type EdgeDocument struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Kind     string `json:"kind"`
	Context  string `json:"context"`
	Visible  bool   `json:"visible"`
	Declared string `json:"declared"`
}

// Export converts g to its JSON form.
func Export(g *DepsGraph) Document {
	doc := Document{Root: g.root.ID, Warnings: g.Warnings}
	for _, n := range g.nodes {
		nd := NodeDocument{
			ID:       n.ID,
			Context:  string(n.Context),
			Visible:  n.Visible,
			Options:  n.Options.Map(),
			Settings: n.Settings.Map(),
			Path:     n.Path,
		}
		if !n.Virtual {
			nd.Ref = n.Ref.Repr()
		}
		if n.Requirements != nil {
			for _, r := range n.Requirements.Requirements() {
				nd.Requires = append(nd.Requires, r.String())
			}
		}
		doc.Nodes = append(doc.Nodes, nd)
	}
	for _, e := range g.Edges() {
		doc.Edges = append(doc.Edges, EdgeDocument{
			From:     e.From.ID,
			To:       e.To.ID,
			Kind:     string(e.Requirement.Kind),
			Context:  string(e.Requirement.Context),
			Visible:  e.Requirement.Visible,
			Declared: e.Requirement.Declared(),
		})
	}
	return doc
}

// MarshalGraph converts g to indented JSON bytes.
func MarshalGraph(g *DepsGraph) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteGraph(g, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteGraph writes g as indented JSON to w.
func WriteGraph(g *DepsGraph, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(Export(g)); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// WriteGraphFile writes g as JSON to path.
func WriteGraphFile(g *DepsGraph, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return WriteGraph(g, f)
}
