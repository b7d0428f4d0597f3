// Package dot renders dependency graphs as Graphviz node-link diagrams.
//
// [ToDOT] produces DOT source that can be saved and processed with external
// Graphviz tools; [RenderSVG] renders it in process through
// [github.com/goccy/go-graphviz].
//
// Build-context nodes are drawn dashed, nodes hidden behind private edges
// are greyed out, and nodes marked Skip by binary analysis are dotted. Tool
// edges are dashed.
package dot

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/stackforge/pkg/graph"
	"github.com/matzehuels/stackforge/pkg/requirement"
)

// Options configures rendering.
type Options struct {
	// Detailed adds options and the first requirer to node labels.
	Detailed bool
	// Status, when set, returns an extra label line per node, for example
	// the binary status.
	Status func(*graph.Node) string
}

// ToDOT converts g to DOT source.
func ToDOT(g *graph.DepsGraph, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	for _, n := range g.Nodes() {
		fmt.Fprintf(&buf, "  %q [%s];\n", n.ID, strings.Join(nodeAttrs(n, opts), ", "))
	}

	buf.WriteString("\n")
	for _, e := range g.Edges() {
		attrs := ""
		if e.Requirement.Context == requirement.Build {
			attrs = " [style=dashed]"
		} else if !e.Requirement.Visible {
			attrs = " [color=grey]"
		}
		fmt.Fprintf(&buf, "  %q -> %q%s;\n", e.From.ID, e.To.ID, attrs)
	}

	buf.WriteString("}\n")
	return buf.String()
}

func label(n *graph.Node, opts Options) string {
	lines := []string{n.String()}
	if opts.Detailed {
		if s := n.Options.String(); s != "" {
			lines = append(lines, s)
		}
		if len(n.Path) > 0 {
			lines = append(lines, "via "+n.Path[len(n.Path)-1])
		}
	}
	if opts.Status != nil {
		if s := opts.Status(n); s != "" {
			lines = append(lines, s)
		}
	}
	return strings.Join(lines, "\n")
}

func nodeAttrs(n *graph.Node, opts Options) []string {
	attrs := []string{fmt.Sprintf("label=%q", label(n, opts))}
	style := []string{"rounded", "filled"}
	switch {
	case n.Virtual:
		attrs = append(attrs, "shape=ellipse")
	case n.Context == requirement.Build:
		style = append(style, "dashed")
	}
	if n.Skip {
		style = append(style, "dotted")
	}
	attrs = append(attrs, fmt.Sprintf("style=%q", strings.Join(style, ",")))
	if !n.Visible {
		attrs = append(attrs, "fillcolor=lightgrey", "fontcolor=dimgrey")
	}
	return attrs
}

// RenderSVG renders DOT source to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox rewrites the root element so the drawing scales to its
// container.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	newSvg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)

	return svgTagRe.ReplaceAll(svg, []byte(newSvg))
}
