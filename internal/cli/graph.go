package cli

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/stackforge/pkg/errors"
	"github.com/matzehuels/stackforge/pkg/graph"
	"github.com/matzehuels/stackforge/pkg/render/dot"
)

// Output formats of "graph info".
const (
	formatText = "text"
	formatJSON = "json"
	formatDOT  = "dot"
	formatSVG  = "svg"
)

// graphOpts holds the flags of "graph info".
type graphOpts struct {
	resolveFlags
	format   string
	output   string
	detailed bool
}

// graphCommand creates the graph command.
func (c *CLI) graphCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Inspect dependency graphs",
	}
	cmd.AddCommand(c.graphInfoCommand())
	return cmd
}

// graphInfoCommand creates the "graph info" subcommand.
func (c *CLI) graphInfoCommand() *cobra.Command {
	opts := graphOpts{format: formatText}

	cmd := &cobra.Command{
		Use:   "info [path|reference]",
		Short: "Resolve a dependency graph and print it",
		Long: `Resolve the dependency graph of a recipe without analyzing binaries.

The argument is a recipe file, a directory holding recipe.hcl, or a
reference such as zlib/1.3 loaded from the recipe directories and stores.`,
		Example: `  stackforge graph info ./recipe.hcl
  stackforge graph info zlib/1.3 --format dot --output zlib.dot
  stackforge graph info --requires "zlib/[>=1.2 <2]" -s os=Linux`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runGraphInfo(cmd, args, opts)
		},
	}

	opts.resolveFlags.register(cmd)
	cmd.Flags().StringVarP(&opts.format, "format", "f", formatText, "output format: text, json, dot or svg")
	cmd.Flags().StringVar(&opts.output, "output", "", "output file (stdout if empty)")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "add options and requirers to dot and svg labels")
	return cmd
}

func (c *CLI) runGraphInfo(cmd *cobra.Command, args []string, opts graphOpts) error {
	ctx := cmd.Context()
	switch opts.format {
	case formatText, formatJSON, formatDOT, formatSVG:
	default:
		return errors.New(errors.ErrCodeInvalidInput, "unknown format %q", opts.format)
	}

	root, err := opts.loadRoot(args)
	if err != nil {
		return err
	}
	prof, err := opts.loadProfile()
	if err != nil {
		return err
	}
	lock, err := opts.loadLock()
	if err != nil {
		return err
	}

	e, err := c.openEnv(ctx, nil)
	if err != nil {
		return err
	}
	defer e.Close()

	eo := c.engineOptions()
	eo.Profile, eo.Lock, eo.Update = prof, lock, opts.update
	prog := newProgress(loggerFromContext(ctx))
	g, err := e.eng.Resolve(ctx, root, eo)
	if err != nil {
		return err
	}
	prog.done("graph info", "root", root.String(), "nodes", g.Len(), "format", opts.format)

	data, err := formatGraph(cmd, g, opts)
	if err != nil {
		return err
	}
	return writeOutput(opts.output, data)
}

func formatGraph(cmd *cobra.Command, g *graph.DepsGraph, opts graphOpts) ([]byte, error) {
	switch opts.format {
	case formatJSON:
		var buf bytes.Buffer
		if err := graph.WriteGraph(g, &buf); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case formatDOT:
		return []byte(dot.ToDOT(g, dot.Options{Detailed: opts.detailed})), nil
	case formatSVG:
		return dot.RenderSVG(cmd.Context(), dot.ToDOT(g, dot.Options{Detailed: opts.detailed}))
	}
	return []byte(graphText(g)), nil
}

// graphText lists the nodes bottom-up with their context, options and
// conflicts, followed by the warnings.
func graphText(g *graph.DepsGraph) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", StyleTitle.Render("root"), g.Root().String())
	fmt.Fprintf(&b, "%s\n", StyleDim.Render(fmt.Sprintf("%d nodes · %d edges", g.Len(), len(g.Edges()))))
	for _, n := range g.BottomUp() {
		line := "  " + StyleHighlight.Render(n.ID)
		if !n.Visible {
			line += StyleDim.Render(" private")
		}
		if n.Ref.Revision != "" {
			line += StyleDim.Render(" #" + shortRevision(n.Ref.Revision))
		}
		b.WriteString(line + "\n")
		if opts := n.Options.String(); opts != "" {
			fmt.Fprintf(&b, "    options  %s\n", opts)
		}
		for _, dep := range g.Dependencies(n) {
			fmt.Fprintf(&b, "    requires %s\n", dep.ID)
		}
		for _, cf := range n.Conflicts {
			fmt.Fprintf(&b, "    %s\n", StyleWarning.Render("conflict "+cf.String()))
		}
	}
	for _, w := range g.Warnings {
		fmt.Fprintf(&b, "%s %s: %s\n", styleIconWarning.Render(iconWarning), w.Node, w.Message)
	}
	return b.String()
}

func shortRevision(rev string) string {
	if len(rev) > 8 {
		return rev[:8]
	}
	return rev
}
