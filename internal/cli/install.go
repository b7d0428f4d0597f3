package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/stackforge/pkg/binaries"
	"github.com/matzehuels/stackforge/pkg/engine"
)

// installOpts holds the flags of the install command.
type installOpts struct {
	resolveFlags
	build    []string
	remotes  []string
	parallel int
}

// installCommand creates the install command.
func (c *CLI) installCommand() *cobra.Command {
	var opts installOpts

	cmd := &cobra.Command{
		Use:   "install [path|reference]",
		Short: "Resolve a graph, analyze its binaries and download the available ones",
		Long: `Resolve the dependency graph of a recipe, compute the package ID of every
node and decide whether its binary is cached, downloaded, built or missing.

Binaries found on a remote are downloaded into the local store. The command
fails when a needed binary is missing and the build policy forbids building
it.

Build policy (--build, repeatable):
  never          never build from source
  missing        build every package whose binary is missing
  cascade        rebuild dependants of packages built from source
  always         build every package
  <pattern>      build matching packages
  missing:<pat>  build matching packages when their binary is missing
  !<pattern>     never build matching packages`,
		Example: `  stackforge install ./recipe.hcl -p linux
  stackforge install zlib/1.3 --build missing -o "zlib:shared=True"
  stackforge install . --lockfile stackforge.lock --remote central`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runInstall(cmd, args, opts)
		},
	}

	opts.resolveFlags.register(cmd)
	cmd.Flags().StringArrayVarP(&opts.build, "build", "b", nil, "build policy item (repeatable)")
	cmd.Flags().StringArrayVarP(&opts.remotes, "remote", "r", nil, "only use these remotes (repeatable)")
	cmd.Flags().IntVarP(&opts.parallel, "parallel", "j", 0, "concurrent store lookups and downloads")
	_ = cmd.RegisterFlagCompletionFunc("remote", c.completeRemotes)
	return cmd
}

func (c *CLI) runInstall(cmd *cobra.Command, args []string, opts installOpts) error {
	ctx := cmd.Context()

	policy, err := binaries.ParsePolicy(opts.build)
	if err != nil {
		return err
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

	e, err := c.openEnv(ctx, opts.remotes)
	if err != nil {
		return err
	}
	defer e.Close()

	eo := c.engineOptions()
	eo.Profile, eo.Policy, eo.Lock, eo.Update = prof, policy, lock, opts.update
	if opts.parallel > 0 {
		eo.Parallel = opts.parallel
	}

	res, err := e.eng.Install(ctx, root, eo)
	if res != nil && res.Binaries != nil {
		printBinaries(res.Binaries)
		printInstallStats(res.Stats)
		if n := fallbackCount(res.Binaries); n > 0 {
			printWarning("%d packages use a compatible binary in place of the exact one", n)
		}
	}
	if err != nil {
		return err
	}

	if lock != nil {
		if err := lock.Save(opts.lockfile); err != nil {
			return err
		}
		printFile(opts.lockfile)
	}
	printSuccess("Installed %s", root.String())
	return nil
}

// printBinaries prints one row per node with its package ID and status.
func printBinaries(res *binaries.Result) {
	rows := make([]statusRow, 0, len(res.Binaries))
	for _, b := range res.Binaries {
		row := statusRow{Node: b.Node.ID, Status: b.Status, Describe: b.Describe()}
		if !b.Node.Virtual {
			row.PackageID = b.Effective().PackageID
		}
		if b.Remote != "" {
			row.Where = b.Remote
		}
		rows = append(rows, row)
	}
	fmt.Print(renderStatusTable(rows))
}

func fallbackCount(res *binaries.Result) int {
	n := 0
	for _, b := range res.Binaries {
		if b.FoundViaFallback() {
			n++
		}
	}
	return n
}

func printInstallStats(s engine.Stats) {
	printDetail("%d nodes · %d edges · resolve %s · analyze %s · install %s",
		s.NodeCount, s.EdgeCount, roundMS(s.ResolveTime), roundMS(s.AnalyzeTime), roundMS(s.InstallTime))
}
