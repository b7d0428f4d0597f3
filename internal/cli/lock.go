package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/stackforge/pkg/lockfile"
)

// defaultLockfile is written by "lock create" when --lockfile is not set.
const defaultLockfile = "stackforge.lock"

// lockCommand creates the lock command.
func (c *CLI) lockCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lock",
		Short: "Manage lock files",
	}
	cmd.AddCommand(c.lockCreateCommand())
	return cmd
}

// lockCreateCommand creates the "lock create" subcommand.
func (c *CLI) lockCreateCommand() *cobra.Command {
	var opts resolveFlags

	cmd := &cobra.Command{
		Use:   "create [path|reference]",
		Short: "Resolve a graph and pin every reference in a lock file",
		Long: `Resolve the dependency graph of a recipe and write the resolved references
of both contexts to a lock file. An existing lock file is extended: its pins
constrain the resolution and new references are added.`,
		Example: `  stackforge lock create ./recipe.hcl
  stackforge lock create . --lockfile deps.lock --update`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.lockfile == "" {
				opts.lockfile = defaultLockfile
			}
			return c.runLockCreate(cmd, args, opts)
		},
	}
	opts.register(cmd)
	return cmd
}

func (c *CLI) runLockCreate(cmd *cobra.Command, args []string, opts resolveFlags) error {
	ctx := cmd.Context()

	root, err := opts.loadRoot(args)
	if err != nil {
		return err
	}
	prof, err := opts.loadProfile()
	if err != nil {
		return err
	}
	existing, err := opts.loadLock()
	if err != nil {
		return err
	}
	if opts.update {
		// Pins must not hold back --update.
		existing = lockfile.New()
	}

	e, err := c.openEnv(ctx, nil)
	if err != nil {
		return err
	}
	defer e.Close()

	eo := c.engineOptions()
	eo.Profile, eo.Update = prof, opts.update
	l, g, err := e.eng.Lock(ctx, root, existing, eo)
	if err != nil {
		return err
	}
	if err := l.Save(opts.lockfile); err != nil {
		return err
	}

	printSuccess("Locked %d nodes of %s", g.Len(), root.String())
	printFile(opts.lockfile)
	printNextStep("Install with", appName+" install --lockfile "+opts.lockfile)
	return nil
}
