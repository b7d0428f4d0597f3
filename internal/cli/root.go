package cli

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/stackforge/pkg/buildinfo"
	"github.com/matzehuels/stackforge/pkg/errors"
)

// Process exit codes.
const (
	ExitOK        = 0
	ExitFailure   = 1
	ExitGraph     = 2   // the dependency graph could not be built
	ExitCancelled = 130 // standard shell convention for SIGINT
)

// ExitCode maps an error returned by a command to a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case stderrors.Is(err, context.Canceled):
		return ExitCancelled
	case errors.IsGraphError(err):
		return ExitGraph
	}
	return ExitFailure
}

// FormatError renders err for the terminal: the code, the message and the
// requirer chain.
func FormatError(err error) string {
	code := errors.GetCode(err)
	if code == "" {
		return styleIconError.Render(iconError) + " " + err.Error()
	}
	return styleIconError.Render(iconError) + " " + StyleWarning.Render(string(code)) + " " + errors.UserMessage(err)
}

// versionCommand creates the version command.
func (c *CLI) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), buildinfo.String())
			return nil
		},
	}
}
