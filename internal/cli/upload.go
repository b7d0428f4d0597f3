package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/stackforge/pkg/errors"
	"github.com/matzehuels/stackforge/pkg/ref"
)

// uploadCommand creates the upload command.
func (c *CLI) uploadCommand() *cobra.Command {
	var (
		remoteName string
		recipeOnly bool
		parallel   int
	)

	cmd := &cobra.Command{
		Use:   "upload <reference>",
		Short: "Copy a recipe and its binaries from the local store to a remote",
		Example: `  stackforge upload zlib/1.3 --remote central
  stackforge upload zlib/1.3#8f14e45f --remote central --recipe-only`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			r, err := ref.Parse(args[0])
			if err != nil {
				return err
			}
			if remoteName == "" {
				return errors.New(errors.ErrCodeInvalidInput, "--remote is required")
			}

			e, err := c.openEnv(ctx, []string{remoteName})
			if err != nil {
				return err
			}
			defer e.Close()
			dst, err := e.remote(remoteName)
			if err != nil {
				return err
			}

			spinner := newSpinner(ctx, fmt.Sprintf("Uploading %s to %s...", r, remoteName))
			spinner.Start()
			res, err := e.eng.Upload(ctx, r, dst, recipeOnly, parallel)
			if err != nil {
				spinner.StopWithError("Upload failed")
				return err
			}
			spinner.StopWithSuccess(fmt.Sprintf("Uploaded %s to %s", res.Recipe.Repr(), remoteName))
			printKeyValue("Packages", StyleNumber.Render(fmt.Sprint(len(res.Packages))))
			for _, id := range res.Packages {
				printDetail("%s", id)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&remoteName, "remote", "r", "", "destination remote")
	cmd.Flags().BoolVar(&recipeOnly, "recipe-only", false, "upload the recipe without binaries")
	cmd.Flags().IntVarP(&parallel, "parallel", "j", 0, "concurrent package uploads")
	_ = cmd.RegisterFlagCompletionFunc("remote", c.completeRemotes)
	return cmd
}
