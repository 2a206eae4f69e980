package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var version = "1.0.0"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "nmt-api",
		Short: "English-Tamil neural machine translation API",
		Long: `nmt-api serves a sequence-to-sequence translation model over HTTP.

Model inference runs in an external backend reached at model.inference_url;
this process owns request validation, model lifecycle, caching and metrics.

Use "nmt-api serve --help" for server options.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newSmokeCmd())
	return root
}

// Execute runs the CLI with the provided arguments.
func Execute(ctx context.Context, args []string) error {
	root := newRootCmd()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}
