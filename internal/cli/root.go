package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/wasatchphotonics/wasatch-shell/internal/version"
)

// Execute runs the CLI. The context carries operator cancellation (SIGINT)
// down to every subprocess wait.
func Execute(ctx context.Context) error {
	return newRootCommand().ExecuteContext(ctx)
}

func newRootCommand() *cobra.Command {
	opts := &shellOptions{}
	cmd := &cobra.Command{
		Use:           "wasatch-shell",
		Short:         "Interactive spectrometer control shell and its test clients",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(cmd, opts)
		},
	}
	addShellFlags(cmd, opts)

	cmd.AddCommand(
		newLoadTestCommand(),
		newOneShotCommand(),
		newLaserTestCommand(),
		newVersionCommand(),
	)

	return cmd
}
