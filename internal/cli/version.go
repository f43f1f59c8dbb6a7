package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wasatchphotonics/wasatch-shell/internal/version"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the wasatch-shell version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "wasatch-shell version %s\n", version.String())
			return err
		},
	}
}
