package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rickgao/fund-data/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		// Printing the version must not depend on a loadable config.
		PersistentPreRun: func(cmd *cobra.Command, args []string) {},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "funddata %s\n", version.String())
		},
	}
}
