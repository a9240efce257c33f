package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rickgao/fund-data/internal/loader"
)

func newLoadCmd(a *app) *cobra.Command {
	var (
		monthArgs []string
		rebuild   bool
	)

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load published partitions into the warehouse",
		Long: `Load the given months plus every month whose published partition differs
from the one last loaded. With --rebuild the warehouse is emptied and every
partition is loaded in ascending order.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			months, err := parseMonths(monthArgs)
			if err != nil {
				return err
			}

			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			l := loader.New(store, a.partitions(), loader.WithLogger(a.logger))

			var report *loader.Report
			if rebuild {
				report, err = l.Rebuild(ctx)
			} else {
				report, err = l.Sync(ctx, months)
			}
			if err != nil {
				return fmt.Errorf("load: %w", err)
			}
			printLoadReport(a, report)
			return report.Err()
		},
	}

	cmd.Flags().StringSliceVar(&monthArgs, "month", nil, "month to load as YYYYMM (repeatable)")
	cmd.Flags().BoolVar(&rebuild, "rebuild", false, "truncate the warehouse and reload every partition")
	return cmd
}

func printLoadReport(a *app, r *loader.Report) {
	for _, m := range r.Skipped {
		fmt.Fprintf(a.out, "  %s  no published partition\n", m)
	}
	fmt.Fprintf(a.out, "loaded %d months (%d rows), failed %d\n", len(r.Loaded), r.Rows, len(r.Failed))
}
