package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/rickgao/fund-data/internal/benchmark"
)

func newBenchmarkCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "benchmark",
		Short: "Download the configured benchmark rate series",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			client := benchmark.NewClient(a.cfg.Benchmark.BaseURL,
				benchmark.WithTimeout(a.cfg.Benchmark.Timeout),
				benchmark.WithLogger(a.logger),
			)
			report, err := client.Refresh(ctx, store, a.cfg.Benchmark.Series)
			if report != nil {
				names := make([]string, 0, len(a.cfg.Benchmark.Series))
				for name := range a.cfg.Benchmark.Series {
					names = append(names, name)
				}
				slices.Sort(names)
				for _, name := range names {
					if ferr, ok := report.Failed[name]; ok {
						fmt.Fprintf(a.out, "  %-6s failed: %v\n", name, ferr)
						continue
					}
					fmt.Fprintf(a.out, "  %-6s %d months\n", name, report.Stored[name])
				}
			}
			return err
		},
	}
}
