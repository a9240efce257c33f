package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/rickgao/fund-data/internal/config"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:     "validate",
		Short:   "Load, apply defaults to and validate the configuration",
		Example: `  funddata config validate --config configs/funddata.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Loading and validation already ran in the root pre-run.
			cfg := a.cfg
			path := a.configPath
			if path == "" {
				path = "(defaults)"
			}

			fmt.Fprintf(a.out, "configuration valid: %s\n", path)
			fmt.Fprintf(a.out, "  source:     %s\n", cfg.Source.BaseURL)
			fmt.Fprintf(a.out, "  partitions: %s\n", cfg.Partitions.Dir)
			switch cfg.Warehouse.Driver {
			case config.DriverPostgres:
				fmt.Fprintf(a.out, "  warehouse:  postgres %s:%d/%s\n",
					cfg.Warehouse.Postgres.Host, cfg.Warehouse.Postgres.Port, cfg.Warehouse.Postgres.Name)
			default:
				fmt.Fprintf(a.out, "  warehouse:  duckdb %s\n", cfg.Warehouse.Path)
			}

			rates := make([]string, 0, len(cfg.Benchmark.Series))
			for name := range cfg.Benchmark.Series {
				rates = append(rates, name)
			}
			slices.Sort(rates)
			fmt.Fprintf(a.out, "  benchmarks: %v (default %s, gaps %s)\n", rates, cfg.Returns.Benchmark, cfg.Returns.GapPolicy)
			return nil
		},
	})
	return cmd
}
