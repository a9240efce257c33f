package cli

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/rickgao/fund-data/internal/ingest"
	"github.com/rickgao/fund-data/internal/loader"
	"github.com/rickgao/fund-data/internal/metrics"
	"github.com/rickgao/fund-data/internal/model"
	"github.com/rickgao/fund-data/internal/source"
)

func newIngestCmd(a *app) *cobra.Command {
	var (
		monthArgs []string
		rebuild   bool
		textfile  string
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Fetch, normalize, publish and load monthly quote archives",
		Long: `Ingest the given months, or every pending month when none is given:
the months after the newest published partition up to the current month.
Published months are loaded into the warehouse in ascending order.`,
		Example: `  funddata ingest
  funddata ingest --month 202401 --month 202402
  funddata ingest --rebuild --metrics-textfile /var/lib/node_exporter/funddata.prom`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			months, err := parseMonths(monthArgs)
			if err != nil {
				return err
			}
			if textfile == "" {
				textfile = a.cfg.Metrics.Textfile
			}

			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			reg := prometheus.NewRegistry()
			m := metrics.New(reg)

			dir := a.partitions()
			if n, err := dir.Prune(); err != nil {
				a.logger.Warn("prune partitions", "err", err)
			} else if n > 0 {
				a.logger.Info("pruned stale partition files", "files", n)
			}

			client := source.NewClient(a.cfg.Source.BaseURL,
				source.WithTimeout(a.cfg.Source.Timeout),
				source.WithRateLimit(a.cfg.Source.RequestsPerSecond),
				source.WithUserAgent(a.cfg.Source.UserAgent),
				source.WithLogger(a.logger),
			)
			p := ingest.New(client, dir,
				ingest.WithWarehouse(store),
				ingest.WithConcurrency(a.cfg.Ingest.Concurrency),
				ingest.WithChunkSize(a.cfg.Partitions.ChunkSize),
				ingest.WithMetrics(m),
				ingest.WithLogger(a.logger),
			)

			report, err := p.Run(ctx, months)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			printIngestReport(a, report)

			if rebuild {
				l := loader.New(store, dir,
					loader.WithRunID(report.RunID),
					loader.WithMetrics(m),
					loader.WithLogger(a.logger),
				)
				lr, err := l.Rebuild(ctx)
				if err != nil {
					return fmt.Errorf("rebuild: %w", err)
				}
				printLoadReport(a, lr)
				if err := lr.Err(); err != nil {
					return err
				}
			}

			if textfile != "" {
				if err := metrics.WriteTextfile(textfile, reg); err != nil {
					return fmt.Errorf("write metrics: %w", err)
				}
			}
			return report.Err()
		},
	}

	cmd.Flags().StringSliceVar(&monthArgs, "month", nil, "month to ingest as YYYYMM (repeatable)")
	cmd.Flags().BoolVar(&rebuild, "rebuild", false, "truncate the warehouse and reload every partition afterwards")
	cmd.Flags().StringVar(&textfile, "metrics-textfile", "", "write run metrics in Prometheus text format to this file")
	return cmd
}

func parseMonths(args []string) ([]model.Month, error) {
	months := make([]model.Month, 0, len(args))
	for _, s := range args {
		m, err := model.ParseMonth(s)
		if err != nil {
			return nil, fmt.Errorf("bad --month %q: %w", s, err)
		}
		months = append(months, m)
	}
	return months, nil
}

func printIngestReport(a *app, r *ingest.Report) {
	fmt.Fprintf(a.out, "run %s\n", r.RunID)
	for _, info := range r.Published {
		fmt.Fprintf(a.out, "  %s  published  %d rows (%d duplicates)  %s\n", info.Month, info.Rows, info.Duplicates, info.Generation)
	}
	for _, m := range r.Unavailable {
		fmt.Fprintf(a.out, "  %s  unavailable\n", m)
	}
	fmt.Fprintf(a.out, "published %d, loaded %d, unavailable %d, failed %d\n",
		len(r.Published), len(r.Loaded), len(r.Unavailable),
		len(r.FetchFailed)+len(r.SchemaFailed)+len(r.WriteFailed)+len(r.LoadFailed))
	fmt.Fprintf(a.out, "rows %d, dropped %d, coercion warnings %d\n", r.Rows, r.Dropped, r.Warnings)
}
