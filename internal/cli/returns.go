package cli

import (
	"encoding/json"
	"fmt"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rickgao/fund-data/internal/model"
	"github.com/rickgao/fund-data/internal/names"
	"github.com/rickgao/fund-data/internal/returns"
	"github.com/rickgao/fund-data/internal/warehouse"
)

func newReturnsCmd(a *app) *cobra.Command {
	var (
		entities []string
		startStr string
		endStr   string
		bench    string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "returns",
		Short: "Compute aligned cumulative returns for a set of entities",
		Example: `  funddata returns --entity 00.017.024/0001-53 --entity 97.929.213/0001-34 \
    --start 2023-01-01 --end 2023-12-31 --benchmark CDI`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			start, err := model.ParseDate(startStr)
			if err != nil {
				return fmt.Errorf("bad --start: %w", err)
			}
			end, err := model.ParseDate(endStr)
			if err != nil {
				return fmt.Errorf("bad --end: %w", err)
			}

			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			engine, err := a.engine(store)
			if err != nil {
				return err
			}
			res, err := engine.Compute(ctx, returns.Request{
				EntityKeys: entities,
				Start:      start,
				End:        end,
				Benchmark:  bench,
			})
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(a.out)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			printResult(a, res)
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&entities, "entity", "e", nil, "entity key (repeatable)")
	cmd.Flags().StringVar(&startStr, "start", "", "window start, YYYY-MM-DD")
	cmd.Flags().StringVar(&endStr, "end", "", "window end, YYYY-MM-DD")
	cmd.Flags().StringVar(&bench, "benchmark", "", "benchmark rate name (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	_ = cmd.MarkFlagRequired("entity")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

// engine builds a returns.Engine from the config. Display names are loaded
// when both registry files are configured.
func (a *app) engine(store warehouse.Reader, extra ...returns.Option) (*returns.Engine, error) {
	opts := []returns.Option{
		returns.WithGapPolicy(returns.GapPolicy(a.cfg.Returns.GapPolicy)),
		returns.WithDefaultBenchmark(a.cfg.Returns.Benchmark),
		returns.WithQueryTimeout(a.cfg.Warehouse.QueryTimeout),
		returns.WithLogger(a.logger),
	}
	if a.cfg.Names.HistoryFile != "" && a.cfg.Names.ExtractFile != "" {
		m, err := names.LoadRegistryFiles(a.cfg.Names.HistoryFile, a.cfg.Names.ExtractFile)
		if err != nil {
			return nil, fmt.Errorf("load names: %w", err)
		}
		a.logger.Debug("loaded entity names", "entities", len(m))
		opts = append(opts, returns.WithNames(m))
	}
	return returns.NewEngine(store, append(opts, extra...)...), nil
}

// printResult writes the final cumulative return of each series, then the
// diagnostics.
func printResult(a *app, res *returns.Result) {
	if !res.Empty() {
		fmt.Fprintf(a.out, "true start %s, %d dates through %s\n\n",
			res.TrueStart.Format(model.DateLayout), len(res.Dates), res.Dates[len(res.Dates)-1].Format(model.DateLayout))

		tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ENTITY\tNAME\tCUMULATIVE")
		series := slices.Clone(res.Series)
		if res.Benchmark != nil {
			series = append(series, *res.Benchmark)
		}
		for _, s := range series {
			last := s.Points[len(s.Points)-1]
			fmt.Fprintf(tw, "%s\t%s\t%.4f%%\n", s.EntityKey, s.Label, last.CumulativeReturn*100)
		}
		tw.Flush()
	}

	for _, d := range res.Diagnostics {
		fmt.Fprintf(a.out, "%s: %s\n", d.Kind, d.Message)
	}
}
