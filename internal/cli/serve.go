package cli

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/rickgao/fund-data/internal/metrics"
	"github.com/rickgao/fund-data/internal/returns"
	"github.com/rickgao/fund-data/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the returns API, health and metrics over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if port > 0 {
				a.cfg.Server.Port = port
			}

			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			m := metrics.New(reg)

			engine, err := a.engine(store, returns.WithMetrics(m))
			if err != nil {
				return err
			}

			srv := server.New(engine, store,
				server.WithPartitions(a.partitions()),
				server.WithGatherer(reg),
				server.WithMetricsPath(a.cfg.Metrics.Path),
				server.WithLogger(a.logger),
			)
			return srv.ListenAndServe(ctx, a.cfg.Server)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (default from config)")
	return cmd
}
