// Package cli wires configuration, storage and the pipeline stages into the
// funddata command tree.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/rickgao/fund-data/internal/config"
	"github.com/rickgao/fund-data/internal/logging"
	"github.com/rickgao/fund-data/internal/partition"
	"github.com/rickgao/fund-data/internal/warehouse"
)

// app is the state shared by every subcommand.
type app struct {
	configPath string
	cfg        *config.Config
	logger     *slog.Logger
	out        io.Writer
}

// NewRootCommand builds the funddata command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "funddata",
		Short: "Ingest regulator fund quotes and compute aligned returns",
		Long: `funddata downloads the regulator's monthly daily-quote archives, publishes
them as Parquet partitions, loads them into an analytical warehouse and
computes comparable cumulative returns against a benchmark rate.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to config file (defaults apply when empty)")

	cmd.AddCommand(
		newIngestCmd(a),
		newLoadCmd(a),
		newBenchmarkCmd(a),
		newReturnsCmd(a),
		newServeCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
	)
	return cmd
}

// Execute runs the command tree with ctx.
func Execute(ctx context.Context, args []string) error {
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

func (a *app) setup(cmd *cobra.Command) error {
	a.out = cmd.OutOrStdout()

	cfg, err := config.LoadAndValidate(a.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.cfg = cfg

	logger, err := logging.NewWithWriter(cmd.ErrOrStderr(), cfg.Logging)
	if err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	slog.SetDefault(logger)
	a.logger = logger
	return nil
}

func (a *app) openStore(ctx context.Context) (warehouse.Store, error) {
	a.logger.Debug("opening warehouse", "driver", a.cfg.Warehouse.Driver)
	store, err := warehouse.Open(ctx, a.cfg.Warehouse, a.logger)
	if err != nil {
		return nil, fmt.Errorf("open warehouse: %w", err)
	}
	return store, nil
}

func (a *app) partitions() *partition.Dir {
	return partition.NewDir(a.cfg.Partitions.Dir, a.logger)
}
