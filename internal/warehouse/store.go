package warehouse

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rickgao/fund-data/internal/config"
	"github.com/rickgao/fund-data/internal/model"
	"github.com/rickgao/fund-data/internal/partition"
)

// Reader is the read-only query surface used by the aggregation engine.
// Implementations are safe for concurrent use.
type Reader interface {
	// QueryQuotes streams rows of keys with as_of_date in [start, end] and a
	// positive quote, ordered by entity_key then as_of_date.
	QueryQuotes(ctx context.Context, keys []string, start, end time.Time, fn func(model.QuoteRecord) error) error

	// FirstDates returns the earliest as_of_date of each key present anywhere
	// in the warehouse. Absent keys are missing from the map.
	FirstDates(ctx context.Context, keys []string) (map[string]time.Time, error)

	// BenchmarkRates returns the named rate for months ending in [from, to], ascending.
	BenchmarkRates(ctx context.Context, name string, from, to time.Time) ([]model.BenchmarkRate, error)
}

// Store is a Reader that can also be loaded.
type Store interface {
	Reader

	// ReplaceMonth deletes every quote dated in the partition's month and
	// inserts the partition's rows, recording the load, in one transaction.
	// It returns the number of rows inserted. Failures are *TxError.
	ReplaceMonth(ctx context.Context, part partition.Info, runID string) (int64, error)

	// Truncate empties quotes and partition_loads.
	Truncate(ctx context.Context) error

	// Loads returns the load record of every month.
	Loads(ctx context.Context) (map[model.Month]LoadRecord, error)

	// ReplaceBenchmarks replaces every row of each named rate in one transaction.
	ReplaceBenchmarks(ctx context.Context, rates map[string][]model.BenchmarkRate) error

	Ping(ctx context.Context) error
	Close() error
}

// LoadRecord is a row of partition_loads.
type LoadRecord struct {
	Month      model.Month
	Generation string
	RunID      string
	RowCount   int64
	LoadedAt   time.Time
}

// TxError reports a failed month replacement. The transaction was rolled back
// and the month's previous content is unchanged.
type TxError struct {
	Month model.Month
	Op    string // begin, lock, delete, insert, record, commit
	Err   error
}

func (e *TxError) Error() string {
	return fmt.Sprintf("load %s: %s: %v", e.Month, e.Op, e.Err)
}

func (e *TxError) Unwrap() error { return e.Err }

// Open connects to the configured warehouse and ensures the schema exists.
func Open(ctx context.Context, cfg config.WarehouseConfig, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Driver {
	case config.DriverDuckDB, "":
		return OpenDuckDB(ctx, cfg.Path, logger)
	case config.DriverPostgres:
		return OpenPostgres(ctx, cfg.Postgres, logger)
	default:
		return nil, fmt.Errorf("unknown warehouse driver %q", cfg.Driver)
	}
}
