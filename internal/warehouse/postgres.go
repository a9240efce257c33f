package warehouse

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/fund-data/internal/config"
	"github.com/rickgao/fund-data/internal/model"
	"github.com/rickgao/fund-data/internal/partition"
)

// PostgresStore keeps the warehouse in a shared PostgreSQL database.
// Loads of the same month from different processes serialize on an advisory
// lock held for the duration of the transaction.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// OpenPostgres connects, verifies the connection and ensures the schema exists.
func OpenPostgres(ctx context.Context, cfg config.DBConfig, logger *slog.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}

	for _, stmt := range postgresSchema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}

	logger.Debug("opened postgres warehouse", "host", cfg.Host, "database", cfg.Name)
	return &PostgresStore{pool: pool, logger: logger}, nil
}

// Connect creates a connection pool.
func Connect(ctx context.Context, cfg config.DBConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(BuildConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// Ping verifies the connection is healthy.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// advisoryLockNamespace keeps month locks apart from other users of
// pg_advisory_xact_lock on the same database.
const advisoryLockNamespace int64 = 0x46554e44 << 32 // "FUND"

// monthLockKey returns the advisory lock key of a month.
func monthLockKey(m model.Month) int64 {
	return advisoryLockNamespace | int64(m.Year*100+int(m.Month))
}

var copyColumns = []string{
	"entity_key", "as_of_date", "quote_value", "net_assets",
	"net_subscriptions", "net_redemptions", "holder_count",
}

// ReplaceMonth implements Store.
func (s *PostgresStore) ReplaceMonth(ctx context.Context, part partition.Info, runID string) (int64, error) {
	month := part.Month
	txErr := func(op string, err error) error {
		return &TxError{Month: month, Op: op, Err: err}
	}

	rows, err := partition.ReadFile(part.Path)
	if err != nil {
		return 0, txErr("insert", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, txErr("begin", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, monthLockKey(month)); err != nil {
		return 0, txErr("lock", err)
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM quotes WHERE as_of_date BETWEEN $1 AND $2`,
		month.Start(), month.End(),
	); err != nil {
		return 0, txErr("delete", err)
	}

	inserted, err := tx.CopyFrom(ctx, pgx.Identifier{"quotes"}, copyColumns,
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			r := rows[i]
			return []any{r.EntityKey, r.AsOf, r.QuoteValue, r.NetAssets,
				r.NetSubscriptions, r.NetRedemptions, r.HolderCount}, nil
		}),
	)
	if err != nil {
		return 0, txErr("insert", err)
	}

	if _, err := tx.Exec(ctx, upsertLoadSQL,
		month.String(), part.Generation, runID, inserted, time.Now().UTC(),
	); err != nil {
		return 0, txErr("record", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, txErr("commit", err)
	}
	return inserted, nil
}

// Truncate implements Store.
func (s *PostgresStore) Truncate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `TRUNCATE quotes, partition_loads`); err != nil {
		return fmt.Errorf("truncate: %w", err)
	}
	return nil
}

// Loads implements Store.
func (s *PostgresStore) Loads(ctx context.Context) (map[model.Month]LoadRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT month, generation, run_id, row_count, loaded_at FROM partition_loads`)
	if err != nil {
		return nil, fmt.Errorf("query partition_loads: %w", err)
	}
	defer rows.Close()

	out := make(map[model.Month]LoadRecord)
	for rows.Next() {
		var (
			rec   LoadRecord
			month string
		)
		if err := rows.Scan(&month, &rec.Generation, &rec.RunID, &rec.RowCount, &rec.LoadedAt); err != nil {
			return nil, fmt.Errorf("scan partition_loads: %w", err)
		}
		if rec.Month, err = model.ParseMonth(month); err != nil {
			return nil, err
		}
		out[rec.Month] = rec
	}
	return out, rows.Err()
}

// ReplaceBenchmarks implements Store.
func (s *PostgresStore) ReplaceBenchmarks(ctx context.Context, rates map[string][]model.BenchmarkRate) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for name, series := range rates {
		if _, err := tx.Exec(ctx, `DELETE FROM benchmark_rates WHERE rate_name = $1`, name); err != nil {
			return fmt.Errorf("delete %s: %w", name, err)
		}
		batch := &pgx.Batch{}
		for _, r := range series {
			batch.Queue(`INSERT INTO benchmark_rates (month_end, rate_name, rate) VALUES ($1, $2, $3)`,
				r.MonthEnd, name, r.Rate)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert %s: %w", name, err)
		}
	}
	return tx.Commit(ctx)
}

// QueryQuotes implements Reader.
func (s *PostgresStore) QueryQuotes(ctx context.Context, keys []string, start, end time.Time, fn func(model.QuoteRecord) error) error {
	if len(keys) == 0 {
		return nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+quoteColumns+` FROM quotes
		WHERE as_of_date BETWEEN $1 AND $2
		  AND quote_value > 0
		  AND entity_key = ANY($3)
		ORDER BY entity_key COLLATE "C", as_of_date`, start, end, keys)
	if err != nil {
		return fmt.Errorf("query quotes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r model.QuoteRecord
		if err := rows.Scan(&r.EntityKey, &r.AsOf, &r.QuoteValue, &r.NetAssets,
			&r.NetSubscriptions, &r.NetRedemptions, &r.HolderCount); err != nil {
			return fmt.Errorf("scan quote: %w", err)
		}
		r.AsOf = model.Date(r.AsOf)
		if err := fn(r); err != nil {
			return err
		}
	}
	return rows.Err()
}

// FirstDates implements Reader.
func (s *PostgresStore) FirstDates(ctx context.Context, keys []string) (map[string]time.Time, error) {
	out := make(map[string]time.Time, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT entity_key, MIN(as_of_date) FROM quotes
		WHERE entity_key = ANY($1)
		GROUP BY entity_key`, keys)
	if err != nil {
		return nil, fmt.Errorf("query first dates: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key   string
			first time.Time
		)
		if err := rows.Scan(&key, &first); err != nil {
			return nil, fmt.Errorf("scan first date: %w", err)
		}
		out[key] = model.Date(first)
	}
	return out, rows.Err()
}

// BenchmarkRates implements Reader.
func (s *PostgresStore) BenchmarkRates(ctx context.Context, name string, from, to time.Time) ([]model.BenchmarkRate, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT month_end, rate FROM benchmark_rates
		WHERE rate_name = $1 AND month_end BETWEEN $2 AND $3
		ORDER BY month_end`, name, from, to)
	if err != nil {
		return nil, fmt.Errorf("query benchmark rates: %w", err)
	}
	defer rows.Close()

	var out []model.BenchmarkRate
	for rows.Next() {
		r := model.BenchmarkRate{Name: name}
		if err := rows.Scan(&r.MonthEnd, &r.Rate); err != nil {
			return nil, fmt.Errorf("scan benchmark rate: %w", err)
		}
		r.MonthEnd = model.Date(r.MonthEnd)
		out = append(out, r)
	}
	return out, rows.Err()
}

var _ Store = (*PostgresStore)(nil)
