package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/rickgao/fund-data/internal/model"
	"github.com/rickgao/fund-data/internal/partition"
)

// DuckDBStore keeps the warehouse in an embedded DuckDB database.
// DuckDB allows a single writer, so writes are serialized in-process.
type DuckDBStore struct {
	db     *sql.DB
	logger *slog.Logger

	writeMu sync.Mutex
}

// OpenDuckDB opens (or creates) the database at path. An empty path opens an
// in-memory database.
func OpenDuckDB(ctx context.Context, path string, logger *slog.Logger) (*DuckDBStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create warehouse dir: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}

	for _, stmt := range duckDBSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}

	logger.Debug("opened duckdb warehouse", "path", path)
	return &DuckDBStore{db: db, logger: logger}, nil
}

// Ping verifies the database is reachable.
func (s *DuckDBStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *DuckDBStore) Close() error {
	return s.db.Close()
}

// ReplaceMonth implements Store.
func (s *DuckDBStore) ReplaceMonth(ctx context.Context, part partition.Info, runID string) (int64, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	month := part.Month
	txErr := func(op string, err error) error {
		return &TxError{Month: month, Op: op, Err: err}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, txErr("begin", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM quotes WHERE as_of_date BETWEEN CAST($1 AS DATE) AND CAST($2 AS DATE)`,
		month.Start(), month.End(),
	); err != nil {
		return 0, txErr("delete", err)
	}

	res, err := tx.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO quotes (%s) SELECT %s FROM read_parquet(%s)`,
		quoteColumns, quoteColumns, quoteLiteral(part.Path),
	))
	if err != nil {
		return 0, txErr("insert", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return 0, txErr("insert", err)
	}

	if _, err := tx.ExecContext(ctx, upsertLoadSQL,
		month.String(), part.Generation, runID, inserted, time.Now().UTC(),
	); err != nil {
		return 0, txErr("record", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, txErr("commit", err)
	}
	return inserted, nil
}

// quoteLiteral renders s as a SQL string literal. read_parquet takes its path
// at bind time, so it cannot be a statement parameter.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Truncate implements Store.
func (s *DuckDBStore) Truncate(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"quotes", "partition_loads"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("truncate %s: %w", table, err)
		}
	}
	return tx.Commit()
}

// Loads implements Store.
func (s *DuckDBStore) Loads(ctx context.Context) (map[model.Month]LoadRecord, error) {
	rows, err := s.db.QueryContext(ctx,
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
func (s *DuckDBStore) ReplaceBenchmarks(ctx context.Context, rates map[string][]model.BenchmarkRate) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO benchmark_rates (month_end, rate_name, rate) VALUES (CAST($1 AS DATE), $2, $3)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for name, series := range rates {
		if _, err := tx.ExecContext(ctx, `DELETE FROM benchmark_rates WHERE rate_name = $1`, name); err != nil {
			return fmt.Errorf("delete %s: %w", name, err)
		}
		for _, r := range series {
			if _, err := stmt.ExecContext(ctx, r.MonthEnd, name, r.Rate); err != nil {
				return fmt.Errorf("insert %s %s: %w", name, r.MonthEnd.Format(model.DateLayout), err)
			}
		}
	}
	return tx.Commit()
}

// QueryQuotes implements Reader.
func (s *DuckDBStore) QueryQuotes(ctx context.Context, keys []string, start, end time.Time, fn func(model.QuoteRecord) error) error {
	if len(keys) == 0 {
		return nil
	}

	in, args := inList(keys, 3)
	query := fmt.Sprintf(`
		SELECT %s FROM quotes
		WHERE as_of_date BETWEEN CAST($1 AS DATE) AND CAST($2 AS DATE)
		  AND quote_value > 0
		  AND entity_key IN (%s)
		ORDER BY entity_key, as_of_date`, quoteColumns, in)

	rows, err := s.db.QueryContext(ctx, query, append([]any{start, end}, args...)...)
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
func (s *DuckDBStore) FirstDates(ctx context.Context, keys []string) (map[string]time.Time, error) {
	out := make(map[string]time.Time, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	in, args := inList(keys, 1)
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT entity_key, MIN(as_of_date) FROM quotes
		WHERE entity_key IN (%s)
		GROUP BY entity_key`, in), args...)
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
func (s *DuckDBStore) BenchmarkRates(ctx context.Context, name string, from, to time.Time) ([]model.BenchmarkRate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT month_end, rate FROM benchmark_rates
		WHERE rate_name = $1
		  AND month_end BETWEEN CAST($2 AS DATE) AND CAST($3 AS DATE)
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

// inList renders numbered placeholders starting at $first.
func inList(values []string, first int) (string, []any) {
	var b strings.Builder
	args := make([]any, len(values))
	for i, v := range values {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "$%d", first+i)
		args[i] = v
	}
	return b.String(), args
}

var _ Store = (*DuckDBStore)(nil)
