package partition

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/oklog/ulid/v2"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/rickgao/fund-data/internal/model"
)

// Builder accumulates one month's rows before publishing them.
type Builder struct {
	dir     *Dir
	month   model.Month
	rows    []model.QuoteRecord
	outside int
}

// Add appends rows. Rows dated outside the builder's month are discarded so the
// month-scoped warehouse replace stays exact.
func (b *Builder) Add(chunk []model.QuoteRecord) {
	for _, r := range chunk {
		if !b.month.Contains(r.AsOf) {
			b.outside++
			continue
		}
		b.rows = append(b.rows, r)
	}
}

// Len returns the number of rows added so far.
func (b *Builder) Len() int {
	return len(b.rows)
}

// Publish sorts, deduplicates and atomically writes the partition.
func (b *Builder) Publish(ctx context.Context) (Info, error) {
	rows, dups := dedupe(b.rows)
	if b.outside > 0 {
		b.dir.logger.Warn("discarded rows outside partition month",
			"month", b.month,
			"rows", b.outside,
		)
	}

	if err := os.MkdirAll(b.dir.path, 0o755); err != nil {
		return Info{}, &WriteError{Month: b.month, Op: "create", Err: err}
	}

	gen := ulid.Make().String()
	final := filepath.Join(b.dir.path, FileName(b.month, gen))

	tmp, err := os.CreateTemp(b.dir.path, "."+filePrefix+b.month.String()+"_*"+tempSuffix)
	if err != nil {
		return Info{}, &WriteError{Month: b.month, Op: "create", Err: err}
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if err := writeRows(ctx, tmp, rows); err != nil {
		return Info{}, &WriteError{Month: b.month, Op: "write", Err: err}
	}
	if err := tmp.Sync(); err != nil {
		return Info{}, &WriteError{Month: b.month, Op: "sync", Err: err}
	}
	if err := tmp.Close(); err != nil {
		return Info{}, &WriteError{Month: b.month, Op: "sync", Err: err}
	}
	if err := ctx.Err(); err != nil {
		return Info{}, &WriteError{Month: b.month, Op: "rename", Err: err}
	}

	// Superseded generations are collected before the rename so a concurrent
	// reader never sees the month without a visible partition.
	previous, err := b.dir.scan()
	if err != nil {
		b.dir.logger.Warn("failed to list superseded partitions", "month", b.month, "err", err)
	}
	if err := os.Rename(tmpPath, final); err != nil {
		return Info{}, &WriteError{Month: b.month, Op: "rename", Err: err}
	}
	committed = true
	syncDir(b.dir.path)

	var stale []Info
	for _, g := range previous[b.month] {
		if g.Generation < gen {
			stale = append(stale, g)
		}
	}
	if _, err := b.dir.removeGenerations(stale); err != nil {
		b.dir.logger.Warn("failed to remove superseded partition", "month", b.month, "err", err)
	}

	info := Info{
		Month:      b.month,
		Generation: gen,
		Path:       final,
		Rows:       len(rows),
		Duplicates: dups,
	}
	b.dir.logger.Info("published partition",
		"month", b.month,
		"generation", gen,
		"rows", info.Rows,
		"duplicates", dups,
	)
	return info, nil
}

// dedupe sorts by (AsOf, EntityKey) and keeps the last occurrence of each key.
func dedupe(rows []model.QuoteRecord) ([]model.QuoteRecord, int) {
	slices.SortStableFunc(rows, func(a, b model.QuoteRecord) int {
		if c := a.AsOf.Compare(b.AsOf); c != 0 {
			return c
		}
		return cmp.Compare(a.EntityKey, b.EntityKey)
	})

	out := rows[:0]
	dups := 0
	for i, r := range rows {
		if i+1 < len(rows) && rows[i+1].EntityKey == r.EntityKey && rows[i+1].AsOf.Equal(r.AsOf) {
			dups++
			continue
		}
		out = append(out, r)
	}
	return out, dups
}

const ctxCheckEvery = 50_000

func writeRows(ctx context.Context, f *os.File, rows []model.QuoteRecord) error {
	pw, err := writer.NewParquetWriterFromWriter(f, new(quoteRow), 4)
	if err != nil {
		return fmt.Errorf("create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for i, r := range rows {
		if i%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				pw.WriteStop()
				return err
			}
		}
		if err := pw.Write(toRow(r)); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("finish parquet: %w", err)
	}
	return nil
}

// syncDir makes the rename durable. Failures are ignored on platforms that
// cannot fsync directories.
func syncDir(path string) {
	d, err := os.Open(path)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
