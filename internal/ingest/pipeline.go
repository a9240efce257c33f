package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/fund-data/internal/loader"
	"github.com/rickgao/fund-data/internal/metrics"
	"github.com/rickgao/fund-data/internal/model"
	"github.com/rickgao/fund-data/internal/normalize"
	"github.com/rickgao/fund-data/internal/partition"
	"github.com/rickgao/fund-data/internal/source"
	"github.com/rickgao/fund-data/internal/warehouse"
)

// ErrNoRows is recorded for an archive that holds no usable row for its month.
// The month is not published so an earlier partition stays visible.
var ErrNoRows = errors.New("archive has no rows for the month")

// Fetcher downloads the raw archive of a month.
type Fetcher interface {
	FetchMonth(ctx context.Context, month model.Month) ([]byte, error)
}

// Pipeline runs ingestion for a set of months.
type Pipeline struct {
	fetcher     Fetcher
	dir         *partition.Dir
	store       warehouse.Store
	concurrency int
	chunkSize   int
	metrics     *metrics.Metrics
	logger      *slog.Logger
	now         func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithWarehouse loads published months into store. Without it the pipeline
// only publishes partitions.
func WithWarehouse(store warehouse.Store) Option {
	return func(p *Pipeline) {
		p.store = store
	}
}

// WithConcurrency bounds how many months are processed at once.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithChunkSize sets the normalizer chunk size.
func WithChunkSize(n int) Option {
	return func(p *Pipeline) {
		p.chunkSize = n
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a Pipeline that fetches with fetcher and publishes into dir.
func New(fetcher Fetcher, dir *partition.Dir, opts ...Option) *Pipeline {
	p := &Pipeline{
		fetcher:     fetcher,
		dir:         dir,
		concurrency: 4,
		chunkSize:   normalize.DefaultChunkSize,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Report is the outcome of one Run.
type Report struct {
	RunID string

	Published    []partition.Info // Ascending by month
	Loaded       []model.Month    // Ascending; may include months published by earlier runs
	Unavailable  []model.Month
	FetchFailed  map[model.Month]error
	SchemaFailed map[model.Month]error
	WriteFailed  map[model.Month]error
	LoadFailed   map[model.Month]error

	Rows       int64 // Rows published
	Dropped    int64 // Source rows without a key or date
	Warnings   int64 // Coercion warnings
	Duplicates int64 // Rows superseded by a later duplicate
	LoadedRows int64
}

func newReport(runID string) *Report {
	return &Report{
		RunID:        runID,
		FetchFailed:  make(map[model.Month]error),
		SchemaFailed: make(map[model.Month]error),
		WriteFailed:  make(map[model.Month]error),
		LoadFailed:   make(map[model.Month]error),
	}
}

// Err joins every per-month failure in ascending month order, or returns nil.
// Unavailable months are not failures.
func (r *Report) Err() error {
	failed := make(map[model.Month]error)
	for _, set := range []map[model.Month]error{r.FetchFailed, r.SchemaFailed, r.WriteFailed, r.LoadFailed} {
		for m, err := range set {
			failed[m] = errors.Join(failed[m], err)
		}
	}
	if len(failed) == 0 {
		return nil
	}

	months := make([]model.Month, 0, len(failed))
	for m := range failed {
		months = append(months, m)
	}
	slices.SortFunc(months, model.Month.Compare)

	errs := make([]error, 0, len(months))
	for _, m := range months {
		errs = append(errs, fmt.Errorf("%s: %w", m, failed[m]))
	}
	return errors.Join(errs...)
}

// Run ingests months. With no months it ingests the pending months after the
// newest published partition. The returned error is non-nil only when ctx ends
// or the partition directory or load records cannot be read; per-month
// failures are in the Report.
func (p *Pipeline) Run(ctx context.Context, months []model.Month) (*Report, error) {
	start := time.Now()
	report := newReport(uuid.NewString())
	logger := p.logger.With("run_id", report.RunID)

	if len(months) == 0 {
		latest, err := p.dir.LatestMonth()
		if err != nil {
			return nil, fmt.Errorf("find latest partition: %w", err)
		}
		months = source.PendingMonths(latest, p.now())
	}
	months = uniqueMonths(months)

	logger.Info("ingestion started",
		"months", len(months),
		"first", months[0],
		"last", months[len(months)-1],
		"concurrency", p.concurrency,
	)

	var (
		mu                                  sync.Mutex
		rows, dropped, warnings, duplicates atomic.Int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for _, m := range months {
		g.Go(func() error {
			res := p.processMonth(gctx, logger, m)
			rows.Add(int64(res.info.Rows))
			dropped.Add(res.stats.Dropped)
			warnings.Add(res.stats.Warnings)
			duplicates.Add(int64(res.info.Duplicates))

			mu.Lock()
			report.record(m, res)
			mu.Unlock()
			p.metrics.MonthOutcome(res.outcome)
			return nil
		})
	}
	_ = g.Wait()

	report.Rows = rows.Load()
	report.Dropped = dropped.Load()
	report.Warnings = warnings.Load()
	report.Duplicates = duplicates.Load()
	slices.SortFunc(report.Published, func(a, b partition.Info) int { return a.Month.Compare(b.Month) })
	slices.SortFunc(report.Unavailable, model.Month.Compare)

	if err := ctx.Err(); err != nil {
		return report, err
	}

	if p.store != nil {
		if err := p.load(ctx, report); err != nil {
			return report, err
		}
	}

	logger.Info("ingestion complete",
		"published", len(report.Published),
		"loaded", len(report.Loaded),
		"unavailable", len(report.Unavailable),
		"fetch_failed", len(report.FetchFailed),
		"schema_failed", len(report.SchemaFailed),
		"write_failed", len(report.WriteFailed),
		"load_failed", len(report.LoadFailed),
		"rows", report.Rows,
		"warnings", report.Warnings,
		"duration", time.Since(start),
	)
	return report, nil
}

// load syncs the warehouse with the partition directory. Months published by
// this run are loaded along with any earlier month whose published generation
// never reached the warehouse.
func (p *Pipeline) load(ctx context.Context, report *Report) error {
	published := make([]model.Month, 0, len(report.Published))
	for _, info := range report.Published {
		published = append(published, info.Month)
	}

	l := loader.New(p.store, p.dir,
		loader.WithRunID(report.RunID),
		loader.WithMetrics(p.metrics),
		loader.WithLogger(p.logger),
	)
	res, err := l.Sync(ctx, published)
	if err != nil {
		return fmt.Errorf("sync warehouse: %w", err)
	}

	for m, ferr := range res.Failed {
		report.LoadFailed[m] = ferr
		p.metrics.MonthOutcome(metrics.OutcomeLoadFailed)
	}
	for range res.Loaded {
		p.metrics.MonthOutcome(metrics.OutcomeLoaded)
	}
	report.Loaded = res.Loaded
	report.LoadedRows = res.Rows
	return ctx.Err()
}

type monthResult struct {
	outcome string
	info    partition.Info
	stats   normalize.Stats
	err     error
}

func (r *Report) record(m model.Month, res monthResult) {
	switch res.outcome {
	case metrics.OutcomePublished:
		r.Published = append(r.Published, res.info)
	case metrics.OutcomeUnavailable:
		r.Unavailable = append(r.Unavailable, m)
	case metrics.OutcomeFetchFailed:
		r.FetchFailed[m] = res.err
	case metrics.OutcomeSchemaFailed:
		r.SchemaFailed[m] = res.err
	case metrics.OutcomeWriteFailed:
		r.WriteFailed[m] = res.err
	}
}

// processMonth fetches, normalizes and publishes one month.
func (p *Pipeline) processMonth(ctx context.Context, logger *slog.Logger, m model.Month) monthResult {
	logger = logger.With("month", m)

	data, err := p.fetcher.FetchMonth(ctx, m)
	if err != nil {
		if errors.Is(err, source.ErrMonthUnavailable) {
			logger.Info("month not yet published by source")
			return monthResult{outcome: metrics.OutcomeUnavailable, err: err}
		}
		logger.Warn("fetch failed", "err", err)
		return monthResult{outcome: metrics.OutcomeFetchFailed, err: err}
	}

	archive, err := source.OpenArchive(data)
	if err != nil {
		logger.Warn("unreadable archive", "err", err)
		return monthResult{outcome: metrics.OutcomeFetchFailed, err: err}
	}
	f, err := archive.Open()
	if err != nil {
		logger.Warn("unreadable archive member", "file", archive.Name, "err", err)
		return monthResult{outcome: metrics.OutcomeFetchFailed, err: err}
	}
	defer f.Close()

	reader, err := normalize.NewReader(f,
		normalize.WithLogger(logger),
		normalize.WithWarningHandler(func(w normalize.CoercionWarning) {
			logger.Debug("coercion warning", "line", w.Line, "column", w.Column, "value", w.Value, "reason", w.Reason)
		}),
	)
	if err != nil {
		var schemaErr *normalize.SchemaError
		if errors.As(err, &schemaErr) {
			logger.Error("schema error, skipping month", "file", archive.Name, "missing", schemaErr.Missing)
			return monthResult{outcome: metrics.OutcomeSchemaFailed, err: err}
		}
		logger.Warn("read failed", "err", err)
		return monthResult{outcome: metrics.OutcomeFetchFailed, err: err}
	}

	b := p.dir.Begin(m)
	err = reader.ReadChunks(ctx, p.chunkSize, func(chunk []model.QuoteRecord) error {
		b.Add(chunk)
		return nil
	})
	stats := reader.Stats()
	if err != nil {
		logger.Error("malformed source file, skipping month", "file", archive.Name, "err", err)
		return monthResult{outcome: metrics.OutcomeSchemaFailed, stats: stats, err: err}
	}
	if b.Len() == 0 {
		logger.Warn("no rows for month, keeping previous partition", "dropped", stats.Dropped)
		return monthResult{outcome: metrics.OutcomeSchemaFailed, stats: stats, err: ErrNoRows}
	}

	info, err := b.Publish(ctx)
	if err != nil {
		logger.Error("publish failed", "err", err)
		return monthResult{outcome: metrics.OutcomeWriteFailed, stats: stats, err: err}
	}
	p.metrics.Normalized(int64(info.Rows), stats.Dropped, stats.Warnings)

	return monthResult{outcome: metrics.OutcomePublished, info: info, stats: stats}
}

// uniqueMonths returns months ascending without duplicates.
func uniqueMonths(months []model.Month) []model.Month {
	out := slices.Clone(months)
	slices.SortFunc(out, model.Month.Compare)
	return slices.Compact(out)
}
