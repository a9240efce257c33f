package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/rickgao/fund-data/internal/metrics"
	"github.com/rickgao/fund-data/internal/model"
	"github.com/rickgao/fund-data/internal/partition"
	"github.com/rickgao/fund-data/internal/warehouse"
)

// Loader replaces warehouse months with their published partitions.
type Loader struct {
	store   warehouse.Store
	dir     *partition.Dir
	runID   string
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithRunID tags loads with the ingestion run that triggered them.
func WithRunID(id string) Option {
	return func(l *Loader) {
		l.runID = id
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Loader) {
		l.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New creates a Loader reading partitions from dir into store.
func New(store warehouse.Store, dir *partition.Dir, opts ...Option) *Loader {
	l := &Loader{
		store:  store,
		dir:    dir,
		runID:  "manual",
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Report summarizes a Sync or Rebuild.
type Report struct {
	Loaded  []model.Month
	Skipped []model.Month // Requested months with no published partition
	Failed  map[model.Month]error
	Rows    int64
}

// Err joins every per-month failure, or returns nil.
func (r *Report) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	months := make([]model.Month, 0, len(r.Failed))
	for m := range r.Failed {
		months = append(months, m)
	}
	slices.SortFunc(months, model.Month.Compare)

	errs := make([]error, 0, len(months))
	for _, m := range months {
		errs = append(errs, r.Failed[m])
	}
	return errors.Join(errs...)
}

// LoadMonth replaces the partition's month in the warehouse.
func (l *Loader) LoadMonth(ctx context.Context, info partition.Info) (int64, error) {
	start := time.Now()
	n, err := l.store.ReplaceMonth(ctx, info, l.runID)
	l.metrics.ObserveLoad(time.Since(start), err)
	if err != nil {
		l.logger.Error("month load failed", "month", info.Month, "run_id", l.runID, "err", err)
		return 0, err
	}

	l.logger.Info("loaded month",
		"month", info.Month,
		"generation", info.Generation,
		"rows", n,
		"run_id", l.runID,
		"duration", time.Since(start),
	)
	return n, nil
}

// Sync loads each requested month that has a published partition, plus every
// month whose published generation differs from the one last loaded.
// Months are loaded in ascending order; a failing month does not stop the rest.
func (l *Loader) Sync(ctx context.Context, months []model.Month) (*Report, error) {
	published, err := l.dir.List()
	if err != nil {
		return nil, fmt.Errorf("list partitions: %w", err)
	}
	loads, err := l.store.Loads(ctx)
	if err != nil {
		return nil, fmt.Errorf("read load records: %w", err)
	}

	byMonth := make(map[model.Month]partition.Info, len(published))
	for _, p := range published {
		byMonth[p.Month] = p
	}

	report := &Report{Failed: make(map[model.Month]error)}
	want := make(map[model.Month]bool)
	for _, m := range months {
		if _, ok := byMonth[m]; !ok {
			report.Skipped = append(report.Skipped, m)
			continue
		}
		want[m] = true
	}
	for _, p := range published {
		if rec, ok := loads[p.Month]; !ok || rec.Generation != p.Generation {
			if !want[p.Month] {
				l.logger.Debug("stale month", "month", p.Month, "published", p.Generation, "loaded", rec.Generation)
			}
			want[p.Month] = true
		}
	}

	queue := make([]partition.Info, 0, len(want))
	for m := range want {
		queue = append(queue, byMonth[m])
	}
	slices.SortFunc(queue, func(a, b partition.Info) int { return a.Month.Compare(b.Month) })
	slices.SortFunc(report.Skipped, model.Month.Compare)

	l.loadAll(ctx, queue, report)
	return report, nil
}

// Rebuild empties the warehouse and loads every published partition.
func (l *Loader) Rebuild(ctx context.Context) (*Report, error) {
	published, err := l.dir.List()
	if err != nil {
		return nil, fmt.Errorf("list partitions: %w", err)
	}

	if err := l.store.Truncate(ctx); err != nil {
		return nil, fmt.Errorf("truncate warehouse: %w", err)
	}
	l.logger.Info("rebuilding warehouse", "partitions", len(published), "run_id", l.runID)

	report := &Report{Failed: make(map[model.Month]error)}
	l.loadAll(ctx, published, report)
	return report, nil
}

func (l *Loader) loadAll(ctx context.Context, queue []partition.Info, report *Report) {
	for _, p := range queue {
		if err := ctx.Err(); err != nil {
			report.Failed[p.Month] = err
			continue
		}
		n, err := l.LoadMonth(ctx, p)
		if err != nil {
			report.Failed[p.Month] = err
			continue
		}
		report.Loaded = append(report.Loaded, p.Month)
		report.Rows += n
	}
}
