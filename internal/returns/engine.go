package returns

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rickgao/fund-data/internal/metrics"
	"github.com/rickgao/fund-data/internal/model"
	"github.com/rickgao/fund-data/internal/names"
	"github.com/rickgao/fund-data/internal/warehouse"
)

// Result is the outcome of one aggregation. All series share Dates.
type Result struct {
	TrueStart   time.Time      `json:"true_start,omitzero"`
	Dates       []time.Time    `json:"dates"`
	Series      []ReturnSeries `json:"series"`
	Benchmark   *ReturnSeries  `json:"benchmark,omitempty"`
	Proxy       string         `json:"proxy,omitempty"` // Strategy that produced Benchmark
	Diagnostics []Diagnostic   `json:"diagnostics"`
}

// Empty reports whether the request produced no series.
func (r *Result) Empty() bool {
	return r.Has(KindEmptyWindow)
}

// Has reports whether any diagnostic has kind k.
func (r *Result) Has(k Kind) bool {
	for _, d := range r.Diagnostics {
		if d.Kind == k {
			return true
		}
	}
	return false
}

// Engine computes aligned return series from a warehouse. It holds no
// per-request state and is safe for concurrent use.
type Engine struct {
	store        warehouse.Reader
	names        names.Resolver
	proxy        ProxyStrategy
	gapPolicy    GapPolicy
	benchmark    string
	queryTimeout time.Duration
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithNames sets the resolver used for series labels.
func WithNames(r names.Resolver) Option {
	return func(e *Engine) {
		e.names = r
	}
}

// WithProxy replaces the benchmark proxy strategy.
func WithProxy(p ProxyStrategy) Option {
	return func(e *Engine) {
		e.proxy = p
	}
}

// WithGapPolicy sets how months without a benchmark rate are filled.
func WithGapPolicy(p GapPolicy) Option {
	return func(e *Engine) {
		e.gapPolicy = p
	}
}

// WithDefaultBenchmark sets the rate used when a request names none.
func WithDefaultBenchmark(name string) Option {
	return func(e *Engine) {
		e.benchmark = name
	}
}

// WithQueryTimeout bounds the store queries of one request. Zero disables it.
func WithQueryTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.queryTimeout = d
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine creates an Engine reading from store.
func NewEngine(store warehouse.Reader, opts ...Option) *Engine {
	e := &Engine{
		store:        store,
		proxy:        MonthlyGeometric{},
		gapPolicy:    GapCarryForward,
		benchmark:    "CDI",
		queryTimeout: 30 * time.Second,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Compute runs one aggregation. The error is non-nil only for an invalid
// request (*ValidationError) or a store failure; every other condition is a
// Diagnostic on the Result.
func (e *Engine) Compute(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	res, err := e.compute(ctx, req)

	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
	case res.Empty():
		outcome = string(KindEmptyWindow)
	}
	e.metrics.ObserveAggregation(time.Since(start), outcome)

	if err != nil {
		return nil, err
	}
	e.logger.Debug("computed returns",
		"entities", len(res.Series),
		"dates", len(res.Dates),
		"diagnostics", len(res.Diagnostics),
		"proxy", res.Proxy,
		"duration", time.Since(start),
	)
	return res, nil
}

func (e *Engine) compute(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	start, end := model.Date(req.Start), model.Date(req.End)
	benchmark := req.Benchmark
	if benchmark == "" {
		benchmark = e.benchmark
	}

	res := &Result{Dates: []time.Time{}, Series: []ReturnSeries{}, Diagnostics: []Diagnostic{}}

	rows, known, err := e.load(ctx, req.keys(), start, end, res)
	if err != nil {
		return nil, err
	}
	if len(known) == 0 {
		res.Diagnostics = append(res.Diagnostics, emptyWindow(nil, "none of the requested entities has data"))
		return res, nil
	}

	// true_start is the latest of the per-entity first dates in the window.
	first := make(map[string]time.Time, len(known))
	for _, r := range rows {
		if _, ok := first[r.EntityKey]; !ok {
			first[r.EntityKey] = r.AsOf
		}
	}
	var (
		trueStart time.Time
		noRows    []string
	)
	for _, k := range known {
		d, ok := first[k]
		if !ok {
			noRows = append(noRows, k)
			continue
		}
		if d.After(trueStart) {
			trueStart = d
		}
	}
	if len(noRows) > 0 {
		res.Diagnostics = append(res.Diagnostics, emptyWindow(noRows,
			fmt.Sprintf("no quotes between %s and %s", start.Format(model.DateLayout), end.Format(model.DateLayout))))
		return res, nil
	}
	if trueStart.After(end) {
		res.Diagnostics = append(res.Diagnostics, emptyWindow(nil, "entities have no common start within the window"))
		return res, nil
	}

	m := Pivot(rows, known, trueStart)
	if m.Len() == 0 {
		res.Diagnostics = append(res.Diagnostics, emptyWindow(nil, "entities share no quote date in the window"))
		return res, nil
	}

	res.TrueStart = trueStart
	res.Dates = m.Dates
	for i, k := range known {
		res.Series = append(res.Series, ReturnSeries{
			EntityKey: k,
			Label:     names.Label(e.names, k),
			Points:    compound(m.Dates, periodReturns(m.Column(i))),
		})
	}

	bench, err := e.benchmarkSeries(ctx, benchmark, m.Dates, trueStart, end, res)
	if err != nil {
		return nil, err
	}
	res.Benchmark = bench
	res.Proxy = e.proxy.Name()
	return res, nil
}

// load queries the window's rows for the keys present in the warehouse.
// Keys absent from the warehouse are reported on res and not returned.
func (e *Engine) load(ctx context.Context, keys []string, start, end time.Time, res *Result) ([]model.QuoteRecord, []string, error) {
	qctx, cancel := e.queryContext(ctx)
	defer cancel()

	firstDates, err := e.store.FirstDates(qctx, keys)
	if err != nil {
		return nil, nil, fmt.Errorf("query entities: %w", err)
	}

	var known, unknown []string
	for _, k := range keys {
		if _, ok := firstDates[k]; ok {
			known = append(known, k)
		} else {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		res.Diagnostics = append(res.Diagnostics, unknownEntity(unknown))
	}
	if len(known) == 0 {
		return nil, nil, nil
	}

	var (
		rows []model.QuoteRecord
		prev model.QuoteRecord
	)
	err = e.store.QueryQuotes(qctx, known, start, end, func(r model.QuoteRecord) error {
		if len(rows) > 0 && !ordered(prev, r) {
			return fmt.Errorf("store returned %s %s after %s %s",
				r.EntityKey, r.AsOf.Format(model.DateLayout), prev.EntityKey, prev.AsOf.Format(model.DateLayout))
		}
		rows = append(rows, r)
		prev = r
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("query quotes: %w", err)
	}
	return rows, known, nil
}

// ordered reports whether b strictly follows a in (entity_key, as_of_date) order.
func ordered(a, b model.QuoteRecord) bool {
	if a.EntityKey != b.EntityKey {
		return a.EntityKey < b.EntityKey
	}
	return b.AsOf.After(a.AsOf)
}

// benchmarkHistoryStart precedes every published rate; earlier months are
// needed to carry a rate forward into the window.
var benchmarkHistoryStart = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)

// benchmarkSeries derives the benchmark series on the retained dates.
func (e *Engine) benchmarkSeries(ctx context.Context, name string, dates []time.Time, trueStart, end time.Time, res *Result) (*ReturnSeries, error) {
	qctx, cancel := e.queryContext(ctx)
	defer cancel()

	lastMonth := model.MonthOf(end)
	published, err := e.store.BenchmarkRates(qctx, name, benchmarkHistoryStart, lastMonth.End())
	if err != nil {
		return nil, fmt.Errorf("query benchmark %s: %w", name, err)
	}

	withDates := make(map[model.Month]bool)
	for _, d := range dates {
		withDates[model.MonthOf(d)] = true
	}

	var covered []model.Month
	for m := model.MonthOf(trueStart); !lastMonth.Before(m); m = m.Next() {
		if !withDates[m] {
			res.Diagnostics = append(res.Diagnostics, gapNoDates(m))
			continue
		}
		covered = append(covered, m)
	}

	monthly, missing := resolveRates(covered, published, e.gapPolicy)
	for _, m := range covered {
		if from, ok := missing[m]; ok {
			res.Diagnostics = append(res.Diagnostics, gapMissingRate(m, from))
		}
	}

	daily := e.proxy.DailyRates(dates, monthly)
	daily[0] = 0

	return &ReturnSeries{
		EntityKey: name,
		Label:     name,
		Points:    compound(dates, daily),
	}, nil
}

func (e *Engine) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.queryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.queryTimeout)
}
