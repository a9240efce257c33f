package returns

import (
	"cmp"
	"context"
	"errors"
	"math"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/fund-data/internal/model"
	"github.com/rickgao/fund-data/internal/names"
)

// memStore is an in-memory warehouse.Reader.
type memStore struct {
	quotes  []model.QuoteRecord
	rates   []model.BenchmarkRate
	err     error
	reverse bool // return rows in the wrong order
	block   bool // QueryQuotes waits for ctx to end
}

func (s *memStore) QueryQuotes(ctx context.Context, keys []string, start, end time.Time, fn func(model.QuoteRecord) error) error {
	if s.err != nil {
		return s.err
	}
	if s.block {
		<-ctx.Done()
		return ctx.Err()
	}
	var out []model.QuoteRecord
	for _, r := range s.quotes {
		if !slices.Contains(keys, r.EntityKey) || r.AsOf.Before(start) || r.AsOf.After(end) {
			continue
		}
		if _, ok := r.Quote(); !ok {
			continue
		}
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b model.QuoteRecord) int {
		if c := cmp.Compare(a.EntityKey, b.EntityKey); c != 0 {
			return c
		}
		return a.AsOf.Compare(b.AsOf)
	})
	if s.reverse {
		slices.Reverse(out)
	}
	for _, r := range out {
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}

func (s *memStore) FirstDates(_ context.Context, keys []string) (map[string]time.Time, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make(map[string]time.Time)
	for _, r := range s.quotes {
		if !slices.Contains(keys, r.EntityKey) {
			continue
		}
		if cur, ok := out[r.EntityKey]; !ok || r.AsOf.Before(cur) {
			out[r.EntityKey] = r.AsOf
		}
	}
	return out, nil
}

func (s *memStore) BenchmarkRates(_ context.Context, name string, from, to time.Time) ([]model.BenchmarkRate, error) {
	var out []model.BenchmarkRate
	for _, r := range s.rates {
		if r.Name == name && !r.MonthEnd.Before(from) && !r.MonthEnd.After(to) {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b model.BenchmarkRate) int { return a.MonthEnd.Compare(b.MonthEnd) })
	return out, nil
}

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

// daily adds one quote per calendar day in [from, to], growing by step each day.
func (s *memStore) daily(key string, from, to time.Time, q0, step float64) {
	q := q0
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		v := q
		s.quotes = append(s.quotes, model.QuoteRecord{EntityKey: key, AsOf: d, QuoteValue: &v})
		q *= 1 + step
	}
}

func (s *memStore) quote(key string, d time.Time, v float64) {
	s.quotes = append(s.quotes, model.QuoteRecord{EntityKey: key, AsOf: d, QuoteValue: &v})
}

func (s *memStore) rate(name string, m model.Month, r float64) {
	s.rates = append(s.rates, model.BenchmarkRate{MonthEnd: m.End(), Name: name, Rate: r})
}

func month(y int, m time.Month) model.Month { return model.Month{Year: y, Month: m} }

func TestTrueStartAlignment(t *testing.T) {
	store := &memStore{}
	store.daily("A", day(2020, 1, 1), day(2020, 6, 30), 10, 0.001)
	store.daily("B", day(2020, 3, 1), day(2020, 6, 30), 20, 0.002)
	for m := month(2020, 1); !month(2020, 6).Before(m); m = m.Next() {
		store.rate("CDI", m, 0.003)
	}

	e := NewEngine(store)
	res, err := e.Compute(context.Background(), Request{
		EntityKeys: []string{"A", "B"},
		Start:      day(2020, 1, 1),
		End:        day(2020, 6, 30),
	})
	require.NoError(t, err)
	assert.Empty(t, res.Diagnostics)

	assert.Equal(t, day(2020, 3, 1), res.TrueStart)
	assert.Equal(t, day(2020, 3, 1), res.Dates[0])
	assert.Equal(t, day(2020, 6, 30), res.Dates[len(res.Dates)-1])
	require.Len(t, res.Series, 2)
	require.NotNil(t, res.Benchmark)

	for _, s := range append(res.Series, *res.Benchmark) {
		require.Len(t, s.Points, len(res.Dates), s.EntityKey)
		assert.Equal(t, 0.0, s.Points[0].CumulativeReturn, s.EntityKey)
		assert.Equal(t, 0.0, s.Points[0].PeriodReturn, s.EntityKey)
		for i, p := range s.Points {
			assert.Equal(t, res.Dates[i], p.Date)
			assert.False(t, p.Date.Before(res.TrueStart))
		}
	}

	// B grows 0.2% per day, so its period returns are constant.
	b := res.Series[1]
	assert.InDelta(t, 0.002, b.Points[1].PeriodReturn, 1e-12)
	assert.InDelta(t, math.Pow(1.002, float64(len(res.Dates)-1))-1, b.Points[len(b.Points)-1].CumulativeReturn, 1e-9)

	// Excluding the later-starting entity moves true_start earlier.
	res, err = e.Compute(context.Background(), Request{
		EntityKeys: []string{"A"},
		Start:      day(2020, 1, 1),
		End:        day(2020, 6, 30),
	})
	require.NoError(t, err)
	assert.Equal(t, day(2020, 1, 1), res.TrueStart)
}

func TestInnerJoinOnDates(t *testing.T) {
	store := &memStore{}
	store.quote("A", day(2020, 1, 2), 1.0)
	store.quote("A", day(2020, 1, 3), 1.1)
	store.quote("A", day(2020, 1, 6), 1.21)
	store.quote("B", day(2020, 1, 2), 5.0)
	// B has no quote on 01-03
	store.quote("B", day(2020, 1, 6), 5.5)
	store.rate("CDI", month(2020, 1), 0.004)

	res, err := NewEngine(store).Compute(context.Background(), Request{
		EntityKeys: []string{"A", "B"},
		Start:      day(2020, 1, 1),
		End:        day(2020, 1, 31),
	})
	require.NoError(t, err)

	assert.Equal(t, []time.Time{day(2020, 1, 2), day(2020, 1, 6)}, res.Dates)
	a := res.Series[0]
	assert.InDelta(t, 0.21, a.Points[1].PeriodReturn, 1e-12, "return spans the dropped date")
	assert.InDelta(t, 0.1, res.Series[1].Points[1].PeriodReturn, 1e-12)

	// Two dates in January share the month's rate.
	assert.Equal(t, 0.0, res.Benchmark.Points[0].PeriodReturn)
	assert.InDelta(t, math.Sqrt(1.004)-1, res.Benchmark.Points[1].PeriodReturn, 1e-15)
}

func TestBenchmarkMonthlyGeometric(t *testing.T) {
	store := &memStore{}
	store.quote("A", day(2020, 2, 28), 1.0)
	march := 0
	for d := day(2020, 3, 1); d.Month() == time.March; d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		if march == 21 {
			break
		}
		store.quote("A", d, 1.0+float64(march+1)*0.001)
		march++
	}
	require.Equal(t, 21, march)
	store.rate("CDI", month(2020, 2), 0.005)
	store.rate("CDI", month(2020, 3), 0.01)

	res, err := NewEngine(store).Compute(context.Background(), Request{
		EntityKeys: []string{"A"},
		Start:      day(2020, 2, 1),
		End:        day(2020, 4, 30),
	})
	require.NoError(t, err)
	require.Len(t, res.Dates, 22)

	daily := math.Pow(1.01, 1.0/21) - 1
	bench := res.Benchmark.Points
	assert.Equal(t, 0.0, bench[0].PeriodReturn, "first retained date anchored at 0")
	for _, p := range bench[1:] {
		assert.InDelta(t, daily, p.PeriodReturn, 1e-15)
	}
	assert.InDelta(t, 0.01, bench[len(bench)-1].CumulativeReturn, 1e-12)

	// April overlaps the window but has no retained dates.
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, Diagnostic{
		Kind:    KindBenchmarkGap,
		Month:   month(2020, 4),
		Reason:  GapNoRetainedDates,
		Message: "no aligned dates in 202004",
	}, res.Diagnostics[0])
}

func TestBenchmarkMissingRate(t *testing.T) {
	store := &memStore{}
	store.quote("A", day(2020, 1, 31), 1.0)
	store.quote("A", day(2020, 2, 3), 1.0)
	store.quote("A", day(2020, 2, 4), 1.0)
	store.rate("CDI", month(2020, 1), 0.02)

	req := Request{EntityKeys: []string{"A"}, Start: day(2020, 1, 1), End: day(2020, 2, 29)}

	t.Run("carry forward", func(t *testing.T) {
		res, err := NewEngine(store, WithGapPolicy(GapCarryForward)).Compute(context.Background(), req)
		require.NoError(t, err)
		require.Len(t, res.Diagnostics, 1)
		d := res.Diagnostics[0]
		assert.Equal(t, KindBenchmarkGap, d.Kind)
		assert.Equal(t, GapMissingRate, d.Reason)
		assert.Equal(t, month(2020, 2), d.Month)
		assert.Equal(t, month(2020, 1), d.CarriedFrom)
		assert.InDelta(t, 0.02, res.Benchmark.Points[2].CumulativeReturn, 1e-12)
	})

	t.Run("flat", func(t *testing.T) {
		res, err := NewEngine(store, WithGapPolicy(GapFlat)).Compute(context.Background(), req)
		require.NoError(t, err)
		require.Len(t, res.Diagnostics, 1)
		assert.True(t, res.Diagnostics[0].CarriedFrom.IsZero())
		assert.Equal(t, 0.0, res.Benchmark.Points[2].CumulativeReturn)
	})
}

func TestEmptyWindow(t *testing.T) {
	store := &memStore{}
	store.daily("A", day(2020, 1, 1), day(2020, 1, 31), 1, 0)
	store.daily("B", day(2020, 3, 1), day(2020, 3, 31), 1, 0)

	tests := []struct {
		name    string
		req     Request
		unknown bool
	}{
		{
			name: "no rows in window",
			req:  Request{EntityKeys: []string{"A"}, Start: day(2021, 1, 1), End: day(2021, 12, 31)},
		},
		{
			name: "one entity has no rows in window",
			req:  Request{EntityKeys: []string{"A", "B"}, Start: day(2020, 1, 1), End: day(2020, 2, 28)},
		},
		{
			name: "no common date",
			req:  Request{EntityKeys: []string{"A", "B"}, Start: day(2020, 1, 1), End: day(2020, 3, 31)},
		},
		{
			name:    "only unknown entities",
			req:     Request{EntityKeys: []string{"X"}, Start: day(2020, 1, 1), End: day(2020, 3, 31)},
			unknown: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := NewEngine(store).Compute(context.Background(), tt.req)
			require.NoError(t, err)
			assert.True(t, res.Empty())
			assert.Equal(t, tt.unknown, res.Has(KindUnknownEntity))
			assert.Empty(t, res.Series)
			assert.Empty(t, res.Dates)
			assert.Nil(t, res.Benchmark)
			assert.True(t, res.TrueStart.IsZero())
		})
	}
}

func TestUnknownEntityContinues(t *testing.T) {
	store := &memStore{}
	store.daily("A", day(2020, 1, 1), day(2020, 1, 10), 1, 0.01)
	store.rate("CDI", month(2020, 1), 0.004)

	res, err := NewEngine(store, WithNames(names.Map{"A": "Fundo A"})).Compute(context.Background(), Request{
		EntityKeys: []string{"A", "GHOST", "A"},
		Start:      day(2020, 1, 1),
		End:        day(2020, 1, 10),
	})
	require.NoError(t, err)
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, KindUnknownEntity, res.Diagnostics[0].Kind)
	assert.Equal(t, []string{"GHOST"}, res.Diagnostics[0].EntityKeys)
	require.Len(t, res.Series, 1)
	assert.Equal(t, "Fundo A", res.Series[0].Label)
	assert.Len(t, res.Dates, 10)
}

func TestComputeErrors(t *testing.T) {
	t.Run("validation", func(t *testing.T) {
		_, err := NewEngine(&memStore{}).Compute(context.Background(), Request{
			Start: day(2020, 2, 1),
			End:   day(2020, 1, 1),
		})
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Contains(t, vErr.Problems, "at least one entity is required")
		assert.Contains(t, vErr.Problems, "end must not be before start")
	})

	t.Run("store failure", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := NewEngine(&memStore{err: boom}).Compute(context.Background(), Request{
			EntityKeys: []string{"A"}, Start: day(2020, 1, 1), End: day(2020, 1, 2),
		})
		assert.ErrorIs(t, err, boom)
	})

	t.Run("unordered rows", func(t *testing.T) {
		store := &memStore{reverse: true}
		store.daily("A", day(2020, 1, 1), day(2020, 1, 3), 1, 0)
		_, err := NewEngine(store).Compute(context.Background(), Request{
			EntityKeys: []string{"A"}, Start: day(2020, 1, 1), End: day(2020, 1, 3),
		})
		assert.ErrorContains(t, err, "store returned")
	})
}

func TestPivotReadback(t *testing.T) {
	store := &memStore{}
	store.daily("A", day(2020, 1, 1), day(2020, 1, 20), 1, 0.01)
	store.daily("B", day(2020, 1, 5), day(2020, 1, 20), 2, -0.005)

	var rows []model.QuoteRecord
	err := store.QueryQuotes(context.Background(), []string{"A", "B"}, day(2020, 1, 1), day(2020, 1, 31),
		func(r model.QuoteRecord) error {
			rows = append(rows, r)
			return nil
		})
	require.NoError(t, err)

	trueStart := day(2020, 1, 5)
	m := Pivot(rows, []string{"A", "B"}, trueStart)
	require.Equal(t, 16, m.Len())

	var retained []model.QuoteRecord
	for _, r := range rows {
		if !r.AsOf.Before(trueStart) {
			retained = append(retained, r)
		}
	}
	assert.Equal(t, retained, m.Records())
}

func TestResolveRates(t *testing.T) {
	published := []model.BenchmarkRate{
		{MonthEnd: month(2020, 1).End(), Rate: 0.1},
		{MonthEnd: month(2020, 3).End(), Rate: 0.3},
	}
	months := []model.Month{month(2019, 12), month(2020, 1), month(2020, 2), month(2020, 3), month(2020, 4)}

	rates, missing := resolveRates(months, published, GapCarryForward)
	assert.Equal(t, map[model.Month]float64{
		month(2019, 12): 0, month(2020, 1): 0.1, month(2020, 2): 0.1, month(2020, 3): 0.3, month(2020, 4): 0.3,
	}, rates)
	assert.Equal(t, map[model.Month]model.Month{
		month(2019, 12): {}, month(2020, 2): month(2020, 1), month(2020, 4): month(2020, 3),
	}, missing)
}

func TestQueryTimeout(t *testing.T) {
	store := &memStore{block: true}
	store.daily("A", day(2020, 1, 1), day(2020, 1, 31), 10, 0.001)

	e := NewEngine(store, WithQueryTimeout(20*time.Millisecond))
	done := make(chan error, 1)
	go func() {
		_, err := e.Compute(context.Background(), Request{
			EntityKeys: []string{"A"},
			Start:      day(2020, 1, 1),
			End:        day(2020, 1, 31),
		})
		done <- err
	}()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Contains(t, err.Error(), "query quotes")
	case <-time.After(2 * time.Second):
		t.Fatal("Compute did not return after the query timeout")
	}
}

// flatProxy gives every date the same rate.
type flatProxy struct{ rate float64 }

func (flatProxy) Name() string { return "flat_test" }

func (p flatProxy) DailyRates(dates []time.Time, _ map[model.Month]float64) []float64 {
	out := make([]float64, len(dates))
	for i := range out {
		out[i] = p.rate
	}
	return out
}

func TestWithProxy(t *testing.T) {
	store := &memStore{}
	store.daily("A", day(2020, 1, 1), day(2020, 2, 29), 10, 0.001)
	store.rate("CDI", month(2020, 1), 0.5)
	store.rate("CDI", month(2020, 2), 0.5)

	res, err := NewEngine(store, WithProxy(flatProxy{rate: 0.001})).Compute(context.Background(), Request{
		EntityKeys: []string{"A"},
		Start:      day(2020, 1, 1),
		End:        day(2020, 2, 29),
	})
	require.NoError(t, err)
	assert.Equal(t, "flat_test", res.Proxy)

	require.NotNil(t, res.Benchmark)
	pts := res.Benchmark.Points
	assert.Equal(t, 0.0, pts[0].PeriodReturn)
	assert.InDelta(t, 0.001, pts[1].PeriodReturn, 1e-15)
	assert.InDelta(t, math.Pow(1.001, float64(len(pts)-1))-1, pts[len(pts)-1].CumulativeReturn, 1e-12)

	res, err = NewEngine(store).Compute(context.Background(), Request{
		EntityKeys: []string{"A"},
		Start:      day(2020, 1, 1),
		End:        day(2020, 2, 29),
	})
	require.NoError(t, err)
	assert.Equal(t, "monthly_geometric", res.Proxy)
}
