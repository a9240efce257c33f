package benchmark

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/rickgao/fund-data/internal/model"
)

var hundred = decimal.NewFromInt(100)

// MonthEnd reduces observations to one rate per calendar month: the last
// observation of the month, converted from percent to a fraction and dated
// at the month's last day.
func MonthEnd(name string, obs []Observation) []model.BenchmarkRate {
	last := make(map[model.Month]Observation)
	for _, o := range obs {
		m := model.MonthOf(o.Date)
		if cur, ok := last[m]; !ok || !o.Date.Before(cur.Date) {
			last[m] = o
		}
	}

	out := make([]model.BenchmarkRate, 0, len(last))
	for m, o := range last {
		rate := decimal.NewFromFloat(o.Value).Div(hundred).InexactFloat64()
		out = append(out, model.BenchmarkRate{MonthEnd: m.End(), Name: name, Rate: rate})
	}
	slices.SortFunc(out, func(a, b model.BenchmarkRate) int { return a.MonthEnd.Compare(b.MonthEnd) })
	return out
}

// Writer stores benchmark rates.
type Writer interface {
	ReplaceBenchmarks(ctx context.Context, rates map[string][]model.BenchmarkRate) error
}

// RefreshReport summarizes a Refresh.
type RefreshReport struct {
	Stored map[string]int   // Rate name -> months stored
	Failed map[string]error // Rate name -> download failure
}

// Refresh downloads every series and replaces the stored rates of the ones
// that succeeded in one transaction. A failed series keeps its previous rates.
func (c *Client) Refresh(ctx context.Context, store Writer, series map[string]int) (*RefreshReport, error) {
	names := make([]string, 0, len(series))
	for name := range series {
		names = append(names, name)
	}
	slices.Sort(names)

	report := &RefreshReport{
		Stored: make(map[string]int),
		Failed: make(map[string]error),
	}
	rates := make(map[string][]model.BenchmarkRate)

	for _, name := range names {
		id := series[name]
		obs, err := c.Series(ctx, id)
		c.metrics.BenchmarkRefresh(name, err)
		if err != nil {
			c.logger.Warn("benchmark download failed", "rate", name, "series", id, "err", err)
			report.Failed[name] = err
			continue
		}
		rates[name] = MonthEnd(name, obs)
		report.Stored[name] = len(rates[name])
		c.logger.Info("downloaded benchmark", "rate", name, "series", id,
			"observations", len(obs), "months", len(rates[name]))
	}

	if len(rates) == 0 {
		errs := make([]error, 0, len(report.Failed))
		for _, name := range names {
			errs = append(errs, report.Failed[name])
		}
		return report, fmt.Errorf("no benchmark series downloaded: %w", errors.Join(errs...))
	}

	if err := store.ReplaceBenchmarks(ctx, rates); err != nil {
		return report, fmt.Errorf("store benchmarks: %w", err)
	}
	return report, nil
}
