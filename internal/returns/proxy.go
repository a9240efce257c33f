package returns

import (
	"math"
	"time"

	"github.com/rickgao/fund-data/internal/model"
)

// ProxyStrategy turns monthly benchmark rates into one rate per retained date.
type ProxyStrategy interface {
	Name() string
	// DailyRates returns one rate per entry of dates (ascending). monthly
	// holds a rate for every month containing a date.
	DailyRates(dates []time.Time, monthly map[model.Month]float64) []float64
}

// MonthlyGeometric spreads a month's rate evenly in geometric terms over the
// n retained dates of the month: each date gets (1 + r)^(1/n) - 1, so the n
// dates compound back to exactly r. It is an approximation used because no
// daily benchmark is published.
type MonthlyGeometric struct{}

// Name implements ProxyStrategy.
func (MonthlyGeometric) Name() string { return "monthly_geometric" }

// DailyRates implements ProxyStrategy.
func (MonthlyGeometric) DailyRates(dates []time.Time, monthly map[model.Month]float64) []float64 {
	counts := make(map[model.Month]int)
	for _, d := range dates {
		counts[model.MonthOf(d)]++
	}

	out := make([]float64, len(dates))
	for i, d := range dates {
		m := model.MonthOf(d)
		out[i] = math.Pow(1+monthly[m], 1/float64(counts[m])) - 1
	}
	return out
}

// GapPolicy decides the rate of a month whose benchmark rate is missing.
type GapPolicy string

// Gap policies.
const (
	// GapCarryForward uses the latest earlier published rate, or 0 if none.
	GapCarryForward GapPolicy = "carry_forward"
	// GapFlat uses 0.
	GapFlat GapPolicy = "flat"
)

// resolveRates picks the rate of every month in months under policy. It
// returns the rates and the months that needed a substitute, with the month
// each one was carried from (zero when flat).
func resolveRates(months []model.Month, published []model.BenchmarkRate, policy GapPolicy) (map[model.Month]float64, map[model.Month]model.Month) {
	known := make(map[model.Month]float64, len(published))
	for _, r := range published {
		known[model.MonthOf(r.MonthEnd)] = r.Rate
	}

	rates := make(map[model.Month]float64, len(months))
	missing := make(map[model.Month]model.Month)
	for _, m := range months {
		if r, ok := known[m]; ok {
			rates[m] = r
			continue
		}

		var from model.Month
		if policy == GapCarryForward {
			for _, r := range published {
				pm := model.MonthOf(r.MonthEnd)
				if pm.Before(m) {
					from = pm
					rates[m] = r.Rate
				}
			}
		}
		if from.IsZero() {
			rates[m] = 0
		}
		missing[m] = from
	}
	return rates, missing
}
