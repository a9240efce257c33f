package returns

import "time"

// Point is one date of a ReturnSeries.
type Point struct {
	Date             time.Time `json:"date"`
	PeriodReturn     float64   `json:"period_return"`
	CumulativeReturn float64   `json:"cumulative_return"`
}

// ReturnSeries is the aligned return history of one entity or benchmark.
type ReturnSeries struct {
	EntityKey string  `json:"entity_key"`
	Label     string  `json:"label"`
	Points    []Point `json:"points"`
}

// periodReturns returns q[i]/q[i-1] - 1, with 0 at the first index.
func periodReturns(quotes []float64) []float64 {
	out := make([]float64, len(quotes))
	for i := 1; i < len(quotes); i++ {
		out[i] = quotes[i]/quotes[i-1] - 1
	}
	return out
}

// compound builds a series from period returns: the cumulative return at i is
// the product of (1 + r) up to i, minus 1.
func compound(dates []time.Time, period []float64) []Point {
	points := make([]Point, len(dates))
	growth := 1.0
	for i, d := range dates {
		growth *= 1 + period[i]
		points[i] = Point{Date: d, PeriodReturn: period[i], CumulativeReturn: growth - 1}
	}
	return points
}
