package server

import (
	"github.com/rickgao/fund-data/internal/model"
	"github.com/rickgao/fund-data/internal/returns"
)

// Response bodies format dates as YYYY-MM-DD.

type resultResponse struct {
	TrueStart   string               `json:"true_start,omitempty"`
	Dates       []string             `json:"dates"`
	Series      []seriesResponse     `json:"series"`
	Benchmark   *seriesResponse      `json:"benchmark,omitempty"`
	Proxy       string               `json:"proxy,omitempty"`
	Diagnostics []returns.Diagnostic `json:"diagnostics"`
}

type seriesResponse struct {
	EntityKey        string    `json:"entity_key"`
	Label            string    `json:"label"`
	PeriodReturn     []float64 `json:"period_return"`
	CumulativeReturn []float64 `json:"cumulative_return"`
}

func newResultResponse(res *returns.Result) resultResponse {
	out := resultResponse{
		Dates:       make([]string, len(res.Dates)),
		Series:      make([]seriesResponse, 0, len(res.Series)),
		Proxy:       res.Proxy,
		Diagnostics: res.Diagnostics,
	}
	if !res.TrueStart.IsZero() {
		out.TrueStart = res.TrueStart.Format(model.DateLayout)
	}
	for i, d := range res.Dates {
		out.Dates[i] = d.Format(model.DateLayout)
	}
	for _, s := range res.Series {
		out.Series = append(out.Series, newSeriesResponse(s))
	}
	if res.Benchmark != nil {
		b := newSeriesResponse(*res.Benchmark)
		out.Benchmark = &b
	}
	return out
}

// newSeriesResponse lays the points out column-wise, aligned with Dates.
func newSeriesResponse(s returns.ReturnSeries) seriesResponse {
	out := seriesResponse{
		EntityKey:        s.EntityKey,
		Label:            s.Label,
		PeriodReturn:     make([]float64, len(s.Points)),
		CumulativeReturn: make([]float64, len(s.Points)),
	}
	for i, p := range s.Points {
		out.PeriodReturn[i] = p.PeriodReturn
		out.CumulativeReturn[i] = p.CumulativeReturn
	}
	return out
}
