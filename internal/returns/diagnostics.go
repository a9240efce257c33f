package returns

import (
	"fmt"
	"strings"

	"github.com/rickgao/fund-data/internal/model"
)

// Kind classifies a Diagnostic.
type Kind string

// Diagnostic kinds.
const (
	KindEmptyWindow   Kind = "empty_window"
	KindUnknownEntity Kind = "unknown_entity"
	KindBenchmarkGap  Kind = "benchmark_gap"
)

// GapReason explains a benchmark gap.
type GapReason string

// Benchmark gap reasons.
const (
	// GapNoRetainedDates: the month overlaps the window but no aligned date falls in it.
	GapNoRetainedDates GapReason = "no_retained_dates"
	// GapMissingRate: aligned dates fall in the month but the rate is not published.
	GapMissingRate GapReason = "missing_rate"
)

// Diagnostic is a typed condition found while computing a Result.
type Diagnostic struct {
	Kind        Kind        `json:"kind"`
	EntityKeys  []string    `json:"entity_keys,omitempty"`
	Month       model.Month `json:"month,omitzero"`
	Reason      GapReason   `json:"reason,omitempty"`
	CarriedFrom model.Month `json:"carried_from,omitzero"`
	Message     string      `json:"message"`
}

func unknownEntity(keys []string) Diagnostic {
	return Diagnostic{
		Kind:       KindUnknownEntity,
		EntityKeys: keys,
		Message:    fmt.Sprintf("no data for %s", strings.Join(keys, ", ")),
	}
}

func emptyWindow(keys []string, msg string) Diagnostic {
	return Diagnostic{Kind: KindEmptyWindow, EntityKeys: keys, Message: msg}
}

func gapNoDates(m model.Month) Diagnostic {
	return Diagnostic{
		Kind:    KindBenchmarkGap,
		Month:   m,
		Reason:  GapNoRetainedDates,
		Message: fmt.Sprintf("no aligned dates in %s", m),
	}
}

func gapMissingRate(m, carriedFrom model.Month) Diagnostic {
	d := Diagnostic{
		Kind:        KindBenchmarkGap,
		Month:       m,
		Reason:      GapMissingRate,
		CarriedFrom: carriedFrom,
	}
	if carriedFrom.IsZero() {
		d.Message = fmt.Sprintf("no benchmark rate for %s; treated as flat", m)
	} else {
		d.Message = fmt.Sprintf("no benchmark rate for %s; carried forward from %s", m, carriedFrom)
	}
	return d
}
