package returns

import (
	"slices"
	"time"

	"github.com/rickgao/fund-data/internal/model"
)

// Matrix is a dense date × entity table of quotes.
type Matrix struct {
	Keys   []string
	Dates  []time.Time
	Values [][]float64 // Values[date][entity], aligned with Dates and Keys
}

// Pivot builds a Matrix from rows ordered by (entity_key, as_of_date).
// Rows before from, rows of keys not in keys and rows without a usable quote
// are ignored. Only dates on which every key has a quote are kept.
func Pivot(rows []model.QuoteRecord, keys []string, from time.Time) *Matrix {
	col := make(map[string]int, len(keys))
	for i, k := range keys {
		col[k] = i
	}

	type cell struct {
		values []float64
		filled int
	}
	byDate := make(map[time.Time]*cell)
	var order []time.Time

	for _, r := range rows {
		i, ok := col[r.EntityKey]
		if !ok || r.AsOf.Before(from) {
			continue
		}
		q, ok := r.Quote()
		if !ok {
			continue
		}
		c := byDate[r.AsOf]
		if c == nil {
			c = &cell{values: make([]float64, len(keys))}
			byDate[r.AsOf] = c
			order = append(order, r.AsOf)
		}
		if c.values[i] == 0 {
			c.filled++
		}
		c.values[i] = q
	}

	m := &Matrix{Keys: keys}
	// Dates from different entities interleave.
	slices.SortFunc(order, time.Time.Compare)
	for _, d := range order {
		c := byDate[d]
		if c.filled != len(keys) {
			continue
		}
		m.Dates = append(m.Dates, d)
		m.Values = append(m.Values, c.values)
	}
	return m
}

// Len returns the number of retained dates.
func (m *Matrix) Len() int {
	return len(m.Dates)
}

// Column returns the quotes of the entity at index i, in date order.
func (m *Matrix) Column(i int) []float64 {
	out := make([]float64, len(m.Dates))
	for d := range m.Dates {
		out[d] = m.Values[d][i]
	}
	return out
}

// Records reads the cells back as QuoteRecords ordered by entity then date.
func (m *Matrix) Records() []model.QuoteRecord {
	out := make([]model.QuoteRecord, 0, len(m.Keys)*len(m.Dates))
	for i, k := range m.Keys {
		for d, date := range m.Dates {
			q := m.Values[d][i]
			out = append(out, model.QuoteRecord{EntityKey: k, AsOf: date, QuoteValue: &q})
		}
	}
	return out
}
