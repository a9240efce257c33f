package model

import (
	"fmt"
	"strconv"
	"time"
)

// DateLayout is the ISO-8601 day layout used for dates in flags, queries and JSON.
const DateLayout = "2006-01-02"

// -----------------------------------------------------------------------------
// Time-Series Types
// -----------------------------------------------------------------------------

// QuoteRecord is one fund's daily disclosure row after normalization.
type QuoteRecord struct {
	EntityKey        string    // Fund/share-class identifier (CNPJ)
	AsOf             time.Time // Competence date (midnight UTC)
	QuoteValue       *float64  // Net asset value per share, > 0 when present
	NetAssets        *float64  // Net assets (patrimônio líquido)
	NetSubscriptions *float64  // Subscriptions on the day
	NetRedemptions   *float64  // Redemptions on the day
	HolderCount      *int64    // Number of shareholders
}

// Quote returns the quote value and whether it is usable for return computation.
func (r QuoteRecord) Quote() (float64, bool) {
	if r.QuoteValue == nil || *r.QuoteValue <= 0 {
		return 0, false
	}
	return *r.QuoteValue, true
}

// BenchmarkRate is one month of a reference rate, as a fraction (0.01 = 1%).
type BenchmarkRate struct {
	MonthEnd time.Time // Last calendar day of the month (midnight UTC)
	Name     string    // Rate name, e.g. "CDI"
	Rate     float64   // Monthly rate as a fraction
}

// Date truncates t to its calendar day in UTC.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string into a UTC day.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// -----------------------------------------------------------------------------
// Month
// -----------------------------------------------------------------------------

// Month identifies a calendar month, the granularity of source files and partitions.
type Month struct {
	Year  int
	Month time.Month
}

// NewMonth returns a normalized Month (e.g. month 13 rolls into the next year).
func NewMonth(year int, month time.Month) Month {
	t := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return Month{Year: t.Year(), Month: t.Month()}
}

// MonthOf returns the month containing t.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// ParseMonth parses a "YYYYMM" key.
func ParseMonth(s string) (Month, error) {
	if len(s) != 6 {
		return Month{}, fmt.Errorf("invalid month %q: want YYYYMM", s)
	}
	year, err := strconv.Atoi(s[:4])
	if err != nil {
		return Month{}, fmt.Errorf("invalid month %q: %w", s, err)
	}
	mon, err := strconv.Atoi(s[4:])
	if err != nil {
		return Month{}, fmt.Errorf("invalid month %q: %w", s, err)
	}
	if mon < 1 || mon > 12 {
		return Month{}, fmt.Errorf("invalid month %q: month out of range", s)
	}
	return Month{Year: year, Month: time.Month(mon)}, nil
}

// String renders the month as "YYYYMM".
func (m Month) String() string {
	return fmt.Sprintf("%04d%02d", m.Year, int(m.Month))
}

// IsZero reports whether m is the zero Month.
func (m Month) IsZero() bool { return m.Year == 0 && m.Month == 0 }

// Start returns the first day of the month.
func (m Month) Start() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End returns the last day of the month.
func (m Month) End() time.Time {
	return time.Date(m.Year, m.Month+1, 0, 0, 0, 0, 0, time.UTC)
}

// Next returns the following month.
func (m Month) Next() Month { return NewMonth(m.Year, m.Month+1) }

// Prev returns the preceding month.
func (m Month) Prev() Month { return NewMonth(m.Year, m.Month-1) }

// Before reports whether m is strictly earlier than o.
func (m Month) Before(o Month) bool {
	if m.Year != o.Year {
		return m.Year < o.Year
	}
	return m.Month < o.Month
}

// Contains reports whether t falls within the month.
func (m Month) Contains(t time.Time) bool {
	return t.Year() == m.Year && t.Month() == m.Month
}

// Compare returns -1, 0 or +1, for use with slices.SortFunc.
func (m Month) Compare(o Month) int {
	switch {
	case m.Before(o):
		return -1
	case o.Before(m):
		return 1
	default:
		return 0
	}
}

// MarshalText renders the month as "YYYYMM".
func (m Month) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText parses a "YYYYMM" month.
func (m *Month) UnmarshalText(b []byte) error {
	parsed, err := ParseMonth(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
