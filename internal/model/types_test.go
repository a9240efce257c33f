package model

import (
	"testing"
	"time"
)

func TestParseMonth(t *testing.T) {
	tests := []struct {
		in      string
		want    Month
		wantErr bool
	}{
		{in: "202001", want: Month{2020, time.January}},
		{in: "199912", want: Month{1999, time.December}},
		{in: "202013", wantErr: true},
		{in: "202000", wantErr: true},
		{in: "2020-01", wantErr: true},
		{in: "abcd01", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMonth(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMonth(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseMonth(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestMonthBounds(t *testing.T) {
	m := Month{2020, time.February}

	if got := m.String(); got != "202002" {
		t.Errorf("String() = %q, want %q", got, "202002")
	}
	if got := m.Start(); !got.Equal(time.Date(2020, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Start() = %v", got)
	}
	if got := m.End(); !got.Equal(time.Date(2020, 2, 29, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("End() = %v, want leap day", got)
	}
	if got := (Month{2020, time.December}).Next(); got != (Month{2021, time.January}) {
		t.Errorf("Next() = %v, want 202101", got)
	}
	if got := (Month{2021, time.January}).Prev(); got != (Month{2020, time.December}) {
		t.Errorf("Prev() = %v, want 202012", got)
	}
	if !m.Contains(time.Date(2020, 2, 15, 12, 0, 0, 0, time.UTC)) {
		t.Error("Contains() = false for a mid-month time")
	}
	if m.Contains(time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Error("Contains() = true for the next month")
	}
}

func TestMonthOrdering(t *testing.T) {
	a := Month{2019, time.December}
	b := Month{2020, time.January}

	if !a.Before(b) || b.Before(a) {
		t.Errorf("Before() ordering wrong for %v and %v", a, b)
	}
	if a.Compare(b) != -1 || b.Compare(a) != 1 || a.Compare(a) != 0 {
		t.Errorf("Compare() ordering wrong for %v and %v", a, b)
	}
	if got := NewMonth(2020, 13); got != (Month{2021, time.January}) {
		t.Errorf("NewMonth(2020, 13) = %v, want 202101", got)
	}
}

func TestQuoteRecordQuote(t *testing.T) {
	pos, zero := 1.25, 0.0

	tests := []struct {
		name   string
		value  *float64
		want   float64
		wantOK bool
	}{
		{name: "present", value: &pos, want: 1.25, wantOK: true},
		{name: "missing", value: nil},
		{name: "non-positive", value: &zero},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := QuoteRecord{QuoteValue: tt.value}.Quote()
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("Quote() = (%v, %v), want (%v, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestDate(t *testing.T) {
	in := time.Date(2024, 1, 15, 23, 59, 59, 0, time.UTC)
	want := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	if got := Date(in); !got.Equal(want) {
		t.Errorf("Date() = %v, want %v", got, want)
	}

	parsed, err := ParseDate("2024-01-15")
	if err != nil {
		t.Fatalf("ParseDate() error = %v", err)
	}
	if !parsed.Equal(want) {
		t.Errorf("ParseDate() = %v, want %v", parsed, want)
	}
}

func TestMonthText(t *testing.T) {
	m := Month{2024, time.July}
	b, err := m.MarshalText()
	if err != nil || string(b) != "202407" {
		t.Fatalf("MarshalText() = %q, %v", b, err)
	}

	var got Month
	if err := got.UnmarshalText([]byte("202407")); err != nil {
		t.Fatalf("UnmarshalText() error = %v", err)
	}
	if got != m {
		t.Errorf("UnmarshalText() = %v, want %v", got, m)
	}
	if err := got.UnmarshalText([]byte("bad")); err == nil {
		t.Error("UnmarshalText(bad) expected error")
	}
}
