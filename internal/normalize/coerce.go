package normalize

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/fund-data/internal/model"
)

var (
	errNotInteger      = errors.New("not an integer")
	errMixedSeparators = errors.New("ambiguous decimal separators")
)

// ParseNumber parses a numeric cell written with a decimal comma or point.
// "1.234,56", "1234,56" and "1234.56" all parse to 1234.56. With a comma
// present, points may only group thousands before it; point-decimal grouping
// such as "1,234.56" is rejected.
func ParseNumber(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if comma := strings.IndexByte(s, ','); comma >= 0 {
		if strings.Count(s, ",") > 1 || strings.LastIndexByte(s, '.') > comma {
			return decimal.Decimal{}, errMixedSeparators
		}
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	}
	return decimal.NewFromString(s)
}

func parseFloat(s string) (*float64, error) {
	d, err := ParseNumber(s)
	if err != nil {
		return nil, err
	}
	f := d.InexactFloat64()
	return &f, nil
}

func parseInt(s string) (*int64, error) {
	d, err := ParseNumber(s)
	if err != nil {
		return nil, err
	}
	if !d.IsInteger() {
		return nil, errNotInteger
	}
	n := d.IntPart()
	return &n, nil
}

var dateLayouts = []string{model.DateLayout, "02/01/2006", "2006-01-02 15:04:05"}

// ParseDate accepts the ISO day layout used by current files and the
// day-first layout seen in older ones.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var err error
	for _, layout := range dateLayouts {
		var t time.Time
		if t, err = time.ParseInLocation(layout, s, time.UTC); err == nil {
			return model.Date(t), nil
		}
	}
	return time.Time{}, err
}
