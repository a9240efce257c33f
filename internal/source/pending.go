package source

import (
	"time"

	"github.com/rickgao/fund-data/internal/model"
)

// PendingMonths returns, ascending, the months that need (re)ingestion.
//
// The current calendar month is always included because the regulator keeps
// appending to it. Months strictly between latest and the current month are
// included as well. With no prior partition only the current month is returned.
func PendingMonths(latest *model.Month, today time.Time) []model.Month {
	current := model.MonthOf(today)
	if latest == nil || !latest.Before(current) {
		return []model.Month{current}
	}

	var months []model.Month
	for m := latest.Next(); m.Before(current); m = m.Next() {
		months = append(months, m)
	}
	return append(months, current)
}
