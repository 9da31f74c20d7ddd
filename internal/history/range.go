package history

import (
	"time"

	"github.com/rickgao/prosper-api/internal/model"
)

// Range bounds a history request by calendar date, inclusive on both ends.
// A zero From or To leaves that side open.
type Range struct {
	From time.Time
	To   time.Time
}

// LastDays returns the range covering the n days up to and including now.
func LastDays(now time.Time, n int) Range {
	to := model.TruncateDate(now)
	if n <= 0 {
		return Range{To: to}
	}
	return Range{From: to.AddDate(0, 0, -(n - 1)), To: to}
}

// Days returns the number of days spanned, or 0 when From is open.
func (r Range) Days() int {
	if r.From.IsZero() {
		return 0
	}
	to := r.To
	if to.IsZero() {
		to = model.TruncateDate(time.Now())
	}
	return int(model.TruncateDate(to).Sub(model.TruncateDate(r.From)).Hours()/24) + 1
}

// Contains reports whether t falls inside the range.
func (r Range) Contains(t time.Time) bool {
	d := model.TruncateDate(t)
	if !r.From.IsZero() && d.Before(model.TruncateDate(r.From)) {
		return false
	}
	if !r.To.IsZero() && d.After(model.TruncateDate(r.To)) {
		return false
	}
	return true
}

// Filter returns the rows of series that fall inside the range.
func (r Range) Filter(series model.HistorySeries) model.HistorySeries {
	out := model.HistorySeries{
		Rows:       make([]model.HistoryRow, 0, len(series.Rows)),
		DateLayout: series.DateLayout,
	}
	for _, row := range series.Rows {
		if r.Contains(row.Date) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}
