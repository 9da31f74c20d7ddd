package model

import (
	"sort"
	"time"
)

// DefaultDateLayout is the date shape used when a series does not ask for another.
const DefaultDateLayout = "2006-01-02"

// -----------------------------------------------------------------------------
// History Types
// -----------------------------------------------------------------------------

// HistoryRow is one day of market history for a (region, type) pair.
type HistoryRow struct {
	Date      time.Time // Trading day (UTC midnight)
	AvgPrice  float64   // Volume-weighted average price
	HighPrice float64   // Highest trade price
	LowPrice  float64   // Lowest trade price
	Volume    float64   // Units traded
	Orders    float64   // Number of orders
}

// HistorySeries is an ordered set of daily rows plus the date layout downstream
// consumers expect when the series is rendered.
type HistorySeries struct {
	Rows       []HistoryRow
	DateLayout string
}

// Layout returns the date layout for rendering, falling back to DefaultDateLayout.
func (s HistorySeries) Layout() string {
	if s.DateLayout == "" {
		return DefaultDateLayout
	}
	return s.DateLayout
}

// Len returns the number of rows.
func (s HistorySeries) Len() int {
	return len(s.Rows)
}

// MinDate returns the earliest date in the series. ok is false for an empty series.
func (s HistorySeries) MinDate() (time.Time, bool) {
	if len(s.Rows) == 0 {
		return time.Time{}, false
	}
	min := s.Rows[0].Date
	for _, r := range s.Rows[1:] {
		if r.Date.Before(min) {
			min = r.Date
		}
	}
	return min, true
}

// MaxDate returns the latest date in the series. ok is false for an empty series.
func (s HistorySeries) MaxDate() (time.Time, bool) {
	if len(s.Rows) == 0 {
		return time.Time{}, false
	}
	max := s.Rows[0].Date
	for _, r := range s.Rows[1:] {
		if r.Date.After(max) {
			max = r.Date
		}
	}
	return max, true
}

// Clone returns a deep copy of the series.
func (s HistorySeries) Clone() HistorySeries {
	rows := make([]HistoryRow, len(s.Rows))
	copy(rows, s.Rows)
	return HistorySeries{Rows: rows, DateLayout: s.DateLayout}
}

// SortDescending orders rows newest first, in place.
func (s HistorySeries) SortDescending() {
	sort.SliceStable(s.Rows, func(i, j int) bool {
		return s.Rows[i].Date.After(s.Rows[j].Date)
	})
}

// SortAscending orders rows oldest first, in place.
func (s HistorySeries) SortAscending() {
	sort.SliceStable(s.Rows, func(i, j int) bool {
		return s.Rows[i].Date.Before(s.Rows[j].Date)
	})
}

// TruncateDate drops the clock component of t and returns UTC midnight.
func TruncateDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// -----------------------------------------------------------------------------
// Report Types
// -----------------------------------------------------------------------------

// OHLCRow is one day of open/high/low/close data.
// Open is the previous day's average price, Close the current day's.
type OHLCRow struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// ForecastRow is one day of a forecast report.
type ForecastRow struct {
	Date       time.Time
	AvgPrice   *float64 // nil for predicted days
	Yhat       float64  // Model estimate
	YhatLow    float64  // Lower bound of the uncertainty interval
	YhatHigh   float64  // Upper bound of the uncertainty interval
	Prediction bool     // true when Date is after the last observed day
}
