package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/rickgao/prosper-api/internal/model"
)

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// ParseDate parses the date shapes upstream providers emit and truncates to UTC
// midnight.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return model.TruncateDate(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// ESIToHistoryRows converts ESI history entries to model rows.
func ESIToHistoryRows(entries []ESIHistoryEntry) ([]model.HistoryRow, error) {
	rows := make([]model.HistoryRow, 0, len(entries))
	for _, e := range entries {
		date, err := ParseDate(e.Date)
		if err != nil {
			return nil, err
		}
		rows = append(rows, model.HistoryRow{
			Date:      date,
			AvgPrice:  e.Average,
			HighPrice: e.Highest,
			LowPrice:  e.Lowest,
			Volume:    e.Volume,
			Orders:    e.OrderCount,
		})
	}
	return rows, nil
}

// EMDToHistoryRows converts EMD history rows to model rows.
func EMDToHistoryRows(result []EMDHistoryRow) ([]model.HistoryRow, error) {
	rows := make([]model.HistoryRow, 0, len(result))
	for _, r := range result {
		date, err := ParseDate(r.Date)
		if err != nil {
			return nil, err
		}
		rows = append(rows, model.HistoryRow{
			Date:      date,
			AvgPrice:  float64(r.AvgPrice),
			HighPrice: float64(r.HighPrice),
			LowPrice:  float64(r.LowPrice),
			Volume:    float64(r.Volume),
			Orders:    float64(r.Orders),
		})
	}
	return rows, nil
}

// CRESTToHistoryRows converts CREST history entries to model rows.
func CRESTToHistoryRows(entries []CRESTHistoryEntry) ([]model.HistoryRow, error) {
	rows := make([]model.HistoryRow, 0, len(entries))
	for _, e := range entries {
		date, err := ParseDate(e.Date)
		if err != nil {
			return nil, err
		}
		rows = append(rows, model.HistoryRow{
			Date:      date,
			AvgPrice:  e.AvgPrice,
			HighPrice: e.HighPrice,
			LowPrice:  e.LowPrice,
			Volume:    e.Volume,
			Orders:    e.OrderCount,
		})
	}
	return rows, nil
}
