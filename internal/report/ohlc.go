package report

import (
	"github.com/rickgao/prosper-api/internal/model"
)

// ToOHLC converts daily history into OHLC rows, oldest first. The result has one
// row fewer than the input; an input with fewer than two rows yields none.
func ToOHLC(series model.HistorySeries) []model.OHLCRow {
	if series.Len() < 2 {
		return []model.OHLCRow{}
	}

	sorted := series.Clone()
	sorted.SortAscending()

	out := make([]model.OHLCRow, 0, sorted.Len()-1)
	for i := 1; i < len(sorted.Rows); i++ {
		prev, cur := sorted.Rows[i-1], sorted.Rows[i]
		out = append(out, model.OHLCRow{
			Date:   cur.Date,
			Open:   prev.AvgPrice,
			High:   cur.HighPrice,
			Low:    cur.LowPrice,
			Close:  cur.AvgPrice,
			Volume: cur.Volume,
		})
	}
	return out
}
