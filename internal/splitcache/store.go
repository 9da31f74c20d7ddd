package splitcache

import (
	"context"
	"time"

	"github.com/rickgao/prosper-api/internal/model"
	"github.com/rickgao/prosper-api/internal/split"
)

// Store is the archive of pre-split history.
type Store interface {
	// Fetch returns rows for the pair with date <= asOf when asOf is set, newest
	// first. An empty result is split.ErrNoSplitDataFound.
	Fetch(ctx context.Context, regionID, typeID int, asOf *time.Time) (model.HistorySeries, error)

	// Replace deletes rows for the pair dated on or after the earliest row in rows,
	// then writes rows. Both steps happen atomically.
	Replace(ctx context.Context, regionID, typeID int, rows []model.HistoryRow, meta WriteMeta) error

	// Append upserts rows without deleting anything.
	Append(ctx context.Context, regionID, typeID int, rows []model.HistoryRow, meta WriteMeta) error
}

// WriteMeta is bookkeeping stored alongside each written row.
type WriteMeta struct {
	Source   string    // Data source the rows came from (esi, emd)
	CachedAt time.Time // Zero means now
}

func (m WriteMeta) cachedAt() time.Time {
	if m.CachedAt.IsZero() {
		return time.Now().UTC()
	}
	return m.CachedAt.UTC()
}

// ApplyTransform returns a new series with prices run through rec.AdjustPrice and
// volume and orders through rec.AdjustVolume. series is not modified.
func ApplyTransform(series model.HistorySeries, rec *split.Record) model.HistorySeries {
	out := model.HistorySeries{
		Rows:       make([]model.HistoryRow, len(series.Rows)),
		DateLayout: series.DateLayout,
	}
	for i, r := range series.Rows {
		out.Rows[i] = model.HistoryRow{
			Date:      r.Date,
			AvgPrice:  rec.AdjustPrice(r.AvgPrice),
			HighPrice: rec.AdjustPrice(r.HighPrice),
			LowPrice:  rec.AdjustPrice(r.LowPrice),
			Volume:    rec.AdjustVolume(r.Volume),
			Orders:    rec.AdjustVolume(r.Orders),
		}
	}
	return out
}

func noData(regionID, typeID int) error {
	return split.NewError(split.KindNoSplitDataFound,
		"no archived history for region %d type %d", regionID, typeID)
}

func minRowDate(rows []model.HistoryRow) time.Time {
	min, _ := model.HistorySeries{Rows: rows}.MinDate()
	return model.TruncateDate(min)
}
