package splitcache

import (
	"context"
	"sync"
	"time"

	"github.com/rickgao/prosper-api/internal/model"
)

type pairKey struct {
	regionID int
	typeID   int
}

type memoryRow struct {
	row  model.HistoryRow
	meta WriteMeta
}

// MemoryStore is a Store backed by process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	pairs map[pairKey]map[time.Time]memoryRow
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		pairs: make(map[pairKey]map[time.Time]memoryRow),
	}
}

// Fetch implements Store.
func (s *MemoryStore) Fetch(_ context.Context, regionID, typeID int, asOf *time.Time) (model.HistorySeries, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var limit time.Time
	if asOf != nil {
		limit = model.TruncateDate(*asOf)
	}

	rows := s.pairs[pairKey{regionID, typeID}]
	series := model.HistorySeries{Rows: make([]model.HistoryRow, 0, len(rows))}
	for date, r := range rows {
		if asOf != nil && date.After(limit) {
			continue
		}
		series.Rows = append(series.Rows, r.row)
	}

	if series.Len() == 0 {
		return model.HistorySeries{}, noData(regionID, typeID)
	}
	series.SortDescending()
	return series, nil
}

// Replace implements Store.
func (s *MemoryStore) Replace(_ context.Context, regionID, typeID int, rows []model.HistoryRow, meta WriteMeta) error {
	if len(rows) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	from := minRowDate(rows)
	pair := s.pairs[pairKey{regionID, typeID}]
	for date := range pair {
		if !date.Before(from) {
			delete(pair, date)
		}
	}
	s.upsertLocked(regionID, typeID, rows, meta)
	return nil
}

// Append implements Store.
func (s *MemoryStore) Append(_ context.Context, regionID, typeID int, rows []model.HistoryRow, meta WriteMeta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.upsertLocked(regionID, typeID, rows, meta)
	return nil
}

func (s *MemoryStore) upsertLocked(regionID, typeID int, rows []model.HistoryRow, meta WriteMeta) {
	if len(rows) == 0 {
		return
	}
	key := pairKey{regionID, typeID}
	pair, ok := s.pairs[key]
	if !ok {
		pair = make(map[time.Time]memoryRow, len(rows))
		s.pairs[key] = pair
	}

	meta.CachedAt = meta.cachedAt()
	for _, r := range rows {
		r.Date = model.TruncateDate(r.Date)
		pair[r.Date] = memoryRow{row: r, meta: meta}
	}
}

// Len returns the number of rows stored for the pair.
func (s *MemoryStore) Len(regionID, typeID int) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pairs[pairKey{regionID, typeID}])
}
