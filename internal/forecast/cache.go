package forecast

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/rickgao/prosper-api/internal/model"
)

// Cache stores forecast reports per (region, type) for one UTC day.
type Cache interface {
	Get(ctx context.Context, regionID, typeID int, day time.Time) ([]model.ForecastRow, bool, error)
	Put(ctx context.Context, regionID, typeID int, day time.Time, rows []model.ForecastRow) error
}

// MemoryCache is an in-process Cache with bounded size. Entries expire after
// ttl; stale days never match because the day is part of the key.
type MemoryCache struct {
	lru *expirable.LRU[string, []model.ForecastRow]
}

// NewMemoryCache creates a MemoryCache holding at most size reports.
func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	if size <= 0 {
		size = 1024
	}
	return &MemoryCache{lru: expirable.NewLRU[string, []model.ForecastRow](size, nil, ttl)}
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, regionID, typeID int, day time.Time) ([]model.ForecastRow, bool, error) {
	rows, ok := c.lru.Get(CacheKey(regionID, typeID, day))
	return rows, ok, nil
}

// Put implements Cache.
func (c *MemoryCache) Put(_ context.Context, regionID, typeID int, day time.Time, rows []model.ForecastRow) error {
	c.lru.Add(CacheKey(regionID, typeID, day), rows)
	return nil
}

// CacheKey is the cache key for a report.
func CacheKey(regionID, typeID int, day time.Time) string {
	return fmt.Sprintf("%d:%d:%s", regionID, typeID, model.TruncateDate(day).Format("2006-01-02"))
}
