package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/rickgao/prosper-api/internal/forecast"
	"github.com/rickgao/prosper-api/internal/model"
)

// minTTL keeps a report written just before midnight from expiring instantly.
const minTTL = time.Minute

// ForecastCache stores forecast reports as JSON. Entries expire at the end of
// the UTC day they were built for.
type ForecastCache struct {
	client redis.Cmdable
	prefix string
	now    func() time.Time
}

// NewForecastCache creates a ForecastCache. Keys are prefixed with prefix.
func NewForecastCache(client redis.Cmdable, prefix string) *ForecastCache {
	return &ForecastCache{
		client: client,
		prefix: prefix,
		now:    time.Now,
	}
}

type forecastEntry struct {
	Date       time.Time `json:"date"`
	AvgPrice   *float64  `json:"avgPrice"`
	Yhat       float64   `json:"yhat"`
	YhatLow    float64   `json:"yhat_low"`
	YhatHigh   float64   `json:"yhat_high"`
	Prediction bool      `json:"prediction"`
}

func (c *ForecastCache) key(regionID, typeID int, day time.Time) string {
	return c.prefix + "forecast:" + forecast.CacheKey(regionID, typeID, day)
}

// Get implements forecast.Cache.
func (c *ForecastCache) Get(ctx context.Context, regionID, typeID int, day time.Time) ([]model.ForecastRow, bool, error) {
	data, err := c.client.Get(ctx, c.key(regionID, typeID, day)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get cached forecast: %w", err)
	}

	var entries []forecastEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, false, fmt.Errorf("decode cached forecast: %w", err)
	}

	rows := make([]model.ForecastRow, len(entries))
	for i, e := range entries {
		rows[i] = model.ForecastRow(e)
	}
	return rows, true, nil
}

// Put implements forecast.Cache.
func (c *ForecastCache) Put(ctx context.Context, regionID, typeID int, day time.Time, rows []model.ForecastRow) error {
	entries := make([]forecastEntry, len(rows))
	for i, r := range rows {
		entries[i] = forecastEntry(r)
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode forecast: %w", err)
	}

	if err := c.client.Set(ctx, c.key(regionID, typeID, day), data, c.ttl(day)).Err(); err != nil {
		return fmt.Errorf("set cached forecast: %w", err)
	}
	return nil
}

func (c *ForecastCache) ttl(day time.Time) time.Duration {
	ttl := model.TruncateDate(day).AddDate(0, 0, 1).Sub(c.now())
	if ttl < minTTL {
		return minTTL
	}
	return ttl
}
