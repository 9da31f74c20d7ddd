package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/rickgao/prosper-api/internal/history"
	"github.com/rickgao/prosper-api/internal/model"
)

// GetMarketHistory fetches ESI daily history for a type in a region.
// ESI always returns its full retention window; callers filter by range.
func (c *Client) GetMarketHistory(ctx context.Context, regionID, typeID int) ([]ESIHistoryEntry, error) {
	query := url.Values{}
	query.Set("type_id", strconv.Itoa(typeID))
	query.Set("datasource", "tranquility")

	var resp []ESIHistoryEntry
	path := fmt.Sprintf("/markets/%d/history/", regionID)
	if err := c.get(ctx, path, query, &resp); err != nil {
		return nil, fmt.Errorf("get market history region=%d type=%d: %w", regionID, typeID, err)
	}
	return resp, nil
}

// GetType fetches a type by id.
func (c *Client) GetType(ctx context.Context, typeID int) (*ESIType, error) {
	var resp ESIType
	if err := c.get(ctx, fmt.Sprintf("/universe/types/%d/", typeID), nil, &resp); err != nil {
		return nil, fmt.Errorf("get type %d: %w", typeID, err)
	}
	return &resp, nil
}

// GetRegion fetches a region by id.
func (c *Client) GetRegion(ctx context.Context, regionID int) (*ESIRegion, error) {
	var resp ESIRegion
	if err := c.get(ctx, fmt.Sprintf("/universe/regions/%d/", regionID), nil, &resp); err != nil {
		return nil, fmt.Errorf("get region %d: %w", regionID, err)
	}
	return &resp, nil
}

// ESISource serves history from ESI.
type ESISource struct {
	client *Client
}

// NewESISource creates a history.Fetcher over an ESI client.
func NewESISource(client *Client) *ESISource {
	return &ESISource{client: client}
}

// FetchHistory implements history.Fetcher.
func (s *ESISource) FetchHistory(ctx context.Context, regionID, typeID int, rng history.Range) (model.HistorySeries, error) {
	entries, err := s.client.GetMarketHistory(ctx, regionID, typeID)
	if err != nil {
		return model.HistorySeries{}, err
	}

	rows, err := ESIToHistoryRows(entries)
	if err != nil {
		return model.HistorySeries{}, fmt.Errorf("convert esi history: %w", err)
	}

	series := rng.Filter(model.HistorySeries{Rows: rows})
	series.SortDescending()
	return series, nil
}
