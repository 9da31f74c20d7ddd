package api

import (
	"context"
	"fmt"
	"net/url"

	"github.com/rickgao/prosper-api/internal/history"
	"github.com/rickgao/prosper-api/internal/model"
)

// GetCRESTHistory fetches legacy CREST history for a type in a region.
func (c *Client) GetCRESTHistory(ctx context.Context, regionID, typeID int) (*CRESTHistoryResponse, error) {
	query := url.Values{}
	query.Set("type", fmt.Sprintf("%s/inventory/types/%d/", c.baseURL, typeID))

	var resp CRESTHistoryResponse
	path := fmt.Sprintf("/market/%d/history/", regionID)
	if err := c.get(ctx, path, query, &resp); err != nil {
		return nil, fmt.Errorf("get crest history region=%d type=%d: %w", regionID, typeID, err)
	}
	return &resp, nil
}

// CRESTSource serves history from the legacy CREST endpoint.
type CRESTSource struct {
	client *Client
}

// NewCRESTSource creates a history.Fetcher over a CREST client.
func NewCRESTSource(client *Client) *CRESTSource {
	return &CRESTSource{client: client}
}

// FetchHistory implements history.Fetcher.
func (s *CRESTSource) FetchHistory(ctx context.Context, regionID, typeID int, rng history.Range) (model.HistorySeries, error) {
	resp, err := s.client.GetCRESTHistory(ctx, regionID, typeID)
	if err != nil {
		return model.HistorySeries{}, err
	}

	rows, err := CRESTToHistoryRows(resp.Items)
	if err != nil {
		return model.HistorySeries{}, fmt.Errorf("convert crest history: %w", err)
	}

	series := rng.Filter(model.HistorySeries{Rows: rows})
	series.SortDescending()
	return series, nil
}
