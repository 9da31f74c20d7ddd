package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/rickgao/prosper-api/internal/history"
	"github.com/rickgao/prosper-api/internal/model"
)

// DefaultEMDDays is the window requested when a range has no lower bound.
const DefaultEMDDays = 365

// ErrEMDResponse is returned when EMD answers 200 with an error payload.
var ErrEMDResponse = errors.New("emd error response")

// GetItemHistory fetches EMD item_history2 rows for the last days days.
// charName identifies the caller to EMD.
func (c *Client) GetItemHistory(ctx context.Context, regionID, typeID, days int, charName string) ([]EMDHistoryRow, error) {
	query := url.Values{}
	query.Set("region_ids", strconv.Itoa(regionID))
	query.Set("type_ids", strconv.Itoa(typeID))
	query.Set("days", strconv.Itoa(days))
	if charName != "" {
		query.Set("char_name", charName)
	}

	body, err := c.doWithRetry(ctx, http.MethodGet, "/api/item_history2.json", query)
	if err != nil {
		return nil, fmt.Errorf("get emd history region=%d type=%d: %w", regionID, typeID, err)
	}

	rows, err := parseEMDRows(body)
	if err != nil {
		return nil, fmt.Errorf("get emd history region=%d type=%d: %w", regionID, typeID, err)
	}
	return rows, nil
}

// parseEMDRows collapses the {"row": {...}} envelope around every result.
func parseEMDRows(body []byte) ([]EMDHistoryRow, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("unmarshal response: invalid json")
	}
	if msg := gjson.GetBytes(body, "emd.error"); msg.Exists() {
		return nil, fmt.Errorf("%w: %s", ErrEMDResponse, msg.String())
	}

	raw := gjson.GetBytes(body, "emd.result.#.row")
	if !raw.Exists() || !raw.IsArray() {
		return nil, nil
	}

	var rows []EMDHistoryRow
	if err := json.Unmarshal([]byte(raw.Raw), &rows); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return rows, nil
}

// EMDSource serves history from eve-marketdata.com.
type EMDSource struct {
	client   *Client
	charName string
}

// NewEMDSource creates a history.Fetcher over an EMD client.
func NewEMDSource(client *Client, charName string) *EMDSource {
	return &EMDSource{client: client, charName: charName}
}

// FetchHistory implements history.Fetcher.
func (s *EMDSource) FetchHistory(ctx context.Context, regionID, typeID int, rng history.Range) (model.HistorySeries, error) {
	days := rng.Days()
	if days <= 0 {
		days = DefaultEMDDays
	}

	result, err := s.client.GetItemHistory(ctx, regionID, typeID, days, s.charName)
	if err != nil {
		return model.HistorySeries{}, err
	}

	rows, err := EMDToHistoryRows(result)
	if err != nil {
		return model.HistorySeries{}, fmt.Errorf("convert emd history: %w", err)
	}

	series := rng.Filter(model.HistorySeries{Rows: rows})
	series.SortDescending()
	return series, nil
}
