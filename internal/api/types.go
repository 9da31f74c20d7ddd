package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ESIHistoryEntry from GET /markets/{region_id}/history/
type ESIHistoryEntry struct {
	Date       string  `json:"date"`
	Average    float64 `json:"average"`
	Highest    float64 `json:"highest"`
	Lowest     float64 `json:"lowest"`
	Volume     float64 `json:"volume"`
	OrderCount float64 `json:"order_count"`
}

// ESIType from GET /universe/types/{type_id}/
type ESIType struct {
	TypeID    int    `json:"type_id"`
	Name      string `json:"name"`
	Published bool   `json:"published"`
}

// ESIRegion from GET /universe/regions/{region_id}/
type ESIRegion struct {
	RegionID int    `json:"region_id"`
	Name     string `json:"name"`
}

// EMDHistoryRow is one day of EMD history, as found under emd.result[].row in
// GET /api/item_history2.json. EMD encodes numbers as strings.
type EMDHistoryRow struct {
	TypeID    FlexFloat `json:"typeID"`
	RegionID  FlexFloat `json:"regionID"`
	Date      string    `json:"date"`
	LowPrice  FlexFloat `json:"lowPrice"`
	HighPrice FlexFloat `json:"highPrice"`
	AvgPrice  FlexFloat `json:"avgPrice"`
	Volume    FlexFloat `json:"volume"`
	Orders    FlexFloat `json:"orders"`
}

// CRESTHistoryResponse from GET /market/{region_id}/history/
type CRESTHistoryResponse struct {
	TotalCount int                 `json:"totalCount"`
	PageCount  int                 `json:"pageCount"`
	Items      []CRESTHistoryEntry `json:"items"`
}

// CRESTHistoryEntry is one day of CREST history.
type CRESTHistoryEntry struct {
	Date       string  `json:"date"`
	AvgPrice   float64 `json:"avgPrice"`
	HighPrice  float64 `json:"highPrice"`
	LowPrice   float64 `json:"lowPrice"`
	Volume     float64 `json:"volume"`
	OrderCount float64 `json:"orderCount"`
}

// FlexFloat decodes a JSON number or a numeric string.
type FlexFloat float64

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*f = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("parse number %q: %w", s, err)
		}
		*f = FlexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = FlexFloat(v)
	return nil
}
