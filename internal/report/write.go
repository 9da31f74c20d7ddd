package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/rickgao/prosper-api/internal/model"
)

var (
	ohlcHeader     = []string{"date", "open", "high", "low", "close", "volume"}
	forecastHeader = []string{"date", "avgPrice", "yhat", "yhat_low", "yhat_high", "prediction"}
)

// OHLCRecord is the JSON shape of one OHLC row.
type OHLCRecord struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// ForecastRecord is the JSON shape of one forecast row. AvgPrice is null on
// predicted days.
type ForecastRecord struct {
	Date       string   `json:"date"`
	AvgPrice   *float64 `json:"avgPrice"`
	Yhat       float64  `json:"yhat"`
	YhatLow    float64  `json:"yhat_low"`
	YhatHigh   float64  `json:"yhat_high"`
	Prediction bool     `json:"prediction"`
}

// OHLCRecords converts rows to JSON records, formatting dates with layout.
func OHLCRecords(rows []model.OHLCRow, layout string) []OHLCRecord {
	out := make([]OHLCRecord, len(rows))
	for i, r := range rows {
		out[i] = OHLCRecord{
			Date:   r.Date.Format(layoutOrDefault(layout)),
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume,
		}
	}
	return out
}

// ForecastRecords converts rows to JSON records, formatting dates with layout.
func ForecastRecords(rows []model.ForecastRow, layout string) []ForecastRecord {
	out := make([]ForecastRecord, len(rows))
	for i, r := range rows {
		out[i] = ForecastRecord{
			Date:       r.Date.Format(layoutOrDefault(layout)),
			AvgPrice:   r.AvgPrice,
			Yhat:       r.Yhat,
			YhatLow:    r.YhatLow,
			YhatHigh:   r.YhatHigh,
			Prediction: r.Prediction,
		}
	}
	return out
}

// WriteOHLC encodes rows in format f.
func WriteOHLC(w io.Writer, f Format, rows []model.OHLCRow, layout string) error {
	switch f {
	case FormatCSV:
		return WriteOHLCCSV(w, rows, layout)
	case FormatJSON:
		return json.NewEncoder(w).Encode(OHLCRecords(rows, layout))
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, string(f))
	}
}

// WriteForecast encodes rows in format f.
func WriteForecast(w io.Writer, f Format, rows []model.ForecastRow, layout string) error {
	switch f {
	case FormatCSV:
		return WriteForecastCSV(w, rows, layout)
	case FormatJSON:
		return json.NewEncoder(w).Encode(ForecastRecords(rows, layout))
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, string(f))
	}
}

// WriteOHLCCSV writes rows as CSV with a header line.
func WriteOHLCCSV(w io.Writer, rows []model.OHLCRow, layout string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ohlcHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range rows {
		rec := []string{
			r.Date.Format(layoutOrDefault(layout)),
			formatFloat(r.Open),
			formatFloat(r.High),
			formatFloat(r.Low),
			formatFloat(r.Close),
			formatFloat(r.Volume),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteForecastCSV writes rows as CSV with a header line. Predicted days leave
// avgPrice empty.
func WriteForecastCSV(w io.Writer, rows []model.ForecastRow, layout string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(forecastHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range rows {
		avg := ""
		if r.AvgPrice != nil {
			avg = formatFloat(*r.AvgPrice)
		}
		rec := []string{
			r.Date.Format(layoutOrDefault(layout)),
			avg,
			formatFloat(r.Yhat),
			formatFloat(r.YhatLow),
			formatFloat(r.YhatHigh),
			strconv.FormatBool(r.Prediction),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func layoutOrDefault(layout string) string {
	if layout == "" {
		return model.DefaultDateLayout
	}
	return layout
}
