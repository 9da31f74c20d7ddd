package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/prosper-api/internal/api"
	"github.com/rickgao/prosper-api/internal/apikey"
	"github.com/rickgao/prosper-api/internal/forecast"
	"github.com/rickgao/prosper-api/internal/history"
	"github.com/rickgao/prosper-api/internal/metrics"
	"github.com/rickgao/prosper-api/internal/model"
	"github.com/rickgao/prosper-api/internal/resolver"
	"github.com/rickgao/prosper-api/internal/split"
	"github.com/rickgao/prosper-api/internal/splitcache"
)

const (
	testRegion = 10000002
	testType   = 34
	testKey    = "good-key"
)

type fakeHistory struct {
	series model.HistorySeries
	err    error
	mode   history.Mode
}

func (f *fakeHistory) History(_ context.Context, _, _ int, mode history.Mode, _ history.Range) (model.HistorySeries, error) {
	f.mode = mode
	return f.series, f.err
}

type fakeValidator struct {
	err error
}

func (f fakeValidator) ValidateRegion(context.Context, int) error { return nil }

func (f fakeValidator) ValidateType(_ context.Context, typeID int) error {
	if typeID == 999999999 {
		return &api.APIError{StatusCode: http.StatusNotFound, Message: "type not found"}
	}
	return f.err
}

type fakeForecaster struct {
	rows      []model.ForecastRow
	err       error
	rangeDays int
}

func (f *fakeForecaster) Forecast(_ context.Context, _, _, rangeDays int) ([]model.ForecastRow, error) {
	f.rangeDays = rangeDays
	return f.rows, f.err
}

type fakeKeys struct{}

func (fakeKeys) Check(_ context.Context, key string) (*apikey.Key, error) {
	if key != testKey {
		return nil, apikey.ErrInvalidKey
	}
	return &apikey.Key{APIKey: key, UserName: "tester"}, nil
}

func day(n int) time.Time {
	return time.Date(2017, 6, n, 0, 0, 0, 0, time.UTC)
}

func threeDays() model.HistorySeries {
	return model.HistorySeries{Rows: []model.HistoryRow{
		{Date: day(3), AvgPrice: 12, HighPrice: 13, LowPrice: 11, Volume: 300},
		{Date: day(2), AvgPrice: 11, HighPrice: 12, LowPrice: 10, Volume: 200},
		{Date: day(1), AvgPrice: 10, HighPrice: 11, LowPrice: 9, Volume: 100},
	}}
}

type fixture struct {
	server    *Server
	history   *fakeHistory
	forecasts *fakeForecaster
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	f := &fixture{
		history:   &fakeHistory{series: threeDays()},
		forecasts: &fakeForecaster{},
	}
	if opts.OHLCSource == 0 {
		opts.OHLCSource = history.ModeESI
	}
	f.server = NewServer(Deps{
		History:   f.history,
		Validator: fakeValidator{},
		Forecasts: f.forecasts,
		Keys:      fakeKeys{},
		Splits:    split.NewHolder(nil, "", nil),
	}, opts, nil)
	return f
}

func (f *fixture) get(target string, userAgent bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if userAgent {
		req.Header.Set("User-Agent", "prosper-test")
	}
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error  string `json:"error"`
		Status int    `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, rec.Code, body.Status)
	return body.Error
}

func TestOHLC_CSV(t *testing.T) {
	f := newFixture(t, Options{})

	rec := f.get("/CREST/OHLC.csv?regionID=10000002&typeID=34", true)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "date,open,high,low,close,volume", lines[0])
	assert.Equal(t, "2017-06-02,10,12,10,11,200", lines[1])
	assert.Equal(t, "2017-06-03,11,13,11,12,300", lines[2])
	assert.Equal(t, history.ModeESI, f.history.mode)
}

func TestOHLC_JSON(t *testing.T) {
	f := newFixture(t, Options{})

	rec := f.get("/CREST/OHLC.json?regionID=10000002&typeID=34&source=emd", true)

	require.Equal(t, http.StatusOK, rec.Code)
	var rows []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, 10.0, rows[0]["open"])
	assert.Equal(t, 12.0, rows[1]["close"])
	assert.Equal(t, history.ModeEMD, f.history.mode)
}

func TestOHLC_RequestErrors(t *testing.T) {
	tests := []struct {
		name      string
		target    string
		userAgent bool
		want      int
	}{
		{"unsupported format", "/CREST/OHLC.xml?regionID=10000002&typeID=34", true, http.StatusMethodNotAllowed},
		{"missing region", "/CREST/OHLC.csv?typeID=34", true, http.StatusBadRequest},
		{"bad type", "/CREST/OHLC.csv?regionID=10000002&typeID=tritanium", true, http.StatusBadRequest},
		{"negative type", "/CREST/OHLC.csv?regionID=10000002&typeID=-34", true, http.StatusBadRequest},
		{"missing user agent", "/CREST/OHLC.csv?regionID=10000002&typeID=34", false, http.StatusBadRequest},
		{"unknown source", "/CREST/OHLC.csv?regionID=10000002&typeID=34&source=tinydb", true, http.StatusBadRequest},
		{"unknown type", "/CREST/OHLC.csv?regionID=10000002&typeID=999999999", true, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Options{})
			rec := f.get(tt.target, tt.userAgent)
			assert.Equal(t, tt.want, rec.Code)
			assert.NotEmpty(t, decodeError(t, rec))
		})
	}
}

func TestOHLC_HistoryErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		want    int
		message string
	}{
		{"no split data", split.NewError(split.KindNoSplitDataFound, "no archive for 34"), http.StatusNotFound, ""},
		{"mismatched ids", split.NewError(split.KindMismatchedTypeIDs, "bad mapping"), http.StatusInternalServerError, ""},
		{"upstream 404", &api.APIError{StatusCode: http.StatusNotFound}, http.StatusNotFound, ""},
		{"upstream 503", &api.APIError{StatusCode: http.StatusServiceUnavailable}, http.StatusBadGateway, ""},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, unhandledMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Options{})
			f.history.err = tt.err

			rec := f.get("/CREST/OHLC.json?regionID=10000002&typeID=34", true)

			assert.Equal(t, tt.want, rec.Code)
			msg := decodeError(t, rec)
			if tt.message != "" {
				assert.Equal(t, tt.message, msg)
			}
		})
	}
}

type failingSource struct{ err error }

func (s failingSource) Fetch(context.Context, history.Mode, int, int, history.Range) (model.HistorySeries, error) {
	return model.HistorySeries{}, s.err
}

func TestOHLC_UpstreamErrorCountedOnce(t *testing.T) {
	res := resolver.New(split.NewRegistry(), failingSource{
		err: &api.APIError{StatusCode: http.StatusServiceUnavailable},
	}, splitcache.NewMemoryStore())
	server := NewServer(Deps{
		History:   res,
		Validator: fakeValidator{},
		Forecasts: &fakeForecaster{},
		Keys:      fakeKeys{},
		Splits:    split.NewHolder(nil, "", nil),
	}, Options{OHLCSource: history.ModeESI}, nil)

	before := metrics.UpstreamErrors("esi")

	req := httptest.NewRequest(http.MethodGet, "/CREST/OHLC.json?regionID=10000002&typeID=36", nil)
	req.Header.Set("User-Agent", "prosper-test")
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, float64(1), metrics.UpstreamErrors("esi")-before)
}

func TestProphet(t *testing.T) {
	f := newFixture(t, Options{DefaultRange: 60})
	price := 4.5
	f.forecasts.rows = []model.ForecastRow{
		{Date: day(1), AvgPrice: &price, Yhat: 4.4, YhatLow: 4, YhatHigh: 4.8},
		{Date: day(2), Yhat: 4.6, YhatLow: 4.1, YhatHigh: 5.1, Prediction: true},
	}

	rec := f.get("/CREST/prophet.csv?regionID=10000002&typeID=34&api="+testKey, false)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 60, f.forecasts.rangeDays)
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "date,avgPrice,yhat,yhat_low,yhat_high,prediction", lines[0])
	assert.Equal(t, "2017-06-01,4.5,4.4,4,4.8,false", lines[1])
	assert.Equal(t, "2017-06-02,,4.6,4.1,5.1,true", lines[2])
}

func TestProphet_RangeAndHeaderKey(t *testing.T) {
	f := newFixture(t, Options{})

	req := httptest.NewRequest(http.MethodGet, "/CREST/prophet.json?regionID=10000002&typeID=34&range=120", nil)
	req.Header.Set("X-API-Key", testKey)
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 120, f.forecasts.rangeDays)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestProphet_Errors(t *testing.T) {
	tests := []struct {
		name   string
		target string
		err    error
		want   int
	}{
		{"missing key", "/CREST/prophet.csv?regionID=10000002&typeID=34", nil, http.StatusUnauthorized},
		{"bad key", "/CREST/prophet.csv?regionID=10000002&typeID=34&api=nope", nil, http.StatusUnauthorized},
		{"non-numeric range", "/CREST/prophet.csv?regionID=10000002&typeID=34&api=good-key&range=soon", nil, http.StatusBadRequest},
		{"range out of bounds", "/CREST/prophet.csv?regionID=10000002&typeID=34&api=good-key&range=365", forecast.ErrRangeOutOfBounds, http.StatusBadRequest},
		{"not enough data", "/CREST/prophet.csv?regionID=10000002&typeID=34&api=good-key", forecast.ErrNotEnoughData, http.StatusUnprocessableEntity},
		{"unsupported format", "/CREST/prophet.xml?regionID=10000002&typeID=34&api=good-key", nil, http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Options{})
			f.forecasts.err = tt.err

			rec := f.get(tt.target, true)

			assert.Equal(t, tt.want, rec.Code)
			decodeError(t, rec)
		})
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t, Options{})
	f.server.deps.Checks = map[string]HealthCheck{
		"postgres": func(context.Context) error { return nil },
	}

	rec := f.get("/health", false)
	require.Equal(t, http.StatusOK, rec.Code)

	var body healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "connected", body.Components["postgres"])

	f.server.deps.Checks["redis"] = func(context.Context) error { return errors.New("connection refused") }
	rec = f.get("/health", false)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func writeSplitFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "split_info.json")
	body := `[{"type_id": 35, "type_name": "Pyerite", "original_id": 34, "new_id": 35,
		"split_date": "2017-06-21", "bool_mult_div": "false", "split_rate": 10}]`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestReloadSplits(t *testing.T) {
	holder := split.NewHolder(nil, writeSplitFile(t), nil)
	srv := NewServer(Deps{Splits: holder}, Options{AdminToken: "s3cret"}, nil)

	post := func(token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/admin/splits/reload", nil)
		if token != "" {
			req.Header.Set("X-Admin-Token", token)
		}
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusForbidden, post("").Code)
	assert.Equal(t, http.StatusForbidden, post("guess").Code)
	assert.Equal(t, 0, holder.Current().Len())

	rec := post("s3cret")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"records": 1}`, rec.Body.String())
	assert.True(t, holder.Contains(34))
}

func TestReloadSplits_DisabledWithoutToken(t *testing.T) {
	f := newFixture(t, Options{})

	req := httptest.NewRequest(http.MethodPost, "/admin/splits/reload", nil)
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequestIDEchoed(t *testing.T) {
	f := newFixture(t, Options{})

	rec := f.get("/health", false)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rec = httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	assert.Equal(t, "req-123", rec.Header().Get(RequestIDHeader))
}

func TestRateLimit(t *testing.T) {
	f := newFixture(t, Options{RateLimit: 0.001, RateBurst: 1})

	assert.Equal(t, http.StatusOK, f.get("/health", false).Code)
	assert.Equal(t, http.StatusTooManyRequests, f.get("/health", false).Code)

	// a different client has its own bucket
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "198.51.100.7:4242"
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestIPRateLimiter_ForgetsOldClients(t *testing.T) {
	rl := NewIPRateLimiter(0.001, 1, 2, nil)

	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	rl.Allow("b")
	rl.Allow("c")

	// "a" was evicted and starts with a fresh bucket
	assert.True(t, rl.Allow("a"))
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{split.ErrNoSplitConfigFound, http.StatusNotFound},
		{split.ErrInvalidSplitConfig, http.StatusInternalServerError},
		{apikey.ErrInvalidKey, http.StatusUnauthorized},
		{badRequest("x"), http.StatusBadRequest},
		{context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		got, _ := errorStatus(tt.err)
		assert.Equal(t, tt.want, got, "error %v", tt.err)
	}
}
