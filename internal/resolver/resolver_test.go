package resolver

import (
	"context"
	"errors"
	"math"
	"net/http"
	"testing"
	"time"

	"github.com/rickgao/prosper-api/internal/api"
	"github.com/rickgao/prosper-api/internal/history"
	"github.com/rickgao/prosper-api/internal/metrics"
	"github.com/rickgao/prosper-api/internal/model"
	"github.com/rickgao/prosper-api/internal/split"
	"github.com/rickgao/prosper-api/internal/splitcache"
)

const region = 10000002

var testNow = time.Date(2017, 7, 1, 12, 0, 0, 0, time.UTC)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

// demoSplit is 34 -> 35, ten days before testNow, prices divided by 10.
func demoSplit() *split.Record {
	return &split.Record{
		TypeID:     35,
		TypeName:   "DEMO_SPLIT",
		OriginalID: 34,
		NewID:      35,
		SplitDate:  day("2017-06-21"),
		Direction:  split.Divide,
		Rate:       10,
	}
}

// dailyRows builds one row per day from first to last inclusive.
func dailyRows(first, last string, price, volume float64) []model.HistoryRow {
	var rows []model.HistoryRow
	for d := day(first); !d.After(day(last)); d = d.AddDate(0, 0, 1) {
		rows = append(rows, model.HistoryRow{
			Date:      d,
			AvgPrice:  price,
			HighPrice: price * 1.1,
			LowPrice:  price * 0.9,
			Volume:    volume,
			Orders:    volume / 1000,
		})
	}
	return rows
}

// fakeSource serves fixed rows per type id, filtered by range, and records calls.
type fakeSource struct {
	rows  map[int][]model.HistoryRow
	err   error
	calls []int
}

func (f *fakeSource) Fetch(_ context.Context, _ history.Mode, _ int, typeID int, rng history.Range) (model.HistorySeries, error) {
	f.calls = append(f.calls, typeID)
	if f.err != nil {
		return model.HistorySeries{}, f.err
	}
	series := rng.Filter(model.HistorySeries{Rows: f.rows[typeID]})
	series.SortDescending()
	return series, nil
}

// failingStore fails the test if the archive is consulted.
type failingStore struct {
	splitcache.Store
	t *testing.T
}

func (s failingStore) Fetch(context.Context, int, int, *time.Time) (model.HistorySeries, error) {
	s.t.Fatal("archive should not be fetched")
	return model.HistorySeries{}, nil
}

type fixture struct {
	source *fakeSource
	store  *splitcache.MemoryStore
	res    *Resolver
}

func newFixture(t *testing.T, rec *split.Record) *fixture {
	t.Helper()

	source := &fakeSource{rows: map[int][]model.HistoryRow{
		// live data under the new id starts on the split date
		35: dailyRows("2017-06-21", "2017-06-30", 0.5, 2e7),
		// live data under the original id only exists for unsplit records
		34: dailyRows("2017-06-01", "2017-06-30", 5, 2e6),
	}}

	store := splitcache.NewMemoryStore()
	err := store.Append(context.Background(), region, 34,
		dailyRows("2017-05-01", "2017-06-21", 4, 1e6), splitcache.WriteMeta{Source: "esi"})
	if err != nil {
		t.Fatalf("seed archive: %v", err)
	}

	res := New(split.NewRegistry(rec), source, store, WithClock(func() time.Time { return testNow }))
	return &fixture{source: source, store: store, res: res}
}

func assertUniqueDescending(t *testing.T, series model.HistorySeries) {
	t.Helper()
	for i := 1; i < len(series.Rows); i++ {
		if !series.Rows[i-1].Date.After(series.Rows[i].Date) {
			t.Fatalf("rows %d/%d not strictly descending: %v, %v",
				i-1, i, series.Rows[i-1].Date, series.Rows[i].Date)
		}
	}
}

func approx(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9*math.Max(1, math.Abs(b))
}

func TestResolve_ForwardSplitQueryNewID(t *testing.T) {
	f := newFixture(t, demoSplit())
	rng := history.LastDays(testNow, 17) // 2017-06-15 .. 2017-07-01

	series, err := f.res.Resolve(context.Background(), region, 35, history.ModeESI, rng)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if len(f.source.calls) != 1 || f.source.calls[0] != 35 {
		t.Errorf("live fetch calls = %v, want [35]", f.source.calls)
	}

	// 10 live days (06-21..06-30) plus 6 archive days (06-15..06-20)
	if series.Len() != 16 {
		t.Fatalf("Len = %d, want 16", series.Len())
	}
	assertUniqueDescending(t, series)

	for _, row := range series.Rows {
		if !row.Date.Before(day("2017-06-21")) {
			if row.AvgPrice != 0.5 || row.Volume != 2e7 {
				t.Errorf("%s: live row modified: %+v", row.Date.Format("2006-01-02"), row)
			}
			continue
		}
		if !approx(row.AvgPrice, 0.4) || !approx(row.HighPrice, 0.44) || !approx(row.LowPrice, 0.36) {
			t.Errorf("%s: archive prices not divided by 10: %+v", row.Date.Format("2006-01-02"), row)
		}
		if !approx(row.Volume, 1e7) || !approx(row.Orders, 1e4) {
			t.Errorf("%s: archive volume not multiplied by 10: %+v", row.Date.Format("2006-01-02"), row)
		}
	}

	if got := series.Rows[len(series.Rows)-1].Date; !got.Equal(day("2017-06-15")) {
		t.Errorf("oldest row = %v, want 2017-06-15 (range lower bound)", got)
	}
	if series.DateLayout != "2006-01-02" {
		t.Errorf("DateLayout = %q", series.DateLayout)
	}
}

func TestResolve_DirectionCorrectness(t *testing.T) {
	rec := demoSplit()
	f := newFixture(t, rec)
	store := splitcache.NewMemoryStore()
	_ = store.Append(context.Background(), region, 34,
		[]model.HistoryRow{{Date: day("2017-06-20"), AvgPrice: 3.5, HighPrice: 3.5, LowPrice: 3.5, Volume: 1_000_000}},
		splitcache.WriteMeta{})
	f.res.store = store

	series, err := f.res.Resolve(context.Background(), region, 35, history.ModeESI, history.Range{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	var found bool
	for _, row := range series.Rows {
		if row.Date.Equal(day("2017-06-20")) {
			found = true
			if !approx(row.AvgPrice, 0.35) {
				t.Errorf("AvgPrice = %v, want 0.35", row.AvgPrice)
			}
			if !approx(row.Volume, 10_000_000) {
				t.Errorf("Volume = %v, want 10000000", row.Volume)
			}
		}
	}
	if !found {
		t.Fatal("archive row missing from result")
	}
}

func TestResolve_QueryOriginalID(t *testing.T) {
	f := newFixture(t, demoSplit())
	rng := history.LastDays(testNow, 17)

	series, err := f.res.Resolve(context.Background(), region, 34, history.ModeESI, rng)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if len(f.source.calls) != 1 || f.source.calls[0] != 35 {
		t.Errorf("live fetch calls = %v, want [35] (split already happened)", f.source.calls)
	}
	if series.Len() != 16 {
		t.Fatalf("Len = %d, want 16", series.Len())
	}
	assertUniqueDescending(t, series)

	for _, row := range series.Rows {
		if !row.Date.Before(day("2017-06-21")) {
			if !approx(row.AvgPrice, 5) || !approx(row.Volume, 2e6) {
				t.Errorf("%s: live row not converted to original units: %+v", row.Date.Format("2006-01-02"), row)
			}
			continue
		}
		if row.AvgPrice != 4 || row.Volume != 1e6 {
			t.Errorf("%s: archive row modified: %+v", row.Date.Format("2006-01-02"), row)
		}
	}
}

func TestResolve_EscapeWindowAfterSplit(t *testing.T) {
	f := newFixture(t, demoSplit())
	f.res.store = failingStore{t: t}

	rng := history.Range{From: day("2017-06-25"), To: day("2017-07-01")}
	series, err := f.res.Resolve(context.Background(), region, 35, history.ModeESI, rng)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if series.Len() != 6 {
		t.Errorf("Len = %d, want 6 raw live rows", series.Len())
	}
	for _, row := range series.Rows {
		if row.AvgPrice != 0.5 {
			t.Errorf("live row modified: %+v", row)
		}
	}
}

func TestResolve_EscapeFutureSplit(t *testing.T) {
	rec := demoSplit()
	rec.SplitDate = testNow.AddDate(0, 0, 10)
	rec.Direction = split.Multiply
	f := newFixture(t, rec)
	f.res.store = failingStore{t: t}

	ranges := []history.Range{
		{},
		history.LastDays(testNow, 5),
		history.LastDays(testNow, 400),
	}
	for _, rng := range ranges {
		f.source.calls = nil
		series, err := f.res.Resolve(context.Background(), region, 35, history.ModeESI, rng)
		if err != nil {
			t.Fatalf("Resolve(%+v): %v", rng, err)
		}
		if len(f.source.calls) != 1 || f.source.calls[0] != 34 {
			t.Errorf("live fetch calls = %v, want [34] (split pending)", f.source.calls)
		}
		want := rng.Filter(model.HistorySeries{Rows: f.source.rows[34]})
		if series.Len() != want.Len() {
			t.Errorf("Len = %d, want %d", series.Len(), want.Len())
		}
		for _, row := range series.Rows {
			if row.AvgPrice != 5 {
				t.Errorf("pending split modified live data: %+v", row)
			}
		}
	}
}

func TestResolve_EmptyLiveFetchUsesArchive(t *testing.T) {
	f := newFixture(t, demoSplit())
	f.source.rows[35] = nil

	series, err := f.res.Resolve(context.Background(), region, 35, history.ModeESI,
		history.Range{From: day("2017-06-10"), To: day("2017-06-30")})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	// archive 06-10..06-21
	if series.Len() != 12 {
		t.Fatalf("Len = %d, want 12", series.Len())
	}
	if !approx(series.Rows[0].AvgPrice, 0.4) {
		t.Errorf("AvgPrice = %v, want archive converted to 0.4", series.Rows[0].AvgPrice)
	}
}

func TestResolve_LiveWinsOverlap(t *testing.T) {
	f := newFixture(t, demoSplit())
	// archive holds 06-21 as well; live must win that date
	series, err := f.res.Resolve(context.Background(), region, 35, history.ModeESI, history.Range{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	assertUniqueDescending(t, series)

	for _, row := range series.Rows {
		if row.Date.Equal(day("2017-06-21")) && row.AvgPrice != 0.5 {
			t.Errorf("split day row = %+v, want live value", row)
		}
	}
	// 10 live + archive 05-01..06-20 (51 days)
	if series.Len() != 61 {
		t.Errorf("Len = %d, want 61", series.Len())
	}
}

func TestResolve_EmptyArchive(t *testing.T) {
	f := newFixture(t, demoSplit())
	f.res.store = splitcache.NewMemoryStore()

	series, err := f.res.Resolve(context.Background(), region, 35, history.ModeESI, history.LastDays(testNow, 30))
	if !errors.Is(err, split.ErrNoSplitDataFound) {
		t.Fatalf("error = %v, want ErrNoSplitDataFound", err)
	}
	if series.Len() != 0 {
		t.Errorf("partial result returned: %d rows", series.Len())
	}

	var splitErr *split.Error
	if !errors.As(err, &splitErr) || splitErr.Status != 404 {
		t.Errorf("error status = %+v, want 404", splitErr)
	}
}

func TestResolve_NoSplitConfig(t *testing.T) {
	f := newFixture(t, demoSplit())

	_, err := f.res.Resolve(context.Background(), region, 36, history.ModeESI, history.Range{})
	if !errors.Is(err, split.ErrNoSplitConfigFound) {
		t.Fatalf("error = %v, want ErrNoSplitConfigFound", err)
	}
	if len(f.source.calls) != 0 {
		t.Errorf("source called %v times for unregistered id", f.source.calls)
	}
}

func TestResolve_MismatchedTypeIDs(t *testing.T) {
	// type_id 36 is registered against the 34 -> 35 split it is not part of
	rec := demoSplit()
	rec.TypeID = 36
	f := newFixture(t, rec)

	_, err := f.res.Resolve(context.Background(), region, 36, history.ModeESI, history.LastDays(testNow, 30))
	if !errors.Is(err, split.ErrMismatchedTypeIDs) {
		t.Fatalf("error = %v, want ErrMismatchedTypeIDs", err)
	}

	var splitErr *split.Error
	if !errors.As(err, &splitErr) || splitErr.Status != 500 {
		t.Errorf("error status = %+v, want 500", splitErr)
	}
}

func TestResolve_DegenerateRecordPrefersNewID(t *testing.T) {
	rec := &split.Record{TypeID: 34, OriginalID: 34, NewID: 34, SplitDate: day("2017-06-21"), Direction: split.Divide, Rate: 10}
	f := newFixture(t, rec)

	series, err := f.res.Resolve(context.Background(), region, 34, history.ModeESI,
		history.Range{From: day("2017-06-19"), To: day("2017-06-22")})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	// live for 34 covers every day in range, so nothing comes from the archive
	for _, row := range series.Rows {
		if row.AvgPrice != 5 {
			t.Errorf("row = %+v, want untouched live data", row)
		}
	}
}

func TestResolve_FetchErrorPropagates(t *testing.T) {
	f := newFixture(t, demoSplit())
	upstream := errors.New("connection reset")
	f.source.err = upstream

	_, err := f.res.Resolve(context.Background(), region, 35, history.ModeESI, history.Range{})
	if !errors.Is(err, upstream) {
		t.Errorf("error = %v, want wrapped upstream error", err)
	}
}

func TestHistory_UpstreamErrorsCountedOnce(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want float64
	}{
		{name: "server error", err: &api.APIError{StatusCode: http.StatusServiceUnavailable}, want: 1},
		{name: "not found", err: &api.APIError{StatusCode: http.StatusNotFound}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, demoSplit())
			f.source.err = tt.err

			before := metrics.UpstreamErrors("esi")
			if _, err := f.res.History(context.Background(), region, 36, history.ModeESI, history.Range{}); err == nil {
				t.Fatal("History: want error")
			}
			if got := metrics.UpstreamErrors("esi") - before; got != tt.want {
				t.Errorf("upstream errors delta = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolve_EMDDateLayout(t *testing.T) {
	f := newFixture(t, demoSplit())

	series, err := f.res.Resolve(context.Background(), region, 35, history.ModeEMD, history.LastDays(testNow, 17))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if series.DateLayout != history.EMDDateLayout {
		t.Errorf("DateLayout = %q, want %q", series.DateLayout, history.EMDDateLayout)
	}
}

func TestHistory_Passthrough(t *testing.T) {
	f := newFixture(t, demoSplit())
	f.source.rows[36] = dailyRows("2017-06-01", "2017-06-05", 7, 100)
	f.res.store = failingStore{t: t}

	series, err := f.res.History(context.Background(), region, 36, history.ModeEMD, history.Range{})
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if series.Len() != 5 {
		t.Errorf("Len = %d, want 5", series.Len())
	}
	if series.DateLayout != history.EMDDateLayout {
		t.Errorf("DateLayout = %q, want EMD layout", series.DateLayout)
	}
}

func TestHistory_RegisteredIDIsStitched(t *testing.T) {
	f := newFixture(t, demoSplit())

	series, err := f.res.History(context.Background(), region, 35, history.ModeESI, history.LastDays(testNow, 17))
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if series.Len() != 16 {
		t.Errorf("Len = %d, want 16 stitched rows", series.Len())
	}
}

func TestMerge(t *testing.T) {
	live := model.HistorySeries{Rows: []model.HistoryRow{
		{Date: day("2017-06-22"), AvgPrice: 1},
		{Date: day("2017-06-21"), AvgPrice: 1},
		{Date: day("2017-06-21"), AvgPrice: 99}, // duplicate upstream row
	}}
	archive := model.HistorySeries{Rows: []model.HistoryRow{
		{Date: day("2017-06-23"), AvgPrice: 2}, // after split, dropped
		{Date: day("2017-06-21"), AvgPrice: 2}, // overlaps live, dropped
		{Date: day("2017-06-20"), AvgPrice: 2},
		{Date: day("2017-06-10"), AvgPrice: 2}, // before range, dropped
	}}

	got := merge(live, archive, day("2017-06-21"), history.Range{From: day("2017-06-15")})

	want := []struct {
		date  string
		price float64
	}{
		{"2017-06-22", 1},
		{"2017-06-21", 1},
		{"2017-06-20", 2},
	}
	if got.Len() != len(want) {
		t.Fatalf("Len = %d, want %d: %+v", got.Len(), len(want), got.Rows)
	}
	for i, w := range want {
		if !got.Rows[i].Date.Equal(day(w.date)) || got.Rows[i].AvgPrice != w.price {
			t.Errorf("row %d = %+v, want %s @ %v", i, got.Rows[i], w.date, w.price)
		}
	}
}
