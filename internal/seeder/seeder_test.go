package seeder

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rickgao/prosper-api/internal/history"
	"github.com/rickgao/prosper-api/internal/model"
	"github.com/rickgao/prosper-api/internal/splitcache"
)

var testNow = time.Date(2017, 7, 1, 6, 0, 0, 0, time.UTC)

func rowsFor(days ...int) model.HistorySeries {
	var s model.HistorySeries
	for _, d := range days {
		s.Rows = append(s.Rows, model.HistoryRow{
			Date:     time.Date(2017, 6, d, 0, 0, 0, 0, time.UTC),
			AvgPrice: float64(d),
		})
	}
	s.SortDescending()
	return s
}

func newTestSeeder(cfg Config, fetcher history.Fetcher, store splitcache.Store, types TypeSource) *Seeder {
	s := New(cfg, fetcher, store, types, nil)
	s.now = func() time.Time { return testNow }
	return s
}

func TestSeeder_Run(t *testing.T) {
	fetcher := history.FetcherFunc(func(_ context.Context, regionID, typeID int, _ history.Range) (model.HistorySeries, error) {
		switch {
		case regionID == 2 && typeID == 35:
			return model.HistorySeries{}, errors.New("esi 503")
		case regionID == 1 && typeID == 35:
			return model.HistorySeries{}, nil
		default:
			return rowsFor(1, 2, 3), nil
		}
	})
	store := splitcache.NewMemoryStore()

	cfg := DefaultConfig()
	cfg.Regions = []int{1, 2}
	cfg.Types = []int{34, 35}

	res, err := newTestSeeder(cfg, fetcher, store, nil).Run(context.Background())
	if err == nil {
		t.Fatal("expected aggregated error")
	}
	if !strings.Contains(err.Error(), "region 2 type 35") {
		t.Errorf("error = %q, want failing pair named", err.Error())
	}

	want := Result{Pairs: 4, Seeded: 2, Empty: 1, Failed: 1, Rows: 6}
	res.Duration = 0
	if res != want {
		t.Errorf("result = %+v, want %+v", res, want)
	}

	if n := store.Len(1, 34); n != 3 {
		t.Errorf("store rows for 1/34 = %d, want 3", n)
	}
	if n := store.Len(2, 35); n != 0 {
		t.Errorf("store rows for 2/35 = %d, want 0", n)
	}
}

func TestSeeder_ForceReplaces(t *testing.T) {
	tests := []struct {
		name  string
		force bool
		want  int
	}{
		{"append keeps later rows", false, 10},
		{"force drops rows from the earliest fetched date", true, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := splitcache.NewMemoryStore()
			ctx := context.Background()
			if err := store.Append(ctx, 1, 34, rowsFor(1, 2, 3, 4, 5, 6, 7, 8, 9, 10).Rows, splitcache.WriteMeta{Source: "emd"}); err != nil {
				t.Fatalf("Append: %v", err)
			}

			fetcher := history.FetcherFunc(func(context.Context, int, int, history.Range) (model.HistorySeries, error) {
				return rowsFor(5, 6, 7), nil
			})

			cfg := DefaultConfig()
			cfg.Regions = []int{1}
			cfg.Types = []int{34}
			cfg.Force = tt.force

			if _, err := newTestSeeder(cfg, fetcher, store, nil).Run(ctx); err != nil {
				t.Fatalf("Run: %v", err)
			}
			if n := store.Len(1, 34); n != tt.want {
				t.Errorf("rows = %d, want %d", n, tt.want)
			}
		})
	}
}

type fixedTypes []int

func (f fixedTypes) ArchiveTypeIDs() []int { return f }

func TestSeeder_TypesFromRegistry(t *testing.T) {
	var (
		mu   sync.Mutex
		seen = map[int]bool{}
		rng  history.Range
	)
	fetcher := history.FetcherFunc(func(_ context.Context, _, typeID int, r history.Range) (model.HistorySeries, error) {
		mu.Lock()
		defer mu.Unlock()
		seen[typeID] = true
		rng = r
		return rowsFor(1), nil
	})

	cfg := DefaultConfig()
	cfg.Source = history.ModeEMD
	cfg.Regions = []int{10000002}
	cfg.RangeDays = 30

	res, err := newTestSeeder(cfg, fetcher, splitcache.NewMemoryStore(), fixedTypes{34, 29668}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Pairs != 2 || !seen[34] || !seen[29668] {
		t.Errorf("pairs = %d, seen = %v", res.Pairs, seen)
	}
	if rng.Days() != 30 {
		t.Errorf("range = %d days, want 30", rng.Days())
	}
	if !rng.To.Equal(model.TruncateDate(testNow)) {
		t.Errorf("range end = %v, want %v", rng.To, model.TruncateDate(testNow))
	}
}

func TestSeeder_BoundedConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	fetcher := history.FetcherFunc(func(context.Context, int, int, history.Range) (model.HistorySeries, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		return rowsFor(1), nil
	})

	cfg := DefaultConfig()
	cfg.Concurrency = 2
	cfg.Regions = []int{1, 2, 3, 4}
	cfg.Types = []int{34, 35}

	if _, err := newTestSeeder(cfg, fetcher, splitcache.NewMemoryStore(), nil).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if p := peak.Load(); p > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", p)
	}
}

func TestSeeder_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher := history.FetcherFunc(func(ctx context.Context, _, _ int, _ history.Range) (model.HistorySeries, error) {
		return model.HistorySeries{}, ctx.Err()
	})

	cfg := DefaultConfig()
	cfg.Regions = []int{1}
	cfg.Types = []int{34}

	if _, err := newTestSeeder(cfg, fetcher, splitcache.NewMemoryStore(), nil).Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestScheduler(t *testing.T) {
	s := NewScheduler(nil)

	if err := s.Add("bad", "every so often", func(context.Context) error { return nil }); err == nil {
		t.Error("Add accepted a malformed spec")
	}

	var runs atomic.Int32
	if err := s.Add("tick", "@every 1s", func(context.Context) error {
		runs.Add(1)
		return nil
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for runs.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if runs.Load() == 0 {
		t.Error("scheduled job never ran")
	}
}
