package seeder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/prosper-api/internal/history"
	"github.com/rickgao/prosper-api/internal/metrics"
	"github.com/rickgao/prosper-api/internal/splitcache"
)

// ESIMaxDays is the longest history ESI serves.
const ESIMaxDays = 400

// TypeSource lists type ids to seed when none are configured.
type TypeSource interface {
	ArchiveTypeIDs() []int
}

// Config holds seeder configuration.
type Config struct {
	Source      history.Mode
	Regions     []int
	Types       []int
	RangeDays   int           // Days of history to fetch per pair (default: 700)
	Concurrency int           // Max concurrent fetches (default: 4)
	Timeout     time.Duration // Per-pair timeout (default: 2m)
	Force       bool          // Replace cached rows instead of upserting
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Source:      history.ModeESI,
		RangeDays:   700,
		Concurrency: 4,
		Timeout:     2 * time.Minute,
	}
}

// Result summarises one seeding run.
type Result struct {
	Pairs    int
	Seeded   int
	Empty    int
	Failed   int
	Rows     int
	Duration time.Duration
}

// Seeder copies upstream history into the split cache.
type Seeder struct {
	cfg     Config
	fetcher history.Fetcher
	store   splitcache.Store
	types   TypeSource
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a Seeder. types may be nil when cfg.Types is always set.
func New(cfg Config, fetcher history.Fetcher, store splitcache.Store, types TypeSource, logger *slog.Logger) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Seeder{
		cfg:     cfg,
		fetcher: fetcher,
		store:   store,
		types:   types,
		logger:  logger,
		now:     time.Now,
	}
}

type pair struct {
	regionID int
	typeID   int
}

func (s *Seeder) pairs() []pair {
	types := s.cfg.Types
	if len(types) == 0 && s.types != nil {
		types = s.types.ArchiveTypeIDs()
	}

	out := make([]pair, 0, len(s.cfg.Regions)*len(types))
	for _, regionID := range s.cfg.Regions {
		for _, typeID := range types {
			out = append(out, pair{regionID: regionID, typeID: typeID})
		}
	}
	return out
}

// Run seeds every configured pair once. Failed pairs do not stop the run;
// their errors are returned together once every pair has been tried.
func (s *Seeder) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	pairs := s.pairs()
	source := s.cfg.Source.String()

	if s.cfg.Source == history.ModeESI && s.cfg.RangeDays > ESIMaxDays {
		s.logger.Warn("esi only returns a limited history",
			"max_days", ESIMaxDays,
			"range_days", s.cfg.RangeDays,
		)
	}

	var (
		mu     sync.Mutex
		errs   *multierror.Error
		seeded atomic.Int64
		empty  atomic.Int64
		rows   atomic.Int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)

	for _, p := range pairs {
		p := p
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			n, err := s.seedPair(gctx, p)
			if err != nil {
				metrics.RecordSeederFailure(source)
				s.logger.Warn("failed to seed pair",
					"region_id", p.regionID,
					"type_id", p.typeID,
					"error", err,
				)
				mu.Lock()
				errs = multierror.Append(errs, fmt.Errorf("region %d type %d: %w", p.regionID, p.typeID, err))
				mu.Unlock()
				return nil
			}
			if n == 0 {
				empty.Add(1)
				return nil
			}
			metrics.RecordSeederWrite(source, n)
			seeded.Add(1)
			rows.Add(int64(n))
			return nil
		})
	}
	g.Wait()

	res := Result{
		Pairs:    len(pairs),
		Seeded:   int(seeded.Load()),
		Empty:    int(empty.Load()),
		Rows:     int(rows.Load()),
		Duration: time.Since(start),
	}
	if errs != nil {
		res.Failed = errs.Len()
	}

	s.logger.Info("seed run complete",
		"source", source,
		"pairs", res.Pairs,
		"seeded", res.Seeded,
		"empty", res.Empty,
		"failed", res.Failed,
		"rows", res.Rows,
		"duration", res.Duration,
	)

	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, errs.ErrorOrNil()
}

// seedPair fetches and stores a single pair, returning the rows written.
func (s *Seeder) seedPair(ctx context.Context, p pair) (int, error) {
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	now := s.now()
	series, err := s.fetcher.FetchHistory(ctx, p.regionID, p.typeID, history.LastDays(now, s.cfg.RangeDays))
	if err != nil {
		return 0, fmt.Errorf("fetch history: %w", err)
	}
	if series.Len() == 0 {
		s.logger.Debug("no history to seed", "region_id", p.regionID, "type_id", p.typeID)
		return 0, nil
	}

	meta := splitcache.WriteMeta{Source: s.cfg.Source.String(), CachedAt: now}
	if s.cfg.Force {
		err = s.store.Replace(ctx, p.regionID, p.typeID, series.Rows, meta)
	} else {
		err = s.store.Append(ctx, p.regionID, p.typeID, series.Rows, meta)
	}
	if err != nil {
		return 0, fmt.Errorf("write split cache: %w", err)
	}
	return series.Len(), nil
}
