package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rickgao/prosper-api/internal/api"
	"github.com/rickgao/prosper-api/internal/history"
	"github.com/rickgao/prosper-api/internal/metrics"
	"github.com/rickgao/prosper-api/internal/model"
	"github.com/rickgao/prosper-api/internal/split"
	"github.com/rickgao/prosper-api/internal/splitcache"
)

// Registry resolves item ids to split records. *split.Registry and *split.Holder
// both satisfy it.
type Registry interface {
	Lookup(id int) (*split.Record, bool)
}

// Source fetches history for a mode. history.Sources satisfies it.
type Source interface {
	Fetch(ctx context.Context, mode history.Mode, regionID, typeID int, rng history.Range) (model.HistorySeries, error)
}

// Resolver combines live and archived history across item splits.
type Resolver struct {
	registry Registry
	source   Source
	store    splitcache.Store
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClock overrides the wall clock used to decide whether a split has happened.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		r.now = now
	}
}

// New creates a Resolver.
func New(registry Registry, source Source, store splitcache.Store, opts ...Option) *Resolver {
	r := &Resolver{
		registry: registry,
		source:   source,
		store:    store,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// History returns history for typeID, stitched across a split when one is
// registered and passed through from the source otherwise.
func (r *Resolver) History(ctx context.Context, regionID, typeID int, mode history.Mode, rng history.Range) (model.HistorySeries, error) {
	if _, ok := r.registry.Lookup(typeID); ok {
		return r.Resolve(ctx, regionID, typeID, mode, rng)
	}

	series, err := r.fetchLive(ctx, mode, regionID, typeID, rng)
	if err != nil {
		metrics.RecordResolution(mode.String(), metrics.OutcomeError)
		return model.HistorySeries{}, err
	}
	metrics.RecordResolution(mode.String(), metrics.OutcomePassthrough)
	return series, nil
}

// Resolve returns split-adjusted history for a registered typeID. It fails with
// split.ErrNoSplitConfigFound when typeID has no split record.
func (r *Resolver) Resolve(ctx context.Context, regionID, typeID int, mode history.Mode, rng history.Range) (model.HistorySeries, error) {
	series, outcome, err := r.resolve(ctx, regionID, typeID, mode, rng)
	if err != nil {
		metrics.RecordResolution(mode.String(), metrics.OutcomeError)
		return model.HistorySeries{}, err
	}
	metrics.RecordResolution(mode.String(), outcome)
	return series, nil
}

func (r *Resolver) resolve(ctx context.Context, regionID, typeID int, mode history.Mode, rng history.Range) (model.HistorySeries, string, error) {
	rec, ok := r.registry.Lookup(typeID)
	if !ok {
		return model.HistorySeries{}, "", split.NewError(split.KindNoSplitConfigFound,
			"no split config for type %d", typeID)
	}

	now := r.now()
	liveID := rec.CurrentLiveID(now)

	live, err := r.fetchLive(ctx, mode, regionID, liveID, rng)
	if err != nil {
		return model.HistorySeries{}, "", err
	}

	if minDate, ok := live.MinDate(); ok && minDate.After(rec.SplitDate) {
		r.logger.Debug("history window starts after split",
			"type_id", typeID,
			"split", rec.String(),
			"min_date", minDate,
		)
		return live, metrics.OutcomeEscaped, nil
	}
	if !rec.HasOccurred(now) {
		r.logger.Debug("split has not happened yet",
			"type_id", typeID,
			"split", rec.String(),
			"split_date", rec.SplitDate,
		)
		return live, metrics.OutcomeEscaped, nil
	}

	splitDate := rec.SplitDate
	archive, err := r.store.Fetch(ctx, regionID, rec.OriginalID, &splitDate)
	if err != nil {
		return model.HistorySeries{}, "", fmt.Errorf("fetch archive region=%d type=%d: %w", regionID, rec.OriginalID, err)
	}

	switch typeID {
	case rec.NewID:
		archive = splitcache.ApplyTransform(archive, rec)
	case rec.OriginalID:
		live = splitcache.ApplyTransform(live, rec.Inverted())
	default:
		r.logger.Error("split record does not match requested type",
			"type_id", typeID,
			"original_id", rec.OriginalID,
			"new_id", rec.NewID,
		)
		return model.HistorySeries{}, "", split.NewError(split.KindMismatchedTypeIDs,
			"type %d matches neither side of split %d->%d", typeID, rec.OriginalID, rec.NewID)
	}

	merged := merge(live, archive, rec.SplitDate, rng)
	merged.DateLayout = mode.DateLayout()

	r.logger.Debug("stitched split history",
		"region_id", regionID,
		"type_id", typeID,
		"live_rows", live.Len(),
		"archive_rows", archive.Len(),
		"rows", merged.Len(),
	)
	return merged, metrics.OutcomeStitched, nil
}

func (r *Resolver) fetchLive(ctx context.Context, mode history.Mode, regionID, typeID int, rng history.Range) (model.HistorySeries, error) {
	series, err := r.source.Fetch(ctx, mode, regionID, typeID, rng)
	if err != nil {
		if !api.IsNotFound(err) {
			metrics.RecordUpstreamError(mode.String())
		}
		return model.HistorySeries{}, fmt.Errorf("fetch %s history region=%d type=%d: %w", mode, regionID, typeID, err)
	}
	series.DateLayout = mode.DateLayout()
	return series, nil
}

// merge unions live rows with archive rows dated on or before splitDate, inside
// rng, and not already present in live. Live rows win any date collision. The
// result is newest first with one row per date.
func merge(live, archive model.HistorySeries, splitDate time.Time, rng history.Range) model.HistorySeries {
	seen := make(map[time.Time]struct{}, live.Len()+archive.Len())
	out := model.HistorySeries{
		Rows:       make([]model.HistoryRow, 0, live.Len()+archive.Len()),
		DateLayout: live.DateLayout,
	}

	for _, row := range live.Rows {
		d := model.TruncateDate(row.Date)
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		out.Rows = append(out.Rows, row)
	}

	for _, row := range archive.Rows {
		d := model.TruncateDate(row.Date)
		if d.After(splitDate) || !rng.Contains(d) {
			continue
		}
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		out.Rows = append(out.Rows, row)
	}

	out.SortDescending()
	return out
}
