package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/rickgao/prosper-api/internal/model"
)

// ErrSourceNotConfigured is returned when no Fetcher is registered for a mode.
var ErrSourceNotConfigured = errors.New("history source not configured")

// Fetcher supplies daily market history for one remote source. Implementations
// return rows with UTC midnight dates and report transport failures as errors.
type Fetcher interface {
	FetchHistory(ctx context.Context, regionID, typeID int, rng Range) (model.HistorySeries, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, regionID, typeID int, rng Range) (model.HistorySeries, error)

// FetchHistory implements Fetcher.
func (f FetcherFunc) FetchHistory(ctx context.Context, regionID, typeID int, rng Range) (model.HistorySeries, error) {
	return f(ctx, regionID, typeID, rng)
}

// Sources maps modes to fetchers.
type Sources map[Mode]Fetcher

// For returns the fetcher registered for mode.
func (s Sources) For(mode Mode) (Fetcher, error) {
	f, ok := s[mode]
	if !ok || f == nil {
		return nil, fmt.Errorf("%s: %w", mode, ErrSourceNotConfigured)
	}
	return f, nil
}

// Fetch fetches history from the source registered for mode.
func (s Sources) Fetch(ctx context.Context, mode Mode, regionID, typeID int, rng Range) (model.HistorySeries, error) {
	f, err := s.For(mode)
	if err != nil {
		return model.HistorySeries{}, err
	}
	return f.FetchHistory(ctx, regionID, typeID, rng)
}
