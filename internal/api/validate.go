package api

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// ID kinds understood by Validator.
const (
	KindRegion = "region"
	KindType   = "type"
)

// IDCache remembers ids that upstream has confirmed. Only positive results are
// cached; unknown ids are always re-checked.
type IDCache interface {
	Known(ctx context.Context, kind string, id int) (bool, error)
	Remember(ctx context.Context, kind string, id int) error
}

// MemoryIDCache is an in-process IDCache.
type MemoryIDCache struct {
	mu  sync.RWMutex
	ids map[string]map[int]struct{}
}

// NewMemoryIDCache creates an empty MemoryIDCache.
func NewMemoryIDCache() *MemoryIDCache {
	return &MemoryIDCache{ids: make(map[string]map[int]struct{})}
}

// Known implements IDCache.
func (m *MemoryIDCache) Known(_ context.Context, kind string, id int) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.ids[kind][id]
	return ok, nil
}

// Remember implements IDCache.
func (m *MemoryIDCache) Remember(_ context.Context, kind string, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.ids[kind]
	if !ok {
		set = make(map[int]struct{})
		m.ids[kind] = set
	}
	set[id] = struct{}{}
	return nil
}

// Validator checks region and type ids against ESI before history is fetched.
type Validator struct {
	client *Client
	cache  IDCache
	logger *slog.Logger
}

// NewValidator creates a Validator. A nil cache uses a MemoryIDCache.
func NewValidator(client *Client, cache IDCache, logger *slog.Logger) *Validator {
	if cache == nil {
		cache = NewMemoryIDCache()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{client: client, cache: cache, logger: logger}
}

// ValidateRegion returns an error wrapping a 404 APIError when regionID is unknown.
func (v *Validator) ValidateRegion(ctx context.Context, regionID int) error {
	return v.validate(ctx, KindRegion, regionID, func(ctx context.Context) error {
		_, err := v.client.GetRegion(ctx, regionID)
		return err
	})
}

// ValidateType returns an error wrapping a 404 APIError when typeID is unknown.
func (v *Validator) ValidateType(ctx context.Context, typeID int) error {
	return v.validate(ctx, KindType, typeID, func(ctx context.Context) error {
		_, err := v.client.GetType(ctx, typeID)
		return err
	})
}

func (v *Validator) validate(ctx context.Context, kind string, id int, lookup func(context.Context) error) error {
	known, err := v.cache.Known(ctx, kind, id)
	if err != nil {
		v.logger.Warn("id cache read failed", "kind", kind, "id", id, "error", err)
	}
	if known {
		return nil
	}

	if err := lookup(ctx); err != nil {
		return fmt.Errorf("validate %s %d: %w", kind, id, err)
	}

	if err := v.cache.Remember(ctx, kind, id); err != nil {
		v.logger.Warn("id cache write failed", "kind", kind, "id", id, "error", err)
	}
	return nil
}
