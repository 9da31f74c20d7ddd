package split

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"sync/atomic"
)

// Registry maps item ids to split records. Both the original and the new id of a
// record resolve to the same *Record. A Registry is immutable once built.
type Registry struct {
	byID    map[int]*Record
	records []*Record
}

// NewRegistry builds a registry from already-parsed records. Each record is
// registered under its TypeID, OriginalID and NewID. Original and new ids take
// precedence over another record's TypeID; otherwise later records win when two
// records claim the same id.
func NewRegistry(records ...*Record) *Registry {
	reg := &Registry{
		byID:    make(map[int]*Record, len(records)*3),
		records: make([]*Record, 0, len(records)),
	}
	for _, rec := range records {
		reg.records = append(reg.records, rec)
		if rec.TypeID != 0 {
			reg.byID[rec.TypeID] = rec
		}
	}
	for _, rec := range records {
		reg.byID[rec.OriginalID] = rec
		reg.byID[rec.NewID] = rec
	}
	return reg
}

// Load reads a JSON array of split config objects. Any malformed entry fails the
// whole load.
func Load(r io.Reader) (*Registry, error) {
	var entries []json.RawMessage
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, &Error{
			Kind:    KindInvalidSplitConfig,
			Status:  KindInvalidSplitConfig.Status(),
			Message: "split config is not a JSON array",
			Err:     err,
		}
	}

	records := make([]*Record, 0, len(entries))
	for i, raw := range entries {
		rec, err := ParseRecord(raw)
		if err != nil {
			return nil, fmt.Errorf("split entry %d: %w", i, err)
		}
		records = append(records, rec)
	}

	return NewRegistry(records...), nil
}

// LoadFile reads the split config from path.
func LoadFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open split config: %w", err)
	}
	defer f.Close()

	return Load(f)
}

// Lookup returns the record registered for id.
func (r *Registry) Lookup(id int) (*Record, bool) {
	if r == nil {
		return nil, false
	}
	rec, ok := r.byID[id]
	return rec, ok
}

// Contains reports whether any split applies to id.
func (r *Registry) Contains(id int) bool {
	_, ok := r.Lookup(id)
	return ok
}

// Len returns the number of distinct records.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.records)
}

// Records returns the distinct records in load order.
func (r *Registry) Records() []*Record {
	if r == nil {
		return nil
	}
	out := make([]*Record, len(r.records))
	copy(out, r.records)
	return out
}

// ArchiveTypeIDs returns the distinct original ids, ascending. These are the
// ids whose pre-split history belongs in the split cache.
func (r *Registry) ArchiveTypeIDs() []int {
	if r == nil {
		return nil
	}
	ids := make([]int, 0, len(r.records))
	for _, rec := range r.records {
		ids = append(ids, rec.OriginalID)
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

// Holder publishes the current Registry to concurrent readers and supports
// wholesale reloads from the config file.
type Holder struct {
	path   string
	logger *slog.Logger
	cur    atomic.Pointer[Registry]
}

// NewHolder creates a Holder serving reg. path is used by Reload and may be empty.
func NewHolder(reg *Registry, path string, logger *slog.Logger) *Holder {
	if logger == nil {
		logger = slog.Default()
	}
	if reg == nil {
		reg = NewRegistry()
	}
	h := &Holder{path: path, logger: logger}
	h.cur.Store(reg)
	return h
}

// Current returns the registry in effect.
func (h *Holder) Current() *Registry {
	return h.cur.Load()
}

// Store replaces the registry.
func (h *Holder) Store(reg *Registry) {
	h.cur.Store(reg)
}

// Reload re-reads the config file. On failure the previous registry stays in effect.
func (h *Holder) Reload() (*Registry, error) {
	if h.path == "" {
		return nil, fmt.Errorf("reload split config: no path configured")
	}

	reg, err := LoadFile(h.path)
	if err != nil {
		h.logger.Error("split config reload failed", "path", h.path, "error", err)
		return nil, err
	}

	h.cur.Store(reg)
	h.logger.Info("split config reloaded", "path", h.path, "splits", reg.Len())
	return reg, nil
}

// Lookup resolves id against the registry currently in effect.
func (h *Holder) Lookup(id int) (*Record, bool) {
	return h.Current().Lookup(id)
}

// Contains reports whether the current registry has a split for id.
func (h *Holder) Contains(id int) bool {
	return h.Current().Contains(id)
}

// ArchiveTypeIDs returns the original ids of the current registry.
func (h *Holder) ArchiveTypeIDs() []int {
	return h.Current().ArchiveTypeIDs()
}
