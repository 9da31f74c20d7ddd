package splitcache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rickgao/prosper-api/internal/model"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS split_cache (
	region_id   INTEGER          NOT NULL,
	type_id     INTEGER          NOT NULL,
	date        DATE             NOT NULL,
	avg_price   DOUBLE PRECISION NOT NULL,
	high_price  DOUBLE PRECISION NOT NULL,
	low_price   DOUBLE PRECISION NOT NULL,
	volume      DOUBLE PRECISION NOT NULL,
	orders      DOUBLE PRECISION NOT NULL,
	data_source TEXT             NOT NULL DEFAULT '',
	cache_date  TIMESTAMPTZ      NOT NULL DEFAULT now(),
	PRIMARY KEY (region_id, type_id, date)
)`

const upsertSQL = `
INSERT INTO split_cache (region_id, type_id, date, avg_price, high_price, low_price, volume, orders, data_source, cache_date)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (region_id, type_id, date) DO UPDATE SET
	avg_price   = EXCLUDED.avg_price,
	high_price  = EXCLUDED.high_price,
	low_price   = EXCLUDED.low_price,
	volume      = EXCLUDED.volume,
	orders      = EXCLUDED.orders,
	data_source = EXCLUDED.data_source,
	cache_date  = EXCLUDED.cache_date`

// DB is the subset of *pgxpool.Pool used by PGStore.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// WriteStats counts PGStore writes since construction.
type WriteStats struct {
	Upserts int64
	Deletes int64
	Errors  int64
}

// PGStore is a Store backed by the split_cache table.
type PGStore struct {
	db     DB
	logger *slog.Logger

	mu    sync.Mutex
	stats WriteStats
}

// NewPGStore creates a PGStore on db.
func NewPGStore(db DB, logger *slog.Logger) *PGStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PGStore{db: db, logger: logger}
}

// EnsureSchema creates the split_cache table if it does not exist.
func (s *PGStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create split_cache: %w", err)
	}
	return nil
}

// Stats returns write counters.
func (s *PGStore) Stats() WriteStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Fetch implements Store.
func (s *PGStore) Fetch(ctx context.Context, regionID, typeID int, asOf *time.Time) (model.HistorySeries, error) {
	query := `
		SELECT date, avg_price, high_price, low_price, volume, orders
		FROM split_cache
		WHERE region_id = $1 AND type_id = $2`
	args := []any{regionID, typeID}
	if asOf != nil {
		query += ` AND date <= $3`
		args = append(args, model.TruncateDate(*asOf))
	}
	query += ` ORDER BY date DESC`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return model.HistorySeries{}, fmt.Errorf("query split_cache: %w", err)
	}
	defer rows.Close()

	var series model.HistorySeries
	for rows.Next() {
		var r model.HistoryRow
		if err := rows.Scan(&r.Date, &r.AvgPrice, &r.HighPrice, &r.LowPrice, &r.Volume, &r.Orders); err != nil {
			return model.HistorySeries{}, fmt.Errorf("scan split_cache row: %w", err)
		}
		r.Date = model.TruncateDate(r.Date)
		series.Rows = append(series.Rows, r)
	}
	if err := rows.Err(); err != nil {
		return model.HistorySeries{}, fmt.Errorf("read split_cache rows: %w", err)
	}

	if series.Len() == 0 {
		return model.HistorySeries{}, noData(regionID, typeID)
	}
	return series, nil
}

// Replace implements Store.
func (s *PGStore) Replace(ctx context.Context, regionID, typeID int, rows []model.HistoryRow, meta WriteMeta) error {
	if len(rows) == 0 {
		return nil
	}
	return s.write(ctx, regionID, typeID, rows, meta, true)
}

// Append implements Store.
func (s *PGStore) Append(ctx context.Context, regionID, typeID int, rows []model.HistoryRow, meta WriteMeta) error {
	if len(rows) == 0 {
		return nil
	}
	return s.write(ctx, regionID, typeID, rows, meta, false)
}

func (s *PGStore) write(ctx context.Context, regionID, typeID int, rows []model.HistoryRow, meta WriteMeta, replace bool) error {
	start := time.Now()

	deleted, err := s.writeTx(ctx, regionID, typeID, rows, meta, replace)
	if err != nil {
		s.mu.Lock()
		s.stats.Errors++
		s.mu.Unlock()
		s.logger.Error("split cache write failed",
			"region_id", regionID,
			"type_id", typeID,
			"count", len(rows),
			"error", err,
		)
		return err
	}

	s.mu.Lock()
	s.stats.Upserts += int64(len(rows))
	s.stats.Deletes += deleted
	s.mu.Unlock()

	s.logger.Debug("wrote split cache rows",
		"region_id", regionID,
		"type_id", typeID,
		"count", len(rows),
		"deleted", deleted,
		"duration", time.Since(start),
	)
	return nil
}

func (s *PGStore) writeTx(ctx context.Context, regionID, typeID int, rows []model.HistoryRow, meta WriteMeta, replace bool) (deleted int64, err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if replace {
		ct, err := tx.Exec(ctx,
			`DELETE FROM split_cache WHERE region_id = $1 AND type_id = $2 AND date >= $3`,
			regionID, typeID, minRowDate(rows))
		if err != nil {
			return 0, fmt.Errorf("delete split_cache rows: %w", err)
		}
		deleted = ct.RowsAffected()
	}

	cachedAt := meta.cachedAt()
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(upsertSQL,
			regionID, typeID, model.TruncateDate(r.Date),
			r.AvgPrice, r.HighPrice, r.LowPrice, r.Volume, r.Orders,
			meta.Source, cachedAt,
		)
	}

	results := tx.SendBatch(ctx, batch)
	for range rows {
		if _, err = results.Exec(); err != nil {
			results.Close()
			return 0, fmt.Errorf("upsert split_cache row: %w", err)
		}
	}
	if err = results.Close(); err != nil {
		return 0, fmt.Errorf("close batch: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return deleted, nil
}
