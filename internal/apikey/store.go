package apikey

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ErrInvalidKey is returned for unknown or revoked keys.
var ErrInvalidKey = errors.New("invalid api key")

const schemaSQL = `
CREATE TABLE IF NOT EXISTS api_keys (
    api_key       TEXT PRIMARY KEY,
    user_name     TEXT NOT NULL,
    user_info     TEXT NOT NULL DEFAULT '',
    key_generated TIMESTAMPTZ NOT NULL,
    last_accessed TIMESTAMPTZ,
    revoked       BOOLEAN NOT NULL DEFAULT FALSE
)`

// Key is one issued api key.
type Key struct {
	APIKey       string       `db:"api_key"`
	UserName     string       `db:"user_name"`
	UserInfo     string       `db:"user_info"`
	KeyGenerated time.Time    `db:"key_generated"`
	LastAccessed sql.NullTime `db:"last_accessed"`
	Revoked      bool         `db:"revoked"`
}

// Store reads and writes api keys.
type Store struct {
	db     *sqlx.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewStore creates a Store over db.
func NewStore(db *sqlx.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger, now: time.Now}
}

// EnsureSchema creates the api_keys table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create api_keys table: %w", err)
	}
	return nil
}

// Check validates key and stamps its last access time.
func (s *Store) Check(ctx context.Context, key string) (*Key, error) {
	if key == "" {
		s.logger.Warn("missing api key")
		return nil, ErrInvalidKey
	}

	var k Key
	err := s.db.GetContext(ctx, &k, `
		UPDATE api_keys SET last_accessed = $2
		WHERE api_key = $1 AND NOT revoked
		RETURNING api_key, user_name, user_info, key_generated, last_accessed, revoked`,
		key, s.now().UTC(),
	)
	if errors.Is(err, sql.ErrNoRows) {
		s.logger.Warn("invalid api key", "api_key", key)
		return nil, ErrInvalidKey
	}
	if err != nil {
		return nil, fmt.Errorf("check api key: %w", err)
	}

	s.logger.Info("accessed service", "user_name", k.UserName, "user_info", k.UserInfo)
	return &k, nil
}

// Create issues a new key for userName.
func (s *Store) Create(ctx context.Context, userName, userInfo string) (*Key, error) {
	if userName == "" {
		return nil, errors.New("user name is required")
	}

	k := Key{
		APIKey:       uuid.NewString(),
		UserName:     userName,
		UserInfo:     userInfo,
		KeyGenerated: s.now().UTC(),
	}

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO api_keys (api_key, user_name, user_info, key_generated)
		VALUES (:api_key, :user_name, :user_info, :key_generated)`, &k)
	if err != nil {
		return nil, fmt.Errorf("create api key: %w", err)
	}

	s.logger.Info("api key created", "user_name", userName)
	return &k, nil
}

// Revoke disables key. Unknown keys return ErrInvalidKey.
func (s *Store) Revoke(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE api_keys SET revoked = TRUE WHERE api_key = $1`, key)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if n == 0 {
		return ErrInvalidKey
	}
	return nil
}

// List returns every key, oldest first.
func (s *Store) List(ctx context.Context) ([]Key, error) {
	var keys []Key
	err := s.db.SelectContext(ctx, &keys, `
		SELECT api_key, user_name, user_info, key_generated, last_accessed, revoked
		FROM api_keys
		ORDER BY key_generated`)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	return keys, nil
}
