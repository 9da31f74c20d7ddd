package database

import (
	"fmt"
	"net/url"

	"github.com/rickgao/prosper-api/internal/config"
)

// BuildConnString builds a PostgreSQL connection string from config.
func BuildConnString(cfg config.DBConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}
	return buildURL(cfg, sslMode)
}

// BuildSQLConnString builds a connection string for lib/pq, which has no
// opportunistic TLS modes: prefer becomes require and allow becomes disable.
func BuildSQLConnString(cfg config.DBConfig) string {
	sslMode := cfg.SSLMode
	switch sslMode {
	case "", "prefer":
		sslMode = "require"
	case "allow":
		sslMode = "disable"
	}
	return buildURL(cfg, sslMode)
}

func buildURL(cfg config.DBConfig, sslMode string) string {
	// URL-encode password to handle special characters
	escapedPassword := url.QueryEscape(cfg.Password)

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User,
		escapedPassword,
		cfg.Host,
		cfg.Port,
		cfg.Name,
		sslMode,
	)
}
