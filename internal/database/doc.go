// Package database opens the PostgreSQL handles used by prosper-api.
//
// One database backs two stores:
//   - split_cache: archived pre-split history, written in batches through pgx
//   - api_keys: forecast endpoint credentials, read through sqlx and lib/pq
package database
