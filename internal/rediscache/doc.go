// Package rediscache holds the redis-backed caches shared across API
// instances: forecast reports keyed per day, and upstream-confirmed ids.
package rediscache
