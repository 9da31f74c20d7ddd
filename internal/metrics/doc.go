// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - HTTP request counts and latencies per route and status
//   - Split resolution outcomes (passthrough, escaped, stitched, error)
//   - Upstream history fetch failures per source
//   - Forecast cache hit rate
//   - Split cache seeder writes
package metrics
