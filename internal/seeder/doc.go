// Package seeder fills the split cache with archived history.
//
// The Seeder:
//   - Fetches every (region, type) pair from ESI or EMD with bounded concurrency
//   - Replaces cached rows from the earliest fetched date onward when forced,
//     otherwise upserts
//   - Keeps going past failed pairs and reports them together
//
// Scheduler runs seeding and split config reloads on cron schedules inside
// the API server.
package seeder
