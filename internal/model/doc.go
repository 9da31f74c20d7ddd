// Package model defines shared data types used across the market history API.
//
// Conventions:
//   - Dates: time.Time at UTC midnight, one row per trading day
//   - Prices: float64 ISK
//   - Volumes/orders: float64, since split adjustment can produce fractional counts
//   - IDs: int for EVE type and region ids
package model
