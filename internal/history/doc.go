// Package history defines the market history source boundary.
//
// A Fetcher returns daily rows for a (region, type, range). Concrete backends live
// in package api; Sources picks one per Mode.
package history
