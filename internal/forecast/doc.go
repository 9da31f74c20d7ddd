// Package forecast assembles split-aware history, runs a forecasting model over it
// and caches the resulting report per (region, type) for the current day.
//
// The model is pluggable. TrendModel is a least-squares linear trend with a normal
// uncertainty band; it exists so the service runs end to end and is not meant as a
// serious price predictor.
package forecast
