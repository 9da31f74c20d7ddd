// Package httpapi serves the public REST endpoints:
//
//	GET  /CREST/OHLC.{format}      split-aware OHLC history (csv or json)
//	GET  /CREST/prophet.{format}   forecast report, api key required
//	GET  /health                   component status
//	GET  /metrics                  Prometheus metrics
//	POST /admin/splits/reload      re-read the split config file
package httpapi
