// Package api provides REST clients for the EVE Online market data providers.
//
// Providers:
//   - ESI: https://esi.evetech.net/latest (market history, type and region lookup)
//   - EMD: https://eve-marketdata.com (item_history2, extended history)
//   - CREST: https://crest-tq.eveonline.com (legacy market history)
//
// Each provider has a history.Fetcher adapter (ESISource, EMDSource, CRESTSource).
// Requests are rate limited per Client and retried on 5xx and 429 responses.
package api
