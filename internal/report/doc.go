// Package report reshapes history into the outward response formats.
//
// OHLC rows use a one-day lag: open is the previous day's average price and close
// the current day's, so the oldest input row has no open and is dropped.
//
// Column sets:
//
//	OHLC:     date,open,high,low,close,volume
//	Forecast: date,avgPrice,yhat,yhat_low,yhat_high,prediction
package report
