package forecast

import (
	"context"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/rickgao/prosper-api/internal/model"
)

// Model produces a forecast report from daily history.
type Model interface {
	// Forecast returns one row per observed day followed by horizon predicted days,
	// oldest first.
	Forecast(ctx context.Context, series model.HistorySeries, horizon int) ([]model.ForecastRow, error)
}

// TrendModel fits avgPrice against day number by ordinary least squares and
// reports an interval of Interval probability mass around the fit, assuming
// normally distributed residuals.
type TrendModel struct {
	Interval float64 // e.g. 0.8 for an 80% band
}

// DefaultInterval is the band width used when TrendModel.Interval is unset.
const DefaultInterval = 0.8

// Forecast implements Model.
func (m TrendModel) Forecast(ctx context.Context, series model.HistorySeries, horizon int) ([]model.ForecastRow, error) {
	if series.Len() < 2 {
		return nil, fmt.Errorf("%w: %d rows", ErrNotEnoughData, series.Len())
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sorted := series.Clone()
	sorted.SortAscending()

	origin := model.TruncateDate(sorted.Rows[0].Date)
	xs := make([]float64, len(sorted.Rows))
	ys := make([]float64, len(sorted.Rows))
	for i, r := range sorted.Rows {
		xs[i] = dayNumber(origin, r.Date)
		ys[i] = r.AvgPrice
	}

	alpha, beta := stat.LinearRegression(xs, ys, nil, false)

	residuals := make([]float64, len(xs))
	for i := range xs {
		residuals[i] = ys[i] - (alpha + beta*xs[i])
	}
	sd := stat.StdDev(residuals, nil)
	if math.IsNaN(sd) {
		sd = 0
	}

	interval := m.Interval
	if interval <= 0 || interval >= 1 {
		interval = DefaultInterval
	}
	band := distuv.UnitNormal.Quantile(0.5+interval/2) * sd

	out := make([]model.ForecastRow, 0, len(sorted.Rows)+horizon)
	for i, r := range sorted.Rows {
		yhat := alpha + beta*xs[i]
		avg := r.AvgPrice
		out = append(out, model.ForecastRow{
			Date:     model.TruncateDate(r.Date),
			AvgPrice: &avg,
			Yhat:     yhat,
			YhatLow:  yhat - band,
			YhatHigh: yhat + band,
		})
	}

	last := model.TruncateDate(sorted.Rows[len(sorted.Rows)-1].Date)
	lastX := xs[len(xs)-1]
	for k := 1; k <= horizon; k++ {
		yhat := alpha + beta*(lastX+float64(k))
		out = append(out, model.ForecastRow{
			Date:       last.AddDate(0, 0, k),
			Yhat:       yhat,
			YhatLow:    yhat - band,
			YhatHigh:   yhat + band,
			Prediction: true,
		})
	}
	return out, nil
}

func dayNumber(origin, t time.Time) float64 {
	return model.TruncateDate(t).Sub(origin).Hours() / 24
}
