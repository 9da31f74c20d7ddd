package forecast

import (
	"github.com/rickgao/prosper-api/internal/model"
)

// TrimPrediction cuts a cached report down to a request: the last historyDays
// observed rows followed by the first predictionDays predicted rows. A
// non-positive historyDays keeps every observed row.
func TrimPrediction(rows []model.ForecastRow, predictionDays, historyDays int) []model.ForecastRow {
	var observed, predicted []model.ForecastRow
	for _, r := range rows {
		if r.Prediction {
			predicted = append(predicted, r)
		} else {
			observed = append(observed, r)
		}
	}

	if historyDays > 0 && len(observed) > historyDays {
		observed = observed[len(observed)-historyDays:]
	}
	if predictionDays < 0 {
		predictionDays = 0
	}
	if len(predicted) > predictionDays {
		predicted = predicted[:predictionDays]
	}

	out := make([]model.ForecastRow, 0, len(observed)+len(predicted))
	out = append(out, observed...)
	return append(out, predicted...)
}
