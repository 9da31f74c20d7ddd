package forecast

import (
	"errors"
	"fmt"
)

var (
	// ErrNotEnoughData is returned when history is too short to model.
	ErrNotEnoughData = errors.New("not enough data to forecast")

	// ErrRangeOutOfBounds is returned for a requested forecast range outside 1..max.
	ErrRangeOutOfBounds = errors.New("forecast range out of bounds")
)

// CheckRange validates a requested forecast range in days.
func CheckRange(days, max int) error {
	if days < 1 || days > max {
		return fmt.Errorf("%w: %d not in 1..%d", ErrRangeOutOfBounds, days, max)
	}
	return nil
}
