package analysis

import (
	"math"
	"time"

	"github.com/vjranagit/electrode-tester/pkg/storage"
)

// DefaultTimeLimit bounds the elapsed time analysed when none is configured.
const DefaultTimeLimit = 24 * time.Hour

// NoTimeLimit disables the window.
const NoTimeLimit = time.Duration(math.MaxInt64)

// Timeline is an ordered, lazily loaded sequence of measurements.
type Timeline interface {
	Len() int
	Measurement(i int) (*storage.Measurement, error)
}

// LimitMeasurements calls fn for each measurement in storage order with its
// elapsed time since the first one. The first measurement is always visited;
// iteration stops at the first measurement more than limit after it, even if
// later ones would fit.
func LimitMeasurements(tl Timeline, limit time.Duration, fn func(elapsed time.Duration, m *storage.Measurement) error) error {
	if tl.Len() == 0 {
		return nil
	}

	first, err := tl.Measurement(0)
	if err != nil {
		return err
	}
	if err := fn(0, first); err != nil {
		return err
	}

	for i := 1; i < tl.Len(); i++ {
		m, err := tl.Measurement(i)
		if err != nil {
			return err
		}
		elapsed := m.Created().Sub(first.Created())
		if elapsed > limit {
			break
		}
		if err := fn(elapsed, m); err != nil {
			return err
		}
	}
	return nil
}
