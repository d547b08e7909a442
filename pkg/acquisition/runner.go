// Package acquisition repeats measurement rounds of an experiment on its
// device until the configured number of tries is reached or the context is
// cancelled.
package acquisition

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vjranagit/electrode-tester/pkg/storage"
)

// ErrNoDevice is returned when the experiment has no device bound.
var ErrNoDevice = errors.New("experiment has no device, loaded experiments cannot be run")

// Runner drives acquisition rounds.
type Runner struct {
	// Catalog, when set, records the experiment and every saved measurement
	Catalog *storage.Catalog
	// Logger receives progress; nil uses the standard logger
	Logger *logrus.Entry
	// OnMeasurement is called after each measurement is appended and saved
	OnMeasurement func(round int, m *storage.Measurement)
}

func (r *Runner) log() *logrus.Entry {
	if r.Logger == nil {
		return logrus.NewEntry(logrus.StandardLogger())
	}
	return r.Logger
}

// Run takes measurements until exp.Tries() rounds are stored, or forever when
// tries is zero. Cancelling ctx aborts the current round without appending it,
// or ends the wait between rounds; stored measurements are kept. Run returns
// the absolute experiment path and whether all tries completed.
func (r *Runner) Run(ctx context.Context, exp *storage.Experiment) (string, bool, error) {
	savePath, err := filepath.Abs(exp.SavePath())
	if err != nil {
		return "", false, err
	}

	dev := exp.Device()
	if dev == nil {
		return savePath, false, ErrNoDevice
	}

	log := r.log().WithFields(logrus.Fields{
		"experiment": exp.Name(),
		"device":     dev.Name(),
	})

	if r.Catalog != nil {
		if err := r.Catalog.RegisterExperiment(exp); err != nil {
			return savePath, false, fmt.Errorf("failed to register experiment: %w", err)
		}
	}

	for round := 1; ; round++ {
		log.WithField("round", round).Info("Taking measurement")

		m, err := r.measure(ctx, exp)
		if err != nil {
			if ctx.Err() != nil {
				log.WithField("round", round).Warn("Measurement interrupted, not saved")
				return savePath, false, nil
			}
			return savePath, false, err
		}

		if r.OnMeasurement != nil {
			r.OnMeasurement(round, m)
		}

		if exp.Tries() > 0 && round >= exp.Tries() {
			log.WithField("measurements", exp.Len()).Info("Experiment done")
			return savePath, true, nil
		}

		if err := wait(ctx, exp.Delay()); err != nil {
			log.WithField("round", round).Warn("Stopped while waiting for next measurement")
			return savePath, false, nil
		}
	}
}

// measure runs one round: new measurement, acquire, append, save.
func (r *Runner) measure(ctx context.Context, exp *storage.Experiment) (*storage.Measurement, error) {
	m, err := exp.NewMeasurement()
	if err != nil {
		return nil, err
	}
	if err := m.Acquire(ctx, exp.Device()); err != nil {
		return nil, err
	}
	if _, err := m.Save(true); err != nil {
		return nil, err
	}
	if err := exp.AppendMeasurement(m); err != nil {
		return nil, err
	}
	if _, err := exp.Save(true); err != nil {
		return nil, err
	}
	if r.Catalog != nil {
		if err := r.Catalog.RegisterMeasurement(exp, m); err != nil {
			return nil, fmt.Errorf("failed to register measurement: %w", err)
		}
	}
	return m, nil
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
