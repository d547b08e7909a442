// Package analysis derives the electrode resistance and resistivity, with
// propagated uncertainty, from the bridge voltages of stored measurements.
package analysis

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/vjranagit/electrode-tester/pkg/electrode"
	"github.com/vjranagit/electrode-tester/pkg/estimator"
	"github.com/vjranagit/electrode-tester/pkg/storage"
	"github.com/vjranagit/electrode-tester/pkg/types"
)

// ErrZeroReference is returned when the reference arm amplitude is zero.
var ErrZeroReference = errors.New("reference arm amplitude is zero")

// Resistance derives the electrode resistance Rg = Vg·R1/Vr1 from the
// electrode-arm fit vg and the reference-arm fit vr1. The uncertainty
// combines the amplitude errors and the meter accuracy of r1 (uniform,
// divided by √3) in quadrature.
func Resistance(vg, vr1 estimator.Params, r1 decimal.Decimal) (types.Value, error) {
	if vr1.Amplitude == 0 {
		return types.Value{}, ErrZeroReference
	}
	meter, err := ResistorUncertainty(r1)
	if err != nil {
		return types.Value{}, err
	}

	R1 := r1.InexactFloat64()
	uR1 := meter / math.Sqrt(3)
	Vg, Vr1 := vg.Amplitude, vr1.Amplitude

	dVg := R1 * vg.AmplitudeError / Vr1
	dR1 := Vg * uR1 / Vr1
	dVr1 := Vg * R1 * vr1.AmplitudeError / (Vr1 * Vr1)

	return types.Value{
		Value: Vg * R1 / Vr1,
		Error: math.Sqrt(dVg*dVg + dR1*dR1 + dVr1*dVr1),
	}, nil
}

// Resistivity converts a resistance into volume resistivity R·w²/h. The
// electrode width is taken as exact; the height term uses R·w²·u(h)/(2h).
func Resistivity(r types.Value, el electrode.Electrode) types.Value {
	w2 := el.Width() * el.Width()
	h := el.Height()

	dR := w2 * r.Error / h
	dH := r.Value * w2 * el.HeightError() / (h * 2)

	return types.Value{
		Value: r.Value * w2 / h,
		Error: math.Sqrt(dR*dR + dH*dH),
	}
}

// MeasurementAnalysis turns one measurement into per-frequency quantities.
type MeasurementAnalysis struct {
	// Estimator fits both bridge arms; nil uses estimator.Default
	Estimator estimator.Estimator
	// EstimatorOptions are passed to every fit. Frequency is set per
	// container and a zero SampleRate is taken from the measurement.
	EstimatorOptions estimator.Options
	// Quantities selects what to compute; empty computes both
	Quantities []types.Quantity
	// Logger receives per-frequency results at debug level
	Logger *logrus.Entry
}

func (a *MeasurementAnalysis) selectedEstimator() estimator.Estimator {
	if a.Estimator == nil {
		return estimator.Default
	}
	return a.Estimator
}

func (a *MeasurementAnalysis) logger() *logrus.Entry {
	if a.Logger == nil {
		return logrus.NewEntry(logrus.StandardLogger())
	}
	return a.Logger
}

func (a *MeasurementAnalysis) wants(q types.Quantity) bool {
	if len(a.Quantities) == 0 {
		return true
	}
	for _, want := range a.Quantities {
		if want == q {
			return true
		}
	}
	return false
}

// Analyze computes the requested quantities for every container of m, in
// the measurement's frequency order.
func (a *MeasurementAnalysis) Analyze(m *storage.Measurement, el electrode.Electrode) (*types.MeasurementResult, error) {
	est := a.selectedEstimator()
	t := m.TimeVector()
	r1 := m.Resistances()[0]

	result := &types.MeasurementResult{Frequencies: make([]float64, 0, m.Len())}
	wantResistance := a.wants(types.Resistance)
	wantResistivity := a.wants(types.Resistivity)

	err := m.Each(func(i int, c *storage.SignalContainer) error {
		opts := a.EstimatorOptions
		opts.Frequency = c.Frequency()
		if opts.SampleRate == 0 {
			opts.SampleRate = float64(m.SamplingRate())
		}

		vr1, err := est.Estimate(t, c.V1(), opts)
		if err != nil {
			return fmt.Errorf("v1 at %v Hz: %w", c.Frequency(), err)
		}
		vg, err := est.Estimate(t, c.V2(), opts)
		if err != nil {
			return fmt.Errorf("v2 at %v Hz: %w", c.Frequency(), err)
		}

		rg, err := Resistance(vg, vr1, r1)
		if err != nil {
			return fmt.Errorf("resistance at %v Hz: %w", c.Frequency(), err)
		}

		result.Frequencies = append(result.Frequencies, c.Frequency())
		if wantResistance {
			result.Resistance = append(result.Resistance, rg)
		}
		if wantResistivity {
			result.Resistivity = append(result.Resistivity, Resistivity(rg, el))
		}

		a.logger().WithFields(logrus.Fields{
			"measurement": m.Date(),
			"frequency":   c.Frequency(),
			"estimator":   est.Name(),
			"resistance":  rg.Value,
		}).Debug("Analyzed container")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ExperimentAnalysis builds per-frequency time series over an experiment.
type ExperimentAnalysis struct {
	MeasurementAnalysis
	// TimeLimit bounds elapsed time since the first measurement; zero uses
	// DefaultTimeLimit
	TimeLimit time.Duration
}

// Analyze runs MeasurementAnalysis over the measurements of exp inside the
// time window, using the experiment's electrode.
func (a *ExperimentAnalysis) Analyze(exp *storage.Experiment) (*types.ExperimentResult, error) {
	return a.AnalyzeTimeline(exp, exp.Electrode())
}

// AnalyzeTimeline is Analyze over any ordered measurement sequence.
func (a *ExperimentAnalysis) AnalyzeTimeline(tl Timeline, el electrode.Electrode) (*types.ExperimentResult, error) {
	limit := a.TimeLimit
	if limit == 0 {
		limit = DefaultTimeLimit
	}

	result := &types.ExperimentResult{Elapsed: []time.Duration{}}
	if a.wants(types.Resistance) {
		result.Resistance = types.NewSeriesSet(types.Resistance)
	}
	if a.wants(types.Resistivity) {
		result.Resistivity = types.NewSeriesSet(types.Resistivity)
	}

	err := LimitMeasurements(tl, limit, func(elapsed time.Duration, m *storage.Measurement) error {
		mr, err := a.MeasurementAnalysis.Analyze(m, el)
		if err != nil {
			return fmt.Errorf("measurement %s: %w", m.Date(), err)
		}

		result.Elapsed = append(result.Elapsed, elapsed)
		for i, f := range mr.Frequencies {
			if result.Resistance != nil {
				result.Resistance.Append(f, elapsed, mr.Resistance[i])
			}
			if result.Resistivity != nil {
				result.Resistivity.Append(f, elapsed, mr.Resistivity[i])
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	a.logger().WithFields(logrus.Fields{
		"points":     len(result.Elapsed),
		"time_limit": limit,
	}).Info("Experiment analyzed")
	return result, nil
}
