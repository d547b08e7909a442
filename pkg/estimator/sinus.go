package estimator

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// FitSinus fits A·sin(2π·f·t + p) + c by nonlinear least squares.
// The frequency is refined starting from the nominal one. Reported
// uncertainties are the diagonal of the fit covariance (variances).
type FitSinus struct{}

// Name implements Estimator.
func (FitSinus) Name() string { return "sinus" }

// Estimate implements Estimator.
func (e FitSinus) Estimate(t, y []float64, opts Options) (Params, error) {
	if err := requireFrequency(opts); err != nil {
		return Params{}, err
	}
	if err := checkSamples(t, y); err != nil {
		return Params{}, err
	}

	mean, std := stat.PopMeanStdDev(y, nil)
	guess := []float64{std * math.Sqrt2, 0, mean, opts.Frequency}

	fit, err := levenbergMarquardt(t, y, guess, sinModel, sinGradient, opts.MaxIterations)
	if err != nil {
		return Params{}, err
	}

	// A negative amplitude is folded into the phase by fitting the mirrored signal.
	if fit.params[0] < 0 {
		c := fit.params[2]
		mirrored := make([]float64, len(y))
		for i, v := range y {
			mirrored[i] = -(v - c) + c
		}
		fit, err = levenbergMarquardt(t, mirrored, guess, sinModel, sinGradient, opts.MaxIterations)
		if err != nil {
			return Params{}, err
		}
		fit.params[1] -= math.Pi
	}

	a, p, c, f := fit.params[0], wrapPhase(fit.params[1]), fit.params[2], fit.params[3]
	return Params{
		Amplitude:      a,
		AmplitudeError: fit.covariance[0],
		Phase:          p,
		PhaseError:     fit.covariance[1],
		Offset:         c,
		OffsetError:    fit.covariance[2],
		Frequency:      float64Ptr(f),
		FrequencyError: float64Ptr(fit.covariance[3]),
		Function: func(t float64) float64 {
			return sinModel(t, []float64{a, p, c, f})
		},
	}, nil
}

// sinModel parameters are [A, p, c, f].
func sinModel(t float64, p []float64) float64 {
	return p[0]*math.Sin(twoPi*p[3]*t+p[1]) + p[2]
}

func sinGradient(t float64, p []float64, dst []float64) {
	s, c := math.Sincos(twoPi*p[3]*t + p[1])
	dst[0] = s
	dst[1] = p[0] * c
	dst[2] = 1
	dst[3] = p[0] * c * twoPi * t
}
