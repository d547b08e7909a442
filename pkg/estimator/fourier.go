package estimator

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Empirical uncertainties of the spectral estimate.
const (
	fourierAmplitudeError = 0.00033
	fourierPhaseError     = 0.00052
	fourierOffsetError    = 0.00024
)

// FitFourier reads amplitude and phase from the one-sided spectrum bin nearest
// the nominal frequency and the offset from the bin nearest 0 Hz.
type FitFourier struct{}

// Name implements Estimator.
func (FitFourier) Name() string { return "fourier" }

// Estimate implements Estimator. Options.SampleRate is required.
func (FitFourier) Estimate(t, y []float64, opts Options) (Params, error) {
	if opts.SampleRate <= 0 {
		return Params{}, fmt.Errorf("%w: \"fs\" argument is not passed", ErrMissingParameter)
	}
	if err := requireFrequency(opts); err != nil {
		return Params{}, err
	}
	if err := checkSamples(t, y); err != nil {
		return Params{}, err
	}

	n := len(y)
	fft := fourier.NewFFT(n)
	spectrum := fft.Coefficients(nil, y)

	// One-sided amplitude spectrum: every bin but DC carries both halves.
	freqs := make([]float64, len(spectrum))
	for i := range spectrum {
		spectrum[i] /= complex(float64(n), 0)
		if i > 0 {
			spectrum[i] *= 2
		}
		freqs[i] = fft.Freq(i) * opts.SampleRate
	}

	dc := spectrum[nearestIndex(freqs, 0)]
	bin := spectrum[nearestIndex(freqs, opts.Frequency)]

	phase := cmplx.Phase(bin) + math.Pi/2
	if phase < 0 {
		phase += twoPi
	}

	return Params{
		Amplitude:      cmplx.Abs(bin),
		AmplitudeError: fourierAmplitudeError,
		Phase:          phase,
		PhaseError:     fourierPhaseError,
		Offset:         cmplx.Abs(dc) * sign(real(dc)),
		OffsetError:    fourierOffsetError,
	}, nil
}
