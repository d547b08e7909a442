package estimator

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"
)

// Empirical uncertainties of the Hilbert demodulation.
const (
	hilbertAmplitudeError = 0.00056
	hilbertPhaseError     = 0.00072
	hilbertOffsetError    = 0.00024
)

// FitHilbert demodulates the signal through its analytic representation.
// Amplitude and phase are medians over samples within one standard deviation
// of the mean, which trims edge artifacts of the transform.
type FitHilbert struct{}

// Name implements Estimator.
func (FitHilbert) Name() string { return "hilbert" }

// Estimate implements Estimator.
func (FitHilbert) Estimate(t, y []float64, opts Options) (Params, error) {
	if err := requireFrequency(opts); err != nil {
		return Params{}, err
	}
	if err := checkSamples(t, y); err != nil {
		return Params{}, err
	}

	offset := stat.Mean(y, nil)
	centered := make([]float64, len(y))
	for i, v := range y {
		centered[i] = v - offset
	}

	analytic := analyticSignal(centered)

	magnitude := make([]float64, len(analytic))
	angle := make([]float64, len(analytic))
	for i, z := range analytic {
		magnitude[i] = cmplx.Abs(z)
		angle[i] = cmplx.Phase(z)
	}

	magMean, magStd := stat.PopMeanStdDev(magnitude, nil)
	amplitude := median(withinBand(magnitude, magMean, magStd))

	// Remove the carrier; sin is the analytic cosine delayed by π/2.
	residual := unwrap(angle)
	for i := range residual {
		residual[i] += math.Pi/2 - twoPi*opts.Frequency*t[i]
	}
	phMean, phStd := stat.PopMeanStdDev(residual, nil)
	phase := median(withinBand(residual, phMean, phStd))
	phase = floorMod(phase+math.Pi, twoPi) - math.Pi
	if phase < 0 {
		phase += twoPi
	}

	return Params{
		Amplitude:      amplitude,
		AmplitudeError: hilbertAmplitudeError,
		Phase:          phase,
		PhaseError:     hilbertPhaseError,
		Offset:         offset,
		OffsetError:    hilbertOffsetError,
	}, nil
}

// analyticSignal returns x + i·H(x), computed by zeroing the negative half
// of the spectrum and doubling the positive half.
func analyticSignal(x []float64) []complex128 {
	n := len(x)
	fft := fourier.NewCmplxFFT(n)

	seq := make([]complex128, n)
	for i, v := range x {
		seq[i] = complex(v, 0)
	}
	coeff := fft.Coefficients(nil, seq)

	half := n / 2
	for i := range coeff {
		var h float64
		switch {
		case i == 0:
			h = 1
		case n%2 == 0 && i == half:
			h = 1
		case i < (n+1)/2:
			h = 2
		}
		coeff[i] *= complex(h, 0)
	}

	out := fft.Sequence(nil, coeff)
	scale := complex(1/float64(n), 0)
	for i := range out {
		out[i] *= scale
	}
	return out
}
