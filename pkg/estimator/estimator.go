// Package estimator recovers sinusoid parameters (amplitude, phase, offset and
// optionally frequency) from a sampled waveform at a known nominal frequency.
package estimator

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrMissingParameter is returned when a required option is not supplied.
	ErrMissingParameter = errors.New("missing parameter")
	// ErrSolverFailure is returned when the nonlinear least-squares solver does not converge.
	ErrSolverFailure = errors.New("solver failed to converge")
	// ErrUnknownEstimator is returned by ByName for unregistered names.
	ErrUnknownEstimator = errors.New("unknown estimator")
	// ErrInvalidInput is returned for empty or misaligned sample slices.
	ErrInvalidInput = errors.New("invalid input")
)

// Params represents the result of a single estimation.
// Frequency and FrequencyError are nil when the estimator does not refine the frequency.
type Params struct {
	Amplitude      float64
	AmplitudeError float64
	Phase          float64
	PhaseError     float64
	Offset         float64
	OffsetError    float64
	Frequency      *float64
	FrequencyError *float64

	// Function evaluates the fitted model, nil when no model is fitted.
	Function func(t float64) float64 `json:"-"`
}

// Options holds per-call estimator settings. It is passed by value, so every
// call owns its own copy.
type Options struct {
	// Frequency is the nominal stimulus frequency in Hz. Required by every estimator.
	Frequency float64
	// SampleRate is the sampling rate in Hz. Required by the spectral estimator.
	SampleRate float64
	// MaxIterations bounds the sinusoid fit. Zero selects the default.
	MaxIterations int
}

// Estimator maps a sampled waveform and a nominal frequency to Params.
type Estimator interface {
	// Name returns the configuration name of the estimator
	Name() string

	// Estimate computes signal parameters from time samples t and signal samples y
	Estimate(t, y []float64, opts Options) (Params, error)
}

// Default is the estimator used when none is configured.
var Default Estimator = FitSinus{}

var registry = map[string]Estimator{
	FitSinus{}.Name():   FitSinus{},
	FitFourier{}.Name(): FitFourier{},
	FitHilbert{}.Name(): FitHilbert{},
}

// ByName returns the registered estimator with the given name.
// The lookup is case-insensitive; an empty name selects Default.
func ByName(name string) (Estimator, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return Default, nil
	}
	e, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownEstimator, name, strings.Join(Names(), ", "))
	}
	return e, nil
}

// Names lists registered estimator names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func requireFrequency(opts Options) error {
	if opts.Frequency <= 0 {
		return fmt.Errorf("%w: \"frequency\" argument is not passed", ErrMissingParameter)
	}
	return nil
}

func checkSamples(t, y []float64) error {
	if len(y) == 0 {
		return fmt.Errorf("%w: empty signal", ErrInvalidInput)
	}
	if len(t) != len(y) {
		return fmt.Errorf("%w: %d time samples for %d signal samples", ErrInvalidInput, len(t), len(y))
	}
	return nil
}

func float64Ptr(v float64) *float64 {
	return &v
}
