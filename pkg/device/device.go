// Package device defines the generator/oscilloscope hardware the acquisition
// loop drives, plus a simulated implementation.
package device

// SignalType selects the generator waveform.
type SignalType string

const (
	SignalSine SignalType = "sine"
	SignalDC   SignalType = "dc"
)

// GeneratorSettings configures the signal generator.
type GeneratorSettings struct {
	Frequency  float64 // Hz
	Amplitude  float64 // V
	Offset     float64 // V
	SignalType SignalType
}

// ScopeSettings configures the oscilloscope capture.
type ScopeSettings struct {
	Frequency  int     // sampling rate, Hz
	Range      float64 // V
	RecordTime float64 // s
}

// DefaultGenerator returns the generator settings used when none are given.
func DefaultGenerator() GeneratorSettings {
	return GeneratorSettings{
		Frequency:  1,
		Amplitude:  0.1,
		Offset:     0,
		SignalType: SignalSine,
	}
}

// DefaultScope returns the scope settings used when none are given.
func DefaultScope() ScopeSettings {
	return ScopeSettings{
		Frequency:  1024,
		Range:      0.2,
		RecordTime: 3,
	}
}

// Device is a combined generator and multi-channel oscilloscope.
type Device interface {
	// Name identifies the device
	Name() string

	// Data captures one block of samples, one slice per channel
	Data() ([][]float64, error)

	// SetGenerator configures the generator output
	SetGenerator(settings GeneratorSettings) error

	// StartGenerator enables the generator output
	StartGenerator() error

	// StopGenerator disables the generator output
	StopGenerator() error

	// SetScope configures the capture
	SetScope(settings ScopeSettings) error
}
