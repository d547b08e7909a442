package device

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
)

// DefaultRatios are the per-channel fractions of the generator signal seen by
// the simulated scope: the bridge divides the drive into equal thirds and the
// fourth channel mirrors the generator.
var DefaultRatios = []float64{1, 2.0 / 3, 1.0 / 3, 1}

// Simulated produces noisy sine captures without hardware.
type Simulated struct {
	// Ratios scales the generator signal per channel; nil uses DefaultRatios.
	Ratios []float64
	// NoiseFraction is the uniform noise amplitude relative to the generator amplitude.
	NoiseFraction float64

	mu        sync.Mutex
	rng       *rand.Rand
	generator GeneratorSettings
	scope     ScopeSettings
	running   bool
}

// NewSimulated creates a simulated device with a seeded noise source.
func NewSimulated(seed int64) *Simulated {
	s := &Simulated{
		NoiseFraction: 0.1,
		rng:           rand.New(rand.NewSource(seed)),
	}
	s.generator = DefaultGenerator()
	s.scope = DefaultScope()
	s.running = true
	return s
}

// Name implements Device.
func (s *Simulated) Name() string { return "dummy device" }

// Data implements Device.
func (s *Simulated) Data() ([][]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := int(float64(s.scope.Frequency) * s.scope.RecordTime)
	if n <= 0 {
		return nil, fmt.Errorf("scope records no samples (frequency=%d, record_time=%v)", s.scope.Frequency, s.scope.RecordTime)
	}

	ratios := s.Ratios
	if ratios == nil {
		ratios = DefaultRatios
	}

	base := make([]float64, n)
	if s.running {
		for i := range base {
			t := 0.0
			if n > 1 {
				t = s.scope.RecordTime * float64(i) / float64(n-1)
			}
			switch s.generator.SignalType {
			case SignalDC:
				base[i] = s.generator.Offset
			default:
				base[i] = s.generator.Amplitude*math.Sin(2*math.Pi*s.generator.Frequency*t) + s.generator.Offset
			}
		}
	}

	data := make([][]float64, len(ratios))
	for ch, ratio := range ratios {
		data[ch] = make([]float64, n)
		for i, v := range base {
			data[ch][i] = ratio*v + s.generator.Amplitude*s.NoiseFraction*s.rng.Float64()
		}
	}
	return data, nil
}

// SetGenerator implements Device.
func (s *Simulated) SetGenerator(settings GeneratorSettings) error {
	if settings.SignalType == "" {
		settings.SignalType = SignalSine
	}
	s.mu.Lock()
	s.generator = settings
	s.mu.Unlock()
	return nil
}

// StartGenerator implements Device.
func (s *Simulated) StartGenerator() error {
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()
	return nil
}

// StopGenerator implements Device.
func (s *Simulated) StopGenerator() error {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	return nil
}

// SetScope implements Device.
func (s *Simulated) SetScope(settings ScopeSettings) error {
	if settings.Frequency <= 0 || settings.RecordTime <= 0 {
		return fmt.Errorf("invalid scope settings: frequency=%d, record_time=%v", settings.Frequency, settings.RecordTime)
	}
	s.mu.Lock()
	s.scope = settings
	s.mu.Unlock()
	return nil
}
