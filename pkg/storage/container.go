package storage

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Channels is the number of channels a SignalContainer keeps.
const Channels = 3

// SignalContainer is one synchronized three-channel capture at a single
// stimulus frequency. It is immutable; accessors return copies.
type SignalContainer struct {
	channels  [Channels][]float64
	frequency float64
}

// containerRecord is the on-disk form of a SignalContainer. Channel payloads
// are XOR+zstd compressed.
type containerRecord struct {
	Frequency float64          `json:"frequency"`
	Samples   int              `json:"samples"`
	Channels  [Channels][]byte `json:"channels"`
}

// NewSignalContainer validates data (channels x samples) and keeps the first
// three channels. Extra channels are dropped with a warning.
func NewSignalContainer(data [][]float64, frequency float64) (*SignalContainer, error) {
	return newSignalContainer(data, frequency, DefaultStore().log)
}

func newSignalContainer(data [][]float64, frequency float64, log *logrus.Entry) (*SignalContainer, error) {
	if len(data) < Channels {
		return nil, validationError("data should be shape %d by n, not %d channels", Channels, len(data))
	}
	if !(frequency > 0) {
		return nil, validationError("frequency must be positive, not %v", frequency)
	}

	n := len(data[0])
	if n == 0 {
		return nil, validationError("data has no samples")
	}
	if len(data) > Channels {
		log.WithFields(logrus.Fields{
			"channels": len(data),
			"samples":  n,
		}).Warnf("Truncating data to shape %d by %d", Channels, n)
	}

	c := &SignalContainer{frequency: frequency}
	for i := 0; i < Channels; i++ {
		if len(data[i]) != n {
			return nil, validationError("channel %d has %d samples, channel 1 has %d", i+1, len(data[i]), n)
		}
		c.channels[i] = append([]float64(nil), data[i]...)
	}
	return c, nil
}

// Frequency returns the stimulus frequency in Hz.
func (c *SignalContainer) Frequency() float64 { return c.frequency }

// Samples returns the number of samples per channel.
func (c *SignalContainer) Samples() int { return len(c.channels[0]) }

// Channel returns a copy of channel i (0-based).
func (c *SignalContainer) Channel(i int) ([]float64, error) {
	if i < 0 || i >= Channels {
		return nil, fmt.Errorf("%w: channel index must be between 0 and %d, not %d", ErrIndexOutOfRange, Channels-1, i)
	}
	return append([]float64(nil), c.channels[i]...), nil
}

// Data returns a copy of all three channels.
func (c *SignalContainer) Data() [][]float64 {
	out := make([][]float64, Channels)
	for i := range c.channels {
		out[i] = append([]float64(nil), c.channels[i]...)
	}
	return out
}

func (c *SignalContainer) Chan1() []float64 { return append([]float64(nil), c.channels[0]...) }
func (c *SignalContainer) Chan2() []float64 { return append([]float64(nil), c.channels[1]...) }
func (c *SignalContainer) Chan3() []float64 { return append([]float64(nil), c.channels[2]...) }

// V1 is the voltage over the reference resistor arm, chan1 - chan2.
func (c *SignalContainer) V1() []float64 { return diff(c.channels[0], c.channels[1]) }

// V2 is the voltage over the electrode arm, chan2 - chan3.
func (c *SignalContainer) V2() []float64 { return diff(c.channels[1], c.channels[2]) }

// Equal reports whether both containers hold the same samples and frequency.
func (c *SignalContainer) Equal(other *SignalContainer) bool {
	if other == nil || c.frequency != other.frequency {
		return false
	}
	for i := range c.channels {
		if len(c.channels[i]) != len(other.channels[i]) {
			return false
		}
		for j := range c.channels[i] {
			if c.channels[i][j] != other.channels[i][j] {
				return false
			}
		}
	}
	return true
}

func (c *SignalContainer) String() string {
	return fmt.Sprintf("SignalContainer(frequency=%v)", c.frequency)
}

func diff(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out
}
