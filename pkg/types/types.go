package types

import (
	"fmt"
	"strings"
	"time"
)

// Quantity names a derived electrical quantity
type Quantity string

const (
	Resistance  Quantity = "resistance"
	Resistivity Quantity = "resistivity"
)

// AllQuantities is the default selection
var AllQuantities = []Quantity{Resistance, Resistivity}

// ParseQuantity normalises a quantity name
func ParseQuantity(s string) (Quantity, error) {
	switch q := Quantity(strings.ToLower(strings.TrimSpace(s))); q {
	case Resistance, Resistivity:
		return q, nil
	}
	return "", fmt.Errorf("unknown quantity %q, should be %q or %q", s, Resistance, Resistivity)
}

// Value is a derived quantity with its standard uncertainty
type Value struct {
	Value float64 `json:"value"`
	Error float64 `json:"error"`
}

// MeasurementResult holds per-frequency quantities of one measurement,
// aligned with Frequencies. Unrequested quantities are nil.
type MeasurementResult struct {
	Frequencies []float64 `json:"frequencies"`
	Resistance  []Value   `json:"resistance,omitempty"`
	Resistivity []Value   `json:"resistivity,omitempty"`
}

// Sample represents a single time-series point
type Sample struct {
	Elapsed time.Duration `json:"elapsed"`
	Value   float64       `json:"value"`
	Error   float64       `json:"error"`
}

// Series is one quantity at one stimulus frequency over time
type Series struct {
	Quantity  Quantity `json:"quantity"`
	Frequency float64  `json:"frequency"`
	Samples   []Sample `json:"samples"`
}

// Values returns the sample values in order
func (s *Series) Values() []float64 {
	out := make([]float64, len(s.Samples))
	for i, sample := range s.Samples {
		out[i] = sample.Value
	}
	return out
}

// Errors returns the sample uncertainties in order
func (s *Series) Errors() []float64 {
	out := make([]float64, len(s.Samples))
	for i, sample := range s.Samples {
		out[i] = sample.Error
	}
	return out
}

// SeriesSet maps stimulus frequency to a Series, keeping first-seen order
type SeriesSet struct {
	Quantity Quantity
	order    []float64
	series   map[float64]*Series
}

// NewSeriesSet creates an empty set for q
func NewSeriesSet(q Quantity) *SeriesSet {
	return &SeriesSet{
		Quantity: q,
		series:   make(map[float64]*Series),
	}
}

// Append adds a point to the series of frequency f
func (s *SeriesSet) Append(f float64, elapsed time.Duration, v Value) {
	series, ok := s.series[f]
	if !ok {
		series = &Series{Quantity: s.Quantity, Frequency: f}
		s.series[f] = series
		s.order = append(s.order, f)
	}
	series.Samples = append(series.Samples, Sample{Elapsed: elapsed, Value: v.Value, Error: v.Error})
}

// Get returns the series of frequency f
func (s *SeriesSet) Get(f float64) (*Series, bool) {
	series, ok := s.series[f]
	return series, ok
}

// Frequencies returns frequencies in first-seen order
func (s *SeriesSet) Frequencies() []float64 {
	return append([]float64(nil), s.order...)
}

// All returns every series in first-seen frequency order
func (s *SeriesSet) All() []*Series {
	out := make([]*Series, len(s.order))
	for i, f := range s.order {
		out[i] = s.series[f]
	}
	return out
}

// ExperimentResult is the windowed time series of an experiment.
// Unrequested quantities are nil.
type ExperimentResult struct {
	Elapsed     []time.Duration
	Resistance  *SeriesSet
	Resistivity *SeriesSet
}

// Sets returns the computed series sets
func (r *ExperimentResult) Sets() []*SeriesSet {
	var sets []*SeriesSet
	if r.Resistance != nil {
		sets = append(sets, r.Resistance)
	}
	if r.Resistivity != nil {
		sets = append(sets, r.Resistivity)
	}
	return sets
}
