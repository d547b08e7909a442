package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/vjranagit/electrode-tester/pkg/device"
)

// MeasurementSettings is the acquisition configuration a Measurement copies
// from its Experiment.
type MeasurementSettings struct {
	Frequencies  []float64
	Resistances  [2]decimal.Decimal
	Voltage      float64
	SamplingRate int
	SamplingTime float64
}

// Measurement is one acquisition round: a SignalContainer per configured
// frequency, stored as file names in the measurement folder.
type Measurement struct {
	id           string
	created      time.Time
	containers   []string
	frequencies  []float64
	resistances  [2]decimal.Decimal
	voltage      float64
	samplingRate int
	samplingTime float64
	parentFolder string

	loaded     bool
	workingDir string
	store      *Store
}

type measurementRecord struct {
	UUID         string    `json:"uuid"`
	Created      time.Time `json:"created"`
	Containers   []string  `json:"containers"`
	Frequencies  []float64 `json:"frequencies"`
	Resistances  [2]string `json:"resistances"`
	Voltage      float64   `json:"voltage"`
	SamplingRate int       `json:"sampling_rate"`
	SamplingTime float64   `json:"sampling_time"`
	ParentFolder string    `json:"parent_folder"`
}

// NewMeasurement creates a measurement inside parentFolder and saves it
// immediately, creating its folder.
func (s *Store) NewMeasurement(parentFolder string, settings MeasurementSettings) (*Measurement, error) {
	m := &Measurement{
		id:           uuid.NewString(),
		created:      s.now(),
		containers:   []string{},
		parentFolder: parentFolder,
		workingDir:   parentFolder,
		store:        s,
	}
	if err := m.SetFrequencies(settings.Frequencies); err != nil {
		return nil, err
	}
	if err := m.SetResistances(settings.Resistances); err != nil {
		return nil, err
	}
	if err := m.SetVoltage(settings.Voltage); err != nil {
		return nil, err
	}
	if err := m.SetSamplingRate(settings.SamplingRate); err != nil {
		return nil, err
	}
	if err := m.SetSamplingTime(settings.SamplingTime); err != nil {
		return nil, err
	}
	if _, err := m.Save(true); err != nil {
		return nil, err
	}
	return m, nil
}

// LoadMeasurement reads a .mes file. Containers are resolved relative to
// workingDir, which defaults to the directory holding the file.
func (s *Store) LoadMeasurement(path, workingDir string) (*Measurement, error) {
	if err := checkExtension(path, MeasurementExt); err != nil {
		return nil, err
	}

	var rec measurementRecord
	if err := readJSON(path, &rec); err != nil {
		return nil, err
	}

	resistances, err := parseResistances(rec.Resistances)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if workingDir == "" {
		workingDir = filepath.Dir(path)
	}

	return &Measurement{
		id:           rec.UUID,
		created:      rec.Created,
		containers:   rec.Containers,
		frequencies:  rec.Frequencies,
		resistances:  resistances,
		voltage:      rec.Voltage,
		samplingRate: rec.SamplingRate,
		samplingTime: rec.SamplingTime,
		parentFolder: rec.ParentFolder,
		loaded:       true,
		workingDir:   workingDir,
		store:        s,
	}, nil
}

// Save writes the measurement next to its folder and returns the file path.
// The owning experiment is referenced by folder path only.
func (m *Measurement) Save(overwrite bool) (string, error) {
	path := m.SavePath()
	if err := prepareSave(path, m.FolderPath(), overwrite); err != nil {
		return "", err
	}

	rec := measurementRecord{
		UUID:         m.id,
		Created:      m.created,
		Containers:   m.containers,
		Frequencies:  m.frequencies,
		Resistances:  [2]string{decimalText(m.resistances[0]), decimalText(m.resistances[1])},
		Voltage:      m.voltage,
		SamplingRate: m.samplingRate,
		SamplingTime: m.samplingTime,
		ParentFolder: m.parentFolder,
	}
	if err := writeJSON(path, &rec); err != nil {
		return "", err
	}
	return path, nil
}

// Acquire captures one SignalContainer per frequency from dev, saving each
// container and then the measurement after every append.
func (m *Measurement) Acquire(ctx context.Context, dev device.Device) error {
	if m.loaded {
		return ErrLoaded
	}

	for i, frequency := range m.frequencies {
		if err := ctx.Err(); err != nil {
			return err
		}

		m.store.log.WithFields(logrus.Fields{
			"measurement": m.Date(),
			"step":        fmt.Sprintf("%d/%d", i+1, len(m.frequencies)),
			"frequency":   frequency,
		}).Debug("Capturing")

		err := dev.SetGenerator(device.GeneratorSettings{
			Frequency:  frequency,
			Amplitude:  m.voltage,
			SignalType: device.SignalSine,
		})
		if err != nil {
			return fmt.Errorf("failed to set generator: %w", err)
		}
		data, err := dev.Data()
		if err != nil {
			return fmt.Errorf("failed to read device data: %w", err)
		}
		if len(data) > Channels {
			data = data[:Channels]
		}

		c, err := newSignalContainer(data, frequency, m.store.log)
		if err != nil {
			return err
		}
		name := fmt.Sprintf("%d_container%s", i, ContainerExt)
		if _, err := m.store.SaveContainer(c, filepath.Join(m.FolderPath(), name), false); err != nil {
			return err
		}
		m.containers = append(m.containers, name)
		if _, err := m.Save(true); err != nil {
			return err
		}
	}
	return nil
}

// UUID returns the measurement identity.
func (m *Measurement) UUID() string { return m.id }

// Hash returns the identity used for hashing; equality uses the timestamp.
func (m *Measurement) Hash() string { return m.id }

// Created returns the creation timestamp.
func (m *Measurement) Created() time.Time { return m.created }

// Date returns the formatted creation timestamp used in file names.
func (m *Measurement) Date() string { return FormatDate(m.created) }

// Loaded reports whether the measurement was read from disk.
func (m *Measurement) Loaded() bool { return m.loaded }

// Len returns the number of stored containers.
func (m *Measurement) Len() int { return len(m.containers) }

// Complete reports whether a container exists for every frequency.
func (m *Measurement) Complete() bool { return len(m.containers) == len(m.frequencies) }

// ParentFolder is the folder of the experiment that created the measurement.
func (m *Measurement) ParentFolder() string { return m.parentFolder }

// WorkingDir is the directory the measurement file lives in.
func (m *Measurement) WorkingDir() string { return m.workingDir }

// SavePath is the path of the .mes file.
func (m *Measurement) SavePath() string {
	return filepath.Join(m.workingDir, m.Date()+MeasurementExt)
}

// FolderPath is the folder holding the measurement's containers.
func (m *Measurement) FolderPath() string {
	return strings.TrimSuffix(m.SavePath(), MeasurementExt)
}

// ContainerNames returns the stored container file names in order.
func (m *Measurement) ContainerNames() []string {
	return append([]string(nil), m.containers...)
}

// Container loads the container at index i from disk.
func (m *Measurement) Container(i int) (*SignalContainer, error) {
	if i < 0 || i >= len(m.containers) {
		return nil, fmt.Errorf("%w: index must be between 0 and %d, not %d", ErrIndexOutOfRange, len(m.containers), i)
	}
	return m.store.LoadContainer(filepath.Join(m.FolderPath(), m.containers[i]))
}

// Slice loads containers lo..hi-1.
func (m *Measurement) Slice(lo, hi int) ([]*SignalContainer, error) {
	if lo < 0 || hi > len(m.containers) || lo > hi {
		return nil, fmt.Errorf("%w: [%d:%d] of %d containers", ErrIndexOutOfRange, lo, hi, len(m.containers))
	}
	out := make([]*SignalContainer, 0, hi-lo)
	for i := lo; i < hi; i++ {
		c, err := m.Container(i)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Containers loads every container.
func (m *Measurement) Containers() ([]*SignalContainer, error) {
	return m.Slice(0, len(m.containers))
}

// Each loads containers one at a time and calls fn until it returns an error.
func (m *Measurement) Each(fn func(i int, c *SignalContainer) error) error {
	for i := range m.containers {
		c, err := m.Container(i)
		if err != nil {
			return err
		}
		if err := fn(i, c); err != nil {
			return err
		}
	}
	return nil
}

// ByFrequency loads the container of the first configured frequency equal to f.
func (m *Measurement) ByFrequency(f float64) (*SignalContainer, error) {
	for i, freq := range m.frequencies {
		if freq == f {
			return m.Container(i)
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrUnknownFrequency, f)
}

// Frequencies returns a copy of the configured frequencies.
func (m *Measurement) Frequencies() []float64 {
	return append([]float64(nil), m.frequencies...)
}

// SetFrequencies replaces the configured frequencies.
func (m *Measurement) SetFrequencies(frequencies []float64) error {
	parsed, err := parseFrequencies(frequencies)
	if err != nil {
		return err
	}
	m.frequencies = parsed
	return nil
}

// Resistances returns the reference resistor pair.
func (m *Measurement) Resistances() [2]decimal.Decimal { return m.resistances }

// SetResistances replaces the reference resistor pair.
func (m *Measurement) SetResistances(r [2]decimal.Decimal) error {
	for _, v := range r {
		if v.IsNegative() {
			return validationError("resistances must be non-negative, not %s", v)
		}
	}
	m.resistances = r
	return nil
}

// R1 is the reference resistor in series with the electrode.
func (m *Measurement) R1() float64 { return m.resistances[0].InexactFloat64() }

// R2 is the second bridge resistor.
func (m *Measurement) R2() float64 { return m.resistances[1].InexactFloat64() }

// Voltage returns the generator amplitude in V.
func (m *Measurement) Voltage() float64 { return m.voltage }

// SetVoltage sets the generator amplitude.
func (m *Measurement) SetVoltage(v float64) error {
	if !(v > 0) {
		return validationError("voltage must be greater than 0, not %v", v)
	}
	m.voltage = v
	return nil
}

// SamplingRate returns the sampling rate in Hz.
func (m *Measurement) SamplingRate() int { return m.samplingRate }

// SampleRate is an alias of SamplingRate.
func (m *Measurement) SampleRate() int { return m.samplingRate }

// SetSamplingRate sets the sampling rate.
func (m *Measurement) SetSamplingRate(rate int) error {
	if rate <= 0 {
		return validationError("sampling_rate must be greater than 0, not %d", rate)
	}
	m.samplingRate = rate
	return nil
}

// SamplingTime returns the capture length per frequency in seconds.
func (m *Measurement) SamplingTime() float64 { return m.samplingTime }

// SetSamplingTime sets the capture length per frequency.
func (m *Measurement) SetSamplingTime(seconds float64) error {
	if !(seconds > 0) {
		return validationError("sampling_time must be greater than 0, not %v", seconds)
	}
	m.samplingTime = seconds
	return nil
}

// TimeVector returns int(rate*time) sample instants spread evenly over
// [0, sampling time], both ends included.
func (m *Measurement) TimeVector() []float64 {
	n := int(float64(m.samplingRate) * m.samplingTime)
	t := make([]float64, n)
	if n == 1 {
		return t
	}
	step := m.samplingTime / float64(n-1)
	for i := range t {
		t[i] = float64(i) * step
	}
	if n > 1 {
		t[n-1] = m.samplingTime
	}
	return t
}

// Equal compares creation timestamps only.
func (m *Measurement) Equal(other *Measurement) bool { return m.created.Equal(other.created) }

// Less orders measurements by creation time.
func (m *Measurement) Less(other *Measurement) bool { return m.created.Before(other.created) }

// Compare returns -1, 0 or +1 by creation time.
func (m *Measurement) Compare(other *Measurement) int { return m.created.Compare(other.created) }

func (m *Measurement) String() string {
	return fmt.Sprintf("Measurement(date=%s\n    frequency = %d Hz,\n    resistances = %s, %s Ohm,\n    voltage = %v V\n    )",
		m.Date(), m.samplingRate, decimalText(m.resistances[0]), decimalText(m.resistances[1]), m.voltage)
}

func parseFrequencies(frequencies []float64) ([]float64, error) {
	seen := make(map[float64]bool, len(frequencies))
	for _, f := range frequencies {
		if !(f > 0) {
			return nil, validationError("frequencies must be positive, not %v", f)
		}
		if seen[f] {
			return nil, validationError("frequency %v is repeated", f)
		}
		seen[f] = true
	}
	return append([]float64{}, frequencies...), nil
}

// ParseResistances parses the reference resistor pair as displayed by the meter.
func ParseResistances(r [2]string) ([2]decimal.Decimal, error) {
	return parseResistances(r)
}

func parseResistances(r [2]string) ([2]decimal.Decimal, error) {
	var out [2]decimal.Decimal
	for i, s := range r {
		d, err := decimal.NewFromString(strings.TrimSpace(s))
		if err != nil {
			return out, validationError("resistance %q is not convertible to decimal", s)
		}
		if d.IsNegative() {
			return out, validationError("resistance %q is negative", s)
		}
		out[i] = d
	}
	return out, nil
}

// decimalText keeps trailing zeros, which carry the meter's display precision.
func decimalText(d decimal.Decimal) string {
	if e := d.Exponent(); e < 0 {
		return d.StringFixed(-e)
	}
	return d.String()
}
