package storage

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/vjranagit/electrode-tester/pkg/device"
	"github.com/vjranagit/electrode-tester/pkg/electrode"
)

// Channel names accepted by SetChannel.
const (
	ChannelCh1 = "ch1"
	ChannelCh2 = "ch2"
	ChannelCh3 = "ch3"
	ChannelGen = "gen"
)

// DefaultChannels maps channel names to hardware inputs.
func DefaultChannels() map[string]int {
	return map[string]int{ChannelCh1: 0, ChannelCh2: 1, ChannelCh3: 3, ChannelGen: 0}
}

// ExperimentConfig holds the acquisition configuration of a new Experiment.
type ExperimentConfig struct {
	Frequencies  []float64
	Resistances  [2]string // Ohm, as displayed by the meter
	Electrode    electrode.Electrode
	Channels     map[string]int
	Voltage      float64
	SamplingRate int
	SamplingTime float64 // s
	Delay        time.Duration
	Tries        int // 0 repeats until interrupted
	ResultsPath  string
	SaveName     string
	ScopeRange   float64
	Comment      string
}

// DefaultExperimentConfig returns the defaults for everything but the
// frequencies, resistances and electrode.
func DefaultExperimentConfig() ExperimentConfig {
	return ExperimentConfig{
		Voltage:      1,
		SamplingRate: 1024,
		SamplingTime: 5,
		Delay:        0,
		Tries:        1,
		ResultsPath:  "results",
		ScopeRange:   2,
	}
}

// Experiment is an ordered series of Measurements of one electrode. It keeps
// measurement file names only and loads them on access.
type Experiment struct {
	id           string
	created      time.Time
	device       device.Device
	resistances  [2]decimal.Decimal
	electrode    electrode.Electrode
	voltage      float64
	samplingRate int
	samplingTime float64
	delay        time.Duration
	tries        int
	comment      string
	measurements []string
	channels     map[string]int
	frequencies  []float64
	resultsPath  string
	saveName     string
	scopeRange   float64

	workingDir string
	store      *Store
}

type experimentRecord struct {
	UUID         string         `json:"uuid"`
	Created      time.Time      `json:"created"`
	Resistances  [2]string      `json:"resistances"`
	Electrode    geometryRecord `json:"electrode"`
	Voltage      float64        `json:"voltage"`
	SamplingRate int            `json:"sampling_rate"`
	SamplingTime float64        `json:"sampling_time"`
	Delay        float64        `json:"delay"`
	Tries        int            `json:"tries"`
	Comment      string         `json:"comment"`
	Measurements []string       `json:"measurements"`
	Channels     map[string]int `json:"channels"`
	Frequencies  []float64      `json:"frequencies"`
	ResultsPath  string         `json:"results_path"`
	SaveName     string         `json:"save_name"`
	ScopeRange   float64        `json:"scope_range"`
}

// geometryRecord stores salinity as null when it is NaN.
type geometryRecord struct {
	Type            string   `json:"type"`
	SaltType        string   `json:"salt_type"`
	Salinity        *float64 `json:"salinity"`
	NormalHeight    float64  `json:"normal_height"`
	SqueezeHeight   float64  `json:"squeeze_height"`
	Width           float64  `json:"width"`
	HeightDelta     float64  `json:"height_delta"`
	NormalHeightVar float64  `json:"normal_height_var"`
}

func newGeometryRecord(g electrode.Geometry) geometryRecord {
	rec := geometryRecord{
		Type:            g.Type,
		SaltType:        g.SaltType,
		NormalHeight:    g.NormalHeight,
		SqueezeHeight:   g.SqueezeHeight,
		Width:           g.Width,
		HeightDelta:     g.HeightDelta,
		NormalHeightVar: g.NormalHeightVar,
	}
	if !math.IsNaN(g.Salinity) {
		s := g.Salinity
		rec.Salinity = &s
	}
	return rec
}

func (r geometryRecord) geometry() electrode.Geometry {
	g := electrode.Geometry{
		Type:            r.Type,
		SaltType:        r.SaltType,
		Salinity:        math.NaN(),
		NormalHeight:    r.NormalHeight,
		SqueezeHeight:   r.SqueezeHeight,
		Width:           r.Width,
		HeightDelta:     r.HeightDelta,
		NormalHeightVar: r.NormalHeightVar,
	}
	if r.Salinity != nil {
		g.Salinity = *r.Salinity
	}
	return g
}

// NewExperiment validates cfg, creates the results directory, configures the
// device scope and saves the experiment. dev may be nil when nothing will be
// acquired.
func (s *Store) NewExperiment(dev device.Device, cfg ExperimentConfig) (*Experiment, error) {
	e := &Experiment{
		id:           uuid.NewString(),
		created:      s.now(),
		device:       dev,
		measurements: []string{},
		channels:     DefaultChannels(),
		store:        s,
	}

	resistances, err := parseResistances(cfg.Resistances)
	if err != nil {
		return nil, err
	}
	e.resistances = resistances

	if err := e.SetElectrode(cfg.Electrode); err != nil {
		return nil, err
	}
	if err := e.SetVoltage(cfg.Voltage); err != nil {
		return nil, err
	}
	if err := e.SetSamplingRate(cfg.SamplingRate); err != nil {
		return nil, err
	}
	if err := e.SetSamplingTime(cfg.SamplingTime); err != nil {
		return nil, err
	}
	if err := e.SetDelay(cfg.Delay); err != nil {
		return nil, err
	}
	if err := e.SetTries(cfg.Tries); err != nil {
		return nil, err
	}
	if err := e.SetScopeRange(cfg.ScopeRange); err != nil {
		return nil, err
	}
	e.comment = cfg.Comment
	if len(cfg.Channels) > 0 {
		if err := e.SetChannels(cfg.Channels); err != nil {
			return nil, err
		}
	}
	if err := e.SetFrequencies(cfg.Frequencies); err != nil {
		return nil, err
	}
	if err := e.setResultsPath(cfg.ResultsPath); err != nil {
		return nil, err
	}
	if err := e.setSaveName(cfg.SaveName); err != nil {
		return nil, err
	}

	if dev != nil {
		err := dev.SetScope(device.ScopeSettings{
			Frequency:  e.samplingRate,
			Range:      e.scopeRange,
			RecordTime: e.samplingTime,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to set scope: %w", err)
		}
	}

	if _, err := e.Save(false); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"path": e.SavePath(),
		"uuid": e.id,
	}).Info("Starting experiment")
	return e, nil
}

// LoadExperiment reads a .exp file. Measurements are resolved next to it.
func (s *Store) LoadExperiment(path string) (*Experiment, error) {
	if err := checkExtension(path, ExperimentExt); err != nil {
		return nil, err
	}

	var rec experimentRecord
	if err := readJSON(path, &rec); err != nil {
		return nil, err
	}

	resistances, err := parseResistances(rec.Resistances)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	el, err := electrode.New(rec.Electrode.geometry())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &Experiment{
		id:           rec.UUID,
		created:      rec.Created,
		resistances:  resistances,
		electrode:    el,
		voltage:      rec.Voltage,
		samplingRate: rec.SamplingRate,
		samplingTime: rec.SamplingTime,
		delay:        time.Duration(rec.Delay * float64(time.Second)),
		tries:        rec.Tries,
		comment:      rec.Comment,
		measurements: rec.Measurements,
		channels:     rec.Channels,
		frequencies:  rec.Frequencies,
		resultsPath:  rec.ResultsPath,
		saveName:     filepath.Base(path),
		scopeRange:   rec.ScopeRange,
		workingDir:   filepath.Dir(path),
		store:        s,
	}, nil
}

// Save writes the experiment file and creates its folder. The device handle
// is never written.
func (e *Experiment) Save(overwrite bool) (string, error) {
	path := e.SavePath()
	if err := prepareSave(path, e.FolderPath(), overwrite); err != nil {
		return "", err
	}

	rec := experimentRecord{
		UUID:         e.id,
		Created:      e.created,
		Resistances:  [2]string{decimalText(e.resistances[0]), decimalText(e.resistances[1])},
		Electrode:    newGeometryRecord(e.electrode.Geometry()),
		Voltage:      e.voltage,
		SamplingRate: e.samplingRate,
		SamplingTime: e.samplingTime,
		Delay:        e.delay.Seconds(),
		Tries:        e.tries,
		Comment:      e.comment,
		Measurements: e.measurements,
		Channels:     e.channels,
		Frequencies:  e.frequencies,
		ResultsPath:  e.resultsPath,
		SaveName:     e.saveName,
		ScopeRange:   e.scopeRange,
	}
	if err := writeJSON(path, &rec); err != nil {
		return "", err
	}
	return path, nil
}

// Close saves the experiment, replacing the previous file.
func (e *Experiment) Close() error {
	_, err := e.Save(true)
	return err
}

// NewMeasurement creates and saves an empty measurement in the experiment folder.
func (e *Experiment) NewMeasurement() (*Measurement, error) {
	return e.store.NewMeasurement(e.FolderPath(), MeasurementSettings{
		Frequencies:  e.frequencies,
		Resistances:  e.resistances,
		Voltage:      e.voltage,
		SamplingRate: e.samplingRate,
		SamplingTime: e.samplingTime,
	})
}

// AppendMeasurement records m, which must live in this experiment's folder.
func (e *Experiment) AppendMeasurement(m *Measurement) error {
	if filepath.Clean(m.WorkingDir()) != filepath.Clean(e.FolderPath()) {
		return validationError("measurement %s is stored in %q, not in %q", m.Date(), m.WorkingDir(), e.FolderPath())
	}
	e.measurements = append(e.measurements, filepath.Base(m.SavePath()))
	return nil
}

// Len returns the number of recorded measurements.
func (e *Experiment) Len() int { return len(e.measurements) }

// MeasurementNames returns the recorded measurement file names in order.
func (e *Experiment) MeasurementNames() []string {
	return append([]string(nil), e.measurements...)
}

// Measurement loads the measurement at index i from disk.
func (e *Experiment) Measurement(i int) (*Measurement, error) {
	if i < 0 || i >= len(e.measurements) {
		return nil, fmt.Errorf("%w: index must be between 0 and %d, not %d", ErrIndexOutOfRange, len(e.measurements), i)
	}
	folder := e.FolderPath()
	return e.store.LoadMeasurement(filepath.Join(folder, e.measurements[i]), folder)
}

// Slice loads measurements lo..hi-1.
func (e *Experiment) Slice(lo, hi int) ([]*Measurement, error) {
	if lo < 0 || hi > len(e.measurements) || lo > hi {
		return nil, fmt.Errorf("%w: [%d:%d] of %d measurements", ErrIndexOutOfRange, lo, hi, len(e.measurements))
	}
	out := make([]*Measurement, 0, hi-lo)
	for i := lo; i < hi; i++ {
		m, err := e.Measurement(i)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// Each loads measurements one at a time in storage order and calls fn until
// it returns an error.
func (e *Experiment) Each(fn func(i int, m *Measurement) error) error {
	for i := range e.measurements {
		m, err := e.Measurement(i)
		if err != nil {
			return err
		}
		if err := fn(i, m); err != nil {
			return err
		}
	}
	return nil
}

// UUID returns the experiment identity.
func (e *Experiment) UUID() string { return e.id }

// Hash returns the identity used for hashing; equality uses the timestamp.
func (e *Experiment) Hash() string { return e.id }

// Created returns the creation timestamp.
func (e *Experiment) Created() time.Time { return e.created }

// Date returns the formatted creation timestamp.
func (e *Experiment) Date() string { return FormatDate(e.created) }

// Device returns the bound device, nil for a loaded experiment.
func (e *Experiment) Device() device.Device { return e.device }

// Store returns the store the experiment reads and writes through.
func (e *Experiment) Store() *Store { return e.store }

// SaveName is the experiment file name.
func (e *Experiment) SaveName() string { return e.saveName }

// Name is the save name without extension.
func (e *Experiment) Name() string { return strings.TrimSuffix(e.saveName, ExperimentExt) }

// ResultsPath is the directory the experiment was created in.
func (e *Experiment) ResultsPath() string { return e.resultsPath }

// SavePath is the path of the .exp file.
func (e *Experiment) SavePath() string { return filepath.Join(e.workingDir, e.saveName) }

// FolderPath is the folder holding the measurement files.
func (e *Experiment) FolderPath() string {
	return strings.TrimSuffix(e.SavePath(), ExperimentExt)
}

func (e *Experiment) setResultsPath(path string) error {
	if path == "" {
		return validationError("results path is empty")
	}
	info, err := os.Stat(path)
	switch {
	case err == nil && !info.IsDir():
		return validationError("%q exists and is a file, not a folder", path)
	case os.IsNotExist(err):
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create results folder: %w", err)
		}
		e.store.log.WithField("path", path).Info("Created results folder")
	case err != nil:
		return err
	}
	e.resultsPath = path
	e.workingDir = path
	return nil
}

func (e *Experiment) setSaveName(name string) error {
	if name == "" {
		name = e.Date()
	}
	name = withExtension(name, ExperimentExt)
	if isFile(filepath.Join(e.resultsPath, name)) {
		return fmt.Errorf("%w: %q", ErrExists, filepath.Join(e.resultsPath, name))
	}
	e.saveName = name
	return nil
}

// Resistances returns the reference resistor pair.
func (e *Experiment) Resistances() [2]decimal.Decimal { return e.resistances }

// SetResistances parses and replaces the reference resistor pair.
func (e *Experiment) SetResistances(r [2]string) error {
	parsed, err := parseResistances(r)
	if err != nil {
		return err
	}
	e.resistances = parsed
	return nil
}

// R1 is the reference resistor in series with the electrode.
func (e *Experiment) R1() float64 { return e.resistances[0].InexactFloat64() }

// R2 is the second bridge resistor.
func (e *Experiment) R2() float64 { return e.resistances[1].InexactFloat64() }

// Electrode returns the electrode under test.
func (e *Experiment) Electrode() electrode.Electrode { return e.electrode }

// SetElectrode replaces the electrode under test.
func (e *Experiment) SetElectrode(el electrode.Electrode) error {
	if el == nil {
		return validationError("electrode is required")
	}
	e.electrode = el
	return nil
}

func (e *Experiment) Voltage() float64 { return e.voltage }

func (e *Experiment) SetVoltage(v float64) error {
	if !(v > 0) {
		return validationError("voltage should be positive number, not %v", v)
	}
	e.voltage = v
	return nil
}

func (e *Experiment) SamplingRate() int { return e.samplingRate }

func (e *Experiment) SetSamplingRate(rate int) error {
	if rate <= 0 {
		return validationError("sampling rate should be positive integer, not %d", rate)
	}
	e.samplingRate = rate
	return nil
}

func (e *Experiment) SamplingTime() float64 { return e.samplingTime }

func (e *Experiment) SetSamplingTime(seconds float64) error {
	if !(seconds > 0) {
		return validationError("sampling time should be positive, not %v", seconds)
	}
	e.samplingTime = seconds
	return nil
}

// Delay is the pause between measurements.
func (e *Experiment) Delay() time.Duration { return e.delay }

func (e *Experiment) SetDelay(d time.Duration) error {
	if d < 0 {
		return validationError("delay should be non negative, not %v", d)
	}
	e.delay = d
	return nil
}

// Tries is the number of measurements to take, 0 for unlimited.
func (e *Experiment) Tries() int { return e.tries }

func (e *Experiment) SetTries(tries int) error {
	if tries < 0 {
		return validationError("tries should be non negative integer, not %d", tries)
	}
	e.tries = tries
	return nil
}

func (e *Experiment) Comment() string { return e.comment }

func (e *Experiment) SetComment(comment string) { e.comment = comment }

func (e *Experiment) ScopeRange() float64 { return e.scopeRange }

func (e *Experiment) SetScopeRange(v float64) error {
	if !(v >= 0) {
		return validationError("scope_range should be non negative, not %v", v)
	}
	e.scopeRange = v
	return nil
}

// Frequencies returns a copy of the stimulus frequencies.
func (e *Experiment) Frequencies() []float64 {
	return append([]float64(nil), e.frequencies...)
}

// SetFrequencies replaces the stimulus frequencies. They must be distinct and positive.
func (e *Experiment) SetFrequencies(frequencies []float64) error {
	parsed, err := parseFrequencies(frequencies)
	if err != nil {
		return err
	}
	e.frequencies = parsed
	return nil
}

// Channels returns a copy of the channel mapping.
func (e *Experiment) Channels() map[string]int {
	out := make(map[string]int, len(e.channels))
	for k, v := range e.channels {
		out[k] = v
	}
	return out
}

// SetChannel maps one channel name to a hardware input.
func (e *Experiment) SetChannel(name string, input int) error {
	if _, ok := e.channels[name]; !ok {
		valid := make([]string, 0, len(e.channels))
		for k := range e.channels {
			valid = append(valid, k)
		}
		sort.Strings(valid)
		return fmt.Errorf("%w: %q, should be one of %q", ErrUnknownChannel, name, valid)
	}
	if input < 0 {
		return validationError("%d is not valid channel input, should be non negative", input)
	}
	e.channels[name] = input
	return nil
}

// SetChannels applies every entry or none of them.
func (e *Experiment) SetChannels(channels map[string]int) error {
	previous := e.Channels()
	for name, input := range channels {
		if err := e.SetChannel(name, input); err != nil {
			e.channels = previous
			return fmt.Errorf("cannot set %q:%d: %w", name, input, err)
		}
	}
	return nil
}

// Equal compares creation timestamps only.
func (e *Experiment) Equal(other *Experiment) bool { return e.created.Equal(other.created) }

// Less orders experiments by creation time.
func (e *Experiment) Less(other *Experiment) bool { return e.created.Before(other.created) }

// Compare returns -1, 0 or +1 by creation time.
func (e *Experiment) Compare(other *Experiment) int { return e.created.Compare(other.created) }

func (e *Experiment) String() string {
	tries := fmt.Sprintf("%d", len(e.measurements))
	if e.tries > 0 {
		tries += fmt.Sprintf("/%d", e.tries)
	}
	freqs := make([]string, len(e.frequencies))
	for i, f := range e.frequencies {
		freqs[i] = fmt.Sprintf("%v", f)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Experiment(date=%s,\n", e.Date())
	fmt.Fprintf(&b, "    electrode: %v,\n", e.electrode)
	fmt.Fprintf(&b, "    tries: %s,\n", tries)
	fmt.Fprintf(&b, "    frequencies: %s Hz,\n", strings.Join(freqs, ", "))
	fmt.Fprintf(&b, "    voltage: %v V,\n", e.voltage)
	fmt.Fprintf(&b, "    sampling rate: %d Hz,\n", e.samplingRate)
	fmt.Fprintf(&b, "    sampling time: %v s", e.samplingTime)
	if e.comment != "" {
		fmt.Fprintf(&b, ",\n    comment: %s", e.comment)
	}
	b.WriteString("\n)")
	return b.String()
}
