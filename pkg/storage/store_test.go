package storage

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vjranagit/electrode-tester/pkg/device"
	"github.com/vjranagit/electrode-tester/pkg/electrode"
)

// stepClock advances one second per call so every entity gets its own file name.
type stepClock struct{ t time.Time }

func (c *stepClock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestStore(t *testing.T, cacheCapacity int) *Store {
	t.Helper()
	logger, _ := logtest.NewNullLogger()
	clock := &stepClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.Local)}
	s, err := NewStore(&Config{
		CompressionLevel: 2,
		CacheCapacity:    cacheCapacity,
		Logger:           logrus.NewEntry(logger),
		Now:              clock.Now,
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testElectrode(t *testing.T) electrode.Electrode {
	t.Helper()
	el, err := electrode.New(electrode.Geometry{
		Type:            "Vileda",
		SaltType:        "saline",
		Salinity:        math.NaN(),
		NormalHeight:    1.2,
		SqueezeHeight:   0.2,
		Width:           2,
		HeightDelta:     0.01,
		NormalHeightVar: 0.001,
	})
	require.NoError(t, err)
	return el
}

func testExperimentConfig(t *testing.T) ExperimentConfig {
	cfg := DefaultExperimentConfig()
	cfg.Frequencies = []float64{5, 10}
	cfg.Resistances = [2]string{"100.00", "200"}
	cfg.Electrode = testElectrode(t)
	cfg.SamplingRate = 100
	cfg.SamplingTime = 1
	cfg.ResultsPath = filepath.Join(t.TempDir(), "results")
	cfg.SaveName = "run"
	return cfg
}

func newTestExperiment(t *testing.T, s *Store) (*Experiment, *device.Simulated) {
	t.Helper()
	dev := device.NewSimulated(1)
	exp, err := s.NewExperiment(dev, testExperimentConfig(t))
	require.NoError(t, err)
	return exp, dev
}

func acquireMeasurement(t *testing.T, exp *Experiment, dev device.Device) *Measurement {
	t.Helper()
	m, err := exp.NewMeasurement()
	require.NoError(t, err)
	require.NoError(t, m.Acquire(context.Background(), dev))
	require.NoError(t, exp.AppendMeasurement(m))
	_, err = exp.Save(true)
	require.NoError(t, err)
	return m
}

func TestSignalContainerTruncatesExtraChannels(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	data := [][]float64{{1, 2}, {3, 4}, {5, 6}, {7, 8}}

	c, err := newSignalContainer(data, 10, logrus.NewEntry(logger))
	require.NoError(t, err)
	assert.Len(t, c.Data(), 3)
	assert.Equal(t, []float64{5, 6}, c.Chan3())

	require.Len(t, hook.Entries, 1)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, 4, hook.LastEntry().Data["channels"])
}

func TestSignalContainerValidation(t *testing.T) {
	_, err := NewSignalContainer([][]float64{{1, 2}, {3, 4}}, 10)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewSignalContainer([][]float64{{1, 2}, {3, 4}, {5}}, 10)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewSignalContainer([][]float64{{1}, {2}, {3}}, 0)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSignalContainerViews(t *testing.T) {
	data := [][]float64{{3, 3}, {2, 1}, {0, 1}}
	c, err := NewSignalContainer(data, 50)
	require.NoError(t, err)

	assert.Equal(t, []float64{1, 2}, c.V1())
	assert.Equal(t, []float64{2, 0}, c.V2())

	// Mutating input or accessor results does not touch the container
	data[0][0] = 100
	ch := c.Chan1()
	ch[1] = 100
	assert.Equal(t, []float64{3, 3}, c.Chan1())

	_, err = c.Channel(3)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestSignalContainerRoundTrip(t *testing.T) {
	s := newTestStore(t, 0)
	dir := t.TempDir()
	c := testContainer(t, 7.5)

	path, err := s.SaveContainer(c, filepath.Join(dir, "0_container.cont"), false)
	require.NoError(t, err)

	loaded, err := s.LoadContainer(path)
	require.NoError(t, err)
	assert.True(t, c.Equal(loaded))

	_, err = s.SaveContainer(c, path, false)
	assert.ErrorIs(t, err, ErrExists)
	_, err = s.SaveContainer(c, path, true)
	assert.NoError(t, err)

	_, err = s.LoadContainer(filepath.Join(dir, "0_container.mes"))
	assert.ErrorIs(t, err, ErrWrongExtension)
}

func TestMeasurementAcquireAndLoad(t *testing.T) {
	s := newTestStore(t, 0)
	exp, dev := newTestExperiment(t, s)

	m, err := exp.NewMeasurement()
	require.NoError(t, err)
	assert.False(t, m.Complete())
	assert.FileExists(t, m.SavePath())
	assert.DirExists(t, m.FolderPath())

	require.NoError(t, m.Acquire(context.Background(), dev))
	assert.True(t, m.Complete())
	assert.Equal(t, []string{"0_container.cont", "1_container.cont"}, m.ContainerNames())

	loaded, err := s.LoadMeasurement(m.SavePath(), "")
	require.NoError(t, err)
	assert.True(t, loaded.Equal(m))
	assert.True(t, loaded.Loaded())
	assert.Equal(t, m.UUID(), loaded.Hash())
	assert.Equal(t, exp.FolderPath(), loaded.ParentFolder())
	assert.Equal(t, "100.00", loaded.Resistances()[0].StringFixed(2))
	assert.Equal(t, 100.0, loaded.R1())

	c, err := loaded.ByFrequency(10)
	require.NoError(t, err)
	assert.Equal(t, 10.0, c.Frequency())
	assert.Equal(t, 100, c.Samples())

	_, err = loaded.ByFrequency(7)
	assert.ErrorIs(t, err, ErrUnknownFrequency)

	_, err = loaded.Container(2)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	err = loaded.Acquire(context.Background(), dev)
	assert.ErrorIs(t, err, ErrLoaded)

	_, err = s.LoadMeasurement(exp.SavePath(), "")
	assert.ErrorIs(t, err, ErrWrongExtension)
}

func TestMeasurementSaveRefusesOverwrite(t *testing.T) {
	s := newTestStore(t, 0)
	exp, _ := newTestExperiment(t, s)

	m, err := exp.NewMeasurement()
	require.NoError(t, err)

	_, err = m.Save(false)
	assert.ErrorIs(t, err, ErrExists)
	_, err = m.Save(true)
	assert.NoError(t, err)
}

func TestMeasurementAcquireCancelled(t *testing.T) {
	s := newTestStore(t, 0)
	exp, dev := newTestExperiment(t, s)

	m, err := exp.NewMeasurement()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.Acquire(ctx, dev), context.Canceled)
	assert.Equal(t, 0, m.Len())
}

func TestMeasurementSetters(t *testing.T) {
	s := newTestStore(t, 0)
	exp, _ := newTestExperiment(t, s)
	m, err := exp.NewMeasurement()
	require.NoError(t, err)

	assert.ErrorIs(t, m.SetVoltage(0), ErrValidation)
	assert.ErrorIs(t, m.SetSamplingRate(-1), ErrValidation)
	assert.ErrorIs(t, m.SetSamplingTime(0), ErrValidation)
	assert.ErrorIs(t, m.SetFrequencies([]float64{1, 1}), ErrValidation)
	assert.ErrorIs(t, m.SetFrequencies([]float64{1, -2}), ErrValidation)
	assert.Equal(t, []float64{5, 10}, m.Frequencies())
}

func TestMeasurementTimeVector(t *testing.T) {
	s := newTestStore(t, 0)
	exp, _ := newTestExperiment(t, s)
	m, err := exp.NewMeasurement()
	require.NoError(t, err)

	tv := m.TimeVector()
	require.Len(t, tv, 100)
	assert.Equal(t, 0.0, tv[0])
	assert.Equal(t, 1.0, tv[99])
	assert.InDelta(t, 1.0/99, tv[1], 1e-12)
}

func TestMeasurementReadsFromDiskOnEveryAccess(t *testing.T) {
	s := newTestStore(t, 0)
	exp, dev := newTestExperiment(t, s)
	m := acquireMeasurement(t, exp, dev)

	a, err := m.Container(0)
	require.NoError(t, err)
	b, err := m.Container(0)
	require.NoError(t, err)
	assert.NotSame(t, a, b)
	assert.True(t, a.Equal(b))
}

func TestContainerCacheServesRepeatedLoads(t *testing.T) {
	s := newTestStore(t, 8)
	exp, dev := newTestExperiment(t, s)
	m := acquireMeasurement(t, exp, dev)

	a, err := m.Container(0)
	require.NoError(t, err)
	b, err := m.Container(0)
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, uint64(1), s.CacheStats().Hits)
}

func TestExperimentRoundTrip(t *testing.T) {
	s := newTestStore(t, 0)
	exp, dev := newTestExperiment(t, s)
	first := acquireMeasurement(t, exp, dev)
	second := acquireMeasurement(t, exp, dev)

	assert.Equal(t, "run.exp", exp.SaveName())
	assert.Same(t, dev, exp.Device())

	loaded, err := s.LoadExperiment(exp.SavePath())
	require.NoError(t, err)
	assert.True(t, loaded.Equal(exp))
	assert.Equal(t, exp.UUID(), loaded.UUID())
	assert.Nil(t, loaded.Device())
	assert.Equal(t, 2, loaded.Len())
	assert.Equal(t, exp.Frequencies(), loaded.Frequencies())
	assert.Equal(t, exp.Channels(), loaded.Channels())
	assert.Equal(t, exp.Electrode().Geometry().Type, loaded.Electrode().Geometry().Type)
	assert.True(t, math.IsNaN(loaded.Electrode().Geometry().Salinity))
	assert.InDelta(t, exp.Electrode().HeightError(), loaded.Electrode().HeightError(), 1e-15)

	measurements, err := loaded.Slice(0, 2)
	require.NoError(t, err)
	assert.True(t, measurements[0].Equal(first))
	assert.True(t, measurements[1].Equal(second))
	assert.True(t, measurements[0].Less(measurements[1]))

	c, err := measurements[1].Container(1)
	require.NoError(t, err)
	assert.Equal(t, 10.0, c.Frequency())

	count := 0
	require.NoError(t, loaded.Each(func(i int, m *Measurement) error {
		count++
		return nil
	}))
	assert.Equal(t, 2, count)

	_, err = loaded.Measurement(2)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	_, err = s.LoadExperiment(first.SavePath())
	assert.ErrorIs(t, err, ErrWrongExtension)
}

func TestExperimentRefusesExistingName(t *testing.T) {
	s := newTestStore(t, 0)
	cfg := testExperimentConfig(t)

	_, err := s.NewExperiment(nil, cfg)
	require.NoError(t, err)

	_, err = s.NewExperiment(nil, cfg)
	assert.ErrorIs(t, err, ErrExists)
}

func TestExperimentDefaultSaveName(t *testing.T) {
	s := newTestStore(t, 0)
	cfg := testExperimentConfig(t)
	cfg.SaveName = ""

	exp, err := s.NewExperiment(nil, cfg)
	require.NoError(t, err)
	assert.Equal(t, exp.Date()+ExperimentExt, exp.SaveName())
	assert.FileExists(t, exp.SavePath())
	assert.DirExists(t, exp.FolderPath())

	_, err = exp.Save(false)
	assert.ErrorIs(t, err, ErrExists)
	assert.NoError(t, exp.Close())
}

func TestExperimentValidation(t *testing.T) {
	s := newTestStore(t, 0)

	tests := []struct {
		name   string
		mutate func(*ExperimentConfig)
		want   error
	}{
		{"negative resistance", func(c *ExperimentConfig) { c.Resistances = [2]string{"-1", "2"} }, ErrValidation},
		{"unparseable resistance", func(c *ExperimentConfig) { c.Resistances = [2]string{"1k", "2"} }, ErrValidation},
		{"zero frequency", func(c *ExperimentConfig) { c.Frequencies = []float64{0} }, ErrValidation},
		{"duplicate frequency", func(c *ExperimentConfig) { c.Frequencies = []float64{5, 5} }, ErrValidation},
		{"zero voltage", func(c *ExperimentConfig) { c.Voltage = 0 }, ErrValidation},
		{"negative delay", func(c *ExperimentConfig) { c.Delay = -time.Second }, ErrValidation},
		{"negative tries", func(c *ExperimentConfig) { c.Tries = -1 }, ErrValidation},
		{"unknown channel", func(c *ExperimentConfig) { c.Channels = map[string]int{"ch4": 1} }, ErrUnknownChannel},
		{"negative channel", func(c *ExperimentConfig) { c.Channels = map[string]int{"ch1": -1} }, ErrValidation},
		{"missing electrode", func(c *ExperimentConfig) { c.Electrode = nil }, ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testExperimentConfig(t)
			tt.mutate(&cfg)
			_, err := s.NewExperiment(nil, cfg)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestExperimentSetChannelsAllOrNothing(t *testing.T) {
	s := newTestStore(t, 0)
	exp, _ := newTestExperiment(t, s)

	before := exp.Channels()
	err := exp.SetChannels(map[string]int{"ch1": 5, "bogus": 1})
	assert.ErrorIs(t, err, ErrUnknownChannel)
	assert.Equal(t, before, exp.Channels())

	require.NoError(t, exp.SetChannels(map[string]int{"ch1": 2, "gen": 1}))
	assert.Equal(t, 2, exp.Channels()["ch1"])
	assert.Equal(t, 3, exp.Channels()["ch3"])
}

func TestExperimentAppendForeignMeasurement(t *testing.T) {
	s := newTestStore(t, 0)
	exp, _ := newTestExperiment(t, s)

	other, err := s.NewMeasurement(t.TempDir(), MeasurementSettings{
		Frequencies:  []float64{1},
		Voltage:      1,
		SamplingRate: 10,
		SamplingTime: 1,
	})
	require.NoError(t, err)
	assert.ErrorIs(t, exp.AppendMeasurement(other), ErrValidation)
}

func TestEqualityUsesTimestampOnly(t *testing.T) {
	a := &Experiment{id: "a", created: time.Unix(100, 0)}
	b := &Experiment{id: "b", created: time.Unix(100, 0)}
	c := &Experiment{id: "c", created: time.Unix(200, 0)}

	assert.True(t, a.Equal(b))
	assert.NotEqual(t, a.Hash(), b.Hash())
	assert.True(t, a.Less(c))
	assert.Equal(t, 1, c.Compare(a))
}

func TestResultsPathIsFile(t *testing.T) {
	s := newTestStore(t, 0)
	cfg := testExperimentConfig(t)
	exp, err := s.NewExperiment(nil, cfg)
	require.NoError(t, err)

	cfg.ResultsPath = exp.SavePath()
	cfg.SaveName = "other"
	_, err = s.NewExperiment(nil, cfg)
	assert.ErrorIs(t, err, ErrValidation)
}
