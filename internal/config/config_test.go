package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vjranagit/electrode-tester/pkg/types"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "electrode-tester.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Len(t, cfg.Acquisition.Frequencies, 100)

	exp, err := cfg.ToExperimentConfig()
	require.NoError(t, err)
	assert.Equal(t, [2]string{"392.000", "385.000"}, exp.Resistances)
	assert.InDelta(t, 1.0, exp.Electrode.Height(), 1e-12)
	assert.Equal(t, "results", exp.ResultsPath)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
  format: json
storage:
  results_path: /data/results
  compression_level: 3
  cache_capacity: 16
  cache_ttl: 5m
acquisition:
  frequencies: [10, 20, 50]
  resistances: ["100.00", "220"]
  delay: 30s
  tries: 0
electrode:
  salt_type: tap solution
  salinity: .nan
analysis:
  estimator: hilbert
  time_limit: 2h
  quantities: [resistance]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "/data/results", cfg.Storage.ResultsPath)
	assert.Equal(t, 5*time.Minute, cfg.Storage.CacheTTL)
	assert.Equal(t, []float64{10, 20, 50}, cfg.Acquisition.Frequencies)
	assert.Equal(t, []string{"100.00", "220"}, cfg.Acquisition.Resistances)
	assert.Equal(t, 30*time.Second, cfg.Acquisition.Delay)
	assert.Equal(t, 0, cfg.Acquisition.Tries)
	assert.Equal(t, 2*time.Hour, cfg.Analysis.TimeLimit)

	// Unset keys keep their defaults
	assert.Equal(t, 1.7, cfg.Acquisition.Voltage)
	assert.Equal(t, 1000, cfg.Acquisition.SamplingRate)

	quantities, err := cfg.AnalysisQuantities()
	require.NoError(t, err)
	assert.Equal(t, []types.Quantity{types.Resistance}, quantities)

	g := cfg.ToElectrodeGeometry()
	assert.True(t, math.IsNaN(g.Salinity))
	assert.Equal(t, "tap solution", g.SaltType)

	sc := cfg.ToStoreConfig()
	assert.Equal(t, 3, sc.CompressionLevel)
	assert.Equal(t, 16, sc.CacheCapacity)
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, "storage:\n  results_path: from-file\n")
	t.Setenv("ELECTRODE_STORAGE_RESULTS_PATH", "from-env")
	t.Setenv("ELECTRODE_ANALYSIS_ESTIMATOR", "fourier")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Storage.ResultsPath)
	assert.Equal(t, "fourier", cfg.Analysis.Estimator)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := writeConfig(t, "analysis:\n  estimator: wavelet\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"no results path", func(c *Config) { c.Storage.ResultsPath = "" }},
		{"compression level", func(c *Config) { c.Storage.CompressionLevel = 5 }},
		{"negative cache", func(c *Config) { c.Storage.CacheCapacity = -1 }},
		{"no frequencies", func(c *Config) { c.Acquisition.Frequencies = nil }},
		{"one resistance", func(c *Config) { c.Acquisition.Resistances = []string{"100"} }},
		{"zero voltage", func(c *Config) { c.Acquisition.Voltage = 0 }},
		{"zero sampling rate", func(c *Config) { c.Acquisition.SamplingRate = 0 }},
		{"negative tries", func(c *Config) { c.Acquisition.Tries = -1 }},
		{"negative delay", func(c *Config) { c.Acquisition.Delay = -time.Second }},
		{"unknown estimator", func(c *Config) { c.Analysis.Estimator = "wavelet" }},
		{"unknown quantity", func(c *Config) { c.Analysis.Quantities = []string{"capacitance"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestToExperimentConfigInvalidElectrode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Electrode.Width = 0
	_, err := cfg.ToExperimentConfig()
	assert.Error(t, err)
}
