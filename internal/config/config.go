package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/vjranagit/electrode-tester/pkg/electrode"
	"github.com/vjranagit/electrode-tester/pkg/estimator"
	"github.com/vjranagit/electrode-tester/pkg/storage"
	"github.com/vjranagit/electrode-tester/pkg/types"
)

// EnvPrefix prefixes environment overrides, e.g. ELECTRODE_STORAGE_RESULTS_PATH.
const EnvPrefix = "ELECTRODE"

// Config holds the application configuration
type Config struct {
	Log         LogConfig         `mapstructure:"log"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Acquisition AcquisitionConfig `mapstructure:"acquisition"`
	Electrode   ElectrodeConfig   `mapstructure:"electrode"`
	Analysis    AnalysisConfig    `mapstructure:"analysis"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	ResultsPath      string        `mapstructure:"results_path"`
	CompressionLevel int           `mapstructure:"compression_level"`
	CacheCapacity    int           `mapstructure:"cache_capacity"`
	CacheTTL         time.Duration `mapstructure:"cache_ttl"`
	CatalogPath      string        `mapstructure:"catalog_path"` // empty disables the catalog
}

// AcquisitionConfig holds the settings of new experiments
type AcquisitionConfig struct {
	Frequencies []float64 `mapstructure:"frequencies"`
	// Resistances of R1 and R2 in Ohm, quoted in YAML so the displayed
	// precision survives
	Resistances  []string       `mapstructure:"resistances"`
	Channels     map[string]int `mapstructure:"channels"`
	Voltage      float64        `mapstructure:"voltage"`
	SamplingRate int            `mapstructure:"sampling_rate"`
	SamplingTime float64        `mapstructure:"sampling_time"`
	Delay        time.Duration  `mapstructure:"delay"`
	Tries        int            `mapstructure:"tries"`
	ScopeRange   float64        `mapstructure:"scope_range"`
	SaveName     string         `mapstructure:"save_name"`
	Comment      string         `mapstructure:"comment"`
}

// ElectrodeConfig describes the electrode under test. Salinity is a
// percentage, or .nan in YAML when not applicable.
type ElectrodeConfig struct {
	Type            string  `mapstructure:"type"`
	SaltType        string  `mapstructure:"salt_type"`
	Salinity        float64 `mapstructure:"salinity"`
	NormalHeight    float64 `mapstructure:"normal_height"`
	SqueezeHeight   float64 `mapstructure:"squeeze_height"`
	Width           float64 `mapstructure:"width"`
	HeightDelta     float64 `mapstructure:"height_delta"`
	NormalHeightVar float64 `mapstructure:"normal_height_var"`
}

// AnalysisConfig holds analysis configuration
type AnalysisConfig struct {
	Estimator  string        `mapstructure:"estimator"`
	TimeLimit  time.Duration `mapstructure:"time_limit"`
	Quantities []string      `mapstructure:"quantities"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	freqs := make([]float64, 0, 100)
	for f := 1; f <= 100; f++ {
		freqs = append(freqs, float64(f))
	}

	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Storage: StorageConfig{
			ResultsPath:      "results",
			CompressionLevel: 2,
			CacheCapacity:    0,
			CacheTTL:         0,
			CatalogPath:      "",
		},
		Acquisition: AcquisitionConfig{
			Frequencies:  freqs,
			Resistances:  []string{"392.000", "385.000"},
			Channels:     storage.DefaultChannels(),
			Voltage:      1.7,
			SamplingRate: 1000,
			SamplingTime: 5,
			Delay:        0,
			Tries:        15,
			ScopeRange:   2,
		},
		Electrode: ElectrodeConfig{
			Type:            string(electrode.TypeVileda),
			SaltType:        string(electrode.SaltSaline),
			Salinity:        0.9,
			NormalHeight:    1.5,
			SqueezeHeight:   0.5,
			Width:           0.5,
			HeightDelta:     0.1,
			NormalHeightVar: 0.1,
		},
		Analysis: AnalysisConfig{
			Estimator:  "sinus",
			TimeLimit:  24 * time.Hour,
			Quantities: []string{string(types.Resistance), string(types.Resistivity)},
		},
	}
}

// Load reads configuration from path, or from electrode-tester.yaml in the
// working directory or ./configs when path is empty. A .env file and
// ELECTRODE_* variables override file values.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("electrode-tester")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// Config file not found, use defaults and environment variables
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetDefault("storage.results_path", d.Storage.ResultsPath)
	v.SetDefault("storage.compression_level", d.Storage.CompressionLevel)
	v.SetDefault("storage.cache_capacity", d.Storage.CacheCapacity)
	v.SetDefault("storage.cache_ttl", d.Storage.CacheTTL)
	v.SetDefault("storage.catalog_path", d.Storage.CatalogPath)

	v.SetDefault("acquisition.frequencies", d.Acquisition.Frequencies)
	v.SetDefault("acquisition.resistances", d.Acquisition.Resistances)
	v.SetDefault("acquisition.channels", d.Acquisition.Channels)
	v.SetDefault("acquisition.voltage", d.Acquisition.Voltage)
	v.SetDefault("acquisition.sampling_rate", d.Acquisition.SamplingRate)
	v.SetDefault("acquisition.sampling_time", d.Acquisition.SamplingTime)
	v.SetDefault("acquisition.delay", d.Acquisition.Delay)
	v.SetDefault("acquisition.tries", d.Acquisition.Tries)
	v.SetDefault("acquisition.scope_range", d.Acquisition.ScopeRange)
	v.SetDefault("acquisition.save_name", d.Acquisition.SaveName)
	v.SetDefault("acquisition.comment", d.Acquisition.Comment)

	v.SetDefault("electrode.type", d.Electrode.Type)
	v.SetDefault("electrode.salt_type", d.Electrode.SaltType)
	v.SetDefault("electrode.salinity", d.Electrode.Salinity)
	v.SetDefault("electrode.normal_height", d.Electrode.NormalHeight)
	v.SetDefault("electrode.squeeze_height", d.Electrode.SqueezeHeight)
	v.SetDefault("electrode.width", d.Electrode.Width)
	v.SetDefault("electrode.height_delta", d.Electrode.HeightDelta)
	v.SetDefault("electrode.normal_height_var", d.Electrode.NormalHeightVar)

	v.SetDefault("analysis.estimator", d.Analysis.Estimator)
	v.SetDefault("analysis.time_limit", d.Analysis.TimeLimit)
	v.SetDefault("analysis.quantities", d.Analysis.Quantities)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Storage.ResultsPath == "" {
		return fmt.Errorf("storage results path is required")
	}

	if c.Storage.CompressionLevel < 1 || c.Storage.CompressionLevel > 4 {
		return fmt.Errorf("compression level must be between 1 and 4")
	}

	if c.Storage.CacheCapacity < 0 {
		return fmt.Errorf("cache capacity must not be negative")
	}

	if len(c.Acquisition.Frequencies) == 0 {
		return fmt.Errorf("at least one frequency is required")
	}

	if len(c.Acquisition.Resistances) != 2 {
		return fmt.Errorf("exactly two resistances are required, got %d", len(c.Acquisition.Resistances))
	}

	if c.Acquisition.Voltage <= 0 {
		return fmt.Errorf("voltage must be positive")
	}

	if c.Acquisition.SamplingRate <= 0 || c.Acquisition.SamplingTime <= 0 {
		return fmt.Errorf("sampling rate and sampling time must be positive")
	}

	if c.Acquisition.Delay < 0 || c.Acquisition.Tries < 0 {
		return fmt.Errorf("delay and tries must not be negative")
	}

	if _, err := estimator.ByName(c.Analysis.Estimator); err != nil {
		return err
	}

	if c.Analysis.TimeLimit < 0 {
		return fmt.Errorf("analysis time limit must not be negative")
	}

	if _, err := c.AnalysisQuantities(); err != nil {
		return err
	}

	return nil
}

// AnalysisQuantities parses the configured quantity names.
func (c *Config) AnalysisQuantities() ([]types.Quantity, error) {
	out := make([]types.Quantity, 0, len(c.Analysis.Quantities))
	for _, name := range c.Analysis.Quantities {
		q, err := types.ParseQuantity(name)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}

// ToStoreConfig converts to storage.Config
func (c *Config) ToStoreConfig() *storage.Config {
	return &storage.Config{
		CompressionLevel: c.Storage.CompressionLevel,
		CacheCapacity:    c.Storage.CacheCapacity,
		CacheTTL:         c.Storage.CacheTTL,
	}
}

// ToElectrodeGeometry converts to electrode.Geometry
func (c *Config) ToElectrodeGeometry() electrode.Geometry {
	return electrode.Geometry{
		Type:            c.Electrode.Type,
		SaltType:        c.Electrode.SaltType,
		Salinity:        c.Electrode.Salinity,
		NormalHeight:    c.Electrode.NormalHeight,
		SqueezeHeight:   c.Electrode.SqueezeHeight,
		Width:           c.Electrode.Width,
		HeightDelta:     c.Electrode.HeightDelta,
		NormalHeightVar: c.Electrode.NormalHeightVar,
	}
}

// ToExperimentConfig builds the configuration of a new experiment, including
// its electrode.
func (c *Config) ToExperimentConfig() (storage.ExperimentConfig, error) {
	el, err := electrode.New(c.ToElectrodeGeometry())
	if err != nil {
		return storage.ExperimentConfig{}, fmt.Errorf("invalid electrode: %w", err)
	}
	if len(c.Acquisition.Resistances) != 2 {
		return storage.ExperimentConfig{}, fmt.Errorf("exactly two resistances are required, got %d", len(c.Acquisition.Resistances))
	}

	channels := make(map[string]int, len(c.Acquisition.Channels))
	for k, v := range c.Acquisition.Channels {
		channels[k] = v
	}

	return storage.ExperimentConfig{
		Frequencies:  append([]float64(nil), c.Acquisition.Frequencies...),
		Resistances:  [2]string{c.Acquisition.Resistances[0], c.Acquisition.Resistances[1]},
		Electrode:    el,
		Channels:     channels,
		Voltage:      c.Acquisition.Voltage,
		SamplingRate: c.Acquisition.SamplingRate,
		SamplingTime: c.Acquisition.SamplingTime,
		Delay:        c.Acquisition.Delay,
		Tries:        c.Acquisition.Tries,
		ResultsPath:  c.Storage.ResultsPath,
		SaveName:     c.Acquisition.SaveName,
		ScopeRange:   c.Acquisition.ScopeRange,
		Comment:      c.Acquisition.Comment,
	}, nil
}
