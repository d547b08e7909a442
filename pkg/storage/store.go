// Package storage persists the Experiment -> Measurement -> SignalContainer
// hierarchy. Every entity is a file with its own extension next to a
// same-named folder holding its children; parents keep only child file names
// and load them from disk on access.
package storage

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Config holds storage configuration
type Config struct {
	// CompressionLevel selects the zstd speed for channel payloads (1..4)
	CompressionLevel int
	// CacheCapacity bounds the loaded-container cache; zero disables it
	CacheCapacity int
	// CacheTTL expires cached containers; zero keeps them until evicted
	CacheTTL time.Duration
	// Logger receives storage events; nil uses the standard logger
	Logger *logrus.Entry
	// Now supplies creation timestamps; nil uses time.Now
	Now func() time.Time
}

// DefaultConfig returns default storage configuration
func DefaultConfig() *Config {
	return &Config{
		CompressionLevel: 2,
		CacheCapacity:    0,
		CacheTTL:         0,
	}
}

// Store owns the codec shared by every entity it creates or loads.
type Store struct {
	cfg        *Config
	compressor *Compressor
	cache      *ContainerCache
	log        *logrus.Entry
	now        func() time.Time
}

// NewStore creates a new store instance
func NewStore(cfg *Config) (*Store, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	compressor, err := NewCompressor(cfg.CompressionLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to create compressor: %w", err)
	}

	s := &Store{
		cfg:        cfg,
		compressor: compressor,
		log:        cfg.Logger,
		now:        cfg.Now,
	}
	if s.log == nil {
		s.log = logrus.NewEntry(logrus.StandardLogger())
	}
	s.log = s.log.WithField("component", "storage")
	if s.now == nil {
		s.now = time.Now
	}
	if cfg.CacheCapacity > 0 {
		s.cache = NewContainerCache(cfg.CacheCapacity, cfg.CacheTTL)
	}

	return s, nil
}

var (
	defaultStore     *Store
	defaultStoreOnce sync.Once
)

// DefaultStore returns the process-wide store used by the package-level
// Load functions.
func DefaultStore() *Store {
	defaultStoreOnce.Do(func() {
		s, err := NewStore(DefaultConfig())
		if err != nil {
			panic(fmt.Sprintf("storage: default store: %v", err))
		}
		defaultStore = s
	})
	return defaultStore
}

// CacheStats reports the container cache, zero when caching is disabled.
func (s *Store) CacheStats() CacheStats {
	if s.cache == nil {
		return CacheStats{}
	}
	return s.cache.Stats()
}

// Close releases the compressor
func (s *Store) Close() error {
	if s.cache != nil {
		s.cache.Clear()
	}
	s.compressor.Close()
	return nil
}

// SaveContainer writes c to path. An existing file is replaced only when
// overwrite is set.
func (s *Store) SaveContainer(c *SignalContainer, path string, overwrite bool) (string, error) {
	if err := prepareSave(path, "", overwrite); err != nil {
		return "", err
	}

	rec := containerRecord{
		Frequency: c.frequency,
		Samples:   c.Samples(),
	}
	for i, ch := range c.channels {
		payload, err := s.compressor.CompressValues(ch)
		if err != nil {
			return "", fmt.Errorf("failed to compress channel %d: %w", i+1, err)
		}
		rec.Channels[i] = payload
	}

	if err := writeJSON(path, &rec); err != nil {
		return "", err
	}
	return path, nil
}

// LoadContainer reads a .cont file.
func (s *Store) LoadContainer(path string) (*SignalContainer, error) {
	if err := checkExtension(path, ContainerExt); err != nil {
		return nil, err
	}

	var key string
	if s.cache != nil {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		key = cacheKey(path, info)
		if c, ok := s.cache.Get(key); ok {
			return c, nil
		}
	}

	var rec containerRecord
	if err := readJSON(path, &rec); err != nil {
		return nil, err
	}

	data := make([][]float64, len(rec.Channels))
	for i, payload := range rec.Channels {
		values, err := s.compressor.DecompressValues(payload, rec.Samples)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress channel %d of %s: %w", i+1, path, err)
		}
		data[i] = values
	}

	c, err := newSignalContainer(data, rec.Frequency, s.log)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Put(key, c)
	}
	return c, nil
}

// LoadContainer reads a .cont file with the default store.
func LoadContainer(path string) (*SignalContainer, error) {
	return DefaultStore().LoadContainer(path)
}

// LoadMeasurement reads a .mes file with the default store.
func LoadMeasurement(path, workingDir string) (*Measurement, error) {
	return DefaultStore().LoadMeasurement(path, workingDir)
}

// LoadExperiment reads a .exp file with the default store.
func LoadExperiment(path string) (*Experiment, error) {
	return DefaultStore().LoadExperiment(path)
}
