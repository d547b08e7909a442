package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Catalog label names.
const (
	LabelElectrode = "electrode"
	LabelSalt      = "salt"
	LabelName      = "name"
)

const (
	experimentPrefix  = "exp/"
	measurementPrefix = "mes/"
)

// ExperimentEntry is a catalogued experiment.
type ExperimentEntry struct {
	UUID    string            `json:"uuid"`
	Path    string            `json:"path"`
	Created time.Time         `json:"created"`
	Labels  map[string]string `json:"labels"`
}

// MeasurementEntry is a catalogued measurement and its owning experiment.
type MeasurementEntry struct {
	UUID       string    `json:"uuid"`
	Path       string    `json:"path"`
	Created    time.Time `json:"created"`
	Experiment string    `json:"experiment"`
}

// Catalog records where experiments and measurements live so a measurement's
// experiment can be found without a stored back-reference.
type Catalog struct {
	db    *badger.DB
	index *Index
	mu    sync.RWMutex
}

// OpenCatalog opens (or creates) a catalog in dir.
func OpenCatalog(dir string) (*Catalog, error) {
	opts := badger.DefaultOptions(filepath.Join(dir, "badger"))
	opts.Logger = nil // Disable BadgerDB logging

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}

	c := &Catalog{
		db:    db,
		index: NewIndex(),
	}
	if err := c.rebuildIndex(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// rebuildIndex loads experiment labels into the in-memory index
func (c *Catalog) rebuildIndex() error {
	entries, err := c.List()
	if err != nil {
		return err
	}
	for _, e := range entries {
		c.index.Add(e.UUID, e.Labels)
	}
	return nil
}

// ExperimentLabels derives the catalog labels of an experiment.
func ExperimentLabels(e *Experiment) map[string]string {
	g := e.Electrode().Geometry()
	return map[string]string{
		LabelElectrode: g.Type,
		LabelSalt:      g.SaltType,
		LabelName:      e.Name(),
	}
}

// RegisterExperiment records e under its UUID.
func (c *Catalog) RegisterExperiment(e *Experiment) error {
	path, err := filepath.Abs(e.SavePath())
	if err != nil {
		return err
	}
	entry := ExperimentEntry{
		UUID:    e.UUID(),
		Path:    path,
		Created: e.Created(),
		Labels:  ExperimentLabels(e),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.put(experimentPrefix+entry.UUID, &entry); err != nil {
		return err
	}
	c.index.Add(entry.UUID, entry.Labels)
	return nil
}

// RegisterMeasurement records m as belonging to e.
func (c *Catalog) RegisterMeasurement(e *Experiment, m *Measurement) error {
	path, err := filepath.Abs(m.SavePath())
	if err != nil {
		return err
	}
	entry := MeasurementEntry{
		UUID:       m.UUID(),
		Path:       path,
		Created:    m.Created(),
		Experiment: e.UUID(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.put(measurementPrefix+entry.UUID, &entry)
}

// Experiment returns the entry registered under id.
func (c *Catalog) Experiment(id string) (ExperimentEntry, error) {
	var entry ExperimentEntry
	c.mu.RLock()
	defer c.mu.RUnlock()
	err := c.get(experimentPrefix+id, &entry)
	return entry, err
}

// Measurement returns the entry registered under id.
func (c *Catalog) Measurement(id string) (MeasurementEntry, error) {
	var entry MeasurementEntry
	c.mu.RLock()
	defer c.mu.RUnlock()
	err := c.get(measurementPrefix+id, &entry)
	return entry, err
}

// ParentOf returns the experiment that owns the measurement id.
func (c *Catalog) ParentOf(measurementID string) (ExperimentEntry, error) {
	m, err := c.Measurement(measurementID)
	if err != nil {
		return ExperimentEntry{}, err
	}
	return c.Experiment(m.Experiment)
}

// Find returns experiments whose labels match every selector, oldest first.
func (c *Catalog) Find(selectors map[string]string) ([]ExperimentEntry, error) {
	ids := c.index.Find(selectors)
	entries := make([]ExperimentEntry, 0, len(ids))
	for _, id := range ids {
		e, err := c.Experiment(id)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	sortEntries(entries)
	return entries, nil
}

// List returns every catalogued experiment, oldest first.
func (c *Catalog) List() ([]ExperimentEntry, error) {
	var entries []ExperimentEntry

	c.mu.RLock()
	defer c.mu.RUnlock()
	err := c.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(experimentPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var entry ExperimentEntry
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			})
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", it.Item().Key(), err)
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortEntries(entries)
	return entries, nil
}

// Close closes the catalog
func (c *Catalog) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func (c *Catalog) put(key string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), payload)
	})
}

func (c *Catalog) get(key string, v interface{}) error {
	var payload []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			payload = append([]byte{}, val...)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, strings.TrimSuffix(key, "/"))
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(payload, v)
}

func sortEntries(entries []ExperimentEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Created.Before(entries[j].Created)
	})
}
