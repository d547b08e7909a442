package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog(t *testing.T) {
	s := newTestStore(t, 0)
	exp, dev := newTestExperiment(t, s)
	m := acquireMeasurement(t, exp, dev)

	dir := t.TempDir()
	cat, err := OpenCatalog(dir)
	require.NoError(t, err)

	require.NoError(t, cat.RegisterExperiment(exp))
	require.NoError(t, cat.RegisterMeasurement(exp, m))

	parent, err := cat.ParentOf(m.UUID())
	require.NoError(t, err)
	assert.Equal(t, exp.UUID(), parent.UUID)
	assert.Equal(t, "run", parent.Labels[LabelName])

	loaded, err := s.LoadExperiment(parent.Path)
	require.NoError(t, err)
	assert.True(t, loaded.Equal(exp))

	found, err := cat.Find(map[string]string{LabelElectrode: "vileda", LabelSalt: "saline"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, exp.UUID(), found[0].UUID)

	found, err = cat.Find(map[string]string{LabelSalt: "tap solution"})
	require.NoError(t, err)
	assert.Empty(t, found)

	_, err = cat.ParentOf("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, cat.Close())

	// The label index is rebuilt from disk
	cat, err = OpenCatalog(dir)
	require.NoError(t, err)
	defer cat.Close()

	all, err := cat.List()
	require.NoError(t, err)
	require.Len(t, all, 1)

	found, err = cat.Find(map[string]string{LabelName: "run"})
	require.NoError(t, err)
	assert.Len(t, found, 1)
}
