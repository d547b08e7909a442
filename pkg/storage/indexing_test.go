package storage

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIndexFind(t *testing.T) {
	idx := NewIndex()
	idx.Add("b", map[string]string{"electrode": "vileda", "salt": "saline"})
	idx.Add("a", map[string]string{"electrode": "vileda", "salt": "tap solution"})
	idx.Add("c", map[string]string{"electrode": "gel", "salt": "saline"})

	assert.Equal(t, 3, idx.Count())
	assert.Equal(t, []string{"a", "b", "c"}, idx.Find(nil))
	assert.Equal(t, []string{"a", "b"}, idx.Find(map[string]string{"electrode": "vileda"}))
	assert.Equal(t, []string{"b"}, idx.Find(map[string]string{"electrode": "vileda", "salt": "saline"}))
	assert.Empty(t, idx.Find(map[string]string{"electrode": "nano"}))
	assert.Empty(t, idx.Find(map[string]string{"unknown": "x"}))
}

func TestIndexReAddReplacesLabels(t *testing.T) {
	idx := NewIndex()
	idx.Add("a", map[string]string{"name": "first"})
	idx.Add("a", map[string]string{"name": "second"})

	assert.Equal(t, 1, idx.Count())
	assert.Empty(t, idx.Find(map[string]string{"name": "first"}))
	assert.Equal(t, []string{"a"}, idx.Find(map[string]string{"name": "second"}))

	labels, ok := idx.Labels("a")
	assert.True(t, ok)
	assert.Equal(t, "second", labels["name"])

	idx.Clear()
	assert.Equal(t, 0, idx.Count())
}

func TestParseSelectors(t *testing.T) {
	assert.Nil(t, ParseSelectors("  "))
	assert.Equal(t,
		map[string]string{"electrode": "vileda", "salt": "tap solution"},
		ParseSelectors(`electrode=vileda, salt="tap solution"`))
	assert.Equal(t, map[string]string{"name": "run"}, ParseSelectors("name=run,garbage"))
}

func BenchmarkIndexFind(b *testing.B) {
	idx := NewIndex()
	for i := 0; i < 1000; i++ {
		idx.Add(fmt.Sprintf("exp-%04d", i), map[string]string{
			"electrode": []string{"vileda", "gel"}[i%2],
			"salt":      []string{"saline", "custom", "n/a"}[i%3],
		})
	}
	selectors := map[string]string{"electrode": "vileda", "salt": "saline"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = idx.Find(selectors)
	}
}
