package storage

import (
	"sort"
	"strings"
	"sync"
)

// Index is an inverted label index over experiment identities.
type Index struct {
	mu sync.RWMutex
	// Maps experiment UUID to its labels
	entries map[string]map[string]string
	// Inverted index: label name -> label value -> experiment UUIDs
	labelIndex map[string]map[string][]string
}

// NewIndex creates a new index
func NewIndex() *Index {
	return &Index{
		entries:    make(map[string]map[string]string),
		labelIndex: make(map[string]map[string][]string),
	}
}

// Add indexes id under labels. Re-adding an id replaces its labels.
func (idx *Index) Add(id string, labels map[string]string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, exists := idx.entries[id]; exists {
		idx.removeLocked(id)
	}

	copied := make(map[string]string, len(labels))
	for name, value := range labels {
		copied[name] = value
		if idx.labelIndex[name] == nil {
			idx.labelIndex[name] = make(map[string][]string)
		}
		idx.labelIndex[name][value] = append(idx.labelIndex[name][value], id)
	}
	idx.entries[id] = copied
}

func (idx *Index) removeLocked(id string) {
	for name, value := range idx.entries[id] {
		ids := idx.labelIndex[name][value]
		for i, other := range ids {
			if other == id {
				idx.labelIndex[name][value] = append(ids[:i], ids[i+1:]...)
				break
			}
		}
	}
	delete(idx.entries, id)
}

// Labels returns the labels of id.
func (idx *Index) Labels(id string) (map[string]string, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	labels, ok := idx.entries[id]
	if !ok {
		return nil, false
	}
	out := make(map[string]string, len(labels))
	for k, v := range labels {
		out[k] = v
	}
	return out, true
}

// Find returns the sorted ids matching every selector. No selectors match all.
func (idx *Index) Find(selectors map[string]string) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(selectors) == 0 {
		result := make([]string, 0, len(idx.entries))
		for id := range idx.entries {
			result = append(result, id)
		}
		sort.Strings(result)
		return result
	}

	// Find intersection of matching ids across all selectors
	var result []string
	first := true

	for name, value := range selectors {
		valueMap, ok := idx.labelIndex[name]
		if !ok {
			return nil
		}

		ids, ok := valueMap[value]
		if !ok {
			return nil
		}

		if first {
			result = append([]string(nil), ids...)
			sort.Strings(result)
			first = false
		} else {
			result = intersect(result, ids)
		}

		if len(result) == 0 {
			return nil
		}
	}

	return result
}

// Count returns the number of indexed ids
func (idx *Index) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

// Clear clears the index
func (idx *Index) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries = make(map[string]map[string]string)
	idx.labelIndex = make(map[string]map[string][]string)
}

// intersect finds common elements of sorted a and unsorted b
func intersect(a, b []string) []string {
	b = append([]string(nil), b...)
	sort.Strings(b)

	result := make([]string, 0)
	i, j := 0, 0

	for i < len(a) && j < len(b) {
		if a[i] < b[j] {
			i++
		} else if a[i] > b[j] {
			j++
		} else {
			result = append(result, a[i])
			i++
			j++
		}
	}

	return result
}

// ParseSelectors parses "name=value,name=value" into label selectors.
// Surrounding quotes on values are dropped.
func ParseSelectors(query string) map[string]string {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	selectors := make(map[string]string)
	for _, part := range strings.Split(query, ",") {
		name, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		if name != "" {
			selectors[name] = value
		}
	}
	return selectors
}
