package pack

// OrderedMap is a name→value collection that preserves insertion order.
// Render order of resources, fields and columns is observable in the
// persisted files, so plain Go maps are not enough.
type OrderedMap[V any] struct {
	keys []string
	idx  map[string]int
	vals []V
}

// NewOrderedMap creates an empty ordered map.
func NewOrderedMap[V any]() *OrderedMap[V] {
	return &OrderedMap[V]{idx: make(map[string]int)}
}

// Set inserts or replaces the value for key. A replaced key keeps its
// original position.
func (m *OrderedMap[V]) Set(key string, val V) {
	if i, ok := m.idx[key]; ok {
		m.vals[i] = val
		return
	}
	m.idx[key] = len(m.keys)
	m.keys = append(m.keys, key)
	m.vals = append(m.vals, val)
}

// Get returns the value for key.
func (m *OrderedMap[V]) Get(key string) (V, bool) {
	if i, ok := m.idx[key]; ok {
		return m.vals[i], true
	}
	var zero V
	return zero, false
}

// Has reports whether key is present.
func (m *OrderedMap[V]) Has(key string) bool {
	_, ok := m.idx[key]
	return ok
}

// Keys returns the keys in insertion order.
func (m *OrderedMap[V]) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Len returns the number of entries.
func (m *OrderedMap[V]) Len() int {
	return len(m.keys)
}

// Each calls fn for every entry in insertion order, stopping at the first
// error.
func (m *OrderedMap[V]) Each(fn func(key string, val V) error) error {
	for i, k := range m.keys {
		if err := fn(k, m.vals[i]); err != nil {
			return err
		}
	}
	return nil
}
