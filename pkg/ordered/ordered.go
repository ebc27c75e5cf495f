// Package ordered provides a thread-safe keyed collection that remembers
// insertion order. It backs both the operator-side reward catalog and the
// in-memory Store Backend twin, which need keyed replace/remove while still
// listing entries in the order they first appeared.
package ordered

import (
	"cmp"
	"slices"
	"sync"
)

// Map is a keyed collection of V that lists values in insertion order.
// The zero value is not usable; construct with New.
type Map[K cmp.Ordered, V any] struct {
	mu    sync.RWMutex
	items map[K]V
	order []K
}

// New creates an empty Map.
func New[K cmp.Ordered, V any]() *Map[K, V] {
	return &Map[K, V]{
		items: make(map[K]V),
		order: make([]K, 0),
	}
}

// Set stores v under k. Overwriting an existing key keeps its position.
func (m *Map[K, V]) Set(k K, v V) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.items[k]; !exists {
		m.order = append(m.order, k)
	}
	m.items[k] = v
}

// Update overwrites the value of an existing key in place and reports
// whether k was present. A missing key is not inserted.
func (m *Map[K, V]) Update(k K, v V) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[k]; !ok {
		return false
	}
	m.items[k] = v
	return true
}

// Get returns the value for k and whether it was present.
func (m *Map[K, V]) Get(k K) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[k]
	return v, ok
}

// Has reports whether k is present.
func (m *Map[K, V]) Has(k K) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.items[k]
	return ok
}

// Delete removes k. Returns true if the key existed.
func (m *Map[K, V]) Delete(k K) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.items[k]; !exists {
		return false
	}
	delete(m.items, k)
	if i := slices.Index(m.order, k); i >= 0 {
		m.order = slices.Delete(m.order, i, i+1)
	}
	return true
}

// Values returns all values in insertion order. The slice is a copy.
func (m *Map[K, V]) Values() []V {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]V, 0, len(m.order))
	for _, k := range m.order {
		out = append(out, m.items[k])
	}
	return out
}

// Keys returns all keys in insertion order. The slice is a copy.
func (m *Map[K, V]) Keys() []K {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.order)
}

// Len returns the number of entries.
func (m *Map[K, V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Replace swaps the whole contents for values, keyed by key(v) and ordered
// as given. A later value with a repeated key overwrites the earlier one in
// place.
func (m *Map[K, V]) Replace(values []V, key func(V) K) {
	items := make(map[K]V, len(values))
	order := make([]K, 0, len(values))
	for _, v := range values {
		k := key(v)
		if _, exists := items[k]; !exists {
			order = append(order, k)
		}
		items[k] = v
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = items
	m.order = order
}

// Reset removes every entry.
func (m *Map[K, V]) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = make(map[K]V)
	m.order = make([]K, 0)
}
