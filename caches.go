package gvariant

import "sync"

// A cache memoizes derived per-type information for the reflection
// layer. Concurrent lookups are safe; derivation may race, in which
// case one result wins and the others are discarded.
type cache[K comparable, V any] struct {
	m sync.Map
}

func (c *cache[K, V]) Get(k K) (val V, found bool) {
	ent, ok := c.m.Load(k)
	if !ok {
		var zero V
		return zero, false
	}
	return ent.(V), true
}

func (c *cache[K, V]) Put(k K, val V) {
	c.m.LoadOrStore(k, val)
}
