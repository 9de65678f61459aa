package testplan

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// memo is a per-refresh cache. Concurrent lookups of the same key share a
// single in-flight fetch; failed fetches are not stored.
type memo[K comparable, V any] struct {
	mu    sync.Mutex
	vals  map[K]V
	group singleflight.Group
}

func newMemo[K comparable, V any]() *memo[K, V] {
	return &memo[K, V]{vals: make(map[K]V)}
}

func (m *memo[K, V]) lookup(key K) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vals[key]
	return v, ok
}

func (m *memo[K, V]) get(ctx context.Context, key K, fetch func(context.Context) (V, error)) (V, error) {
	if v, ok := m.lookup(key); ok {
		return v, nil
	}

	res, err, _ := m.group.Do(fmt.Sprint(key), func() (any, error) {
		if v, ok := m.lookup(key); ok {
			return v, nil
		}
		v, err := fetch(ctx)
		if err != nil {
			return v, err
		}
		m.mu.Lock()
		m.vals[key] = v
		m.mu.Unlock()
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return res.(V), nil
}

func (m *memo[K, V]) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.vals)
}
