package cache

import (
	"sync"
	"time"
)

// TTL is a minimal in-process TTL map with lazy expiration on Get.
type TTL[K comparable, V any] struct {
	mu   sync.RWMutex
	data map[K]entry[V]
}

type entry[V any] struct {
	val V
	exp time.Time
}

func NewTTL[K comparable, V any]() *TTL[K, V] {
	return &TTL[K, V]{data: make(map[K]entry[V])}
}

// Get returns the value and true if found and not expired; otherwise zero value and false.
func (t *TTL[K, V]) Get(k K) (V, bool) {
	t.mu.RLock()
	e, ok := t.data[k]
	t.mu.RUnlock()
	if !ok || timeNow().After(e.exp) {
		var zero V
		return zero, false
	}
	return e.val, true
}

// Peek returns the value even when expired. ok is false only when the key was never set.
func (t *TTL[K, V]) Peek(k K) (V, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.data[k]
	return e.val, ok
}

func (t *TTL[K, V]) Set(k K, v V, ttl time.Duration) {
	t.mu.Lock()
	t.data[k] = entry[V]{val: v, exp: timeNow().Add(ttl)}
	t.mu.Unlock()
}

func (t *TTL[K, V]) Delete(k K) {
	t.mu.Lock()
	delete(t.data, k)
	t.mu.Unlock()
}
