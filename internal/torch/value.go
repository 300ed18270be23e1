package torch

import "sync"

// value is a guarded state field. Set reports whether the value changed,
// so callers publish only real changes.
type value[T comparable] struct {
	mu sync.RWMutex
	v  T
}

func (f *value[T]) Get() T {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.v
}

func (f *value[T]) Set(v T) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.v == v {
		return false
	}
	f.v = v
	return true
}
