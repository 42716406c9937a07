package kurir

import (
	"context"
	"sync"
)

// FulfilledFunc handles a value that reached this link successfully.
type FulfilledFunc[T any] func(ctx context.Context, value T) (T, error)

// RejectedFunc handles a failure from an earlier link. Returning a nil
// error recovers the chain with the returned value.
type RejectedFunc[T any] func(ctx context.Context, err error) (T, error)

// Interceptor is a (fulfilled, rejected) handler pair.
type Interceptor[T any] struct {
	Fulfilled FulfilledFunc[T]
	Rejected  RejectedFunc[T]
}

// InterceptorManager is an ordered registry of interceptors. Ids returned by
// Use stay valid forever: ejecting leaves a tombstone instead of shifting
// later entries, so an id is never reused. It is safe for concurrent use.
type InterceptorManager[T any] struct {
	mu       sync.RWMutex
	handlers []*Interceptor[T]
	onChange func(delta int)
}

// NewInterceptorManager creates an empty registry.
func NewInterceptorManager[T any]() *InterceptorManager[T] {
	return &InterceptorManager[T]{}
}

// Use appends an interceptor and returns its id. rejected may be nil.
func (m *InterceptorManager[T]) Use(fulfilled FulfilledFunc[T], rejected RejectedFunc[T]) int {
	m.mu.Lock()
	m.handlers = append(m.handlers, &Interceptor[T]{Fulfilled: fulfilled, Rejected: rejected})
	id := len(m.handlers) - 1
	onChange := m.onChange
	m.mu.Unlock()

	if onChange != nil {
		onChange(1)
	}
	return id
}

// Eject removes the interceptor registered under id. Unknown or already
// ejected ids are ignored.
func (m *InterceptorManager[T]) Eject(id int) {
	m.mu.Lock()
	if id < 0 || id >= len(m.handlers) || m.handlers[id] == nil {
		m.mu.Unlock()
		return
	}
	m.handlers[id] = nil
	onChange := m.onChange
	m.mu.Unlock()

	if onChange != nil {
		onChange(-1)
	}
}

// ForEach calls fn for every live interceptor in registration order. It
// iterates over a snapshot, so fn may register or eject interceptors.
func (m *InterceptorManager[T]) ForEach(fn func(Interceptor[T])) {
	for _, h := range m.snapshot() {
		fn(*h)
	}
}

// Len returns the number of live interceptors.
func (m *InterceptorManager[T]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeLocked()
}

// watch installs fn to receive +1/-1 on every registration change and
// returns the live count at the moment it was installed.
func (m *InterceptorManager[T]) watch(fn func(delta int)) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = fn
	return m.activeLocked()
}

func (m *InterceptorManager[T]) snapshot() []*Interceptor[T] {
	m.mu.RLock()
	defer m.mu.RUnlock()

	live := make([]*Interceptor[T], 0, len(m.handlers))
	for _, h := range m.handlers {
		if h != nil {
			live = append(live, h)
		}
	}
	return live
}

func (m *InterceptorManager[T]) activeLocked() int {
	n := 0
	for _, h := range m.handlers {
		if h != nil {
			n++
		}
	}
	return n
}

// Interceptors groups the request and response registries of a client.
type Interceptors struct {
	Request  *InterceptorManager[*RequestConfig]
	Response *InterceptorManager[*Response]
}
