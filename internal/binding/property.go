// Package binding adapts a keychain.SecretStore to observable, typed
// properties for UI code. A Property reads through to the store on Get,
// writes through on Set, and notifies subscribers of every change it sees.
// It holds no secrets of its own beyond the last payload it observed.
package binding

import (
	"bytes"
	"slices"
	"sync"

	"github.com/benaskins/strongbox/internal/codec"
	"github.com/benaskins/strongbox/internal/keychain"
)

// Observer is called with the new value and whether one is present.
type Observer[T any] func(value T, ok bool)

// Property binds one key of a store to a typed value.
type Property[T any] struct {
	store    keychain.SecretStore
	key      string
	codec    codec.Codec[T]
	fallback *T

	mu        sync.Mutex
	observers map[int]Observer[T]
	nextID    int
	last      []byte
	lastOK    bool
}

// New binds key in store using c.
func New[T any](store keychain.SecretStore, key string, c codec.Codec[T]) *Property[T] {
	p := &Property[T]{
		store:     store,
		key:       key,
		codec:     c,
		observers: make(map[int]Observer[T]),
	}
	p.last, p.lastOK = store.Data(key)
	return p
}

// WithDefault sets the value Get reports when the key is absent.
func (p *Property[T]) WithDefault(v T) *Property[T] {
	p.fallback = &v
	return p
}

// Key returns the bound key.
func (p *Property[T]) Key() string {
	return p.key
}

// Get reads the current value from the store.
func (p *Property[T]) Get() (T, bool) {
	data, ok := p.store.Data(p.key)
	return p.decode(data, ok)
}

// Set writes v to the store and notifies subscribers.
func (p *Property[T]) Set(v T) {
	data := p.codec.Encode(v)
	p.store.SetData(p.key, data)
	p.changed(data, true)
}

// Delete removes the key from the store and notifies subscribers.
func (p *Property[T]) Delete() {
	p.store.Delete(p.key)
	p.changed(nil, false)
}

// Refresh re-reads the store and notifies subscribers if the payload
// changed since it was last observed.
func (p *Property[T]) Refresh() {
	data, ok := p.store.Data(p.key)
	p.changed(data, ok)
}

// Subscribe registers fn for change notifications. The returned function
// removes it.
func (p *Property[T]) Subscribe(fn Observer[T]) (cancel func()) {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.observers[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.observers, id)
		p.mu.Unlock()
	}
}

func (p *Property[T]) changed(data []byte, ok bool) {
	p.mu.Lock()
	if ok == p.lastOK && bytes.Equal(data, p.last) {
		p.mu.Unlock()
		return
	}
	p.last, p.lastOK = slices.Clone(data), ok
	observers := make([]Observer[T], 0, len(p.observers))
	for _, fn := range p.observers {
		observers = append(observers, fn)
	}
	p.mu.Unlock()

	v, present := p.decode(data, ok)
	for _, fn := range observers {
		fn(v, present)
	}
}

func (p *Property[T]) decode(data []byte, ok bool) (T, bool) {
	v, present := codec.Decode(p.codec, data, ok)
	if !present && p.fallback != nil {
		return *p.fallback, true
	}
	return v, present
}
