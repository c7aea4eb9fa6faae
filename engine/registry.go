package engine

import (
	"sync"
)

// ---------------------------------------------------------------------------
// ClassRegistry: native type identity → engine class id
// ---------------------------------------------------------------------------

// ClassID identifies a registered native class within one engine.
type ClassID uint32

// ClassRegistry associates native type identities (any comparable key;
// typically a reflect.Type) with engine-local class ids. Each engine owns
// one registry, so the effective key is (engine instance, type key) and no
// process-global mutable table exists.
//
// The registry carries its own lock and is safe to read from any goroutine;
// registrations normally happen under the engine lock during binding setup.
type ClassRegistry struct {
	mu    sync.RWMutex
	byKey map[any]ClassID
	next  ClassID
}

func newClassRegistry() *ClassRegistry {
	return &ClassRegistry{byKey: make(map[any]ClassID)}
}

// Register returns the class id for key, allocating one on first use.
func (r *ClassRegistry) Register(key any) ClassID {
	r.mu.RLock()
	id, ok := r.byKey[key]
	r.mu.RUnlock()
	if ok {
		return id
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byKey[key]; ok {
		return id
	}
	r.next++
	r.byKey[key] = r.next
	return r.next
}

// Lookup returns the class id for key, if registered.
func (r *ClassRegistry) Lookup(key any) (ClassID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byKey[key]
	return id, ok
}

// Len returns the number of registered classes.
func (r *ClassRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byKey)
}
