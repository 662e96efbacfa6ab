package actor

import (
	"sync"
)

// Registry maps well-known identifiers to running actors so siblings can
// address a shared actor without holding a direct reference to it.
type Registry struct {
	mu   sync.RWMutex
	refs map[string]any
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{refs: make(map[string]any)}
}

// Register binds id to ref. Registering the same id twice is an error.
func Register[M any](reg *Registry, id string, ref *Ref[M]) error {
	if reg == nil || ref == nil {
		return ErrInvalidRegistration.Clone().WithMetadata(map[string]any{"id": id})
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	if _, exists := reg.refs[id]; exists {
		return ErrAlreadyRegistered.Clone().WithMetadata(map[string]any{"id": id})
	}
	reg.refs[id] = ref
	return nil
}

// Lookup returns the actor bound to id when it exists and accepts messages of type M.
func Lookup[M any](reg *Registry, id string) (*Ref[M], bool) {
	if reg == nil {
		return nil, false
	}

	reg.mu.RLock()
	defer reg.mu.RUnlock()

	raw, ok := reg.refs[id]
	if !ok {
		return nil, false
	}
	ref, ok := raw.(*Ref[M])
	return ref, ok
}

// Unregister removes id from the registry.
func (reg *Registry) Unregister(id string) {
	if reg == nil {
		return
	}
	reg.mu.Lock()
	delete(reg.refs, id)
	reg.mu.Unlock()
}
