package runtime

import (
	"sync"

	"rentchat/contract"
)

// Registry is the in-memory presence map: user id -> live session sink.
// It replaces the original free-floating global map; an instance is
// owned by the process lifecycle and injected into the transport and
// delivery components, so tests can run several isolated registries.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]contract.EventSink
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]contract.EventSink)}
}

// Register binds userID to sink, last writer wins. The previous sink,
// if any, is returned so the caller can push a "signed in elsewhere"
// notification before the old connection goes dark.
func (r *Registry) Register(userID string, sink contract.EventSink) (contract.EventSink, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted, replaced := r.sessions[userID]
	if replaced && evicted == sink {
		// Re-declare on the same connection is idempotent.
		return nil, false
	}
	r.sessions[userID] = sink
	return evicted, replaced
}

// Unregister removes the entry only while it still points at sink.
// A late disconnect of an already-evicted connection must not wipe out
// the newer registration.
func (r *Registry) Unregister(userID string, sink contract.EventSink) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.sessions[userID]
	if !ok || current != sink {
		return false
	}
	delete(r.sessions, userID)
	return true
}

func (r *Registry) Lookup(userID string) (contract.EventSink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sink, ok := r.sessions[userID]
	return sink, ok
}

// Online reports how many users currently hold a live entry.
func (r *Registry) Online() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
