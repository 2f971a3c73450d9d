// Package registry holds the process-wide mapping from user identity to
// the single live delivery channel for that identity. It is created at
// startup, injected into the session handler and the dispatcher, and
// never persisted.
package registry

import (
	"sync"

	"github.com/ciphergram/ciphergram-server/internal/model"
)

var _ model.ChannelRegistry = (*Registry)(nil)

// Registry is a concurrency-safe identity → channel map.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]model.Channel
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		channels: make(map[string]model.Channel),
	}
}

// Register installs ch as the live handle for identity, replacing any
// previous handle. The displaced handle is returned so the caller can
// close the underlying connection; the registry itself never closes it.
func (r *Registry) Register(identity string, ch model.Channel) model.Channel {
	r.mu.Lock()
	defer r.mu.Unlock()

	displaced := r.channels[identity]
	r.channels[identity] = ch
	return displaced
}

// Unregister removes the mapping for identity only if ch is still the
// current handle. A session torn down after being replaced is a no-op,
// as is unregistering an identity with no channel at all.
func (r *Registry) Unregister(identity string, ch model.Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.channels[identity]; ok && current == ch {
		delete(r.channels, identity)
	}
}

// Lookup returns the current handle for identity. Absence means the user
// is offline and the caller falls back to durable-only delivery.
func (r *Registry) Lookup(identity string) (model.Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ch, ok := r.channels[identity]
	return ch, ok
}

// Len returns the number of live channels.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.channels)
}
