package resolver

import (
	"fmt"
	"slices"
	"sync"
)

// Registry maps controller-family identities to resolver factories. It is
// process-wide, populated at initialization and append-only afterwards:
// safe for concurrent readers, with re-registration overwriting the prior
// factory (last write wins) so tests can install doubles.
type Registry struct {
	mu      sync.RWMutex
	entries map[Identity]*registration
	order   []Identity
}

type registration struct {
	desc    Descriptor
	factory Factory
}

var (
	globalRegistry *Registry
	registryOnce   sync.Once
)

// GetRegistry returns the singleton resolver registry with the built-in
// families registered.
func GetRegistry() *Registry {
	registryOnce.Do(func() {
		globalRegistry = NewRegistry()
		registerBuiltins(globalRegistry)
	})
	return globalRegistry
}

// NewRegistry creates an empty registry. Production code uses GetRegistry;
// tests build isolated instances.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[Identity]*registration)}
}

// registerBuiltins wires the three shipped schema families. Registration
// order doubles as the structural-detection priority, so the generic
// standalone family must come last.
func registerBuiltins(r *Registry) {
	r.Register(sdwanDescriptor, NewSDWANVariant)
	r.Register(catalystCenterDescriptor, NewCatalystCenterVariant)
	r.Register(standaloneDescriptor, NewStandaloneVariant)
}

// Register adds or replaces the resolver for a family.
func (r *Registry) Register(desc Descriptor, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[desc.Identity]; !exists {
		r.order = append(r.order, desc.Identity)
	}
	r.entries[desc.Identity] = &registration{desc: desc, factory: factory}
}

// Lookup returns the descriptor and factory registered for identity. The
// error names the identity and the currently registered set.
func (r *Registry) Lookup(identity Identity) (Descriptor, Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, exists := r.entries[identity]
	if !exists {
		return Descriptor{}, nil, fmt.Errorf(
			"%w for architecture %q (registered: %v)",
			ErrResolverNotFound, identity, r.identitiesLocked(),
		)
	}
	return reg.desc, reg.factory, nil
}

// Identities returns the registered identities in registration order.
func (r *Registry) Identities() []Identity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.identitiesLocked()
}

// Descriptors returns the registered descriptors in registration order.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	descs := make([]Descriptor, 0, len(r.order))
	for _, id := range r.order {
		descs = append(descs, r.entries[id].desc)
	}
	return descs
}

func (r *Registry) identitiesLocked() []Identity {
	return slices.Clone(r.order)
}
