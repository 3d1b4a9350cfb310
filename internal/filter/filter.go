// Package filter implements the Filter Registry (C1): named, reversible
// value transforms applied per attribute by the Codec Pipeline. A
// process-wide shared registry and a per-engine instance registry are
// each a map[string]Filter; instance entries shadow shared entries of the
// same name.
package filter

import (
	"fmt"
	"sync"

	"github.com/kailas-cloud/docbase/internal/domain"
)

// Transform is one direction of a filter: encode or decode. The third
// argument is typed as any; the Codec Pipeline passes its own *codec.Codec
// there, not the Engine, so a filter has no access to engine services
// (none of the built-ins use the argument).
type Transform func(value any, doc domain.Document, engine any) any

// Filter is a named, reversible pair of value transforms.
type Filter struct {
	Encode Transform
	Decode Transform
}

var (
	sharedOnce sync.Once
	shared     = map[string]Filter{}
	sharedMu   sync.RWMutex
)

// registerBuiltins idempotently seeds the shared registry with the two
// mandatory filters. Called once, lazily, from Registry construction.
func registerBuiltins() {
	sharedOnce.Do(func() {
		sharedMu.Lock()
		defer sharedMu.Unlock()
		shared["json"] = jsonFilter()
		shared["datetime"] = datetimeFilter(domain.SystemClock{})
	})
}

// Registry is a per-engine instance registry shadowing the shared one.
type Registry struct {
	mu       sync.RWMutex
	instance map[string]Filter
}

// NewRegistry builds an instance registry and guarantees the shared
// built-ins are registered.
func NewRegistry() *Registry {
	registerBuiltins()
	return &Registry{instance: map[string]Filter{}}
}

// Register adds or replaces an instance-scoped filter, shadowing any
// shared filter of the same name for this registry only.
func (r *Registry) Register(name string, f Filter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instance[name] = f
}

// Lookup resolves a filter by name: instance map first, then the shared
// map. A name present in neither is a fatal configuration error (ErrGeneric
// via ErrFilterNotFound) — an attribute referencing it can never be encoded.
func (r *Registry) Lookup(name string) (Filter, error) {
	r.mu.RLock()
	f, ok := r.instance[name]
	r.mu.RUnlock()
	if ok {
		return f, nil
	}

	sharedMu.RLock()
	f, ok = shared[name]
	sharedMu.RUnlock()
	if ok {
		return f, nil
	}

	return Filter{}, fmt.Errorf("filter %q: %w: %w", name, domain.ErrFilterNotFound, domain.ErrGeneric)
}

// ReplaceClock rebuilds the shared datetime filter against a new Clock.
// Used by tests and by callers that configure a non-default timezone; it
// mutates the process-wide shared entry, matching the filter being
// process-wide shared state per the concurrency model.
func ReplaceClock(clock domain.Clock) {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	shared["datetime"] = datetimeFilter(clock)
}
