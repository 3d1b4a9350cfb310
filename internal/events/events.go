// Package events implements the Event Bus (C9): named listeners plus a
// catch-all "*" channel, and a scoped silent(f) guard.
package events

import (
	"sync"

	"github.com/kailas-cloud/docbase/internal/domain"
)

// Listener receives an event name and its trigger arguments.
type Listener func(event string, args ...any)

// Bus is engine-scoped: each Engine owns one Bus.
type Bus struct {
	mu        sync.Mutex
	listeners map[string][]Listener
	silent    int // nesting depth; >0 suppresses every Trigger
}

// New builds an empty Bus.
func New() *Bus {
	return &Bus{listeners: map[string][]Listener{}}
}

// On registers fn against event (use domain.EventAll to listen to every
// event).
func (b *Bus) On(event string, fn Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners[event] = append(b.listeners[event], fn)
}

// Trigger fans out to "*" listeners first, then listeners registered for
// event specifically. A no-op while any enclosing Silent(f) is active.
func (b *Bus) Trigger(event string, args ...any) {
	b.mu.Lock()
	if b.silent > 0 {
		b.mu.Unlock()
		return
	}
	all := append([]Listener{}, b.listeners[domain.EventAll]...)
	named := append([]Listener{}, b.listeners[event]...)
	b.mu.Unlock()

	for _, fn := range all {
		fn(event, args...)
	}
	for _, fn := range named {
		fn(event, args...)
	}
}

// Silent runs f with emissions suppressed for its dynamic extent, restoring
// the prior nesting depth on every exit path including panics and errors.
// No code in this module calls it: the engine's reads and writes of
// _metadata documents made by the Schema Manager emit ordinary document
// events on the shared Bus.
func (b *Bus) Silent(f func() error) error {
	b.mu.Lock()
	b.silent++
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		b.silent--
		b.mu.Unlock()
	}()
	return f()
}
