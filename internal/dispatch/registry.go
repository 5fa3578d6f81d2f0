// Package dispatch routes calls made by executed operations to host
// handlers keyed by target and selector.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/timelock/internal/ir"
)

// ErrNoHandler is returned when no handler is registered for a call.
var ErrNoHandler = errors.New("no handler for call")

// Handler runs one call. A non-nil error fails the enclosing execute.
type Handler func(ctx context.Context, args ir.IRArray) error

type key struct {
	target   ir.Principal
	selector string
}

// Registry maps (target, selector) pairs to handlers. It satisfies the
// engine's Dispatcher interface.
//
// Thread-safety: Register and Invoke may be called concurrently.
type Registry struct {
	mu       sync.RWMutex
	handlers map[key]Handler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[key]Handler)}
}

// Register installs h for target.selector, replacing any existing handler.
func (r *Registry) Register(target ir.Principal, selector string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[key{target, selector}] = h
}

// Invoke runs the handler registered for call.
func (r *Registry) Invoke(ctx context.Context, call ir.Call) error {
	r.mu.RLock()
	h, ok := r.handlers[key{call.Target, call.Selector}]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s.%s", ErrNoHandler, call.Target, call.Selector)
	}
	return h(ctx, call.Args)
}

// Selectors lists registered "target.selector" names in sorted order.
func (r *Registry) Selectors() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for k := range r.handlers {
		names = append(names, string(k.target)+"."+k.selector)
	}
	sort.Strings(names)
	return names
}
