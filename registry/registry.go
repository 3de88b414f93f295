// Package registry provides the process-wide service registry used for
// dependency injection between plugins. Entries are keyed by a capability
// key; at most one live instance exists per key and registration is an
// unconditional upsert.
package registry

import (
	"fmt"
	"sync"

	"github.com/latticekit/lattice/errors"
	"github.com/latticekit/lattice/logger"
)

// Registry is a capability-keyed instance store. All methods are safe for
// concurrent use.
type Registry struct {
	mu       sync.RWMutex
	services map[string]any
	logger   logger.Logger
}

// New creates an empty registry.
func New(log logger.Logger) *Registry {
	if log == nil {
		log = logger.NewNoopLogger()
	}

	return &Registry{
		services: make(map[string]any),
		logger:   log.Named("service-registry"),
	}
}

// Register stores an instance under the given capability key. An existing
// instance for the same key is overwritten; the prior holder is not notified.
func (r *Registry) Register(key string, instance any) {
	r.mu.Lock()
	_, replaced := r.services[key]
	r.services[key] = instance
	r.mu.Unlock()

	r.logger.Debug("service registered",
		logger.String("key", key),
		logger.Bool("replaced", replaced),
	)
}

// Get returns the instance registered under key, if any. Lookup never fails;
// an absent key simply reports false.
func (r *Registry) Get(key string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	instance, ok := r.services[key]

	return instance, ok
}

// Unregister removes the entry for key. Subsequent lookups report absent.
func (r *Registry) Unregister(key string) {
	r.mu.Lock()
	delete(r.services, key)
	r.mu.Unlock()

	r.logger.Debug("service unregistered", logger.String("key", key))
}

// All returns a snapshot copy of the registered services.
func (r *Registry) All() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]any, len(r.services))
	for k, v := range r.services {
		out[k] = v
	}

	return out
}

// Len returns the number of registered services.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.services)
}

// As looks up key and asserts the instance to T. The type identity check
// happens here, once, at the registry boundary; callers get a typed value or
// an error, never a raw interface to cast themselves.
func As[T any](r *Registry, key string) (T, error) {
	var zero T

	instance, ok := r.Get(key)
	if !ok {
		return zero, errors.ErrServiceNotFound(key)
	}

	typed, ok := instance.(T)
	if !ok {
		return zero, errors.NewError(errors.CodeServiceNotFound,
			fmt.Sprintf("service '%s' has type %T, not the requested type", key, instance), nil)
	}

	return typed, nil
}
