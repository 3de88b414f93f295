// Package plugin implements the plugin lifecycle and dependency management
// system: the plugin contract, the per-plugin context facade, and the manager
// that registers plugins, sequences dependency start-up and shutdown, and
// emits lifecycle events.
package plugin

import (
	"context"
)

// Plugin is the contract implemented by pluggable modules. Identity fields
// are immutable for the lifetime of a registration. Dependencies returns the
// ordered ids of plugins that must reach RUNNING before this plugin may
// start.
type Plugin interface {
	// Identity metadata
	ID() string
	Name() string
	Version() string
	Description() string
	Author() string
	Dependencies() []string

	// Compatible reports whether the plugin supports the given framework
	// version. Incompatible plugins are refused at registration.
	Compatible(frameworkVersion string) bool

	// Lifecycle hooks. Initialize runs synchronously during registration and
	// receives the plugin's context facade; the remaining hooks run during
	// the corresponding manager operations. Hooks must not call back into
	// the Manager's public API on the calling goroutine.
	Initialize(ctx context.Context, pctx *Context) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Cleanup(ctx context.Context) error
}

// HealthChecker is an optional capability interface for plugins that report
// their own health. The manager only checks running plugins.
type HealthChecker interface {
	Plugin
	Health(ctx context.Context) error
}

// Base provides common functionality for implementing plugins. Plugins can
// embed Base to get standard implementations of the metadata accessors and
// no-op lifecycle hooks.
//
// Example usage:
//
//	type cachePlugin struct {
//	    *plugin.Base
//	    client *cacheClient
//	}
//
//	func NewCachePlugin() plugin.Plugin {
//	    base := plugin.NewBase("cache", "Cache", "1.0.0")
//	    base.SetDependencies([]string{"storage"})
//	    return &cachePlugin{Base: base}
//	}
type Base struct {
	id           string
	name         string
	version      string
	description  string
	author       string
	dependencies []string
}

// NewBase creates a new base plugin with the given identity.
func NewBase(id, name, version string) *Base {
	return &Base{
		id:           id,
		name:         name,
		version:      version,
		dependencies: []string{},
	}
}

// ID returns the plugin id.
func (b *Base) ID() string { return b.id }

// Name returns the plugin name.
func (b *Base) Name() string { return b.name }

// Version returns the plugin version.
func (b *Base) Version() string { return b.version }

// Description returns the plugin description.
func (b *Base) Description() string { return b.description }

// SetDescription sets the plugin description.
func (b *Base) SetDescription(description string) { b.description = description }

// Author returns the plugin author.
func (b *Base) Author() string { return b.author }

// SetAuthor sets the plugin author.
func (b *Base) SetAuthor(author string) { b.author = author }

// Dependencies returns the declared dependency ids in declaration order.
func (b *Base) Dependencies() []string { return b.dependencies }

// SetDependencies sets the declared dependency ids.
func (b *Base) SetDependencies(deps []string) { b.dependencies = deps }

// Compatible accepts every framework version by default.
func (b *Base) Compatible(frameworkVersion string) bool { return true }

// Initialize is a default implementation that does nothing.
func (b *Base) Initialize(ctx context.Context, pctx *Context) error { return nil }

// Start is a default implementation that does nothing.
func (b *Base) Start(ctx context.Context) error { return nil }

// Stop is a default implementation that does nothing.
func (b *Base) Stop(ctx context.Context) error { return nil }

// Cleanup is a default implementation that does nothing.
func (b *Base) Cleanup(ctx context.Context) error { return nil }
