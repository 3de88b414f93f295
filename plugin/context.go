package plugin

import (
	"github.com/latticekit/lattice/config"
	"github.com/latticekit/lattice/events"
	"github.com/latticekit/lattice/logger"
	"github.com/latticekit/lattice/registry"
)

// View is the read-only surface of the Manager exposed to plugin contexts.
// It lets a plugin inspect sibling plugins without being able to drive their
// lifecycle.
type View interface {
	Get(id string) (Plugin, error)
	All() []Plugin
	StateOf(id string) (State, error)
	Running() []Plugin
}

// Context is the facade handed to a plugin's Initialize hook. It bundles
// read access to the shared leaf components plus a back-reference to the
// owning manager. One context is created per plugin at registration and
// owned exclusively by that plugin for its registered lifetime.
//
// The context adds no state of its own; the convenience accessors delegate
// to the shared components. Do not call the View methods from inside a
// lifecycle hook body: the manager is mid-operation at that point.
type Context struct {
	pluginID string
	manager  View
	services *registry.Registry
	events   *events.Bus
	config   *config.Store
	logger   logger.Logger
}

// PluginID returns the id of the plugin owning this context.
func (c *Context) PluginID() string { return c.pluginID }

// Manager returns a read-only view of the owning plugin manager.
func (c *Context) Manager() View { return c.manager }

// Services returns the shared service registry.
func (c *Context) Services() *registry.Registry { return c.services }

// Events returns the shared event bus.
func (c *Context) Events() *events.Bus { return c.events }

// Config returns the shared configuration store.
func (c *Context) Config() *config.Store { return c.config }

// Logger returns a logger named after the owning plugin.
func (c *Context) Logger() logger.Logger { return c.logger }

// Service looks up a service instance by capability key.
func (c *Context) Service(key string) (any, bool) {
	return c.services.Get(key)
}

// RegisterService registers a service instance under the given capability key.
func (c *Context) RegisterService(key string, instance any) {
	c.services.Register(key, instance)
}

// ConfigValue reads a configuration value, returning def when absent.
func (c *Context) ConfigValue(key, def string) string {
	return c.config.GetString(key, def)
}

// SetConfigValue writes a configuration value.
func (c *Context) SetConfigValue(key, value string) {
	c.config.Set(key, value)
}
