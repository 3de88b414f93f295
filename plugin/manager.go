package plugin

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/latticekit/lattice/config"
	"github.com/latticekit/lattice/errors"
	"github.com/latticekit/lattice/events"
	"github.com/latticekit/lattice/logger"
	"github.com/latticekit/lattice/metrics"
	"github.com/latticekit/lattice/registry"
)

// Manager owns the plugin registry, the per-plugin lifecycle state table and
// the dependency table, and orchestrates registration, start, stop and
// unregistration. All public operations are serialized by a single mutex so
// the three tables always share the same key set and no plugin runs before
// its dependencies.
//
// Hooks are invoked while that mutex is held; a hook must therefore never
// call back into the Manager's public API on the calling goroutine.
type Manager struct {
	mu sync.Mutex

	// The three tables below are kept in lock-step: an id is present in all
	// of them or in none.
	plugins      map[string]Plugin
	states       map[string]State
	dependencies map[string][]string

	// contexts holds the per-plugin facade built at registration.
	contexts map[string]*Context

	services *registry.Registry
	bus      *events.Bus
	config   *config.Store
	logger   logger.Logger
	metrics  metrics.Metrics
	version  string
}

// ManagerOptions configures a Manager. Zero-value fields get working
// defaults so tests and small embedders can construct a manager with only
// the pieces they care about.
type ManagerOptions struct {
	Services *registry.Registry
	Events   *events.Bus
	Config   *config.Store
	Logger   logger.Logger
	Metrics  metrics.Metrics

	// FrameworkVersion is the version string passed to each plugin's
	// Compatible predicate at registration.
	FrameworkVersion string
}

// NewManager creates a plugin manager wired to the shared leaf components.
func NewManager(opts ManagerOptions) *Manager {
	if opts.Logger == nil {
		opts.Logger = logger.NewNoopLogger()
	}

	if opts.Metrics == nil {
		opts.Metrics = metrics.NewNoop()
	}

	if opts.Services == nil {
		opts.Services = registry.New(opts.Logger)
	}

	if opts.Events == nil {
		opts.Events = events.NewBus(events.BusOptions{Logger: opts.Logger})
	}

	if opts.Config == nil {
		opts.Config = config.NewStore(opts.Logger)
	}

	return &Manager{
		plugins:      make(map[string]Plugin),
		states:       make(map[string]State),
		dependencies: make(map[string][]string),
		contexts:     make(map[string]*Context),
		services:     opts.Services,
		bus:          opts.Events,
		config:       opts.Config,
		logger:       opts.Logger.Named("plugin-manager"),
		metrics:      opts.Metrics,
		version:      opts.FrameworkVersion,
	}
}

// Services returns the shared service registry.
func (m *Manager) Services() *registry.Registry { return m.services }

// Events returns the shared event bus lifecycle events are emitted on.
func (m *Manager) Events() *events.Bus { return m.bus }

// Config returns the shared configuration store.
func (m *Manager) Config() *config.Store { return m.config }

// FrameworkVersion returns the version string plugins are checked against.
func (m *Manager) FrameworkVersion() string { return m.version }

// Register registers a plugin and synchronously runs its initialize hook.
// Registration is refused when the id is already taken, when the plugin is
// incompatible with the framework version, or when any declared dependency
// is absent from the registry. An initialize failure leaves the plugin
// registered in the ERROR state; it is reported but not rolled back.
func (m *Manager) Register(ctx context.Context, p Plugin) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := p.ID()
	if id == "" {
		return errors.New("plugin id cannot be empty")
	}

	if _, exists := m.plugins[id]; exists {
		return errors.ErrDuplicatePlugin(id)
	}

	if !p.Compatible(m.version) {
		return errors.ErrIncompatibleVersion(id, m.version)
	}

	var missing []string

	for _, dep := range p.Dependencies() {
		if _, ok := m.plugins[dep]; !ok {
			missing = append(missing, dep)
		}
	}

	if len(missing) > 0 {
		return errors.ErrMissingDependencies(id, missing)
	}

	deps := make([]string, len(p.Dependencies()))
	copy(deps, p.Dependencies())

	pctx := &Context{
		pluginID: id,
		manager:  m,
		services: m.services,
		events:   m.bus,
		config:   m.config,
		logger:   m.logger.Named(id),
	}

	m.plugins[id] = p
	m.states[id] = StateRegistered
	m.dependencies[id] = deps
	m.contexts[id] = pctx

	if err := runHook(ctx, func(ctx context.Context) error {
		return p.Initialize(ctx, pctx)
	}); err != nil {
		m.states[id] = StateError
		m.reportHookFailure(ctx, p, "initialize", err)

		return errors.ErrHookFailure(id, "initialize", err)
	}

	m.states[id] = StateInitialized

	m.logger.Info("plugin registered",
		logger.String("plugin", id),
		logger.String("version", p.Version()),
		logger.Strings("dependencies", deps),
	)
	m.metrics.Counter("lattice.plugins.registered").Inc()
	m.emit(ctx, events.NewPluginEvent(events.TypePluginRegistered, id, p.Name()))

	return nil
}

// Start starts the plugin with the given id, first starting any of its
// declared dependencies that are not yet running. Dependencies are started
// sequentially, depth-first, in declaration order; the first failure aborts
// the operation without rolling back dependencies already started.
func (m *Manager) Start(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.startLocked(ctx, id)
}

func (m *Manager) startLocked(ctx context.Context, id string) error {
	p, exists := m.plugins[id]
	if !exists {
		return errors.ErrPluginNotFound(id)
	}

	state := m.states[id]
	if !state.CanStart() {
		return errors.ErrInvalidStateTransition(id, "start", state.String())
	}

	for _, dep := range m.dependencies[id] {
		if m.states[dep] == StateRunning {
			continue
		}

		if err := m.startLocked(ctx, dep); err != nil {
			return fmt.Errorf("failed to start dependency '%s' of plugin '%s': %w", dep, id, err)
		}
	}

	if err := runHook(ctx, p.Start); err != nil {
		m.states[id] = StateError
		m.reportHookFailure(ctx, p, "start", err)

		return errors.ErrHookFailure(id, "start", err)
	}

	m.states[id] = StateRunning

	m.logger.Info("plugin started", logger.String("plugin", id))
	m.metrics.Counter("lattice.plugins.started").Inc()
	m.metrics.Gauge("lattice.plugins.running").Inc()
	m.emit(ctx, events.NewPluginEvent(events.TypePluginStarted, id, p.Name()))

	return nil
}

// Stop stops a running plugin. Stopping is refused, not cascaded, while any
// other registered plugin that depends on it is still running.
func (m *Manager) Stop(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.stopLocked(ctx, id)
}

func (m *Manager) stopLocked(ctx context.Context, id string) error {
	p, exists := m.plugins[id]
	if !exists {
		return errors.ErrPluginNotFound(id)
	}

	state := m.states[id]
	if !state.CanStop() {
		return errors.ErrInvalidStateTransition(id, "stop", state.String())
	}

	if dependents := m.runningDependentsLocked(id); len(dependents) > 0 {
		return errors.ErrHasRunningDependents(id, dependents)
	}

	if err := runHook(ctx, p.Stop); err != nil {
		m.states[id] = StateError
		m.reportHookFailure(ctx, p, "stop", err)

		return errors.ErrHookFailure(id, "stop", err)
	}

	m.states[id] = StateStopped

	m.logger.Info("plugin stopped", logger.String("plugin", id))
	m.metrics.Counter("lattice.plugins.stopped").Inc()
	m.metrics.Gauge("lattice.plugins.running").Dec()
	m.emit(ctx, events.NewPluginEvent(events.TypePluginStopped, id, p.Name()))

	return nil
}

// Unregister removes a plugin from the registry. A running plugin is stopped
// first, with the full stop semantics (including dependent refusal). Cleanup
// failures are logged and swallowed; unregistration proceeds.
func (m *Manager) Unregister(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, exists := m.plugins[id]
	if !exists {
		return errors.ErrPluginNotFound(id)
	}

	if m.states[id] == StateRunning {
		if err := m.stopLocked(ctx, id); err != nil {
			return err
		}
	}

	if err := runHook(ctx, p.Cleanup); err != nil {
		m.logger.Warn("plugin cleanup failed",
			logger.String("plugin", id),
			logger.Error(err),
		)
	}

	delete(m.plugins, id)
	delete(m.states, id)
	delete(m.dependencies, id)
	delete(m.contexts, id)

	m.logger.Info("plugin unregistered", logger.String("plugin", id))
	m.metrics.Counter("lattice.plugins.unregistered").Inc()
	m.emit(ctx, events.NewPluginEvent(events.TypePluginUnregistered, id, p.Name()))

	return nil
}

// Get returns the registered plugin with the given id.
func (m *Manager) Get(id string) (Plugin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, exists := m.plugins[id]
	if !exists {
		return nil, errors.ErrPluginNotFound(id)
	}

	return p, nil
}

// All returns a snapshot of all registered plugins, sorted by id.
func (m *Manager) All() []Plugin {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Plugin, 0, len(m.plugins))
	for _, p := range m.plugins {
		out = append(out, p)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })

	return out
}

// StateOf returns the lifecycle state of the plugin with the given id.
func (m *Manager) StateOf(id string) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, exists := m.states[id]
	if !exists {
		return "", errors.ErrPluginNotFound(id)
	}

	return state, nil
}

// Running returns a snapshot of all plugins in the RUNNING state, sorted by id.
func (m *Manager) Running() []Plugin {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Plugin, 0, len(m.plugins))

	for id, p := range m.plugins {
		if m.states[id] == StateRunning {
			out = append(out, p)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })

	return out
}

// Count returns the number of registered plugins.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.plugins)
}

// StartAll starts every startable plugin in dependency order. Failures are
// collected rather than aborting the sweep, so independent plugins still
// come up.
func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error

	for _, id := range m.topologicalOrderLocked() {
		if !m.states[id].CanStart() {
			continue
		}

		if err := m.startLocked(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// StopAll stops every running plugin in reverse dependency order, so
// dependents always stop before their dependencies.
func (m *Manager) StopAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	order := m.topologicalOrderLocked()

	var errs []error

	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]
		if m.states[id] != StateRunning {
			continue
		}

		if err := m.stopLocked(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Health checks every running plugin that implements HealthChecker. Checks
// run concurrently; the result maps plugin id to the check outcome, nil
// meaning healthy.
func (m *Manager) Health(ctx context.Context) map[string]error {
	m.mu.Lock()

	checkers := make(map[string]HealthChecker)

	for id, p := range m.plugins {
		if m.states[id] != StateRunning {
			continue
		}

		if hc, ok := p.(HealthChecker); ok {
			checkers[id] = hc
		}
	}

	m.mu.Unlock()

	results := make(map[string]error, len(checkers))

	var resultsMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)

	for id, hc := range checkers {
		id, hc := id, hc
		g.Go(func() error {
			err := hc.Health(gctx)

			resultsMu.Lock()
			results[id] = err
			resultsMu.Unlock()

			return nil
		})
	}

	_ = g.Wait()

	return results
}

// runningDependentsLocked returns the ids of other registered plugins that
// declare id as a dependency and are currently running, sorted for
// deterministic error messages.
func (m *Manager) runningDependentsLocked(id string) []string {
	var dependents []string

	for other, deps := range m.dependencies {
		if other == id || m.states[other] != StateRunning {
			continue
		}

		for _, dep := range deps {
			if dep == id {
				dependents = append(dependents, other)

				break
			}
		}
	}

	sort.Strings(dependents)

	return dependents
}

// topologicalOrderLocked returns all plugin ids with dependencies before
// dependents. The graph is acyclic by construction: a plugin cannot be
// registered before its dependencies exist. Roots are visited in sorted
// order so the result is deterministic.
func (m *Manager) topologicalOrderLocked() []string {
	ids := make([]string, 0, len(m.plugins))
	for id := range m.plugins {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	sorted := make([]string, 0, len(ids))
	visited := make(map[string]bool, len(ids))

	var visit func(id string)
	visit = func(id string) {
		if visited[id] {
			return
		}

		visited[id] = true

		for _, dep := range m.dependencies[id] {
			if _, ok := m.plugins[dep]; ok {
				visit(dep)
			}
		}

		sorted = append(sorted, id)
	}

	for _, id := range ids {
		visit(id)
	}

	return sorted
}

// reportHookFailure logs a hook failure and emits the PluginError lifecycle
// event, the asynchronous half of the error notification contract.
func (m *Manager) reportHookFailure(ctx context.Context, p Plugin, hook string, err error) {
	m.logger.Error("plugin hook failed",
		logger.String("plugin", p.ID()),
		logger.String("hook", hook),
		logger.Error(err),
	)
	m.metrics.Counter("lattice.plugins.hook_failures").Inc()

	event := events.NewPluginEvent(events.TypePluginError, p.ID(), p.Name())
	event.Message = fmt.Sprintf("%s hook failed: %v", hook, err)
	m.emit(ctx, event)
}

// emit publishes a lifecycle event, logging instead of failing when the bus
// refuses it.
func (m *Manager) emit(ctx context.Context, event events.Event) {
	if err := m.bus.Publish(ctx, event); err != nil {
		m.logger.Warn("failed to publish lifecycle event",
			logger.String("event_type", event.Type),
			logger.String("plugin", event.PluginID),
			logger.Error(err),
		)
	}
}

// runHook invokes a lifecycle hook, converting a panic into an error so hook
// failures never cross the manager's public boundary unwrapped.
func runHook(ctx context.Context, hook func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	return hook(ctx)
}
