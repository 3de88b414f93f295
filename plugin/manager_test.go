package plugin

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticekit/lattice/errors"
	"github.com/latticekit/lattice/events"
)

// callLog records hook invocations across plugins so tests can assert on
// ordering.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(entry string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, entry)
}

func (l *callLog) entries() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.calls))
	copy(out, l.calls)
	return out
}

// Mock plugin for testing
type mockPlugin struct {
	*Base
	log          *callLog
	incompatible bool
	initErr      error
	startErr     error
	stopErr      error
	cleanupErr   error
	panicOnStart bool
	pctx         *Context
}

func newMockPlugin(id string, log *callLog, deps ...string) *mockPlugin {
	base := NewBase(id, fmt.Sprintf("Mock plugin %s", id), "1.0.0")
	base.SetDependencies(deps)
	return &mockPlugin{Base: base, log: log}
}

func (p *mockPlugin) Compatible(frameworkVersion string) bool {
	return !p.incompatible
}

func (p *mockPlugin) Initialize(ctx context.Context, pctx *Context) error {
	p.log.add("initialize:" + p.ID())
	p.pctx = pctx
	return p.initErr
}

func (p *mockPlugin) Start(ctx context.Context) error {
	if p.panicOnStart {
		panic("boom")
	}
	p.log.add("start:" + p.ID())
	return p.startErr
}

func (p *mockPlugin) Stop(ctx context.Context) error {
	p.log.add("stop:" + p.ID())
	return p.stopErr
}

func (p *mockPlugin) Cleanup(ctx context.Context) error {
	p.log.add("cleanup:" + p.ID())
	return p.cleanupErr
}

// healthyPlugin adds the optional HealthChecker capability.
type healthyPlugin struct {
	*mockPlugin
	healthErr error
}

func (p *healthyPlugin) Health(ctx context.Context) error {
	return p.healthErr
}

func newTestManager() *Manager {
	return NewManager(ManagerOptions{FrameworkVersion: "0.4.0"})
}

func TestManagerRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		m := newTestManager()
		log := &callLog{}
		p := newMockPlugin("core", log)

		err := m.Register(ctx, p)
		require.NoError(t, err)

		state, err := m.StateOf("core")
		require.NoError(t, err)
		assert.Equal(t, StateInitialized, state)
		assert.Equal(t, []string{"initialize:core"}, log.entries())
		require.NotNil(t, p.pctx)
		assert.Equal(t, "core", p.pctx.PluginID())
	})

	t.Run("EmptyID", func(t *testing.T) {
		m := newTestManager()
		err := m.Register(ctx, newMockPlugin("", &callLog{}))
		assert.Error(t, err)
	})

	t.Run("DuplicateLeavesExistingEntryUnchanged", func(t *testing.T) {
		m := newTestManager()
		log := &callLog{}
		first := newMockPlugin("core", log)
		require.NoError(t, m.Register(ctx, first))

		err := m.Register(ctx, newMockPlugin("core", log))
		require.Error(t, err)
		assert.True(t, errors.IsDuplicatePlugin(err))

		got, err := m.Get("core")
		require.NoError(t, err)
		assert.Same(t, Plugin(first), got)

		state, _ := m.StateOf("core")
		assert.Equal(t, StateInitialized, state)
	})

	t.Run("MissingDependencyBlocksRegistration", func(t *testing.T) {
		m := newTestManager()
		err := m.Register(ctx, newMockPlugin("ui", &callLog{}, "core"))
		require.Error(t, err)
		assert.True(t, errors.IsMissingDependency(err))
		assert.Contains(t, err.Error(), "core")
		assert.Equal(t, 0, m.Count())
	})

	t.Run("IncompatibleVersion", func(t *testing.T) {
		m := newTestManager()
		p := newMockPlugin("legacy", &callLog{})
		p.incompatible = true

		err := m.Register(ctx, p)
		require.Error(t, err)
		assert.True(t, errors.IsIncompatibleVersion(err))
		assert.Equal(t, 0, m.Count())
	})

	t.Run("InitializeFailureLeavesPluginInErrorState", func(t *testing.T) {
		m := newTestManager()
		sub := m.Events().Subscribe(events.TypePluginError)

		p := newMockPlugin("broken", &callLog{})
		p.initErr = errors.New("db unreachable")

		err := m.Register(ctx, p)
		require.Error(t, err)
		assert.True(t, errors.IsHookFailure(err))

		// Not rolled back: the entry stays, in ERROR.
		state, serr := m.StateOf("broken")
		require.NoError(t, serr)
		assert.Equal(t, StateError, state)

		event := <-sub.C()
		assert.Equal(t, events.TypePluginError, event.Type)
		assert.Equal(t, "broken", event.PluginID)
		assert.Contains(t, event.Message, "initialize")
	})

	t.Run("RegisteredEventEmitted", func(t *testing.T) {
		m := newTestManager()
		sub := m.Events().Subscribe(events.TypePluginRegistered)

		require.NoError(t, m.Register(ctx, newMockPlugin("core", &callLog{})))

		event := <-sub.C()
		assert.Equal(t, "core", event.PluginID)
		assert.NotEmpty(t, event.ID)
		assert.False(t, event.Timestamp.IsZero())
	})
}

func TestManagerStart(t *testing.T) {
	ctx := context.Background()

	t.Run("DependencyChainStartsDepthFirst", func(t *testing.T) {
		m := newTestManager()
		log := &callLog{}
		require.NoError(t, m.Register(ctx, newMockPlugin("d2", log)))
		require.NoError(t, m.Register(ctx, newMockPlugin("d1", log, "d2")))
		require.NoError(t, m.Register(ctx, newMockPlugin("p", log, "d1")))

		sub := m.Events().Subscribe(events.TypePluginStarted)

		require.NoError(t, m.Start(ctx, "p"))

		assert.Equal(t, []string{
			"initialize:d2", "initialize:d1", "initialize:p",
			"start:d2", "start:d1", "start:p",
		}, log.entries())

		for _, id := range []string{"d2", "d1", "p"} {
			state, err := m.StateOf(id)
			require.NoError(t, err)
			assert.Equal(t, StateRunning, state, id)
		}

		// Started events fire dependency-first.
		assert.Equal(t, "d2", (<-sub.C()).PluginID)
		assert.Equal(t, "d1", (<-sub.C()).PluginID)
		assert.Equal(t, "p", (<-sub.C()).PluginID)
	})

	t.Run("AlreadyRunningFailsFast", func(t *testing.T) {
		m := newTestManager()
		require.NoError(t, m.Register(ctx, newMockPlugin("core", &callLog{})))
		require.NoError(t, m.Start(ctx, "core"))

		err := m.Start(ctx, "core")
		require.Error(t, err)
		assert.True(t, errors.IsInvalidStateTransition(err))
		assert.Contains(t, err.Error(), "RUNNING")
	})

	t.Run("NotFound", func(t *testing.T) {
		m := newTestManager()
		err := m.Start(ctx, "ghost")
		assert.True(t, errors.IsPluginNotFound(err))
	})

	t.Run("RestartAfterStop", func(t *testing.T) {
		m := newTestManager()
		require.NoError(t, m.Register(ctx, newMockPlugin("core", &callLog{})))
		require.NoError(t, m.Start(ctx, "core"))
		require.NoError(t, m.Stop(ctx, "core"))
		require.NoError(t, m.Start(ctx, "core"))

		state, _ := m.StateOf("core")
		assert.Equal(t, StateRunning, state)
	})

	t.Run("DependencyFailureIsNotRolledBack", func(t *testing.T) {
		m := newTestManager()
		log := &callLog{}
		require.NoError(t, m.Register(ctx, newMockPlugin("d2", log)))
		d1 := newMockPlugin("d1", log, "d2")
		d1.startErr = errors.New("port in use")
		require.NoError(t, m.Register(ctx, d1))
		require.NoError(t, m.Register(ctx, newMockPlugin("p", log, "d1")))

		err := m.Start(ctx, "p")
		require.Error(t, err)
		assert.True(t, errors.IsHookFailure(err))
		assert.Contains(t, err.Error(), "d1")

		// d2 started before d1 failed and stays running; p never started.
		state, _ := m.StateOf("d2")
		assert.Equal(t, StateRunning, state)
		state, _ = m.StateOf("d1")
		assert.Equal(t, StateError, state)
		state, _ = m.StateOf("p")
		assert.Equal(t, StateInitialized, state)
	})

	t.Run("MissingDependencyNamedInError", func(t *testing.T) {
		m := newTestManager()
		require.NoError(t, m.Register(ctx, newMockPlugin("core", &callLog{})))
		require.NoError(t, m.Register(ctx, newMockPlugin("ui", &callLog{}, "core")))
		require.NoError(t, m.Unregister(ctx, "core"))

		err := m.Start(ctx, "ui")
		require.Error(t, err)
		assert.True(t, errors.IsPluginNotFound(err))
		assert.Contains(t, err.Error(), "core")
	})

	t.Run("PanicInHookIsWrapped", func(t *testing.T) {
		m := newTestManager()
		p := newMockPlugin("wild", &callLog{})
		p.panicOnStart = true
		require.NoError(t, m.Register(ctx, p))

		err := m.Start(ctx, "wild")
		require.Error(t, err)
		assert.True(t, errors.IsHookFailure(err))
		assert.Contains(t, err.Error(), "panic")

		state, _ := m.StateOf("wild")
		assert.Equal(t, StateError, state)
	})
}

func TestManagerStop(t *testing.T) {
	ctx := context.Background()

	t.Run("RefusedWhileDependentsRunThenSucceeds", func(t *testing.T) {
		m := newTestManager()
		log := &callLog{}
		require.NoError(t, m.Register(ctx, newMockPlugin("a", log)))
		require.NoError(t, m.Register(ctx, newMockPlugin("b", log, "a")))
		require.NoError(t, m.Start(ctx, "b"))

		err := m.Stop(ctx, "a")
		require.Error(t, err)
		assert.True(t, errors.IsHasRunningDependents(err))
		assert.Contains(t, err.Error(), "b")

		require.NoError(t, m.Stop(ctx, "b"))
		require.NoError(t, m.Stop(ctx, "a"))

		state, _ := m.StateOf("a")
		assert.Equal(t, StateStopped, state)
	})

	t.Run("NotRunning", func(t *testing.T) {
		m := newTestManager()
		require.NoError(t, m.Register(ctx, newMockPlugin("core", &callLog{})))

		err := m.Stop(ctx, "core")
		require.Error(t, err)
		assert.True(t, errors.IsInvalidStateTransition(err))
		assert.Contains(t, err.Error(), "INITIALIZED")
	})

	t.Run("StopHookFailure", func(t *testing.T) {
		m := newTestManager()
		p := newMockPlugin("core", &callLog{})
		p.stopErr = errors.New("flush failed")
		require.NoError(t, m.Register(ctx, p))
		require.NoError(t, m.Start(ctx, "core"))

		err := m.Stop(ctx, "core")
		require.Error(t, err)
		assert.True(t, errors.IsHookFailure(err))

		state, _ := m.StateOf("core")
		assert.Equal(t, StateError, state)
	})

	t.Run("StoppedEventEmitted", func(t *testing.T) {
		m := newTestManager()
		require.NoError(t, m.Register(ctx, newMockPlugin("core", &callLog{})))
		require.NoError(t, m.Start(ctx, "core"))

		sub := m.Events().Subscribe(events.TypePluginStopped)
		require.NoError(t, m.Stop(ctx, "core"))
		assert.Equal(t, "core", (<-sub.C()).PluginID)
	})
}

func TestManagerUnregister(t *testing.T) {
	ctx := context.Background()

	t.Run("RunningPluginIsStoppedFirst", func(t *testing.T) {
		m := newTestManager()
		log := &callLog{}
		require.NoError(t, m.Register(ctx, newMockPlugin("core", log)))
		require.NoError(t, m.Start(ctx, "core"))

		stopped := m.Events().Subscribe(events.TypePluginStopped)
		unregistered := m.Events().Subscribe(events.TypePluginUnregistered)

		require.NoError(t, m.Unregister(ctx, "core"))

		assert.Equal(t, []string{"initialize:core", "start:core", "stop:core", "cleanup:core"}, log.entries())
		assert.Equal(t, 0, m.Count())
		assert.Equal(t, "core", (<-stopped.C()).PluginID)
		assert.Equal(t, "core", (<-unregistered.C()).PluginID)
	})

	t.Run("RefusedWhileDependentsRun", func(t *testing.T) {
		m := newTestManager()
		log := &callLog{}
		require.NoError(t, m.Register(ctx, newMockPlugin("a", log)))
		require.NoError(t, m.Register(ctx, newMockPlugin("b", log, "a")))
		require.NoError(t, m.Start(ctx, "b"))

		err := m.Unregister(ctx, "a")
		require.Error(t, err)
		assert.True(t, errors.IsHasRunningDependents(err))

		_, err = m.Get("a")
		assert.NoError(t, err)
	})

	t.Run("CleanupFailureIsSwallowed", func(t *testing.T) {
		m := newTestManager()
		p := newMockPlugin("core", &callLog{})
		p.cleanupErr = errors.New("tmp dir busy")
		require.NoError(t, m.Register(ctx, p))

		require.NoError(t, m.Unregister(ctx, "core"))
		assert.Equal(t, 0, m.Count())
	})

	t.Run("NotFound", func(t *testing.T) {
		m := newTestManager()
		err := m.Unregister(ctx, "ghost")
		assert.True(t, errors.IsPluginNotFound(err))
	})
}

func TestManagerQueries(t *testing.T) {
	ctx := context.Background()

	t.Run("AllReturnsSortedSnapshot", func(t *testing.T) {
		m := newTestManager()
		require.NoError(t, m.Register(ctx, newMockPlugin("zeta", &callLog{})))
		require.NoError(t, m.Register(ctx, newMockPlugin("alpha", &callLog{})))

		all := m.All()
		require.Len(t, all, 2)
		assert.Equal(t, "alpha", all[0].ID())
		assert.Equal(t, "zeta", all[1].ID())
	})

	t.Run("RunningFiltersByState", func(t *testing.T) {
		m := newTestManager()
		require.NoError(t, m.Register(ctx, newMockPlugin("a", &callLog{})))
		require.NoError(t, m.Register(ctx, newMockPlugin("b", &callLog{})))
		require.NoError(t, m.Start(ctx, "b"))

		running := m.Running()
		require.Len(t, running, 1)
		assert.Equal(t, "b", running[0].ID())
	})

	t.Run("StateOfUnknownPlugin", func(t *testing.T) {
		m := newTestManager()
		_, err := m.StateOf("ghost")
		assert.True(t, errors.IsPluginNotFound(err))
	})

	t.Run("TablesStayInLockStepUnderConcurrency", func(t *testing.T) {
		m := newTestManager()

		var wg sync.WaitGroup

		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				id := fmt.Sprintf("p%d", n)
				if err := m.Register(ctx, newMockPlugin(id, &callLog{})); err == nil {
					_ = m.Start(ctx, id)
				}
			}(i)
		}

		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 50; j++ {
					// Every id visible through All must have a state.
					for _, p := range m.All() {
						_, err := m.StateOf(p.ID())
						assert.NoError(t, err)
					}
					_ = m.Running()
				}
			}()
		}

		wg.Wait()
		assert.Equal(t, 8, m.Count())
	})
}

func TestManagerStartAllStopAll(t *testing.T) {
	ctx := context.Background()

	t.Run("StartAllHonorsDependencyOrder", func(t *testing.T) {
		m := newTestManager()
		log := &callLog{}
		require.NoError(t, m.Register(ctx, newMockPlugin("storage", log)))
		require.NoError(t, m.Register(ctx, newMockPlugin("cache", log, "storage")))
		require.NoError(t, m.Register(ctx, newMockPlugin("api", log, "cache", "storage")))

		require.NoError(t, m.StartAll(ctx))

		entries := log.entries()[3:] // skip the initialize calls
		assert.Equal(t, []string{"start:storage", "start:cache", "start:api"}, entries)
		assert.Len(t, m.Running(), 3)
	})

	t.Run("StopAllStopsDependentsFirst", func(t *testing.T) {
		m := newTestManager()
		log := &callLog{}
		require.NoError(t, m.Register(ctx, newMockPlugin("storage", log)))
		require.NoError(t, m.Register(ctx, newMockPlugin("cache", log, "storage")))
		require.NoError(t, m.StartAll(ctx))

		require.NoError(t, m.StopAll(ctx))

		entries := log.entries()
		assert.Equal(t, []string{"stop:cache", "stop:storage"}, entries[len(entries)-2:])
		assert.Empty(t, m.Running())
	})

	t.Run("StartAllCollectsFailures", func(t *testing.T) {
		m := newTestManager()
		log := &callLog{}
		broken := newMockPlugin("broken", log)
		broken.startErr = errors.New("nope")
		require.NoError(t, m.Register(ctx, broken))
		require.NoError(t, m.Register(ctx, newMockPlugin("fine", log)))

		err := m.StartAll(ctx)
		require.Error(t, err)

		// Independent plugins still come up.
		state, _ := m.StateOf("fine")
		assert.Equal(t, StateRunning, state)
	})
}

func TestManagerHealth(t *testing.T) {
	ctx := context.Background()

	m := newTestManager()
	log := &callLog{}

	healthy := &healthyPlugin{mockPlugin: newMockPlugin("healthy", log)}
	unhealthy := &healthyPlugin{mockPlugin: newMockPlugin("unhealthy", log), healthErr: errors.New("degraded")}
	plain := newMockPlugin("plain", log)
	idle := &healthyPlugin{mockPlugin: newMockPlugin("idle", log)}

	require.NoError(t, m.Register(ctx, healthy))
	require.NoError(t, m.Register(ctx, unhealthy))
	require.NoError(t, m.Register(ctx, plain))
	require.NoError(t, m.Register(ctx, idle))

	require.NoError(t, m.Start(ctx, "healthy"))
	require.NoError(t, m.Start(ctx, "unhealthy"))
	require.NoError(t, m.Start(ctx, "plain"))

	results := m.Health(ctx)

	require.Len(t, results, 2)
	assert.NoError(t, results["healthy"])
	assert.Error(t, results["unhealthy"])

	// Plugins without the capability, and non-running ones, are skipped.
	_, ok := results["plain"]
	assert.False(t, ok)
	_, ok = results["idle"]
	assert.False(t, ok)
}

func TestPluginContext(t *testing.T) {
	ctx := context.Background()

	m := newTestManager()
	p := newMockPlugin("core", &callLog{})
	require.NoError(t, m.Register(ctx, p))
	require.NotNil(t, p.pctx)

	t.Run("ServiceRoundTrip", func(t *testing.T) {
		p.pctx.RegisterService("greeter", "hello")

		got, ok := p.pctx.Service("greeter")
		require.True(t, ok)
		assert.Equal(t, "hello", got)
	})

	t.Run("ConfigRoundTrip", func(t *testing.T) {
		p.pctx.SetConfigValue("mode", "fast")
		assert.Equal(t, "fast", p.pctx.ConfigValue("mode", "slow"))
		assert.Equal(t, "slow", p.pctx.ConfigValue("missing", "slow"))
	})

	t.Run("ManagerViewIsQueryable", func(t *testing.T) {
		state, err := p.pctx.Manager().StateOf("core")
		require.NoError(t, err)
		assert.Equal(t, StateInitialized, state)
	})

	t.Run("SharedComponentsMatchManager", func(t *testing.T) {
		assert.Same(t, m.Services(), p.pctx.Services())
		assert.Same(t, m.Events(), p.pctx.Events())
		assert.Same(t, m.Config(), p.pctx.Config())
	})
}
