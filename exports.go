package lattice

import (
	"github.com/latticekit/lattice/config"
	"github.com/latticekit/lattice/events"
	"github.com/latticekit/lattice/logger"
	"github.com/latticekit/lattice/plugin"
	"github.com/latticekit/lattice/registry"
)

type Plugin = plugin.Plugin

type PluginContext = plugin.Context

type Manager = plugin.Manager

type ManagerOptions = plugin.ManagerOptions

type State = plugin.State

type Event = events.Event

type EventBus = events.Bus

type ServiceRegistry = registry.Registry

type ConfigStore = config.Store

type Logger = logger.Logger

var NewBasePlugin = plugin.NewBase

var NewEventBus = events.NewBus

var NewServiceRegistry = registry.New

var NewConfigStore = config.NewStore
