package plugin

// State is the lifecycle state of a registered plugin.
type State string

const (
	// StateRegistered means the plugin is present in the registry but its
	// initialize hook has not completed yet.
	StateRegistered State = "REGISTERED"

	// StateInitialized means the initialize hook completed; the plugin is
	// ready to start.
	StateInitialized State = "INITIALIZED"

	// StateRunning means the start hook completed and the plugin is live.
	StateRunning State = "RUNNING"

	// StateStopped means the stop hook completed; the plugin may be started
	// again.
	StateStopped State = "STOPPED"

	// StateError means a lifecycle hook failed. The plugin stays in the
	// registry so it can be inspected and unregistered, but it will not be
	// started.
	StateError State = "ERROR"
)

// String returns the state name.
func (s State) String() string { return string(s) }

// CanStart reports whether a plugin in this state may be started.
func (s State) CanStart() bool {
	return s == StateInitialized || s == StateStopped
}

// CanStop reports whether a plugin in this state may be stopped.
func (s State) CanStop() bool {
	return s == StateRunning
}
