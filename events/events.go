// Package events provides the in-process event bus decoupling plugin-to-plugin
// notification, plus the lifecycle event types emitted by the plugin manager.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Lifecycle event types emitted by the plugin manager.
const (
	TypePluginRegistered   = "plugin.registered"
	TypePluginStarted      = "plugin.started"
	TypePluginStopped      = "plugin.stopped"
	TypePluginUnregistered = "plugin.unregistered"
	TypePluginError        = "plugin.error"
)

// Event is a single bus event. Type selects the multicast channel it is
// delivered on; the remaining fields are payload.
type Event struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	PluginID   string         `json:"plugin_id,omitempty"`
	PluginName string         `json:"plugin_name,omitempty"`
	Message    string         `json:"message,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// New creates an event of the given type with a fresh id and timestamp.
func New(eventType string) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now(),
	}
}

// NewPluginEvent creates a lifecycle event carrying a plugin's identity.
func NewPluginEvent(eventType, pluginID, pluginName string) Event {
	e := New(eventType)
	e.PluginID = pluginID
	e.PluginName = pluginName

	return e
}
