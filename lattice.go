// Package lattice is a cross-platform application framework kernel. This
// module contains its coordination layer: the plugin lifecycle and
// dependency management system, together with the service registry, event
// bus and configuration store plugins communicate through.
package lattice

import (
	"github.com/latticekit/lattice/plugin"
)

// Version is the framework version plugins are checked against via their
// Compatible predicate.
const Version = "0.4.0"

// New creates a plugin manager wired with the shared leaf components. Zero
// fields in opts get working defaults; an empty FrameworkVersion defaults to
// the framework's own Version.
func New(opts plugin.ManagerOptions) *plugin.Manager {
	if opts.FrameworkVersion == "" {
		opts.FrameworkVersion = Version
	}

	return plugin.NewManager(opts)
}
