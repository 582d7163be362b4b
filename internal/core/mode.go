// Package core is the orchestration layer.  It composes the deadline
// connector, transports and capabilities into complete operational modes
// and provides a builder that selects the right mode from a Config.
//
// Architecture layers (bottom → top):
//
//	deadline  →  transport  →  capability/session  →  core  →  cmd (CLI)
package core

import "context"

// Mode represents a complete operational mode of tcprobe (connect-and-
// relay or scan).  Each mode owns its full lifecycle from connection
// establishment to teardown.
type Mode interface {
	Run(ctx context.Context) error
}
