package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags, config file parsing, and environment variable
// loading.

const (
	// DefaultConnTimeout is the connect budget in relay mode.
	DefaultConnTimeout = 30 * time.Second

	// DefaultScanTimeout is the per-port budget for port scanning.
	DefaultScanTimeout = 3 * time.Second

	// DefaultMaxConcurrentScans limits the number of simultaneous scan
	// goroutines to prevent resource exhaustion.
	DefaultMaxConcurrentScans = 100

	// DefaultLogFormat selects the human-readable encoder.
	DefaultLogFormat = "console"

	// DefaultLogMaxSizeMB rotates --log-file once it reaches this size.
	DefaultLogMaxSizeMB = 50

	// DefaultLogMaxBackups is how many rotated log files are kept.
	DefaultLogMaxBackups = 3

	// EnvPrefix prefixes every environment variable tcprobe reads.
	EnvPrefix = "TCPROBE"
)
