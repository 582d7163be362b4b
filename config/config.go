// Package config defines the runtime configuration for tcprobe and provides
// helpers for parsing port ranges and timeouts.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	nerrors "tcprobe/internal/errors"
	"tcprobe/util"
)

// Config holds every tuneable for a single tcprobe run.
type Config struct {
	// ── Connection ───────────────────────────────────────────────────
	Host      string
	Port      int           // primary destination port
	Ports     []PortRange   // all destination port specs (scanning)
	LocalPort int           // -p: local source port
	Timeout   time.Duration // 0 selects the mode default

	// ── Mode ─────────────────────────────────────────────────────────
	ZeroIO bool // -z: probe only, no data exchange
	DryRun bool

	// ── Output ───────────────────────────────────────────────────────
	Verbose       int
	Stats         bool
	LogFormat     string // "console" or "json"
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
	ConfigFile    string
}

// Default returns a Config with every default filled in.
func Default() *Config {
	return &Config{
		LogFormat:     DefaultLogFormat,
		LogMaxSizeMB:  DefaultLogMaxSizeMB,
		LogMaxBackups: DefaultLogMaxBackups,
	}
}

// ── Port helpers ─────────────────────────────────────────────────────

// PortRange is an inclusive start–end pair.
type PortRange struct {
	Start int
	End   int
}

// Expand returns every port in the range.
func (pr PortRange) Expand() []int {
	out := make([]int, 0, pr.End-pr.Start+1)
	for p := pr.Start; p <= pr.End; p++ {
		out = append(out, p)
	}
	return out
}

func (pr PortRange) String() string {
	if pr.Start == pr.End {
		return strconv.Itoa(pr.Start)
	}
	return fmt.Sprintf("%d-%d", pr.Start, pr.End)
}

// AllPorts flattens every PortRange into a single slice.  With no ranges
// it falls back to Port.
func (c *Config) AllPorts() []int {
	var out []int
	for _, pr := range c.Ports {
		out = append(out, pr.Expand()...)
	}
	if len(out) == 0 && c.Port > 0 {
		out = []int{c.Port}
	}
	return out
}

// Scanning reports whether the run probes ports instead of relaying data.
func (c *Config) Scanning() bool {
	return c.ZeroIO || len(c.AllPorts()) > 1
}

// ParsePortSpec accepts "80" or "80-90".
func ParsePortSpec(spec string) (PortRange, error) {
	if strings.Contains(spec, "-") {
		parts := strings.SplitN(spec, "-", 2)
		start, err := strconv.Atoi(parts[0])
		if err != nil {
			return PortRange{}, fmt.Errorf("invalid port range start %q", parts[0])
		}
		end, err := strconv.Atoi(parts[1])
		if err != nil {
			return PortRange{}, fmt.Errorf("invalid port range end %q", parts[1])
		}
		if start < 1 || end > 65535 || start > end {
			return PortRange{}, fmt.Errorf("invalid port range %d-%d", start, end)
		}
		return PortRange{Start: start, End: end}, nil
	}

	port, err := strconv.Atoi(spec)
	if err != nil {
		return PortRange{}, fmt.Errorf("invalid port %q", spec)
	}
	if port < 1 || port > 65535 {
		return PortRange{}, fmt.Errorf("port %d out of range 1-65535", port)
	}
	return PortRange{Start: port, End: port}, nil
}

// ParsePorts parses a list of port specs, keeping their order.
func ParsePorts(specs []string) ([]PortRange, error) {
	out := make([]PortRange, 0, len(specs))
	for _, s := range specs {
		pr, err := ParsePortSpec(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("port %q: %w", s, err)
		}
		out = append(out, pr)
	}
	return out, nil
}

// ParseTimeout accepts a Go duration ("1.5s", "250ms") or a bare number of
// milliseconds ("1000").
func ParseTimeout(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: want a duration like 1s or milliseconds", s)
	}
	return d, nil
}

// EffectiveTimeout returns Timeout, or the default for the selected mode.
func (c *Config) EffectiveTimeout() time.Duration {
	switch {
	case c.Timeout > 0:
		return c.Timeout
	case c.Scanning():
		return DefaultScanTimeout
	default:
		return DefaultConnTimeout
	}
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Host == "" {
		return &nerrors.ConfigError{
			Field:   "host",
			Message: "destination host is required",
			Hint:    "usage: tcprobe [options] <ip> <port> [ports...]",
		}
	}
	if !util.IsNumericHost(c.Host) {
		return &nerrors.ConfigError{
			Field:   "host",
			Value:   c.Host,
			Message: "not an IP address",
			Hint:    "host names are not resolved; pass a numeric IPv4 or IPv6 address",
		}
	}
	ports := c.AllPorts()
	if len(ports) == 0 {
		return &nerrors.ConfigError{
			Field:   "port",
			Message: "destination port is required",
		}
	}
	if c.Timeout < 0 {
		return &nerrors.ConfigError{
			Field:   "timeout",
			Value:   c.Timeout,
			Message: "must not be negative",
			Hint:    "use -w 0 (or leave it unset) for the default",
		}
	}
	if c.LocalPort < 0 || c.LocalPort > 65535 {
		return &nerrors.ConfigError{
			Field:   "port",
			Value:   c.LocalPort,
			Message: "local port out of range 0-65535",
		}
	}
	if c.LocalPort > 0 && len(ports) > 1 {
		return &nerrors.ConfigError{
			Field:   "port",
			Value:   c.LocalPort,
			Message: "a fixed source port cannot be shared by concurrent probes",
			Hint:    "drop -p or probe a single destination port",
		}
	}
	switch c.LogFormat {
	case "", "console", "json":
	default:
		return &nerrors.ConfigError{
			Field:   "log-format",
			Value:   c.LogFormat,
			Message: "unknown log format",
			Hint:    `use "console" or "json"`,
		}
	}
	return nil
}
