// Package metrics provides lightweight, lock-free counters for tracking
// connect attempts and their outcomes during a tcprobe run.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	nerrors "tcprobe/internal/errors"
)

// Collector tracks connect metrics for a tcprobe run.
// A nil Collector is safe to use; all methods become no-ops.
type Collector struct {
	attempts        atomic.Int64
	connected       atomic.Int64
	timedOut        atomic.Int64
	refused         atomic.Int64
	unreachable     atomic.Int64
	invalid         atomic.Int64
	failedOther     atomic.Int64
	spuriousWakeups atomic.Int64
	active          atomic.Int64
	lastLatency     atomic.Int64 // nanoseconds
	maxLatency      atomic.Int64 // nanoseconds

	mu           sync.RWMutex
	startTime    time.Time
	lastError    time.Time
	lastErrorMsg string
}

// New creates a metrics collector with the start time set to now.
func New() *Collector {
	return &Collector{startTime: time.Now()}
}

// ── Attempts ─────────────────────────────────────────────────────────

// AttemptStarted counts one call into the connector.
func (c *Collector) AttemptStarted() {
	if c == nil {
		return
	}
	c.attempts.Add(1)
}

// Attempts returns the number of connect calls made.
func (c *Collector) Attempts() int64 {
	if c == nil {
		return 0
	}
	return c.attempts.Load()
}

// RecordOutcome files a finished attempt under its outcome.  A nil err
// counts as connected.
func (c *Collector) RecordOutcome(err error, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.lastLatency.Store(int64(elapsed))
	for {
		cur := c.maxLatency.Load()
		if int64(elapsed) <= cur || c.maxLatency.CompareAndSwap(cur, int64(elapsed)) {
			break
		}
	}

	if err == nil {
		c.connected.Add(1)
		return
	}
	switch nerrors.KindOf(err) {
	case nerrors.KindTimeout:
		c.timedOut.Add(1)
	case nerrors.KindRefused:
		c.refused.Add(1)
	case nerrors.KindUnreachable:
		c.unreachable.Add(1)
	case nerrors.KindInvalidArgument:
		c.invalid.Add(1)
	default:
		c.failedOther.Add(1)
	}
	c.recordError(err.Error())
}

// Connected returns the number of successful connects.
func (c *Collector) Connected() int64 {
	if c == nil {
		return 0
	}
	return c.connected.Load()
}

// TimedOut returns the number of attempts that hit their deadline.
func (c *Collector) TimedOut() int64 {
	if c == nil {
		return 0
	}
	return c.timedOut.Load()
}

// Failed returns the number of attempts that ended in any error other
// than a timeout.
func (c *Collector) Failed() int64 {
	if c == nil {
		return 0
	}
	return c.refused.Load() + c.unreachable.Load() + c.invalid.Load() + c.failedOther.Load()
}

// ── Wait loop ────────────────────────────────────────────────────────

// SpuriousWakeup records a wait that returned without the socket being
// ready and without the deadline having passed.
func (c *Collector) SpuriousWakeup() {
	if c == nil {
		return
	}
	c.spuriousWakeups.Add(1)
}

// SpuriousWakeups returns the total spurious wake-up count.
func (c *Collector) SpuriousWakeups() int64 {
	if c == nil {
		return 0
	}
	return c.spuriousWakeups.Load()
}

// ── Connections ──────────────────────────────────────────────────────

// ConnectionOpened increments the active connection gauge.
func (c *Collector) ConnectionOpened() {
	if c == nil {
		return
	}
	c.active.Add(1)
}

// ConnectionClosed decrements the active connection gauge.
func (c *Collector) ConnectionClosed() {
	if c == nil {
		return
	}
	c.active.Add(-1)
}

// ActiveConnections returns the number of connections still open.
func (c *Collector) ActiveConnections() int64 {
	if c == nil {
		return 0
	}
	return c.active.Load()
}

// ── Errors ───────────────────────────────────────────────────────────

func (c *Collector) recordError(msg string) {
	c.mu.Lock()
	c.lastError = time.Now()
	c.lastErrorMsg = msg
	c.mu.Unlock()
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Uptime            string `json:"uptime"`
	Attempts          int64  `json:"attempts"`
	Connected         int64  `json:"connected"`
	TimedOut          int64  `json:"timed_out"`
	Refused           int64  `json:"refused"`
	Unreachable       int64  `json:"unreachable"`
	InvalidArgument   int64  `json:"invalid_argument"`
	FailedOther       int64  `json:"failed_other"`
	SpuriousWakeups   int64  `json:"spurious_wakeups"`
	ActiveConnections int64  `json:"active_connections"`
	LastLatency       string `json:"last_latency,omitempty"`
	MaxLatency        string `json:"max_latency,omitempty"`
	LastError         string `json:"last_error,omitempty"`
	LastErrorMessage  string `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:            time.Since(c.startTime).Truncate(time.Millisecond).String(),
		Attempts:          c.attempts.Load(),
		Connected:         c.connected.Load(),
		TimedOut:          c.timedOut.Load(),
		Refused:           c.refused.Load(),
		Unreachable:       c.unreachable.Load(),
		InvalidArgument:   c.invalid.Load(),
		FailedOther:       c.failedOther.Load(),
		SpuriousWakeups:   c.spuriousWakeups.Load(),
		ActiveConnections: c.active.Load(),
	}
	if c.attempts.Load() > 0 {
		s.LastLatency = time.Duration(c.lastLatency.Load()).String()
		s.MaxLatency = time.Duration(c.maxLatency.Load()).String()
	}
	if !c.lastError.IsZero() {
		s.LastError = c.lastError.Format(time.RFC3339)
		s.LastErrorMessage = c.lastErrorMsg
	}
	return s
}

// JSON returns the snapshot as an indented JSON string.
func (c *Collector) JSON() string {
	s := c.Snapshot()
	data, _ := json.MarshalIndent(s, "", "  ")
	return string(data)
}

// CompactJSON returns the snapshot as single-line JSON.
func (c *Collector) CompactJSON() string {
	s := c.Snapshot()
	data, _ := json.Marshal(s)
	return string(data)
}
