// Package deadline opens TCP connections within a fixed time budget.
//
// The budget is turned into an absolute deadline on the monotonic clock
// once per call.  The connector then waits for the socket in a loop that
// recomputes the remaining time on every pass, so a wait that returns
// early (a signal landing on the thread, a spurious poller wake-up, a
// partially completed syscall) only costs a trip around the loop and can
// never stretch or cut short the caller's budget.
//
// Connector states:
//
//	Idle → Connecting → Connected | TimedOut | Failed
//
// Connecting may loop any number of times; each pass strictly shrinks the
// remaining budget.
package deadline

import (
	"fmt"
	"net"
	"net/netip"
	"time"

	nerrors "tcprobe/internal/errors"
	"tcprobe/internal/metrics"
	"tcprobe/util"
)

// ── Request ──────────────────────────────────────────────────────────

// Request is a single validated connect call.
type Request struct {
	Addr    netip.AddrPort
	Timeout time.Duration
}

// ParseRequest validates address ("ip:port", IPv6 as "[ip%zone]:port")
// and timeout.  Host names are rejected: no DNS lookups happen here.
func ParseRequest(address string, timeout time.Duration) (Request, error) {
	if timeout <= 0 {
		return Request{}, nerrors.Invalid(address, "timeout must be positive, got %s", timeout)
	}
	ap, err := netip.ParseAddrPort(address)
	if err != nil {
		return Request{}, nerrors.Invalid(address, "not a numeric ip:port endpoint")
	}
	if ap.Port() == 0 {
		return Request{}, nerrors.Invalid(address, "port 0 is not connectable")
	}
	if !ap.Addr().IsValid() || ap.Addr().IsUnspecified() {
		return Request{}, nerrors.Invalid(address, "unspecified address")
	}
	return Request{
		Addr:    netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port()),
		Timeout: timeout,
	}, nil
}

// ── Outcome ──────────────────────────────────────────────────────────

// Outcome is the terminal state of a connect call.
type Outcome int

const (
	Connected Outcome = iota
	TimedOut
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Connected:
		return "connected"
	case TimedOut:
		return "timed out"
	default:
		return "failed"
	}
}

// OutcomeOf maps the error returned by Connect onto an Outcome.
func OutcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return Connected
	case nerrors.KindOf(err) == nerrors.KindTimeout:
		return TimedOut
	default:
		return Failed
	}
}

// ── Waiting ──────────────────────────────────────────────────────────

// WaitResult says why a Waiter returned.
type WaitResult int

const (
	// WaitReady means the socket reported writability or an error.
	WaitReady WaitResult = iota
	// WaitElapsed means the wait ran for its whole budget.
	WaitElapsed
	// WaitInterrupted means the wait returned early with nothing to
	// report, e.g. EINTR from a signal delivered to the thread.
	WaitInterrupted
)

func (r WaitResult) String() string {
	switch r {
	case WaitReady:
		return "ready"
	case WaitElapsed:
		return "elapsed"
	default:
		return "interrupted"
	}
}

// Waiter blocks until fd becomes writable or budget elapses.
// Implementations may return early with WaitInterrupted at any time.
type Waiter interface {
	WaitWritable(fd int, budget time.Duration) (WaitResult, error)
}

// ── Connector ────────────────────────────────────────────────────────

// Connector opens TCP connections under a deadline.  The zero value is
// ready to use.  A Connector holds no per-call state and may be shared
// by concurrent callers.
type Connector struct {
	// LocalPort binds the source port when non-zero.
	LocalPort int

	// Waiter replaces the poll(2)-based wait.  Tests wrap the default
	// to inject interruptions.  Only the Linux implementation waits on
	// raw descriptors; elsewhere the runtime poller is used.
	Waiter Waiter

	// Now overrides the clock.  It must be monotonic; the default
	// time.Now carries Go's monotonic reading.
	Now func() time.Time

	Logger  *util.Logger
	Metrics *metrics.Collector
}

var defaultConnector Connector

// Connect opens a TCP stream to address within timeout using a zero
// Connector.
func Connect(address string, timeout time.Duration) (*net.TCPConn, error) {
	return defaultConnector.Connect(address, timeout)
}

// Connect opens a TCP stream to address, giving up once timeout has
// elapsed.  On success the caller owns the returned connection; on every
// failure the socket has already been closed.  Errors are
// *errors.ConnectError values with a Kind of Timeout, Refused,
// Unreachable, InvalidArgument or Other.
func (c *Connector) Connect(address string, timeout time.Duration) (*net.TCPConn, error) {
	start := c.now()
	c.Metrics.AttemptStarted()

	req, err := ParseRequest(address, timeout)
	if err != nil {
		c.Metrics.RecordOutcome(err, 0)
		return nil, err
	}

	c.Logger.Debug("connect %s: budget %s", req.Addr, req.Timeout)

	conn, err := c.dial(req, start.Add(req.Timeout))
	elapsed := c.now().Sub(start)
	c.Metrics.RecordOutcome(err, elapsed)
	if err != nil {
		c.Logger.Verbose("connect %s: %s after %s", req.Addr, OutcomeOf(err), elapsed.Round(time.Millisecond))
		return nil, err
	}
	c.Logger.Verbose("connected to %s in %s", req.Addr, elapsed.Round(time.Millisecond))
	return conn, nil
}

func (c *Connector) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// ── Timing loop ──────────────────────────────────────────────────────

// waitFunc waits at most budget for the socket.
type waitFunc func(budget time.Duration) (WaitResult, error)

// settleFunc inspects the socket after a ready wait.  done reports an
// established connection; false with a nil error means the readiness was
// spurious and the loop should wait again.
type settleFunc func() (done bool, err error)

// await drives the Connecting state.  The remaining budget is derived
// from deadline on every pass, never carried over from the previous
// wait, so any number of early returns still ends at the deadline.
func (c *Connector) await(addr string, deadline time.Time, wait waitFunc, settle settleFunc) error {
	for {
		remaining := deadline.Sub(c.now())
		if remaining <= 0 {
			return nerrors.Timeout(addr)
		}

		res, err := wait(remaining)
		if err != nil {
			return nerrors.Wrap("wait", addr, err)
		}

		switch res {
		case WaitElapsed:
			continue
		case WaitInterrupted:
			c.spurious(addr, "wait interrupted", deadline)
			continue
		}

		done, err := settle()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		c.spurious(addr, "ready but not connected", deadline)
	}
}

func (c *Connector) spurious(addr, why string, deadline time.Time) {
	c.Metrics.SpuriousWakeup()
	if c.Logger.Level() >= util.LogDebug {
		c.Logger.Debug("connect %s: %s, %s left", addr, why,
			deadline.Sub(c.now()).Round(time.Millisecond))
	}
}

// pollMillis converts a budget into a poll(2) timeout, rounding up so a
// sub-millisecond remainder still sleeps instead of spinning.
func pollMillis(budget time.Duration) int {
	if budget <= 0 {
		return 0
	}
	ms := (budget + time.Millisecond - 1) / time.Millisecond
	if ms > maxPollMillis {
		return maxPollMillis
	}
	return int(ms)
}

const maxPollMillis = 1<<31 - 1

func (r Request) String() string {
	return fmt.Sprintf("%s within %s", r.Addr, r.Timeout)
}
