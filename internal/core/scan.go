package core

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"tcprobe/config"
	"tcprobe/deadline"
	nerrors "tcprobe/internal/errors"
	"tcprobe/internal/transport"
	"tcprobe/util"
)

// DialFunc establishes a network connection.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// ScanResult records how a single probe ended.
type ScanResult struct {
	Port    int
	Outcome deadline.Outcome
	Kind    nerrors.Kind // KindOther when Outcome is Connected
	Elapsed time.Duration
	Err     error
}

// Open reports whether the port accepted the connection.
func (r ScanResult) Open() bool { return r.Outcome == deadline.Connected }

// State is the one-word label printed for the port.
func (r ScanResult) State() string {
	switch {
	case r.Outcome == deadline.Connected:
		return "open"
	case r.Outcome == deadline.TimedOut:
		return "filtered"
	case r.Kind == nerrors.KindRefused:
		return "closed"
	case r.Kind == nerrors.KindUnreachable:
		return "unreachable"
	default:
		return "error"
	}
}

// ScanMode probes a set of TCP ports on a target host and reports
// which are open.
type ScanMode struct {
	Dialer  transport.Dialer
	Host    string
	Ports   []int
	Timeout time.Duration // per-port budget, informational; the Dialer enforces it
	Logger  *util.Logger
	Verbose int

	// Results holds the last run's results in port order.
	Results []ScanResult
}

// Run scans all configured ports and logs the results.  It returns an
// error when no port is open.  The underlying transport is closed when
// Run returns.
func (m *ScanMode) Run(ctx context.Context) error {
	defer m.Dialer.Close()

	if len(m.Ports) == 0 {
		return fmt.Errorf("no ports specified for scanning")
	}

	m.Logger.Verbose("scanning %s - %d port(s), %s per port", m.Host, len(m.Ports), m.Timeout)

	m.Results = ScanPorts(ctx, m.Host, m.Ports, m.Dialer.Dial)

	open := 0
	for _, r := range m.Results {
		if r.Open() {
			open++
			m.Logger.Info("%s %d/tcp open (%s)", m.Host, r.Port, r.Elapsed.Round(time.Millisecond))
		} else if m.Verbose >= 2 {
			m.Logger.Verbose("%s %d/tcp %s after %s - %v", m.Host, r.Port, r.State(),
				r.Elapsed.Round(time.Millisecond), r.Err)
		}
	}

	if open == 0 {
		return fmt.Errorf("no open ports found on %s", m.Host)
	}
	return nil
}

// ScanPorts probes every port concurrently and returns results in the
// same order as the input slice.  Each probe is an independent connect.
func ScanPorts(ctx context.Context, host string, ports []int, dial DialFunc) []ScanResult {
	results := make([]ScanResult, len(ports))
	sem := make(chan struct{}, config.DefaultMaxConcurrentScans)
	var wg sync.WaitGroup

	for i, port := range ports {
		wg.Add(1)
		go func(idx, p int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			addr := util.FormatAddr(host, p)
			start := time.Now()
			conn, err := dial(ctx, "tcp", addr)
			res := ScanResult{
				Port:    p,
				Outcome: deadline.OutcomeOf(err),
				Elapsed: time.Since(start),
				Err:     err,
			}
			if err != nil {
				res.Kind = nerrors.KindOf(err)
			} else {
				conn.Close()
			}
			results[idx] = res
		}(i, port)
	}

	wg.Wait()
	return results
}
