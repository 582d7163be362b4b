// Package session represents a single connection lifecycle, binding an
// established stream with I/O endpoints and shared context.
//
// Sessions decouple capabilities from concrete I/O sources: a capability
// doesn't need to know whether it's reading from os.Stdin or a test
// buffer, it just uses the session's Reader/Writer.
package session

import (
	"io"
	"net"
	"sync"
	"time"

	"tcprobe/internal/metrics"
	"tcprobe/util"
)

// Session encapsulates the runtime context for a single connection.
// It is counted as an active connection from New until Close.
type Session struct {
	Conn    net.Conn
	Stdin   io.Reader
	Stdout  io.Writer
	Logger  *util.Logger
	Metrics *metrics.Collector

	opened    time.Time
	closeOnce sync.Once
	closeErr  error
}

// New creates a Session bound to the given connection and I/O pair.
func New(conn net.Conn, stdin io.Reader, stdout io.Writer, logger *util.Logger, m *metrics.Collector) *Session {
	m.ConnectionOpened()
	return &Session{
		Conn:    conn,
		Stdin:   stdin,
		Stdout:  stdout,
		Logger:  logger,
		Metrics: m,
		opened:  time.Now(),
	}
}

// Age reports how long the session has been open.
func (s *Session) Age() time.Duration {
	return time.Since(s.opened)
}

// Close closes the connection once and updates the active count.
// Later calls return the first result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.Conn.Close()
		s.Metrics.ConnectionClosed()
		s.Logger.Debug("session %s closed after %s", s.Conn.RemoteAddr(), s.Age().Round(time.Millisecond))
	})
	return s.closeErr
}
