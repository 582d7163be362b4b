package core

import (
	"context"
	"io"
	"os"

	"tcprobe/internal/capability"
	"tcprobe/internal/metrics"
	"tcprobe/internal/session"
	"tcprobe/internal/transport"
	"tcprobe/util"
)

// ConnectMode dials a remote address and runs a capability on the
// resulting connection: the default client mode.
type ConnectMode struct {
	Dialer     transport.Dialer
	Capability capability.Capability
	Network    string
	Address    string
	Logger     *util.Logger
	Metrics    *metrics.Collector

	// Stdin/Stdout default to os.Stdin/os.Stdout when nil.
	// Override in tests for deterministic I/O.
	Stdin  io.Reader
	Stdout io.Writer
}

func (m *ConnectMode) stdin() io.Reader {
	if m.Stdin != nil {
		return m.Stdin
	}
	return os.Stdin
}

func (m *ConnectMode) stdout() io.Writer {
	if m.Stdout != nil {
		return m.Stdout
	}
	return os.Stdout
}

// Run dials the remote address, creates a session, and hands it to
// the capability.  The transport is closed when Run returns.
func (m *ConnectMode) Run(ctx context.Context) error {
	defer m.Dialer.Close()

	m.Logger.Verbose("connecting to %s (%s)", m.Address, m.Network)

	conn, err := m.Dialer.Dial(ctx, m.Network, m.Address)
	if err != nil {
		// Connector errors already name the operation and address.
		return err
	}

	sess := session.New(conn, m.stdin(), m.stdout(), m.Logger, m.Metrics)
	defer sess.Close()

	m.Logger.Verbose("connected to %s", conn.RemoteAddr())
	return m.Capability.Handle(ctx, sess)
}
