package transport

import (
	"context"
	"net"
	"net/netip"
	"time"

	"tcprobe/deadline"
	nerrors "tcprobe/internal/errors"
)

// TCPDialer establishes TCP connections through a deadline.Connector.
//
// The time budget for one Dial is the smaller of Timeout and the time left
// before ctx's deadline, fixed when Dial is entered.  Cancelling ctx after
// that point does not abort the connect; the budget does.
type TCPDialer struct {
	Connector *deadline.Connector // nil uses a zero Connector
	Timeout   time.Duration
}

// Dial connects to address ("ip:port") over TCP.
func (d *TCPDialer) Dial(ctx context.Context, network, address string) (net.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkNetwork(network, address); err != nil {
		return nil, err
	}

	budget := d.Timeout
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); budget <= 0 || left < budget {
			budget = left
		}
		if budget <= 0 {
			return nil, nerrors.Timeout(address)
		}
	}

	c := d.Connector
	if c == nil {
		c = &deadline.Connector{}
	}
	conn, err := c.Connect(address, budget)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Close is a no-op for stateless TCP dialers.
func (d *TCPDialer) Close() error { return nil }

func checkNetwork(network, address string) error {
	switch network {
	case "tcp":
		return nil
	case "tcp4", "tcp6":
	default:
		return nerrors.Invalid(address, "unsupported network %q", network)
	}

	ap, err := netip.ParseAddrPort(address)
	if err != nil {
		// Left to the connector, which reports the address itself.
		return nil
	}
	is4 := ap.Addr().Unmap().Is4()
	if (network == "tcp4") != is4 {
		return nerrors.Invalid(address, "address family does not match %s", network)
	}
	return nil
}
