//go:build !linux

package deadline

import (
	"fmt"
	"net"
	"time"

	nerrors "tcprobe/internal/errors"
)

// dial hands the connect to the runtime's network poller, which already
// waits against an absolute deadline.  Connector.Waiter is not consulted
// on these platforms.
func (c *Connector) dial(req Request, deadline time.Time) (*net.TCPConn, error) {
	addr := req.Addr.String()

	d := net.Dialer{Deadline: deadline}
	if c.LocalPort > 0 {
		d.LocalAddr = &net.TCPAddr{Port: c.LocalPort}
	}

	nc, err := d.Dial("tcp", addr)
	if err != nil {
		if nerrors.Classify(err) == nerrors.KindTimeout {
			return nil, nerrors.Timeout(addr)
		}
		return nil, nerrors.Wrap("connect", addr, err)
	}
	tc, ok := nc.(*net.TCPConn)
	if !ok {
		nc.Close()
		return nil, nerrors.Wrap("connect", addr, fmt.Errorf("unexpected connection type %T", nc))
	}
	return tc, nil
}
