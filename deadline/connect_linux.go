//go:build linux

package deadline

import (
	"fmt"
	"net"
	"net/netip"
	"os"
	"strconv"
	"time"

	"golang.org/x/sys/unix"

	nerrors "tcprobe/internal/errors"
)

// PollWaiter waits with poll(2).  A signal delivered to the waiting
// thread surfaces as WaitInterrupted.
type PollWaiter struct{}

// WaitWritable implements Waiter.
func (PollWaiter) WaitWritable(fd int, budget time.Duration) (WaitResult, error) {
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLOUT}}
	n, err := unix.Poll(fds, pollMillis(budget))
	switch {
	case err == unix.EINTR:
		return WaitInterrupted, nil
	case err != nil:
		return WaitInterrupted, os.NewSyscallError("poll", err)
	case n == 0:
		return WaitElapsed, nil
	case fds[0].Revents&(unix.POLLOUT|unix.POLLERR|unix.POLLHUP) != 0:
		return WaitReady, nil
	}
	return WaitInterrupted, nil
}

func (c *Connector) waiter() Waiter {
	if c.Waiter != nil {
		return c.Waiter
	}
	return PollWaiter{}
}

// dial runs one non-blocking connect and waits for it under deadline.
// The descriptor is closed on every error path; on success it is handed
// to the returned *net.TCPConn.
func (c *Connector) dial(req Request, deadline time.Time) (*net.TCPConn, error) {
	addr := req.Addr.String()

	sa, family, err := sockaddr(req.Addr)
	if err != nil {
		return nil, nerrors.Invalid(addr, "%v", err)
	}

	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return nil, nerrors.Wrap("socket", addr, os.NewSyscallError("socket", err))
	}
	owned := true
	defer func() {
		if owned {
			unix.Close(fd) //nolint:errcheck
		}
	}()

	if c.LocalPort > 0 {
		if err := bindLocal(fd, family, c.LocalPort); err != nil {
			return nil, nerrors.Wrap("bind", addr, os.NewSyscallError("bind", err))
		}
	}

	switch err := unix.Connect(fd, sa); err {
	case nil, unix.EISCONN:
	case unix.EINPROGRESS, unix.EALREADY, unix.EINTR:
		// An interrupted non-blocking connect keeps going in the
		// kernel; it is finished by the wait loop like EINPROGRESS.
		w := c.waiter()
		err := c.await(addr, deadline,
			func(budget time.Duration) (WaitResult, error) { return w.WaitWritable(fd, budget) },
			func() (bool, error) { return settle(fd, addr) })
		if err != nil {
			return nil, err
		}
	default:
		return nil, nerrors.Wrap("connect", addr, os.NewSyscallError("connect", err))
	}

	owned = false
	return fileConn(fd, addr)
}

// settle reads the socket's pending error after the wait reported it
// ready.
func settle(fd int, addr string) (bool, error) {
	nerr, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return false, nerrors.Wrap("connect", addr, os.NewSyscallError("getsockopt", err))
	}
	switch errno := unix.Errno(nerr); errno {
	case unix.EINPROGRESS, unix.EALREADY, unix.EINTR:
		return false, nil
	case unix.EISCONN:
		return true, nil
	case 0:
		// Readiness without a pending error is not proof of a
		// connection; the poller can wake spuriously.
		if _, err := unix.Getpeername(fd); err == nil {
			return true, nil
		}
		return false, nil
	default:
		return false, nerrors.Wrap("connect", addr, os.NewSyscallError("connect", errno))
	}
}

// fileConn wraps fd in a *net.TCPConn.  It always consumes fd.
func fileConn(fd int, addr string) (*net.TCPConn, error) {
	f := os.NewFile(uintptr(fd), "tcp:"+addr)
	defer f.Close() // net.FileConn holds its own dup

	nc, err := net.FileConn(f)
	if err != nil {
		return nil, nerrors.Wrap("connect", addr, err)
	}
	tc, ok := nc.(*net.TCPConn)
	if !ok {
		nc.Close()
		return nil, nerrors.Wrap("connect", addr, fmt.Errorf("unexpected connection type %T", nc))
	}
	return tc, nil
}

func sockaddr(ap netip.AddrPort) (unix.Sockaddr, int, error) {
	ip := ap.Addr()
	if ip.Is4() {
		return &unix.SockaddrInet4{Port: int(ap.Port()), Addr: ip.As4()}, unix.AF_INET, nil
	}
	sa := &unix.SockaddrInet6{Port: int(ap.Port()), Addr: ip.As16()}
	if zone := ip.Zone(); zone != "" {
		id, err := zoneIndex(zone)
		if err != nil {
			return nil, 0, err
		}
		sa.ZoneId = id
	}
	return sa, unix.AF_INET6, nil
}

func zoneIndex(zone string) (uint32, error) {
	if n, err := strconv.ParseUint(zone, 10, 32); err == nil {
		return uint32(n), nil
	}
	ifi, err := net.InterfaceByName(zone)
	if err != nil {
		return 0, fmt.Errorf("unknown zone %q: %w", zone, err)
	}
	return uint32(ifi.Index), nil
}

func bindLocal(fd, family, port int) error {
	if family == unix.AF_INET {
		return unix.Bind(fd, &unix.SockaddrInet4{Port: port})
	}
	return unix.Bind(fd, &unix.SockaddrInet6{Port: port})
}
