package util

import (
	"fmt"
	"net"
	"net/netip"
	"strconv"
)

// ParseEndpoint builds a numeric endpoint from host and port.  Host must
// be an IP literal (optionally with an IPv6 zone); names are rejected
// because tcprobe does not resolve DNS.
func ParseEndpoint(host string, port int) (netip.AddrPort, error) {
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("cannot parse %q as an IP address (DNS resolution is not supported)", host)
	}
	if port < 1 || port > 65535 {
		return netip.AddrPort{}, fmt.Errorf("port %d out of range 1-65535", port)
	}
	return netip.AddrPortFrom(addr.Unmap(), uint16(port)), nil
}

// IsNumericHost reports whether host is an IP literal.
func IsNumericHost(host string) bool {
	_, err := netip.ParseAddr(host)
	return err == nil
}

// FormatAddr returns "host:port".
func FormatAddr(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// FindFreePort returns an available TCP port on 127.0.0.1.  Once the
// probe listener is closed nothing listens there, which also makes it a
// convenient refused-connection target in tests.
func FindFreePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("finding free port: %w", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
