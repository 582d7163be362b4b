package util

import (
	"context"
	"errors"
	"io"
	"net"
)

// DefaultBufSize is the standard buffer size for network I/O (32 KiB).
const DefaultBufSize = 32 * 1024

// BidirectionalCopy shuffles data between a network connection and an
// arbitrary reader/writer pair (typically stdin/stdout) until one side
// reaches EOF or the context is cancelled.
func BidirectionalCopy(ctx context.Context, conn net.Conn, r io.Reader, w io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	drained := make(chan struct{})

	// network → writer
	go func() {
		defer close(drained)
		buf := GetBuf()
		defer PutBuf(buf)
		_, err := io.CopyBuffer(w, conn, *buf)
		errCh <- err
		cancel()
	}()

	// reader → network
	go func() {
		buf := GetBuf()
		defer PutBuf(buf)
		_, err := io.CopyBuffer(conn, r, *buf)
		// Half-close so the remote sees EOF; the read side stays open
		// to drain whatever the peer still sends.
		if tc, ok := conn.(*net.TCPConn); ok {
			tc.CloseWrite() //nolint:errcheck
		}
		errCh <- err
		// A clean EOF from the reader must not tear the connection
		// down before the remote finishes sending.
		if err != nil {
			cancel()
		}
	}()

	<-ctx.Done()
	conn.Close() // unblock any pending reads/writes
	<-drained
	// The reader side may still be parked in r.Read (a terminal stdin
	// never unblocks on conn.Close); its error is collected if ready.

	for {
		select {
		case err := <-errCh:
			if err != nil && !isHarmless(err) {
				return err
			}
		default:
			return nil
		}
	}
}

// isHarmless returns true for errors that are expected during shutdown.
func isHarmless(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	// net.OpError wrapping "use of closed network connection"
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return errors.Is(opErr.Err, net.ErrClosed)
	}
	return false
}
