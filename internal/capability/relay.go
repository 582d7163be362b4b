package capability

import (
	"context"
	"time"

	"tcprobe/internal/session"
	"tcprobe/util"
)

// Relay copies data bidirectionally between the connection and the
// session's stdin/stdout.
type Relay struct{}

// Handle shuttles bytes between the network connection and the local
// I/O endpoints until one side closes or the context is cancelled.
func (r *Relay) Handle(ctx context.Context, sess *session.Session) error {
	err := util.BidirectionalCopy(ctx, sess.Conn, sess.Stdin, sess.Stdout)
	sess.Logger.Verbose("relay with %s finished after %s", sess.Conn.RemoteAddr(), sess.Age().Round(time.Millisecond))
	return err
}
