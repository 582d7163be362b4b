// Package errors provides the error taxonomy for tcprobe.
//
// Every connect failure is reported as a *ConnectError carrying a Kind,
// so callers can branch on "timed out" versus "refused" versus
// "unreachable" without string matching.
package errors

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"
)

// ── Sentinel errors ──────────────────────────────────────────────────

var (
	ErrTimeout         = errors.New("operation timed out")
	ErrRefused         = errors.New("connection refused")
	ErrUnreachable     = errors.New("network unreachable")
	ErrInvalidArgument = errors.New("invalid argument")
)

// ── Kind ─────────────────────────────────────────────────────────────

// Kind classifies a connect failure.
type Kind int

const (
	KindOther Kind = iota
	KindTimeout
	KindRefused
	KindUnreachable
	KindInvalidArgument
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindRefused:
		return "refused"
	case KindUnreachable:
		return "unreachable"
	case KindInvalidArgument:
		return "invalid argument"
	default:
		return "other"
	}
}

// sentinel returns the sentinel error matched by errors.Is for k, or nil
// for KindOther.
func (k Kind) sentinel() error {
	switch k {
	case KindTimeout:
		return ErrTimeout
	case KindRefused:
		return ErrRefused
	case KindUnreachable:
		return ErrUnreachable
	case KindInvalidArgument:
		return ErrInvalidArgument
	}
	return nil
}

// ── Structured error types ───────────────────────────────────────────

// ConnectError represents a failed connection attempt.
type ConnectError struct {
	Op   string // "connect", "socket", "bind", "wait"
	Addr string // target address as given by the caller
	Kind Kind
	Err  error // underlying error
}

func (e *ConnectError) Error() string {
	if e.Addr == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// Is matches the sentinel belonging to the error's Kind, so
// errors.Is(err, ErrRefused) works regardless of the wrapped errno.
func (e *ConnectError) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// Timeout implements net.Error.
func (e *ConnectError) Timeout() bool { return e.Kind == KindTimeout }

// Temporary implements net.Error.  Nothing is retried internally, so
// no connect failure is reported as temporary.
func (e *ConnectError) Temporary() bool { return false }

// ConfigError represents an invalid configuration value.
type ConfigError struct {
	Field   string      // config field name
	Value   interface{} // the invalid value (nil if missing)
	Message string      // human-readable explanation
	Hint    string      // suggestion for the user (optional)
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config: --%s", e.Field)
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	msg += ": " + e.Message
	if e.Hint != "" {
		msg += "\n  hint: " + e.Hint
	}
	return msg
}

// Is lets configuration problems match ErrInvalidArgument.
func (e *ConfigError) Is(target error) bool { return target == ErrInvalidArgument }

// ── Constructors ─────────────────────────────────────────────────────

// Wrap creates a ConnectError, classifying the underlying error.
func Wrap(op, addr string, err error) *ConnectError {
	return &ConnectError{Op: op, Addr: addr, Kind: Classify(err), Err: err}
}

// Timeout returns the error reported when the deadline passes before the
// connection completes.
func Timeout(addr string) *ConnectError {
	return &ConnectError{Op: "connect", Addr: addr, Kind: KindTimeout, Err: ErrTimeout}
}

// Invalid returns an InvalidArgument error for a bad address or budget.
func Invalid(addr, format string, args ...interface{}) *ConnectError {
	return &ConnectError{
		Op:   "connect",
		Addr: addr,
		Kind: KindInvalidArgument,
		Err:  fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...)),
	}
}

// ── Classification helpers ───────────────────────────────────────────

// Classify maps an OS or runtime error onto a Kind.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindOther
	case errors.Is(err, syscall.ECONNREFUSED):
		return KindRefused
	case errors.Is(err, syscall.ENETUNREACH),
		errors.Is(err, syscall.EHOSTUNREACH),
		errors.Is(err, syscall.ENETDOWN),
		errors.Is(err, syscall.EHOSTDOWN):
		return KindUnreachable
	case errors.Is(err, syscall.ETIMEDOUT),
		errors.Is(err, os.ErrDeadlineExceeded),
		errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, syscall.EINVAL),
		errors.Is(err, syscall.EAFNOSUPPORT):
		return KindInvalidArgument
	}
	return KindOther
}

// KindOf reports the Kind of err.  Errors that are not ConnectErrors are
// classified from their chain.
func KindOf(err error) Kind {
	var ce *ConnectError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return Classify(err)
}

// IsTimeout reports whether err is a deadline expiry.
func IsTimeout(err error) bool {
	return err != nil && KindOf(err) == KindTimeout
}

// ── Re-exports for convenience ───────────────────────────────────────
//
// These allow callers to use tcprobe/internal/errors as a drop-in
// replacement for the standard library in common operations.

// As is [errors.As].
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Is is [errors.Is].
func Is(err, target error) bool { return errors.Is(err, target) }

// New is [errors.New].
func New(text string) error { return errors.New(text) }

// Unwrap is [errors.Unwrap].
func Unwrap(err error) error { return errors.Unwrap(err) }

// Join is [errors.Join].
func Join(errs ...error) error { return errors.Join(errs...) }
