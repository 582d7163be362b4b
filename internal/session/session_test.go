package session

import (
	"net"
	"testing"

	"tcprobe/internal/metrics"
	"tcprobe/util"
)

func TestSession_CloseOnce(t *testing.T) {
	a, b := net.Pipe()
	defer b.Close()

	m := metrics.New()
	sess := New(a, nil, nil, util.NewLogger(0), m)
	if got := m.ActiveConnections(); got != 1 {
		t.Fatalf("active = %d, want 1", got)
	}

	if err := sess.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := sess.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if got := m.ActiveConnections(); got != 0 {
		t.Errorf("active = %d after close, want 0", got)
	}
}

func TestSession_NilCollaborators(t *testing.T) {
	a, b := net.Pipe()
	defer b.Close()

	sess := New(a, nil, nil, nil, nil)
	if sess.Age() < 0 {
		t.Error("negative age")
	}
	if err := sess.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
