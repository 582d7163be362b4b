//go:build linux

package deadline

import (
	"io"
	"net"
	"os"
	"runtime"
	"runtime/pprof"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	nerrors "tcprobe/internal/errors"
	"tcprobe/internal/metrics"
	"tcprobe/util"
)

// tolerance bounds how far a timed-out connect may land from its budget.
const tolerance = 250 * time.Millisecond

// blackhole returns a loopback address whose SYNs are silently dropped:
// a listener with a zero backlog whose accept queue is full and never
// drained.  It skips the test if the kernel does not behave that way.
func blackhole(t *testing.T) string {
	t.Helper()

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	require.NoError(t, err)
	t.Cleanup(func() { unix.Close(fd) }) //nolint:errcheck

	require.NoError(t, unix.Bind(fd, &unix.SockaddrInet4{Addr: [4]byte{127, 0, 0, 1}}))
	require.NoError(t, unix.Listen(fd, 0))
	sa, err := unix.Getsockname(fd)
	require.NoError(t, err)
	addr := util.FormatAddr("127.0.0.1", sa.(*unix.SockaddrInet4).Port)

	for i := 0; i < 8; i++ {
		conn, err := net.DialTimeout("tcp", addr, 200*time.Millisecond)
		if err == nil {
			t.Cleanup(func() { conn.Close() })
			continue
		}
		if nerrors.Classify(err) == nerrors.KindTimeout {
			return addr
		}
		t.Skipf("cannot build a blackhole endpoint: %v", err)
	}
	t.Skip("accept queue never filled")
	return ""
}

func requireTimedOutNear(t *testing.T, err error, elapsed, budget time.Duration) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, TimedOut, OutcomeOf(err), "unexpected failure: %v", err)
	assert.GreaterOrEqual(t, elapsed, budget-tolerance, "returned too early")
	assert.LessOrEqual(t, elapsed, budget+tolerance, "returned too late")
}

// interruptingWaiter wraps PollWaiter and cuts every wait short after
// period, reporting it as interrupted.
type interruptingWaiter struct {
	period time.Duration
	calls  atomic.Int64
}

func (w *interruptingWaiter) WaitWritable(fd int, budget time.Duration) (WaitResult, error) {
	w.calls.Add(1)
	if budget <= w.period {
		return PollWaiter{}.WaitWritable(fd, budget)
	}
	res, err := PollWaiter{}.WaitWritable(fd, w.period)
	if err == nil && res == WaitElapsed {
		return WaitInterrupted, nil
	}
	return res, err
}

func TestConnect_TimesOut(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test")
	}
	addr := blackhole(t)

	start := time.Now()
	conn, err := Connect(addr, time.Second)
	elapsed := time.Since(start)

	assert.Nil(t, conn)
	requireTimedOutNear(t, err, elapsed, time.Second)
	assert.ErrorIs(t, err, nerrors.ErrTimeout)
	assert.True(t, os.IsTimeout(err))
}

func TestConnect_InterruptedWaitsKeepDeadline(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test")
	}
	addr := blackhole(t)
	const budget = time.Second

	for _, period := range []time.Duration{500 * time.Millisecond, 50 * time.Millisecond, time.Millisecond} {
		t.Run(period.String(), func(t *testing.T) {
			w := &interruptingWaiter{period: period}
			m := metrics.New()
			c := &Connector{Waiter: w, Metrics: m}

			start := time.Now()
			conn, err := c.Connect(addr, budget)
			elapsed := time.Since(start)

			assert.Nil(t, conn)
			requireTimedOutNear(t, err, elapsed, budget)
			assert.Greater(t, m.SpuriousWakeups(), int64(0))
			assert.Greater(t, w.calls.Load(), int64(1))
		})
	}
}

// TestConnect_SignalStorm aims SIGURG at the thread blocked in poll(2).
// The runtime already handles SIGURG, so delivery is harmless apart from
// the EINTR it causes.
func TestConnect_SignalStorm(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test")
	}
	addr := blackhole(t)
	const budget = time.Second

	m := metrics.New()
	c := &Connector{Metrics: m}

	tidc := make(chan int, 1)
	type result struct {
		err     error
		elapsed time.Duration
	}
	done := make(chan result, 1)
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		tidc <- unix.Gettid()
		start := time.Now()
		_, err := c.Connect(addr, budget)
		done <- result{err, time.Since(start)}
	}()

	tid := <-tidc
	pid := unix.Getpid()
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	var res result
loop:
	for {
		select {
		case res = <-done:
			break loop
		case <-ticker.C:
			unix.Tgkill(pid, tid, unix.SIGURG) //nolint:errcheck
		}
	}

	requireTimedOutNear(t, res.err, res.elapsed, budget)
	t.Logf("spurious wake-ups: %d", m.SpuriousWakeups())
}

// TestConnect_UnderCPUProfile keeps SIGPROF firing while a connect waits.
func TestConnect_UnderCPUProfile(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test")
	}
	addr := blackhole(t)
	const budget = time.Second

	if err := pprof.StartCPUProfile(io.Discard); err != nil {
		t.Skipf("cpu profiling unavailable: %v", err)
	}
	defer pprof.StopCPUProfile()

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
		}
	}()

	start := time.Now()
	_, err := Connect(addr, budget)
	elapsed := time.Since(start)
	close(stop)
	wg.Wait()

	requireTimedOutNear(t, err, elapsed, budget)
}

func openFDs(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir("/proc/self/fd")
	if err != nil {
		t.Skipf("cannot list descriptors: %v", err)
	}
	return len(entries)
}

func TestConnect_NoDescriptorLeak(t *testing.T) {
	addr := blackhole(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	closed, err := util.FindFreePort()
	require.NoError(t, err)

	before := openFDs(t)

	for i := 0; i < 5; i++ {
		_, err := Connect(util.FormatAddr("127.0.0.1", closed), time.Second)
		assert.ErrorIs(t, err, nerrors.ErrRefused)

		_, err = Connect(addr, 20*time.Millisecond)
		assert.True(t, nerrors.IsTimeout(err), "got %v", err)

		_, err = Connect("127.0.0.1:"+strconv.Itoa(closed), 0)
		assert.ErrorIs(t, err, nerrors.ErrInvalidArgument)

		conn, err := Connect(ln.Addr().String(), time.Second)
		require.NoError(t, err)
		conn.Close()
		peer, err := ln.Accept()
		require.NoError(t, err)
		peer.Close()
	}

	assert.Equal(t, before, openFDs(t))
}

func TestConnect_LocalPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			conn.Close()
		}
	}()

	port, err := util.FindFreePort()
	require.NoError(t, err)

	c := &Connector{LocalPort: port}
	conn, err := c.Connect(ln.Addr().String(), time.Second)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, port, conn.LocalAddr().(*net.TCPAddr).Port)
}

func TestPollWaiter(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		defer ln.Close()

		conn, err := net.Dial("tcp", ln.Addr().String())
		require.NoError(t, err)
		defer conn.Close()

		raw, err := conn.(*net.TCPConn).SyscallConn()
		require.NoError(t, err)

		var res WaitResult
		var werr error
		require.NoError(t, raw.Control(func(fd uintptr) {
			res, werr = PollWaiter{}.WaitWritable(int(fd), time.Second)
		}))
		require.NoError(t, werr)
		assert.Equal(t, WaitReady, res)
	})

	t.Run("elapsed", func(t *testing.T) {
		var p [2]int
		require.NoError(t, unix.Pipe2(p[:], unix.O_CLOEXEC))
		defer unix.Close(p[0]) //nolint:errcheck
		defer unix.Close(p[1]) //nolint:errcheck

		start := time.Now()
		res, err := PollWaiter{}.WaitWritable(p[0], 20*time.Millisecond)
		require.NoError(t, err)
		assert.Equal(t, WaitElapsed, res)
		assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
	})

	t.Run("bad descriptor", func(t *testing.T) {
		res, err := PollWaiter{}.WaitWritable(-1, 10*time.Millisecond)
		// poll(2) ignores negative descriptors, so this simply times out.
		require.NoError(t, err)
		assert.Equal(t, WaitElapsed, res)
	})
}
