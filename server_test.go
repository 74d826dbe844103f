package ttyline

import (
	"context"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	*Server
	dev    *MockDevice
	sigs   *CountingSignals
	cancel context.CancelFunc
}

// startServer runs a server with a MockDevice on console 0 and cleans it
// up with the test.
func startServer(t *testing.T) *testServer {
	t.Helper()
	sigs := &CountingSignals{}
	s := NewServer(&Config{Signals: sigs})
	dev := NewMockDevice()
	require.NoError(t, s.RegisterDevice(FirstConsoleMinor, dev))

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = s.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-s.Done()
	})
	return &testServer{Server: s, dev: dev, sigs: sigs, cancel: cancel}
}

func ctxWithTimeout(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestCanonicalEchoScenario(t *testing.T) {
	ts := startServer(t)
	ctx := ctxWithTimeout(t)

	_, err := ts.Open(ctx, 1, FirstConsoleMinor, true, false)
	require.NoError(t, err)

	done := make(chan struct{})
	buf := make([]byte, 80)
	var n int
	go func() {
		defer close(done)
		n, err = ts.Read(ctx, 1, FirstConsoleMinor, buf, false)
	}()

	// Give the read a moment to suspend, then type the line.
	time.Sleep(20 * time.Millisecond)
	ts.dev.Feed([]byte("hi\n"))
	ts.Kick()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("read did not complete")
	}
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []byte("hi\n"), buf[:3])
	assert.Equal(t, []byte("hi\n"), ts.dev.Echoed())
}

func TestEraseScenario(t *testing.T) {
	ts := startServer(t)
	ctx := ctxWithTimeout(t)

	ts.dev.Feed([]byte("ab\x7f\n")) // DEL is the default ERASE
	ts.Kick()

	buf := make([]byte, 80)
	var n int
	require.Eventually(t, func() bool {
		var err error
		n, err = ts.Read(ctx, 1, FirstConsoleMinor, buf, true)
		return err == nil
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, []byte("a\n"), buf[:n])
	echoed := ts.dev.Echoed()
	assert.Contains(t, string(echoed), "ab\b \b", "the erased b is wiped from the display")
}

func TestLNextScenario(t *testing.T) {
	ts := startServer(t)
	ctx := ctxWithTimeout(t)

	_, err := ts.Open(ctx, 1, FirstConsoleMinor, true, false)
	require.NoError(t, err)

	ts.dev.Feed([]byte{22, 3, '\n'}) // ^V ^C newline
	ts.Kick()

	buf := make([]byte, 80)
	var n int
	require.Eventually(t, func() bool {
		var err error
		n, err = ts.Read(ctx, 1, FirstConsoleMinor, buf, true)
		return err == nil
	}, 2*time.Second, 5*time.Millisecond)

	assert.Empty(t, ts.sigs.Deliveries(), "LNEXT suppresses the interrupt character")
	assert.Equal(t, []byte{3, '\n'}, buf[:n])
	assert.Contains(t, string(ts.dev.Echoed()), "^C")
}

func TestInterruptSignalScenario(t *testing.T) {
	ts := startServer(t)
	ctx := ctxWithTimeout(t)

	became, err := ts.Open(ctx, 42, FirstConsoleMinor, true, false)
	require.NoError(t, err)
	require.True(t, became)

	ts.dev.Feed([]byte{3}) // ^C
	ts.Kick()

	require.Eventually(t, func() bool {
		return len(ts.sigs.Deliveries()) == 1
	}, 2*time.Second, 5*time.Millisecond)
	d := ts.sigs.Deliveries()[0]
	assert.Equal(t, int32(42), d.PGRP)
	assert.Equal(t, syscall.SIGINT, d.Sig)
}

func TestFlowControlScenario(t *testing.T) {
	ts := startServer(t)
	ctx := ctxWithTimeout(t)

	// Default termios has no IXON; enable it, then stop output with ^S.
	img, err := ts.Tcgetattr(ctx, 1, FirstConsoleMinor)
	require.NoError(t, err)
	img.Iflag |= IXON
	require.NoError(t, ts.Tcsetattr(ctx, 1, FirstConsoleMinor, TCSETS, &img))

	ts.dev.Feed([]byte{19}) // ^S
	ts.Kick()
	time.Sleep(20 * time.Millisecond)

	done := make(chan int, 1)
	go func() {
		n, _ := ts.Write(ctx, 1, FirstConsoleMinor, []byte("hello"), false)
		done <- n
	}()

	select {
	case <-done:
		t.Fatal("write completed while output was inhibited")
	case <-time.After(50 * time.Millisecond):
	}

	ts.dev.Feed([]byte{17}) // ^Q
	ts.Kick()

	select {
	case n := <-done:
		assert.Equal(t, 5, n)
	case <-time.After(3 * time.Second):
		t.Fatal("write did not resume after START")
	}
	assert.Equal(t, []byte("hello"), ts.dev.Output(), "no bytes lost across the stop/start window")
}

func TestNonblockingReadScenario(t *testing.T) {
	ts := startServer(t)
	ctx := ctxWithTimeout(t)

	buf := make([]byte, 80)
	_, err := ts.Read(ctx, 1, FirstConsoleMinor, buf, true)
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeWouldBlock))

	ts.dev.Feed([]byte("line\n"))
	ts.Kick()

	n, err := 0, error(nil)
	require.Eventually(t, func() bool {
		n, err = ts.Read(ctx, 1, FirstConsoleMinor, buf, true)
		return err == nil
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 5, n)
	assert.Equal(t, []byte("line\n"), buf[:5])
}

func TestBusyReaderGetsEIO(t *testing.T) {
	ts := startServer(t)
	ctx := ctxWithTimeout(t)

	go func() {
		buf := make([]byte, 8)
		_, _ = ts.Read(ctx, 1, FirstConsoleMinor, buf, false)
	}()
	time.Sleep(20 * time.Millisecond)

	_, err := ts.Read(ctx, 2, FirstConsoleMinor, make([]byte, 8), false)
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeBusy))
}

func TestReadCancellation(t *testing.T) {
	ts := startServer(t)

	readCtx, cancelRead := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		buf := make([]byte, 8)
		_, err := ts.Read(readCtx, 1, FirstConsoleMinor, buf, false)
		errCh <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancelRead()

	select {
	case err := <-errCh:
		require.Error(t, err)
		assert.True(t, IsCode(err, ErrCodeCancelled))
	case <-time.After(3 * time.Second):
		t.Fatal("cancelled read did not return")
	}
}

func TestTermiosRoundTripThroughServer(t *testing.T) {
	ts := startServer(t)
	ctx := ctxWithTimeout(t)

	img, err := ts.Tcgetattr(ctx, 1, FirstConsoleMinor)
	require.NoError(t, err)
	img.Cc[VMIN] = 9

	require.NoError(t, ts.Tcsetattr(ctx, 1, FirstConsoleMinor, TCSETS, &img))

	got, err := ts.Tcgetattr(ctx, 1, FirstConsoleMinor)
	require.NoError(t, err)
	assert.Equal(t, img, got)
}

func TestVMinVTimeTimeoutScenario(t *testing.T) {
	ts := startServer(t)
	ctx := ctxWithTimeout(t)

	img, err := ts.Tcgetattr(ctx, 1, FirstConsoleMinor)
	require.NoError(t, err)
	img.Lflag &^= ICANON // raw mode
	img.Cc[VMIN] = 0
	img.Cc[VTIME] = 1 // one tenth of a second
	require.NoError(t, ts.Tcsetattr(ctx, 1, FirstConsoleMinor, TCSETS, &img))

	start := time.Now()
	n, err := ts.Read(ctx, 1, FirstConsoleMinor, make([]byte, 8), false)
	require.NoError(t, err)
	assert.Zero(t, n, "the read timer completes an empty read")
	assert.WithinDuration(t, start.Add(100*time.Millisecond), time.Now(), 900*time.Millisecond)
}

func TestHangupScenario(t *testing.T) {
	ts := startServer(t)
	ctx := ctxWithTimeout(t)

	became, err := ts.Open(ctx, 8, FirstConsoleMinor, true, false)
	require.NoError(t, err)
	require.True(t, became)

	img, err := ts.Tcgetattr(ctx, 8, FirstConsoleMinor)
	require.NoError(t, err)
	img.Ospeed = 0 // B0
	require.NoError(t, ts.Tcsetattr(ctx, 8, FirstConsoleMinor, TCSETS, &img))

	// SIGHUP went to the process group.
	require.Eventually(t, func() bool {
		for _, d := range ts.sigs.Deliveries() {
			if d.Sig == syscall.SIGHUP && d.PGRP == 8 {
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)

	// Any read returns EOF immediately.
	n, err := ts.Read(ctx, 8, FirstConsoleMinor, make([]byte, 8), false)
	require.NoError(t, err)
	assert.Zero(t, n)

	// Select reports everything ready.
	ready, err := ts.Select(ctx, 8, FirstConsoleMinor, SelectRead|SelectWrite|SelectError, false)
	require.NoError(t, err)
	assert.Equal(t, SelectRead|SelectWrite|SelectError, ready)
}

func TestSelectNotifyScenario(t *testing.T) {
	ts := startServer(t)
	ctx := ctxWithTimeout(t)

	ready, err := ts.Select(ctx, 5, FirstConsoleMinor, SelectRead, true)
	require.NoError(t, err)
	require.Zero(t, ready)

	ts.dev.Feed([]byte("data\n"))
	ts.Kick()

	require.NoError(t, ts.AwaitNotify(ctx, 5))
	ev, err := ts.Status(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, StatusIOReady, ev.Kind)
	assert.Equal(t, FirstConsoleMinor, ev.Minor)
	assert.Equal(t, SelectRead, ev.Ops)
}

func TestPTYMasterSlaveRoundTrip(t *testing.T) {
	ts := &testServer{Server: NewServer(nil)}
	ptyDev := NewMockDevice()
	require.NoError(t, ts.RegisterDevice(FirstPTYMinor, ptyDev))

	runCtx, cancel := context.WithCancel(context.Background())
	go func() { _ = ts.Run(runCtx) }()
	t.Cleanup(func() {
		cancel()
		<-ts.Done()
	})
	ctx := ctxWithTimeout(t)

	// Raw mode with VMIN=4 on the slave.
	img, err := ts.Tcgetattr(ctx, 1, FirstPTYMinor)
	require.NoError(t, err)
	img.Lflag &^= ICANON | ECHO | IEXTEN
	img.Cc[VMIN] = 4
	img.Cc[VTIME] = 0
	require.NoError(t, ts.Tcsetattr(ctx, 1, FirstPTYMinor, TCSETS, &img))

	// Master writes 4 raw bytes; slave read yields exactly those bytes.
	n, err := ts.Write(ctx, 2, FirstPTYMasterMinor, []byte{0xDE, 0xAD, 0xBE, 0xEF}, false)
	require.NoError(t, err)
	require.Equal(t, 4, n)

	buf := make([]byte, 4)
	n, err = ts.Read(ctx, 1, FirstPTYMinor, buf, false)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, buf)

	// Slave writes; master read drains the processed output.
	_, err = ts.Write(ctx, 1, FirstPTYMinor, []byte("pong"), false)
	require.NoError(t, err)

	out := make([]byte, 16)
	var m int
	require.Eventually(t, func() bool {
		m, err = ts.Read(ctx, 2, FirstPTYMasterMinor, out, true)
		return err == nil && m > 0
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []byte("pong"), out[:m])
}

func TestCloseResetsLine(t *testing.T) {
	ts := startServer(t)
	ctx := ctxWithTimeout(t)

	_, err := ts.Open(ctx, 3, FirstConsoleMinor, true, false)
	require.NoError(t, err)

	img, err := ts.Tcgetattr(ctx, 3, FirstConsoleMinor)
	require.NoError(t, err)
	orig := img
	img.Cc[VMIN] = 13
	require.NoError(t, ts.Tcsetattr(ctx, 3, FirstConsoleMinor, TCSETS, &img))

	require.NoError(t, ts.Close(ctx, 3, FirstConsoleMinor))
	require.Eventually(t, ts.dev.Closed, time.Second, 5*time.Millisecond)

	got, err := ts.Tcgetattr(ctx, 3, FirstConsoleMinor)
	require.NoError(t, err)
	assert.Equal(t, orig, got, "last close restores default attributes")
}

func TestMetricsObserveTraffic(t *testing.T) {
	ts := startServer(t)
	ctx := ctxWithTimeout(t)

	ts.dev.Feed([]byte("m\n"))
	ts.Kick()
	buf := make([]byte, 8)
	require.Eventually(t, func() bool {
		_, err := ts.Read(ctx, 1, FirstConsoleMinor, buf, true)
		return err == nil
	}, 2*time.Second, 5*time.Millisecond)

	snap := ts.Metrics().Snapshot()
	assert.NotZero(t, snap.ReadOps)
	assert.NotZero(t, snap.BytesOut)
	assert.NotZero(t, snap.EchoChars)
}
