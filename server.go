// Package ttyline provides a device-independent terminal line discipline:
// a single-threaded TTY server that cooks raw device input into lines (or
// passes it through raw), echoes, interprets control characters, enforces
// flow control, and arbitrates between blocking readers/writers and
// asynchronous device events.
package ttyline

import (
	"context"
	"fmt"
	"sync"
	"syscall"

	"github.com/behrlich/ttyline/internal/dispatch"
	"github.com/behrlich/ttyline/internal/interfaces"
	"github.com/behrlich/ttyline/internal/line"
	"github.com/behrlich/ttyline/internal/logging"
	"github.com/behrlich/ttyline/internal/port"
	"github.com/behrlich/ttyline/internal/timer"
	"github.com/behrlich/ttyline/internal/wire"
)

// Device is the v-table a back-end registers for one line; see the
// interfaces package for the contract each method must honor.
type Device = interfaces.Device

// MasterEndpoint is the master side of a pty pair.
type MasterEndpoint = interfaces.MasterEndpoint

// SignalSender delivers signals to a process group on the line's behalf.
type SignalSender = interfaces.SignalSender

// Termios and Winsize are the attribute blocks TCGETS/TCSETS* and
// TIOCGWINSZ/TIOCSWINSZ read and write.
type Termios = wire.Termios

// Winsize is the window-size block.
type Winsize = wire.Winsize

// Select readiness bits, as reported by Select and Status.
const (
	SelectRead  = line.SelectRead
	SelectWrite = line.SelectWrite
	SelectError = line.SelectError
)

// Cancel mode bits.
const (
	CancelRead  = line.CancelRead
	CancelWrite = line.CancelWrite
)

// Config holds the injectable collaborators of a Server. The line table
// itself is sized at compile time (NCONS/NSERIAL/NPTY in the constants
// package); Config carries what varies per deployment.
type Config struct {
	// Logger receives dispatcher lifecycle and per-line transition logs.
	// Defaults to the logging package's default logger.
	Logger *logging.Logger

	// Observer receives operational metrics callbacks. Defaults to a
	// MetricsObserver over a fresh Metrics instance.
	Observer Observer

	// Signals delivers SIGINT/SIGQUIT/SIGHUP to a line's process group.
	// Defaults to a no-op sender, since process-group management lives
	// outside this module.
	Signals SignalSender
}

// DefaultConfig returns a Config with every collaborator defaulted.
func DefaultConfig() *Config {
	return &Config{}
}

// Server owns the line table and runs the dispatcher. All device requests
// funnel through its message port and are serviced one at a time.
type Server struct {
	logger  *logging.Logger
	metrics *Metrics

	lines      []*line.Line
	env        *line.Env
	port       *port.Port
	dispatcher *dispatch.Dispatcher
	wheel      *timer.Wheel

	mu      sync.Mutex
	waiters map[int32]chan struct{}

	runOnce sync.Once
	done    chan struct{}
}

// NewServer builds a Server from config, wiring the timer wheel, message
// port, and dispatcher together. Call Run to start servicing requests.
func NewServer(config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	logger := config.Logger
	if logger == nil {
		logger = logging.Default()
	}

	s := &Server{
		logger:  logger,
		metrics: NewMetrics(),
		lines:   dispatch.NewLineTable(),
		port:    port.New(),
		waiters: make(map[int32]chan struct{}),
		done:    make(chan struct{}),
	}

	observer := config.Observer
	if observer == nil {
		observer = NewMetricsObserver(s.metrics)
	}
	signals := config.Signals

	s.env = &line.Env{Signals: signals, Observer: observer}
	s.dispatcher = dispatch.New(s.lines, s.port, s.env, logger, s.notifyProc)
	s.wheel = timer.NewWheel(s.dispatcher.TimerFired)
	s.env.Timer = s.wheel

	return s
}

// RegisterDevice attaches a back-end to the line a minor number resolves
// to. Devices implementing line.DeviceBinder get references to their Line
// and the shared Env so DevRead/DevWrite can reach the input and output
// processors. Must be called before Run.
func (s *Server) RegisterDevice(minor int, dev Device) error {
	l, ok := s.lookup(minor)
	if !ok {
		return NewError("REGISTER", -1, ErrCodeNoSuchDevice, syscall.ENXIO,
			fmt.Sprintf("no line for minor %d", minor))
	}
	if b, ok := dev.(line.DeviceBinder); ok {
		b.Bind(l, s.env)
	}
	l.Device = dev
	return nil
}

func (s *Server) lookup(minor int) (*line.Line, bool) {
	for _, l := range s.lines {
		if l.Minor == minor {
			return l, true
		}
	}
	return nil, false
}

// Run starts the dispatcher loop and blocks until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	s.runOnce.Do(func() {
		s.logger.Infof("tty server starting, %d lines", len(s.lines))
		s.dispatcher.Run(ctx)
		s.wheel.Stop()
		s.port.Close()
		s.metrics.Stop()
		close(s.done)
		s.logger.Infof("tty server stopped")
	})
	return nil
}

// Done is closed once Run has fully wound down.
func (s *Server) Done() <-chan struct{} { return s.done }

// Metrics returns the server's metrics instance.
func (s *Server) Metrics() *Metrics { return s.metrics }

// Interrupt injects a hardware-interrupt notification carrying a bitmask
// of device IRQs. Safe to call from any goroutine; a full port drops the
// notification, which is harmless because the dispatcher rescans every
// line's events flag before blocking again.
func (s *Server) Interrupt(mask uint32) {
	for _, l := range s.lines {
		if l.Device != nil {
			l.SetEvents()
		}
	}
	s.port.TrySend(port.Message{Kind: port.KindInterrupt, Interrupts: mask})
}

// Kick wakes the dispatcher so it rescans lines whose events flag was set
// by a device Feed outside an interrupt. Equivalent to Interrupt(0).
func (s *Server) Kick() {
	s.port.TrySend(port.Message{Kind: port.KindInterrupt})
}

// notifyProc wakes the waiter (if any) parked for proc's next event.
func (s *Server) notifyProc(proc int32) {
	s.mu.Lock()
	ch, ok := s.waiters[proc]
	s.mu.Unlock()
	if ok {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// waiter returns (creating if needed) proc's notification channel.
func (s *Server) waiter(proc int32) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.waiters[proc]
	if !ok {
		ch = make(chan struct{}, 1)
		s.waiters[proc] = ch
	}
	return ch
}

func (s *Server) submit(ctx context.Context, req *port.Request) (port.Reply, error) {
	reply, err := port.SubmitRequest(ctx, s.port, req)
	if err != nil {
		return port.Reply{}, err
	}
	return reply, nil
}

// errnoFor converts a dispatcher errno reply into a structured error.
func errnoFor(op string, minor int, errno syscall.Errno) error {
	code := ErrCodeIOError
	switch errno {
	case syscall.ENXIO:
		code = ErrCodeNoSuchDevice
	case syscall.EIO:
		code = ErrCodeBusy
	case syscall.EINVAL:
		code = ErrCodeInvalidParams
	case syscall.EFAULT:
		code = ErrCodeBadAddress
	case syscall.EACCES:
		code = ErrCodePermissionDenied
	case syscall.EAGAIN:
		code = ErrCodeWouldBlock
	case syscall.EINTR:
		code = ErrCodeCancelled
	case syscall.ENOTTY:
		code = ErrCodeNotATTY
	}
	return NewError(op, minor, code, errno, errno.Error())
}

// Open opens the line behind minor for proc. becameCtty reports whether
// the open made the line proc's controlling terminal (noCtty unset and
// not the log device).
func (s *Server) Open(ctx context.Context, proc int32, minor int, wantsRead, noCtty bool) (becameCtty bool, err error) {
	reply, err := s.submit(ctx, &port.Request{
		Op: port.OpOpen, Minor: minor, Proc: proc, Caller: proc,
		WantsRead: wantsRead, NoCtty: noCtty,
	})
	if err != nil {
		return false, err
	}
	if reply.Code == port.ReplyError {
		return false, errnoFor("OPEN", minor, reply.Err.(syscall.Errno))
	}
	return reply.BecameCtty, nil
}

// Close closes one reference to the line behind minor.
func (s *Server) Close(ctx context.Context, proc int32, minor int) error {
	reply, err := s.submit(ctx, &port.Request{Op: port.OpClose, Minor: minor, Proc: proc, Caller: proc})
	if err != nil {
		return err
	}
	if reply.Code == port.ReplyError {
		return errnoFor("CLOSE", minor, reply.Err.(syscall.Errno))
	}
	return nil
}

// Read reads up to len(buf) bytes from the line behind minor on behalf of
// proc. A blocking read that cannot complete immediately suspends until
// the line discipline revives it; canceling ctx cancels the pending read
// and returns a cancelled error.
func (s *Server) Read(ctx context.Context, proc int32, minor int, buf []byte, nonblock bool) (int, error) {
	wait := s.waiter(proc)
	reply, err := s.submit(ctx, &port.Request{
		Op: port.OpRead, Minor: minor, Proc: proc, Caller: proc,
		Buf: buf, NonBlock: nonblock,
	})
	if err != nil {
		return 0, err
	}
	switch reply.Code {
	case port.ReplyError:
		return 0, errnoFor("READ", minor, reply.Err.(syscall.Errno))
	case port.ReplyOK:
		return reply.N, nil
	case port.ReplySuspended:
		return s.awaitRevive(ctx, proc, minor, CancelRead, wait, "READ")
	}
	return 0, NewError("READ", minor, ErrCodeIOError, syscall.EIO, "unexpected reply")
}

// Write writes buf to the line behind minor on behalf of proc, suspending
// until the device consumes it unless nonblock is set.
func (s *Server) Write(ctx context.Context, proc int32, minor int, buf []byte, nonblock bool) (int, error) {
	wait := s.waiter(proc)
	reply, err := s.submit(ctx, &port.Request{
		Op: port.OpWrite, Minor: minor, Proc: proc, Caller: proc,
		Buf: buf, NonBlock: nonblock,
	})
	if err != nil {
		return 0, err
	}
	switch reply.Code {
	case port.ReplyError:
		return 0, errnoFor("WRITE", minor, reply.Err.(syscall.Errno))
	case port.ReplyOK:
		return reply.N, nil
	case port.ReplySuspended:
		return s.awaitRevive(ctx, proc, minor, CancelWrite, wait, "WRITE")
	}
	return 0, NewError("WRITE", minor, ErrCodeIOError, syscall.EIO, "unexpected reply")
}

// awaitRevive implements the caller half of the revive protocol: wait for
// a notification aimed at proc, then collect the completed operation with
// a STATUS poll. On ctx cancellation the pending operation is cancelled
// (EINTR), matching a signal interrupting a blocked reader.
func (s *Server) awaitRevive(ctx context.Context, proc int32, minor, cancelMode int, wait chan struct{}, op string) (int, error) {
	for {
		select {
		case <-ctx.Done():
			s.cancelOp(proc, minor, cancelMode)
			return 0, NewError(op, minor, ErrCodeCancelled, syscall.EINTR, "interrupted")
		case <-wait:
		}

		for {
			ev, err := s.Status(ctx, proc)
			if err != nil {
				return 0, err
			}
			if ev.Kind == StatusNone {
				break // spurious wakeup or someone else's event
			}
			if ev.Kind == StatusRevived && ev.Proc == proc && ev.Minor == minor {
				return ev.Count, nil
			}
			// An IO_READY for a select subscription can interleave; it
			// was consumed by this poll, so surface it to the waiter.
			s.notifyProc(proc)
		}
	}
}

// cancelOp fires a CANCEL for proc's pending operation, detached from the
// caller's (already canceled) context.
func (s *Server) cancelOp(proc int32, minor, mode int) {
	_, _ = s.submit(context.Background(), &port.Request{
		Op: port.OpCancel, Minor: minor, Proc: proc, Caller: proc, CancelMode: mode,
	})
}

// Cancel interrupts proc's pending read and/or write on minor.
func (s *Server) Cancel(ctx context.Context, proc int32, minor, mode int) error {
	reply, err := s.submit(ctx, &port.Request{
		Op: port.OpCancel, Minor: minor, Proc: proc, Caller: proc, CancelMode: mode,
	})
	if err != nil {
		return err
	}
	if reply.Code == port.ReplyError && reply.Err != syscall.EINTR {
		return errnoFor("CANCEL", minor, reply.Err.(syscall.Errno))
	}
	return nil
}

// IOCtl performs a terminal control request. arg carries the marshaled
// in-parameter for set requests; the returned bytes carry the marshaled
// out-parameter for get requests.
func (s *Server) IOCtl(ctx context.Context, proc int32, minor int, request uint, arg []byte) ([]byte, error) {
	reply, err := s.submit(ctx, &port.Request{
		Op: port.OpIOCtl, Minor: minor, Proc: proc, Caller: proc,
		IOCtlReq: request, Arg: arg,
	})
	if err != nil {
		return nil, err
	}
	if reply.Code == port.ReplyError {
		return nil, errnoFor("IOCTL", minor, reply.Err.(syscall.Errno))
	}
	s.metrics.IoctlOps.Add(1)
	return reply.Data, nil
}

// Tcgetattr fetches the line's termios image (TCGETS).
func (s *Server) Tcgetattr(ctx context.Context, proc int32, minor int) (Termios, error) {
	var t Termios
	data, err := s.IOCtl(ctx, proc, minor, wire.TCGETS, nil)
	if err != nil {
		return t, err
	}
	if err := wire.UnmarshalTermios(data, &t); err != nil {
		return t, NewError("IOCTL", minor, ErrCodeBadAddress, syscall.EFAULT, err.Error())
	}
	return t, nil
}

// Tcsetattr stores a termios image. request selects TCSETS (now),
// TCSETSW (drain first) or TCSETSF (drain, then flush input).
func (s *Server) Tcsetattr(ctx context.Context, proc int32, minor int, request uint, t *Termios) error {
	_, err := s.IOCtl(ctx, proc, minor, request, wire.MarshalTermios(t))
	return err
}

// Tcdrain waits until the line's pending output is consumed.
func (s *Server) Tcdrain(ctx context.Context, proc int32, minor int) error {
	_, err := s.IOCtl(ctx, proc, minor, wire.TCDRAIN, nil)
	return err
}

// Tcflush discards queued input, output, or both (TCIFLUSH/TCOFLUSH/
// TCIOFLUSH).
func (s *Server) Tcflush(ctx context.Context, proc int32, minor int, which int32) error {
	_, err := s.IOCtl(ctx, proc, minor, wire.TCFLSH, wire.MarshalInt32(which))
	return err
}

// Tcflow suspends or restarts output (TCOOFF/TCOON), or transmits the
// STOP/START character (TCIOFF/TCION).
func (s *Server) Tcflow(ctx context.Context, proc int32, minor int, action int32) error {
	_, err := s.IOCtl(ctx, proc, minor, wire.TCXONC, wire.MarshalInt32(action))
	return err
}

// Select reports which of ops are immediately ready on minor. With notify
// set and nothing ready, the caller is subscribed: a later readiness
// change notifies proc, which then collects an IO_READY via Status.
func (s *Server) Select(ctx context.Context, proc int32, minor, ops int, notify bool) (int, error) {
	reply, err := s.submit(ctx, &port.Request{
		Op: port.OpSelect, Minor: minor, Proc: proc, Caller: proc,
		SelectOps: ops, SelectNotify: notify,
	})
	if err != nil {
		return 0, err
	}
	if reply.Code == port.ReplyError {
		return 0, errnoFor("SELECT", minor, reply.Err.(syscall.Errno))
	}
	return reply.Ops, nil
}

// StatusKind classifies what a STATUS poll returned.
type StatusKind int

const (
	// StatusNone means no pending event for this caller.
	StatusNone StatusKind = iota
	// StatusIOReady reports select readiness on Minor for Ops.
	StatusIOReady
	// StatusRevived reports a completed suspended read/write: Proc's
	// operation on Minor finished with Count bytes.
	StatusRevived
)

// StatusEvent is one event collected by a STATUS poll.
type StatusEvent struct {
	Kind  StatusKind
	Minor int
	Ops   int
	Proc  int32
	Count int
}

// Status polls for the next pending event addressed to proc: select
// readiness first, then revived reads, then revived writes, first match
// across the line table wins.
func (s *Server) Status(ctx context.Context, proc int32) (StatusEvent, error) {
	reply, err := s.submit(ctx, &port.Request{Op: port.OpStatus, Proc: proc, Caller: proc})
	if err != nil {
		return StatusEvent{}, err
	}
	switch reply.Code {
	case port.ReplyIOReady:
		return StatusEvent{Kind: StatusIOReady, Minor: reply.Minor, Ops: reply.Ops}, nil
	case port.ReplyRevived:
		return StatusEvent{Kind: StatusRevived, Minor: reply.Minor, Proc: reply.Proc, Count: reply.N}, nil
	default:
		return StatusEvent{Kind: StatusNone}, nil
	}
}

// AwaitNotify blocks until proc receives a notification (select readiness
// or a revive) or ctx is done. Callers follow up with Status.
func (s *Server) AwaitNotify(ctx context.Context, proc int32) error {
	wait := s.waiter(proc)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-wait:
		return nil
	}
}
