// Package dispatch implements the single-threaded request dispatcher:
// the event loop, per-line event handling, minor-number resolution, and
// the per-operation request handlers. One goroutine owns the whole line
// table; devices, timers, and callers reach it only through the message
// port.
package dispatch

import (
	"context"

	"github.com/behrlich/ttyline/internal/constants"
	"github.com/behrlich/ttyline/internal/interfaces"
	"github.com/behrlich/ttyline/internal/line"
	"github.com/behrlich/ttyline/internal/port"
)

// Dispatcher owns the line table and the message port, and is the only
// goroutine that ever touches Line state outside of the atomic
// eventsPending and timedOut flags.
type Dispatcher struct {
	lines  []*line.Line
	env    *line.Env
	port   *port.Port
	logger interfaces.Logger
	notify func(proc int32)

	// One slot per line: the reply channel of whichever READ/WRITE/drain
	// request is still completing directly, so the event handler can
	// finish it without line.PendingOp itself knowing about the message
	// port. A reader or writer that moves to the revive protocol gives
	// its channel up (the caller already received SUSPEND); a drain
	// ioctl keeps its channel until the output is gone.
	readerReply []chan<- port.Reply
	writerReply []chan<- port.Reply
	drainReply  []chan<- port.Reply
}

// NewLineTable builds the fixed line table: NCONS consoles, then NSERIAL
// serial lines, then NPTY pty pairs, with the minor numbers the mapping
// in minors.go resolves.
func NewLineTable() []*line.Line {
	lines := make([]*line.Line, 0, lineCount())
	for k := 0; k < constants.NCONS; k++ {
		lines = append(lines, line.NewLine(len(lines), constants.ConsMinorBase+k, line.KindConsole))
	}
	for k := 0; k < constants.NSERIAL; k++ {
		lines = append(lines, line.NewLine(len(lines), constants.RS232MinorBase+k, line.KindSerial))
	}
	for k := 0; k < constants.NPTY; k++ {
		lines = append(lines, line.NewLine(len(lines), constants.TTYPXMinorBase+k, line.KindPTYSlave))
	}
	return lines
}

// New builds a Dispatcher over a line table. notify is invoked (on the
// dispatcher goroutine) whenever a suspended caller or select subscriber
// has an event to collect via STATUS.
func New(lines []*line.Line, p *port.Port, env *line.Env, logger interfaces.Logger, notify func(proc int32)) *Dispatcher {
	if notify == nil {
		notify = func(int32) {}
	}
	return &Dispatcher{
		lines:       lines,
		env:         env,
		port:        p,
		logger:      logger,
		notify:      notify,
		readerReply: make([]chan<- port.Reply, len(lines)),
		writerReply: make([]chan<- port.Reply, len(lines)),
		drainReply:  make([]chan<- port.Reply, len(lines)),
	}
}

// TimerFired marks idx as timed out and forces an event pass over it.
// It runs on the wheel goroutine, so the Min adjustment itself is
// deferred to the dispatcher via the timed-out latch.
func (d *Dispatcher) TimerFired(idx int) {
	if idx < 0 || idx >= len(d.lines) {
		return
	}
	d.lines[idx].SetTimedOut()
	d.lines[idx].SetEvents()
	d.port.TrySend(port.Message{Kind: port.KindAlarm})
}

// Run is the dispatcher's event loop: scan every Line with pending
// events, then block for the next message. It returns when ctx is
// canceled.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		for _, l := range d.lines {
			if l.EventsPending() {
				d.handleEvents(l)
			}
		}

		select {
		case <-ctx.Done():
			if d.logger != nil {
				d.logger.Infof("dispatcher stopping")
			}
			return
		case msg := <-d.port.Messages():
			d.handleMessage(msg)
		}
	}
}

// handleEvents is the per-line do-while loop: repeat device read, device
// write, and drain completion until no new events were raised, then
// attempt delivery to any suspended reader or writer and retry the
// select subscription. The device read runs before the write so an
// incoming START character can unblock output within the same iteration.
func (d *Dispatcher) handleEvents(l *line.Line) {
	if l.TestAndClearTimedOut() {
		l.Min = 0
	}
	for {
		l.TestAndClearEvents()

		if l.Device != nil {
			l.Device.DevRead(false)
			l.Device.DevWrite(false)
		}
		if l.Drain.Active {
			d.tryCompleteDrain(l)
		}

		if !l.EventsPending() {
			break
		}
	}

	l.InTransfer()
	d.tryCompleteRead(l)
	d.tryCompleteWrite(l)
	d.selectRetry(l)
}

// handleMessage classifies one message off the port and dispatches it.
func (d *Dispatcher) handleMessage(msg port.Message) {
	switch msg.Kind {
	case port.KindAlarm:
		// Timers already marked their lines via TimerFired; the next
		// pass over the line table (top of Run's loop) picks them up.
	case port.KindInterrupt:
		// One notification means "at least one event on at least one
		// line in this bitmask"; scan rather than trust the mask 1:1.
		for _, l := range d.lines {
			if l.Device != nil {
				l.SetEvents()
			}
		}
	case port.KindSignal:
		if d.logger != nil {
			d.logger.Debugf("received signal %v", msg.Signal)
		}
		for _, l := range d.lines {
			if h, ok := l.Device.(interfaces.SystemNotifiee); ok {
				h.SystemSignal(msg.Signal)
			}
		}
	case port.KindRequest:
		d.handleRequest(msg.Request)
	}
}

func (d *Dispatcher) lineAt(minor int) (*line.Line, resolved, bool) {
	r := minorToIndex(minor)
	if !r.ok || r.index >= len(d.lines) {
		return nil, resolved{}, false
	}
	return d.lines[r.index], r, true
}
