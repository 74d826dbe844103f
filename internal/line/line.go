// Package line implements the per-line state machine: termios-governed
// input processing, output processing, echo rendering, and the control
// operations (select readiness, cancel, setattr, signal characters) for a
// single terminal line; STATUS and IOCTL are handled by the dispatcher. Each line carries at most one suspended
// reader and one suspended writer, stored as explicit continuation state
// rather than blocked goroutines.
package line

import (
	"sync/atomic"

	"github.com/behrlich/ttyline/internal/interfaces"
	"github.com/behrlich/ttyline/internal/queue"
	"github.com/behrlich/ttyline/internal/wire"
)

// Kind identifies what a Line is backed by, used for minor-number mapping
// and for features (keymap ioctl, job control) that are only meaningful on
// some kinds.
type Kind int

const (
	KindConsole Kind = iota
	KindSerial
	KindPTYSlave
	KindPTYMaster
)

// ReplyKind distinguishes an immediate TASK_REPLY from a caller that must
// be revived later via STATUS.
type ReplyKind int

const (
	ReplyNone ReplyKind = iota
	ReplyDirect
	ReplySuspend
	ReplyRevive
)

// PendingOp is the explicit continuation for a suspended reader or writer:
// the dispatcher does not block a goroutine per caller, it stores what the
// caller asked for and resumes it later from the event loop.
type PendingOp struct {
	Active     bool
	Proc       int32  // calling process/session identity
	Caller     int32  // endpoint to reply to
	Buf        []byte // caller-side buffer (simulates virtual-copy)
	Leftover   int    // bytes still wanted
	Cumulative int    // bytes delivered so far
	NonBlock   bool
	Reply      ReplyKind
	Revived    bool
}

// Reset clears a PendingOp back to inactive.
func (p *PendingOp) Reset() { *p = PendingOp{} }

// DrainOp is the queued ioctl request waiting for WRITE to drain
// (TCSETSW/TCSETSF/TCDRAIN). Arg is the caller's marshaled parameter
// block, fetched only once output has drained.
type DrainOp struct {
	Active  bool
	Request uint
	Arg     []byte
	Proc    int32
	Caller  int32
}

// SelectSub is a pending select subscription: the caller asked to be woken
// when any of Ops becomes ready.
type SelectSub struct {
	Active bool
	Ops    int
	Proc   int32
}

// Select readiness bits.
const (
	SelectRead  = 1 << 0
	SelectWrite = 1 << 1
	SelectError = 1 << 2
)

// Line is the complete per-line record: identity, attributes, the input
// queue, escape/reprint state, suspended caller slots, and control state.
type Line struct {
	Index int
	Minor int
	Kind  Kind

	Termios wire.Termios
	Winsize wire.Winsize

	Queue queue.Ring

	Escaped        bool
	ReprintPending bool
	Column         int // echo/output column; OutProcess stores it modulo TabSize, echo does not wrap it

	Reader PendingOp
	Writer PendingOp
	Drain  DrainOp

	PGRP      int32
	OpenCount int
	Inhibited bool // true = stopped (XOFF received)
	Select    SelectSub

	Device interfaces.Device

	// Min is the VMIN-derived threshold, recomputed by SetAttr: InTransfer
	// tests the queue's EOT count against it and read completion tests the
	// reader's delivered byte count against it.
	Min int

	// eventsPending is set from the dispatcher goroutine as well as the
	// interrupt/timer goroutines (event handling must be re-entered whenever
	// any of them observes new work), so unlike the rest of Line's fields
	// -- which only the single dispatcher goroutine ever touches -- it is
	// accessed atomically. timedOut is its companion latch for the VTIME
	// timer: the wheel goroutine may only set it; the dispatcher folds it
	// into Min on its next event pass.
	eventsPending atomic.Bool
	timedOut      atomic.Bool
}

// SetEvents marks the line as having pending work for the next
// event pass. Safe to call from any goroutine.
func (l *Line) SetEvents() { l.eventsPending.Store(true) }

// TestAndClearEvents reports whether events were pending and clears the
// flag; the event loop calls this at the top of each iteration so a flag
// raised mid-iteration forces another pass.
func (l *Line) TestAndClearEvents() bool { return l.eventsPending.Swap(false) }

// EventsPending reports the flag without clearing it, used by the
// dispatcher's outer scan over lines with pending events.
func (l *Line) EventsPending() bool { return l.eventsPending.Load() }

// SetTimedOut marks the line's read timer as expired. Safe to call from
// the timer goroutine.
func (l *Line) SetTimedOut() { l.timedOut.Store(true) }

// TestAndClearTimedOut reports and clears the expiry latch; the caller
// zeroes Min so the pending read completes with whatever has arrived.
func (l *Line) TestAndClearTimedOut() bool { return l.timedOut.Swap(false) }

// NewLine creates a Line at its post-reset defaults: default termios and
// winsize, closed (OpenCount 0), no device yet registered.
func NewLine(index, minor int, kind Kind) *Line {
	l := &Line{Index: index, Minor: minor, Kind: kind}
	l.resetAttributes()
	return l
}

func (l *Line) resetAttributes() {
	l.Termios = wire.DefaultTermios()
	l.Winsize = wire.DefaultWinsize()
	l.Min = 1
}

// Hungup reports whether the line's output speed has been set to B0,
// meaning the carrier dropped.
func (l *Line) Hungup() bool {
	return l.Termios.Ospeed == wire.B0
}

// Canonical reports whether ICANON is set.
func (l *Line) Canonical() bool {
	return l.Termios.Lflag&wire.ICANON != 0
}

// Raw is the complement of Canonical, named for readability at call sites.
func (l *Line) Raw() bool { return !l.Canonical() }

// Open increments the open count and, unless noCtty is set, claims the
// line's process group for the caller. viaLog marks an open through the
// console's secondary "log" minor, which is write-only and does not
// count toward the aliased console's open count: permitted is false when
// such an open wants read access, and a permitted log open changes
// nothing else. becameCtty reports whether this open made the line the
// caller's controlling tty.
func (l *Line) Open(caller int32, noCtty, wantsRead, viaLog bool) (becameCtty, permitted bool) {
	if viaLog {
		// The log minor is a write-only diagnostics alias: it rejects
		// read access and never touches the open count, so the aliased
		// console's close accounting stays balanced.
		if wantsRead {
			return false, false
		}
		return false, true
	}
	l.OpenCount++
	if !noCtty {
		l.PGRP = caller
		return true, true
	}
	return false, true
}

// Close decrements the open count and, on reaching zero, resets the line
// to its just-opened defaults: queue emptied, slots cleared, termios and
// winsize reset.
func (l *Line) Close() (fullyClosed bool) {
	if l.OpenCount > 0 {
		l.OpenCount--
	}
	if l.OpenCount > 0 {
		return false
	}
	l.Queue.Reset()
	l.Reader.Reset()
	l.Writer.Reset()
	l.Drain = DrainOp{}
	l.PGRP = 0
	l.Inhibited = false
	l.Escaped = false
	l.ReprintPending = false
	l.Column = 0
	l.Select = SelectSub{}
	l.resetAttributes()
	return true
}
