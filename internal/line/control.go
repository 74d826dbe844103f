package line

import (
	"syscall"

	"github.com/behrlich/ttyline/internal/wire"
)

// Cancel bits for the CANCEL request's mode field.
const (
	CancelRead  = 1 << 0
	CancelWrite = 1 << 1
)

// SetAttr applies a just-stored termios to the line's runtime state:
// deliverable typeahead when leaving canonical mode, MIN/TIME bookkeeping,
// flow-control inhibition, hangup signaling, and the device-level ioctl.
func (l *Line) SetAttr(env *Env) {
	if l.Raw() {
		// Undefined what happens to typeahead when ICANON is switched
		// off; keeping it deliverable is the friendlier choice.
		l.Queue.MarkAllEOT()
	}

	if w := env.timer(); w != nil {
		w.Clear(l.Index)
	}
	l.TestAndClearTimedOut()
	if l.Canonical() {
		l.Min = 1
	} else {
		l.Min = int(l.Termios.Cc[wire.VMIN])
		if l.Min == 0 && l.Termios.Cc[wire.VTIME] > 0 {
			l.Min = 1
		}
	}

	if l.Termios.Iflag&wire.IXON == 0 {
		l.Inhibited = false
		l.SetEvents()
	}

	if l.Hungup() {
		l.sigChar(env, syscall.SIGHUP)
	}

	if l.Device != nil {
		_ = l.Device.IOCtl()
	}
}

// sigChar delivers sig to the line's process group and, unless NOFLSH is
// set, flushes input and output.
func (l *Line) sigChar(env *Env, sig syscall.Signal) {
	if l.PGRP != 0 {
		_ = env.signals().Kill(l.PGRP, sig)
	}
	env.observer().ObserveSignal()

	if l.Termios.Lflag&wire.NOFLSH == 0 {
		l.Queue.Reset()
		if l.Device != nil {
			l.Device.OCancel()
		}
		l.Inhibited = false
		l.SetEvents()
	}
}

// DiscardInput empties the input queue and tells the device to drop any
// hardware-buffered input. Shared by CANCEL(READ) and
// TCFLSH(TCIFLUSH/TCIOFLUSH).
func (l *Line) DiscardInput() {
	l.Queue.Reset()
	if l.Device != nil {
		l.Device.ICancel()
	}
}

// SelectReady computes the immediately-ready subset of ops: a hangup
// makes every requested op ready, a read is ready if a reader is already
// blocked (would return EIO) or a whole token is queued, and a write is
// ready if a writer is blocked or the device reports write readiness on
// probe.
func (l *Line) SelectReady(ops int) int {
	ready := 0
	if l.Hungup() {
		ready |= ops
	}
	if ops&SelectRead != 0 {
		if l.Reader.Leftover > 0 {
			ready |= SelectRead
		} else if !l.Queue.Empty() && (l.Raw() || l.Queue.EOTCount() > 0) {
			ready |= SelectRead
		}
	}
	if ops&SelectWrite != 0 {
		if l.Writer.Leftover > 0 {
			ready |= SelectWrite
		} else if l.Device != nil && l.Device.DevWrite(true) {
			ready |= SelectWrite
		}
	}
	return ready
}

// Cancel clears whichever of the reader/writer/drain slots belong to
// proc. The caller replies EINTR regardless of whether anything was
// actually pending, so a cancel can never race a completion into
// cancelling twice.
func (l *Line) Cancel(env *Env, mode int, proc int32) {
	if mode&CancelRead != 0 && l.Reader.Leftover != 0 && proc == l.Reader.Proc {
		l.DiscardInput()
		l.Reader.Reset()
	}
	if mode&CancelWrite != 0 && l.Writer.Leftover != 0 && proc == l.Writer.Proc {
		if l.Device != nil {
			l.Device.OCancel()
		}
		l.Writer.Reset()
	}
	if l.Drain.Active && proc == l.Drain.Proc {
		l.Drain = DrainOp{}
	}
	l.SetEvents()
	env.observer().ObserveCancel()
}
