package dispatch

import (
	"syscall"

	"github.com/behrlich/ttyline/internal/interfaces"
	"github.com/behrlich/ttyline/internal/line"
	"github.com/behrlich/ttyline/internal/port"
	"github.com/behrlich/ttyline/internal/timer"
	"github.com/behrlich/ttyline/internal/wire"
)

// reply completes a request immediately (TASK_REPLY).
func reply(req *port.Request, r port.Reply) {
	if req.Reply != nil {
		req.Reply <- r
	}
}

func replyErrno(req *port.Request, errno syscall.Errno) {
	reply(req, port.Reply{Code: port.ReplyError, Err: errno})
}

// handleRequest resolves the request's minor to a Line and dispatches.
// Pseudo-tty master minors bypass the line discipline except for IOCTL.
func (d *Dispatcher) handleRequest(req *port.Request) {
	if req.Op == port.OpStatus {
		d.doStatus(req)
		return
	}

	l, r, ok := d.lineAt(req.Minor)
	if !ok || l.Device == nil {
		replyErrno(req, syscall.ENXIO)
		return
	}

	if r.isMaster && req.Op != port.OpIOCtl {
		d.handleMaster(l, req)
		return
	}

	switch req.Op {
	case port.OpOpen:
		d.doOpen(l, r, req)
	case port.OpClose:
		d.doClose(l, r, req)
	case port.OpRead:
		d.doRead(l, req)
	case port.OpWrite:
		d.doWrite(l, req)
	case port.OpIOCtl:
		d.doIOCtl(l, req)
	case port.OpSelect:
		d.doSelect(l, req)
	case port.OpCancel:
		d.doCancel(l, req)
	default:
		replyErrno(req, syscall.EINVAL)
	}
}

// doOpen makes the line the caller's controlling tty unless O_NOCTTY was
// given or the open came through the write-only log minor.
func (d *Dispatcher) doOpen(l *line.Line, r resolved, req *port.Request) {
	became, permitted := l.Open(req.Proc, req.NoCtty || r.viaLog, req.WantsRead, r.viaLog)
	if !permitted {
		replyErrno(req, syscall.EACCES)
		return
	}
	if d.logger != nil {
		d.logger.Debugf("open line=%d minor=%d count=%d", l.Index, req.Minor, l.OpenCount)
	}
	reply(req, port.Reply{Code: port.ReplyOK, BecameCtty: became})
}

// doClose cleans the line up on the last close: pending input and output
// are cancelled, the device released, and the attributes restored.
func (d *Dispatcher) doClose(l *line.Line, r resolved, req *port.Request) {
	if r.viaLog {
		reply(req, port.Reply{Code: port.ReplyOK})
		return
	}
	wasOpen := l.OpenCount > 0
	if wasOpen && l.OpenCount == 1 {
		l.DiscardInput()
		if l.Device != nil {
			l.Device.OCancel()
			_ = l.Device.Close()
		}
	}
	if l.Close() && wasOpen {
		l.SetAttr(d.env)
		if d.logger != nil {
			d.logger.Debugf("last close line=%d minor=%d", l.Index, req.Minor)
		}
	}
	reply(req, port.Reply{Code: port.ReplyOK})
}

// doRead is the READ entry point: validate, populate the reader slot, arm
// the VTIME timers, drain what's queued, and either complete, fail with
// EAGAIN, or suspend the caller.
func (d *Dispatcher) doRead(l *line.Line, req *port.Request) {
	switch {
	case l.Reader.Leftover > 0:
		replyErrno(req, syscall.EIO)
	case req.Buf != nil && len(req.Buf) == 0:
		replyErrno(req, syscall.EINVAL)
	case req.Buf == nil:
		replyErrno(req, syscall.EFAULT)
	default:
		l.Reader = line.PendingOp{
			Active:   true,
			Proc:     req.Proc,
			Caller:   req.Caller,
			Buf:      req.Buf,
			Leftover: len(req.Buf),
			NonBlock: req.NonBlock,
			Reply:    line.ReplyDirect,
		}
		d.readerReply[l.Index] = req.Reply

		l.TestAndClearTimedOut() // a stale expiry belongs to no reader
		if l.Raw() && l.Termios.Cc[wire.VTIME] > 0 {
			if w := d.env.Timer; w != nil {
				if l.Termios.Cc[wire.VMIN] == 0 {
					// MIN and TIME specify a read timer that finishes
					// the read in TIME/10 seconds if no bytes arrive.
					w.Set(l.Index, timer.DeciSeconds(l.Termios.Cc[wire.VTIME]))
					l.Min = 1
				} else if l.Queue.EOTCount() == 0 {
					// Interbyte timer; armed by the first byte.
					w.Clear(l.Index)
					l.Min = int(l.Termios.Cc[wire.VMIN])
				}
			}
		}

		// Anything waiting in the input queue? Clear it out, then go
		// back to the device for more.
		l.InTransfer()
		d.tryCompleteRead(l)
		d.handleEvents(l)
		if !l.Reader.Active {
			return // already done
		}

		if req.NonBlock {
			l.Reader.Reset()
			d.readerReply[l.Index] = nil
			replyErrno(req, syscall.EAGAIN)
		} else {
			l.Reader.Reply = line.ReplyRevive
			d.readerReply[l.Index] = nil
			reply(req, port.Reply{Code: port.ReplySuspended})
		}
	}
	d.selectRetry(l)
}

// doWrite is the symmetric WRITE entry point.
func (d *Dispatcher) doWrite(l *line.Line, req *port.Request) {
	switch {
	case l.Writer.Leftover > 0:
		replyErrno(req, syscall.EIO)
	case req.Buf != nil && len(req.Buf) == 0:
		replyErrno(req, syscall.EINVAL)
	case req.Buf == nil:
		replyErrno(req, syscall.EFAULT)
	default:
		l.Writer = line.PendingOp{
			Active:   true,
			Proc:     req.Proc,
			Caller:   req.Caller,
			Buf:      req.Buf,
			Leftover: len(req.Buf),
			NonBlock: req.NonBlock,
			Reply:    line.ReplyDirect,
		}
		d.writerReply[l.Index] = req.Reply

		d.handleEvents(l)
		if !l.Writer.Active {
			return // already done
		}

		if req.NonBlock {
			n := l.Writer.Cumulative
			l.Writer.Reset()
			d.writerReply[l.Index] = nil
			if n > 0 {
				reply(req, port.Reply{Code: port.ReplyOK, N: n})
			} else {
				replyErrno(req, syscall.EAGAIN)
			}
		} else {
			l.Writer.Reply = line.ReplyRevive
			d.writerReply[l.Index] = nil
			reply(req, port.Reply{Code: port.ReplySuspended})
		}
	}
}

// tryCompleteRead finishes a satisfied reader: leftover exhausted (the
// buffer is full or a whole line was delivered), or enough bytes arrived
// to meet the MIN threshold. Direct callers are replied to on the spot;
// revive callers are marked and notified for a later STATUS poll.
func (d *Dispatcher) tryCompleteRead(l *line.Line) {
	if !l.Reader.Active {
		return
	}
	if l.Reader.Leftover > 0 && l.Reader.Cumulative < l.Min {
		return
	}
	switch l.Reader.Reply {
	case line.ReplyDirect:
		n := l.Reader.Cumulative
		ch := d.readerReply[l.Index]
		l.Reader.Reset()
		d.readerReply[l.Index] = nil
		d.env.Obs().ObserveRead(uint64(n), true)
		if ch != nil {
			ch <- port.Reply{Code: port.ReplyOK, N: n}
		}
	case line.ReplyRevive:
		if !l.Reader.Revived {
			l.Reader.Revived = true
			d.notify(l.Reader.Caller)
		}
	}
}

// tryCompleteWrite finishes a writer whose buffer the device has fully
// consumed.
func (d *Dispatcher) tryCompleteWrite(l *line.Line) {
	if !l.Writer.Active || l.Writer.Leftover > 0 {
		return
	}
	switch l.Writer.Reply {
	case line.ReplyDirect:
		n := l.Writer.Cumulative
		ch := d.writerReply[l.Index]
		l.Writer.Reset()
		d.writerReply[l.Index] = nil
		d.env.Obs().ObserveWrite(uint64(n), true)
		if ch != nil {
			ch <- port.Reply{Code: port.ReplyOK, N: n}
		}
	case line.ReplyRevive:
		if !l.Writer.Revived {
			l.Writer.Revived = true
			d.notify(l.Writer.Caller)
		}
	}
}

// tryCompleteDrain executes a TCSETSW/TCSETSF/TCDRAIN that was waiting
// for output to finish, so the attribute change can't affect output that
// was already in flight.
func (d *Dispatcher) tryCompleteDrain(l *line.Line) {
	if l.Writer.Leftover > 0 {
		return // output not finished
	}
	result := port.Reply{Code: port.ReplyOK}
	if l.Drain.Request != wire.TCDRAIN {
		if l.Drain.Request == wire.TCSETSF {
			l.DiscardInput()
		}
		if err := wire.UnmarshalTermios(l.Drain.Arg, &l.Termios); err != nil {
			result = port.Reply{Code: port.ReplyError, Err: syscall.EFAULT}
		} else {
			l.SetAttr(d.env)
		}
	}
	ch := d.drainReply[l.Index]
	l.Drain = line.DrainOp{}
	d.drainReply[l.Index] = nil
	if ch != nil {
		ch <- result
	}
}

// doIOCtl performs the termios ioctl surface. Parameter blocks travel as
// marshaled bytes (req.Arg in, Reply.Data out), standing in for the copy
// to and from the caller's address space.
func (d *Dispatcher) doIOCtl(l *line.Line, req *port.Request) {
	switch req.IOCtlReq {
	case wire.TCGETS:
		reply(req, port.Reply{Code: port.ReplyOK, Data: wire.MarshalTermios(&l.Termios)})

	case wire.TCSETSW, wire.TCSETSF, wire.TCDRAIN:
		if l.Writer.Leftover > 0 {
			// Wait for all ongoing output processing to finish.
			l.Drain = line.DrainOp{
				Active:  true,
				Request: req.IOCtlReq,
				Arg:     req.Arg,
				Proc:    req.Proc,
				Caller:  req.Caller,
			}
			d.drainReply[l.Index] = req.Reply
			return
		}
		if req.IOCtlReq == wire.TCDRAIN {
			reply(req, port.Reply{Code: port.ReplyOK})
			return
		}
		if req.IOCtlReq == wire.TCSETSF {
			l.DiscardInput()
		}
		fallthrough

	case wire.TCSETS:
		if err := wire.UnmarshalTermios(req.Arg, &l.Termios); err != nil {
			replyErrno(req, syscall.EFAULT)
			return
		}
		l.SetAttr(d.env)
		reply(req, port.Reply{Code: port.ReplyOK})

	case wire.TCFLSH:
		which, err := wire.UnmarshalInt32(req.Arg)
		if err != nil {
			replyErrno(req, syscall.EFAULT)
			return
		}
		switch which {
		case wire.TCIFLUSH:
			l.DiscardInput()
		case wire.TCOFLUSH:
			l.Device.OCancel()
		case wire.TCIOFLUSH:
			l.DiscardInput()
			l.Device.OCancel()
		default:
			replyErrno(req, syscall.EINVAL)
			return
		}
		reply(req, port.Reply{Code: port.ReplyOK})

	case wire.TCXONC: // tcflow
		action, err := wire.UnmarshalInt32(req.Arg)
		if err != nil {
			replyErrno(req, syscall.EFAULT)
			return
		}
		switch action {
		case wire.TCOOFF, wire.TCOON:
			l.Inhibited = action == wire.TCOOFF
			l.SetEvents()
			d.handleEvents(l)
		case wire.TCIOFF:
			l.Device.Echo(l.Termios.Cc[wire.VSTOP])
		case wire.TCION:
			l.Device.Echo(l.Termios.Cc[wire.VSTART])
		default:
			replyErrno(req, syscall.EINVAL)
			return
		}
		reply(req, port.Reply{Code: port.ReplyOK})

	case wire.TCSBRK:
		l.Device.Break()
		reply(req, port.Reply{Code: port.ReplyOK})

	case wire.TIOCGWINSZ:
		reply(req, port.Reply{Code: port.ReplyOK, Data: wire.MarshalWinsize(&l.Winsize)})

	case wire.TIOCSWINSZ:
		if err := wire.UnmarshalWinsize(req.Arg, &l.Winsize); err != nil {
			replyErrno(req, syscall.EFAULT)
			return
		}
		reply(req, port.Reply{Code: port.ReplyOK})

	case wire.KIOCSMAP:
		// Load a new keymap (consoles only; elsewhere a silent no-op).
		if l.Kind == line.KindConsole {
			if extras, ok := l.Device.(interfaces.ConsoleExtras); ok {
				if err := extras.LoadKeymap(req.Arg); err != nil {
					replyErrno(req, syscall.EINVAL)
					return
				}
			}
		}
		reply(req, port.Reply{Code: port.ReplyOK})

	case wire.TIOCSFON:
		if l.Kind == line.KindConsole {
			if extras, ok := l.Device.(interfaces.ConsoleExtras); ok {
				if err := extras.LoadFont(req.Arg); err != nil {
					replyErrno(req, syscall.EINVAL)
					return
				}
			}
		}
		reply(req, port.Reply{Code: port.ReplyOK})

	default:
		// TIOCGPGRP/TIOCSPGRP land here too: job control is allowed to
		// be unsupported.
		replyErrno(req, syscall.ENOTTY)
	}
}

// doSelect computes immediate readiness, recording a subscription if
// nothing is ready and the caller asked to be notified.
func (d *Dispatcher) doSelect(l *line.Line, req *port.Request) {
	ready := l.SelectReady(req.SelectOps)
	if ready == 0 && req.SelectNotify {
		l.Select = line.SelectSub{Active: true, Ops: req.SelectOps, Proc: req.Proc}
	}
	reply(req, port.Reply{Code: port.ReplyOK, Ops: ready})
}

// selectRetry notifies the line's select subscriber if anything it asked
// about has become ready; the subscriber collects the event via STATUS.
func (d *Dispatcher) selectRetry(l *line.Line) {
	if !l.Select.Active || l.Select.Ops == 0 {
		return
	}
	if l.SelectReady(l.Select.Ops) != 0 {
		d.env.Obs().ObserveSelectWake()
		d.notify(l.Select.Proc)
	}
}

// doStatus returns at most one pending event for the calling subscriber,
// scanning all lines in table order: select readiness first, then a
// revived read, then a revived write.
func (d *Dispatcher) doStatus(req *port.Request) {
	for _, l := range d.lines {
		if l.Select.Active && l.Select.Proc == req.Caller {
			if ops := l.SelectReady(l.Select.Ops); ops != 0 {
				l.Select.Ops &^= ops
				if l.Select.Ops == 0 {
					l.Select = line.SelectSub{}
				}
				reply(req, port.Reply{Code: port.ReplyIOReady, Minor: l.Minor, Ops: ops})
				return
			}
		}
		if l.Reader.Revived && l.Reader.Caller == req.Caller {
			n := l.Reader.Cumulative
			proc := l.Reader.Proc
			l.Reader.Reset()
			d.env.Obs().ObserveRead(uint64(n), true)
			reply(req, port.Reply{Code: port.ReplyRevived, Minor: l.Minor, Proc: proc, N: n})
			return
		}
		if l.Writer.Revived && l.Writer.Caller == req.Caller {
			n := l.Writer.Cumulative
			proc := l.Writer.Proc
			l.Writer.Reset()
			d.env.Obs().ObserveWrite(uint64(n), true)
			reply(req, port.Reply{Code: port.ReplyRevived, Minor: l.Minor, Proc: proc, N: n})
			return
		}
	}
	reply(req, port.Reply{Code: port.ReplyNoStatus})
}

// doCancel clears whichever suspended slots belong to the calling process
// and replies EINTR, whether or not anything was actually pending.
func (d *Dispatcher) doCancel(l *line.Line, req *port.Request) {
	drainWasActive := l.Drain.Active && l.Drain.Proc == req.Proc
	l.Cancel(d.env, req.CancelMode, req.Proc)
	if drainWasActive && d.drainReply[l.Index] != nil {
		d.drainReply[l.Index] <- port.Reply{Code: port.ReplyError, Err: syscall.EINTR}
		d.drainReply[l.Index] = nil
	}
	replyErrno(req, syscall.EINTR)
	d.handleEvents(l)
}

// handleMaster serves the master side of a pty pair, which bypasses the
// line discipline: reads drain the slave's produced output, writes feed
// the slave's input processor on the next event pass.
func (d *Dispatcher) handleMaster(l *line.Line, req *port.Request) {
	m, ok := l.Device.(interfaces.MasterEndpoint)
	if !ok {
		replyErrno(req, syscall.ENXIO)
		return
	}
	switch req.Op {
	case port.OpOpen:
		reply(req, port.Reply{Code: port.ReplyOK})
	case port.OpClose:
		reply(req, port.Reply{Code: port.ReplyOK})
	case port.OpRead:
		n, err := m.MasterRead(req.Buf)
		if err != nil {
			replyErrno(req, syscall.EIO)
		} else if n == 0 {
			replyErrno(req, syscall.EAGAIN)
		} else {
			reply(req, port.Reply{Code: port.ReplyOK, N: n})
		}
	case port.OpWrite:
		n, err := m.MasterWrite(req.Buf)
		if err != nil {
			replyErrno(req, syscall.EIO)
			return
		}
		d.handleEvents(l)
		if n == 0 {
			replyErrno(req, syscall.EAGAIN)
			return
		}
		reply(req, port.Reply{Code: port.ReplyOK, N: n})
	case port.OpSelect:
		r, w := m.MasterReady()
		ready := 0
		if r && req.SelectOps&line.SelectRead != 0 {
			ready |= line.SelectRead
		}
		if w && req.SelectOps&line.SelectWrite != 0 {
			ready |= line.SelectWrite
		}
		reply(req, port.Reply{Code: port.ReplyOK, Ops: ready})
	case port.OpCancel:
		replyErrno(req, syscall.EINTR)
	default:
		replyErrno(req, syscall.EINVAL)
	}
}
