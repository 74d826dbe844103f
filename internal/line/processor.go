package line

import (
	"syscall"

	"github.com/behrlich/ttyline/internal/queue"
	"github.com/behrlich/ttyline/internal/timer"
	"github.com/behrlich/ttyline/internal/wire"
)

// InProcess transforms a run of raw input bytes into queue cells, applying
// iflag/lflag transformations, editing, flow control, and signal raising
// per character. Returns the number of input bytes consumed (may be less
// than len(buf) if the queue fills in raw mode).
func (l *Line) InProcess(env *Env, buf []byte) int {
	timeset := false
	n := 0
	for i := 0; i < len(buf); i++ {
		consumed, stop := l.processChar(env, buf[i], &timeset)
		if consumed {
			n++
		}
		if stop {
			break
		}
	}
	return n
}

// processChar runs one input byte through the full pipeline. consumed
// reports whether this byte was accounted for (true for every path except
// the raw-mode queue-full break); stop reports "queue full in raw mode,
// stop processing this run and let the caller retry the rest later."
func (l *Line) processChar(env *Env, raw byte, timeset *bool) (consumed, stop bool) {
	ch := raw
	if l.Termios.Iflag&wire.ISTRIP != 0 {
		ch &= 0x7F
	}

	escaped := false
	if l.Termios.Lflag&wire.IEXTEN != 0 {
		if l.Escaped {
			l.Escaped = false
			escaped = true
		} else {
			if ch == l.Termios.Cc[wire.VLNEXT] {
				l.Escaped = true
				l.rawEcho(env, '^')
				l.rawEcho(env, '\b')
				return true, false
			}
			if ch == l.Termios.Cc[wire.VREPRINT] {
				l.reprint(env)
				return true, false
			}
		}
	}

	// _POSIX_VDISABLE is an ordinary character value; escape it so it
	// never accidentally matches a disabled cc slot.
	if ch == wire.POSIXVDisable {
		escaped = true
	}

	if !escaped {
		switch ch {
		case '\r':
			if l.Termios.Iflag&wire.IGNCR != 0 {
				return true, false
			}
			if l.Termios.Iflag&wire.ICRNL != 0 {
				ch = '\n'
			}
		case '\n':
			if l.Termios.Iflag&wire.INLCR != 0 {
				ch = '\r'
			}
		}
	}

	eot, eof := false, false
	if !escaped && l.Canonical() {
		if ch == l.Termios.Cc[wire.VERASE] {
			l.backOver(env)
			if l.Termios.Lflag&wire.ECHOE == 0 {
				l.echo(env, ch)
			}
			return true, false
		}
		if ch == l.Termios.Cc[wire.VKILL] {
			for l.backOver(env) {
			}
			if l.Termios.Lflag&wire.ECHOE == 0 {
				l.echo(env, ch)
				if l.Termios.Lflag&wire.ECHOK != 0 {
					l.rawEcho(env, '\n')
				}
			}
			return true, false
		}
		if ch == l.Termios.Cc[wire.VEOF] {
			eot, eof = true, true
		}
		if ch == '\n' {
			eot = true
		}
		if ch == l.Termios.Cc[wire.VEOL] {
			eot = true
		}
	}

	if !escaped && l.Termios.Iflag&wire.IXON != 0 {
		if ch == l.Termios.Cc[wire.VSTOP] {
			l.Inhibited = true
			l.SetEvents()
			return true, false
		}
		if l.Inhibited {
			if ch == l.Termios.Cc[wire.VSTART] || l.Termios.Iflag&wire.IXANY != 0 {
				l.Inhibited = false
				l.SetEvents()
				if ch == l.Termios.Cc[wire.VSTART] {
					return true, false
				}
			}
		}
	}

	if !escaped && l.Termios.Lflag&wire.ISIG != 0 {
		if ch == l.Termios.Cc[wire.VINTR] || ch == l.Termios.Cc[wire.VQUIT] {
			sig := syscall.SIGINT
			if ch == l.Termios.Cc[wire.VQUIT] {
				sig = syscall.SIGQUIT
			}
			l.sigChar(env, sig)
			l.echo(env, ch)
			return true, false
		}
	}

	if l.Queue.Full() {
		if l.Canonical() {
			env.observer().ObserveQueueDrop()
			return true, false // discard, awaiting KILL/ERASE
		}
		return false, true // raw mode: stop, caller gets a partial run
	}

	if l.Raw() {
		eot = true
		if !*timeset && l.Termios.Cc[wire.VMIN] > 0 && l.Termios.Cc[wire.VTIME] > 0 {
			if w := env.timer(); w != nil {
				w.Set(l.Index, timer.DeciSeconds(l.Termios.Cc[wire.VTIME]))
			}
			*timeset = true
		}
	}

	cell := queue.NewCell(ch, 0, eot, eof, escaped)
	if l.Termios.Lflag&(wire.ECHO|wire.ECHONL) != 0 {
		cell = l.echoCell(env, cell)
	}
	l.Queue.Push(cell)

	if l.Queue.Full() {
		l.InTransfer()
	}
	return true, false
}
