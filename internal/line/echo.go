package line

import (
	"github.com/behrlich/ttyline/internal/constants"
	"github.com/behrlich/ttyline/internal/queue"
	"github.com/behrlich/ttyline/internal/wire"
)

// deviceEcho emits one rendered byte to the device sink and updates the
// per-line echo column. The device itself is a dumb sink; this engine
// owns alignment.
func (l *Line) deviceEcho(env *Env, ch byte) {
	if l.Device != nil {
		l.Device.Echo(ch)
	}
	env.observer().ObserveEcho(1)
	switch ch {
	case '\r':
		l.Column = 0
	case '\b':
		if l.Column > 0 {
			l.Column--
		}
	case '\n':
		// A bare LF doesn't move the column; CR does that job.
	default:
		l.Column++
	}
}

// rawEcho echoes ch verbatim (no control-character interpretation) when
// ECHO is set, preserving the reprint-pending state across the call.
func (l *Line) rawEcho(env *Env, ch byte) {
	rp := l.ReprintPending
	if l.Termios.Lflag&wire.ECHO != 0 {
		l.deviceEcho(env, ch)
	}
	l.ReprintPending = rp
}

// echo renders a bare character for its display side effect alone
// (ERASE/KILL/INTR/QUIT call sites), discarding the echo-length result.
func (l *Line) echo(env *Env, ch byte) {
	l.echoCell(env, queue.NewCell(ch, 0, false, false, false))
}

// echoCell renders a queue cell's character for display and returns the
// cell with its Len field set to the number of columns the echo consumed,
// so a later erase can wipe exactly that many columns.
func (l *Line) echoCell(env *Env, cell queue.Cell) queue.Cell {
	if l.Termios.Lflag&wire.ECHO == 0 {
		if cell.Char() == '\n' && cell.EOT() &&
			l.Termios.Lflag&(wire.ICANON|wire.ECHONL) == (wire.ICANON|wire.ECHONL) {
			l.deviceEcho(env, '\n')
		}
		return cell
	}

	// Reprint-pending only matters once there's something queued to
	// reprint; an empty queue can't have been "messed up."
	rp := false
	if !l.Queue.Empty() {
		rp = l.ReprintPending
	}

	ch := cell.Char()
	length := 0
	switch {
	case ch < 0x20:
		switch {
		case ch == '\t' && !cell.Escaped() && !cell.EOF() && !cell.EOT():
			for {
				l.deviceEcho(env, ' ')
				length++
				if length >= constants.TabSize || l.Column&constants.TabMask == 0 {
					break
				}
			}
		case (ch == '\r' || ch == '\n') && cell.EOT() && !cell.Escaped() && !cell.EOF():
			l.deviceEcho(env, ch)
			length = 0
		default:
			l.deviceEcho(env, '^')
			l.deviceEcho(env, '@'+ch)
			length = 2
		}
	case ch == 0x7F:
		l.deviceEcho(env, '^')
		l.deviceEcho(env, '?')
		length = 2
	default:
		l.deviceEcho(env, ch)
		length = 1
	}

	if cell.EOF() {
		for ; length > 0; length-- {
			l.deviceEcho(env, '\b')
		}
	}

	l.ReprintPending = rp
	return cell.WithLen(length)
}

// backOver erases the most recently queued character (VERASE, and the
// VKILL loop), refusing on an empty queue or a cell carrying EOT (a line
// break can't be erased). Returns whether a character was erased.
func (l *Line) backOver(env *Env) bool {
	if l.Queue.Empty() {
		return false
	}
	cell := l.Queue.PeekHead()
	if cell.EOT() {
		return false
	}
	if l.ReprintPending {
		l.reprint(env)
	}
	cell = l.Queue.PopHead()
	if l.Termios.Lflag&wire.ECHOE != 0 {
		for n := cell.Len(); n > 0; n-- {
			l.rawEcho(env, '\b')
			l.rawEcho(env, ' ')
			l.rawEcho(env, '\b')
		}
	}
	return true
}

// reprint (VREPRINT, or an echo that was clobbered by interleaved output)
// walks back to the last line break and re-echoes everything after it,
// refreshing each cell's stored echo length.
func (l *Line) reprint(env *Env) {
	l.ReprintPending = false

	count := l.Queue.Count()
	start := l.Queue.LastEOTOffset() + 1
	if start == count {
		return // nothing typed since the last line break
	}

	l.echo(env, l.Termios.Cc[wire.VREPRINT])
	l.rawEcho(env, '\r')
	l.rawEcho(env, '\n')

	for i := start; i < count; i++ {
		l.Queue.SetAt(i, l.echoCell(env, l.Queue.At(i)))
	}
}
