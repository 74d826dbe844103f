package line

import "github.com/behrlich/ttyline/internal/queue"

// InTransfer drains queued cells into the waiting reader's destination
// buffer through a small staging buffer. It only moves data; the caller
// (the READ entry point or the event loop) is responsible for checking
// Reader.Leftover afterward and replying or reviving.
func (l *Line) InTransfer() {
	if l.Hungup() {
		l.Min = 0
	}
	if l.Reader.Leftover == 0 || l.Queue.EOTCount() < l.Min {
		return
	}

	staging := queue.GetStagingBuffer()
	defer queue.PutStagingBuffer(staging)
	flush := func() {
		if len(staging) == 0 {
			return
		}
		n := copy(l.Reader.Buf[l.Reader.Cumulative:], staging)
		l.Reader.Cumulative += n
		staging = staging[:0]
	}

	for l.Reader.Leftover > 0 && l.Queue.EOTCount() > 0 {
		cell := l.Queue.Pop()
		if !cell.EOF() {
			staging = append(staging, cell.Char())
			l.Reader.Leftover--
			if len(staging) == cap(staging) {
				flush()
			}
		}
		if cell.EOT() && l.Canonical() {
			// Don't read past a line break in canonical mode.
			l.Reader.Leftover = 0
		}
	}
	flush()
}
