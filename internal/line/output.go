package line

import (
	"github.com/behrlich/ttyline/internal/constants"
	"github.com/behrlich/ttyline/internal/wire"
)

// OutProcess performs CR/LF mapping and tab expansion over a circular byte
// buffer in place. buf is the backing
// array shared by the writer; bstart/bend delimit the region bpos wraps
// within. It consumes up to icount input bytes starting at bpos and
// produces up to ocount output bytes, updating the line's echo column
// modulo TAB_SIZE along the way. Returns the new bpos and the actual
// input/output counts consumed.
func (l *Line) OutProcess(buf []byte, bstart, bend, bpos, icount, ocount int) (newBpos, iUsed, oUsed int) {
	ict, oct := icount, ocount
	pos := l.Column

	advance := func(p int) int {
		p++
		if p == bend {
			p = bstart
		}
		return p
	}

loop:
	for ict > 0 {
		switch buf[bpos] {
		case '\a': // BEL
		case '\b':
			if pos > 0 {
				pos--
			}
		case '\r':
			pos = 0
		case '\n':
			if l.Termios.Oflag&(wire.OPOST|wire.ONLCR) == (wire.OPOST | wire.ONLCR) {
				// Map LF to CR+LF if there is space. The next slot in
				// the buffer is overwritten, so the pass stops here
				// either way.
				if oct >= 2 {
					buf[bpos] = '\r'
					bpos = advance(bpos)
					buf[bpos] = '\n'
					bpos = advance(bpos)
					pos = 0
					ict--
					oct -= 2
				}
				break loop
			}
			pos = 0
		case '\t':
			tablen := constants.TabSize - (pos & constants.TabMask)
			if l.Termios.Oflag&(wire.OPOST|wire.XTABS) == (wire.OPOST | wire.XTABS) {
				if oct >= tablen {
					for n := tablen; n > 0; n-- {
						buf[bpos] = ' '
						bpos = advance(bpos)
					}
					pos += tablen
					ict--
					oct -= tablen
				}
				break loop
			}
			pos += tablen
		default:
			pos++
		}
		bpos = advance(bpos)
		ict--
		oct--
	}

	l.Column = pos & constants.TabMask
	return bpos, icount - ict, ocount - oct
}
