package line

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/behrlich/ttyline/internal/wire"
)

func TestOutProcessNLBecomesCRNL(t *testing.T) {
	l, _, _ := newTestLine()

	buf := make([]byte, 16)
	copy(buf, "A\nB")
	bpos, iUsed, oUsed := l.OutProcess(buf, 0, len(buf), 0, 3, len(buf))

	// The LF rewrite stops processing because the buffer shape changed.
	assert.Equal(t, 2, iUsed)
	assert.Equal(t, 3, oUsed)
	assert.Equal(t, 3, bpos)
	assert.Equal(t, []byte("A\r\n"), buf[:3])

	// The LF went into the slot that held 'B', so the caller resumes by
	// re-copying the unconsumed input from its source, as the device
	// back-ends do.
	buf[bpos] = 'B'
	bpos, iUsed, oUsed = l.OutProcess(buf, 0, len(buf), bpos, 1, len(buf)-3)
	assert.Equal(t, 1, iUsed)
	assert.Equal(t, 1, oUsed)
	assert.Equal(t, byte('B'), buf[3])
	_ = bpos
}

func TestOutProcessNLStopsWithoutRoom(t *testing.T) {
	l, _, _ := newTestLine()

	buf := make([]byte, 4)
	copy(buf, "A\n")
	_, iUsed, oUsed := l.OutProcess(buf, 0, len(buf), 0, 2, 2)

	assert.Equal(t, 1, iUsed, "processing stops before the LF when fewer than 2 slots remain")
	assert.Equal(t, 1, oUsed)
	assert.Equal(t, byte('A'), buf[0])
	assert.Equal(t, byte('\n'), buf[1], "the unprocessed LF stays in place")
}

func TestOutProcessTabExpansion(t *testing.T) {
	l, _, _ := newTestLine()
	l.Termios.Oflag |= wire.XTABS

	buf := make([]byte, 16)
	copy(buf, "a\tb")
	_, iUsed, oUsed := l.OutProcess(buf, 0, len(buf), 0, 3, len(buf))

	assert.Equal(t, 2, iUsed, "tab expansion stops the pass like the LF rewrite does")
	assert.Equal(t, 8, oUsed)
	assert.Equal(t, []byte("a       "), buf[:8], "tab from column 1 expands to 7 spaces")
}

func TestOutProcessTabNeedsRoom(t *testing.T) {
	l, _, _ := newTestLine()
	l.Termios.Oflag |= wire.XTABS

	buf := make([]byte, 16)
	copy(buf, "\t")
	_, iUsed, oUsed := l.OutProcess(buf, 0, len(buf), 0, 1, 4)

	assert.Equal(t, 0, iUsed, "a tab needing 8 columns does not fit in 4 output slots")
	assert.Equal(t, 0, oUsed)
}

func TestOutProcessColumnTracking(t *testing.T) {
	l, _, _ := newTestLine()
	l.Termios.Oflag = 0 // no OPOST: everything passes through literally

	buf := make([]byte, 16)
	copy(buf, "ab\rc")
	_, iUsed, _ := l.OutProcess(buf, 0, len(buf), 0, 4, len(buf))

	assert.Equal(t, 4, iUsed)
	assert.Equal(t, 1, l.Column, "CR resets the column, then c advances it")
	assert.Equal(t, []byte("ab\rc"), buf[:4], "no OPOST: bytes unchanged")
}

func TestOutProcessBackspaceAndBell(t *testing.T) {
	l, _, _ := newTestLine()
	l.Termios.Oflag = 0

	buf := make([]byte, 8)
	copy(buf, "ab\b\a")
	_, iUsed, _ := l.OutProcess(buf, 0, len(buf), 0, 4, len(buf))

	assert.Equal(t, 4, iUsed)
	assert.Equal(t, 1, l.Column, "BS steps back one column, BEL doesn't move")
}

func TestOutProcessWrapsCircularBuffer(t *testing.T) {
	l, _, _ := newTestLine()
	l.Termios.Oflag = 0

	buf := make([]byte, 4)
	buf[2], buf[3] = 'a', 'b'
	bpos, iUsed, _ := l.OutProcess(buf, 0, len(buf), 2, 2, len(buf))

	assert.Equal(t, 2, iUsed)
	assert.Equal(t, 0, bpos, "position wraps back to bstart")
}
