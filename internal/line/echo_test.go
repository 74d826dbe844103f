package line

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/behrlich/ttyline/internal/queue"
	"github.com/behrlich/ttyline/internal/wire"
)

func TestEchoControlCharAsCaret(t *testing.T) {
	l, dev, env := newTestLine()

	cell := l.echoCell(env, queue.NewCell(0x01, 0, false, false, false))

	assert.Equal(t, []byte("^A"), dev.echoed)
	assert.Equal(t, 2, cell.Len())
}

func TestEchoDELAsCaretQuestion(t *testing.T) {
	l, dev, env := newTestLine()

	cell := l.echoCell(env, queue.NewCell(0x7F, 0, false, false, false))

	assert.Equal(t, []byte("^?"), dev.echoed)
	assert.Equal(t, 2, cell.Len())
}

func TestEchoPrintableVerbatim(t *testing.T) {
	l, dev, env := newTestLine()

	cell := l.echoCell(env, queue.NewCell('x', 0, false, false, false))

	assert.Equal(t, []byte("x"), dev.echoed)
	assert.Equal(t, 1, cell.Len())
	assert.Equal(t, 1, l.Column)
}

func TestEchoTabAlignsToTabStop(t *testing.T) {
	l, dev, env := newTestLine()

	// Three printables first, so the tab has 5 columns to the next stop.
	for _, ch := range []byte("abc") {
		l.echoCell(env, queue.NewCell(ch, 0, false, false, false))
	}
	dev.echoed = nil

	cell := l.echoCell(env, queue.NewCell('\t', 0, false, false, false))

	assert.Equal(t, []byte("     "), dev.echoed)
	assert.Equal(t, 5, cell.Len())
	assert.Equal(t, 8, l.Column)
}

func TestEchoOffStaysSilent(t *testing.T) {
	l, dev, env := newTestLine()
	l.Termios.Lflag &^= wire.ECHO

	l.echoCell(env, queue.NewCell('x', 0, false, false, false))
	assert.Empty(t, dev.echoed)
}

func TestEchoNLWithEchoOff(t *testing.T) {
	l, dev, env := newTestLine()
	l.Termios.Lflag &^= wire.ECHO
	l.Termios.Lflag |= wire.ECHONL

	l.echoCell(env, queue.NewCell('\n', 0, true, false, false))
	assert.Equal(t, []byte("\n"), dev.echoed, "ECHONL echoes the newline even with ECHO off")

	dev.echoed = nil
	l.echoCell(env, queue.NewCell('x', 0, false, false, false))
	assert.Empty(t, dev.echoed, "only the newline gets through")
}

func TestBackOverErasesTabWidth(t *testing.T) {
	l, dev, env := newTestLine()

	l.InProcess(env, []byte("a\t"))
	dev.echoed = nil
	l.InProcess(env, []byte{l.Termios.Cc[wire.VERASE]})

	// The tab echoed 7 columns from column 1; erasing emits 7 triplets.
	require.Equal(t, []byte("a"), queuedChars(l))
	assert.Len(t, dev.echoed, 7*3)
}

func TestBackOverOnEmptyQueue(t *testing.T) {
	l, dev, env := newTestLine()

	assert.False(t, l.backOver(env))
	assert.Empty(t, dev.echoed)
}

func TestReprintPendingTriggersOnErase(t *testing.T) {
	l, dev, env := newTestLine()

	l.InProcess(env, []byte("ab"))
	l.ReprintPending = true // output interleaved with the typed line
	dev.echoed = nil

	l.InProcess(env, []byte{l.Termios.Cc[wire.VERASE]})

	// The erase first replays the messed-up line, then erases over it.
	assert.Equal(t, []byte("^R\r\nab"), dev.echoed[:6])
	assert.False(t, l.ReprintPending)
}
