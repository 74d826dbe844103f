// Package devices holds the concrete back-ends a Server registers per
// line: an in-memory console renderer, a pseudo-terminal pair, and a
// serial port wrapping a real tty device node.
package devices

import (
	"io"
	"sync"
	"syscall"

	"github.com/behrlich/ttyline/internal/line"
)

// Console renders a line's echo and output to an io.Writer sink and
// accepts keyboard input via Feed. It carries the keymap/font loading
// extensions so the console-only ioctls have somewhere to land.
type Console struct {
	mu      sync.Mutex
	line    *line.Line
	env     *line.Env
	out     io.Writer
	pending []byte
	wake    func()

	keymap []byte
	font   []byte
}

// NewConsole creates a console rendering to out.
func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

// Bind implements line.DeviceBinder.
func (c *Console) Bind(l *line.Line, env *line.Env) {
	c.line = l
	c.env = env
}

// SetWake installs the callback Feed uses to wake the dispatcher,
// typically Server.Kick.
func (c *Console) SetWake(wake func()) { c.wake = wake }

// Feed queues keyboard bytes and wakes the dispatcher. Safe from any
// goroutine; this is what a keyboard interrupt handler would call.
func (c *Console) Feed(p []byte) {
	c.mu.Lock()
	c.pending = append(c.pending, p...)
	c.mu.Unlock()
	if c.line != nil {
		c.line.SetEvents()
	}
	if c.wake != nil {
		c.wake()
	}
}

// DevRead drains queued keyboard input into the input processor.
func (c *Console) DevRead(probe bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if probe {
		return len(c.pending) > 0
	}
	if len(c.pending) == 0 || c.line == nil {
		return false
	}
	n := c.line.InProcess(c.env, c.pending)
	c.pending = c.pending[n:]
	return n > 0
}

// DevWrite consumes the writer slot, running output processing over each
// chunk and rendering the result to the sink. The display itself never
// blocks, so the only thing that stops a console write is flow control.
func (c *Console) DevWrite(probe bool) bool {
	if c.line == nil {
		return false
	}
	if probe {
		return !c.line.Inhibited
	}
	if c.line.Inhibited {
		return false
	}
	w := &c.line.Writer
	progressed := false
	var buf [512]byte
	for w.Active && w.Leftover > 0 {
		chunk := w.Leftover
		if chunk > 64 {
			chunk = 64 // leave room for tab expansion in buf
		}
		copied := copy(buf[:], w.Buf[w.Cumulative:w.Cumulative+chunk])
		_, iUsed, oUsed := c.line.OutProcess(buf[:], 0, len(buf), 0, copied, len(buf))
		if iUsed == 0 {
			break
		}
		if c.out != nil {
			_, _ = c.out.Write(buf[:oUsed])
		}
		w.Cumulative += iUsed
		w.Leftover -= iUsed
		progressed = true
	}
	return progressed
}

// OCancel has nothing buffered to discard; the sink already consumed
// everything handed to it.
func (c *Console) OCancel() {}

// ICancel drops queued keyboard input.
func (c *Console) ICancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = nil
}

// IOCtl is a no-op: the rendered console has no hardware registers to
// program.
func (c *Console) IOCtl() error { return nil }

// Echo renders a single echoed byte.
func (c *Console) Echo(ch byte) {
	if c.out != nil {
		_, _ = c.out.Write([]byte{ch})
	}
}

// Break is meaningless on a console.
func (c *Console) Break() {}

// Close releases nothing; the console outlives opens.
func (c *Console) Close() error { return nil }

// LoadKeymap stores a keymap image (KIOCSMAP passthrough).
func (c *Console) LoadKeymap(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keymap = append([]byte(nil), data...)
	return nil
}

// LoadFont stores a font image (TIOCSFON passthrough).
func (c *Console) LoadFont(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.font = append([]byte(nil), data...)
	return nil
}

// SystemSignal drops queued input on termination so a dying system's
// keystrokes don't replay into whatever reads the console next.
func (c *Console) SystemSignal(sig syscall.Signal) {
	if sig == syscall.SIGTERM {
		c.ICancel()
	}
}
