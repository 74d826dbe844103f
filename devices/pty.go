package devices

import (
	"sync"

	"github.com/behrlich/ttyline/internal/line"
)

// ptyBufferSize bounds the slave-to-master output buffer. A full buffer
// suspends slave writers until the master drains it, which is what gives
// a pty pair real backpressure.
const ptyBufferSize = 4096

// PTY is one pseudo-terminal pair: the slave side is a Device registered
// on a slave minor, the master side is the MasterEndpoint the dispatcher
// delegates master-minor requests to. Master writes become slave input;
// slave output (and echo) accumulates for master reads.
type PTY struct {
	mu   sync.Mutex
	line *line.Line
	env  *line.Env
	wake func()

	toSlave  []byte // master wrote, slave input processor consumes
	toMaster []byte // slave produced, master reads; capped at ptyBufferSize
}

// NewPTY creates an unbound pty pair.
func NewPTY() *PTY {
	return &PTY{}
}

// Bind implements line.DeviceBinder.
func (p *PTY) Bind(l *line.Line, env *line.Env) {
	p.line = l
	p.env = env
}

// SetWake installs the dispatcher wake callback used after master-side
// operations change buffer state.
func (p *PTY) SetWake(wake func()) { p.wake = wake }

// DevRead drains master-written bytes into the slave's input processor.
// The mutex is dropped around InProcess because echo re-enters this
// device through Echo.
func (p *PTY) DevRead(probe bool) bool {
	p.mu.Lock()
	if probe {
		defer p.mu.Unlock()
		return len(p.toSlave) > 0
	}
	pending := p.toSlave
	p.mu.Unlock()

	if len(pending) == 0 || p.line == nil {
		return false
	}
	n := p.line.InProcess(p.env, pending)

	p.mu.Lock()
	p.toSlave = p.toSlave[n:]
	p.mu.Unlock()
	return n > 0
}

// DevWrite moves writer-slot bytes through output processing into the
// master-facing buffer, stopping when the buffer is full so the writer
// suspends until the master reads.
func (p *PTY) DevWrite(probe bool) bool {
	if p.line == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	room := ptyBufferSize - len(p.toMaster)
	if probe {
		return !p.line.Inhibited && room > 0
	}
	if p.line.Inhibited {
		return false
	}
	w := &p.line.Writer
	progressed := false
	var buf [512]byte
	for w.Active && w.Leftover > 0 && room > 8 {
		chunk := w.Leftover
		if chunk > 64 {
			chunk = 64
		}
		if chunk*8 > room {
			chunk = room / 8
		}
		if chunk == 0 {
			break
		}
		copied := copy(buf[:], w.Buf[w.Cumulative:w.Cumulative+chunk])
		_, iUsed, oUsed := p.line.OutProcess(buf[:], 0, len(buf), 0, copied, len(buf))
		if iUsed == 0 {
			break
		}
		p.toMaster = append(p.toMaster, buf[:oUsed]...)
		room = ptyBufferSize - len(p.toMaster)
		w.Cumulative += iUsed
		w.Leftover -= iUsed
		progressed = true
	}
	return progressed
}

// OCancel discards output buffered for the master.
func (p *PTY) OCancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.toMaster = nil
}

// ICancel discards input the master wrote but the slave hasn't consumed.
func (p *PTY) ICancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.toSlave = nil
}

// IOCtl has no hardware to program.
func (p *PTY) IOCtl() error { return nil }

// Echo appends one echoed byte to the master-facing buffer.
func (p *PTY) Echo(ch byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.toMaster) < ptyBufferSize {
		p.toMaster = append(p.toMaster, ch)
	}
}

// Break is meaningless on a pty.
func (p *PTY) Break() {}

// Close discards both directions.
func (p *PTY) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.toSlave = nil
	p.toMaster = nil
	return nil
}

// MasterRead drains slave output toward the master. Freed buffer space
// may unblock a suspended slave writer, so the line is re-marked for
// events and the dispatcher woken.
func (p *PTY) MasterRead(buf []byte) (int, error) {
	p.mu.Lock()
	n := copy(buf, p.toMaster)
	p.toMaster = p.toMaster[n:]
	p.mu.Unlock()
	if n > 0 && p.line != nil {
		p.line.SetEvents()
		if p.wake != nil {
			p.wake()
		}
	}
	return n, nil
}

// MasterWrite queues raw bytes for the slave's input processor.
func (p *PTY) MasterWrite(buf []byte) (int, error) {
	p.mu.Lock()
	p.toSlave = append(p.toSlave, buf...)
	p.mu.Unlock()
	if p.line != nil {
		p.line.SetEvents()
	}
	return len(buf), nil
}

// MasterReady reports master-side readiness: readable when the slave has
// produced output, writable while the slave-input buffer isn't absurd.
func (p *PTY) MasterReady() (bool, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.toMaster) > 0, len(p.toSlave) < ptyBufferSize
}
