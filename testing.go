package ttyline

import (
	"sync"
	"syscall"

	"github.com/behrlich/ttyline/internal/line"
)

// MockDevice is a Device implementation for tests: input is injected with
// Feed, echo and output are captured in memory, and method calls are
// tracked for verification. It also serves as the master endpoint of a
// mocked pty pair, so the same double covers slave and master minors.
type MockDevice struct {
	mu sync.Mutex

	line *line.Line
	env  *line.Env

	pending []byte // raw input waiting for DevRead
	echoed  []byte // bytes the echo engine emitted
	output  []byte // processed output the writer slot produced

	// WriteChunk bounds how many writer bytes one DevWrite pass consumes;
	// 0 means "everything". Setting it exercises suspended writers.
	WriteChunk int

	closed     bool
	brokeCount int
	readCalls  int
	writeCalls int
	ioctlCalls int
	icancels   int
	ocancels   int
}

// NewMockDevice creates an unbound MockDevice; RegisterDevice binds it.
func NewMockDevice() *MockDevice {
	return &MockDevice{}
}

// Bind implements line.DeviceBinder.
func (m *MockDevice) Bind(l *line.Line, env *line.Env) {
	m.line = l
	m.env = env
}

// Feed queues raw bytes as if the hardware had received them and marks
// the line as having events. Follow with Server.Kick (or Interrupt) so
// the dispatcher notices. Safe from any goroutine.
func (m *MockDevice) Feed(p []byte) {
	m.mu.Lock()
	m.pending = append(m.pending, p...)
	m.mu.Unlock()
	if m.line != nil {
		m.line.SetEvents()
	}
}

// DevRead drains pending raw input into the input processor. The mutex
// is dropped around InProcess because the echo engine calls back into
// Echo on this same device.
func (m *MockDevice) DevRead(probe bool) bool {
	m.mu.Lock()
	if probe {
		defer m.mu.Unlock()
		return len(m.pending) > 0
	}
	m.readCalls++
	pending := m.pending
	m.mu.Unlock()

	if len(pending) == 0 || m.line == nil {
		return false
	}
	n := m.line.InProcess(m.env, pending)

	m.mu.Lock()
	m.pending = m.pending[n:]
	m.mu.Unlock()
	return n > 0
}

// DevWrite consumes the line's writer slot into the captured output,
// running the output processor over each chunk. Honors flow-control
// inhibition.
func (m *MockDevice) DevWrite(probe bool) bool {
	if m.line == nil {
		return false
	}
	if probe {
		return !m.line.Inhibited
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeCalls++
	if m.line.Inhibited {
		return false
	}
	w := &m.line.Writer
	progressed := false
	for w.Active && w.Leftover > 0 {
		chunk := w.Leftover
		if m.WriteChunk > 0 && chunk > m.WriteChunk {
			chunk = m.WriteChunk
		}
		// Scratch sized for worst-case tab expansion of the chunk.
		buf := make([]byte, chunk*8+2)
		copied := copy(buf, w.Buf[w.Cumulative:w.Cumulative+chunk])
		_, iUsed, oUsed := m.line.OutProcess(buf, 0, len(buf), 0, copied, len(buf))
		if iUsed == 0 {
			break
		}
		m.output = append(m.output, buf[:oUsed]...)
		w.Cumulative += iUsed
		w.Leftover -= iUsed
		progressed = true
		if m.WriteChunk > 0 {
			break // one bounded chunk per pass
		}
	}
	return progressed
}

// OCancel counts output cancellations.
func (m *MockDevice) OCancel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ocancels++
}

// ICancel drops any pending raw input.
func (m *MockDevice) ICancel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.icancels++
	m.pending = nil
}

// IOCtl records that the line's attributes were (re)applied.
func (m *MockDevice) IOCtl() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ioctlCalls++
	return nil
}

// Echo captures one echoed byte.
func (m *MockDevice) Echo(ch byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.echoed = append(m.echoed, ch)
}

// Break counts BREAK assertions.
func (m *MockDevice) Break() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.brokeCount++
}

// Close marks the device released.
func (m *MockDevice) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// MasterRead drains captured output, acting as the master side of a pty.
func (m *MockDevice) MasterRead(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := copy(p, m.output)
	m.output = m.output[n:]
	return n, nil
}

// MasterWrite feeds raw bytes toward the slave's input processor.
func (m *MockDevice) MasterWrite(p []byte) (int, error) {
	m.mu.Lock()
	m.pending = append(m.pending, p...)
	m.mu.Unlock()
	if m.line != nil {
		m.line.SetEvents()
	}
	return len(p), nil
}

// MasterReady reports master-side select readiness.
func (m *MockDevice) MasterReady() (bool, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.output) > 0, true
}

// Echoed returns a copy of everything the echo engine emitted.
func (m *MockDevice) Echoed() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.echoed...)
}

// Output returns a copy of the processed output the writer produced.
func (m *MockDevice) Output() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.output...)
}

// Closed reports whether Close was called.
func (m *MockDevice) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Calls returns the DevRead/DevWrite/IOCtl call counts.
func (m *MockDevice) Calls() (reads, writes, ioctls int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readCalls, m.writeCalls, m.ioctlCalls
}

// Breaks returns how many BREAK conditions were asserted.
func (m *MockDevice) Breaks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.brokeCount
}

// Cancels returns the input/output cancel counts.
func (m *MockDevice) Cancels() (icancels, ocancels int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.icancels, m.ocancels
}

// CountingSignals is a SignalSender double recording every delivery.
type CountingSignals struct {
	mu    sync.Mutex
	calls []SignalDelivery
}

// SignalDelivery is one recorded Kill call.
type SignalDelivery struct {
	PGRP int32
	Sig  syscall.Signal
}

// Kill implements SignalSender.
func (c *CountingSignals) Kill(pgrp int32, sig syscall.Signal) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, SignalDelivery{PGRP: pgrp, Sig: sig})
	return nil
}

// Deliveries returns a copy of the recorded signal deliveries.
func (c *CountingSignals) Deliveries() []SignalDelivery {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]SignalDelivery(nil), c.calls...)
}
