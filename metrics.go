package ttyline

import (
	"sync/atomic"
	"time"
)

// Metrics tracks per-server operational counters. One Metrics is shared by
// every Line; counters are line-agnostic totals, matching how the original
// source exposes a handful of global diagnostic counters rather than
// per-line statistics.
type Metrics struct {
	ReadOps   atomic.Uint64 // completed READ requests
	WriteOps  atomic.Uint64 // completed WRITE requests
	IoctlOps  atomic.Uint64 // completed IOCTL requests

	BytesIn  atomic.Uint64 // bytes accepted from writers (completed WRITEs)
	BytesOut atomic.Uint64 // bytes delivered to readers

	EchoChars  atomic.Uint64 // characters rendered by the echo engine
	SignalsRaised atomic.Uint64 // SIGINT/SIGQUIT/SIGHUP deliveries
	QueueDrops atomic.Uint64 // characters dropped because the queue was full
	Cancels    atomic.Uint64 // CANCEL requests served
	SelectWakes atomic.Uint64 // select subscribers notified after a readiness change

	StartTime atomic.Int64
	StopTime  atomic.Int64
}

// NewMetrics creates a fresh, running Metrics instance.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// Stop marks the server as stopped for uptime accounting.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time copy of Metrics, safe to hand to a
// caller without further synchronization.
type MetricsSnapshot struct {
	ReadOps, WriteOps, IoctlOps           uint64
	BytesIn, BytesOut                     uint64
	EchoChars, SignalsRaised, QueueDrops  uint64
	Cancels, SelectWakes                  uint64
	UptimeNs                              uint64
}

// Snapshot copies every counter out of m.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		ReadOps:       m.ReadOps.Load(),
		WriteOps:      m.WriteOps.Load(),
		IoctlOps:      m.IoctlOps.Load(),
		BytesIn:       m.BytesIn.Load(),
		BytesOut:      m.BytesOut.Load(),
		EchoChars:     m.EchoChars.Load(),
		SignalsRaised: m.SignalsRaised.Load(),
		QueueDrops:    m.QueueDrops.Load(),
		Cancels:       m.Cancels.Load(),
		SelectWakes:   m.SelectWakes.Load(),
	}
	start := m.StartTime.Load()
	if stop := m.StopTime.Load(); stop > 0 {
		snap.UptimeNs = uint64(stop - start)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - start)
	}
	return snap
}

// Observer is injected into the dispatcher so callers can plug in their own
// metrics backend instead of (or in addition to) Metrics.
type Observer interface {
	ObserveRead(bytes uint64, success bool)
	ObserveWrite(bytes uint64, success bool)
	ObserveEcho(chars uint64)
	ObserveSignal()
	ObserveQueueDrop()
	ObserveCancel()
	ObserveSelectWake()
}

// NoOpObserver discards everything; it is the default when no Observer is
// configured.
type NoOpObserver struct{}

func (NoOpObserver) ObserveRead(uint64, bool)  {}
func (NoOpObserver) ObserveWrite(uint64, bool) {}
func (NoOpObserver) ObserveEcho(uint64)        {}
func (NoOpObserver) ObserveSignal()            {}
func (NoOpObserver) ObserveQueueDrop()         {}
func (NoOpObserver) ObserveCancel()            {}
func (NoOpObserver) ObserveSelectWake()        {}

// MetricsObserver implements Observer on top of a Metrics instance.
type MetricsObserver struct {
	m *Metrics
}

// NewMetricsObserver wraps m as an Observer.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{m: m}
}

func (o *MetricsObserver) ObserveRead(bytes uint64, success bool) {
	o.m.ReadOps.Add(1)
	if success {
		o.m.BytesOut.Add(bytes)
	}
}

func (o *MetricsObserver) ObserveWrite(bytes uint64, success bool) {
	o.m.WriteOps.Add(1)
	if success {
		o.m.BytesIn.Add(bytes)
	}
}

func (o *MetricsObserver) ObserveEcho(chars uint64)  { o.m.EchoChars.Add(chars) }
func (o *MetricsObserver) ObserveSignal()             { o.m.SignalsRaised.Add(1) }
func (o *MetricsObserver) ObserveQueueDrop()           { o.m.QueueDrops.Add(1) }
func (o *MetricsObserver) ObserveCancel()              { o.m.Cancels.Add(1) }
func (o *MetricsObserver) ObserveSelectWake()          { o.m.SelectWakes.Add(1) }

var (
	_ Observer = (*MetricsObserver)(nil)
	_ Observer = NoOpObserver{}
)
