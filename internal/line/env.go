package line

import (
	"syscall"

	"github.com/behrlich/ttyline/internal/interfaces"
	"github.com/behrlich/ttyline/internal/timer"
)

// Env bundles the collaborators input processing, setattr, and signal
// characters need beyond the Line itself: the timer wheel shared across
// the whole line table (only one host alarm is ever outstanding), the
// process-group signal delivery collaborator, and the observer feeding
// the module's metrics.
type Env struct {
	Timer    *timer.Wheel
	Signals  interfaces.SignalSender
	Observer interfaces.Observer
}

// Obs returns the configured observer, or a no-op one, so callers never
// nil-check.
func (e *Env) Obs() interfaces.Observer { return e.observer() }

func (e *Env) observer() interfaces.Observer {
	if e == nil || e.Observer == nil {
		return noopObserver{}
	}
	return e.Observer
}

func (e *Env) timer() *timer.Wheel {
	if e == nil {
		return nil
	}
	return e.Timer
}

func (e *Env) signals() interfaces.SignalSender {
	if e == nil || e.Signals == nil {
		return noopSignaler{}
	}
	return e.Signals
}

// DeviceBinder is implemented by device back-ends that need references to
// their Line and the shared Env at registration time, so DevRead/DevWrite
// can call back into InProcess/OutProcess and the writer slot.
type DeviceBinder interface {
	Bind(l *Line, env *Env)
}

type noopObserver struct{}

func (noopObserver) ObserveRead(uint64, bool)  {}
func (noopObserver) ObserveWrite(uint64, bool) {}
func (noopObserver) ObserveEcho(uint64)        {}
func (noopObserver) ObserveSignal()            {}
func (noopObserver) ObserveQueueDrop()         {}
func (noopObserver) ObserveCancel()            {}
func (noopObserver) ObserveSelectWake()        {}

type noopSignaler struct{}

func (noopSignaler) Kill(int32, syscall.Signal) error { return nil }
