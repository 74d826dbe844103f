// Package interfaces defines the contracts the dispatcher and line package
// share with concrete device back-ends, kept separate from the public
// package to avoid an import cycle between devices/ and the core.
package interfaces

import "syscall"

// Device is the v-table a back-end registers for one Line: console,
// serial port, or one side of a pty pair. Every method is invoked from the
// single dispatcher goroutine and must not block.
type Device interface {
	// DevRead drains any hardware input into the input processor. probe
	// asks "would this produce data?" without consuming anything.
	DevRead(probe bool) (ready bool)

	// DevWrite consumes from the writer slot's buffer. probe asks
	// "would a write make progress right now?" without consuming.
	DevWrite(probe bool) (ready bool)

	// OCancel discards any output in flight at the hardware.
	OCancel()

	// ICancel discards any hardware-side input buffering.
	ICancel()

	// IOCtl applies the line's current termios/winsize to the hardware.
	IOCtl() error

	// Echo emits a single rendered byte to the echo sink.
	Echo(ch byte)

	// Break asserts a BREAK condition on the line, if meaningful.
	Break()

	// Close releases any hardware resources held by this device.
	Close() error
}

// MasterEndpoint is the master side of a pty pair. The dispatcher hands
// master-minor READ/WRITE/SELECT straight to these methods, bypassing the
// line discipline entirely; only IOCTL falls through to the slave's Line.
type MasterEndpoint interface {
	// MasterRead drains output the slave side has produced. Returns 0
	// when nothing is buffered.
	MasterRead(p []byte) (int, error)

	// MasterWrite feeds raw bytes toward the slave's input processor.
	MasterWrite(p []byte) (int, error)

	// MasterReady reports select readiness for the master side.
	MasterReady() (readReady, writeReady bool)
}

// ConsoleExtras is implemented by console back-ends that accept the
// keymap/font loading requests, which are opaque passthroughs here.
type ConsoleExtras interface {
	LoadKeymap(data []byte) error
	LoadFont(data []byte) error
}

// SystemNotifiee receives forwarded system signals (shutdown, termination)
// so a back-end can react to them; the console drops its queued input on
// termination.
type SystemNotifiee interface {
	SystemSignal(sig syscall.Signal)
}

// Logger is the subset of logging behavior the core depends on, so it can
// be satisfied by a caller-supplied logger without importing the concrete
// logging package.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// SignalSender delivers signals to a process group. The line discipline
// calls it instead of touching any process table directly, since process
// management lives outside this module.
type SignalSender interface {
	Kill(pgrp int32, sig syscall.Signal) error
}

// Observer mirrors the public Observer interface for internal packages
// that must not import the module root (avoiding an import cycle).
type Observer interface {
	ObserveRead(bytes uint64, success bool)
	ObserveWrite(bytes uint64, success bool)
	ObserveEcho(chars uint64)
	ObserveSignal()
	ObserveQueueDrop()
	ObserveCancel()
	ObserveSelectWake()
}
