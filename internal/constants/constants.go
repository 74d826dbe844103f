// Package constants holds compile-time tunables for the line discipline.
package constants

import "time"

// Line table sizing. The default build has four consoles, two serial
// lines and sixteen pty pairs; NPTY counts master/slave pairs.
const (
	// NCONS is the number of virtual console lines.
	NCONS = 4
	// NSERIAL is the number of serial line lines.
	NSERIAL = 2
	// NPTY is the number of pseudo-terminal pairs (each pair is 2 minors).
	NPTY = 16
)

// QueueSize is the capacity of a Line's circular input queue, in cells.
// Must be a power of two so head/tail wrap with a mask instead of modulo.
const QueueSize = 1024

// QueueMask masks an index into [0, QueueSize).
const QueueMask = QueueSize - 1

// TabSize is the column width used to expand tabs on echo and output.
// Must be a power of two.
const TabSize = 8

// TabMask masks a column counter to its position within a tab stop.
const TabMask = TabSize - 1

// HZ is the notional scheduler tick rate. VTIME (tenths of a second) is
// converted to a wall-clock duration by timer.DeciSeconds, which does not
// go through HZ.
const HZ = 60

// TickInterval is the wall-clock duration of one HZ tick.
const TickInterval = time.Second / HZ

// MessagePortDepth is the size of the dispatcher's inbound message channel.
const MessagePortDepth = 256

// Minor-number base offsets. A minor in
// [ConsMinorBase, ConsMinorBase+NCONS) addresses a console directly;
// LogMinor addresses console 0 write-only; a minor in
// [RS232MinorBase, RS232MinorBase+NSERIAL) addresses a serial line; a
// minor in [TTYPXMinorBase, TTYPXMinorBase+NPTY) addresses a pty slave,
// and the matching offset from PTYPXMinorBase addresses that pair's
// master side.
const (
	ConsMinorBase  = 0
	LogMinor       = 63
	RS232MinorBase = 64
	TTYPXMinorBase = 128
	PTYPXMinorBase = 192
)

// StagingBufferSize is the size of the staging buffer the transfer path
// fills before it is flushed to the reader.
const StagingBufferSize = 256
