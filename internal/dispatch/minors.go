package dispatch

import "github.com/behrlich/ttyline/internal/constants"

// lineKind mirrors line.Kind without importing internal/line, so the
// minor-mapping table can be unit tested on its own.
type lineKind int

const (
	kindConsole lineKind = iota
	kindSerial
	kindPTYSlave
	kindPTYMaster
)

// resolved is what minorToIndex returns: which table slot a minor maps
// to, whether it's the master side of a pty pair, and whether the minor
// is the console's write-only "log" alias for that same slot.
type resolved struct {
	index    int
	kind     lineKind
	isMaster bool
	viaLog   bool
	ok       bool
}

// minorToIndex resolves a minor number to its table slot: console, then
// log (aliases console 0), then serial, then pty slave, then pty master
// (aliasing the same table slot as its paired slave).
func minorToIndex(minor int) resolved {
	consoleBase := constants.ConsMinorBase
	if k := minor - consoleBase; k >= 0 && k < constants.NCONS {
		return resolved{index: k, kind: kindConsole, ok: true}
	}
	if minor == constants.LogMinor {
		return resolved{index: 0, kind: kindConsole, viaLog: true, ok: true}
	}
	if k := minor - constants.RS232MinorBase; k >= 0 && k < constants.NSERIAL {
		return resolved{index: constants.NCONS + k, kind: kindSerial, ok: true}
	}
	if k := minor - constants.TTYPXMinorBase; k >= 0 && k < constants.NPTY {
		return resolved{index: constants.NCONS + constants.NSERIAL + k, kind: kindPTYSlave, ok: true}
	}
	if k := minor - constants.PTYPXMinorBase; k >= 0 && k < constants.NPTY {
		return resolved{index: constants.NCONS + constants.NSERIAL + k, kind: kindPTYMaster, isMaster: true, ok: true}
	}
	return resolved{ok: false}
}

// lineCount is the fixed size of the line table this mapping addresses.
func lineCount() int {
	return constants.NCONS + constants.NSERIAL + constants.NPTY
}
