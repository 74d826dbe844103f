package ttyline

import "github.com/behrlich/ttyline/internal/constants"

// Re-exported tunables for callers that embed this module rather than run
// cmd/ttyd directly.
const (
	DefaultNumConsoles  = constants.NCONS
	DefaultNumSerial    = constants.NSERIAL
	DefaultNumPTYPairs  = constants.NPTY
	QueueSize           = constants.QueueSize
	TabSize             = constants.TabSize
	HZ                  = constants.HZ
	MessagePortDepth    = constants.MessagePortDepth
)

// Minor-number bases, re-exported so callers can address lines without
// reaching into internal packages.
const (
	FirstConsoleMinor   = constants.ConsMinorBase
	LogMinor            = constants.LogMinor
	FirstSerialMinor    = constants.RS232MinorBase
	FirstPTYMinor       = constants.TTYPXMinorBase
	FirstPTYMasterMinor = constants.PTYPXMinorBase
)
