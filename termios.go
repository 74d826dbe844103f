package ttyline

import "github.com/behrlich/ttyline/internal/wire"

// Terminal ioctl request codes, re-exported so callers drive IOCtl and
// Tcsetattr with the same vocabulary the wire layer uses.
const (
	TCGETS     = wire.TCGETS
	TCSETS     = wire.TCSETS
	TCSETSW    = wire.TCSETSW
	TCSETSF    = wire.TCSETSF
	TCDRAIN    = wire.TCDRAIN
	TCFLSH     = wire.TCFLSH
	TCXONC     = wire.TCXONC
	TCSBRK     = wire.TCSBRK
	TIOCGWINSZ = wire.TIOCGWINSZ
	TIOCSWINSZ = wire.TIOCSWINSZ
	KIOCSMAP   = wire.KIOCSMAP
	TIOCSFON   = wire.TIOCSFON
)

// TCFLSH selectors and TCXONC actions.
const (
	TCIFLUSH  = wire.TCIFLUSH
	TCOFLUSH  = wire.TCOFLUSH
	TCIOFLUSH = wire.TCIOFLUSH
	TCOOFF    = wire.TCOOFF
	TCOON     = wire.TCOON
	TCIOFF    = wire.TCIOFF
	TCION     = wire.TCION
)

// Commonly toggled termios flag bits and control-character indices.
const (
	ICANON = wire.ICANON
	ISIG   = wire.ISIG
	ECHO   = wire.ECHO
	ECHOE  = wire.ECHOE
	ECHOK  = wire.ECHOK
	ECHONL = wire.ECHONL
	IEXTEN = wire.IEXTEN
	NOFLSH = wire.NOFLSH

	ICRNL  = wire.ICRNL
	IGNCR  = wire.IGNCR
	INLCR  = wire.INLCR
	ISTRIP = wire.ISTRIP
	IXON   = wire.IXON
	IXANY  = wire.IXANY

	OPOST = wire.OPOST
	ONLCR = wire.ONLCR
	XTABS = wire.XTABS

	B0 = wire.B0

	VINTR    = wire.VINTR
	VQUIT    = wire.VQUIT
	VERASE   = wire.VERASE
	VKILL    = wire.VKILL
	VEOF     = wire.VEOF
	VEOL     = wire.VEOL
	VMIN     = wire.VMIN
	VTIME    = wire.VTIME
	VSTART   = wire.VSTART
	VSTOP    = wire.VSTOP
	VREPRINT = wire.VREPRINT
	VLNEXT   = wire.VLNEXT
)

// DefaultTermios returns the attribute block every line resets to.
func DefaultTermios() Termios { return wire.DefaultTermios() }

// DefaultWinsize returns the default window size.
func DefaultWinsize() Winsize { return wire.DefaultWinsize() }
