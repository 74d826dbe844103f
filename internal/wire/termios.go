// Package wire defines the fixed-layout structures and ioctl request
// numbers exchanged with the kernel terminal driver, and the defaults a
// freshly opened Line starts with, expressed through golang.org/x/sys/unix.
package wire

import "golang.org/x/sys/unix"

// Termios is the attribute block a Line carries: input/output/control/local
// flags, line discipline, speeds, and the control-character array. This is
// unix.Termios directly -- the same wire shape the kernel's TCGETS/TCSETS*
// ioctls read and write, so no marshaling step is needed at the device
// boundary.
type Termios = unix.Termios

// Winsize is the window-size block read/written by TIOCGWINSZ/TIOCSWINSZ.
type Winsize = unix.Winsize

// Control-character indices into Termios.Cc.
const (
	VINTR    = unix.VINTR
	VQUIT    = unix.VQUIT
	VERASE   = unix.VERASE
	VKILL    = unix.VKILL
	VEOF     = unix.VEOF
	VTIME    = unix.VTIME
	VMIN     = unix.VMIN
	VSTART   = unix.VSTART
	VSTOP    = unix.VSTOP
	VSUSP    = unix.VSUSP
	VEOL     = unix.VEOL
	VREPRINT = unix.VREPRINT
	VLNEXT   = unix.VLNEXT
	VEOL2    = unix.VEOL2
)

// POSIXVDisable is the value that, stored in a Cc slot, disables that
// control character's special meaning.
const POSIXVDisable = 0xff

// Input flags (Termios.Iflag).
const (
	ISTRIP = unix.ISTRIP
	ICRNL  = unix.ICRNL
	INLCR  = unix.INLCR
	IGNCR  = unix.IGNCR
	IXON   = unix.IXON
	IXANY  = unix.IXANY
	IXOFF  = unix.IXOFF
)

// Output flags (Termios.Oflag).
const (
	OPOST = unix.OPOST
	ONLCR = unix.ONLCR
	XTABS = unix.TABDLY // expand-tabs bits on the tab-delay field
)

// Control flags (Termios.Cflag).
const (
	CREAD  = unix.CREAD
	HUPCL  = unix.HUPCL
	CLOCAL = unix.CLOCAL
	CS8    = unix.CS8
	B0     = unix.B0
)

// Local flags (Termios.Lflag).
const (
	ICANON = unix.ICANON
	ISIG   = unix.ISIG
	ECHO   = unix.ECHO
	ECHOE  = unix.ECHOE
	ECHOK  = unix.ECHOK
	ECHONL = unix.ECHONL
	NOFLSH = unix.NOFLSH
	IEXTEN = unix.IEXTEN
)

// ioctl request numbers used by the dispatcher's IOCTL handler, named
// after the POSIX termios ioctl surface.
const (
	TCGETS     = unix.TCGETS
	TCSETS     = unix.TCSETS
	TCSETSW    = unix.TCSETSW
	TCSETSF    = unix.TCSETSF
	TCSBRK     = unix.TCSBRK
	TCXONC     = unix.TCXONC
	TCFLSH     = unix.TCFLSH
	TCDRAIN    = uint(0x5459) // drain output, no parameter
	TIOCGWINSZ = unix.TIOCGWINSZ
	TIOCSWINSZ = unix.TIOCSWINSZ
	TIOCGPGRP  = unix.TIOCGPGRP
	TIOCSPGRP  = unix.TIOCSPGRP
)

// Console-only extension requests: load a keymap or a font into the
// display back-end. Both are opaque passthroughs to the device layer.
const (
	KIOCSMAP = uint(0x4B03)
	TIOCSFON = uint(0x4B60)
)

// TCIOFLUSH/TCIFLUSH/TCOFLUSH select which queue(s) TCFLSH flushes.
const (
	TCIFLUSH  = unix.TCIFLUSH
	TCOFLUSH  = unix.TCOFLUSH
	TCIOFLUSH = unix.TCIOFLUSH
)

// TCOOFF/TCOON/TCIOFF/TCION are the TCFLOW arguments.
const (
	TCOOFF = unix.TCOOFF
	TCOON  = unix.TCOON
	TCIOFF = unix.TCIOFF
	TCION  = unix.TCION
)

// DefaultTermios returns the attribute block a freshly opened or just-closed
// Line resets to: canonical mode, echo on, standard control characters,
// 8-bit clean, local (no modem control signaling needed in this module).
func DefaultTermios() Termios {
	var t Termios
	t.Iflag = ICRNL
	t.Oflag = OPOST | ONLCR
	t.Cflag = CS8 | CREAD | CLOCAL
	t.Lflag = ICANON | ISIG | ECHO | ECHOE | ECHOK | IEXTEN
	t.Cc[VINTR] = 3     // ^C
	t.Cc[VQUIT] = 28    // ^\
	t.Cc[VERASE] = 127  // DEL
	t.Cc[VKILL] = 21    // ^U
	t.Cc[VEOF] = 4      // ^D
	t.Cc[VSTART] = 17   // ^Q
	t.Cc[VSTOP] = 19    // ^S
	t.Cc[VSUSP] = 26    // ^Z
	t.Cc[VREPRINT] = 18 // ^R
	t.Cc[VLNEXT] = 22   // ^V
	t.Cc[VMIN] = 1
	t.Cc[VTIME] = 0
	t.Ispeed = 38400
	t.Ospeed = 38400
	return t
}

// DefaultWinsize returns a conservative default terminal size.
func DefaultWinsize() Winsize {
	return Winsize{Row: 24, Col: 80}
}
