package wire

import (
	"encoding/binary"
	"errors"
)

// Sizes of the marshaled parameter blocks an IOCTL request carries. The
// termios block matches the kernel's struct termios field order.
const (
	TermiosSize = 44
	WinsizeSize = 8
	Int32Size   = 4
)

// ErrShortPayload is returned when an ioctl parameter block is smaller
// than its request code requires.
var ErrShortPayload = errors.New("wire: ioctl payload too short")

// MarshalTermios renders t into the byte image TCGETS hands back to the
// caller's address space.
func MarshalTermios(t *Termios) []byte {
	buf := make([]byte, TermiosSize)

	binary.LittleEndian.PutUint32(buf[0:4], t.Iflag)
	binary.LittleEndian.PutUint32(buf[4:8], t.Oflag)
	binary.LittleEndian.PutUint32(buf[8:12], t.Cflag)
	binary.LittleEndian.PutUint32(buf[12:16], t.Lflag)
	buf[16] = t.Line
	copy(buf[17:17+len(t.Cc)], t.Cc[:])
	binary.LittleEndian.PutUint32(buf[36:40], t.Ispeed)
	binary.LittleEndian.PutUint32(buf[40:44], t.Ospeed)

	return buf
}

// UnmarshalTermios parses the byte image a TCSETS* request carries.
func UnmarshalTermios(data []byte, t *Termios) error {
	if len(data) < TermiosSize {
		return ErrShortPayload
	}

	t.Iflag = binary.LittleEndian.Uint32(data[0:4])
	t.Oflag = binary.LittleEndian.Uint32(data[4:8])
	t.Cflag = binary.LittleEndian.Uint32(data[8:12])
	t.Lflag = binary.LittleEndian.Uint32(data[12:16])
	t.Line = data[16]
	copy(t.Cc[:], data[17:17+len(t.Cc)])
	t.Ispeed = binary.LittleEndian.Uint32(data[36:40])
	t.Ospeed = binary.LittleEndian.Uint32(data[40:44])

	return nil
}

// MarshalWinsize renders w for TIOCGWINSZ.
func MarshalWinsize(w *Winsize) []byte {
	buf := make([]byte, WinsizeSize)

	binary.LittleEndian.PutUint16(buf[0:2], w.Row)
	binary.LittleEndian.PutUint16(buf[2:4], w.Col)
	binary.LittleEndian.PutUint16(buf[4:6], w.Xpixel)
	binary.LittleEndian.PutUint16(buf[6:8], w.Ypixel)

	return buf
}

// UnmarshalWinsize parses a TIOCSWINSZ parameter block.
func UnmarshalWinsize(data []byte, w *Winsize) error {
	if len(data) < WinsizeSize {
		return ErrShortPayload
	}

	w.Row = binary.LittleEndian.Uint16(data[0:2])
	w.Col = binary.LittleEndian.Uint16(data[2:4])
	w.Xpixel = binary.LittleEndian.Uint16(data[4:6])
	w.Ypixel = binary.LittleEndian.Uint16(data[6:8])

	return nil
}

// MarshalInt32 renders the single-int parameter TCFLSH/TCFLOW/TCSBRK and
// TIOCSPGRP carry.
func MarshalInt32(v int32) []byte {
	buf := make([]byte, Int32Size)
	binary.LittleEndian.PutUint32(buf, uint32(v))
	return buf
}

// UnmarshalInt32 parses a single-int parameter block.
func UnmarshalInt32(data []byte) (int32, error) {
	if len(data) < Int32Size {
		return 0, ErrShortPayload
	}
	return int32(binary.LittleEndian.Uint32(data)), nil
}
