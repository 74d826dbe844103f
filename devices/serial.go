package devices

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"github.com/behrlich/ttyline/internal/line"
)

// Serial wraps a real tty device node (a UART, a USB serial adapter) as a
// Device: raw bytes read from the fd feed the input processor, writer
// bytes go out the fd, and setattr lands on the hardware via TCSETS.
type Serial struct {
	fd   int
	path string
	line *line.Line
	env  *line.Env

	// txPending holds processed output the fd refused (transmit buffer
	// full); it goes out first on the next pass.
	txPending []byte
}

// OpenSerial opens path nonblocking, without becoming its controlling
// terminal, and disables the kernel's own line discipline on the fd so
// this one is the only cook.
func OpenSerial(path string) (*Serial, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NONBLOCK|unix.O_NOCTTY, 0)
	if err != nil {
		return nil, fmt.Errorf("devices: open %s: %w", path, err)
	}

	raw, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("devices: tcgetattr %s: %w", path, err)
	}
	raw.Iflag &^= unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON | unix.IXOFF
	raw.Oflag &^= unix.OPOST
	raw.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	raw.Cc[unix.VMIN] = 0
	raw.Cc[unix.VTIME] = 0
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, raw); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("devices: tcsetattr %s: %w", path, err)
	}

	return &Serial{fd: fd, path: path}, nil
}

// Bind implements line.DeviceBinder.
func (s *Serial) Bind(l *line.Line, env *line.Env) {
	s.line = l
	s.env = env
}

// Pump polls the fd for input and invokes wake (typically Server.Kick)
// whenever bytes arrive, standing in for the UART interrupt. Run it on
// its own goroutine; it returns when ctx is done.
func (s *Serial) Pump(ctx context.Context, wake func()) {
	fds := []unix.PollFd{{Fd: int32(s.fd), Events: unix.POLLIN}}
	for ctx.Err() == nil {
		fds[0].Revents = 0
		n, err := unix.Poll(fds, 200)
		if err != nil && err != unix.EINTR {
			return
		}
		if n > 0 && fds[0].Revents&unix.POLLIN != 0 {
			if s.line != nil {
				s.line.SetEvents()
			}
			wake()
			// Give the dispatcher a beat to drain before re-polling the
			// same readiness.
			time.Sleep(time.Millisecond)
		}
	}
}

// DevRead pulls whatever the fd has buffered into the input processor.
func (s *Serial) DevRead(probe bool) bool {
	if probe {
		fds := []unix.PollFd{{Fd: int32(s.fd), Events: unix.POLLIN}}
		n, err := unix.Poll(fds, 0)
		return err == nil && n > 0
	}
	if s.line == nil {
		return false
	}
	var buf [256]byte
	got := false
	for {
		n, err := unix.Read(s.fd, buf[:])
		if n <= 0 || err != nil {
			break
		}
		consumed := s.line.InProcess(s.env, buf[:n])
		got = got || consumed > 0
		if consumed < n {
			break // queue full in raw mode; drop what the queue refused
		}
	}
	return got
}

// DevWrite pushes writer-slot bytes out the fd, stopping on a short
// write (the UART's transmit buffer is full; the next interrupt resumes).
func (s *Serial) DevWrite(probe bool) bool {
	if s.line == nil {
		return false
	}
	if probe {
		return !s.line.Inhibited
	}
	if s.line.Inhibited {
		return false
	}
	if !s.flushPending() {
		return false
	}
	w := &s.line.Writer
	progressed := false
	var buf [512]byte
	for w.Active && w.Leftover > 0 {
		chunk := w.Leftover
		if chunk > 64 {
			chunk = 64
		}
		copied := copy(buf[:], w.Buf[w.Cumulative:w.Cumulative+chunk])
		_, iUsed, oUsed := s.line.OutProcess(buf[:], 0, len(buf), 0, copied, len(buf))
		if iUsed == 0 {
			break
		}
		n, err := unix.Write(s.fd, buf[:oUsed])
		if n < 0 || (err != nil && err != unix.EAGAIN) {
			break
		}
		if n < oUsed {
			// Transmit buffer full; the input side of the chunk is
			// consumed, the unsent processed tail waits its turn.
			s.txPending = append(s.txPending, buf[n:oUsed]...)
		}
		w.Cumulative += iUsed
		w.Leftover -= iUsed
		progressed = true
		if len(s.txPending) > 0 {
			break
		}
	}
	return progressed
}

// flushPending retries output the fd previously refused. Reports whether
// the backlog is gone.
func (s *Serial) flushPending() bool {
	for len(s.txPending) > 0 {
		n, err := unix.Write(s.fd, s.txPending)
		if n > 0 {
			s.txPending = s.txPending[n:]
		}
		if err != nil || n <= 0 {
			return false
		}
	}
	return true
}

// OCancel discards the kernel-side output buffer.
func (s *Serial) OCancel() {
	_ = unix.IoctlSetInt(s.fd, unix.TCFLSH, unix.TCOFLUSH)
}

// ICancel discards the kernel-side input buffer.
func (s *Serial) ICancel() {
	_ = unix.IoctlSetInt(s.fd, unix.TCFLSH, unix.TCIFLUSH)
}

// IOCtl applies the line's current termios to the hardware. Speeds and
// character size come through unchanged; the line discipline flags stay
// off because this module does the cooking.
func (s *Serial) IOCtl() error {
	if s.line == nil {
		return nil
	}
	raw, err := unix.IoctlGetTermios(s.fd, unix.TCGETS)
	if err != nil {
		return err
	}
	raw.Cflag = s.line.Termios.Cflag
	raw.Ispeed = s.line.Termios.Ispeed
	raw.Ospeed = s.line.Termios.Ospeed
	return unix.IoctlSetTermios(s.fd, unix.TCSETS, raw)
}

// Echo transmits a single echoed byte.
func (s *Serial) Echo(ch byte) {
	_, _ = unix.Write(s.fd, []byte{ch})
}

// Break asserts a BREAK condition for the kernel's default duration.
func (s *Serial) Break() {
	_ = unix.IoctlSetInt(s.fd, unix.TCSBRK, 0)
}

// Close releases the fd.
func (s *Serial) Close() error {
	return unix.Close(s.fd)
}
