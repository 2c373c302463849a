//go:build linux

package iostream

import (
	"errors"
	"sync/atomic"
	"syscall"
	"time"
	"unsafe"

	"github.com/daedaluz/divelog/dcerr"
	"github.com/daedaluz/fdev/poll"
	ioctl "github.com/daedaluz/goioctl"
)

var (
	errUnsupportedBaud     = errors.New("unsupported baud rate")
	errUnsupportedDataBits = errors.New("unsupported data bit count")
	errUnsupportedParity   = errors.New("unsupported parity")
)

// SerialStream is a termios/ioctl-backed Stream, adapted from the
// teacher's Port (Daedaluz-goserial's port_linux.go): same fd ownership
// and ioctl plumbing, generalized to the iostream.Stream contract so
// framing and ring-extraction code never see a raw fd.
type SerialStream struct {
	fd      int
	closed  atomic.Bool
	timeout time.Duration
}

// OpenSerial opens a tty device node in raw, non-controlling mode, the way
// the teacher's Open does, and returns it ready for Configure.
func OpenSerial(path string) (*SerialStream, error) {
	fd, err := syscall.Open(path, syscall.O_RDWR|syscall.O_NOCTTY|syscall.O_NONBLOCK, 0)
	if err != nil {
		return nil, dcerr.New(dcerr.IO, "iostream.OpenSerial", err)
	}
	s := &SerialStream{fd: fd, timeout: BlockForever}
	return s, nil
}

func (s *SerialStream) getAttr() (*Termios, error) {
	attrs := &Termios{}
	if err := ioctl.Ioctl(uintptr(s.fd), tcgets, uintptr(unsafe.Pointer(attrs))); err != nil {
		return nil, dcerr.New(dcerr.IO, "iostream.SerialStream.Configure", err)
	}
	return attrs, nil
}

func (s *SerialStream) setAttr(attrs *Termios) error {
	if err := ioctl.Ioctl(uintptr(s.fd), tcsets, uintptr(unsafe.Pointer(attrs))); err != nil {
		return dcerr.New(dcerr.IO, "iostream.SerialStream.Configure", err)
	}
	return nil
}

func (s *SerialStream) Configure(cfg Config) error {
	if s.closed.Load() {
		return dcerr.New(dcerr.IO, "iostream.SerialStream.Configure", syscall.EBADF)
	}
	attrs, err := s.getAttr()
	if err != nil {
		return err
	}
	if err := attrs.apply(cfg); err != nil {
		return dcerr.New(dcerr.InvalidArgs, "iostream.SerialStream.Configure", err)
	}
	return s.setAttr(attrs)
}

func (s *SerialStream) SetTimeout(d time.Duration) error {
	s.timeout = d
	return nil
}

func (s *SerialStream) setModemBits(request uintptr, bits int32) error {
	line := bits
	if err := ioctl.Ioctl(uintptr(s.fd), request, uintptr(unsafe.Pointer(&line))); err != nil {
		return dcerr.New(dcerr.IO, "iostream.SerialStream", err)
	}
	return nil
}

func (s *SerialStream) SetDTR(on bool) error {
	if on {
		return s.setModemBits(tiocmbis, tiocmDTR)
	}
	return s.setModemBits(tiocmbic, tiocmDTR)
}

func (s *SerialStream) SetRTS(on bool) error {
	if on {
		return s.setModemBits(tiocmbis, tiocmRTS)
	}
	return s.setModemBits(tiocmbic, tiocmRTS)
}

func (s *SerialStream) SetBreak(on bool) error {
	req := tioccbrk
	if on {
		req = tiocsbrk
	}
	if err := ioctl.Ioctl(uintptr(s.fd), req, 1); err != nil {
		return dcerr.New(dcerr.IO, "iostream.SerialStream.SetBreak", err)
	}
	return nil
}

func (s *SerialStream) GetLines() (Lines, error) {
	var bits int32
	if err := ioctl.Ioctl(uintptr(s.fd), tiocmget, uintptr(unsafe.Pointer(&bits))); err != nil {
		return Lines{}, dcerr.New(dcerr.IO, "iostream.SerialStream.GetLines", err)
	}
	return Lines{
		CTS: bits&tiocmCTS != 0,
		DSR: bits&tiocmDSR != 0,
		CD:  bits&tiocmCAR != 0,
		RI:  bits&tiocmRNG != 0,
	}, nil
}

func (s *SerialStream) Poll(d time.Duration) error {
	if err := poll.WaitInput(s.fd, d); err != nil {
		return dcerr.New(dcerr.Timeout, "iostream.SerialStream.Poll", err)
	}
	return nil
}

func (s *SerialStream) Read(p []byte) (int, error) {
	if s.closed.Load() {
		return 0, dcerr.New(dcerr.IO, "iostream.SerialStream.Read", syscall.EBADF)
	}
	if s.timeout >= 0 {
		if err := poll.WaitInput(s.fd, s.timeout); err != nil {
			return 0, dcerr.New(dcerr.Timeout, "iostream.SerialStream.Read", err)
		}
	}
	n, err := syscall.Read(s.fd, p)
	if err != nil {
		return n, dcerr.New(dcerr.IO, "iostream.SerialStream.Read", err)
	}
	return n, nil
}

func (s *SerialStream) Write(p []byte) (int, error) {
	if s.closed.Load() {
		return 0, dcerr.New(dcerr.IO, "iostream.SerialStream.Write", syscall.EBADF)
	}
	n, err := syscall.Write(s.fd, p)
	if err != nil {
		return n, dcerr.New(dcerr.IO, "iostream.SerialStream.Write", err)
	}
	return n, nil
}

func (s *SerialStream) Flush() error {
	return s.Purge(PurgeBoth)
}

func (s *SerialStream) Purge(dir PurgeDirection) error {
	var queue uintptr
	switch dir {
	case PurgeInput:
		queue = 0
	case PurgeOutput:
		queue = 1
	default:
		queue = 2
	}
	if err := ioctl.Ioctl(uintptr(s.fd), tcflsh, queue); err != nil {
		return dcerr.New(dcerr.IO, "iostream.SerialStream.Purge", err)
	}
	return nil
}

func (s *SerialStream) Sleep(d time.Duration) {
	time.Sleep(d)
}

func (s *SerialStream) Available() (int, error) {
	var n int32
	if err := ioctl.Ioctl(uintptr(s.fd), fionread, uintptr(unsafe.Pointer(&n))); err != nil {
		return 0, dcerr.New(dcerr.IO, "iostream.SerialStream.Available", err)
	}
	return int(n), nil
}

// Ioctl is an escape hatch for family-specific out-of-band requests that
// don't fit the rest of the Stream contract.
func (s *SerialStream) Ioctl(request uintptr, data []byte) error {
	var ptr uintptr
	if len(data) > 0 {
		ptr = uintptr(unsafe.Pointer(&data[0]))
	}
	if err := ioctl.Ioctl(uintptr(s.fd), request, ptr); err != nil {
		return dcerr.New(dcerr.IO, "iostream.SerialStream.Ioctl", err)
	}
	return nil
}

func (s *SerialStream) Close() error {
	if !s.closed.Swap(true) {
		return syscall.Close(s.fd)
	}
	return dcerr.New(dcerr.IO, "iostream.SerialStream.Close", syscall.EBADF)
}
