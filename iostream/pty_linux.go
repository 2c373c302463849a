//go:build linux

package iostream

import (
	"fmt"
	"syscall"
	"unsafe"

	"github.com/daedaluz/divelog/dcerr"
	ioctl "github.com/daedaluz/goioctl"
)

// OpenLoopback opens a pseudoterminal pair and wraps each end as a
// SerialStream, carried over from the teacher's pty_linux.go (OpenPTY).
// Tests use it to exercise framing/families against a real tty pair
// instead of the in-memory stub stream.
func OpenLoopback() (master, slave *SerialStream, err error) {
	fd, err := syscall.Open("/dev/ptmx", syscall.O_RDWR|syscall.O_NOCTTY|syscall.O_NONBLOCK, 0)
	if err != nil {
		return nil, nil, dcerr.New(dcerr.IO, "iostream.OpenLoopback", err)
	}
	var locked int32
	if err := ioctl.Ioctl(uintptr(fd), tiocsptlck, uintptr(unsafe.Pointer(&locked))); err != nil {
		syscall.Close(fd)
		return nil, nil, dcerr.New(dcerr.IO, "iostream.OpenLoopback", err)
	}
	var ptn uint32
	if err := ioctl.Ioctl(uintptr(fd), tiocgptn, uintptr(unsafe.Pointer(&ptn))); err != nil {
		syscall.Close(fd)
		return nil, nil, dcerr.New(dcerr.IO, "iostream.OpenLoopback", err)
	}
	slaveFd, err := syscall.Open(fmt.Sprintf("/dev/pts/%d", ptn), syscall.O_RDWR|syscall.O_NOCTTY|syscall.O_NONBLOCK, 0)
	if err != nil {
		syscall.Close(fd)
		return nil, nil, dcerr.New(dcerr.IO, "iostream.OpenLoopback", err)
	}
	master = &SerialStream{fd: fd, timeout: BlockForever}
	slave = &SerialStream{fd: slaveFd, timeout: BlockForever}
	return master, slave, nil
}
