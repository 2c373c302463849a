//go:build linux

package iostream

import (
	"unsafe"

	ioctl "github.com/daedaluz/goioctl"
)

// Ioctl request numbers, carried over from the teacher's ioctl_linux.go
// (Daedaluz-goserial); trimmed to the ones SerialStream and OpenLoopback
// issue, plus tcsbrk, which nothing in this package currently issues.
var (
	tcgets = uintptr(0x5401)
	tcsets = uintptr(0x5402)

	tcsbrk = uintptr(0x5409)

	tiocsbrk = uintptr(0x5427)
	tioccbrk = uintptr(0x5428)

	tcflsh = uintptr(0x540B)

	tiocmget = uintptr(0x5415)
	tiocmbis = uintptr(0x5416)
	tiocmbic = uintptr(0x5417)

	fionread = ioctl.IOR('T', 0x1B, unsafe.Sizeof(int32(0)))

	tiocgptn   = ioctl.IOR('T', 0x30, unsafe.Sizeof(uint32(0)))
	tiocsptlck = ioctl.IOW('T', 0x31, unsafe.Sizeof(int32(0)))
)

// Modem control line bits used by SetDTR/SetRTS/GetLines.
const (
	tiocmDTR = 0x002
	tiocmRTS = 0x004
	tiocmCTS = 0x020
	tiocmCAR = 0x040
	tiocmRNG = 0x080
	tiocmDSR = 0x100
)
