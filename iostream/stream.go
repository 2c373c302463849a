// Package iostream is L1 of the download engine: a byte-oriented duplex
// channel contract (spec §4.1) plus two decorators that turn a raw byte
// stream into a framed one (HDLC, SLIP) without touching the underlying
// transport's timeout/line-control semantics.
package iostream

import "time"

// Parity selects the serial parity scheme.
type Parity int

const (
	ParityNone Parity = iota
	ParityOdd
	ParityEven
	ParityMark
	ParitySpace
)

// StopBits selects one or two stop bits.
type StopBits int

const (
	StopBits1 StopBits = iota
	StopBits2
)

// FlowControl selects hardware, software, or no flow control.
type FlowControl int

const (
	FlowNone FlowControl = iota
	FlowHardware
	FlowSoftware
)

// Config is the argument to Stream.Configure: baud/bits/parity/stop/flow as
// named in spec §4.1.
type Config struct {
	Baud     int
	DataBits int
	Parity   Parity
	Stop     StopBits
	Flow     FlowControl
}

// PurgeDirection selects which queue Purge discards.
type PurgeDirection int

const (
	PurgeInput PurgeDirection = iota
	PurgeOutput
	PurgeBoth
)

// Lines reports the modem control line status returned by GetLines.
type Lines struct {
	CTS bool
	DSR bool
	CD  bool
	RI  bool
}

// Block-forever, non-blocking, and bounded timeout modes per spec §4.1.
const (
	BlockForever = time.Duration(-1)
	NonBlocking  = time.Duration(0)
)

// Stream is the byte-oriented duplex channel consumed by every higher
// layer. Implementations: SerialStream (termios/ioctl), HIDStream
// (USB-HID), and the HDLC/SLIP decorators below which wrap another Stream.
//
// Timeout modes (SetTimeout): negative blocks forever, zero is
// non-blocking, positive is a bounded deadline in wall-clock time.
type Stream interface {
	Configure(cfg Config) error
	SetTimeout(d time.Duration) error
	SetDTR(on bool) error
	SetRTS(on bool) error
	SetBreak(on bool) error
	GetLines() (Lines, error)
	Poll(d time.Duration) error
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Flush() error
	Purge(dir PurgeDirection) error
	Sleep(d time.Duration)
	Available() (int, error)
	Ioctl(request uintptr, data []byte) error
	Close() error
}
