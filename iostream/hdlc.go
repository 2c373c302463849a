package iostream

import (
	"time"

	"github.com/daedaluz/divelog/dcerr"
)

// HDLC byte-stuffing codes (spec §4.1, §8 P3).
const (
	hdlcEnd = 0x7E
	hdlcEsc = 0x7D
	hdlcXor = 0x20
)

// HDLCStream wraps a base Stream and presents the same contract while
// transposing the byte stream through HDLC-style framing: 0x7E delimits a
// frame, 0x7D escapes an occurrence of 0x7E or 0x7D as 0x7D (byte^0x20).
//
// The input (read-ahead) buffer is allocated once at construction and
// never resized; it exists only to batch reads from the base stream, not
// to bound frame size (frame size is bounded by len(p) passed to Read).
// There is no preallocated output buffer: Write builds each escaped frame
// in a new slice and hands it to the base stream in one call.
type HDLCStream struct {
	base   Stream
	rxBuf  []byte
	rxFill int
	rxPos  int
}

// NewHDLCStream wraps base, reserving an rxBufSize-byte read-ahead buffer.
func NewHDLCStream(base Stream, rxBufSize int) *HDLCStream {
	if rxBufSize <= 0 {
		rxBufSize = 4096
	}
	return &HDLCStream{base: base, rxBuf: make([]byte, rxBufSize)}
}

func (h *HDLCStream) Configure(cfg Config) error          { return h.base.Configure(cfg) }
func (h *HDLCStream) SetTimeout(d time.Duration) error    { return h.base.SetTimeout(d) }
func (h *HDLCStream) SetDTR(on bool) error                { return h.base.SetDTR(on) }
func (h *HDLCStream) SetRTS(on bool) error                { return h.base.SetRTS(on) }
func (h *HDLCStream) SetBreak(on bool) error               { return h.base.SetBreak(on) }
func (h *HDLCStream) GetLines() (Lines, error)             { return h.base.GetLines() }
func (h *HDLCStream) Poll(d time.Duration) error           { return h.base.Poll(d) }
func (h *HDLCStream) Flush() error                         { return h.base.Flush() }
func (h *HDLCStream) Purge(dir PurgeDirection) error       { return h.base.Purge(dir) }
func (h *HDLCStream) Sleep(d time.Duration)                { h.base.Sleep(d) }
func (h *HDLCStream) Available() (int, error)              { return h.base.Available() }
func (h *HDLCStream) Ioctl(req uintptr, data []byte) error { return h.base.Ioctl(req, data) }
func (h *HDLCStream) Close() error                         { return h.base.Close() }

func (h *HDLCStream) readByte() (byte, error) {
	if h.rxPos >= h.rxFill {
		n, err := h.base.Read(h.rxBuf)
		if err != nil {
			return 0, err
		}
		if n == 0 {
			return 0, dcerr.New(dcerr.IO, "iostream.HDLCStream", nil)
		}
		h.rxFill = n
		h.rxPos = 0
	}
	b := h.rxBuf[h.rxPos]
	h.rxPos++
	return b, nil
}

// Read decodes one HDLC frame into p, discarding bytes until the opening
// delimiter, and returns its unescaped length. Two consecutive escapes
// within one frame is a protocol error (spec §4.1).
func (h *HDLCStream) Read(p []byte) (int, error) {
	// Discard until the opening END.
	for {
		b, err := h.readByte()
		if err != nil {
			return 0, err
		}
		if b == hdlcEnd {
			break
		}
	}
	// Some senders emit back-to-back END bytes between frames; skip extras.
	n := 0
	escaped := false
	prevEscaped := false
	for {
		b, err := h.readByte()
		if err != nil {
			return 0, err
		}
		if b == hdlcEnd {
			if n == 0 {
				continue // empty frame, e.g. double delimiter; keep reading
			}
			return n, nil
		}
		if b == hdlcEsc {
			if prevEscaped {
				return 0, dcerr.New(dcerr.Protocol, "iostream.HDLCStream", nil)
			}
			escaped = true
			prevEscaped = true
			continue
		}
		if escaped {
			b ^= hdlcXor
			escaped = false
		}
		prevEscaped = false
		if n >= len(p) {
			return 0, dcerr.New(dcerr.Protocol, "iostream.HDLCStream", nil)
		}
		p[n] = b
		n++
	}
}

// Write frames p between two END bytes, escaping END/ESC occurrences.
func (h *HDLCStream) Write(p []byte) (int, error) {
	out := make([]byte, 0, len(p)+4)
	out = append(out, hdlcEnd)
	for _, b := range p {
		if b == hdlcEnd || b == hdlcEsc {
			out = append(out, hdlcEsc, b^hdlcXor)
		} else {
			out = append(out, b)
		}
	}
	out = append(out, hdlcEnd)
	if _, err := h.base.Write(out); err != nil {
		return 0, err
	}
	return len(p), nil
}
