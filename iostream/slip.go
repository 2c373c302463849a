package iostream

import (
	"time"

	"github.com/daedaluz/divelog/dcerr"
)

// SLIP byte-stuffing codes (spec §4.1, §8 P3).
const (
	slipEnd    = 0xC0
	slipEsc    = 0xDB
	slipEscEnd = 0xDC
	slipEscEsc = 0xDD
)

// SLIPStream is SLIP's version of HDLCStream: same role, classical SLIP
// codes, and the convention that an empty frame (two END bytes with
// nothing between them) is noise and is silently dropped rather than
// returned to the caller.
type SLIPStream struct {
	base   Stream
	rxBuf  []byte
	rxFill int
	rxPos  int
}

func NewSLIPStream(base Stream, rxBufSize int) *SLIPStream {
	if rxBufSize <= 0 {
		rxBufSize = 4096
	}
	return &SLIPStream{base: base, rxBuf: make([]byte, rxBufSize)}
}

func (s *SLIPStream) Configure(cfg Config) error          { return s.base.Configure(cfg) }
func (s *SLIPStream) SetTimeout(d time.Duration) error    { return s.base.SetTimeout(d) }
func (s *SLIPStream) SetDTR(on bool) error                { return s.base.SetDTR(on) }
func (s *SLIPStream) SetRTS(on bool) error                { return s.base.SetRTS(on) }
func (s *SLIPStream) SetBreak(on bool) error              { return s.base.SetBreak(on) }
func (s *SLIPStream) GetLines() (Lines, error)            { return s.base.GetLines() }
func (s *SLIPStream) Poll(d time.Duration) error          { return s.base.Poll(d) }
func (s *SLIPStream) Flush() error                        { return s.base.Flush() }
func (s *SLIPStream) Purge(dir PurgeDirection) error      { return s.base.Purge(dir) }
func (s *SLIPStream) Sleep(d time.Duration)               { s.base.Sleep(d) }
func (s *SLIPStream) Available() (int, error)             { return s.base.Available() }
func (s *SLIPStream) Ioctl(req uintptr, data []byte) error { return s.base.Ioctl(req, data) }
func (s *SLIPStream) Close() error                        { return s.base.Close() }

func (s *SLIPStream) readByte() (byte, error) {
	if s.rxPos >= s.rxFill {
		n, err := s.base.Read(s.rxBuf)
		if err != nil {
			return 0, err
		}
		if n == 0 {
			return 0, dcerr.New(dcerr.IO, "iostream.SLIPStream", nil)
		}
		s.rxFill = n
		s.rxPos = 0
	}
	b := s.rxBuf[s.rxPos]
	s.rxPos++
	return b, nil
}

// Read decodes one non-empty SLIP frame into p. Empty frames are consumed
// and skipped rather than returned (the classical noise-filter
// convention).
func (s *SLIPStream) Read(p []byte) (int, error) {
	for {
		n, err := s.readFrame(p)
		if err != nil {
			return 0, err
		}
		if n > 0 {
			return n, nil
		}
		// Empty frame: loop for the next one.
	}
}

func (s *SLIPStream) readFrame(p []byte) (int, error) {
	n := 0
	for {
		b, err := s.readByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case slipEnd:
			return n, nil
		case slipEsc:
			b2, err := s.readByte()
			if err != nil {
				return 0, err
			}
			switch b2 {
			case slipEscEnd:
				b = slipEnd
			case slipEscEsc:
				b = slipEsc
			default:
				return 0, dcerr.New(dcerr.Protocol, "iostream.SLIPStream", nil)
			}
			fallthrough
		default:
			if n >= len(p) {
				return 0, dcerr.New(dcerr.Protocol, "iostream.SLIPStream", nil)
			}
			p[n] = b
			n++
		}
	}
}

// Write frames p with a trailing END, escaping any END/ESC occurrences.
func (s *SLIPStream) Write(p []byte) (int, error) {
	out := make([]byte, 0, len(p)+2)
	for _, b := range p {
		switch b {
		case slipEnd:
			out = append(out, slipEsc, slipEscEnd)
		case slipEsc:
			out = append(out, slipEsc, slipEscEsc)
		default:
			out = append(out, b)
		}
	}
	out = append(out, slipEnd)
	if _, err := s.base.Write(out); err != nil {
		return 0, err
	}
	return len(p), nil
}
