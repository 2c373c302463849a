package framing

import (
	"time"

	"github.com/daedaluz/divelog/dcerr"
	"github.com/daedaluz/divelog/iostream"
)

// stubStream is a minimal iostream.Stream backed by fixed bytes, enough to
// drive the family packet coders without a real transport. Shared by every
// family's test file.
type stubStream struct {
	rx  []byte
	pos int
	tx  []byte
}

func (s *stubStream) Read(p []byte) (int, error) {
	if s.pos >= len(s.rx) {
		return 0, dcerr.New(dcerr.Timeout, "stubStream.Read", nil)
	}
	n := copy(p, s.rx[s.pos:])
	s.pos += n
	return n, nil
}
func (s *stubStream) Write(p []byte) (int, error) {
	s.tx = append(s.tx, p...)
	return len(p), nil
}

// The rest of iostream.Stream is unused by the family coders.
func (s *stubStream) Configure(iostream.Config) error      { return nil }
func (s *stubStream) SetTimeout(time.Duration) error        { return nil }
func (s *stubStream) SetDTR(bool) error                     { return nil }
func (s *stubStream) SetRTS(bool) error                     { return nil }
func (s *stubStream) SetBreak(bool) error                   { return nil }
func (s *stubStream) GetLines() (iostream.Lines, error)     { return iostream.Lines{}, nil }
func (s *stubStream) Poll(time.Duration) error              { return nil }
func (s *stubStream) Flush() error                          { return nil }
func (s *stubStream) Purge(iostream.PurgeDirection) error   { return nil }
func (s *stubStream) Sleep(time.Duration)                   {}
func (s *stubStream) Available() (int, error)               { return len(s.rx) - s.pos, nil }
func (s *stubStream) Ioctl(uintptr, []byte) error            { return nil }
func (s *stubStream) Close() error                           { return nil }
