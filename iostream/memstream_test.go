package iostream

import (
	"io"
	"time"
)

// memStream is a minimal in-memory Stream used by the decorator tests: it
// lets the test prime the "wire" bytes a decorator will read, and inspect
// the bytes a decorator writes.
type memStream struct {
	rx  []byte
	rxN int
	tx  []byte
}

func newMemStream(wire []byte) *memStream { return &memStream{rx: wire} }

func (m *memStream) Configure(cfg Config) error       { return nil }
func (m *memStream) SetTimeout(d time.Duration) error { return nil }
func (m *memStream) SetDTR(on bool) error             { return nil }
func (m *memStream) SetRTS(on bool) error             { return nil }
func (m *memStream) SetBreak(on bool) error           { return nil }
func (m *memStream) GetLines() (Lines, error)         { return Lines{}, nil }
func (m *memStream) Poll(d time.Duration) error       { return nil }
func (m *memStream) Flush() error                     { return nil }
func (m *memStream) Purge(dir PurgeDirection) error   { return nil }
func (m *memStream) Sleep(d time.Duration)            {}
func (m *memStream) Available() (int, error)          { return len(m.rx) - m.rxN, nil }
func (m *memStream) Ioctl(req uintptr, data []byte) error { return nil }
func (m *memStream) Close() error                     { return nil }

func (m *memStream) Read(p []byte) (int, error) {
	if m.rxN >= len(m.rx) {
		return 0, io.EOF
	}
	n := copy(p, m.rx[m.rxN:])
	m.rxN += n
	return n, nil
}

func (m *memStream) Write(p []byte) (int, error) {
	m.tx = append(m.tx, p...)
	return len(p), nil
}
