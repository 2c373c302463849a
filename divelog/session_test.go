package divelog

import (
	"encoding/binary"
	"testing"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/daedaluz/divelog/dcerr"
	"github.com/daedaluz/divelog/framing"
	"github.com/daedaluz/divelog/iostream"
	"github.com/stretchr/testify/require"
)

// scriptedStream is a minimal iostream.Stream that replays a fixed byte
// sequence and records every write, enough to drive one deterministic
// family/session exchange end to end without a real transport.
type scriptedStream struct {
	rx  []byte
	pos int
	tx  []byte
}

func (s *scriptedStream) Read(p []byte) (int, error) {
	if s.pos >= len(s.rx) {
		return 0, dcerr.New(dcerr.Timeout, "scriptedStream.Read", nil)
	}
	n := copy(p, s.rx[s.pos:])
	s.pos += n
	return n, nil
}
func (s *scriptedStream) Write(p []byte) (int, error) {
	s.tx = append(s.tx, p...)
	return len(p), nil
}
func (s *scriptedStream) Configure(iostream.Config) error    { return nil }
func (s *scriptedStream) SetTimeout(time.Duration) error     { return nil }
func (s *scriptedStream) SetDTR(bool) error                  { return nil }
func (s *scriptedStream) SetRTS(bool) error                  { return nil }
func (s *scriptedStream) SetBreak(bool) error                { return nil }
func (s *scriptedStream) GetLines() (iostream.Lines, error)  { return iostream.Lines{}, nil }
func (s *scriptedStream) Poll(time.Duration) error           { return nil }
func (s *scriptedStream) Flush() error                       { return nil }
func (s *scriptedStream) Purge(iostream.PurgeDirection) error { return nil }
func (s *scriptedStream) Sleep(time.Duration)                {}
func (s *scriptedStream) Available() (int, error)            { return len(s.rx) - s.pos, nil }
func (s *scriptedStream) Ioctl(uintptr, []byte) error         { return nil }
func (s *scriptedStream) Close() error                        { return nil }

// testFamilyLayout is a small, self-contained layout used only by this
// file's end-to-end test: an 8-byte page size keeps every address and
// wire exchange easy to hand-verify, unlike the real families' full-size
// flash layouts.
var testFamilyLayout = Layout{
	Name: "test-echo",

	TotalSize: 40,

	LogbookBegin: 0, LogbookEnd: 8,
	ProfileBegin: 8, ProfileEnd: 32,
	EntrySize: 8,

	Direction:      StoredOrder,
	EndPointerMode: EndPointerLast,
	SerialMode:     SerialBinary,

	PageSize:       8,
	MultiPagePages: 1,

	FingerprintOffset: 0, FingerprintLength: 1,

	ProfileStartOf: func(entry []byte) int { return int(binary.BigEndian.Uint16(entry[1:3])) },
	IsUninitialised: func(entry []byte) bool {
		for _, b := range entry {
			if b != 0xFF {
				return false
			}
		}
		return true
	},

	ConfigPageAddress: 32, ConfigPageSize: 8,
	FirstOffset: 0, LastOffset: 2, EOPOffset: 4, PointerSize: 2,
	DecodePointer: func(raw []byte) int { return int(binary.BigEndian.Uint16(raw)) },
}

func testFamilyBuildReadCommand(address, size int) []byte {
	return []byte{0x52, byte(address >> 8), byte(address)}
}

func registerTestEchoFamily() {
	RegisterFamily(&Family{
		Name:         "test-echo",
		LineConfig:   iostream.Config{},
		InitialSleep: 0,
		Purge:        iostream.PurgeInput,

		VersionTable: []VersionPattern{
			{Pattern: []byte{0x09, 0x00, 0x00, 0x01}, Model: "Test Echo Model", Layout: &testFamilyLayout},
		},

		Handshake: func(s iostream.Stream) ([]byte, error) {
			return framing.NewEchoPacket(s, framing.EchoCoder{PayloadSize: 4})([]byte{0x00})
		},
		NewPacket: func(s iostream.Stream) framing.PacketFunc {
			return framing.NewEchoPacket(s, framing.EchoCoder{PayloadSize: 8})
		},
		RetryPolicy: func() backoff.BackOff {
			return framing.NewRetryPolicy(time.Millisecond, 0)
		},
		BuildReadCommand: testFamilyBuildReadCommand,
	})
}

// TestSessionDownloadSingleDive wires Open and Download against a scripted
// stream carrying one handshake exchange, one config-page read, one
// logbook-entry read, and one profile-page read, and checks the dive
// delivered to the sink is exactly the concatenation of the two.
func TestSessionDownloadSingleDive(t *testing.T) {
	registerTestEchoFamily()

	version := []byte{0x09, 0x05, 0x00, 0x01}
	configPage := []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x18, 0x00, 0x00} // First=0, Last=0, EOP=0x18
	entry := []byte{0x2A, 0x00, 0x10, 0x00, 0x00, 0x00, 0x00, 0x00}      // counter=0x2A, profile start=0x10
	profile := []byte{0xD0, 0xD1, 0xD2, 0xD3, 0xD4, 0xD5, 0xD6, 0xD7}

	var rx []byte
	rx = append(rx, 0x00)       // handshake echo byte
	rx = append(rx, version...) // handshake version payload
	rx = append(rx, 0x52, 0x00, 0x20) // config-page read command echoed back
	rx = append(rx, configPage...)
	rx = append(rx, 0x52, 0x00, 0x00) // logbook entry read command echoed back
	rx = append(rx, entry...)
	rx = append(rx, 0x52, 0x00, 0x10) // profile page read command echoed back
	rx = append(rx, profile...)

	stream := &scriptedStream{rx: rx}

	var dives []Dive
	events := Events{
		OnDive: func(d Dive) bool {
			dives = append(dives, d)
			return true
		},
	}

	sess, err := Open(stream, "test-echo", nil, events)
	require.NoError(t, err)
	require.Equal(t, "Test Echo Model", sess.Model())
	require.Equal(t, []byte{0x05, 0x00}, sess.Firmware())

	require.NoError(t, sess.Download())
	require.Len(t, dives, 1)

	want := append(append([]byte{}, entry...), profile...)
	require.Equal(t, want, dives[0].Record)
	require.Equal(t, entry[0:1], dives[0].Fingerprint)
}

// TestSessionCancelAbortsBeforeFirstFetch confirms Cancel (spec §8 P6) is
// honoured the moment it is set, even before the first device exchange of
// a fresh Download.
func TestSessionCancelAbortsBeforeFirstFetch(t *testing.T) {
	registerTestEchoFamily()

	version := []byte{0x09, 0x05, 0x00, 0x01}
	var rx []byte
	rx = append(rx, 0x00)
	rx = append(rx, version...)
	stream := &scriptedStream{rx: rx}

	sess, err := Open(stream, "test-echo", nil, Events{})
	require.NoError(t, err)

	sess.Cancel()
	err = sess.Download()
	require.Equal(t, dcerr.Cancelled, dcerr.KindOf(err))
}

func TestMatchVersionWildcardFirmwareExtraction(t *testing.T) {
	table := []VersionPattern{
		{Pattern: []byte{0x09, 0x00, 0x00, 0x01}, Model: "Test Echo Model", Layout: &testFamilyLayout},
	}
	model, firmware, layout, err := MatchVersion([]byte{0x09, 0x05, 0x00, 0x01}, table)
	require.NoError(t, err)
	require.Equal(t, "Test Echo Model", model)
	require.Equal(t, []byte{0x05, 0x00}, firmware)
	require.Same(t, &testFamilyLayout, layout)
}

func TestMatchVersionNoMatchIsUnsupported(t *testing.T) {
	table := []VersionPattern{
		{Pattern: []byte{0x09, 0x00, 0x00, 0x01}, Model: "Test Echo Model", Layout: &testFamilyLayout},
	}
	_, _, _, err := MatchVersion([]byte{0x0A, 0x05, 0x00, 0x01}, table)
	require.Equal(t, dcerr.Unsupported, dcerr.KindOf(err))
}
