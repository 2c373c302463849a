package divelog

import (
	"encoding/binary"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/daedaluz/divelog/dcerr"
	"github.com/daedaluz/divelog/framing"
	"github.com/daedaluz/divelog/iostream"
)

const acknakPageSize = 0x100

// acknakReadCoder matches spec §8 scenario 2: ACK 0x5A / NAK 0xA5, a
// page of data trailed by its one-byte sum.
var acknakReadCoder = framing.AckNakCoder{
	Ack: 0x5A, Nak: 0xA5,
	PayloadSize: acknakPageSize, Checksum: framing.Sum8Checksum, ChecksumSize: 1,
}

var acknakVersionCoder = framing.AckNakCoder{
	Ack: 0x5A, Nak: 0xA5,
	PayloadSize: 4,
}

var acknakLayout = Layout{
	Name: "acknak-reference",

	TotalSize: 0x20000,

	LogbookBegin: 0x0000, LogbookEnd: 0x0200,
	ProfileBegin: 0x0200, ProfileEnd: 0x10000,
	EntrySize: 32,

	Direction:      StoredOrder,
	EndPointerMode: EndPointerLastPlusOne,
	SerialMode:     SerialBCD,

	PageSize:       acknakPageSize,
	MultiPagePages: 1,

	FingerprintOffset: 0, FingerprintLength: 4,

	ProfileStartOf: func(entry []byte) int { return int(binary.BigEndian.Uint32(entry[4:8])) },
	ProfileEndOf:   func(entry []byte) int { return int(binary.BigEndian.Uint32(entry[8:12])) },
	IsUninitialised: func(entry []byte) bool {
		for _, b := range entry {
			if b != 0xFF {
				return false
			}
		}
		return true
	},

	ConfigPageAddress: 0x10000, ConfigPageSize: acknakPageSize,
	FirstOffset: 0, LastOffset: 4, EOPOffset: 8, PointerSize: 4,
	DecodePointer: func(raw []byte) int { return int(binary.BigEndian.Uint32(raw)) },
}

func acknakHandshake(s iostream.Stream) ([]byte, error) {
	return framing.NewAckNakPacket(s, acknakVersionCoder)([]byte{0xC0})
}

// acknakTimeSync sends the current wall-clock components (year-base,
// month, day, hour, minute, second) and validates the single-byte
// response code (spec §4.5).
func acknakTimeSync(s iostream.Stream, t time.Time) error {
	const base = 2000
	cmd := []byte{
		0xC1,
		byte(t.Year() - base),
		byte(t.Month()),
		byte(t.Day()),
		byte(t.Hour()),
		byte(t.Minute()),
		byte(t.Second()),
	}
	if _, err := s.Write(cmd); err != nil {
		return err
	}
	resp := make([]byte, 1)
	if err := readFullDirect(s, resp); err != nil {
		return err
	}
	if resp[0] != 0x00 {
		return dcerr.New(dcerr.Protocol, "divelog.acknakTimeSync", nil)
	}
	return nil
}

// readFullDirect reads exactly len(p) bytes, used by the small number of
// family-specific exchanges (timesync, quit) that don't go through a
// framing.PacketFunc.
func readFullDirect(s iostream.Stream, p []byte) error {
	for off := 0; off < len(p); {
		n, err := s.Read(p[off:])
		if err != nil {
			return err
		}
		if n == 0 {
			return dcerr.New(dcerr.IO, "divelog.readFullDirect", nil)
		}
		off += n
	}
	return nil
}

func init() {
	RegisterFamily(&Family{
		Name: "acknak-reference",

		LineConfig:   iostream.Config{Baud: 9600, DataBits: 8, Parity: iostream.ParityNone, Stop: iostream.StopBits1, Flow: iostream.FlowNone},
		InitialSleep: 50 * time.Millisecond,
		Purge:        iostream.PurgeBoth,

		VersionTable: []VersionPattern{
			{Pattern: []byte{0x02, 0x00, 0x00, 0x01}, Model: "AckNak Reference v1", Layout: &acknakLayout},
		},

		Handshake: acknakHandshake,
		NewPacket: func(s iostream.Stream) framing.PacketFunc { return framing.NewAckNakPacket(s, acknakReadCoder) },
		RetryPolicy: func() backoff.BackOff {
			return framing.NewRetryPolicy(50*time.Millisecond, 4)
		},
		BuildReadCommand: func(address, size int) []byte {
			return []byte{0xB1, byte(address >> 8), byte(address)}
		},
		TimeSync:          acknakTimeSync,
		AdaptiveDelayStep: 25 * time.Millisecond,
		AdaptiveDelayCap:  500 * time.Millisecond,
	})
}
