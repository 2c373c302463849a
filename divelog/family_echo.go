package divelog

import (
	"encoding/binary"
	"fmt"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/daedaluz/divelog/framing"
	"github.com/daedaluz/divelog/iostream"
)

var echoTrailer = byte(0x45)

// echoReadCoder matches spec §8 scenario 1 exactly: a 0x80-byte page
// trailed by a fixed byte, no checksum.
var echoReadCoder = framing.EchoCoder{PayloadSize: 0x80, Trailer: &echoTrailer}

// echoVersionCoder is a 4-byte, untrailed, unchecksummed echo reply used
// only for the handshake.
var echoVersionCoder = framing.EchoCoder{PayloadSize: 4}

var echoLayout = Layout{
	Name: "echo-reference",

	TotalSize: 0x10000,

	LogbookBegin: 0x0000, LogbookEnd: 0x0100,
	ProfileBegin: 0x0100, ProfileEnd: 0x8000,
	EntrySize: 16,

	Direction:      StoredOrder,
	EndPointerMode: EndPointerLast,
	SerialMode:     SerialBinary,

	PageSize:       0x80,
	MultiPagePages: 1,

	FingerprintOffset: 0, FingerprintLength: 2,

	ProfileStartOf: func(entry []byte) int { return int(binary.BigEndian.Uint16(entry[2:4])) },
	IsUninitialised: func(entry []byte) bool {
		for _, b := range entry {
			if b != 0xFF {
				return false
			}
		}
		return true
	},
	DecodeSerial: func(raw []byte) string {
		return fmt.Sprintf("%04X", binary.BigEndian.Uint16(raw[1:3]))
	},

	ConfigPageAddress: 0x8000, ConfigPageSize: 0x80,
	FirstOffset: 0, LastOffset: 2, EOPOffset: 4, PointerSize: 2,
	DecodePointer: func(raw []byte) int { return int(binary.BigEndian.Uint16(raw)) },
}

func echoHandshake(s iostream.Stream) ([]byte, error) {
	return framing.NewEchoPacket(s, echoVersionCoder)([]byte{0x00})
}

func init() {
	RegisterFamily(&Family{
		Name: "echo-reference",

		LineConfig:   iostream.Config{Baud: 115200, DataBits: 8, Parity: iostream.ParityNone, Stop: iostream.StopBits1, Flow: iostream.FlowNone},
		InitialSleep: 100 * time.Millisecond,
		Purge:        iostream.PurgeBoth,

		VersionTable: []VersionPattern{
			{Pattern: []byte{0x01, 0x00, 0x00, 0x09}, Model: "Echo Reference S9", Layout: &echoLayout},
		},

		Handshake: echoHandshake,
		NewPacket: func(s iostream.Stream) framing.PacketFunc { return framing.NewEchoPacket(s, echoReadCoder) },
		RetryPolicy: func() backoff.BackOff {
			return framing.NewRetryPolicy(200*time.Millisecond, 3)
		},
		BuildReadCommand: func(address, size int) []byte {
			return []byte{0x52, byte(address >> 8), byte(address)}
		},
	})
}
