package divelog

import (
	"encoding/binary"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/daedaluz/divelog/framing"
	"github.com/daedaluz/divelog/iostream"
)

const (
	pelagicCmdVersion = 0x01
	pelagicCmdRead    = 0x20
)

// pelagicCoder's ExpectedResponseCode is the same trailing-byte contract
// for every command this family uses: 0x00 means success.
var pelagicCoder = framing.PelagicCoder{
	StartByte:            0x7E,
	ExpectedResponseCode: func(cmd byte) byte { return 0x00 },
}

var pelagicLayout = Layout{
	Name: "pelagic-reference",

	TotalSize: 0x40000,

	LogbookBegin: 0x0000, LogbookEnd: 0x0800,
	ProfileBegin: 0x0800, ProfileEnd: 0x30000,
	EntrySize: 32,

	Direction:      StoredOrder,
	EndPointerMode: EndPointerLastPlusOne,
	SerialMode:     SerialBinary,

	PageSize:       0x200,
	MultiPagePages: 1,

	FingerprintOffset: 0, FingerprintLength: 4,

	ProfileStartOf: func(entry []byte) int { return int(binary.LittleEndian.Uint32(entry[4:8])) },
	ProfileEndOf:   func(entry []byte) int { return int(binary.LittleEndian.Uint32(entry[8:12])) },
	IsUninitialised: func(entry []byte) bool {
		for _, b := range entry {
			if b != 0xFF {
				return false
			}
		}
		return true
	},

	ConfigPageAddress: 0x30000, ConfigPageSize: 0x200,
	FirstOffset: 0, LastOffset: 4, EOPOffset: 8, PointerSize: 4,
	DecodePointer: func(raw []byte) int { return int(binary.LittleEndian.Uint32(raw)) },
}

func pelagicHandshake(s iostream.Stream) ([]byte, error) {
	return pelagicCoder.Packet(s, pelagicCmdVersion)(nil)
}

func init() {
	RegisterFamily(&Family{
		Name: "pelagic-reference",

		LineConfig:   iostream.Config{Baud: 38400, DataBits: 8, Parity: iostream.ParityNone, Stop: iostream.StopBits1, Flow: iostream.FlowNone},
		InitialSleep: 150 * time.Millisecond,
		Purge:        iostream.PurgeBoth,

		VersionTable: []VersionPattern{
			{Pattern: []byte{0x04, 0x00, 0x00, 0x03}, Model: "Pelagic Reference v3", Layout: &pelagicLayout},
		},

		Handshake: pelagicHandshake,
		NewPacket: func(s iostream.Stream) framing.PacketFunc { return pelagicCoder.Packet(s, pelagicCmdRead) },
		RetryPolicy: func() backoff.BackOff {
			return framing.NewRetryPolicy(150*time.Millisecond, 4)
		},
		BuildReadCommand: func(address, size int) []byte {
			payload := make([]byte, 8)
			binary.LittleEndian.PutUint32(payload[0:4], uint32(address))
			binary.LittleEndian.PutUint32(payload[4:8], uint32(size))
			return payload
		},
	})
}
