package divelog

import (
	"encoding/binary"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/daedaluz/divelog/dcerr"
	"github.com/daedaluz/divelog/framing"
	"github.com/daedaluz/divelog/iostream"
)

const lpHeaderMarker = 0xA5
const lpTrailer = byte(0x0A)

var lengthPrefixedReadCoder = framing.LengthPrefixedCoder{
	HeaderSize: 4,
	ValidateHeader: func(header []byte) error {
		if header[0] != lpHeaderMarker {
			return dcerr.New(dcerr.Protocol, "divelog.lengthPrefixedReadCoder", nil)
		}
		return nil
	},
	ReadLength:   func(header []byte) int { return int(header[2])<<8 | int(header[3]) },
	ChecksumSize: 2,
	Checksum: func(header, payload []byte) []byte {
		return framing.CRC16CCITTChecksum(append(append([]byte{}, header...), payload...))
	},
	Trailer: &lpTrailer,
}

var lengthPrefixedVersionCoder = framing.LengthPrefixedCoder{
	HeaderSize:   4,
	ReadLength:   func(header []byte) int { return int(header[2])<<8 | int(header[3]) },
	ChecksumSize: 0,
}

var lengthPrefixedLayout = Layout{
	Name: "lengthprefixed-reference",

	TotalSize: 0x40000,

	LogbookBegin: 0x0000, LogbookEnd: 0x0400,
	ProfileBegin: 0x0400, ProfileEnd: 0x20000,
	EntrySize: 16,

	Direction:      NewestFirstIndexed,
	EndPointerMode: EndPointerLast,
	SerialMode:     SerialPackedBCD,

	PageSize:       0x100,
	MultiPagePages: 8,

	FingerprintOffset: 0, FingerprintLength: 4,

	ProfileStartOf: func(entry []byte) int { return int(binary.BigEndian.Uint32(entry[4:8])) },
	IsUninitialised: func(entry []byte) bool {
		for _, b := range entry {
			if b != 0xFF {
				return false
			}
		}
		return true
	},

	ConfigPageAddress: 0x20000, ConfigPageSize: 0x100,
	FirstOffset: 0, LastOffset: 4, EOPOffset: 8, PointerSize: 4,
	DecodePointer: func(raw []byte) int { return int(binary.BigEndian.Uint32(raw)) },
}

func lengthPrefixedHandshake(s iostream.Stream) ([]byte, error) {
	return framing.NewLengthPrefixedPacket(s, lengthPrefixedVersionCoder)([]byte{lpHeaderMarker, 0x00})
}

func lengthPrefixedQuit(s iostream.Stream) error {
	_, err := s.Write([]byte{lpHeaderMarker, 0xFF})
	return err
}

func init() {
	RegisterFamily(&Family{
		Name: "lengthprefixed-reference",

		LineConfig:   iostream.Config{Baud: 57600, DataBits: 8, Parity: iostream.ParityEven, Stop: iostream.StopBits1, Flow: iostream.FlowNone},
		InitialSleep: 200 * time.Millisecond,
		Purge:        iostream.PurgeInput,

		VersionTable: []VersionPattern{
			{Pattern: []byte{0xA5, 0x00, 0x00, 0x02}, Model: "LengthPrefixed Reference v2", Layout: &lengthPrefixedLayout},
		},

		Handshake: lengthPrefixedHandshake,
		NewPacket: func(s iostream.Stream) framing.PacketFunc {
			return framing.NewLengthPrefixedPacket(s, lengthPrefixedReadCoder)
		},
		RetryPolicy: func() backoff.BackOff {
			return framing.NewRetryPolicy(100*time.Millisecond, 5)
		},
		BuildReadCommand: func(address, size int) []byte {
			return []byte{lpHeaderMarker, 0x10, byte(address >> 8), byte(address), byte(size >> 8), byte(size)}
		},
		Quit: lengthPrefixedQuit,
	})
}
