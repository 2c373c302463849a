package divelog

import (
	"encoding/binary"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/daedaluz/divelog/framing"
	"github.com/daedaluz/divelog/iostream"
)

const bleMarker = 0xCC

var bleLayout = Layout{
	Name: "ble-reference",

	TotalSize: 0x8000,

	LogbookBegin: 0x0000, LogbookEnd: 0x0100,
	ProfileBegin: 0x0100, ProfileEnd: 0x4000,
	EntrySize: 8,

	Direction:      StoredOrder,
	EndPointerMode: EndPointerLast,
	SerialMode:     SerialBinary,

	// A BLE characteristic write/notify round trip is expensive
	// relative to a serial line, so the cache page is much larger than
	// a single GATT fragment; framing.BLEFramer reassembles as many
	// fragments as BuildReadCommand's requested size needs.
	PageSize:       0x40,
	MultiPagePages: 1,

	FingerprintOffset: 0, FingerprintLength: 2,

	ProfileStartOf: func(entry []byte) int { return int(binary.LittleEndian.Uint16(entry[2:4])) },
	IsUninitialised: func(entry []byte) bool {
		for _, b := range entry {
			if b != 0xFF {
				return false
			}
		}
		return true
	},

	ConfigPageAddress: 0x4000, ConfigPageSize: 0x40,
	FirstOffset: 0, LastOffset: 2, EOPOffset: 4, PointerSize: 2,
	DecodePointer: func(raw []byte) int { return int(binary.LittleEndian.Uint16(raw)) },
}

func bleHandshake(framer *framing.BLEFramer) func(s iostream.Stream) ([]byte, error) {
	return func(s iostream.Stream) ([]byte, error) {
		return framer.Packet(s)([]byte{0x01})
	}
}

func init() {
	// BLEFramer tracks a command sequence counter (spec §4.2). One
	// instance is built here at package init and shared by Handshake and
	// NewPacket of every session of this family, so the counter carries
	// on from one session to the next rather than restarting per session.
	framer := framing.NewBLEFramer(bleMarker)

	RegisterFamily(&Family{
		Name: "ble-reference",

		LineConfig:   iostream.Config{},
		InitialSleep: 300 * time.Millisecond,
		Purge:        iostream.PurgeInput,

		VersionTable: []VersionPattern{
			{Pattern: []byte{0x03, 0x00, 0x00, 0x01}, Model: "BLE GATT Reference v1", Layout: &bleLayout},
		},

		Handshake: bleHandshake(framer),
		NewPacket: func(s iostream.Stream) framing.PacketFunc { return framer.Packet(s) },
		RetryPolicy: func() backoff.BackOff {
			return framing.NewRetryPolicy(500*time.Millisecond, 6)
		},
		BuildReadCommand: func(address, size int) []byte {
			return []byte{0x10, byte(address >> 8), byte(address), byte(size)}
		},

		// A BLE connection's GATT subscription tends to drop if left
		// idle too long; re-running the handshake every 20 reads keeps
		// the link alive across a long profile download (spec §4.5).
		HandshakeRefreshEvery: 20,
	})
}
