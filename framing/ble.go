package framing

import (
	"github.com/daedaluz/divelog/dcerr"
	"github.com/daedaluz/divelog/iostream"
)

// bleMaxChunk is the largest payload carried by a single BLE GATT
// notification/write (spec §4.2): a 4-byte header leaves 16 bytes of the
// typical 20-byte characteristic value for data.
const bleMaxChunk = 16

// bleDirHost and bleDirDevice are the header's direction bit.
const (
	bleDirHost   = 0
	bleDirDevice = 1
)

// bleMaxAssembled bounds a reassembled BLE response so a device that never
// clears its continuation bit can't grow the buffer without limit.
const bleMaxAssembled = 64 * 1024

// BLEFramer carries the per-session state the BLE GATT family needs across
// calls (spec §4.2): a command sequence number that increments once per
// command for the life of the session, independent of the per-fragment
// packet sequence which always restarts at zero.
type BLEFramer struct {
	Marker byte // vendor marker byte, header[0]
	cmdSeq byte
}

// NewBLEFramer returns a BLEFramer for one device session.
func NewBLEFramer(marker byte) *BLEFramer {
	return &BLEFramer{Marker: marker}
}

func bleHeaderByte(dir, cont, seq byte) byte {
	return dir<<7 | 1<<6 | cont<<5 | seq&0x1F
}

// fragment splits payload into header-prefixed BLE GATT packets addressed
// to the device, consuming the session's next command sequence number.
func (f *BLEFramer) fragment(payload []byte) [][]byte {
	f.cmdSeq++
	if len(payload) == 0 {
		payload = []byte{}
	}
	var chunks [][]byte
	for off := 0; off < len(payload) || len(chunks) == 0; off += bleMaxChunk {
		end := off + bleMaxChunk
		if end > len(payload) {
			end = len(payload)
		}
		chunks = append(chunks, payload[off:end])
		if end == len(payload) {
			break
		}
	}
	frames := make([][]byte, len(chunks))
	for i, c := range chunks {
		cont := byte(1)
		if i == len(chunks)-1 {
			cont = 0
		}
		header := []byte{f.Marker, bleHeaderByte(bleDirHost, cont, byte(i)), f.cmdSeq, byte(len(c))}
		frames[i] = append(header, c...)
	}
	return frames
}

// reassemble reads one or more device-to-host BLE GATT fragments and
// returns the reassembled payload. Every fragment must carry this
// session's current command sequence number and sequential packet
// sequence numbers starting at zero; the loop ends at the first fragment
// whose continuation bit is clear.
func (f *BLEFramer) reassemble(s iostream.Stream) ([]byte, error) {
	var out []byte
	expectSeq := byte(0)
	for {
		header := make([]byte, 4)
		if err := readFull(s, header); err != nil {
			return nil, err
		}
		if header[0] != f.Marker {
			return nil, dcerr.New(dcerr.Protocol, "framing.BLEFramer", nil)
		}
		dir := header[1] >> 7 & 1
		const1 := header[1] >> 6 & 1
		cont := header[1] >> 5 & 1
		seq := header[1] & 0x1F
		if dir != bleDirDevice || const1 != 1 {
			return nil, dcerr.New(dcerr.Protocol, "framing.BLEFramer", nil)
		}
		if seq != expectSeq || header[2] != f.cmdSeq {
			return nil, dcerr.New(dcerr.Protocol, "framing.BLEFramer", nil)
		}
		length := int(header[3])
		if length == 0 || length > bleMaxChunk {
			return nil, dcerr.New(dcerr.Protocol, "framing.BLEFramer", nil)
		}

		chunk := make([]byte, length)
		if err := readFull(s, chunk); err != nil {
			return nil, err
		}
		out = append(out, chunk...)
		if len(out) > bleMaxAssembled {
			return nil, dcerr.New(dcerr.Protocol, "framing.BLEFramer", nil)
		}
		if cont == 0 {
			return out, nil
		}
		expectSeq++
	}
}

// Packet builds a framing.PacketFunc for the BLE GATT family over s, using
// f to fragment the outgoing command and reassemble the response.
func (f *BLEFramer) Packet(s iostream.Stream) PacketFunc {
	return func(cmd []byte) ([]byte, error) {
		for _, frame := range f.fragment(cmd) {
			if err := writeFull(s, frame); err != nil {
				return nil, err
			}
		}
		return f.reassemble(s)
	}
}
