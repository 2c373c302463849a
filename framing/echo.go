package framing

import (
	"bytes"

	"github.com/daedaluz/divelog/dcerr"
	"github.com/daedaluz/divelog/iostream"
)

// ChecksumFunc computes a checksum over data and returns it as its wire
// encoding (big-endian for multi-byte checksums), so callers can compare it
// directly against the bytes read off the stream.
type ChecksumFunc func(data []byte) []byte

// XOR8Checksum, Sum8Checksum and CRC16CCITTChecksum adapt framing's scalar
// checksum primitives to ChecksumFunc.
func XOR8Checksum(data []byte) []byte { return []byte{XOR8(data)} }
func Sum8Checksum(data []byte) []byte { return []byte{Sum8(data)} }
func CRC16CCITTChecksum(data []byte) []byte {
	v := CRC16CCITT(data)
	return []byte{byte(v >> 8), byte(v)}
}

// EchoCoder describes one echo-family response shape (spec §4.2): the host
// sends the command one byte at a time, each of which the device must echo
// back identically before the reply payload follows, optionally trailed by
// a checksum over the payload and a fixed trailer byte.
type EchoCoder struct {
	PayloadSize int
	// Checksum, if set, is computed over the payload and compared against
	// the ChecksumSize bytes that follow it on the wire.
	Checksum     ChecksumFunc
	ChecksumSize int
	// Trailer, if non-nil, is a constant byte expected after the payload
	// (and checksum, if any).
	Trailer *byte
}

// NewEchoPacket builds a framing.PacketFunc for the echo family over s.
func NewEchoPacket(s iostream.Stream, coder EchoCoder) PacketFunc {
	return func(cmd []byte) ([]byte, error) {
		echo := make([]byte, 1)
		for _, b := range cmd {
			if err := writeFull(s, []byte{b}); err != nil {
				return nil, err
			}
			if err := readFull(s, echo); err != nil {
				return nil, err
			}
			if echo[0] != b {
				return nil, dcerr.New(dcerr.Protocol, "framing.EchoPacket", nil)
			}
		}

		tail := coder.PayloadSize + coder.ChecksumSize
		if coder.Trailer != nil {
			tail++
		}
		buf := make([]byte, tail)
		if err := readFull(s, buf); err != nil {
			return nil, err
		}

		payload := buf[:coder.PayloadSize]
		pos := coder.PayloadSize
		if coder.Checksum != nil {
			want := coder.Checksum(payload)
			got := buf[pos : pos+coder.ChecksumSize]
			if !bytes.Equal(want, got) {
				return nil, dcerr.New(dcerr.Protocol, "framing.EchoPacket", nil)
			}
			pos += coder.ChecksumSize
		}
		if coder.Trailer != nil && buf[pos] != *coder.Trailer {
			return nil, dcerr.New(dcerr.Protocol, "framing.EchoPacket", nil)
		}

		out := make([]byte, len(payload))
		copy(out, payload)
		return out, nil
	}
}
