package framing

import (
	"bytes"

	"github.com/daedaluz/divelog/dcerr"
	"github.com/daedaluz/divelog/iostream"
)

// LengthPrefixedCoder describes a length-prefixed response (spec §4.2): a
// fixed header carrying constant marker bytes and a length field, followed
// by that many payload bytes, a checksum over a designated sub-range, and
// an optional trailer byte. Any mismatch anywhere is a Protocol failure.
type LengthPrefixedCoder struct {
	HeaderSize int
	// ValidateHeader checks the constant portions of header and extracts
	// any context (e.g. command echo) the caller cares about; err != nil
	// fails the packet.
	ValidateHeader func(header []byte) error
	// ReadLength returns the payload length encoded in header.
	ReadLength func(header []byte) int

	ChecksumSize int
	// Checksum is computed over header+payload (with any length/checksum
	// placeholder bytes the wire format defines as already present) and
	// compared against the ChecksumSize bytes that follow the payload.
	Checksum func(header, payload []byte) []byte

	Trailer *byte
}

// NewLengthPrefixedPacket builds a framing.PacketFunc for the
// length-prefixed family over s.
func NewLengthPrefixedPacket(s iostream.Stream, coder LengthPrefixedCoder) PacketFunc {
	return func(cmd []byte) ([]byte, error) {
		if err := writeFull(s, cmd); err != nil {
			return nil, err
		}

		header := make([]byte, coder.HeaderSize)
		if err := readFull(s, header); err != nil {
			return nil, err
		}
		if coder.ValidateHeader != nil {
			if err := coder.ValidateHeader(header); err != nil {
				return nil, dcerr.New(dcerr.Protocol, "framing.LengthPrefixedPacket", err)
			}
		}
		length := coder.ReadLength(header)
		if length < 0 {
			return nil, dcerr.New(dcerr.Protocol, "framing.LengthPrefixedPacket", nil)
		}

		tail := length + coder.ChecksumSize
		if coder.Trailer != nil {
			tail++
		}
		rest := make([]byte, tail)
		if err := readFull(s, rest); err != nil {
			return nil, err
		}
		payload := rest[:length]
		pos := length

		if coder.Checksum != nil {
			want := coder.Checksum(header, payload)
			got := rest[pos : pos+coder.ChecksumSize]
			if !bytes.Equal(want, got) {
				return nil, dcerr.New(dcerr.Protocol, "framing.LengthPrefixedPacket", nil)
			}
			pos += coder.ChecksumSize
		}
		if coder.Trailer != nil && rest[pos] != *coder.Trailer {
			return nil, dcerr.New(dcerr.Protocol, "framing.LengthPrefixedPacket", nil)
		}

		out := make([]byte, len(payload))
		copy(out, payload)
		return out, nil
	}
}
