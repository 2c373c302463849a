package framing

import (
	"github.com/daedaluz/divelog/dcerr"
	"github.com/daedaluz/divelog/iostream"
)

// pelagicFlagLast marks the final packet of a multi-packet Pelagic response
// (spec §4.2); its payload's last byte is a response code rather than data.
const pelagicFlagLast = 0x01

// PelagicCoder describes the Pelagic family: a 5-byte header
// (start-byte, flag, command, checksum, length) followed by length payload
// bytes, repeated until a packet whose flag carries FLAG_LAST, whose final
// payload byte must equal ExpectedResponseCode(cmd).
type PelagicCoder struct {
	StartByte            byte
	ExpectedResponseCode func(cmd byte) byte
}

// Encode builds one outgoing Pelagic request frame for cmd/payload, with
// the checksum computed over the frame with its checksum byte zeroed.
func (p PelagicCoder) Encode(cmd byte, payload []byte) []byte {
	frame := make([]byte, 5, 5+len(payload))
	frame[0] = p.StartByte
	frame[1] = 0
	frame[2] = cmd
	frame[3] = 0
	frame[4] = byte(len(payload))
	frame = append(frame, payload...)
	frame[3] = PelagicChecksum(frame)
	return frame
}

// decode reads one or more Pelagic response packets from s and returns the
// concatenated data payload (with the trailing response-code byte of the
// final packet stripped).
func (p PelagicCoder) decode(s iostream.Stream, cmd byte) ([]byte, error) {
	var out []byte
	for {
		header := make([]byte, 5)
		if err := readFull(s, header); err != nil {
			return nil, err
		}
		if header[0] != p.StartByte {
			return nil, dcerr.New(dcerr.Protocol, "framing.PelagicPacket", nil)
		}
		flag := header[1]
		length := int(header[4])

		payload := make([]byte, length)
		if err := readFull(s, payload); err != nil {
			return nil, err
		}

		frame := append(append([]byte{}, header...), payload...)
		wantChecksum := frame[3]
		frame[3] = 0
		if PelagicChecksum(frame) != wantChecksum {
			return nil, dcerr.New(dcerr.Protocol, "framing.PelagicPacket", nil)
		}

		if flag&pelagicFlagLast == pelagicFlagLast {
			if length < 1 {
				return nil, dcerr.New(dcerr.Protocol, "framing.PelagicPacket", nil)
			}
			gotCode := payload[length-1]
			if p.ExpectedResponseCode != nil && gotCode != p.ExpectedResponseCode(cmd) {
				return nil, dcerr.New(dcerr.Protocol, "framing.PelagicPacket", nil)
			}
			out = append(out, payload[:length-1]...)
			return out, nil
		}
		out = append(out, payload...)
	}
}

// Packet builds a framing.PacketFunc for the Pelagic family over s for one
// command byte; cmd passed to the returned PacketFunc is the request
// payload (the command byte itself is fixed at construction time, since a
// session's command code is also needed to validate the response code).
func (p PelagicCoder) Packet(s iostream.Stream, cmd byte) PacketFunc {
	return func(payload []byte) ([]byte, error) {
		if err := writeFull(s, p.Encode(cmd, payload)); err != nil {
			return nil, err
		}
		return p.decode(s, cmd)
	}
}
