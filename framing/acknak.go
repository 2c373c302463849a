package framing

import (
	"bytes"

	"github.com/daedaluz/divelog/dcerr"
	"github.com/daedaluz/divelog/iostream"
)

// AckNakCoder describes an ACK/NAK-family response (spec §4.2): the whole
// command is written in one shot, the device answers with a single status
// byte, and only an ACK is followed by the payload and its checksum. A NAK
// is a Protocol failure (so framing.Transfer retries the whole exchange); a
// status byte equal to the bitwise complement of Ack is treated as
// Unsupported and is not retried, since it means the device understood the
// command but refuses to service it at all.
type AckNakCoder struct {
	Ack, Nak     byte
	PayloadSize  int
	Checksum     ChecksumFunc
	ChecksumSize int
}

// NewAckNakPacket builds a framing.PacketFunc for the ACK/NAK family over s.
func NewAckNakPacket(s iostream.Stream, coder AckNakCoder) PacketFunc {
	return func(cmd []byte) ([]byte, error) {
		if err := writeFull(s, cmd); err != nil {
			return nil, err
		}

		status := make([]byte, 1)
		if err := readFull(s, status); err != nil {
			return nil, err
		}
		switch {
		case status[0] == coder.Ack:
			// fall through to payload read below
		case status[0] == coder.Nak:
			return nil, dcerr.New(dcerr.Protocol, "framing.AckNakPacket", nil)
		case status[0] == ^coder.Ack:
			return nil, dcerr.New(dcerr.Unsupported, "framing.AckNakPacket", nil)
		default:
			return nil, dcerr.New(dcerr.Protocol, "framing.AckNakPacket", nil)
		}

		tail := coder.PayloadSize + coder.ChecksumSize
		buf := make([]byte, tail)
		if err := readFull(s, buf); err != nil {
			return nil, err
		}
		payload := buf[:coder.PayloadSize]
		if coder.Checksum != nil {
			want := coder.Checksum(payload)
			got := buf[coder.PayloadSize:]
			if !bytes.Equal(want, got) {
				return nil, dcerr.New(dcerr.Protocol, "framing.AckNakPacket", nil)
			}
		}

		out := make([]byte, len(payload))
		copy(out, payload)
		return out, nil
	}
}
