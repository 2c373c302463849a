package framing

import (
	"testing"

	"github.com/daedaluz/divelog/dcerr"
	"github.com/stretchr/testify/require"
)

func TestEchoPacketScenario(t *testing.T) {
	// spec §8 scenario 1: command [0x52,0x00,0x40] echoed byte-for-byte,
	// then 0x80 bytes of payload, then trailer 0x45.
	cmd := []byte{0x52, 0x00, 0x40}
	payload := make([]byte, 0x80)
	for i := range payload {
		payload[i] = byte(i)
	}
	trailer := byte(0x45)
	wire := append(append([]byte{}, cmd...), payload...)
	wire = append(wire, trailer)

	s := &stubStream{rx: wire}
	packet := NewEchoPacket(s, EchoCoder{PayloadSize: len(payload), Trailer: &trailer})
	resp, err := packet(cmd)
	require.NoError(t, err)
	require.Equal(t, payload, resp)
	require.Equal(t, cmd, s.tx)
}

func TestEchoPacketMismatchIsProtocolError(t *testing.T) {
	cmd := []byte{0x01, 0x02}
	wire := []byte{0x01, 0xFF} // second echo wrong
	s := &stubStream{rx: wire}
	packet := NewEchoPacket(s, EchoCoder{PayloadSize: 0})
	_, err := packet(cmd)
	require.Equal(t, dcerr.Protocol, dcerr.KindOf(err))
}

func TestEchoPacketChecksumMismatch(t *testing.T) {
	cmd := []byte{0x01}
	payload := []byte{0xAA, 0xBB}
	wire := append(append([]byte{}, cmd...), payload...)
	wire = append(wire, 0x00) // wrong checksum byte
	s := &stubStream{rx: wire}
	packet := NewEchoPacket(s, EchoCoder{PayloadSize: len(payload), Checksum: XOR8Checksum, ChecksumSize: 1})
	_, err := packet(cmd)
	require.Equal(t, dcerr.Protocol, dcerr.KindOf(err))
}
