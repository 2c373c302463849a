package framing

import (
	"testing"

	"github.com/daedaluz/divelog/dcerr"
	"github.com/stretchr/testify/require"
)

func TestPelagicPacketMultiPacket(t *testing.T) {
	coder := PelagicCoder{
		StartByte:            0xAA,
		ExpectedResponseCode: func(cmd byte) byte { return 0x4D },
	}

	first := coder.Encode(0x10, []byte{0x01, 0x02})
	first[1] = 0x00 // not last
	first[3] = 0
	first[3] = PelagicChecksum(first)

	last := coder.Encode(0x10, []byte{0x03, 0x04, 0x4D})
	last[1] = pelagicFlagLast
	last[3] = 0
	last[3] = PelagicChecksum(last)

	s := &stubStream{rx: append(append([]byte{}, first...), last...)}
	resp, err := coder.Packet(s, 0x10)(nil)
	require.NoError(t, err)
	require.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, resp)
}

func TestPelagicPacketBadChecksumIsProtocolError(t *testing.T) {
	coder := PelagicCoder{StartByte: 0xAA}
	frame := coder.Encode(0x10, []byte{0x4D})
	frame[3] ^= 0xFF // corrupt
	s := &stubStream{rx: frame}
	_, err := coder.Packet(s, 0x10)(nil)
	require.Equal(t, dcerr.Protocol, dcerr.KindOf(err))
}

func TestPelagicPacketWrongResponseCodeIsProtocolError(t *testing.T) {
	coder := PelagicCoder{StartByte: 0xAA, ExpectedResponseCode: func(byte) byte { return 0x4D }}
	frame := coder.Encode(0x10, []byte{0xFF})
	frame[1] = pelagicFlagLast
	frame[3] = 0
	frame[3] = PelagicChecksum(frame)
	s := &stubStream{rx: frame}
	_, err := coder.Packet(s, 0x10)(nil)
	require.Equal(t, dcerr.Protocol, dcerr.KindOf(err))
}
