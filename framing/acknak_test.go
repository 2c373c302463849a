package framing

import (
	"testing"
	"time"

	"github.com/daedaluz/divelog/dcerr"
	"github.com/stretchr/testify/require"
)

// TestAckNakScenario is spec §8 scenario 2: two NAKs then an ACK, carried by
// Transfer's retry loop rather than inside the packet function itself.
func TestAckNakScenario(t *testing.T) {
	defer noSleep(t)()

	cmd := []byte{0x10, 0x01}
	payload := make([]byte, 8)
	for i := range payload {
		payload[i] = byte(0x50 + i)
	}
	trailerChecksum := Sum8Checksum(payload)

	attempts := [][]byte{
		{0xA5}, // NAK
		{0xA5}, // NAK
		append(append([]byte{0x5A}, payload...), trailerChecksum...), // ACK + payload + checksum
	}
	attempt := 0
	s := &stubStream{}
	packet := func(c []byte) ([]byte, error) {
		s.rx = attempts[attempt]
		s.pos = 0
		attempt++
		return NewAckNakPacket(s, AckNakCoder{
			Ack: 0x5A, Nak: 0xA5,
			PayloadSize: len(payload), Checksum: Sum8Checksum, ChecksumSize: 1,
		})(c)
	}

	opts := &Options{Policy: NewRetryPolicy(time.Millisecond, 3)}
	resp, err := Transfer(cmd, opts, packet)
	require.NoError(t, err)
	require.Equal(t, payload, resp)
	require.Equal(t, 3, attempt)
}

func TestAckNakUnsupportedNotRetried(t *testing.T) {
	calls := 0
	s := &stubStream{rx: []byte{0xA5}} // ^0x5A == 0xA5
	packet := func(c []byte) ([]byte, error) {
		calls++
		s.pos = 0
		return NewAckNakPacket(s, AckNakCoder{Ack: 0x5A, Nak: 0x00})(c)
	}
	opts := &Options{Policy: NewRetryPolicy(time.Millisecond, 3)}
	_, err := Transfer([]byte{0x01}, opts, packet)
	require.Equal(t, dcerr.Unsupported, dcerr.KindOf(err))
	require.Equal(t, 1, calls)
}
