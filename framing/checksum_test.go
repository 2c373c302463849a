package framing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestXOR8(t *testing.T) {
	require.Equal(t, byte(0x00), XOR8([]byte{0x0F, 0x0F}))
	require.Equal(t, byte(0x05), XOR8([]byte{0x01, 0x04}))
}

func TestSum8Wraps(t *testing.T) {
	require.Equal(t, byte(0x00), Sum8([]byte{0xFF, 0x01}))
}

func TestReverseBits8(t *testing.T) {
	require.Equal(t, byte(0x80), ReverseBits8(0x01))
	require.Equal(t, byte(0x01), ReverseBits8(0x80))
	require.Equal(t, byte(0xA5), ReverseBits8(0xA5)) // palindromic bit pattern
}

func TestCRC16CCITTKnownValue(t *testing.T) {
	// "123456789" is the canonical CRC check string; CRC-16/CCITT-FALSE's
	// documented check value for it is 0x29B1.
	got := CRC16CCITT([]byte("123456789"))
	require.Equal(t, uint16(0x29B1), got)
}
