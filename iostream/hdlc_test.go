package iostream

import (
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/require"
)

// TestHDLCScenario reproduces spec §8 scenario 3 literally.
func TestHDLCScenario(t *testing.T) {
	payload := []byte{0x7E, 0x00, 0x7D, 0x01}
	wantWire := []byte{0x7E, 0x7D, 0x5E, 0x00, 0x7D, 0x5D, 0x01, 0x7E}

	base := newMemStream(nil)
	h := NewHDLCStream(base, 64)
	n, err := h.Write(payload)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)
	require.Equal(t, wantWire, base.tx)

	rxBase := newMemStream(wantWire)
	rx := NewHDLCStream(rxBase, 64)
	buf := make([]byte, 64)
	n, err = rx.Read(buf)
	require.NoError(t, err)
	require.Equal(t, payload, buf[:n])
}

// TestHDLCRoundTripProperty is spec §8 P3: every byte sequence round-trips.
func TestHDLCRoundTripProperty(t *testing.T) {
	f := func(b []byte) bool {
		if len(b) == 0 || len(b) > 256 {
			return true
		}
		base := newMemStream(nil)
		h := NewHDLCStream(base, 1024)
		if _, err := h.Write(b); err != nil {
			return false
		}
		rxBase := newMemStream(base.tx)
		rx := NewHDLCStream(rxBase, 1024)
		buf := make([]byte, 1024)
		n, err := rx.Read(buf)
		if err != nil {
			return false
		}
		got := buf[:n]
		if len(got) != len(b) {
			return false
		}
		for i := range b {
			if got[i] != b[i] {
				return false
			}
		}
		return true
	}
	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}

func TestHDLCDoubleEscapeIsProtocolError(t *testing.T) {
	wire := []byte{0x7E, 0x7D, 0x7D, 0x00, 0x7E}
	base := newMemStream(wire)
	h := NewHDLCStream(base, 64)
	buf := make([]byte, 64)
	_, err := h.Read(buf)
	require.Error(t, err)
}
