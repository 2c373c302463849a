//go:build linux

package iostream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSerialLoopbackReadWrite(t *testing.T) {
	master, slave, err := OpenLoopback()
	if err != nil {
		t.Skipf("pty unavailable in this sandbox: %v", err)
	}
	defer master.Close()
	defer slave.Close()

	require.NoError(t, slave.Configure(Config{Baud: 9600, DataBits: 8, Parity: ParityNone, Stop: StopBits1}))
	require.NoError(t, master.SetTimeout(500 * time.Millisecond))

	_, err = slave.Write([]byte("hello"))
	require.NoError(t, err)

	buf := make([]byte, 16)
	n, err := master.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "hello", string(buf[:n]))
}

func TestSerialConfigureRejectsUnsupportedBaud(t *testing.T) {
	master, slave, err := OpenLoopback()
	if err != nil {
		t.Skipf("pty unavailable in this sandbox: %v", err)
	}
	defer master.Close()
	defer slave.Close()

	err = slave.Configure(Config{Baud: 1234567, DataBits: 8})
	require.Error(t, err)
}
