package ring

import (
	"testing"

	"github.com/daedaluz/divelog/memview"
	"github.com/stretchr/testify/require"
)

func backingFetcher(backing []byte) memview.Fetcher {
	return func(addr, size int) ([]byte, error) {
		return append([]byte{}, backing[addr:addr+size]...), nil
	}
}

func sequentialBacking(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i)
	}
	return b
}

func TestStreamForwardYieldsLogicalOrder(t *testing.T) {
	const begin, end, pageSize, maxPacket = 0, 64, 8, 16
	backing := sequentialBacking(end)
	view := memview.NewView(memview.Config{PageSize: pageSize, MultiPage: maxPacket / pageSize}, backingFetcher(backing), nil)

	s := NewStream(view, begin, end, pageSize, maxPacket, Forward, 0, nil)
	got, err := s.Read(end - begin)
	require.NoError(t, err)
	require.Equal(t, backing, got)
}

func TestStreamBackwardYieldsLogicalOrder(t *testing.T) {
	// A backward cursor fetches lower-address packets as it goes but
	// must still hand back every requested range in ascending address
	// order (spec §4.4): reading the whole ring reproduces it exactly.
	const begin, end, pageSize, maxPacket = 0, 64, 8, 16
	backing := sequentialBacking(end)
	view := memview.NewView(memview.Config{PageSize: pageSize, MultiPage: maxPacket / pageSize}, backingFetcher(backing), nil)

	s := NewStream(view, begin, end, pageSize, maxPacket, Backward, end-1, nil)
	got, err := s.Read(end - begin)
	require.NoError(t, err)
	require.Equal(t, backing, got)
}

func TestStreamBackwardHonoursUnalignedStart(t *testing.T) {
	const begin, end, pageSize, maxPacket = 0, 64, 8, 16
	backing := sequentialBacking(end)
	view := memview.NewView(memview.Config{PageSize: pageSize, MultiPage: maxPacket / pageSize}, backingFetcher(backing), nil)

	// Start mid-page: only bytes up to and including address 50 are ever
	// reachable; the returned range is [41, 50] in ascending order.
	s := NewStream(view, begin, end, pageSize, maxPacket, Backward, 50, nil)
	got, err := s.Read(10)
	require.NoError(t, err)
	want := []byte{41, 42, 43, 44, 45, 46, 47, 48, 49, 50}
	require.Equal(t, want, got)
}

func TestStreamProgressCallbackFiresPerFetch(t *testing.T) {
	const begin, end, pageSize, maxPacket = 0, 32, 8, 16
	backing := sequentialBacking(end)
	view := memview.NewView(memview.Config{PageSize: pageSize, MultiPage: maxPacket / pageSize}, backingFetcher(backing), nil)

	var fetched []int
	s := NewStream(view, begin, end, pageSize, maxPacket, Forward, 0, func(n int) { fetched = append(fetched, n) })
	_, err := s.Read(end - begin)
	require.NoError(t, err)
	require.Equal(t, []int{16, 16}, fetched)
}
