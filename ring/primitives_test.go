package ring

import (
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/require"
)

// TestDistanceEmptyVsFull is spec §8 P1: the same zero-distance pair of
// pointers must read differently under the two modes.
func TestDistanceEmptyVsFull(t *testing.T) {
	const n = 100
	require.Equal(t, 0, Distance(10, 10, n, Empty))
	require.Equal(t, n, Distance(10, 10, n, Full))
}

func TestDistanceWrapsThroughEnd(t *testing.T) {
	const begin, end = 0, 100
	n := end - begin
	require.Equal(t, 10, Distance(90, 0, n, Empty)) // wraps past end
	require.Equal(t, 90, Distance(0, 90, n, Empty))  // no wrap needed
}

// TestNormalizeIdempotentWithinRange is spec §8 P2.
func TestNormalizeIdempotentWithinRange(t *testing.T) {
	const begin, end = 200, 300
	for _, a := range []int{200, 250, 299, 300, 301, 500, -50, 199} {
		v := Normalize(a, begin, end)
		require.True(t, v >= begin && v < end, "Normalize(%d) = %d out of range", a, v)
		require.Equal(t, v, Normalize(v, begin, end))
	}
}

func TestIncrementDecrementRoundTrip(t *testing.T) {
	check := func(a, delta, begin int) bool {
		size := 1 + (delta%4096+4096)%4096 + 1 // always >= 2
		end := begin + size
		a = Normalize(a, begin, end)
		d := (delta%size + size) % size
		forward := Increment(a, d, begin, end)
		back := Decrement(forward, d, begin, end)
		return back == a
	}
	require.NoError(t, quick.Check(check, nil))
}

func TestIncrementWrapsAtEnd(t *testing.T) {
	const begin, end = 10, 20
	require.Equal(t, 12, Increment(19, 3, begin, end))
}

func TestDecrementWrapsAtBegin(t *testing.T) {
	const begin, end = 10, 20
	require.Equal(t, 18, Decrement(11, 3, begin, end))
}
