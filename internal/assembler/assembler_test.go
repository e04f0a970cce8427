package assembler

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frameBytes(payload []byte) []byte {
	hdr := make([]byte, headerSize)
	binary.BigEndian.PutUint32(hdr, uint32(len(payload)))
	return append(hdr, payload...)
}

func TestTryPopOneShot(t *testing.T) {
	a := New(0)
	a.Feed(frameBytes([]byte("hello")))

	frame, ok, err := a.TryPop()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("hello"), frame)

	_, ok, err = a.TryPop()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTryPopZeroLengthFrame(t *testing.T) {
	a := New(0)
	a.Feed(frameBytes(nil))

	frame, ok, err := a.TryPop()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte{}, frame)
}

func TestTryPopByteAtATime(t *testing.T) {
	a := New(0)
	wire := frameBytes([]byte("partial-delivery"))

	for i := 0; i < len(wire)-1; i++ {
		a.Feed(wire[i : i+1])
		_, ok, err := a.TryPop()
		require.NoError(t, err)
		require.False(t, ok, "should not complete before last byte")
	}
	a.Feed(wire[len(wire)-1:])

	frame, ok, err := a.TryPop()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("partial-delivery"), frame)
}

func TestTryPopMultipleFramesInOneFeed(t *testing.T) {
	a := New(0)
	a.Feed(append(frameBytes([]byte("one")), frameBytes([]byte("two"))...))

	var got [][]byte
	for {
		frame, ok, err := a.TryPop()
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, frame)
	}
	require.Len(t, got, 2)
	assert.Equal(t, []byte("one"), got[0])
	assert.Equal(t, []byte("two"), got[1])
}

func TestTryPopSplitAcrossHeaderBoundary(t *testing.T) {
	a := New(0)
	wire := frameBytes([]byte("boundary-split-message"))

	// Split such that the 4-byte length header itself straddles two feeds.
	a.Feed(wire[:2])
	_, ok, err := a.TryPop()
	require.NoError(t, err)
	require.False(t, ok)

	a.Feed(wire[2:])
	frame, ok, err := a.TryPop()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("boundary-split-message"), frame)
}

func TestTryPopTooLong(t *testing.T) {
	a := New(4)
	a.Feed(frameBytes([]byte("toolong")))

	_, ok, err := a.TryPop()
	assert.False(t, ok)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTooLong)
}

func TestPendingDistinguishesCleanBoundary(t *testing.T) {
	a := New(0)
	assert.False(t, a.Pending(), "fresh assembler has nothing pending")

	a.Feed(frameBytes([]byte("x"))[:2])
	assert.True(t, a.Pending(), "partial header bytes are pending")

	a = New(0)
	a.Feed(frameBytes([]byte("x")))
	_, ok, err := a.TryPop()
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, a.Pending(), "after draining the only frame, nothing is pending")
}
