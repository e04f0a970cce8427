package vecwire_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mark3982/vecwire"
	"github.com/mark3982/vecwire/vecwiretest"
)

// Mode=Callback with a null callback fails as misuse (§8).
func TestSendVectorWithModeCallbackRequiresCallback(t *testing.T) {
	pipe := vecwiretest.NewTCPPipe(t)
	defer pipe.Close()

	client := vecwire.New(pipe.Client, nil)

	v, err := client.SendVectorWithMode([]byte("x"), 0, vecwire.ModeCallback, nil)
	assert.Zero(t, v)
	assert.ErrorIs(t, err, vecwire.ErrCallbackRequired)
}

// An unrecognised Mode value is rejected outright, never reaching the wire.
func TestSendVectorWithModeUnknownMode(t *testing.T) {
	pipe := vecwiretest.NewTCPPipe(t)
	defer pipe.Close()

	client := vecwire.New(pipe.Client, nil)

	const modeNotAKnownValue vecwire.Mode = 99
	v, err := client.SendVectorWithMode([]byte("x"), 0, modeNotAKnownValue, nil)
	assert.Zero(t, v)
	assert.ErrorIs(t, err, vecwire.ErrUnknownMode)
	assert.Zero(t, client.OutBufferSize(), "a rejected send must never reach the outbound queue")
}

// ModeAsync registers an awaited entry the same as ModeBlock, but the
// reply is collected by polling Service(ctx, v, false) rather than
// blocking on it.
func TestSendVectorWithModeAsyncPolledNonBlocking(t *testing.T) {
	pipe := vecwiretest.NewTCPPipe(t)
	defer pipe.Close()

	client := vecwire.New(pipe.Client, nil)
	server := vecwire.New(pipe.Server, nil)
	go vecwiretest.EchoServer(pipe.Server, server)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	v, err := client.SendVectorWithMode([]byte("ping"), 0, vecwire.ModeAsync, nil)
	require.NoError(t, err)

	deadline := time.Now().Add(5 * time.Second)
	var vm vecwire.VectorMessage
	var ok bool
	for time.Now().Before(deadline) {
		vm, ok, err = client.Service(ctx, v, false)
		require.NoError(t, err)
		if ok {
			break
		}
		time.Sleep(time.Millisecond)
	}

	require.True(t, ok, "a polling, non-blocking Service call must eventually observe the Async reply")
	assert.Equal(t, v, vm.RVector)
	assert.Equal(t, []byte("ping"), vm.Payload)
}
