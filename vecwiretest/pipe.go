// Package vecwiretest provides test fixtures for exercising a vecwire
// Endpoint end to end: a real loopback TCP pair (so SetReadDeadline and
// SetWriteDeadline behave exactly as they would against any other
// net.Conn) and a small scripted echo server, in the style of
// netconf/testserver.
package vecwiretest

import (
	"net"

	assert "github.com/stretchr/testify/require"
)

// TCPPipe is a connected pair of loopback TCP connections suitable for use
// as a vecwire.Conn on either side.
type TCPPipe struct {
	Client net.Conn
	Server net.Conn

	listener net.Listener
}

// NewTCPPipe dials a freshly listened loopback socket and returns both
// ends of the resulting connection. Close releases the listener and both
// connections.
func NewTCPPipe(t assert.TestingT) *TCPPipe {
	listener, err := net.Listen("tcp", "localhost:0")
	assert.NoError(t, err, "listen failed")

	type accepted struct {
		conn net.Conn
		err  error
	}
	acceptCh := make(chan accepted, 1)
	go func() {
		conn, err := listener.Accept()
		acceptCh <- accepted{conn, err}
	}()

	client, err := net.Dial("tcp", listener.Addr().String())
	assert.NoError(t, err, "dial failed")

	result := <-acceptCh
	assert.NoError(t, result.err, "accept failed")

	return &TCPPipe{Client: client, Server: result.conn, listener: listener}
}

// Close releases the listener and both connection halves.
func (p *TCPPipe) Close() {
	_ = p.Client.Close()
	_ = p.Server.Close()
	_ = p.listener.Close()
}
