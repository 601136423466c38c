package testutil

import (
	"net"
	"testing"
	"time"
)

// PipeConn creates a pair of net.Conn endpoints via net.Pipe for testing.
// Closes both ends automatically when the test finishes.
func PipeConn(t testing.TB) (client, server net.Conn) {
	t.Helper()

	server, client = net.Pipe()

	t.Cleanup(func() {
		_ = server.Close()
		_ = client.Close()
	})

	return client, server
}

// FakeAddr implements net.Addr for tests.
type FakeAddr struct {
	NetworkName string
	AddrString  string
}

func (f FakeAddr) Network() string { return f.NetworkName }
func (f FakeAddr) String() string  { return f.AddrString }

// NewFakeAddr creates a FakeAddr.
func NewFakeAddr(network, addr string) FakeAddr {
	return FakeAddr{
		NetworkName: network,
		AddrString:  addr,
	}
}

// TCPAddr creates a FakeAddr for a TCP connection.
func TCPAddr(addr string) FakeAddr {
	return NewFakeAddr("tcp", addr)
}

// ConnWithDeadline wraps net.Conn and sets a deadline on every read/write.
type ConnWithDeadline struct {
	net.Conn
	deadline time.Duration
}

// NewConnWithDeadline wraps conn with an automatic deadline.
func NewConnWithDeadline(conn net.Conn, deadline time.Duration) *ConnWithDeadline {
	return &ConnWithDeadline{
		Conn:     conn,
		deadline: deadline,
	}
}

func (c *ConnWithDeadline) Read(b []byte) (int, error) {
	if err := c.Conn.SetReadDeadline(time.Now().Add(c.deadline)); err != nil {
		return 0, err
	}
	return c.Conn.Read(b)
}

func (c *ConnWithDeadline) Write(b []byte) (int, error) {
	if err := c.Conn.SetWriteDeadline(time.Now().Add(c.deadline)); err != nil {
		return 0, err
	}
	return c.Conn.Write(b)
}

// ListenTCP creates a TCP listener on a random port for tests.
// Returns the listener and its address as "host:port".
// Closes the listener automatically when the test finishes.
func ListenTCP(t testing.TB) (net.Listener, string) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to create TCP listener: %v", err)
	}

	t.Cleanup(func() {
		_ = listener.Close()
	})

	return listener, listener.Addr().String()
}
