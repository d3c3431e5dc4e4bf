package transport

import (
	"errors"
	"net"
)

var (
	ErrBind      = errors.New("transport: bind failed")
	ErrTransport = errors.New("transport: datagram i/o failed")
)

// Conn is one bound datagram endpoint.
type Conn interface {
	ReadFrom(p []byte) (int, net.Addr, error)
	WriteTo(p []byte, addr net.Addr) (int, error)
	SetBroadcast(enabled bool) error
	LocalAddr() net.Addr
	Close() error
}

// Network binds datagram endpoints. UDP is the host implementation.
type Network interface {
	Listen(addr *net.UDPAddr) (Conn, error)
}

// Any is the all-interfaces bind address for port; port 0 picks an ephemeral one.
func Any(port int) *net.UDPAddr {
	return &net.UDPAddr{IP: net.IPv4zero, Port: port}
}

// Loopback addresses the daemon on this host.
func Loopback(port int) *net.UDPAddr {
	return &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port}
}

// Broadcast addresses every daemon in the local broadcast domain.
func Broadcast(port int) *net.UDPAddr {
	return &net.UDPAddr{IP: net.IPv4bcast, Port: port}
}
