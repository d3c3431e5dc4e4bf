package transport

import (
	"fmt"
	"net"
)

// UDP binds IPv4 UDP sockets on the host.
type UDP struct{}

var _ Network = UDP{}

func (UDP) Listen(addr *net.UDPAddr) (Conn, error) {
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBind, err)
	}
	return &udpConn{conn: conn}, nil
}

type udpConn struct {
	conn *net.UDPConn
}

func (c *udpConn) ReadFrom(p []byte) (int, net.Addr, error) {
	n, addr, err := c.conn.ReadFrom(p)
	if err != nil {
		return n, addr, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return n, addr, nil
}

func (c *udpConn) WriteTo(p []byte, addr net.Addr) (int, error) {
	n, err := c.conn.WriteTo(p, addr)
	if err != nil {
		return n, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return n, nil
}

func (c *udpConn) SetBroadcast(enabled bool) error {
	raw, err := c.conn.SyscallConn()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	var sockErr error
	if err := raw.Control(func(fd uintptr) {
		sockErr = setBroadcast(fd, enabled)
	}); err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	if sockErr != nil {
		return fmt.Errorf("%w: set SO_BROADCAST: %w", ErrTransport, sockErr)
	}
	return nil
}

func (c *udpConn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

func (c *udpConn) Close() error {
	return c.conn.Close()
}
