// Package memnet is an in-memory IPv4 broadcast domain for exercising the
// boop roles across several simulated hosts without real sockets.
package memnet

import (
	"fmt"
	"net"
	"sync"
	"syscall"

	"github.com/Connicpu/boop/internal/transport"
)

const (
	inboxDepth    = 64
	ephemeralBase = 40000
)

// Packet is one datagram observed on the network.
type Packet struct {
	Src     *net.UDPAddr
	Dst     *net.UDPAddr
	Payload []byte
}

// Network is a single broadcast domain.
type Network struct {
	mu        sync.Mutex
	hosts     map[string]*Host
	ephemeral int
	sent      []Packet
}

func New() *Network {
	return &Network{
		hosts:     make(map[string]*Host),
		ephemeral: ephemeralBase,
	}
}

// Host returns the host with ip, creating it on first use.
func (n *Network) Host(ip string) *Host {
	n.mu.Lock()
	defer n.mu.Unlock()
	if h, ok := n.hosts[ip]; ok {
		return h
	}
	parsed := net.ParseIP(ip).To4()
	if parsed == nil {
		panic(fmt.Sprintf("memnet: invalid ipv4 address %q", ip))
	}
	h := &Host{network: n, ip: parsed, conns: make(map[int]*Conn)}
	n.hosts[ip] = h
	return h
}

// Sent returns a copy of every datagram accepted for delivery so far.
func (n *Network) Sent() []Packet {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Packet, len(n.sent))
	copy(out, n.sent)
	return out
}

// Host is one machine on the network; it implements transport.Network.
type Host struct {
	network *Network
	ip      net.IP
	conns   map[int]*Conn
}

var _ transport.Network = (*Host)(nil)

func (h *Host) IP() net.IP {
	return h.ip
}

func (h *Host) Listen(addr *net.UDPAddr) (transport.Conn, error) {
	n := h.network
	n.mu.Lock()
	defer n.mu.Unlock()

	if addr.IP != nil && !addr.IP.IsUnspecified() && !addr.IP.IsLoopback() && !addr.IP.Equal(h.ip) {
		return nil, fmt.Errorf("%w: listen %s: %w", transport.ErrBind, addr, syscall.EADDRNOTAVAIL)
	}
	port := addr.Port
	if port == 0 {
		for {
			n.ephemeral++
			if _, taken := h.conns[n.ephemeral]; !taken {
				port = n.ephemeral
				break
			}
		}
	}
	if _, taken := h.conns[port]; taken {
		return nil, fmt.Errorf("%w: listen %s: %w", transport.ErrBind, addr, syscall.EADDRINUSE)
	}

	c := &Conn{
		host:   h,
		port:   port,
		inbox:  make(chan Packet, inboxDepth),
		closed: make(chan struct{}),
	}
	h.conns[port] = c
	return c, nil
}

// Conn is one bound endpoint on a Host.
type Conn struct {
	host      *Host
	port      int
	inbox     chan Packet
	closed    chan struct{}
	closeOnce sync.Once

	mu        sync.Mutex
	broadcast bool
}

var _ transport.Conn = (*Conn)(nil)

func (c *Conn) ReadFrom(p []byte) (int, net.Addr, error) {
	select {
	case <-c.closed:
		return 0, nil, fmt.Errorf("%w: %w", transport.ErrTransport, net.ErrClosed)
	default:
	}
	select {
	case pkt := <-c.inbox:
		n := copy(p, pkt.Payload)
		return n, pkt.Src, nil
	case <-c.closed:
		return 0, nil, fmt.Errorf("%w: %w", transport.ErrTransport, net.ErrClosed)
	}
}

func (c *Conn) WriteTo(p []byte, addr net.Addr) (int, error) {
	select {
	case <-c.closed:
		return 0, fmt.Errorf("%w: %w", transport.ErrTransport, net.ErrClosed)
	default:
	}
	dst, ok := addr.(*net.UDPAddr)
	if !ok {
		return 0, fmt.Errorf("%w: unsupported address %T", transport.ErrTransport, addr)
	}

	c.mu.Lock()
	broadcast := c.broadcast
	c.mu.Unlock()

	n := c.host.network
	n.mu.Lock()
	defer n.mu.Unlock()

	src := &net.UDPAddr{IP: c.host.ip, Port: c.port}
	var targets []*Conn
	switch {
	case dst.IP.Equal(net.IPv4bcast):
		if !broadcast {
			return 0, fmt.Errorf("%w: sendto %s: %w", transport.ErrTransport, dst, syscall.EACCES)
		}
		for _, h := range n.hosts {
			if target, ok := h.conns[dst.Port]; ok {
				targets = append(targets, target)
			}
		}
	case dst.IP.IsLoopback():
		src = &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: c.port}
		if target, ok := c.host.conns[dst.Port]; ok {
			targets = append(targets, target)
		}
	default:
		if h, ok := n.hosts[dst.IP.String()]; ok {
			if target, ok := h.conns[dst.Port]; ok {
				targets = append(targets, target)
			}
		}
	}

	payload := append([]byte(nil), p...)
	n.sent = append(n.sent, Packet{Src: src, Dst: dst, Payload: payload})
	for _, target := range targets {
		select {
		case target.inbox <- Packet{Src: src, Dst: dst, Payload: payload}:
		default:
			// full inbox drops, as a saturated socket buffer would
		}
	}
	return len(p), nil
}

func (c *Conn) SetBroadcast(enabled bool) error {
	c.mu.Lock()
	c.broadcast = enabled
	c.mu.Unlock()
	return nil
}

func (c *Conn) LocalAddr() net.Addr {
	return &net.UDPAddr{IP: net.IPv4zero, Port: c.port}
}

func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		n := c.host.network
		n.mu.Lock()
		if c.host.conns[c.port] == c {
			delete(c.host.conns, c.port)
		}
		n.mu.Unlock()
		close(c.closed)
	})
	return nil
}
