package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/Connicpu/boop/internal/announce"
	"github.com/Connicpu/boop/internal/protocol"
	"github.com/Connicpu/boop/internal/testutil/memnet"
	"github.com/Connicpu/boop/internal/transport"
)

const waitLimit = 2 * time.Second

type recordingAnnouncer struct {
	mu     sync.Mutex
	texts  []string
	err    error
	closed bool
}

func (a *recordingAnnouncer) Announce(text string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	if a.closed {
		return fmt.Errorf("%w: closed", announce.ErrAnnounce)
	}
	a.texts = append(a.texts, text)
	return nil
}

func (a *recordingAnnouncer) Close() error {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	return nil
}

func (a *recordingAnnouncer) Texts() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.texts...)
}

// harness runs one daemon on a memnet host with a peer endpoint on the same
// host for sending raw datagrams over loopback.
type harness struct {
	host   *memnet.Host
	daemon *Daemon
	ann    *recordingAnnouncer
	peer   transport.Conn
	cancel context.CancelFunc
	done   chan error
}

func startDaemon(t *testing.T, host *memnet.Host, name string, policy ErrorPolicy) *harness {
	t.Helper()
	return startDaemonOn(t, host, host, name, policy)
}

func startDaemonOn(t *testing.T, host *memnet.Host, network transport.Network, name string, policy ErrorPolicy) *harness {
	t.Helper()
	ann := &recordingAnnouncer{}
	d, err := New(Config{Name: name, Network: network, Announcer: ann, ErrorPolicy: policy})
	if err != nil {
		t.Fatalf("new daemon %q: %v", name, err)
	}
	if err := d.Bind(); err != nil {
		t.Fatalf("bind daemon %q: %v", name, err)
	}
	peer, err := host.Listen(transport.Any(0))
	if err != nil {
		t.Fatalf("listen peer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &harness{host: host, daemon: d, ann: ann, peer: peer, cancel: cancel, done: make(chan error, 1)}
	go func() { h.done <- d.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		peer.Close()
	})
	return h
}

func (h *harness) send(t *testing.T, payload []byte) {
	t.Helper()
	if _, err := h.peer.WriteTo(payload, transport.Loopback(protocol.Port)); err != nil {
		t.Fatalf("send %q: %v", payload, err)
	}
}

// query round-trips a name query. The loop is sequential, so a reply also
// proves every datagram sent before it has been handled.
func (h *harness) query(t *testing.T) string {
	t.Helper()
	h.send(t, protocol.EncodeQuery())
	timer := time.AfterFunc(waitLimit, func() { h.peer.Close() })
	defer timer.Stop()

	buf := make([]byte, protocol.MaxDatagramLen)
	n, from, err := h.peer.ReadFrom(buf)
	if err != nil {
		t.Fatalf("no reply to query: %v", err)
	}
	if udp, ok := from.(*net.UDPAddr); !ok || udp.Port != protocol.Port {
		t.Fatalf("reply from unexpected address %v", from)
	}
	return string(buf[:n])
}

func (h *harness) stop(t *testing.T) error {
	t.Helper()
	h.cancel()
	return h.wait(t)
}

func (h *harness) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-h.done:
		return err
	case <-time.After(waitLimit):
		t.Fatalf("daemon %q did not exit", h.daemon.Name())
		return nil
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(waitLimit)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func equalTexts(got []string, want ...string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

// faultyNetwork wraps a network so its endpoints fail reads or writes.
type faultyNetwork struct {
	inner     transport.Network
	failRead  bool
	failWrite bool
}

var errInjected = errors.New("injected failure")

func (n faultyNetwork) Listen(addr *net.UDPAddr) (transport.Conn, error) {
	conn, err := n.inner.Listen(addr)
	if err != nil {
		return nil, err
	}
	return &faultyConn{Conn: conn, failRead: n.failRead, failWrite: n.failWrite}, nil
}

type faultyConn struct {
	transport.Conn
	failRead  bool
	failWrite bool
}

func (c *faultyConn) ReadFrom(p []byte) (int, net.Addr, error) {
	if c.failRead {
		return 0, nil, fmt.Errorf("%w: %w", transport.ErrTransport, errInjected)
	}
	return c.Conn.ReadFrom(p)
}

func (c *faultyConn) WriteTo(p []byte, addr net.Addr) (int, error) {
	if c.failWrite {
		return 0, fmt.Errorf("%w: %w", transport.ErrTransport, errInjected)
	}
	return c.Conn.WriteTo(p, addr)
}
