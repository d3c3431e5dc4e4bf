// Package client implements the short-lived boop sender: it learns the local
// daemon's name over loopback, then broadcasts one notification.
package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Connicpu/boop/internal/protocol"
	"github.com/Connicpu/boop/internal/transport"
	"github.com/rs/zerolog/log"
)

var (
	ErrNoDaemon  = errors.New("client: no local daemon answered")
	ErrBroadcast = errors.New("client: broadcast failed")
)

// Phase tracks one client run.
type Phase string

const (
	PhaseStart          Phase = "start"
	PhaseNameResolution Phase = "name_resolution"
	PhaseBroadcasting   Phase = "broadcasting"
	PhaseDone           Phase = "done"
	PhaseFailed         Phase = "failed"
)

// Client sends boops. The zero value uses real UDP on the well-known port and
// waits for the local daemon indefinitely.
type Client struct {
	Network transport.Network
	Port    int

	// ResolveTimeout bounds name resolution; zero waits until ctx is done.
	ResolveTimeout time.Duration
}

// Result describes a finished run.
type Result struct {
	Phase        Phase
	Notification protocol.Notification
	Payload      []byte
}

func (c Client) network() transport.Network {
	if c.Network == nil {
		return transport.UDP{}
	}
	return c.Network
}

func (c Client) port() int {
	if c.Port == 0 {
		return protocol.Port
	}
	return c.Port
}

// BoopEveryone resolves the local name and broadcasts an untargeted boop.
func (c Client) BoopEveryone(ctx context.Context) (Result, error) {
	return c.run(ctx, func(sender string) protocol.Notification {
		return protocol.ToEveryone(sender)
	})
}

// BoopName resolves the local name and broadcasts a boop for recipient.
func (c Client) BoopName(ctx context.Context, recipient string) (Result, error) {
	return c.run(ctx, func(sender string) protocol.Notification {
		return protocol.ToName(sender, recipient)
	})
}

// ResolveName asks the daemon on this host for its registered name.
func (c Client) ResolveName(ctx context.Context) (string, error) {
	conn, err := c.network().Listen(transport.Any(0))
	if err != nil {
		return "", err
	}
	defer conn.Close()
	return c.resolve(ctx, conn)
}

func (c Client) run(ctx context.Context, build func(sender string) protocol.Notification) (Result, error) {
	res := Result{Phase: PhaseStart}

	conn, err := c.network().Listen(transport.Any(0))
	if err != nil {
		res.Phase = PhaseFailed
		return res, err
	}
	defer conn.Close()

	res.Phase = PhaseNameResolution
	sender, err := c.resolve(ctx, conn)
	if err != nil {
		res.Phase = PhaseFailed
		return res, err
	}

	res.Phase = PhaseBroadcasting
	res.Notification = build(sender)
	payload, err := protocol.EncodeNotification(res.Notification)
	if err != nil {
		res.Phase = PhaseFailed
		return res, fmt.Errorf("%w: %w", ErrBroadcast, err)
	}
	if err := conn.SetBroadcast(true); err != nil {
		res.Phase = PhaseFailed
		return res, fmt.Errorf("%w: %w: %w", ErrBroadcast, transport.ErrTransport, err)
	}
	to := transport.Broadcast(c.port())
	if _, err := conn.WriteTo(payload, to); err != nil {
		res.Phase = PhaseFailed
		return res, fmt.Errorf("%w: %w", ErrBroadcast, err)
	}

	res.Phase = PhaseDone
	res.Payload = payload
	log.Debug().
		Str("sender", sender).
		Bool("targeted", res.Notification.Targeted).
		Str("recipient", res.Notification.Recipient).
		Stringer("to", to).
		Msg("client: boop sent")
	return res, nil
}

// resolve sends one query over loopback and waits for exactly one reply.
// The endpoint is closed if ctx or the resolve timeout expires first.
func (c Client) resolve(ctx context.Context, conn transport.Conn) (string, error) {
	if c.ResolveTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.ResolveTimeout)
		defer cancel()
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	to := transport.Loopback(c.port())
	if _, err := conn.WriteTo(protocol.EncodeQuery(), to); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: %w", ErrNoDaemon, context.Cause(ctx))
		}
		return "", err
	}

	buf := make([]byte, protocol.MaxDatagramLen)
	n, from, err := conn.ReadFrom(buf)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: %w", ErrNoDaemon, context.Cause(ctx))
		}
		return "", err
	}
	name := protocol.DecodeNameReply(buf[:n])
	log.Debug().Str("name", name).Stringer("from", from).Msg("client: resolved local name")
	return name, nil
}
