package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/Connicpu/boop/internal/announce"
	"github.com/Connicpu/boop/internal/observability"
	"github.com/Connicpu/boop/internal/protocol"
	"github.com/Connicpu/boop/internal/transport"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrLifecycleOrder = errors.New("daemon: invalid lifecycle transition")
	ErrNoAnnouncer    = errors.New("daemon: no announcer configured")
	ErrInvalidPolicy  = errors.New("daemon: invalid error policy")
	ErrReplyFailed    = errors.New("daemon: query reply failed")
	ErrAnnounceFailed = errors.New("daemon: announcement failed")
	ErrReceiveFailed  = errors.New("daemon: receive failed")
)

// recvBufferLen holds any UDP payload so oversized datagrams never surface
// as a receive error on platforms that refuse to truncate.
const recvBufferLen = 64 * 1024

// Phase describes daemon lifecycle transitions.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseBound     Phase = "bound"
	PhaseListening Phase = "listening"
	PhaseStopped   Phase = "stopped"
	PhaseFailed    Phase = "failed"
)

// ErrorPolicy decides what a per-datagram reply or announce failure does.
type ErrorPolicy string

const (
	// PolicyFatal ends the loop on the first reply or announce failure.
	PolicyFatal ErrorPolicy = "fatal"
	// PolicyContinue logs the failure and keeps listening.
	PolicyContinue ErrorPolicy = "continue"
)

func ParseErrorPolicy(raw string) (ErrorPolicy, error) {
	switch ErrorPolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case PolicyFatal, "":
		return PolicyFatal, nil
	case PolicyContinue:
		return PolicyContinue, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPolicy, raw)
	}
}

// Config configures one daemon instance.
type Config struct {
	Name        string
	Port        int
	Network     transport.Network
	Announcer   announce.Announcer
	ErrorPolicy ErrorPolicy
}

// Status reports daemon identity, phase and counters.
type Status struct {
	Name       string `json:"name"`
	InstanceID string `json:"instance_id"`
	Phase      Phase  `json:"phase"`
	Port       int    `json:"port"`
	Received   uint64 `json:"received"`
	Discarded  uint64 `json:"discarded"`
	Queries    uint64 `json:"queries"`
	Announced  uint64 `json:"announced"`
	Ignored    uint64 `json:"ignored"`
	Failures   uint64 `json:"failures"`
	Error      string `json:"error,omitempty"`
}

type counters struct {
	received  atomic.Uint64
	discarded atomic.Uint64
	queries   atomic.Uint64
	announced atomic.Uint64
	ignored   atomic.Uint64
	failures  atomic.Uint64
}

// Daemon answers name queries and announces notifications addressed to it.
type Daemon struct {
	name       string
	instanceID string
	port       int
	network    transport.Network
	announcer  announce.Announcer
	policy     ErrorPolicy

	mu      sync.RWMutex
	phase   Phase
	conn    transport.Conn
	failure error

	stats counters
}

// New validates cfg and returns a daemon in idle phase.
func New(cfg Config) (*Daemon, error) {
	if err := protocol.ValidateName(cfg.Name); err != nil {
		return nil, err
	}
	if cfg.Announcer == nil {
		return nil, ErrNoAnnouncer
	}
	policy, err := ParseErrorPolicy(string(cfg.ErrorPolicy))
	if err != nil {
		return nil, err
	}
	port := cfg.Port
	if port == 0 {
		port = protocol.Port
	}
	network := cfg.Network
	if network == nil {
		network = transport.UDP{}
	}
	return &Daemon{
		name:       cfg.Name,
		instanceID: uuid.NewString(),
		port:       port,
		network:    network,
		announcer:  cfg.Announcer,
		policy:     policy,
		phase:      PhaseIdle,
	}, nil
}

func (d *Daemon) Name() string {
	return d.name
}

func (d *Daemon) InstanceID() string {
	return d.instanceID
}

func (d *Daemon) Port() int {
	return d.port
}

// Bind claims the well-known port on all interfaces and enables broadcast,
// transitioning idle->bound. Failures wrap transport.ErrBind.
func (d *Daemon) Bind() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.phase != PhaseIdle {
		return transitionError(d.phase, PhaseBound)
	}

	conn, err := d.network.Listen(transport.Any(d.port))
	if err != nil {
		return err
	}
	if err := conn.SetBroadcast(true); err != nil {
		conn.Close()
		return fmt.Errorf("%w: %w", transport.ErrBind, err)
	}
	d.conn = conn
	d.phase = PhaseBound
	log.Info().
		Str("name", d.name).
		Str("instance_id", d.instanceID).
		Stringer("addr", conn.LocalAddr()).
		Msg("daemon: bound")
	return nil
}

// Run transitions bound->listening and handles datagrams until ctx is done
// (stopped, nil error) or a fatal failure occurs (failed, error returned).
// The endpoint is closed on every exit path.
func (d *Daemon) Run(ctx context.Context) error {
	d.mu.Lock()
	if d.phase != PhaseBound {
		phase := d.phase
		d.mu.Unlock()
		return transitionError(phase, PhaseListening)
	}
	d.phase = PhaseListening
	conn := d.conn
	d.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	defer conn.Close()

	log.Info().Str("name", d.name).Int("port", d.port).Msg("daemon: listening")

	buf := make([]byte, recvBufferLen)
	for {
		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				d.finish(PhaseStopped, nil)
				log.Info().Str("name", d.name).Msg("daemon: stopped")
				return nil
			}
			return d.finish(PhaseFailed, fmt.Errorf("%w: %w", ErrReceiveFailed, err))
		}
		if err := d.handle(conn, buf[:n], from); err != nil {
			return d.finish(PhaseFailed, err)
		}
	}
}

// Serve binds and runs in one call.
func (d *Daemon) Serve(ctx context.Context) error {
	if err := d.Bind(); err != nil {
		return err
	}
	return d.Run(ctx)
}

func (d *Daemon) handle(conn transport.Conn, payload []byte, from net.Addr) error {
	d.stats.received.Add(1)
	observability.RecordDatagram(d.name)

	if len(payload) < protocol.MinDatagramLen {
		d.discard(observability.DiscardShort, from)
		return nil
	}

	msg := protocol.Decode(payload)
	switch msg.Kind {
	case protocol.KindQuery:
		return d.reply(conn, from)
	case protocol.KindNotification:
		return d.notify(msg.Notification, from)
	default:
		d.discard(observability.DiscardUnrecognized, from)
		return nil
	}
}

func (d *Daemon) reply(conn transport.Conn, to net.Addr) error {
	if _, err := conn.WriteTo([]byte(d.name), to); err != nil {
		return d.fail("reply", fmt.Errorf("%w: to %s: %w", ErrReplyFailed, to, err))
	}
	d.stats.queries.Add(1)
	observability.RecordQuery(d.name)
	log.Debug().Stringer("from", to).Msg("daemon: answered name query")
	return nil
}

func (d *Daemon) notify(n protocol.Notification, from net.Addr) error {
	if !n.AddressedTo(d.name) {
		d.stats.ignored.Add(1)
		observability.RecordNotification(d.name, observability.OutcomeIgnored)
		d.discard(observability.DiscardNotForUs, from)
		return nil
	}

	text := Announcement(n)
	if err := d.announcer.Announce(text); err != nil {
		return d.fail("announce", fmt.Errorf("%w: %w", ErrAnnounceFailed, err))
	}

	outcome := observability.OutcomeEveryone
	if n.Targeted {
		outcome = observability.OutcomeYou
	}
	d.stats.announced.Add(1)
	observability.RecordNotification(d.name, outcome)
	log.Info().
		Str("sender", n.Sender).
		Stringer("from", from).
		Str("outcome", outcome).
		Msg("daemon: booped")
	return nil
}

// Announcement renders the spoken text for a notification already known to
// be addressed to this daemon.
func Announcement(n protocol.Notification) string {
	if n.Targeted {
		return n.Sender + " is booping you!"
	}
	return n.Sender + " is booping everyone!!!"
}

func (d *Daemon) discard(reason string, from net.Addr) {
	d.stats.discarded.Add(1)
	observability.RecordDiscard(d.name, reason)
	log.Debug().Str("reason", reason).Stringer("from", from).Msg("daemon: discarded datagram")
}

// fail applies the error policy: nil keeps the loop running.
func (d *Daemon) fail(op string, err error) error {
	d.stats.failures.Add(1)
	observability.RecordFailure(d.name, op)
	if d.policy == PolicyContinue {
		log.Warn().Err(err).Str("op", op).Msg("daemon: continuing after failure")
		return nil
	}
	return err
}

func (d *Daemon) finish(phase Phase, err error) error {
	d.mu.Lock()
	d.phase = phase
	d.failure = err
	d.mu.Unlock()
	if err != nil {
		log.Error().Err(err).Str("name", d.name).Msg("daemon: failed")
	}
	return err
}

// Status returns the current phase and counters.
func (d *Daemon) Status() Status {
	d.mu.RLock()
	phase := d.phase
	failure := d.failure
	d.mu.RUnlock()

	st := Status{
		Name:       d.name,
		InstanceID: d.instanceID,
		Phase:      phase,
		Port:       d.port,
		Received:   d.stats.received.Load(),
		Discarded:  d.stats.discarded.Load(),
		Queries:    d.stats.queries.Load(),
		Announced:  d.stats.announced.Load(),
		Ignored:    d.stats.ignored.Load(),
		Failures:   d.stats.failures.Load(),
	}
	if failure != nil {
		st.Error = failure.Error()
	}
	return st
}

func transitionError(from, to Phase) error {
	return fmt.Errorf("%w: %s -> %s", ErrLifecycleOrder, from, to)
}
