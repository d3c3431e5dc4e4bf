package daemon

import (
	"context"
	"errors"
	"testing"

	"github.com/Connicpu/boop/internal/admin"
	"github.com/Connicpu/boop/internal/announce"
	"github.com/Connicpu/boop/internal/protocol"
	"github.com/Connicpu/boop/internal/testutil/memnet"
	"github.com/Connicpu/boop/internal/testutil/testlog"
	"github.com/Connicpu/boop/internal/transport"
)

func serviceWith(host *memnet.Host, name string, ann *recordingAnnouncer) *Service {
	return NewService(ServiceConfig{
		Name:    name,
		Network: host,
		NewAnnouncer: func(announce.Config) (announce.Announcer, error) {
			return ann, nil
		},
	})
}

func TestServiceRunsUntilCanceled(t *testing.T) {
	testlog.Start(t)

	network := memnet.New()
	host := network.Host("10.0.0.3")
	ann := &recordingAnnouncer{}
	svc := serviceWith(host, "Rex", ann)
	svc.cfg.AdminAddr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	waitFor(t, "daemon listening", func() bool {
		d := svc.Daemon()
		return d != nil && d.Status().Phase == PhaseListening
	})

	peer, err := network.Host("10.0.0.9").Listen(transport.Any(0))
	if err != nil {
		t.Fatalf("listen peer: %v", err)
	}
	defer peer.Close()
	if err := peer.SetBroadcast(true); err != nil {
		t.Fatalf("set broadcast: %v", err)
	}
	if _, err := peer.WriteTo([]byte("boop Cleo->Rex"), transport.Broadcast(protocol.Port)); err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	waitFor(t, "announcement", func() bool {
		return equalTexts(ann.Texts(), "Cleo is booping you!")
	})

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("serve: %v", err)
	}
	if !ann.closed {
		t.Fatalf("announcer not closed")
	}
	if phase := svc.Daemon().Status().Phase; phase != PhaseStopped {
		t.Fatalf("unexpected phase: %q", phase)
	}
}

func TestServiceAnnouncerFailureIsFatal(t *testing.T) {
	testlog.Start(t)

	host := memnet.New().Host("10.0.0.3")
	svc := NewService(ServiceConfig{
		Name:    "Rex",
		Network: host,
		NewAnnouncer: func(announce.Config) (announce.Announcer, error) {
			return nil, announce.ErrNoSpeechBackend
		},
	})
	if err := svc.Serve(context.Background()); !errors.Is(err, announce.ErrNoSpeechBackend) {
		t.Fatalf("expected announcer error, got %v", err)
	}
	if svc.Daemon() != nil {
		t.Fatalf("daemon constructed without an announcer")
	}
	conn, err := host.Listen(transport.Any(protocol.Port))
	if err != nil {
		t.Fatalf("port should be free: %v", err)
	}
	conn.Close()
}

func TestServiceBindFailureClosesAnnouncer(t *testing.T) {
	testlog.Start(t)

	host := memnet.New().Host("10.0.0.3")
	held, err := host.Listen(transport.Any(protocol.Port))
	if err != nil {
		t.Fatalf("hold port: %v", err)
	}
	defer held.Close()

	ann := &recordingAnnouncer{}
	if err := serviceWith(host, "Rex", ann).Serve(context.Background()); !errors.Is(err, transport.ErrBind) {
		t.Fatalf("expected ErrBind, got %v", err)
	}
	if !ann.closed {
		t.Fatalf("announcer not closed after bind failure")
	}
}

func TestServiceAdminFailureStopsDaemon(t *testing.T) {
	testlog.Start(t)

	host := memnet.New().Host("10.0.0.3")
	svc := serviceWith(host, "Rex", &recordingAnnouncer{})
	svc.cfg.AdminAddr = "not-an-address"

	err := svc.Serve(context.Background())
	if !errors.Is(err, admin.ErrListen) {
		t.Fatalf("expected admin listen error, got %v", err)
	}
	if phase := svc.Daemon().Status().Phase; phase != PhaseStopped {
		t.Fatalf("unexpected phase: %q", phase)
	}
	conn, err := host.Listen(transport.Any(protocol.Port))
	if err != nil {
		t.Fatalf("port should be released: %v", err)
	}
	conn.Close()
}
