package daemon

import (
	"context"
	"fmt"
	"os/signal"
	"sync"
	"syscall"

	"github.com/Connicpu/boop/internal/admin"
	"github.com/Connicpu/boop/internal/announce"
	"github.com/Connicpu/boop/internal/mdns"
	"github.com/Connicpu/boop/internal/transport"
	"github.com/rs/zerolog/log"
)

// ServiceConfig configures the daemon process and its optional surfaces.
type ServiceConfig struct {
	Name        string
	Port        int
	ErrorPolicy ErrorPolicy
	Announcer   announce.Config
	AdminAddr   string
	AdminToken  string
	CorsOrigins []string
	MDNS        bool
	Version     string

	Network      transport.Network
	NewAnnouncer func(announce.Config) (announce.Announcer, error)
}

// Service runs one daemon as a standalone process.
type Service struct {
	cfg ServiceConfig

	mu     sync.RWMutex
	daemon *Daemon
}

func NewService(cfg ServiceConfig) *Service {
	if cfg.NewAnnouncer == nil {
		cfg.NewAnnouncer = announce.New
	}
	return &Service{cfg: cfg}
}

// Run blocks until SIGINT/SIGTERM or a fatal daemon failure.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.Serve(ctx)
}

// Daemon is the running daemon, nil before Serve constructs it.
func (s *Service) Daemon() *Daemon {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.daemon
}

// Serve acquires the announcer, binds the daemon and runs it with the
// optional admin server and mDNS advertisement until ctx is done.
func (s *Service) Serve(ctx context.Context) error {
	ann, err := s.cfg.NewAnnouncer(s.cfg.Announcer)
	if err != nil {
		return fmt.Errorf("daemon: start announcer: %w", err)
	}
	defer ann.Close()

	d, err := New(Config{
		Name:        s.cfg.Name,
		Port:        s.cfg.Port,
		Network:     s.cfg.Network,
		Announcer:   ann,
		ErrorPolicy: s.cfg.ErrorPolicy,
	})
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.daemon = d
	s.mu.Unlock()

	if err := d.Bind(); err != nil {
		return err
	}

	if s.cfg.MDNS {
		adv, err := mdns.Advertise(d.Name(), d.Port(), d.InstanceID())
		if err != nil {
			log.Warn().Err(err).Msg("daemon: mdns advertisement unavailable")
		} else {
			defer adv.Shutdown()
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	adminErr := make(chan error, 1)
	if s.cfg.AdminAddr != "" {
		srv := admin.New(admin.Config{
			Node:        d.Name(),
			Addr:        s.cfg.AdminAddr,
			Version:     s.cfg.Version,
			CorsOrigins: s.cfg.CorsOrigins,
			Token:       s.cfg.AdminToken,
			Status:      func() any { return d.Status() },
			Ready:       func() bool { return d.Status().Phase == PhaseListening },
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			adminErr <- srv.Serve(runCtx)
		}()
	}

	daemonErr := make(chan error, 1)
	go func() {
		daemonErr <- d.Run(runCtx)
	}()

	select {
	case err = <-daemonErr:
	case err = <-adminErr:
		cancel()
		derr := <-daemonErr
		if err != nil {
			err = fmt.Errorf("daemon: admin server: %w", err)
		} else {
			err = derr
		}
	}
	cancel()
	wg.Wait()

	st := d.Status()
	log.Info().
		Str("name", st.Name).
		Str("phase", string(st.Phase)).
		Uint64("received", st.Received).
		Uint64("announced", st.Announced).
		Msg("daemon: service exited")
	return err
}
