package announce

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/Connicpu/boop/internal/tools"
	"github.com/rs/zerolog/log"
)

// backend turns announcement text into one speech command line.
type backend struct {
	name string
	args func(text string) []string
}

// trailingText ends option parsing before the text. Announcements start with
// a sender name taken off the network, so a name like "-w/tmp/x" must reach
// the speech command as words, not as a flag.
func trailingText(prefix ...string) func(string) []string {
	return func(text string) []string {
		args := make([]string, 0, len(prefix)+2)
		args = append(args, prefix...)
		return append(args, "--", text)
	}
}

// DefaultMaxInFlight bounds concurrent speech processes per Speaker.
const DefaultMaxInFlight = 4

const windowsSpeechScript = "Add-Type -AssemblyName System.Speech; " +
	"(New-Object System.Speech.Synthesis.SpeechSynthesizer).Speak('%s')"

func backendsFor(goos string) []backend {
	switch goos {
	case "darwin":
		return []backend{{name: "say", args: trailingText()}}
	case "windows":
		return []backend{{
			name: "powershell",
			args: func(text string) []string {
				script := fmt.Sprintf(windowsSpeechScript, strings.ReplaceAll(text, "'", "''"))
				return []string{"-NoProfile", "-NonInteractive", "-Command", script}
			},
		}}
	default:
		return []backend{
			{name: "spd-say", args: trailingText("--wait")},
			{name: "espeak-ng", args: trailingText()},
			{name: "espeak", args: trailingText()},
		}
	}
}

// SpeakerConfig configures speech backend discovery. Zero values select the
// host platform, os/exec lookups, ExecRunner and DefaultMaxInFlight.
type SpeakerConfig struct {
	Command     []string
	GOOS        string
	LookPath    func(file string) (string, error)
	Runner      tools.CommandRunner
	MaxInFlight int
}

// Speaker speaks each announcement through a host speech command, one
// process per announcement. Announcements arriving while every in-flight
// slot is busy are dropped.
type Speaker struct {
	backend backend
	runner  tools.CommandRunner
	slots   chan struct{}
	dropped atomic.Uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
}

var _ Announcer = (*Speaker)(nil)

// NewSpeaker acquires a speech backend. It fails with ErrAnnounce when the
// host has none.
func NewSpeaker(cfg SpeakerConfig) (*Speaker, error) {
	goos := cfg.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}
	lookPath := cfg.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	runner := cfg.Runner
	if runner == nil {
		runner = tools.ExecRunner{}
	}
	maxInFlight := cfg.MaxInFlight
	if maxInFlight <= 0 {
		maxInFlight = DefaultMaxInFlight
	}

	b, err := resolveBackend(cfg.Command, goos, lookPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAnnounce, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	log.Debug().Str("backend", b.name).Msg("announce: speech backend ready")
	return &Speaker{
		backend: b,
		runner:  runner,
		slots:   make(chan struct{}, maxInFlight),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

func resolveBackend(command []string, goos string, lookPath func(string) (string, error)) (backend, error) {
	if len(command) > 0 && strings.TrimSpace(command[0]) != "" {
		if _, err := lookPath(command[0]); err != nil {
			return backend{}, fmt.Errorf("%w: %w", ErrNoSpeechBackend, err)
		}
		return backend{name: command[0], args: trailingText(command[1:]...)}, nil
	}
	candidates := backendsFor(goos)
	for _, b := range candidates {
		if _, err := lookPath(b.name); err == nil {
			return b, nil
		}
	}
	names := make([]string, 0, len(candidates))
	for _, b := range candidates {
		names = append(names, b.name)
	}
	return backend{}, fmt.Errorf("%w: tried %s", ErrNoSpeechBackend, strings.Join(names, ", "))
}

// Backend names the speech command in use.
func (s *Speaker) Backend() string {
	return s.backend.name
}

// Dropped counts announcements skipped because every slot was busy.
func (s *Speaker) Dropped() uint64 {
	return s.dropped.Load()
}

func (s *Speaker) Announce(text string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("%w: speaker closed", ErrAnnounce)
	}
	select {
	case s.slots <- struct{}{}:
	default:
		s.mu.Unlock()
		s.dropped.Add(1)
		log.Warn().Str("backend", s.backend.name).Int("in_flight", cap(s.slots)).Msg("announce: busy, dropping announcement")
		return nil
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go s.speak(text)
	return nil
}

func (s *Speaker) speak(text string) {
	defer s.wg.Done()
	defer func() { <-s.slots }()
	_, stderr, code, err := s.runner.Run(s.ctx, s.backend.name, s.backend.args(text)...)
	if err != nil && s.ctx.Err() == nil {
		log.Warn().
			Err(err).
			Str("backend", s.backend.name).
			Int32("exit_code", code).
			Str("stderr", strings.TrimSpace(string(stderr))).
			Msg("announce: speech command failed")
	}
}

// Close stops in-flight speech and waits for it to unwind. Safe to call more
// than once.
func (s *Speaker) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		s.cancel()
		s.wg.Wait()
	})
	return nil
}
