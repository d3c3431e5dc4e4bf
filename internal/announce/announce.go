// Package announce renders boop announcements for a listening daemon.
//
// An Announcer must return from Announce without waiting for the
// announcement to finish rendering. Announcements are not ordered relative
// to each other and may overlap.
package announce

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

var (
	ErrAnnounce        = errors.New("announce: announcement failed")
	ErrNoSpeechBackend = errors.New("announce: no speech backend found")
	ErrUnknownKind     = errors.New("announce: unknown announcer kind")
)

// Announcer queues text for rendering. Close releases the underlying
// resource; Announce after Close fails with ErrAnnounce.
type Announcer interface {
	Announce(text string) error
	Close() error
}

type Kind string

const (
	KindSpeech  Kind = "speech"
	KindConsole Kind = "console"
)

// Config selects and configures an Announcer.
type Config struct {
	Kind          Kind
	SpeechCommand []string
	Out           io.Writer
}

// New constructs the configured Announcer. The caller owns the result and
// must Close it.
func New(cfg Config) (Announcer, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(string(cfg.Kind)))) {
	case KindSpeech, "":
		return NewSpeaker(SpeakerConfig{Command: cfg.SpeechCommand})
	case KindConsole:
		out := cfg.Out
		if out == nil {
			out = os.Stdout
		}
		return NewConsole(out), nil
	default:
		return nil, fmt.Errorf("%w: %w: %q", ErrAnnounce, ErrUnknownKind, cfg.Kind)
	}
}
