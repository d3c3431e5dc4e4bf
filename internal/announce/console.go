package announce

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Console prints announcements as styled lines, for hosts without speech.
type Console struct {
	out   io.Writer
	style lipgloss.Style

	mu     sync.Mutex
	closed bool
}

var _ Announcer = (*Console)(nil)

func NewConsole(out io.Writer) *Console {
	r := lipgloss.NewRenderer(out)
	return &Console{
		out:   out,
		style: r.NewStyle().Foreground(lipgloss.Color("#a6e3a1")).Bold(true),
	}
}

func (c *Console) Announce(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("%w: console closed", ErrAnnounce)
	}
	if _, err := fmt.Fprintln(c.out, c.style.Render(text)); err != nil {
		return fmt.Errorf("%w: %w", ErrAnnounce, err)
	}
	return nil
}

func (c *Console) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}
