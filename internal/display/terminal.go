package display

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/jmylchreest/overlayd/internal/config"
	"github.com/jmylchreest/overlayd/internal/model"
	"github.com/jmylchreest/overlayd/internal/overlay"
)

// Terminal draws the overlay as a bordered box on a terminal. Updates
// erase the previous box in place.
type Terminal struct {
	mu     sync.Mutex
	logger *slog.Logger

	out      *termenv.Output
	renderer *lipgloss.Renderer
	closer   io.Closer // Non-nil when the output was opened by us

	cfg   config.TerminalConfig
	lines int // Lines drawn by the last render

	current *terminalSurface
}

// terminalSurface is the Handle returned by Terminal.Attach.
type terminalSurface struct {
	id string
}

// OpenTerminal creates a terminal backend writing to cfg.Terminal.Output.
func OpenTerminal(cfg *config.DaemonConfig, logger *slog.Logger) (*Terminal, error) {
	var (
		w      io.Writer
		closer io.Closer
	)
	switch cfg.Terminal.Output {
	case "stdout":
		w = os.Stdout
	case "stderr", "":
		w = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Terminal.Output, os.O_WRONLY, 0)
		if err != nil {
			return nil, &DisplayError{Message: "failed to open terminal output", Cause: err}
		}
		w, closer = f, f
	}

	t := NewTerminal(w, cfg.Terminal, logger)
	t.closer = closer
	return t, nil
}

// NewTerminal creates a terminal backend writing to w.
func NewTerminal(w io.Writer, cfg config.TerminalConfig, logger *slog.Logger) *Terminal {
	if logger == nil {
		logger = slog.Default()
	}
	return &Terminal{
		logger:   logger,
		out:      termenv.NewOutput(w),
		renderer: lipgloss.NewRenderer(w),
		cfg:      cfg,
	}
}

// Name returns "terminal".
func (t *Terminal) Name() string {
	return config.BackendTerminal
}

// Run calls OnReady, waits for ctx and calls OnShutdown. The terminal has
// no event loop of its own.
func (t *Terminal) Run(ctx context.Context, hooks Hooks) error {
	if hooks.OnReady != nil {
		if err := hooks.OnReady(); err != nil {
			return err
		}
	}

	<-ctx.Done()

	if hooks.OnShutdown != nil {
		hooks.OnShutdown()
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closer != nil {
		err := t.closer.Close()
		t.closer = nil
		return err
	}
	return nil
}

// Configure restyles the box. Changing the output requires a restart.
func (t *Terminal) Configure(cfg *config.DaemonConfig) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if cfg.Terminal.Output != t.cfg.Output {
		t.logger.Warn("terminal output change requires restart", "output", cfg.Terminal.Output)
	}
	output := t.cfg.Output
	t.cfg = cfg.Terminal
	t.cfg.Output = output
}

// Attach draws the box.
func (t *Terminal) Attach(p overlay.Payload) (overlay.Handle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current != nil {
		return nil, errors.New("terminal surface already attached")
	}
	surface := &terminalSurface{id: p.ID}
	if err := t.drawLocked(p); err != nil {
		return nil, err
	}
	t.current = surface
	return surface, nil
}

// Update redraws the box in place.
func (t *Terminal) Update(h overlay.Handle, p overlay.Payload) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	surface, err := t.surfaceLocked(h)
	if err != nil {
		return err
	}
	t.clearLocked()
	surface.id = p.ID
	return t.drawLocked(p)
}

// Detach erases the box.
func (t *Terminal) Detach(h overlay.Handle) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := t.surfaceLocked(h); err != nil {
		return err
	}
	t.clearLocked()
	t.current = nil
	return nil
}

func (t *Terminal) surfaceLocked(h overlay.Handle) (*terminalSurface, error) {
	surface, ok := h.(*terminalSurface)
	if !ok || surface == nil || surface != t.current {
		return nil, fmt.Errorf("unknown terminal surface %v", h)
	}
	return surface, nil
}

func (t *Terminal) drawLocked(p overlay.Payload) error {
	box := t.render(p)
	if _, err := t.out.WriteString(box + "\n"); err != nil {
		return &DisplayError{Message: "failed to write overlay", Cause: err}
	}
	t.lines = strings.Count(box, "\n") + 1
	return nil
}

func (t *Terminal) clearLocked() {
	if t.lines == 0 {
		return
	}
	t.out.ClearLines(t.lines)
	t.lines = 0
}

// render builds the styled box for a payload.
func (t *Terminal) render(p overlay.Payload) string {
	style := t.renderer.NewStyle().
		Border(borderStyle(t.cfg.Border)).
		Padding(0, 1)

	if t.cfg.Width > 0 {
		style = style.Width(t.cfg.Width)
	}
	if t.cfg.Foreground != "" {
		style = style.Foreground(lipgloss.Color(t.cfg.Foreground))
	}
	if t.cfg.Background != "" {
		style = style.Background(lipgloss.Color(t.cfg.Background))
	}

	switch p.Priority {
	case model.PriorityLow:
		style = style.Faint(true)
	case model.PriorityHigh:
		style = style.BorderForeground(lipgloss.Color(t.cfg.AccentColor))
	case model.PriorityCritical:
		style = style.Bold(true).BorderForeground(lipgloss.Color(t.cfg.AccentColor))
	}

	return style.Render(p.Text)
}

func borderStyle(name string) lipgloss.Border {
	switch name {
	case "normal":
		return lipgloss.NormalBorder()
	case "thick":
		return lipgloss.ThickBorder()
	case "double":
		return lipgloss.DoubleBorder()
	case "hidden":
		return lipgloss.HiddenBorder()
	default:
		return lipgloss.RoundedBorder()
	}
}
