package display

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/overlayd/internal/config"
	"github.com/jmylchreest/overlayd/internal/model"
	"github.com/jmylchreest/overlayd/internal/overlay"
)

const clearLine = "\x1b[2K"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestTerminal(t *testing.T) (*Terminal, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	cfg := config.DefaultDaemonConfig()
	return NewTerminal(&buf, cfg.Terminal, discardLogger()), &buf
}

func payload(id, text string, p model.Priority) overlay.Payload {
	return overlay.Payload{ID: id, Text: text, Priority: p}
}

func TestTerminal_AttachDrawsBox(t *testing.T) {
	term, buf := newTestTerminal(t)

	h, err := term.Attach(payload("a", "hello overlay", model.PriorityNormal))
	require.NoError(t, err)
	require.NotNil(t, h)

	out := buf.String()
	assert.Contains(t, out, "hello overlay")
	assert.Contains(t, out, "╭", "rounded border by default")
	assert.NotContains(t, out, clearLine)
}

func TestTerminal_SecondAttachFails(t *testing.T) {
	term, _ := newTestTerminal(t)

	_, err := term.Attach(payload("a", "one", model.PriorityNormal))
	require.NoError(t, err)
	_, err = term.Attach(payload("b", "two", model.PriorityNormal))
	assert.Error(t, err)
}

func TestTerminal_UpdateRedrawsInPlace(t *testing.T) {
	term, buf := newTestTerminal(t)

	h, err := term.Attach(payload("a", "first", model.PriorityNormal))
	require.NoError(t, err)
	buf.Reset()

	require.NoError(t, term.Update(h, payload("b", "second", model.PriorityHigh)))

	out := buf.String()
	assert.Contains(t, out, clearLine)
	assert.Contains(t, out, "second")
	assert.NotContains(t, out, "first")
	assert.Equal(t, "b", h.(*terminalSurface).id)
}

func TestTerminal_DetachClears(t *testing.T) {
	term, buf := newTestTerminal(t)

	h, err := term.Attach(payload("a", "bye", model.PriorityLow))
	require.NoError(t, err)
	buf.Reset()

	require.NoError(t, term.Detach(h))
	assert.Contains(t, buf.String(), clearLine)

	// The handle is gone once detached.
	assert.Error(t, term.Detach(h))
	assert.Error(t, term.Update(h, payload("a", "again", model.PriorityLow)))

	// A new surface can be attached afterwards.
	_, err = term.Attach(payload("b", "back", model.PriorityLow))
	assert.NoError(t, err)
}

func TestTerminal_ForeignHandleRejected(t *testing.T) {
	term, _ := newTestTerminal(t)
	_, err := term.Attach(payload("a", "x", model.PriorityNormal))
	require.NoError(t, err)

	assert.Error(t, term.Update("not-a-handle", payload("a", "y", model.PriorityNormal)))
	assert.Error(t, term.Detach(&terminalSurface{id: "a"}))
}

func TestTerminal_Borders(t *testing.T) {
	tests := []struct {
		border string
		corner string
	}{
		{"rounded", "╭"},
		{"normal", "┌"},
		{"thick", "┏"},
		{"double", "╔"},
	}
	for _, tt := range tests {
		t.Run(tt.border, func(t *testing.T) {
			var buf bytes.Buffer
			cfg := config.DefaultDaemonConfig().Terminal
			cfg.Border = tt.border
			term := NewTerminal(&buf, cfg, discardLogger())

			_, err := term.Attach(payload("a", "text", model.PriorityNormal))
			require.NoError(t, err)
			assert.Contains(t, buf.String(), tt.corner)
		})
	}
}

func TestTerminal_ConfigureRestyles(t *testing.T) {
	term, buf := newTestTerminal(t)

	cfg := config.DefaultDaemonConfig()
	cfg.Terminal.Border = "double"
	cfg.Terminal.Output = "/dev/null"
	term.Configure(cfg)

	_, err := term.Attach(payload("a", "styled", model.PriorityCritical))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "╔")
	assert.Equal(t, config.DefaultDaemonConfig().Terminal.Output, term.cfg.Output, "output is fixed at start")
}

func TestTerminal_MultilineClearsEveryLine(t *testing.T) {
	term, buf := newTestTerminal(t)

	h, err := term.Attach(payload("a", "one\ntwo\nthree", model.PriorityNormal))
	require.NoError(t, err)
	// Three text lines plus top and bottom border.
	assert.Equal(t, 5, term.lines)

	buf.Reset()
	require.NoError(t, term.Detach(h))
	assert.Equal(t, 5, bytes.Count(buf.Bytes(), []byte("\x1b[1A")))
}

func TestTerminal_RunCallsHooks(t *testing.T) {
	term, _ := newTestTerminal(t)
	ctx, cancel := context.WithCancel(context.Background())

	var ready, shutdown bool
	done := make(chan error, 1)
	go func() {
		done <- term.Run(ctx, Hooks{
			OnReady:    func() error { ready = true; return nil },
			OnShutdown: func() { shutdown = true },
		})
	}()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
	assert.True(t, ready)
	assert.True(t, shutdown)
}

func TestTerminal_RunReadyError(t *testing.T) {
	term, _ := newTestTerminal(t)
	boom := errors.New("boom")

	shutdown := false
	err := term.Run(context.Background(), Hooks{
		OnReady:    func() error { return boom },
		OnShutdown: func() { shutdown = true },
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, shutdown)
}

func TestNew_Terminal(t *testing.T) {
	cfg := config.DefaultDaemonConfig()
	b, err := New(cfg, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, config.BackendTerminal, b.Name())
}

func TestNew_UnknownBackend(t *testing.T) {
	cfg := config.DefaultDaemonConfig()
	cfg.Display.Backend = "x11"
	_, err := New(cfg, discardLogger())

	var displayErr *DisplayError
	assert.ErrorAs(t, err, &displayErr)
}

func TestOpenTerminal_BadPath(t *testing.T) {
	cfg := config.DefaultDaemonConfig()
	cfg.Terminal.Output = "/nonexistent/dir/tty"
	_, err := OpenTerminal(cfg, discardLogger())

	var displayErr *DisplayError
	require.ErrorAs(t, err, &displayErr)
	assert.Error(t, displayErr.Unwrap())
}

func TestPriorityClasses(t *testing.T) {
	assert.Equal(t, "priority-critical", priorityClass(model.PriorityCritical))
	assert.Equal(t, []string{"priority-low", "priority-normal", "priority-high", "priority-critical"}, priorityClasses())
}
