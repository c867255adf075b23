package display

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmylchreest/overlayd/internal/config"
	"github.com/jmylchreest/overlayd/internal/model"
	"github.com/jmylchreest/overlayd/internal/overlay"
)

// Hooks let the daemon run its lifecycle inside the backend's event loop.
type Hooks struct {
	// OnReady runs once the backend can accept Attach calls. An error
	// aborts Run.
	OnReady func() error
	// OnShutdown runs before the event loop stops, while the backend can
	// still service Detach.
	OnShutdown func()
	// OnDismiss is called with the content id when the user dismisses the
	// surface directly.
	OnDismiss func(id string)
}

// Backend is a platform surface with its own event loop.
type Backend interface {
	overlay.Resource

	// Run blocks until ctx is done, calling the hooks along the way.
	Run(ctx context.Context, hooks Hooks) error
	// Configure applies styling changes from a reloaded config.
	Configure(cfg *config.DaemonConfig)
	// Name returns the backend name as used in the config.
	Name() string
}

// New creates the backend selected by cfg.Display.Backend.
func New(cfg *config.DaemonConfig, logger *slog.Logger) (Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Display.Backend {
	case config.BackendTerminal, "":
		return OpenTerminal(cfg, logger)
	case config.BackendGTK:
		return newGTK(cfg, logger)
	default:
		return nil, &DisplayError{Message: fmt.Sprintf("unknown display backend %q", cfg.Display.Backend)}
	}
}

// DisplayError represents a display-related error.
type DisplayError struct {
	Message string
	Cause   error
}

func (e *DisplayError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *DisplayError) Unwrap() error {
	return e.Cause
}

// priorityClass returns the CSS class for a priority.
func priorityClass(p model.Priority) string {
	return "priority-" + p.String()
}

// priorityClasses lists every class priorityClass can return.
func priorityClasses() []string {
	classes := make([]string, 0, len(model.Priorities()))
	for _, p := range model.Priorities() {
		classes = append(classes, priorityClass(p))
	}
	return classes
}
