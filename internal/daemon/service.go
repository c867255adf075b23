package daemon

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/overlayd/internal/dbus"
	"github.com/jmylchreest/overlayd/internal/model"
	"github.com/jmylchreest/overlayd/internal/overlay"
	"github.com/jmylchreest/overlayd/internal/slot"
)

var _ dbus.Handler = (*Service)(nil)

// Service is the overlay service exposed on the bus. It implements
// dbus.Handler over the slot and the coordinator.
type Service struct {
	slot   *slot.Slot
	coord  *overlay.Coordinator
	logger *slog.Logger

	// mu orders registry changes with the matching coordinator calls.
	// Method calls and NameOwnerChanged arrive on different goroutines.
	mu       sync.Mutex
	registry *ClientRegistry
}

// NewService creates a Service.
func NewService(s *slot.Slot, coord *overlay.Coordinator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		slot:     s,
		coord:    coord,
		registry: NewClientRegistry(),
		logger:   logger,
	}
}

// Show replaces the overlay content.
func (s *Service) Show(text string, priority model.Priority, duration time.Duration) string {
	return s.slot.Show(text, priority, duration)
}

// Dismiss clears the overlay if id is still active.
func (s *Service) Dismiss(id string) {
	s.slot.Dismiss(id)
}

// ClearAll clears the overlay.
func (s *Service) ClearAll() {
	s.slot.ClearAll()
}

// Acquire records an acquisition for sender and passes it to the
// coordinator. An Acquire processed after the sender has left the bus is
// ignored.
func (s *Service) Acquire(sender string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.registry.Acquire(sender)
	if err != nil {
		s.logger.Debug("acquire ignored", "sender", sender, "error", err)
		return
	}
	s.coord.Acquire()
	s.logger.Debug("client acquired overlay", "sender", sender, "held", n)
}

// Release drops one of sender's acquisitions. Senders cannot release
// acquisitions they do not hold.
func (s *Service) Release(sender string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.registry.Release(sender)
	if err != nil {
		s.logger.Warn("release refused", "sender", sender, "error", err)
		return err
	}
	s.coord.Release()
	s.logger.Debug("client released overlay", "sender", sender, "held", n)
	return nil
}

// ClientVanished releases every acquisition a disconnected sender held.
func (s *Service) ClientVanished(sender string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.registry.Drop(sender)
	if n == 0 {
		return
	}
	for range n {
		s.coord.Release()
	}
	s.logger.Info("released acquisitions of disconnected client", "sender", sender, "count", n)
}

// Current returns the active content.
func (s *Service) Current() *model.Content {
	return s.slot.Current()
}

// Status returns the coordinator state.
func (s *Service) Status() dbus.Status {
	return dbus.Status{
		Refs:      s.coord.RefCount(),
		Observing: s.coord.Observing(),
	}
}

// Clients returns the bus clients currently holding acquisitions.
func (s *Service) Clients() []string {
	return s.registry.Clients()
}

// Forward passes every slot change (not the initial value) to emit until
// ctx is done or the slot closes. Emit failures are logged and skipped.
func (s *Service) Forward(ctx context.Context, emit func(*model.Content) error) error {
	stream, err := s.slot.Subscribe(ctx)
	if err != nil {
		return err
	}

	first := true
	for content := range stream {
		if first {
			first = false
			continue
		}
		if err := emit(content); err != nil {
			s.logger.Warn("failed to forward content change", "error", err)
		}
	}
	return nil
}
