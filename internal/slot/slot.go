// Package slot holds the single piece of content the overlay should display.
//
// A Slot has one value at a time (or none). Writers replace or clear it;
// readers subscribe and receive the current value followed by every later
// change, in the order the changes were made. Concurrent writers race: each
// write is atomic but nothing orders one producer against another.
package slot

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/overlayd/internal/metrics"
	"github.com/jmylchreest/overlayd/internal/model"
)

// ErrClosed is returned when subscribing to a closed slot.
var ErrClosed = errors.New("slot closed")

// Slot is a single-value holder with replay-latest subscriptions.
type Slot struct {
	mu      sync.Mutex
	logger  *slog.Logger
	current *model.Content
	subs    map[*subscription]struct{}
	closed  bool
}

// New creates an empty Slot.
func New(logger *slog.Logger) *Slot {
	if logger == nil {
		logger = slog.Default()
	}
	return &Slot{
		logger: logger,
		subs:   make(map[*subscription]struct{}),
	}
}

// Show replaces the current content unconditionally and returns the new id.
// The priority is recorded on the content but does not influence whether
// the write takes effect: the last call always wins.
func (s *Slot) Show(text string, priority model.Priority, duration time.Duration) string {
	content := model.NewContent(text, priority, duration)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		s.logger.Debug("show on closed slot ignored", "content_id", content.ID)
		return content.ID
	}

	s.current = content
	s.publishLocked(content)
	metrics.SlotWrites.WithLabelValues("show").Inc()

	s.logger.Debug("show",
		"content_id", content.ID,
		"priority", content.Priority,
		"duration", content.Duration,
	)
	return content.ID
}

// Dismiss clears the slot only if the current content has the given id.
// Returns true if the slot was cleared. Stale ids are ignored.
func (s *Slot) Dismiss(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.current == nil || s.current.ID != id {
		metrics.SlotWrites.WithLabelValues("dismiss_stale").Inc()
		s.logger.Debug("stale dismiss ignored", "content_id", id)
		return false
	}

	s.current = nil
	s.publishLocked(nil)
	metrics.SlotWrites.WithLabelValues("dismiss").Inc()

	s.logger.Debug("dismissed", "content_id", id)
	return true
}

// ClearAll clears the slot regardless of which content is active.
func (s *Slot) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.current == nil {
		return
	}

	s.logger.Debug("cleared", "content_id", s.current.ID)
	s.current = nil
	s.publishLocked(nil)
	metrics.SlotWrites.WithLabelValues("clear").Inc()
}

// Current returns the active content, or nil when the slot is empty.
func (s *Slot) Current() *model.Content {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Subscribe returns a stream that first yields the current value (nil when
// empty) and then every subsequent change in production order.
// The channel is closed when ctx is done or the slot is closed.
func (s *Slot) Subscribe(ctx context.Context) (<-chan *model.Content, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	sub := newSubscription(s.current)
	s.subs[sub] = struct{}{}
	s.mu.Unlock()

	metrics.SlotSubscribers.Inc()

	out := make(chan *model.Content)
	go func() {
		defer func() {
			s.unsubscribe(sub)
			close(out)
		}()
		sub.pump(ctx, out)
	}()

	return out, nil
}

// Close ends every subscription. Later writes are ignored and later
// subscriptions fail with ErrClosed.
func (s *Slot) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	for sub := range s.subs {
		sub.close()
	}
}

// publishLocked queues a value on every subscription. Caller must hold s.mu,
// which is what keeps every subscriber's view in production order.
func (s *Slot) publishLocked(content *model.Content) {
	for sub := range s.subs {
		sub.push(content)
	}
}

func (s *Slot) unsubscribe(sub *subscription) {
	s.mu.Lock()
	if _, ok := s.subs[sub]; ok {
		delete(s.subs, sub)
		metrics.SlotSubscribers.Dec()
	}
	s.mu.Unlock()
}
