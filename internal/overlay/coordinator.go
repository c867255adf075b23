// Package overlay implements the lifecycle coordinator for the shared
// overlay surface.
//
// Any number of clients Acquire and Release the coordinator. While at least
// one acquisition is outstanding, a single observation goroutine follows the
// content slot and drives the surface through a Resource. When the last
// client releases, the goroutine is stopped and the surface detached.
package overlay

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jmylchreest/overlayd/internal/metrics"
	"github.com/jmylchreest/overlayd/internal/model"
)

// Source is the content stream the coordinator follows.
type Source interface {
	// Subscribe yields the current content (nil when empty) and then every change.
	Subscribe(ctx context.Context) (<-chan *model.Content, error)
	// Dismiss clears the content only if its id still matches.
	Dismiss(id string) bool
}

// Coordinator reference-counts interest in the overlay and owns the single
// observation task.
type Coordinator struct {
	source   Source
	resource Resource
	logger   *slog.Logger

	mu   sync.Mutex
	refs int
	task *task
}

// task is one run of the observation goroutine.
type task struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (t *task) active() bool {
	select {
	case <-t.done:
		return false
	default:
		return true
	}
}

// NewCoordinator creates an idle coordinator.
func NewCoordinator(source Source, resource Resource, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		source:   source,
		resource: resource,
		logger:   logger,
	}
}

// Acquire registers interest in the overlay. The first acquisition (or the
// first after the previous task died) starts the observation task.
func (c *Coordinator) Acquire() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.refs++
	metrics.OverlayRefs.Set(float64(c.refs))
	c.logger.Debug("client added", "refs", c.refs)

	if c.task != nil && c.task.active() {
		return
	}
	c.startLocked()
}

// Release drops one acquisition. When none remain the observation task is
// cancelled and has detached the surface by the time Release returns.
// Releasing more often than acquiring is tolerated and clamps at zero.
func (c *Coordinator) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.refs--
	if c.refs < 0 {
		c.logger.Warn("unbalanced release", "refs", c.refs)
	}
	if c.refs > 0 {
		metrics.OverlayRefs.Set(float64(c.refs))
		c.logger.Debug("client removed, observer kept alive", "refs", c.refs)
		return
	}

	c.refs = 0
	metrics.OverlayRefs.Set(0)
	c.logger.Debug("no clients left, stopping observer")
	c.stopLocked()
}

// Shutdown drops every acquisition and stops the observation task.
func (c *Coordinator) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.refs = 0
	metrics.OverlayRefs.Set(0)
	c.stopLocked()
}

// RefCount returns the number of outstanding acquisitions.
func (c *Coordinator) RefCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refs
}

// Observing reports whether an observation task is running.
func (c *Coordinator) Observing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.task != nil && c.task.active()
}

// startLocked launches a new observation task. Caller must hold c.mu.
func (c *Coordinator) startLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	t := &task{cancel: cancel, done: make(chan struct{})}
	c.task = t

	metrics.OverlayTasksStarted.Inc()
	metrics.OverlayObserving.Set(1)
	c.logger.Debug("observer started")

	go c.observe(ctx, t)
}

// stopLocked cancels the running task and waits for it to finish its
// teardown. Caller must hold c.mu.
func (c *Coordinator) stopLocked() {
	if c.task == nil {
		return
	}
	c.task.cancel()
	<-c.task.done
	c.task = nil
}

// observe is the observation task body. It is the only code that touches
// the surface, and it handles one emission at a time.
func (c *Coordinator) observe(ctx context.Context, t *task) {
	r := newRenderer(c.resource, c.source, c.logger)
	defer func() {
		r.teardown()
		metrics.OverlayObserving.Set(0)
		close(t.done)
	}()

	stream, err := c.source.Subscribe(ctx)
	if err != nil {
		if ctx.Err() != nil {
			c.logger.Debug("observer cancelled before subscribing")
			return
		}
		c.logger.Error("fatal observer error", "error", err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			c.logger.Debug("observer cancelled normally")
			return
		case content, ok := <-stream:
			if !ok {
				if ctx.Err() == nil {
					c.logger.Warn("content stream ended, observer stopped")
				}
				return
			}
			r.apply(content)
		}
	}
}
