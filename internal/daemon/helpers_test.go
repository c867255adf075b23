package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/jmylchreest/overlayd/internal/config"
	"github.com/jmylchreest/overlayd/internal/display"
	"github.com/jmylchreest/overlayd/internal/model"
	"github.com/jmylchreest/overlayd/internal/overlay"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeBackend is a display.Backend that records the visible text.
type fakeBackend struct {
	mu         sync.Mutex
	next       int
	visible    map[int]overlay.Payload
	configured int
	hooks      display.Hooks
	ready      chan struct{}
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		visible: make(map[int]overlay.Payload),
		ready:   make(chan struct{}),
	}
}

func (b *fakeBackend) Attach(p overlay.Payload) (overlay.Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	b.visible[b.next] = p
	return b.next, nil
}

func (b *fakeBackend) Update(h overlay.Handle, p overlay.Payload) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := h.(int)
	if _, ok := b.visible[id]; !ok {
		return fmt.Errorf("unknown handle %d", id)
	}
	b.visible[id] = p
	return nil
}

func (b *fakeBackend) Detach(h overlay.Handle) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.visible, h.(int))
	return nil
}

func (b *fakeBackend) Run(ctx context.Context, hooks display.Hooks) error {
	b.mu.Lock()
	b.hooks = hooks
	b.mu.Unlock()

	if err := hooks.OnReady(); err != nil {
		return err
	}
	close(b.ready)
	<-ctx.Done()
	hooks.OnShutdown()
	return nil
}

func (b *fakeBackend) Configure(*config.DaemonConfig) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.configured++
}

func (b *fakeBackend) Name() string { return "fake" }

// text returns the visible text, or "" when nothing is attached.
func (b *fakeBackend) text() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.visible {
		return p.Text
	}
	return ""
}

func (b *fakeBackend) attached() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.visible)
}

func (b *fakeBackend) clickDismiss() {
	b.mu.Lock()
	var id string
	for _, p := range b.visible {
		id = p.ID
	}
	onDismiss := b.hooks.OnDismiss
	b.mu.Unlock()
	onDismiss(id)
}

// fakeBus records lifecycle calls and emitted signals.
type fakeBus struct {
	mu       sync.Mutex
	startErr error
	started  bool
	stopped  bool
	emitted  []*model.Content
	onStop   func() // Called before Stop returns, without the lock
}

func (b *fakeBus) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.startErr != nil {
		return b.startErr
	}
	b.started = true
	return nil
}

func (b *fakeBus) Stop() error {
	b.mu.Lock()
	b.stopped = true
	onStop := b.onStop
	b.mu.Unlock()

	if onStop != nil {
		onStop()
	}
	return nil
}

func (b *fakeBus) EmitContentChanged(c *model.Content) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.started {
		return errors.New("not connected")
	}
	b.emitted = append(b.emitted, c)
	return nil
}

func (b *fakeBus) emittedTexts() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	texts := make([]string, 0, len(b.emitted))
	for _, c := range b.emitted {
		if c == nil {
			texts = append(texts, "")
			continue
		}
		texts = append(texts, c.Text)
	}
	return texts
}

func (b *fakeBus) state() (started, stopped bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.started, b.stopped
}

// nopPlayer plays nothing.
type nopPlayer struct{}

func (nopPlayer) Play(string) error { return nil }
func (nopPlayer) SetVolume(float64) {}
