package daemon

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/overlayd/internal/dbus"
	"github.com/jmylchreest/overlayd/internal/model"
	"github.com/jmylchreest/overlayd/internal/overlay"
	"github.com/jmylchreest/overlayd/internal/slot"
)

func newTestService(t *testing.T) (*Service, *fakeBackend) {
	t.Helper()
	s := slot.New(discardLogger())
	backend := newFakeBackend()
	coord := overlay.NewCoordinator(s, backend, discardLogger())
	t.Cleanup(func() {
		coord.Shutdown()
		s.Close()
	})
	return NewService(s, coord, discardLogger()), backend
}

func TestService_ShowDismissClear(t *testing.T) {
	svc, _ := newTestService(t)

	id := svc.Show("hello", model.PriorityHigh, 0)
	require.NotNil(t, svc.Current())
	assert.Equal(t, id, svc.Current().ID)

	svc.Dismiss("stale")
	assert.NotNil(t, svc.Current())

	svc.Dismiss(id)
	assert.Nil(t, svc.Current())

	svc.Show("again", model.PriorityLow, 0)
	svc.ClearAll()
	assert.Nil(t, svc.Current())
}

func TestService_AcquireRelease(t *testing.T) {
	svc, backend := newTestService(t)
	svc.Show("visible", model.PriorityNormal, 0)

	svc.Acquire(":1.1")
	svc.Acquire(":1.2")
	assert.Equal(t, dbus.Status{Refs: 2, Observing: true}, svc.Status())
	require.Eventually(t, func() bool { return backend.text() == "visible" }, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, svc.Release(":1.3"), dbus.ErrNotAcquired)
	assert.Equal(t, 2, svc.Status().Refs)

	require.NoError(t, svc.Release(":1.1"))
	require.NoError(t, svc.Release(":1.2"))
	assert.Equal(t, dbus.Status{Refs: 0, Observing: false}, svc.Status())
	assert.Equal(t, 0, backend.attached())
}

func TestService_ClientVanished(t *testing.T) {
	svc, backend := newTestService(t)
	svc.Show("pinned", model.PriorityNormal, 0)

	svc.Acquire(":1.7")
	svc.Acquire(":1.7")
	svc.Acquire(":1.8")
	assert.Equal(t, []string{":1.7", ":1.8"}, svc.Clients())

	svc.ClientVanished(":1.7")
	assert.Equal(t, 1, svc.Status().Refs)
	assert.Equal(t, []string{":1.8"}, svc.Clients())

	svc.ClientVanished(":1.unknown")
	assert.Equal(t, 1, svc.Status().Refs)

	svc.ClientVanished(":1.8")
	assert.False(t, svc.Status().Observing)
	assert.Equal(t, 0, backend.attached())
}

func TestService_AcquireAfterVanishIsIgnored(t *testing.T) {
	svc, _ := newTestService(t)

	svc.ClientVanished(":1.9")
	svc.Acquire(":1.9")

	assert.Equal(t, dbus.Status{Refs: 0, Observing: false}, svc.Status())
	assert.Empty(t, svc.Clients())
}

func TestService_AcquireRacingVanishNeverPins(t *testing.T) {
	svc, _ := newTestService(t)

	for i := range 200 {
		sender := fmt.Sprintf(":1.%d", i)
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			svc.Acquire(sender)
		}()
		go func() {
			defer wg.Done()
			svc.ClientVanished(sender)
		}()
		wg.Wait()
	}

	assert.Equal(t, 0, svc.Status().Refs)
	assert.False(t, svc.Status().Observing)
	assert.Empty(t, svc.Clients())
}

func TestService_ForwardSkipsInitialValue(t *testing.T) {
	svc, _ := newTestService(t)
	svc.Show("before", model.PriorityNormal, 0)

	var (
		mu  sync.Mutex
		got []string
	)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- svc.Forward(ctx, func(c *model.Content) error {
			mu.Lock()
			defer mu.Unlock()
			if c == nil {
				got = append(got, "<empty>")
			} else {
				got = append(got, c.Text)
			}
			return nil
		})
	}()

	// Forward subscribes asynchronously; wait until it has replayed the
	// initial value by observing a change that follows it.
	require.Eventually(t, func() bool {
		svc.Show("after", model.PriorityNormal, 0)
		mu.Lock()
		defer mu.Unlock()
		return len(got) > 0
	}, time.Second, 10*time.Millisecond)
	svc.ClearAll()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) > 0 && got[len(got)-1] == "<empty>"
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	assert.NotContains(t, got, "before")
	assert.Contains(t, got, "after")
}
