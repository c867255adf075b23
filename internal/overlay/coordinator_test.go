package overlay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/overlayd/internal/model"
	"github.com/jmylchreest/overlayd/internal/slot"
)

// fakeResource records surface operations.
type fakeResource struct {
	mu       sync.Mutex
	nextID   int
	attached map[int]string // handle -> current text
	ops      []string

	failAttach  int // Number of upcoming attaches that fail
	panicUpdate bool
	failDetach  bool
}

func newFakeResource() *fakeResource {
	return &fakeResource{attached: make(map[int]string)}
}

func (f *fakeResource) Attach(p Payload) (Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.ops = append(f.ops, "attach:"+p.Text)
	if f.failAttach > 0 {
		f.failAttach--
		return nil, errors.New("no display")
	}
	f.nextID++
	f.attached[f.nextID] = p.Text
	return f.nextID, nil
}

func (f *fakeResource) Update(h Handle, p Payload) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.ops = append(f.ops, "update:"+p.Text)
	if f.panicUpdate {
		panic("widget destroyed")
	}
	id := h.(int)
	if _, ok := f.attached[id]; !ok {
		return errors.New("unknown handle")
	}
	f.attached[id] = p.Text
	return nil
}

func (f *fakeResource) Detach(h Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.ops = append(f.ops, "detach")
	delete(f.attached, h.(int))
	if f.failDetach {
		return errors.New("window already gone")
	}
	return nil
}

// visible returns the text of the single attached surface, if any.
func (f *fakeResource) visible() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, text := range f.attached {
		return text, true
	}
	return "", false
}

func (f *fakeResource) attachedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.attached)
}

func (f *fakeResource) opCount(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, op := range f.ops {
		if len(op) >= len(prefix) && op[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

func (f *fakeResource) set(fn func(f *fakeResource)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func showsText(res *fakeResource, text string) func() bool {
	return func() bool {
		got, ok := res.visible()
		return ok && got == text
	}
}

func newTestCoordinator(t *testing.T) (*Coordinator, *slot.Slot, *fakeResource) {
	t.Helper()
	s := slot.New(nil)
	res := newFakeResource()
	c := NewCoordinator(s, res, nil)
	t.Cleanup(func() {
		c.Shutdown()
		s.Close()
	})
	return c, s, res
}

func TestCoordinator_AcquireReleaseLifecycle(t *testing.T) {
	c, s, res := newTestCoordinator(t)

	assert.False(t, c.Observing())
	s.Show("hello", model.PriorityNormal, 0)

	c.Acquire()
	assert.True(t, c.Observing())
	require.Eventually(t, showsText(res, "hello"), time.Second, 5*time.Millisecond)

	c.Acquire()
	assert.Equal(t, 2, c.RefCount())
	assert.True(t, c.Observing())

	c.Release()
	assert.Equal(t, 1, c.RefCount())
	assert.True(t, c.Observing())
	assert.Equal(t, 1, res.attachedCount())

	c.Release()
	assert.Equal(t, 0, c.RefCount())
	assert.False(t, c.Observing())
	// Detach completes before Release returns
	assert.Equal(t, 0, res.attachedCount())
	assert.Equal(t, 1, res.opCount("attach"))
}

func TestCoordinator_ConcurrentAcquireStartsOneTask(t *testing.T) {
	c, s, res := newTestCoordinator(t)
	s.Show("shared", model.PriorityNormal, 0)

	const clients = 32
	var wg sync.WaitGroup
	for range clients {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Acquire()
		}()
	}
	wg.Wait()

	assert.Equal(t, clients, c.RefCount())
	require.Eventually(t, showsText(res, "shared"), time.Second, 5*time.Millisecond)

	// One task means one subscription, so exactly one attach.
	assert.Equal(t, 1, res.opCount("attach"))

	for range clients - 1 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Release()
		}()
	}
	wg.Wait()

	assert.True(t, c.Observing())
	c.Release()
	assert.False(t, c.Observing())
	assert.Equal(t, 0, res.attachedCount())
}

func TestCoordinator_InterleavedAcquireRelease(t *testing.T) {
	c, s, res := newTestCoordinator(t)
	s.Show("x", model.PriorityNormal, 0)

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Acquire()
			time.Sleep(time.Millisecond)
			c.Release()
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, c.RefCount())
	assert.False(t, c.Observing())
	assert.Equal(t, 0, res.attachedCount())
}

func TestCoordinator_UnbalancedReleaseClamps(t *testing.T) {
	c, _, _ := newTestCoordinator(t)

	c.Release()
	c.Release()
	assert.Equal(t, 0, c.RefCount())
	assert.False(t, c.Observing())

	c.Acquire()
	assert.Equal(t, 1, c.RefCount())
	assert.True(t, c.Observing())
}

func TestCoordinator_FollowsSlot(t *testing.T) {
	c, s, res := newTestCoordinator(t)
	c.Acquire()

	// Nothing shown yet: the initial empty emission attaches nothing
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, res.attachedCount())

	id := s.Show("one", model.PriorityNormal, 0)
	require.Eventually(t, showsText(res, "one"), time.Second, 5*time.Millisecond)

	s.Show("two", model.PriorityHigh, 0)
	require.Eventually(t, showsText(res, "two"), time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, res.opCount("attach"), "second show should update in place")
	assert.Equal(t, 1, res.opCount("update"))

	// Stale dismiss leaves "two" up
	s.Dismiss(id)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, res.attachedCount())

	s.ClearAll()
	require.Eventually(t, func() bool { return res.attachedCount() == 0 }, time.Second, 5*time.Millisecond)
	assert.True(t, c.Observing())
}

func TestCoordinator_AutoDismiss(t *testing.T) {
	c, s, res := newTestCoordinator(t)
	c.Acquire()

	s.Show("toast", model.PriorityNormal, 50*time.Millisecond)
	require.Eventually(t, showsText(res, "toast"), time.Second, 2*time.Millisecond)

	time.Sleep(60 * time.Millisecond)
	require.Eventually(t, func() bool { return s.Current() == nil }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return res.attachedCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestCoordinator_StaleTimerDoesNotRemoveNewerContent(t *testing.T) {
	c, s, res := newTestCoordinator(t)
	c.Acquire()

	s.Show("A", model.PriorityNormal, 100*time.Millisecond)
	require.Eventually(t, showsText(res, "A"), time.Second, 2*time.Millisecond)

	idB := s.Show("B", model.PriorityNormal, 0)
	require.Eventually(t, showsText(res, "B"), time.Second, 2*time.Millisecond)

	time.Sleep(150 * time.Millisecond)

	current := s.Current()
	require.NotNil(t, current)
	assert.Equal(t, idB, current.ID)
	text, ok := res.visible()
	assert.True(t, ok)
	assert.Equal(t, "B", text)
}

func TestCoordinator_StaleTimerIgnoredEvenIfItFires(t *testing.T) {
	// A timer that escaped cancellation must still not remove newer content.
	s := slot.New(nil)
	defer s.Close()

	s.Show("A", model.PriorityNormal, 0)
	idA := s.Current().ID
	idB := s.Show("B", model.PriorityNormal, 0)

	r := newRenderer(newFakeResource(), s, discardLogger())
	r.scheduleDismiss(idA, time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	require.NotNil(t, s.Current())
	assert.Equal(t, idB, s.Current().ID)
}

func TestCoordinator_ReleaseCancelsPendingTimer(t *testing.T) {
	c, s, res := newTestCoordinator(t)
	c.Acquire()

	id := s.Show("pending", model.PriorityNormal, 40*time.Millisecond)
	require.Eventually(t, showsText(res, "pending"), time.Second, 2*time.Millisecond)

	c.Release()
	assert.Equal(t, 0, res.attachedCount())

	// The timer was cancelled with the task; the content stays in the slot.
	time.Sleep(80 * time.Millisecond)
	require.NotNil(t, s.Current())
	assert.Equal(t, id, s.Current().ID)
}

func TestCoordinator_ResourceFailuresDoNotStopTask(t *testing.T) {
	c, s, res := newTestCoordinator(t)
	res.set(func(f *fakeResource) { f.failAttach = 1 })
	c.Acquire()

	s.Show("first", model.PriorityNormal, 0)
	require.Eventually(t, func() bool { return res.opCount("attach") == 1 }, time.Second, 2*time.Millisecond)
	assert.Equal(t, 0, res.attachedCount())
	assert.True(t, c.Observing())

	// Next emission retries the attach
	s.Show("second", model.PriorityNormal, 0)
	require.Eventually(t, showsText(res, "second"), time.Second, 2*time.Millisecond)

	// A panicking update is recovered
	res.set(func(f *fakeResource) { f.panicUpdate = true })
	s.Show("third", model.PriorityNormal, 0)
	require.Eventually(t, func() bool { return res.opCount("update") == 1 }, time.Second, 2*time.Millisecond)
	assert.True(t, c.Observing())

	// Detach failure still drops the handle
	res.set(func(f *fakeResource) {
		f.panicUpdate = false
		f.failDetach = true
	})
	s.ClearAll()
	require.Eventually(t, func() bool { return res.opCount("detach") == 1 }, time.Second, 2*time.Millisecond)
	s.Show("fourth", model.PriorityNormal, 0)
	require.Eventually(t, showsText(res, "fourth"), time.Second, 2*time.Millisecond)
	assert.Equal(t, 3, res.opCount("attach"))
}

// failingSource refuses the first n subscriptions.
type failingSource struct {
	*slot.Slot
	mu    sync.Mutex
	fails int
}

func (f *failingSource) Subscribe(ctx context.Context) (<-chan *model.Content, error) {
	f.mu.Lock()
	if f.fails > 0 {
		f.fails--
		f.mu.Unlock()
		return nil, errors.New("subscribe failed")
	}
	f.mu.Unlock()
	return f.Slot.Subscribe(ctx)
}

func TestCoordinator_SetupFailureSelfHeals(t *testing.T) {
	s := slot.New(nil)
	defer s.Close()
	src := &failingSource{Slot: s, fails: 1}
	res := newFakeResource()
	c := NewCoordinator(src, res, discardLogger())
	defer c.Shutdown()

	s.Show("hello", model.PriorityNormal, 0)

	c.Acquire()
	require.Eventually(t, func() bool { return !c.Observing() }, time.Second, 2*time.Millisecond)
	assert.Equal(t, 1, c.RefCount())

	// Another acquire starts a fresh task since none is active.
	c.Acquire()
	assert.True(t, c.Observing())
	require.Eventually(t, showsText(res, "hello"), time.Second, 2*time.Millisecond)

	c.Release()
	c.Release()
	assert.False(t, c.Observing())
	assert.Equal(t, 0, res.attachedCount())
}

func TestCoordinator_SlotCloseEndsTask(t *testing.T) {
	s := slot.New(nil)
	res := newFakeResource()
	c := NewCoordinator(s, res, discardLogger())
	defer c.Shutdown()

	s.Show("bye", model.PriorityNormal, 0)
	c.Acquire()
	require.Eventually(t, showsText(res, "bye"), time.Second, 2*time.Millisecond)

	s.Close()
	require.Eventually(t, func() bool { return !c.Observing() }, time.Second, 2*time.Millisecond)
	assert.Equal(t, 0, res.attachedCount())
}

func TestCoordinator_RestartAfterIdle(t *testing.T) {
	c, s, res := newTestCoordinator(t)
	s.Show("again", model.PriorityNormal, 0)

	for range 3 {
		c.Acquire()
		require.Eventually(t, showsText(res, "again"), time.Second, 2*time.Millisecond)
		c.Release()
		assert.Equal(t, 0, res.attachedCount())
	}
	assert.Equal(t, 3, res.opCount("attach"))
	assert.Equal(t, 3, res.opCount("detach"))
}
