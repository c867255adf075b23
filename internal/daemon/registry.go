package daemon

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/jmylchreest/overlayd/internal/dbus"
	"github.com/jmylchreest/overlayd/internal/metrics"
)

// errClientGone is returned by Acquire for a sender already seen leaving
// the bus.
var errClientGone = errors.New("client has left the bus")

// maxGone bounds how many departed senders are remembered. A method call
// and the sender's NameOwnerChanged are only reordered within a short
// window, so recent departures are enough.
const maxGone = 1024

// ClientRegistry tracks how many acquisitions each bus client holds.
// Unique bus names are never reused, so a sender that has been dropped
// can never acquire again.
type ClientRegistry struct {
	mu     sync.Mutex
	counts map[string]int

	gone      map[string]struct{}
	goneOrder []string // Oldest first, for eviction
}

// NewClientRegistry creates an empty ClientRegistry.
func NewClientRegistry() *ClientRegistry {
	return &ClientRegistry{
		counts: make(map[string]int),
		gone:   make(map[string]struct{}),
	}
}

// Acquire records one acquisition for sender and returns its new count.
// It fails with errClientGone if sender has already been dropped.
func (r *ClientRegistry) Acquire(sender string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.gone[sender]; ok {
		return 0, fmt.Errorf("acquire from %s: %w", sender, errClientGone)
	}
	r.counts[sender]++
	metrics.DBusClients.Set(float64(len(r.counts)))
	return r.counts[sender], nil
}

// Release removes one acquisition for sender. It fails with
// dbus.ErrNotAcquired if sender holds none.
func (r *ClientRegistry) Release(sender string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.counts[sender]
	if !ok {
		return 0, fmt.Errorf("release from %s: %w", sender, dbus.ErrNotAcquired)
	}

	n--
	if n == 0 {
		delete(r.counts, sender)
	} else {
		r.counts[sender] = n
	}
	metrics.DBusClients.Set(float64(len(r.counts)))
	return n, nil
}

// Drop forgets sender, refuses its later acquisitions and returns how many
// acquisitions it still held.
func (r *ClientRegistry) Drop(sender string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.counts[sender]
	delete(r.counts, sender)
	r.markGoneLocked(sender)
	metrics.DBusClients.Set(float64(len(r.counts)))
	return n
}

// Count returns the total number of acquisitions held by all clients.
func (r *ClientRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	total := 0
	for _, n := range r.counts {
		total += n
	}
	return total
}

// Clients returns the senders holding at least one acquisition, sorted.
func (r *ClientRegistry) Clients() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	clients := make([]string, 0, len(r.counts))
	for sender := range r.counts {
		clients = append(clients, sender)
	}
	sort.Strings(clients)
	return clients
}

func (r *ClientRegistry) markGoneLocked(sender string) {
	if _, ok := r.gone[sender]; ok {
		return
	}
	if len(r.goneOrder) >= maxGone {
		delete(r.gone, r.goneOrder[0])
		r.goneOrder = r.goneOrder[1:]
	}
	r.gone[sender] = struct{}{}
	r.goneOrder = append(r.goneOrder, sender)
}
