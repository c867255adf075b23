package slot

import (
	"context"
	"sync"

	"github.com/jmylchreest/overlayd/internal/model"
)

// subscription is an unbounded FIFO between the slot and one reader.
// Producers never block on a slow reader.
type subscription struct {
	mu     sync.Mutex
	queue  []*model.Content
	wake   chan struct{} // Capacity 1, signalled on push
	done   chan struct{} // Closed when the slot closes
	closed bool
}

func newSubscription(initial *model.Content) *subscription {
	return &subscription{
		queue: []*model.Content{initial},
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

func (s *subscription) push(content *model.Content) {
	s.mu.Lock()
	s.queue = append(s.queue, content)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.done)
	}
}

// next pops the oldest queued value.
func (s *subscription) next() (*model.Content, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) == 0 {
		return nil, false
	}
	content := s.queue[0]
	s.queue[0] = nil
	s.queue = s.queue[1:]
	return content, true
}

// pump delivers queued values to out until ctx is done or the slot closes.
func (s *subscription) pump(ctx context.Context, out chan<- *model.Content) {
	for {
		content, ok := s.next()
		if !ok {
			select {
			case <-s.wake:
				continue
			case <-s.done:
				return
			case <-ctx.Done():
				return
			}
		}

		select {
		case out <- content:
		case <-s.done:
			return
		case <-ctx.Done():
			return
		}
	}
}
