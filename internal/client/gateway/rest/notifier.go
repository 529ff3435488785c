package rest

import (
	"sync"

	"github.com/dmitrijs2005/farmmarket/internal/client/gateway"
)

type subscriber struct {
	mu      sync.Mutex
	queue   []gateway.SessionEvent
	wake    chan struct{}
	done    chan struct{}
	stopped sync.Once
}

func (s *subscriber) push(ev gateway.SessionEvent) {
	s.mu.Lock()
	s.queue = append(s.queue, ev)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) drain() []gateway.SessionEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.queue
	s.queue = nil
	return q
}

func (s *subscriber) stop() {
	s.stopped.Do(func() { close(s.done) })
}

func (s *subscriber) run(handler func(gateway.SessionEvent)) {
	for {
		select {
		case <-s.wake:
			for _, ev := range s.drain() {
				select {
				case <-s.done:
					return
				default:
				}
				handler(ev)
			}
		case <-s.done:
			return
		}
	}
}

// notifier fans session events out to subscribers. Each subscriber has its
// own queue and goroutine: publish never blocks, and a handler sees events in
// publish order.
type notifier struct {
	mu   sync.Mutex
	next int
	subs map[int]*subscriber
}

func newNotifier() *notifier {
	return &notifier{subs: make(map[int]*subscriber)}
}

func (n *notifier) subscribe(handler func(gateway.SessionEvent)) func() {
	s := &subscriber{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}

	n.mu.Lock()
	id := n.next
	n.next++
	n.subs[id] = s
	n.mu.Unlock()

	go s.run(handler)

	return func() {
		n.mu.Lock()
		delete(n.subs, id)
		n.mu.Unlock()
		s.stop()
	}
}

// publish enqueues ev for every subscriber. Callers serialize publish to
// keep a single global order.
func (n *notifier) publish(ev gateway.SessionEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, s := range n.subs {
		s.push(ev)
	}
}

func (n *notifier) close() {
	n.mu.Lock()
	subs := n.subs
	n.subs = make(map[int]*subscriber)
	n.mu.Unlock()

	for _, s := range subs {
		s.stop()
	}
}
