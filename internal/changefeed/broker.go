package changefeed

import (
	"context"
	"log"
	"sync"
)

// DefaultQueueSize bounds the pending notifications per subscription.
const DefaultQueueSize = 32

// Broker fans events out to in-process subscribers. Every subscription has its
// own queue and delivery goroutine, so a slow handler never blocks Publish.
type Broker struct {
	mu        sync.RWMutex
	subs      map[*Subscription]struct{}
	queueSize int
	closed    bool
}

// NewBroker creates a Broker with the given per-subscriber queue size.
func NewBroker(queueSize int) *Broker {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Broker{
		subs:      make(map[*Subscription]struct{}),
		queueSize: queueSize,
	}
}

// Subscription is the deregistration handle returned by Subscribe.
type Subscription struct {
	broker  *Broker
	queue   chan Event
	handler func(Event)
	once    sync.Once
	done    chan struct{}
}

// Subscribe registers handler; it is called once per published event, in order.
func (b *Broker) Subscribe(handler func(Event)) *Subscription {
	s := &Subscription{
		broker:  b,
		queue:   make(chan Event, b.queueSize),
		handler: handler,
		done:    make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(s.queue)
		close(s.done)
		return s
	}
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	go s.run()
	return s
}

func (s *Subscription) run() {
	defer close(s.done)
	for ev := range s.queue {
		s.handler(ev)
	}
}

// Unsubscribe removes the subscription and waits for its delivery goroutine to
// finish. Only the first call has an effect.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		b := s.broker
		b.mu.Lock()
		if _, ok := b.subs[s]; ok {
			delete(b.subs, s)
			close(s.queue)
		}
		b.mu.Unlock()
	})
	<-s.done
}

// Publish queues event for every current subscriber. A subscriber whose queue is
// full misses the event; since every event means "re-fetch", the next one covers it.
func (b *Broker) Publish(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	for s := range b.subs {
		select {
		case s.queue <- event:
		default:
			log.Printf("Warning: change feed subscriber queue full, dropping %s event for %s", event.Op, event.Table)
		}
	}
	return nil
}

// Len reports the number of live subscriptions.
func (b *Broker) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close detaches every subscriber. Later subscriptions are inert.
func (b *Broker) Close() {
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[*Subscription]struct{})
	b.closed = true
	for s := range subs {
		close(s.queue)
	}
	b.mu.Unlock()

	for s := range subs {
		<-s.done
	}
}
