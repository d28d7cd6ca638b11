// Package pubsub fans messages out to topic subscribers.
package pubsub

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// DefaultBuffer is the per-subscription channel capacity.
const DefaultBuffer = 100

// ErrShutdown is returned by Subscribe after Shutdown.
var ErrShutdown = errors.New("pubsub shut down")

// PubSub provides publish/subscribe functionality for real-time updates.
// Publishing never blocks: a subscriber whose buffer is full misses the
// message and its drop count grows.
type PubSub[T any] struct {
	subscribers map[string]map[*Subscription[T]]bool
	mu          sync.RWMutex // also serializes sends against channel close
	buffer      int
	shutdown    chan struct{}
	isShutdown  bool
}

// Subscription represents a subscription to a topic
type Subscription[T any] struct {
	topic   string
	channel chan T
	ps      *PubSub[T]
	cancel  context.CancelFunc
	closed  bool // guarded by ps.mu
	dropped atomic.Uint64
}

// NewPubSub creates a new PubSub instance. buffer <= 0 selects DefaultBuffer.
func NewPubSub[T any](buffer int) *PubSub[T] {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &PubSub[T]{
		subscribers: make(map[string]map[*Subscription[T]]bool),
		buffer:      buffer,
		shutdown:    make(chan struct{}),
	}
}

// Subscribe creates a new subscription to a topic. The subscription ends
// when ctx is cancelled, on Unsubscribe, or on Shutdown; its channel is
// closed then.
func (ps *PubSub[T]) Subscribe(ctx context.Context, topic string) (*Subscription[T], error) {
	subCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription[T]{
		topic:   topic,
		channel: make(chan T, ps.buffer),
		ps:      ps,
		cancel:  cancel,
	}

	ps.mu.Lock()
	if ps.isShutdown {
		ps.mu.Unlock()
		cancel()
		return nil, ErrShutdown
	}
	if ps.subscribers[topic] == nil {
		ps.subscribers[topic] = make(map[*Subscription[T]]bool)
	}
	ps.subscribers[topic][sub] = true
	ps.mu.Unlock()

	go func() {
		select {
		case <-subCtx.Done():
			sub.Unsubscribe()
		case <-ps.shutdown:
			cancel()
		}
	}()

	return sub, nil
}

// Publish sends a message to all subscribers of a topic and returns how
// many received it.
func (ps *PubSub[T]) Publish(topic string, message T) int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	delivered := 0
	for sub := range ps.subscribers[topic] {
		select {
		case sub.channel <- message:
			delivered++
		default:
			sub.dropped.Add(1)
		}
	}
	return delivered
}

// GetSubscriberCount returns the number of subscribers for a topic
func (ps *PubSub[T]) GetSubscriberCount(topic string) int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return len(ps.subscribers[topic])
}

// Shutdown closes all subscriptions and shuts down the PubSub
func (ps *PubSub[T]) Shutdown() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.isShutdown {
		return
	}
	ps.isShutdown = true
	close(ps.shutdown)

	for topic, subs := range ps.subscribers {
		for sub := range subs {
			sub.closeLocked()
		}
		delete(ps.subscribers, topic)
	}
}

// Channel returns the subscription's message channel
func (s *Subscription[T]) Channel() <-chan T {
	return s.channel
}

// Topic returns the subscribed topic.
func (s *Subscription[T]) Topic() string {
	return s.topic
}

// Dropped returns how many messages were lost to a full buffer.
func (s *Subscription[T]) Dropped() uint64 {
	return s.dropped.Load()
}

// Unsubscribe removes the subscription. It is idempotent.
func (s *Subscription[T]) Unsubscribe() {
	s.cancel()

	s.ps.mu.Lock()
	defer s.ps.mu.Unlock()

	if subs := s.ps.subscribers[s.topic]; subs != nil {
		delete(subs, s)
		if len(subs) == 0 {
			delete(s.ps.subscribers, s.topic)
		}
	}
	s.closeLocked()
}

func (s *Subscription[T]) closeLocked() {
	if !s.closed {
		s.closed = true
		close(s.channel)
	}
}
