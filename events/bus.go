// Package events fans committed lifecycle changes out to in-process
// subscribers.
package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/leeforge/pluginhub/plugin"
)

// Bus implements plugin.EventBus with a buffered channel and backpressure.
// Handlers run on their own goroutines; delivery order across handlers is
// not guaranteed.
type Bus struct {
	subscribers map[string][]subscriberEntry
	mu          sync.RWMutex
	ch          chan envelope
	wg          sync.WaitGroup
	closed      atomic.Bool
	logger      *zap.Logger
	nextID      atomic.Uint64
	done        chan struct{}
	stopped     chan struct{}
}

var _ plugin.EventBus = (*Bus)(nil)

type envelope struct {
	ctx   context.Context
	event plugin.Event
}

type subscriberEntry struct {
	id      uint64
	handler plugin.EventHandler
}

type subscription struct {
	bus   *Bus
	topic string
	id    uint64
}

func (s *subscription) Unsubscribe() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()

	subs := s.bus.subscribers[s.topic]
	for i, entry := range subs {
		if entry.id == s.id {
			s.bus.subscribers[s.topic] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// NewBus creates a Bus with the given buffer size and starts its dispatcher.
func NewBus(bufferSize int, logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	if bufferSize <= 0 {
		bufferSize = 256
	}
	bus := &Bus{
		subscribers: make(map[string][]subscriberEntry),
		ch:          make(chan envelope, bufferSize),
		logger:      logger.Named("events"),
		done:        make(chan struct{}),
		stopped:     make(chan struct{}),
	}

	go bus.dispatch()
	return bus
}

func (b *Bus) dispatch() {
	defer close(b.stopped)
	for {
		select {
		case env := <-b.ch:
			b.fanOut(env)
		case <-b.done:
			for {
				select {
				case env := <-b.ch:
					b.fanOut(env)
				default:
					return
				}
			}
		}
	}
}

func (b *Bus) fanOut(env envelope) {
	b.mu.RLock()
	subs := append([]subscriberEntry{}, b.subscribers[env.event.Name]...)
	if env.event.Name != plugin.TopicAll {
		subs = append(subs, b.subscribers[plugin.TopicAll]...)
	}
	b.mu.RUnlock()

	for _, entry := range subs {
		b.wg.Add(1)
		go func(h plugin.EventHandler) {
			defer b.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("event handler panic",
						zap.String("event", env.event.Name),
						zap.Any("panic", r))
				}
			}()
			if err := h(env.ctx, env.event); err != nil {
				b.logger.Warn("event handler error",
					zap.String("event", env.event.Name),
					zap.String("plugin", env.event.Plugin),
					zap.Error(err))
			}
		}(entry.handler)
	}
}

// Publish sends an event. Blocks until the buffer has space or ctx expires.
func (b *Bus) Publish(ctx context.Context, event plugin.Event) error {
	if b.closed.Load() {
		return plugin.ErrBusClosed
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Name == "" {
		event.Name = plugin.Topic(event.Action)
	}

	env := envelope{ctx: context.WithoutCancel(ctx), event: event}

	select {
	case b.ch <- env:
		return nil
	default:
		select {
		case b.ch <- env:
			return nil
		case <-ctx.Done():
			return plugin.ErrPublishTimeout
		}
	}
}

// Subscribe registers a handler for a topic.
func (b *Bus) Subscribe(topic string, handler plugin.EventHandler) plugin.Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID.Add(1)
	b.subscribers[topic] = append(b.subscribers[topic], subscriberEntry{
		id:      id,
		handler: handler,
	})

	return &subscription{bus: b, topic: topic, id: id}
}

// Close stops accepting new events, drains pending ones, and waits for
// in-flight handlers.
func (b *Bus) Close() error {
	if b.closed.Swap(true) {
		return nil
	}

	close(b.done)
	<-b.stopped
	b.wg.Wait()
	return nil
}
