package plugin

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrBusClosed is returned when publishing to a closed EventBus.
	ErrBusClosed = errors.New("event bus is closed")

	// ErrPublishTimeout is returned when the publish buffer is full and context expires.
	ErrPublishTimeout = errors.New("event publish timeout: buffer full")
)

// TopicAll receives every lifecycle event regardless of action.
const TopicAll = "plugin.*"

// Topic returns the event name published after a committed action,
// e.g. "plugin.rollback".
func Topic(action Action) string {
	return "plugin." + string(action)
}

// Event is published after a lifecycle change has been committed.
type Event struct {
	Name      string    `json:"name"`
	Plugin    string    `json:"plugin"`
	Action    Action    `json:"action"`
	Version   string    `json:"version"`
	User      string    `json:"user"`
	Loaded    bool      `json:"loaded"`
	Source    string    `json:"source,omitempty"` // instance id that produced the event
	Timestamp time.Time `json:"timestamp"`
}

// EventHandler is the typed handler for events.
type EventHandler func(ctx context.Context, event Event) error

// Subscription represents an active event subscription.
type Subscription interface {
	Unsubscribe()
}

// EventBus carries lifecycle events to in-process subscribers.
type EventBus interface {
	// Publish sends an event. Blocks if buffer is full until ctx expires.
	Publish(ctx context.Context, event Event) error

	// Subscribe registers a handler for a topic, or TopicAll.
	Subscribe(topic string, handler EventHandler) Subscription

	// Close drains pending events and waits for in-flight handlers to complete.
	Close() error
}
