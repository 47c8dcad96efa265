// Package pubsub fans out build events to dev server clients.
package pubsub

import (
	"context"
	"encoding/json"
)

// Topics published by the build.
const (
	// TopicReload carries "reload" events that make connected pages refresh.
	TopicReload = "livereload"

	// TopicBuildStatus carries one event per task transition.
	TopicBuildStatus = "build_status"
)

// Event represents a pub/sub event
type Event struct {
	Topic   string          `json:"topic"`   // Subscription topic (e.g., "livereload", "build_status")
	Type    string          `json:"type"`    // Event type (e.g., "reload", "started", "failed")
	Data    json.RawMessage `json:"data"`    // Event payload
	Version int             `json:"version"` // Version number for ordering
}

// Subscription represents a client subscription to a topic
type Subscription interface {
	// Topic returns the subscription topic
	Topic() string

	// Events returns a channel for receiving events. It is closed when the
	// publisher shuts down.
	Events() <-chan Event

	// Done is closed once the subscription has been closed.
	Done() <-chan struct{}

	// Close closes the subscription
	Close() error
}

// Publisher manages pub/sub subscriptions and event publishing
type Publisher interface {
	// Subscribe creates a new subscription to a topic
	// Context cancellation will close the subscription
	Subscribe(ctx context.Context, topic string) (Subscription, error)

	// Publish sends an event to all subscribers of a topic
	Publish(topic string, eventType string, data any) error

	// Close shuts down the publisher and all subscriptions
	Close() error
}

// Reload asks pages to refresh after Path changed.
type Reload struct {
	Path string `json:"path,omitempty"`
}

// BuildStatus reports a task transition.
type BuildStatus struct {
	Task       string `json:"task"`
	State      string `json:"state"` // started, succeeded, failed
	DurationMs int64  `json:"duration_ms,omitempty"`
	Error      string `json:"error,omitempty"`
}
