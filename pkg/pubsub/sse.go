package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/ritzau/console-assembly/pkg/logging"
)

// ErrClosed is returned once the publisher has shut down.
var ErrClosed = errors.New("publisher is closed")

// subscriberBuffer bounds how far a slow client may fall behind before
// events are dropped for it.
const subscriberBuffer = 100

// TopicConfig configures buffering behavior for a topic
type TopicConfig struct {
	BufferSize int  // Number of events to buffer (0 = no buffering)
	ReplayAll  bool // If true, replay all buffered events; if false, only replay last event
}

// DefaultTopics is applied by NewSSEPublisher. A page opened mid-build sees
// the build's progress so far; reload is never replayed, since a page that
// reloads on connect would loop.
var DefaultTopics = map[string]TopicConfig{
	TopicBuildStatus: {BufferSize: 32, ReplayAll: true},
	TopicReload:      {},
}

type topic struct {
	config  TopicConfig
	subs    map[*sseSubscription]struct{}
	version int
	buffer  []Event
}

func (t *topic) remember(e Event) {
	if t.config.BufferSize <= 0 {
		return
	}
	t.buffer = append(t.buffer, e)
	if over := len(t.buffer) - t.config.BufferSize; over > 0 {
		t.buffer = t.buffer[over:]
	}
}

func (t *topic) replay() []Event {
	if len(t.buffer) == 0 {
		return nil
	}
	if t.config.ReplayAll {
		return append([]Event(nil), t.buffer...)
	}
	return []Event{t.buffer[len(t.buffer)-1]}
}

// SSEPublisher implements Publisher for Server-Sent Event streams. It is
// safe for concurrent use.
type SSEPublisher struct {
	mu     sync.Mutex
	topics map[string]*topic
	closed bool
}

// NewSSEPublisher creates a publisher with DefaultTopics configured.
func NewSSEPublisher() *SSEPublisher {
	p := &SSEPublisher{topics: make(map[string]*topic)}
	for name, config := range DefaultTopics {
		p.topic(name).config = config
	}
	return p
}

// topic returns the state of name, creating it. Callers hold p.mu.
func (p *SSEPublisher) topic(name string) *topic {
	t, ok := p.topics[name]
	if !ok {
		t = &topic{subs: make(map[*sseSubscription]struct{})}
		p.topics[name] = t
	}
	return t
}

// ConfigureTopic sets buffering configuration for a topic
func (p *SSEPublisher) ConfigureTopic(name string, config TopicConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic(name).config = config
}

// Subscribe creates a subscription that receives the topic's replayed
// events first. It is closed when ctx is cancelled.
func (p *SSEPublisher) Subscribe(ctx context.Context, name string) (Subscription, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}

	sub := &sseSubscription{
		topic:     name,
		events:    make(chan Event, subscriberBuffer),
		done:      make(chan struct{}),
		publisher: p,
	}
	t := p.topic(name)
	t.subs[sub] = struct{}{}

	// Replay under the lock so a concurrent Publish cannot overtake it
	replayed := t.replay()
	for _, e := range replayed {
		select {
		case sub.events <- e:
		default:
			logging.Warn("could not replay event to new subscriber", "topic", name)
		}
	}
	p.mu.Unlock()

	if len(replayed) > 0 {
		logging.Debug("replayed events to new subscriber", "topic", name, "count", len(replayed))
	}

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.done:
		}
	}()

	return sub, nil
}

// Publish sends an event to all subscribers of a topic. Subscribers that
// are too far behind miss the event.
func (p *SSEPublisher) Publish(name string, eventType string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}

	t := p.topic(name)
	t.version++
	event := Event{Topic: name, Type: eventType, Data: payload, Version: t.version}
	t.remember(event)

	for sub := range t.subs {
		select {
		case sub.events <- event:
		default:
			logging.Warn("subscription channel full, dropping event", "topic", name, "type", eventType)
		}
	}
	return nil
}

// Close ends every subscription's event channel. Further calls are no-ops.
func (p *SSEPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	for _, t := range p.topics {
		for sub := range t.subs {
			close(sub.events)
		}
		t.subs = make(map[*sseSubscription]struct{})
	}
	return nil
}

func (p *SSEPublisher) unsubscribe(sub *sseSubscription) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if t, ok := p.topics[sub.topic]; ok {
		delete(t.subs, sub)
	}
}

type sseSubscription struct {
	topic     string
	events    chan Event
	done      chan struct{}
	publisher *SSEPublisher
	once      sync.Once
}

func (s *sseSubscription) Topic() string { return s.topic }

func (s *sseSubscription) Events() <-chan Event { return s.events }

func (s *sseSubscription) Done() <-chan struct{} { return s.done }

func (s *sseSubscription) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.publisher.unsubscribe(s)
	})
	return nil
}

// WriteSSE writes one event in the text/event-stream format. The event type
// becomes the SSE event name so browsers can listen for it directly.
func WriteSSE(w io.Writer, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", event.Version, event.Type, data)
	return err
}
