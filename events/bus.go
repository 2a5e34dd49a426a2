package events

import "sync"

// Type identifies what happened to the session credentials.
type Type string

const (
	// Refreshed means a new credential pair is live. Event.AccessToken
	// carries the new access token.
	Refreshed Type = "refreshed"

	// Expired means the session ended because renewal failed terminally.
	// Local credentials have already been cleared.
	Expired Type = "expired"

	// Cleared means the user logged out.
	Cleared Type = "cleared"
)

// Event is an ephemeral credential-change notification.
type Event struct {
	Type        Type
	AccessToken string
}

// Logger is an interface for optional logging of misbehaving listeners.
type Logger interface {
	Printf(format string, args ...any)
}

// Bus is a minimal synchronous publish/subscribe channel for credential
// events. Listeners are isolated from each other: a panicking listener is
// recovered (and logged, if a logger is configured) and never prevents the
// remaining listeners or the publisher from running.
type Bus struct {
	mu     sync.Mutex
	next   int
	subs   map[int]func(Event)
	logger Logger
}

// Option is a functional option for configuring a Bus.
type Option func(*Bus)

// WithLogger sets a logger for recovered listener panics.
func WithLogger(logger Logger) Option {
	return func(b *Bus) {
		b.logger = logger
	}
}

// NewBus creates an empty event bus.
func NewBus(opts ...Option) *Bus {
	b := &Bus{subs: make(map[int]func(Event))}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a listener and returns its unsubscribe function.
// Unsubscribing twice is harmless.
func (b *Bus) Subscribe(listener func(Event)) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	b.subs[id] = listener

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

// Publish delivers the event to every current listener synchronously, in
// unspecified order.
func (b *Bus) Publish(event Event) {
	b.mu.Lock()
	listeners := make([]func(Event), 0, len(b.subs))
	for _, fn := range b.subs {
		listeners = append(listeners, fn)
	}
	b.mu.Unlock()

	for _, fn := range listeners {
		b.deliver(fn, event)
	}
}

func (b *Bus) deliver(fn func(Event), event Event) {
	defer func() {
		if r := recover(); r != nil && b.logger != nil {
			b.logger.Printf("events: listener panicked on %s: %v", event.Type, r)
		}
	}()
	fn(event)
}
