// Package notify publishes environment-switch events to external listeners.
package notify

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotConnected is returned when the transport has no live connection.
var ErrNotConnected = errors.New("notify: not connected")

// Event describes a completed environment switch.
type Event struct {
	Generation string    `json:"generation"`
	Sequence   uint64    `json:"sequence"`
	Kind       string    `json:"kind"`
	Modules    []string  `json:"modules"`
	At         time.Time `json:"at"`
}

// payload is the wire form of e.
func (e Event) payload() map[string]any {
	modules := make([]any, len(e.Modules))
	for i, m := range e.Modules {
		modules[i] = m
	}
	return map[string]any{
		"generation": e.Generation,
		"sequence":   e.Sequence,
		"kind":       e.Kind,
		"modules":    modules,
		"at":         e.At.UTC().Format(time.RFC3339Nano),
	}
}

// Notifier receives switch events. Failures are reported to the caller,
// which treats them as best-effort.
type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

// Nop discards events.
type Nop struct{}

func (Nop) Notify(context.Context, Event) error { return nil }

// Recorder keeps every event it receives.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	// Err, when set, is returned from every Notify call.
	Err error
}

// Notify implements Notifier.
func (r *Recorder) Notify(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.Err
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}
