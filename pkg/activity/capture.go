package activity

import (
	"context"
	"slices"
	"sync"
)

// CaptureHook records slot events, optionally filtered by verb or container.
// It is safe for concurrent use.
type CaptureHook struct {
	// Verbs limits capture to the listed verbs when non-empty.
	Verbs []string
	// ContainerID limits capture to events of one container when set.
	ContainerID string
	// Err is returned from every Notify call, after recording.
	Err error

	mu     sync.Mutex
	events []Event
}

// Notify records the event when it passes the filters and returns Err.
func (h *CaptureHook) Notify(_ context.Context, event Event) error {
	if len(h.Verbs) > 0 && !slices.Contains(h.Verbs, event.Verb) {
		return h.Err
	}
	if h.ContainerID != "" && event.Metadata["container_id"] != h.ContainerID {
		return h.Err
	}
	h.mu.Lock()
	h.events = append(h.events, NormalizeEvent(event))
	h.mu.Unlock()
	return h.Err
}

// Events returns a copy of the recorded events in arrival order.
func (h *CaptureHook) Events() []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.events)
}

// Seen returns the verbs of the recorded events in arrival order.
func (h *CaptureHook) Seen() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	verbs := make([]string, 0, len(h.events))
	for _, event := range h.events {
		verbs = append(verbs, event.Verb)
	}
	return verbs
}

// Last returns the most recent event.
func (h *CaptureHook) Last() (Event, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.events) == 0 {
		return Event{}, false
	}
	return h.events[len(h.events)-1], true
}

// Reset drops the recorded events.
func (h *CaptureHook) Reset() {
	h.mu.Lock()
	h.events = nil
	h.mu.Unlock()
}
