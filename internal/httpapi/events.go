package httpapi

import (
	"sync"

	"github.com/MimeLyc/caption-studio/internal/service"
)

const (
	EventOverlay   = "overlay"
	EventCaption   = "caption"
	EventError     = "error"
	EventFileLabel = "file_label"
	EventControl   = "control"
	EventNotice    = "notice"
)

// Event is one presenter update as sent to stream subscribers.
type Event struct {
	Type    string `json:"type"`
	Name    string `json:"name,omitempty"`
	On      bool   `json:"on,omitempty"`
	Message string `json:"message,omitempty"`
}

// subscriberBuffer is how many events a slow subscriber may lag behind
// before further events are dropped for it.
const subscriberBuffer = 32

// EventHub is a service.Presenter that fans every update out to the
// subscribed event streams. Publishing never blocks the session.
type EventHub struct {
	next service.Presenter

	mu     sync.Mutex
	subs   map[chan Event]struct{}
	closed bool
}

// NewEventHub creates a hub that also forwards every update to next,
// which may be nil.
func NewEventHub(next service.Presenter) *EventHub {
	if next == nil {
		next = service.NopPresenter{}
	}
	return &EventHub{
		next: next,
		subs: make(map[chan Event]struct{}),
	}
}

// Subscribe registers a new stream. The returned cancel func must be
// called when the stream ends; it closes the channel.
func (h *EventHub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			if _, ok := h.subs[ch]; ok {
				delete(h.subs, ch)
				close(ch)
			}
			h.mu.Unlock()
		})
	}
}

// Subscribers reports how many streams are attached.
func (h *EventHub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close ends every stream. Later publishes are forwarded to next only.
func (h *EventHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subs {
		close(ch)
		delete(h.subs, ch)
	}
}

func (h *EventHub) publish(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

func (h *EventHub) ShowOverlay(overlay service.Overlay, show bool, message string) {
	h.next.ShowOverlay(overlay, show, message)
	h.publish(Event{Type: EventOverlay, Name: string(overlay), On: show, Message: message})
}

func (h *EventHub) ShowCaption(text string) {
	h.next.ShowCaption(text)
	if text == "" {
		text = service.Placeholder
	}
	h.publish(Event{Type: EventCaption, Message: text})
}

func (h *EventHub) ShowError(message string) {
	h.next.ShowError(message)
	h.publish(Event{Type: EventError, Message: message})
}

func (h *EventHub) ShowFileLabel(label string) {
	h.next.ShowFileLabel(label)
	h.publish(Event{Type: EventFileLabel, Message: label})
}

func (h *EventHub) SetControl(control service.Control, enabled bool) {
	h.next.SetControl(control, enabled)
	h.publish(Event{Type: EventControl, Name: string(control), On: enabled})
}

func (h *EventHub) Notify(message string) {
	h.next.Notify(message)
	h.publish(Event{Type: EventNotice, Message: message})
}
