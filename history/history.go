// Package history keeps the ordered list of delivered transcripts.
package history

import "sync"

// Event is passed to observers after every change.
type Event struct {
	Added   string // empty on Clear
	Cleared bool
	Len     int
}

type observer struct {
	id int
	fn func(Event)
}

// History is append-only apart from Clear. Observers are notified
// synchronously, in the order changes were made.
type History struct {
	mu        sync.Mutex
	entries   []string
	sink      func(string)
	observers []observer
	nextID    int
	notifyMu  sync.Mutex
}

// New returns an empty History. If sink is non-nil every added entry is also
// passed to it, before observers run.
func New(sink func(text string)) *History {
	return &History{sink: sink}
}

func (h *History) Add(text string) {
	h.mu.Lock()
	h.entries = append(h.entries, text)
	if h.sink != nil {
		h.sink(text)
	}
	h.publishLocked(Event{Added: text, Len: len(h.entries)})
}

func (h *History) Clear() {
	h.mu.Lock()
	h.entries = nil
	h.publishLocked(Event{Cleared: true})
}

// Entries returns a copy, oldest first.
func (h *History) Entries() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.entries...)
}

// Recent returns up to n entries, newest first.
func (h *History) Recent(n int) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	n = min(n, len(h.entries))
	out := make([]string, 0, n)
	for i := len(h.entries) - 1; i >= len(h.entries)-n; i-- {
		out = append(out, h.entries[i])
	}
	return out
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

func (h *History) Subscribe(fn func(Event)) (unsubscribe func()) {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.observers = append(h.observers, observer{id: id, fn: fn})
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		for i, o := range h.observers {
			if o.id == id {
				h.observers = append(h.observers[:i:i], h.observers[i+1:]...)
				return
			}
		}
	}
}

// publishLocked is called with mu held and releases it.
func (h *History) publishLocked(ev Event) {
	obs := h.observers
	h.notifyMu.Lock()
	h.mu.Unlock()
	defer h.notifyMu.Unlock()
	for _, o := range obs {
		o.fn(ev)
	}
}
