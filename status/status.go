// Package status holds the shared recording/transcribing flags and fans out
// every change to observers in the order the changes happened.
package status

import "sync"

type State int

const (
	Idle State = iota
	Recording
	Transcribing
)

func (s State) String() string {
	switch s {
	case Recording:
		return "recording"
	case Transcribing:
		return "transcribing"
	default:
		return "idle"
	}
}

// Status is a snapshot of both flags. Transcribing may be true while
// Recording is false and, briefly, while a new recording runs.
type Status struct {
	Recording    bool
	Transcribing bool
}

// State collapses the flags for display. Recording wins over transcribing.
func (s Status) State() State {
	switch {
	case s.Recording:
		return Recording
	case s.Transcribing:
		return Transcribing
	default:
		return Idle
	}
}

type observer struct {
	id int
	fn func(Status)
}

type Holder struct {
	mu        sync.Mutex
	st        Status
	observers []observer
	nextID    int

	// notifyMu is taken before mu is released so that observers see
	// mutations in order.
	notifyMu sync.Mutex
}

func New() *Holder {
	return &Holder{}
}

func (h *Holder) Snapshot() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.st
}

func (h *Holder) Recording() bool {
	return h.Snapshot().Recording
}

// TryStartRecording is the only Idle to Recording edge. It returns false and
// changes nothing when a recording is already active.
func (h *Holder) TryStartRecording() bool {
	h.mu.Lock()
	if h.st.Recording {
		h.mu.Unlock()
		return false
	}
	h.st.Recording = true
	h.publishLocked()
	return true
}

// StopRecording clears the recording flag and reports whether it was set.
func (h *Holder) StopRecording() bool {
	h.mu.Lock()
	if !h.st.Recording {
		h.mu.Unlock()
		return false
	}
	h.st.Recording = false
	h.publishLocked()
	return true
}

func (h *Holder) SetTranscribing(v bool) {
	h.mu.Lock()
	h.st.Transcribing = v
	h.publishLocked()
}

// Reset clears both flags, as the capture loop does when a session ends.
func (h *Holder) Reset() {
	h.mu.Lock()
	h.st = Status{}
	h.publishLocked()
}

// Subscribe registers fn for every subsequent change and returns a function
// that removes it. fn runs synchronously on the mutating goroutine and must
// not mutate the holder.
func (h *Holder) Subscribe(fn func(Status)) (unsubscribe func()) {
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
func (h *Holder) publishLocked() {
	st := h.st
	obs := h.observers
	h.notifyMu.Lock()
	h.mu.Unlock()
	defer h.notifyMu.Unlock()
	for _, o := range obs {
		o.fn(st)
	}
}
