package notify

import (
	"sync"
	"time"

	"github.com/gen2brain/beeep"

	"misterwhisper/log"
)

const title = "misterwhisper"

// Reporter shows worker errors to the user as desktop notifications. The
// same message is not repeated more than once per quiet period.
type Reporter struct {
	// Send delivers a notification. Defaults to beeep.Notify.
	Send  func(title, message string) error
	Quiet time.Duration

	mu        sync.Mutex
	last      string
	lastAt    time.Time
	listeners []func(error)
}

func New() *Reporter {
	return &Reporter{
		Send:  func(t, m string) error { return beeep.Notify(t, m, "") },
		Quiet: 5 * time.Second,
	}
}

// OnError registers fn to be called with every reported error, including
// ones whose notification was suppressed.
func (r *Reporter) OnError(fn func(error)) {
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

func (r *Reporter) ReportError(err error) {
	if err == nil {
		return
	}
	msg := err.Error()

	r.mu.Lock()
	now := time.Now()
	show := msg != r.last || now.Sub(r.lastAt) >= r.Quiet
	if show {
		r.last, r.lastAt = msg, now
	}
	listeners := append(([]func(error))(nil), r.listeners...)
	send := r.Send
	r.mu.Unlock()

	for _, fn := range listeners {
		fn(err)
	}
	if !show || send == nil {
		return
	}
	if serr := send(title, msg); serr != nil {
		log.Warnf("notification failed: %v", serr)
	}
}

// Message shows an informational notification.
func (r *Reporter) Message(msg string) {
	if r.Send == nil {
		return
	}
	if err := r.Send(title, msg); err != nil {
		log.Warnf("notification failed: %v", err)
	}
}
