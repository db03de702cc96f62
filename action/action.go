// Package action delivers transcribed text to the foreground application.
package action

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"misterwhisper/internal/fifo"
	"misterwhisper/log"
)

// Mode is chosen once per recording and travels with every segment.
type Mode int

const (
	None Mode = iota
	Paste
	Type
)

func (m Mode) String() string {
	switch m {
	case Paste:
		return "paste"
	case Type:
		return "type"
	default:
		return "nothing"
	}
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "paste":
		return Paste, nil
	case "type":
		return Type, nil
	case "nothing", "none", "":
		return None, nil
	}
	return None, fmt.Errorf("unknown action %q (want paste, type or nothing)", s)
}

type Clipboard interface {
	Read() (string, error)
	Write(text string) error
}

// Keyboard synthesizes key events. Paste presses the platform paste chord and
// holds it for hold before releasing.
type Keyboard interface {
	Paste(hold time.Duration) error
	Type(text string, delay time.Duration) error
}

// History receives every delivered text.
type History interface {
	Add(text string)
}

type Options struct {
	RestoreDelay time.Duration
	PasteHold    time.Duration
	TypeDelay    time.Duration
}

func DefaultOptions() Options {
	return Options{
		RestoreDelay: time.Second,
		PasteHold:    20 * time.Millisecond,
		TypeDelay:    11 * time.Millisecond,
	}
}

type job struct {
	text string
	mode Mode
	done chan struct{}
}

// Executor runs every delivery on one goroutine so that pastes and typed
// text from different segments never interleave.
type Executor struct {
	clip    Clipboard
	kb      Keyboard
	history History
	opts    Options
	queue   *fifo.Queue[job]

	mu          sync.Mutex
	restore     *time.Timer
	restoreText string
}

func NewExecutor(clip Clipboard, kb Keyboard, history History, opts Options) *Executor {
	return &Executor{
		clip:    clip,
		kb:      kb,
		history: history,
		opts:    opts,
		queue:   fifo.New[job](),
	}
}

// Start runs the delivery loop until ctx is done.
func (e *Executor) Start(ctx context.Context) {
	go func() {
		for {
			j, ok := e.queue.Pop(ctx)
			if !ok {
				return
			}
			e.deliver(j.text, j.mode)
			if j.done != nil {
				close(j.done)
			}
		}
	}()
}

// Deliver enqueues text and returns immediately.
func (e *Executor) Deliver(text string, mode Mode) {
	e.queue.Push(job{text: text, mode: mode})
}

// Flush blocks until everything queued before it has been delivered.
func (e *Executor) Flush(ctx context.Context) {
	done := make(chan struct{})
	e.queue.Push(job{mode: -1, done: done})
	select {
	case <-done:
	case <-ctx.Done():
	}
}

func (e *Executor) deliver(text string, mode Mode) {
	var err error
	switch mode {
	case Paste:
		err = e.paste(text)
	case Type:
		err = e.kb.Type(text, e.opts.TypeDelay)
	case None:
	default:
		return
	}
	log.Delivery(mode.String(), err)
	e.history.Add(text)
}

func (e *Executor) paste(text string) error {
	prev, restore := e.snapshot()
	if restore {
		// A taken-over snapshot must be put back even if this paste fails.
		defer e.scheduleRestore(prev)
	}

	if err := e.clip.Write(text); err != nil {
		return fmt.Errorf("writing clipboard: %w", err)
	}
	if err := e.kb.Paste(e.opts.PasteHold); err != nil {
		return fmt.Errorf("paste keystroke: %w", err)
	}
	return nil
}

// snapshot returns the clipboard content to put back after pasting. While a
// restore from an earlier paste is still pending, that earlier snapshot is
// kept, since the clipboard currently holds our own text.
func (e *Executor) snapshot() (string, bool) {
	e.mu.Lock()
	if e.restore != nil && e.restore.Stop() {
		text := e.restoreText
		e.restore = nil
		e.mu.Unlock()
		return text, true
	}
	e.restore = nil
	e.mu.Unlock()

	prev, err := e.clip.Read()
	if err != nil {
		log.Warnf("clipboard snapshot failed, nothing to restore: %v", err)
		return "", false
	}
	return prev, true
}

func (e *Executor) scheduleRestore(prev string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.restoreText = prev
	var t *time.Timer
	t = time.AfterFunc(e.opts.RestoreDelay, func() {
		e.mu.Lock()
		if e.restore == t {
			e.restore = nil
		}
		e.mu.Unlock()
		if err := e.clip.Write(prev); err != nil {
			log.Warnf("clipboard restore failed: %v", err)
		}
	})
	e.restore = t
}
