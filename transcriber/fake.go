package transcriber

import (
	"context"
	"sync"
	"time"
)

// Fake returns a fixed text or error and records the files it was given.
type Fake struct {
	Text  string
	Err   error
	Delay time.Duration

	mu    sync.Mutex
	paths []string
}

func NewFake(text string, err error) *Fake {
	return &Fake{Text: text, Err: err}
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) Transcribe(ctx context.Context, wavPath string) (string, error) {
	f.mu.Lock()
	f.paths = append(f.paths, wavPath)
	f.mu.Unlock()

	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.Err != nil {
		return "", f.Err
	}
	return f.Text, nil
}

func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.paths)
}

func (f *Fake) Paths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.paths...)
}

// Func adapts a function to Transcriber.
type Func func(ctx context.Context, wavPath string) (string, error)

func (fn Func) Name() string { return "func" }

func (fn Func) Transcribe(ctx context.Context, wavPath string) (string, error) {
	return fn(ctx, wavPath)
}
