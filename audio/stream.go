package audio

import (
	"bytes"
	"fmt"
	"io"
	"sync"
)

// Stream turns a callback-driven CaptureDevice into a blocking reader of
// fixed-size chunks. The device is owned by the Stream until Close.
type Stream struct {
	dev CaptureDevice

	mu     sync.Mutex
	cond   *sync.Cond
	buf    bytes.Buffer
	ended  bool // source delivered its last callback
	closed bool
	quit   chan struct{}
}

// OpenStream creates a capture on device and starts it.
func OpenStream(ctx Context, device *DeviceInfo, config CaptureConfig) (*Stream, error) {
	dev, err := ctx.NewCapture(device, config)
	if err != nil {
		return nil, fmt.Errorf("opening capture: %w", err)
	}
	s := newStream(dev)
	if err := dev.Start(); err != nil {
		dev.ClearCallback()
		dev.Close()
		return nil, fmt.Errorf("starting capture: %w", err)
	}
	return s, nil
}

func newStream(dev CaptureDevice) *Stream {
	s := &Stream{dev: dev, quit: make(chan struct{})}
	s.cond = sync.NewCond(&s.mu)
	dev.SetCallback(s.push)
	if f, ok := dev.(Finite); ok {
		go func() {
			select {
			case <-f.Done():
			case <-s.quit:
				return
			}
			s.mu.Lock()
			s.ended = true
			s.mu.Unlock()
			s.cond.Broadcast()
		}()
	}
	return s
}

func (s *Stream) push(data []byte, _ uint32) {
	s.mu.Lock()
	if !s.closed {
		s.buf.Write(data)
	}
	s.mu.Unlock()
	s.cond.Broadcast()
}

// ReadChunk fills p with captured bytes, blocking until len(p) bytes are
// available. When the source has ended it returns whatever is left, and
// io.EOF once nothing is left.
func (s *Stream) ReadChunk(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for s.buf.Len() < len(p) && !s.ended && !s.closed {
		s.cond.Wait()
	}
	if s.closed {
		return 0, ErrStreamClosed
	}
	n, _ := s.buf.Read(p)
	if n == 0 && s.ended {
		return 0, io.EOF
	}
	return n, nil
}

func (s *Stream) DeviceName() string {
	return s.dev.DeviceName()
}

// Close stops the device and wakes any blocked reader.
func (s *Stream) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.quit)
	s.buf.Reset()
	s.mu.Unlock()
	s.cond.Broadcast()

	s.dev.Stop()
	s.dev.ClearCallback()
	s.dev.Close()
}
