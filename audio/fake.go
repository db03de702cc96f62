package audio

import (
	"os"
	"sync"
	"time"
)

const fakeFrameBytes = 1024 * BytesPerSample

// FakeContext serves captures that replay a fixed PCM buffer. With Realtime
// set the PCM is paced at the capture rate and followed by endless silence,
// like a live microphone; otherwise it is delivered at once and the capture
// reports Done.
type FakeContext struct {
	PCM      []byte
	Realtime bool
	Names    []string

	// OpenErr, when set, is returned by NewCapture.
	OpenErr error

	mu       sync.Mutex
	captures []*FakeCapture
}

func NewFakeContext(pcm []byte, names ...string) *FakeContext {
	if len(names) == 0 {
		names = []string{"fake"}
	}
	return &FakeContext{PCM: pcm, Names: names}
}

// NewFakeContextFromWAV loads a 16 kHz mono WAV file, skipping its header.
func NewFakeContextFromWAV(wavPath string, realtime bool) (*FakeContext, error) {
	data, err := os.ReadFile(wavPath)
	if err != nil {
		return nil, err
	}
	if len(data) > WAVHeaderSize {
		data = data[WAVHeaderSize:]
	}
	f := NewFakeContext(data)
	f.Realtime = realtime
	return f, nil
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	devices := make([]DeviceInfo, len(f.Names))
	for i, n := range f.Names {
		devices[i] = DeviceInfo{ID: n, Name: n}
	}
	return devices, nil
}

func (f *FakeContext) Close() {}

func (f *FakeContext) NewCapture(device *DeviceInfo, _ CaptureConfig) (CaptureDevice, error) {
	if f.OpenErr != nil {
		return nil, f.OpenErr
	}
	name := "fake"
	if device != nil {
		name = device.Name
	}
	c := &FakeCapture{
		pcm:      f.PCM,
		realtime: f.Realtime,
		name:     name,
		done:     make(chan struct{}),
		fed:      make(chan struct{}),
	}
	f.mu.Lock()
	f.captures = append(f.captures, c)
	f.mu.Unlock()
	return c, nil
}

// Captures returns every capture opened so far.
func (f *FakeContext) Captures() []*FakeCapture {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*FakeCapture(nil), f.captures...)
}

type FakeCapture struct {
	pcm      []byte
	realtime bool
	name     string
	done     chan struct{} // closed after the last chunk in non-realtime mode
	fed      chan struct{} // closed once the PCM has been delivered

	mu       sync.Mutex
	cb       DataCallback
	stopCh   chan struct{}
	feedDone chan struct{}
	closed   bool
}

func (f *FakeCapture) DeviceName() string { return f.name }

// AudioDone is closed once the whole PCM buffer has been delivered.
func (f *FakeCapture) AudioDone() <-chan struct{} { return f.fed }

// Done implements Finite. It never fires in realtime mode.
func (f *FakeCapture) Done() <-chan struct{} { return f.done }

func (f *FakeCapture) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *FakeCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

func (f *FakeCapture) callback() DataCallback {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cb
}

func (f *FakeCapture) feed(cb DataCallback, pos int) int {
	end := min(pos+fakeFrameBytes, len(f.pcm))
	chunk := make([]byte, end-pos)
	copy(chunk, f.pcm[pos:end])
	cb(chunk, uint32(len(chunk)/BytesPerSample))
	return end
}

func (f *FakeCapture) Start() error {
	f.stopCh = make(chan struct{})
	f.feedDone = make(chan struct{})

	if !f.realtime {
		go func() {
			defer close(f.feedDone)
			if cb := f.callback(); cb != nil {
				for pos := 0; pos < len(f.pcm); {
					pos = f.feed(cb, pos)
				}
			}
			close(f.fed)
			close(f.done)
		}()
		return nil
	}

	interval := time.Duration(fakeFrameBytes/BytesPerSample) * time.Second / SampleRate
	go func() {
		defer close(f.feedDone)
		pos := 0
		silence := make([]byte, fakeFrameBytes)
		finished := false
		for {
			select {
			case <-f.stopCh:
				return
			case <-time.After(interval):
			}
			cb := f.callback()
			if cb == nil {
				continue
			}
			if pos < len(f.pcm) {
				pos = f.feed(cb, pos)
				continue
			}
			if !finished {
				finished = true
				close(f.fed)
			}
			cb(silence, uint32(len(silence)/BytesPerSample))
		}
	}()
	return nil
}

func (f *FakeCapture) Stop() {
	if f.stopCh == nil {
		return
	}
	select {
	case <-f.stopCh:
	default:
		close(f.stopCh)
	}
	<-f.feedDone
}

func (f *FakeCapture) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}
