package hotkey

import (
	"sync"
	"time"
)

// HoldThreshold separates a tap (toggle) from a hold (push-to-talk).
const HoldThreshold = 300 * time.Millisecond

type Intent int

const (
	// Toggle starts a recording when idle and stops it otherwise.
	Toggle Intent = iota
	// Stop ends the recording after a push-to-talk hold.
	Stop
)

func (i Intent) String() string {
	if i == Stop {
		return "stop"
	}
	return "toggle"
}

// Monitor turns press/release of the bound key into intents. A press always
// emits Toggle; a release emits Stop when the key was held longer than the
// hold threshold. Key repeat while held is ignored. The OS-facing goroutines
// only enqueue; a full queue drops the intent rather than block.
type Monitor struct {
	hold    time.Duration
	intents chan Intent

	mu   sync.Mutex
	hk   Hotkey
	stop chan struct{}
	wg   sync.WaitGroup
}

func NewMonitor(hold time.Duration) *Monitor {
	return &Monitor{
		hold:    hold,
		intents: make(chan Intent, 8),
	}
}

func (m *Monitor) Intents() <-chan Intent { return m.intents }

// Bind registers hk and replaces any previously bound hotkey. On error the
// previous binding is gone and nothing is bound.
func (m *Monitor) Bind(hk Hotkey) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.unbindLocked()
	if err := hk.Register(); err != nil {
		return err
	}
	m.hk = hk
	m.stop = make(chan struct{})
	m.wg.Add(1)
	go m.watch(hk, m.stop)
	return nil
}

func (m *Monitor) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unbindLocked()
}

func (m *Monitor) unbindLocked() {
	if m.hk == nil {
		return
	}
	close(m.stop)
	m.wg.Wait()
	m.hk.Unregister()
	m.hk = nil
}

func (m *Monitor) emit(i Intent) {
	select {
	case m.intents <- i:
	default:
	}
}

func (m *Monitor) watch(hk Hotkey, stop <-chan struct{}) {
	defer m.wg.Done()
	pressed := false
	var pressedAt time.Time
	for {
		select {
		case <-stop:
			return
		case <-hk.Keydown():
			if pressed {
				continue
			}
			pressed = true
			pressedAt = time.Now()
			m.emit(Toggle)
		case <-hk.Keyup():
			if !pressed {
				continue
			}
			pressed = false
			if time.Since(pressedAt) > m.hold {
				m.emit(Stop)
			}
		}
	}
}
