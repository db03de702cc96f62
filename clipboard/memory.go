package clipboard

import (
	"sync"
	"time"
)

// Memory is an in-process clipboard and keyboard. Paste records the
// clipboard content at the moment of the chord, as the target application
// would see it.
type Memory struct {
	mu       sync.Mutex
	text     string
	ReadErr  error
	WriteErr error
	PasteErr error
	pasted   []string
	typed    []string
	writes   int
}

func NewMemory(initial string) *Memory {
	return &Memory{text: initial}
}

func (m *Memory) Read() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return "", m.ReadErr
	}
	return m.text, nil
}

func (m *Memory) Write(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.text = text
	m.writes++
	return nil
}

func (m *Memory) Paste(time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PasteErr != nil {
		return m.PasteErr
	}
	m.pasted = append(m.pasted, m.text)
	return nil
}

func (m *Memory) Type(text string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.typed = append(m.typed, text)
	return nil
}

// Text returns the current clipboard content regardless of ReadErr.
func (m *Memory) Text() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.text
}

func (m *Memory) Pasted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.pasted...)
}

func (m *Memory) Typed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.typed...)
}

func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}
