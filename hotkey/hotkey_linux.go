//go:build linux

package hotkey

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

const (
	evKey      = 1
	keyRelease = 0
	keyPress   = 1

	// struct input_event on 64-bit: timeval (16) + type, code (2+2) + value (4)
	inputEventSize = 24
)

// ErrNoKeyboard means no readable evdev node reports the hotkey.
var ErrNoKeyboard = errors.New("no keyboard with the hotkey is readable (run: sudo usermod -aG input $USER, then log in again)")

var (
	inputDir = "/dev/input"
	sysDir   = "/sys/class/input"
)

// evdev codes from linux/input-event-codes.h
var evdevCodes = map[Key]uint16{
	F1: 59, F2: 60, F3: 61, F4: 62, F5: 63, F6: 64,
	F7: 65, F8: 66, F9: 67, F10: 68, F11: 87, F12: 88,
}

type inputEvent struct {
	typ   uint16
	code  uint16
	value int32
}

func decodeEvent(b []byte) inputEvent {
	return inputEvent{
		typ:   binary.LittleEndian.Uint16(b[16:]),
		code:  binary.LittleEndian.Uint16(b[18:]),
		value: int32(binary.LittleEndian.Uint32(b[20:])),
	}
}

// evdevHotkey reads key events straight from every keyboard that has the
// key, so it works under Wayland and on the console.
type evdevHotkey struct {
	key     Key
	code    uint16
	keydown chan struct{}
	keyup   chan struct{}

	mu    sync.Mutex
	files []*os.File
}

func New(key Key) Hotkey {
	return &evdevHotkey{
		key:     key,
		code:    evdevCodes[key],
		keydown: make(chan struct{}, 1),
		keyup:   make(chan struct{}, 1),
	}
}

func (h *evdevHotkey) Register() error {
	nodes, err := keyboardsWith(h.code)
	if err != nil {
		return fmt.Errorf("scanning %s: %w", inputDir, err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, path := range nodes {
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		h.files = append(h.files, f)
		go h.read(f)
	}
	if len(h.files) == 0 {
		return fmt.Errorf("%s: %w", h.key, ErrNoKeyboard)
	}
	return nil
}

// read forwards press and release edges from one device. Several keyboards
// may report the same key; each tracks its own held state. Closing f ends
// the loop.
func (h *evdevHotkey) read(f *os.File) {
	buf := make([]byte, inputEventSize*16)
	held := false
	for {
		n, err := f.Read(buf)
		if err != nil {
			return
		}
		for i := 0; i+inputEventSize <= n; i += inputEventSize {
			ev := decodeEvent(buf[i:])
			if ev.typ != evKey || ev.code != h.code {
				continue
			}
			switch {
			case ev.value == keyPress && !held:
				held = true
				signal(h.keydown)
			case ev.value == keyRelease && held:
				held = false
				signal(h.keyup)
			}
		}
	}
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (h *evdevHotkey) Unregister() {
	h.mu.Lock()
	files := h.files
	h.files = nil
	h.mu.Unlock()
	for _, f := range files {
		f.Close()
	}
}

func (h *evdevHotkey) Keydown() <-chan struct{} { return h.keydown }
func (h *evdevHotkey) Keyup() <-chan struct{}   { return h.keyup }

// keyboardsWith lists the event nodes whose key capability bitmap includes
// code.
func keyboardsWith(code uint16) ([]string, error) {
	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return nil, err
	}
	var nodes []string
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), "event") {
			continue
		}
		caps, err := os.ReadFile(filepath.Join(sysDir, e.Name(), "device", "capabilities", "key"))
		if err != nil {
			continue
		}
		if capsHaveKey(string(caps), code) {
			nodes = append(nodes, filepath.Join(inputDir, e.Name()))
		}
	}
	return nodes, nil
}

// capsHaveKey reports whether bit code is set in a sysfs capability bitmap:
// space-separated hex words, most significant word first.
func capsHaveKey(caps string, code uint16) bool {
	words := strings.Fields(caps)
	idx := len(words) - 1 - int(code)/bits.UintSize
	if idx < 0 {
		return false
	}
	w, err := strconv.ParseUint(words[idx], 16, bits.UintSize)
	if err != nil {
		return false
	}
	return w&(1<<(uint(code)%bits.UintSize)) != 0
}

// Diagnose reports which keyboards can deliver the default hotkey.
func Diagnose() (string, error) {
	nodes, err := keyboardsWith(evdevCodes[DefaultKey])
	if err != nil {
		return "", fmt.Errorf("cannot scan input devices: %w", err)
	}
	if len(nodes) == 0 {
		return "", fmt.Errorf("no keyboard reports %s", DefaultKey)
	}
	for _, path := range nodes {
		if f, err := os.Open(path); err == nil {
			f.Close()
			return fmt.Sprintf("%d keyboard(s) found, opened %s", len(nodes), path), nil
		}
	}
	return "", fmt.Errorf("found %d keyboard(s): %w", len(nodes), ErrNoKeyboard)
}
