//go:build !linux

package hotkey

import (
	"fmt"

	"golang.design/x/hotkey"
)

var xKeys = map[Key]hotkey.Key{
	F1: hotkey.KeyF1, F2: hotkey.KeyF2, F3: hotkey.KeyF3, F4: hotkey.KeyF4,
	F5: hotkey.KeyF5, F6: hotkey.KeyF6, F7: hotkey.KeyF7, F8: hotkey.KeyF8,
	F9: hotkey.KeyF9, F10: hotkey.KeyF10, F11: hotkey.KeyF11, F12: hotkey.KeyF12,
}

type xHotkey struct {
	key     Key
	hk      *hotkey.Hotkey
	keydown chan struct{}
	keyup   chan struct{}
	stop    chan struct{}
}

// New returns an unregistered global hotkey for key with no modifiers.
func New(key Key) Hotkey {
	return &xHotkey{
		key:     key,
		hk:      hotkey.New(nil, xKeys[key]),
		keydown: make(chan struct{}, 1),
		keyup:   make(chan struct{}, 1),
	}
}

func (h *xHotkey) Register() error {
	if err := h.hk.Register(); err != nil {
		return fmt.Errorf("registering %s: %w", h.key, err)
	}
	h.stop = make(chan struct{})
	go forward(h.hk.Keydown(), h.keydown, h.stop)
	go forward(h.hk.Keyup(), h.keyup, h.stop)
	return nil
}

func forward(from <-chan hotkey.Event, to chan struct{}, stop <-chan struct{}) {
	for {
		select {
		case <-from:
			select {
			case to <- struct{}{}:
			default:
			}
		case <-stop:
			return
		}
	}
}

func (h *xHotkey) Unregister() {
	if h.stop != nil {
		close(h.stop)
		h.stop = nil
	}
	h.hk.Unregister()
}

func (h *xHotkey) Keydown() <-chan struct{} {
	return h.keydown
}

func (h *xHotkey) Keyup() <-chan struct{} {
	return h.keyup
}

func Diagnose() (string, error) {
	return "global hotkey support available (F1 to F12)", nil
}
