//go:build !linux

package clipboard

import (
	"sync"
	"time"

	"github.com/micmonay/keybd_event"
)

var (
	kb     keybd_event.KeyBonding
	kbOnce sync.Once
	kbErr  error
	kbMu   sync.Mutex
)

func Init() error {
	kbOnce.Do(func() {
		kb, kbErr = keybd_event.NewKeyBonding()
	})
	return kbErr
}

// Paste presses the platform paste chord and holds it for hold.
func Paste(hold time.Duration) error {
	if err := Init(); err != nil {
		return err
	}
	kbMu.Lock()
	defer kbMu.Unlock()

	kb.Clear()
	kb.SetKeys(keybd_event.VK_V)
	setPasteModifier(&kb)
	defer resetModifiers(&kb)
	if err := kb.Press(); err != nil {
		return err
	}
	time.Sleep(hold)
	return kb.Release()
}

var (
	letterKeys = [26]int{
		keybd_event.VK_A, keybd_event.VK_B, keybd_event.VK_C, keybd_event.VK_D, keybd_event.VK_E,
		keybd_event.VK_F, keybd_event.VK_G, keybd_event.VK_H, keybd_event.VK_I, keybd_event.VK_J,
		keybd_event.VK_K, keybd_event.VK_L, keybd_event.VK_M, keybd_event.VK_N, keybd_event.VK_O,
		keybd_event.VK_P, keybd_event.VK_Q, keybd_event.VK_R, keybd_event.VK_S, keybd_event.VK_T,
		keybd_event.VK_U, keybd_event.VK_V, keybd_event.VK_W, keybd_event.VK_X, keybd_event.VK_Y,
		keybd_event.VK_Z,
	}
	digitKeys = [10]int{
		keybd_event.VK_0, keybd_event.VK_1, keybd_event.VK_2, keybd_event.VK_3, keybd_event.VK_4,
		keybd_event.VK_5, keybd_event.VK_6, keybd_event.VK_7, keybd_event.VK_8, keybd_event.VK_9,
	}
)

func charToKey(c rune) (key int, shift bool, ok bool) {
	switch {
	case c >= 'a' && c <= 'z':
		return letterKeys[c-'a'], false, true
	case c >= 'A' && c <= 'Z':
		return letterKeys[c-'A'], true, true
	case c >= '0' && c <= '9':
		return digitKeys[c-'0'], false, true
	case c == ' ':
		return keybd_event.VK_SPACE, false, true
	}
	return 0, false, false
}

// Type taps each letter, digit and space of text, pausing delay between
// characters. Other characters are skipped.
func Type(text string, delay time.Duration) error {
	if err := Init(); err != nil {
		return err
	}
	kbMu.Lock()
	defer kbMu.Unlock()
	defer resetModifiers(&kb)

	for _, c := range text {
		key, shift, ok := charToKey(c)
		if !ok {
			continue
		}
		kb.Clear()
		kb.SetKeys(key)
		kb.HasSHIFT(shift)
		if err := kb.Launching(); err != nil {
			return err
		}
		if delay > 0 {
			time.Sleep(delay)
		}
	}
	return nil
}

// Verify checks that the keyboard event binding is initialized.
func Verify() (string, error) {
	if err := Init(); err != nil {
		return "", err
	}
	return "keyboard event binding OK (" + pasteChord + ")", nil
}

func resetModifiers(k *keybd_event.KeyBonding) {
	k.Clear()
	k.HasSHIFT(false)
	k.HasCTRL(false)
	setPasteModifierOff(k)
}
