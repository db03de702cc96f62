//go:build !linux && !darwin

package clipboard

import "github.com/micmonay/keybd_event"

const pasteChord = "Ctrl+V"

func setPasteModifier(k *keybd_event.KeyBonding)    { k.HasCTRL(true) }
func setPasteModifierOff(k *keybd_event.KeyBonding) { k.HasCTRL(false) }
