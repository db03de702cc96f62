package clipboard

import "github.com/micmonay/keybd_event"

const pasteChord = "Cmd+V"

func setPasteModifier(k *keybd_event.KeyBonding)    { k.HasSuper(true) }
func setPasteModifierOff(k *keybd_event.KeyBonding) { k.HasSuper(false) }
