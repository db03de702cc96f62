package hotkey

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type Hotkey interface {
	Register() error
	Unregister()
	Keydown() <-chan struct{}
	Keyup() <-chan struct{}
}

var ErrUnknownKey = errors.New("unknown hotkey")

// Key is one of the function keys F1 to F12.
type Key int

const (
	F1 Key = iota + 1
	F2
	F3
	F4
	F5
	F6
	F7
	F8
	F9
	F10
	F11
	F12
)

const DefaultKey = F9

func ParseKey(s string) (Key, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if n, err := strconv.Atoi(strings.TrimPrefix(s, "F")); err == nil && strings.HasPrefix(s, "F") && n >= 1 && n <= 12 {
		return Key(n), nil
	}
	return 0, fmt.Errorf("%w %q (want F1 to F12)", ErrUnknownKey, s)
}

func (k Key) String() string {
	return "F" + strconv.Itoa(int(k))
}

// Keys lists every supported key in order.
func Keys() []Key {
	keys := make([]Key, 0, 12)
	for k := F1; k <= F12; k++ {
		keys = append(keys, k)
	}
	return keys
}
