package hotkey

import (
	"errors"
	"testing"
)

func TestParseKey(t *testing.T) {
	tests := []struct {
		in   string
		want Key
		err  bool
	}{
		{"F9", F9, false},
		{"f1", F1, false},
		{" F12 ", F12, false},
		{"F0", 0, true},
		{"F13", 0, true},
		{"9", 0, true},
		{"Space", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseKey(tt.in)
		if tt.err {
			if !errors.Is(err, ErrUnknownKey) {
				t.Errorf("ParseKey(%q) err = %v, want ErrUnknownKey", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseKey(%q) = (%v, %v), want %v", tt.in, got, err, tt.want)
		}
	}
}

func TestKeysRoundTrip(t *testing.T) {
	keys := Keys()
	if len(keys) != 12 || keys[0] != F1 || keys[11] != F12 {
		t.Fatalf("Keys = %v", keys)
	}
	for _, k := range keys {
		if back, err := ParseKey(k.String()); err != nil || back != k {
			t.Errorf("ParseKey(%q) = %v, %v", k.String(), back, err)
		}
	}
	if DefaultKey.String() != "F9" {
		t.Errorf("DefaultKey = %s", DefaultKey)
	}
}
