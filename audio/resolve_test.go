package audio

import (
	"errors"
	"testing"
)

func TestResolveDevice(t *testing.T) {
	devices := []DeviceInfo{{ID: "0", Name: "Built-in"}, {ID: "1", Name: "USB Mic"}, {ID: "2", Name: "Headset"}}

	tests := []struct {
		name      string
		preferred string
		previous  string
		want      string
		source    Source
	}{
		{"preferred present", "USB Mic", "Headset", "USB Mic", SourcePreferred},
		{"preferred missing falls to previous", "Gone", "Headset", "Headset", SourcePrevious},
		{"both missing", "Gone", "Also gone", "Built-in", SourceFirst},
		{"nothing configured", "", "", "Built-in", SourceFirst},
		{"case sensitive", "usb mic", "", "Built-in", SourceFirst},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, src, err := ResolveDevice(devices, tt.preferred, tt.previous)
			if err != nil {
				t.Fatal(err)
			}
			if d.Name != tt.want || src != tt.source {
				t.Errorf("got (%q, %v), want (%q, %v)", d.Name, src, tt.want, tt.source)
			}
		})
	}
}

func TestResolveDeviceNone(t *testing.T) {
	_, _, err := ResolveDevice(nil, "USB Mic", "")
	if !errors.Is(err, ErrNoDevice) {
		t.Fatalf("err = %v, want ErrNoDevice", err)
	}
}

func TestIsBluetooth(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"AirPods Pro", true},
		{"bluez_input.AA_BB", true},
		{"Built-in Microphone", false},
		{"Blue Yeti", false},
	}
	for _, tt := range tests {
		if got := IsBluetooth(tt.name); got != tt.want {
			t.Errorf("IsBluetooth(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
