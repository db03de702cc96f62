//go:build linux

package audio

import (
	"bytes"
	"slices"
	"testing"
)

func TestMicrophones(t *testing.T) {
	sources := []DeviceInfo{
		{ID: "alsa_output.pci.analog-stereo.monitor", Name: "Monitor of Speakers"},
		{ID: "alsa_input.usb-mic", Name: "USB Mic"},
		{ID: "alsa_input.pci.analog-stereo", Name: "Built-in"},
	}
	got := microphones(sources, "alsa_input.pci.analog-stereo")
	if names := DeviceNames(got); !slices.Equal(names, []string{"Built-in", "USB Mic"}) {
		t.Errorf("microphones = %v", names)
	}
	if got := microphones(sources, "gone"); len(got) != 2 || got[0].Name != "USB Mic" {
		t.Errorf("without default = %v", DeviceNames(got))
	}
}

func TestSamplesToBytes(t *testing.T) {
	got := samplesToBytes([]int16{1, -1, 0x1234})
	want := []byte{0x01, 0x00, 0xff, 0xff, 0x34, 0x12}
	if !bytes.Equal(got, want) {
		t.Errorf("samplesToBytes = % x, want % x", got, want)
	}
}
