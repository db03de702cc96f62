package silence

import (
	"encoding/binary"
	"math"
	"testing"
)

func samples(vals ...int16) []byte {
	buf := make([]byte, len(vals)*2)
	for i, v := range vals {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(v))
	}
	return buf
}

func genTone(freq float64, durationMs int) []byte {
	n := 16000 * durationMs / 1000
	buf := make([]byte, n*2)
	for i := 0; i < n; i++ {
		s := int16(16000 * math.Sin(2*math.Pi*freq*float64(i)/16000))
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

func TestPeak(t *testing.T) {
	tests := []struct {
		name string
		pcm  []byte
		want int
	}{
		{"empty", nil, 0},
		{"zeros", samples(0, 0, 0), 0},
		{"positive", samples(10, 300, -20), 300},
		{"negative", samples(10, -700, 20), 700},
		{"min int16", samples(0, math.MinInt16), 32768},
		{"odd trailing byte", append(samples(5), 0xff), 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Peak(tt.pcm, len(tt.pcm)); got != tt.want {
				t.Errorf("Peak = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPeakHonoursByteCount(t *testing.T) {
	pcm := samples(1, 2, 9000)
	if got := Peak(pcm, 4); got != 2 {
		t.Errorf("Peak over 4 bytes = %d, want 2", got)
	}
	if got := Peak(pcm, 100); got != 9000 {
		t.Errorf("Peak with oversized n = %d, want 9000", got)
	}
}

func TestIsSilentBoundary(t *testing.T) {
	tests := []struct {
		amp       int16
		threshold int
		want      bool
	}{
		{499, SegmentThreshold, true},
		{500, SegmentThreshold, false},
		{-500, SegmentThreshold, false},
		{501, SegmentThreshold, false},
		{99, GuardThreshold, true},
		{100, GuardThreshold, false},
		{-99, GuardThreshold, true},
	}
	for _, tt := range tests {
		pcm := samples(0, tt.amp, 0)
		if got := IsSilent(pcm, len(pcm), tt.threshold); got != tt.want {
			t.Errorf("IsSilent(amp=%d, threshold=%d) = %v, want %v", tt.amp, tt.threshold, got, tt.want)
		}
	}
}

func TestPeakDetector(t *testing.T) {
	d := PeakDetector{Threshold: SegmentThreshold}
	if !d.Silent(make([]byte, 8000)) {
		t.Error("zeros should be silent")
	}
	if d.Silent(genTone(440, 250)) {
		t.Error("tone should not be silent")
	}
}

func TestNewDetector(t *testing.T) {
	for _, kind := range []string{"", "peak"} {
		d, err := NewDetector(kind)
		if err != nil {
			t.Fatalf("NewDetector(%q): %v", kind, err)
		}
		if _, ok := d.(PeakDetector); !ok {
			t.Errorf("NewDetector(%q) = %T, want PeakDetector", kind, d)
		}
	}
	if _, err := NewDetector("energy"); err == nil {
		t.Error("expected error for unknown detector")
	}
}

func TestVADSilence(t *testing.T) {
	d, err := NewVAD()
	if err != nil {
		t.Fatal(err)
	}
	if !d.Silent(make([]byte, 8000)) {
		t.Error("expected silence for zeros")
	}
}

func TestVADShortChunkFallsBackToPeak(t *testing.T) {
	d, err := NewVAD()
	if err != nil {
		t.Fatal(err)
	}
	if d.Silent(samples(0, 1000, 0)) {
		t.Error("loud short chunk should not be silent")
	}
	if !d.Silent(samples(0, 10, 0)) {
		t.Error("quiet short chunk should be silent")
	}
}
