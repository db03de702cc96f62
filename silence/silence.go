// Package silence classifies 16 kHz mono s16le PCM as silence or speech.
package silence

import (
	"encoding/binary"
	"fmt"
)

const (
	// SegmentThreshold splits a recording at pauses.
	SegmentThreshold = 500
	// GuardThreshold discards a whole segment in which nothing was said.
	GuardThreshold = 100
)

// Peak returns the largest absolute sample amplitude in the first n bytes of
// pcm. A trailing odd byte is ignored.
func Peak(pcm []byte, n int) int {
	n = min(n, len(pcm))
	peak := 0
	for i := 0; i+1 < n; i += 2 {
		s := int(int16(binary.LittleEndian.Uint16(pcm[i:])))
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	return peak
}

// IsSilent reports whether the peak amplitude of the first n bytes of pcm is
// strictly below threshold.
func IsSilent(pcm []byte, n, threshold int) bool {
	return Peak(pcm, n) < threshold
}

// Detector decides whether a captured chunk counts as a pause.
type Detector interface {
	Silent(chunk []byte) bool
}

// PeakDetector is the amplitude detector used for segmentation.
type PeakDetector struct {
	Threshold int
}

func (d PeakDetector) Silent(chunk []byte) bool {
	return IsSilent(chunk, len(chunk), d.Threshold)
}

// NewDetector builds the detector named by kind: "peak" (the default) or "vad".
func NewDetector(kind string) (Detector, error) {
	switch kind {
	case "", "peak":
		return PeakDetector{Threshold: SegmentThreshold}, nil
	case "vad":
		return NewVAD()
	default:
		return nil, fmt.Errorf("unknown silence detector %q", kind)
	}
}
