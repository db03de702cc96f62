package silence

import (
	"sync"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"
)

const (
	vadMode        = 3
	vadSampleRate  = 16000
	vadFrameMs     = 20
	vadFrameBytes  = vadSampleRate * vadFrameMs / 1000 * 2 // 640 bytes
	speechMinRatio = 0.10
)

// VAD classifies a chunk with the WebRTC voice activity detector: the chunk
// is a pause when fewer than 10% of its 20 ms frames contain speech.
type VAD struct {
	mu  sync.Mutex
	vad *webrtcvad.VAD
}

func NewVAD() (*VAD, error) {
	v, err := webrtcvad.New()
	if err != nil {
		return nil, err
	}
	if err := v.SetMode(vadMode); err != nil {
		return nil, err
	}
	return &VAD{vad: v}, nil
}

// Silent ignores a trailing partial frame. A chunk shorter than one frame
// falls back to the peak detector.
func (d *VAD) Silent(chunk []byte) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	total, speech := 0, 0
	for off := 0; off+vadFrameBytes <= len(chunk); off += vadFrameBytes {
		active, err := d.vad.Process(vadSampleRate, chunk[off:off+vadFrameBytes])
		if err != nil {
			continue
		}
		total++
		if active {
			speech++
		}
	}
	if total == 0 {
		return IsSilent(chunk, len(chunk), SegmentThreshold)
	}
	return float64(speech)/float64(total) < speechMinRatio
}
