//go:build linux

package beep

import (
	"fmt"
	"sync"

	"github.com/jfreymuth/pulse"

	"misterwhisper/log"
)

// One connection serves every cue; it is dropped after a failed playback
// and dialled again on the next cue.
var (
	clientMu sync.Mutex
	client   *pulse.Client
)

func play(samples []int16) {
	if len(samples) == 0 {
		return
	}
	clientMu.Lock()
	defer clientMu.Unlock()

	if client == nil {
		c, err := pulse.NewClient(pulse.ClientApplicationName("misterwhisper"))
		if err != nil {
			log.Warnf("beep: %v", err)
			return
		}
		client = c
	}
	if err := playOn(client, samples); err != nil {
		log.Warnf("beep: %v", err)
		client.Close()
		client = nil
	}
}

func playOn(c *pulse.Client, samples []int16) error {
	pos := 0
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		if pos >= len(samples) {
			return 0, pulse.EndOfData
		}
		n := copy(buf, samples[pos:])
		pos += n
		return n, nil
	})
	stream, err := c.NewPlayback(reader,
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(sampleRate),
		pulse.PlaybackLatency(0.1),
	)
	if err != nil {
		return fmt.Errorf("playback: %w", err)
	}
	defer stream.Close()
	stream.Start()
	stream.Drain()
	stream.Stop()
	if err := stream.Error(); err != nil {
		return fmt.Errorf("playback: %w", err)
	}
	return nil
}
