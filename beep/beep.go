package beep

import (
	"math"
	"sync"
	"sync/atomic"

	"misterwhisper/status"
)

type Cue int

const (
	Start Cue = iota
	End
	Error
)

const (
	sampleRate = 44100

	// Start: high pitch, short
	startFreq   = 1200
	startVolume = 0.5
	startDecay  = 60

	// End: medium pitch, slightly longer
	endFreq   = 900
	endVolume = 0.5
	endDecay  = 40

	// Error: low pitch double-beep
	errorFreq   = 350
	errorVolume = 0.6
	errorDecay  = 30
)

var (
	enabled   atomic.Bool
	cueOnce   sync.Once
	cueSounds map[Cue][]int16
)

// SetEnabled turns the cues on or off. They start off.
func SetEnabled(on bool) { enabled.Store(on) }

func Enabled() bool { return enabled.Load() }

func sounds() map[Cue][]int16 {
	cueOnce.Do(func() {
		cueSounds = map[Cue][]int16{
			Start: tick(startFreq, 0.12, startVolume, startDecay),
			End:   tick(endFreq, 0.15, endVolume, endDecay),
			Error: doubleBeep(errorFreq, 0.08, 0.05, errorVolume, errorDecay),
		}
	})
	return cueSounds
}

func tick(freq, duration, volume, decay float64) []int16 {
	n := int(sampleRate * duration)
	samples := make([]int16, n)
	for i := range samples {
		t := float64(i) / sampleRate
		envelope := math.Exp(-t * decay)
		samples[i] = int16(math.Sin(2*math.Pi*freq*t) * 32767 * volume * envelope)
	}
	return samples
}

func doubleBeep(freq, beepDur, gapDur, volume, decay float64) []int16 {
	b := tick(freq, beepDur, volume, decay)
	gap := make([]int16, int(sampleRate*gapDur))
	out := make([]int16, 0, len(b)*2+len(gap))
	out = append(out, b...)
	out = append(out, gap...)
	return append(out, b...)
}

// Play sounds c in the background when cues are enabled.
func Play(c Cue) {
	if !enabled.Load() {
		return
	}
	go play(sounds()[c])
}

func PlayError() { Play(Error) }

// Cues plays Start when recording begins and End when it stops. Subscribe
// Observe to the status holder.
type Cues struct {
	mu        sync.Mutex
	recording bool
	play      func(Cue)
}

func NewCues() *Cues {
	return &Cues{play: Play}
}

func (c *Cues) Observe(s status.Status) {
	c.mu.Lock()
	was := c.recording
	c.recording = s.Recording
	c.mu.Unlock()

	switch {
	case s.Recording && !was:
		c.play(Start)
	case !s.Recording && was:
		c.play(End)
	}
}
