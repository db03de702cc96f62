package beep

import (
	"testing"

	"misterwhisper/status"
)

func TestCuesFollowRecordingEdges(t *testing.T) {
	var played []Cue
	c := &Cues{play: func(cue Cue) { played = append(played, cue) }}

	c.Observe(status.Status{})
	c.Observe(status.Status{Recording: true})
	c.Observe(status.Status{Recording: true, Transcribing: true})
	c.Observe(status.Status{Transcribing: true})
	c.Observe(status.Status{})
	c.Observe(status.Status{Recording: true})

	want := []Cue{Start, End, Start}
	if len(played) != len(want) {
		t.Fatalf("played %v, want %v", played, want)
	}
	for i := range want {
		if played[i] != want[i] {
			t.Fatalf("played %v, want %v", played, want)
		}
	}
}

func TestSoundsShape(t *testing.T) {
	s := sounds()
	if n := len(s[Start]); n < 5291 || n > 5292 {
		t.Errorf("start length = %d", len(s[Start]))
	}
	if len(s[Error]) <= 2*len(tick(errorFreq, 0.08, errorVolume, errorDecay)) {
		t.Errorf("error cue should hold two beeps and a gap, got %d samples", len(s[Error]))
	}
	if s[End][0] != 0 {
		t.Errorf("tone should start at zero crossing, got %d", s[End][0])
	}
}

func TestPlayDisabledIsNoop(t *testing.T) {
	SetEnabled(false)
	Play(Start)
	if Enabled() {
		t.Error("expected disabled")
	}
}
