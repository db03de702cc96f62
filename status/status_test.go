package status

import (
	"sync"
	"testing"
)

func TestStateFromFlags(t *testing.T) {
	tests := []struct {
		st   Status
		want State
	}{
		{Status{}, Idle},
		{Status{Recording: true}, Recording},
		{Status{Transcribing: true}, Transcribing},
		{Status{Recording: true, Transcribing: true}, Recording},
	}
	for _, tt := range tests {
		if got := tt.st.State(); got != tt.want {
			t.Errorf("%+v.State() = %v, want %v", tt.st, got, tt.want)
		}
	}
}

func TestTryStartRecordingIsReentrantNoop(t *testing.T) {
	h := New()
	var events []Status
	h.Subscribe(func(s Status) { events = append(events, s) })

	if !h.TryStartRecording() {
		t.Fatal("first start should succeed")
	}
	if h.TryStartRecording() {
		t.Fatal("second start should be a no-op")
	}
	if len(events) != 1 {
		t.Fatalf("got %d notifications, want 1", len(events))
	}
	if !h.Recording() {
		t.Error("expected recording")
	}
}

func TestStopRecording(t *testing.T) {
	h := New()
	if h.StopRecording() {
		t.Error("stop while idle should report false")
	}
	h.TryStartRecording()
	if !h.StopRecording() {
		t.Error("stop while recording should report true")
	}
	if h.Snapshot().State() != Idle {
		t.Errorf("state = %v, want idle", h.Snapshot().State())
	}
}

func TestTranscribingIndependentOfRecording(t *testing.T) {
	h := New()
	h.SetTranscribing(true)
	if !h.TryStartRecording() {
		t.Fatal("transcribing must not block a new recording")
	}
	s := h.Snapshot()
	if !s.Recording || !s.Transcribing {
		t.Errorf("snapshot = %+v", s)
	}
	h.Reset()
	if h.Snapshot() != (Status{}) {
		t.Errorf("after Reset: %+v", h.Snapshot())
	}
}

func TestUnsubscribe(t *testing.T) {
	h := New()
	a, b := 0, 0
	unsubA := h.Subscribe(func(Status) { a++ })
	h.Subscribe(func(Status) { b++ })

	h.SetTranscribing(true)
	unsubA()
	unsubA()
	h.SetTranscribing(false)

	if a != 1 || b != 2 {
		t.Errorf("a=%d b=%d, want 1 and 2", a, b)
	}
}

func TestNotificationsInMutationOrder(t *testing.T) {
	h := New()
	var mu sync.Mutex
	var seen []bool
	h.Subscribe(func(s Status) {
		mu.Lock()
		seen = append(seen, s.Transcribing)
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(v bool) {
			defer wg.Done()
			h.SetTranscribing(v)
		}(i%2 == 0)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 50 {
		t.Fatalf("got %d notifications, want 50", len(seen))
	}
	if last := seen[len(seen)-1]; last != h.Snapshot().Transcribing {
		t.Errorf("last notification %v disagrees with final state %v", last, h.Snapshot().Transcribing)
	}
}
