package dispatch

import (
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"sync"
	"testing"
	"time"

	"misterwhisper/action"
	"misterwhisper/transcriber"
)

type delivered struct {
	text string
	mode action.Mode
}

type fakeDeliverer struct {
	mu  sync.Mutex
	got []delivered
}

func (f *fakeDeliverer) Deliver(text string, mode action.Mode) {
	f.mu.Lock()
	f.got = append(f.got, delivered{text, mode})
	f.mu.Unlock()
}

func (f *fakeDeliverer) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, d := range f.got {
		out = append(out, d.text)
	}
	return out
}

type fakeStatus struct {
	mu      sync.Mutex
	changes []bool
}

func (s *fakeStatus) SetTranscribing(v bool) {
	s.mu.Lock()
	s.changes = append(s.changes, v)
	s.mu.Unlock()
}

func (s *fakeStatus) get() []bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]bool(nil), s.changes...)
}

type fakeReporter struct {
	mu   sync.Mutex
	errs []error
}

func (r *fakeReporter) ReportError(err error) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
}

func (r *fakeReporter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errs)
}

func loud(n int) []byte {
	buf := make([]byte, n)
	for i := 0; i+1 < n; i += 2 {
		binary.LittleEndian.PutUint16(buf[i:], uint16(int16(3000)))
	}
	return buf
}

type harness struct {
	d       *Dispatcher
	out     *fakeDeliverer
	status  *fakeStatus
	reports *fakeReporter
}

func newHarness(t *testing.T, engine transcriber.Transcriber, opts Options) *harness {
	t.Helper()
	if opts.TempDir == "" {
		opts.TempDir = t.TempDir()
	}
	h := &harness{out: &fakeDeliverer{}, status: &fakeStatus{}, reports: &fakeReporter{}}
	h.d = New(engine, h.out, h.status, h.reports, opts)
	h.d.idle = make(chan struct{}, 16)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	h.d.Start(ctx)
	return h
}

func (h *harness) wait(t *testing.T, n int) {
	t.Helper()
	for range n {
		select {
		case <-h.d.idle:
		case <-time.After(3 * time.Second):
			t.Fatal("dispatcher did not finish task")
		}
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in    string
		final bool
		want  string
	}{
		{" hello world\n", true, "hello world"},
		{" hello world\n", false, "hello world "},
		{"a\r\nb\tc", true, "a  b c"},
		{"\n\t ", true, ""},
		{"", false, " "},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in, tt.final); got != tt.want {
			t.Errorf("Normalize(%q, %v) = %q, want %q", tt.in, tt.final, got, tt.want)
		}
	}
}

func TestPad(t *testing.T) {
	short := []byte{1, 2, 3}
	got := Pad(short, MinSegmentBytes)
	if len(got) != MinSegmentBytes {
		t.Fatalf("len = %d, want %d", len(got), MinSegmentBytes)
	}
	if got[0] != 1 || got[2] != 3 || got[3] != 0 || got[len(got)-1] != 0 {
		t.Error("padding must keep the prefix and zero-fill the rest")
	}

	exact := make([]byte, MinSegmentBytes)
	if p := Pad(exact, MinSegmentBytes); &p[0] != &exact[0] {
		t.Error("segment at the floor must be returned unchanged")
	}
	long := make([]byte, 96000)
	if p := Pad(long, MinSegmentBytes); len(p) != 96000 {
		t.Errorf("long segment resized to %d", len(p))
	}
}

func TestTempName(t *testing.T) {
	ts := time.Date(2024, 3, 5, 14, 7, 9, 0, time.Local)
	name := TempName(ts)
	if !regexp.MustCompile(`^rec_20240305_140709_[0-9a-f]{8}\.wav$`).MatchString(name) {
		t.Errorf("TempName = %q", name)
	}
	if TempName(ts) == name {
		t.Error("names should be unique")
	}
}

func TestSilentSegmentDiscarded(t *testing.T) {
	engine := transcriber.NewFake("never", nil)
	h := newHarness(t, engine, Options{})

	h.d.Submit(Task{Segment: make([]byte, 64000), Action: action.Paste, Final: true})
	h.d.Submit(Task{Segment: nil, Action: action.Paste, Final: true})
	h.wait(t, 2)

	if engine.Calls() != 0 {
		t.Errorf("engine called %d times for silent input", engine.Calls())
	}
	if len(h.out.texts()) != 0 || len(h.status.get()) != 0 {
		t.Error("silent segments must not deliver or touch status")
	}
	if got, want := h.d.Stats(), (Stats{Submitted: 2, Finals: 2, Processed: 2}); got != want {
		t.Errorf("Stats = %+v, want %+v", got, want)
	}
}

func TestFIFOAndTrailingSpace(t *testing.T) {
	var mu sync.Mutex
	var sizes []int
	n := 0
	engine := transcriber.Func(func(_ context.Context, path string) (string, error) {
		fi, err := os.Stat(path)
		if err != nil {
			return "", err
		}
		mu.Lock()
		sizes = append(sizes, int(fi.Size()))
		n++
		i := n
		mu.Unlock()
		return []string{"", "first\n", "second"}[i], nil
	})
	h := newHarness(t, engine, Options{})

	h.d.Submit(Task{Segment: loud(8000), Action: action.Type, Final: false})
	h.d.Submit(Task{Segment: loud(96000), Action: action.Type, Final: true})
	h.wait(t, 2)

	if got := h.out.texts(); !slices.Equal(got, []string{"first ", "second"}) {
		t.Errorf("delivered %q", got)
	}
	if !slices.Equal(sizes, []int{44 + MinSegmentBytes, 44 + 96000}) {
		t.Errorf("wav sizes = %v", sizes)
	}
	if got := h.status.get(); !slices.Equal(got, []bool{true, false, true, false}) {
		t.Errorf("transcribing changes = %v", got)
	}
}

func TestEngineErrorDoesNotStopWorker(t *testing.T) {
	calls := 0
	engine := transcriber.Func(func(context.Context, string) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("engine crashed")
		}
		return "recovered", nil
	})
	h := newHarness(t, engine, Options{})

	h.d.Submit(Task{Segment: loud(8000), Action: action.Paste, Final: true})
	h.d.Submit(Task{Segment: loud(8000), Action: action.Paste, Final: true})
	h.wait(t, 2)

	if h.reports.count() != 1 {
		t.Errorf("reported %d errors, want 1", h.reports.count())
	}
	if got := h.out.texts(); !slices.Equal(got, []string{"recovered"}) {
		t.Errorf("delivered %q", got)
	}
	if got := h.status.get(); !slices.Equal(got, []bool{true, false, true, false}) {
		t.Errorf("transcribing changes = %v", got)
	}
}

func TestTempFileRemoved(t *testing.T) {
	dir := t.TempDir()
	engine := transcriber.NewFake("x", nil)
	h := newHarness(t, engine, Options{TempDir: dir})
	h.d.Submit(Task{Segment: loud(8000), Final: true})
	h.wait(t, 1)

	if engine.Calls() != 1 {
		t.Fatalf("engine calls = %d", engine.Calls())
	}
	if filepath.Dir(engine.Paths()[0]) != dir {
		t.Errorf("temp file written to %s", engine.Paths()[0])
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("temp dir not cleaned: %v", entries)
	}
}

func TestArchive(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "archive")
	h := newHarness(t, transcriber.NewFake("x", nil), Options{ArchiveDir: archive})
	h.d.Submit(Task{Segment: loud(8000), Final: true})
	h.wait(t, 1)

	matches, _ := filepath.Glob(filepath.Join(archive, "rec_*.flac"))
	if len(matches) != 1 {
		t.Errorf("archive contains %v", matches)
	}
}

func TestBlankTextNotDelivered(t *testing.T) {
	h := newHarness(t, transcriber.NewFake(" \n", nil), Options{})
	h.d.Submit(Task{Segment: loud(8000), Final: false})
	h.wait(t, 1)
	if got := h.out.texts(); len(got) != 0 {
		t.Errorf("delivered %q", got)
	}
}

func TestTimeout(t *testing.T) {
	engine := transcriber.NewFake("late", nil)
	engine.Delay = 5 * time.Second
	h := newHarness(t, engine, Options{Timeout: 50 * time.Millisecond})
	h.d.Submit(Task{Segment: loud(8000), Final: true})
	h.wait(t, 1)

	if h.reports.count() != 1 {
		t.Errorf("expected a timeout report, got %d", h.reports.count())
	}
}
