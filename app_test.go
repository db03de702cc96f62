package main

import (
	"context"
	"encoding/binary"
	"errors"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"misterwhisper/action"
	"misterwhisper/audio"
	"misterwhisper/clipboard"
	"misterwhisper/config"
	"misterwhisper/hotkey"
	"misterwhisper/notify"
	"misterwhisper/transcriber"
)

func loudPCM(n int) []byte {
	buf := make([]byte, n)
	for i := 0; i+1 < n; i += 2 {
		binary.LittleEndian.PutUint16(buf[i:], uint16(int16(3000)))
	}
	return buf
}

type testApp struct {
	*app
	mem    *clipboard.Memory
	path   string
	keysMu sync.Mutex
	keys   map[hotkey.Key]*hotkey.FakeHotkey
	broke  map[hotkey.Key]bool
}

func newTestApp(t *testing.T, engine transcriber.Transcriber, pcm []byte) *testApp {
	t.Helper()
	return newTestAppWith(t, engine, audio.NewFakeContext(pcm))
}

func newTestAppWith(t *testing.T, engine transcriber.Transcriber, actx audio.Context) *testApp {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	store, err := config.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	ta := &testApp{
		mem:   clipboard.NewMemory("before"),
		path:  path,
		keys:  map[hotkey.Key]*hotkey.FakeHotkey{},
		broke: map[hotkey.Key]bool{},
	}
	report := notify.New()
	report.Send = nil
	ta.app = newApp(appDeps{
		Store:     store,
		Audio:     actx,
		Engine:    engine,
		Clipboard: ta.mem,
		Keyboard:  ta.mem,
		Report:    report,
		NewHotkey: ta.newHotkey,
	})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		ta.stop()
	})
	if err := ta.start(ctx); err != nil {
		t.Fatal(err)
	}
	return ta
}

func (ta *testApp) newHotkey(k hotkey.Key) hotkey.Hotkey {
	ta.keysMu.Lock()
	defer ta.keysMu.Unlock()
	hk := hotkey.NewFake()
	if ta.broke[k] {
		hk.RegisterErr = errors.New("grabbed by another application")
		return hk
	}
	ta.keys[k] = hk
	return hk
}

func (ta *testApp) key(k hotkey.Key) *hotkey.FakeHotkey {
	ta.keysMu.Lock()
	defer ta.keysMu.Unlock()
	return ta.keys[k]
}

func (ta *testApp) tap(t *testing.T) {
	t.Helper()
	hk := ta.key(ta.currentKey())
	hk.SimKeydown()
	drain(hk.Keydown())
	hk.SimKeyup()
	drain(hk.Keyup())
}

func (ta *testApp) settled(t *testing.T, finals int64) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ta.settle(ctx, finals); err != nil {
		t.Fatalf("recording %d not delivered: %v", finals, err)
	}
}

func TestTapRecordsAndPastes(t *testing.T) {
	engine := transcriber.NewFake(" hello world\n", nil)
	ta := newTestApp(t, engine, loudPCM(64000))

	ta.tap(t)
	ta.settled(t, 1)

	if got := ta.mem.Pasted(); !slices.Equal(got, []string{"hello world"}) {
		t.Errorf("pasted %q", got)
	}
	if got := ta.history.Entries(); !slices.Equal(got, []string{"hello world"}) {
		t.Errorf("history = %q", got)
	}
	if engine.Calls() != 1 {
		t.Errorf("engine calls = %d, want 1", engine.Calls())
	}
	if ta.status.Snapshot().Recording {
		t.Error("still recording after the source ended")
	}
}

func TestStopDeliversRecordingStillWindingDown(t *testing.T) {
	engine := transcriber.NewFake("last words", nil)
	mic := audio.NewFakeContext(loudPCM(3 * audio.BytesPerSecond))
	mic.Realtime = true
	ta := newTestAppWith(t, engine, mic)

	if !ta.recorder.Start() {
		t.Fatal("Start failed")
	}
	time.Sleep(600 * time.Millisecond)
	ta.recorder.Stop()
	ta.stop()

	if got := ta.mem.Pasted(); !slices.Equal(got, []string{"last words"}) {
		t.Errorf("pasted %q, want the final delivered before shutdown", got)
	}
}

func TestSilentRecordingNotTranscribed(t *testing.T) {
	engine := transcriber.NewFake("ghost", nil)
	ta := newTestApp(t, engine, make([]byte, 64000))

	ta.tap(t)
	ta.settled(t, 1)

	if engine.Calls() != 0 {
		t.Errorf("engine called %d times for silence", engine.Calls())
	}
	if len(ta.mem.Pasted()) != 0 {
		t.Errorf("pasted %q", ta.mem.Pasted())
	}
}

func TestTwoRecordingsDeliverInOrder(t *testing.T) {
	n := 0
	var mu sync.Mutex
	engine := transcriber.Func(func(context.Context, string) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		n++
		return []string{"", "one", "two"}[n], nil
	})
	ta := newTestApp(t, engine, loudPCM(64000))
	ta.setAction(action.Type)

	ta.tap(t)
	ta.settled(t, 1)
	ta.tap(t)
	ta.settled(t, 2)

	if got := ta.mem.Typed(); !slices.Equal(got, []string{"one", "two"}) {
		t.Errorf("typed %q", got)
	}
}

func TestSetHotkeyRebinds(t *testing.T) {
	ta := newTestApp(t, transcriber.NewFake("x", nil), nil)
	old := ta.key(hotkey.F9)

	if err := ta.setHotkey(hotkey.F10); err != nil {
		t.Fatal(err)
	}
	if old.Registered || !ta.key(hotkey.F10).Registered {
		t.Errorf("registered: F9=%v F10=%v", old.Registered, ta.key(hotkey.F10).Registered)
	}
	if ta.currentKey() != hotkey.F10 {
		t.Errorf("current key = %s", ta.currentKey())
	}
	reloaded, err := config.Load(ta.path)
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.Hotkey != "F10" {
		t.Errorf("saved hotkey = %q, want F10", reloaded.Hotkey)
	}
}

func TestSetHotkeyFailureRestoresPrevious(t *testing.T) {
	ta := newTestApp(t, transcriber.NewFake("x", nil), nil)
	ta.keysMu.Lock()
	ta.broke[hotkey.F11] = true
	ta.keysMu.Unlock()
	var reported []error
	ta.Report.OnError(func(err error) { reported = append(reported, err) })

	if err := ta.setHotkey(hotkey.F11); err == nil {
		t.Fatal("expected error")
	}
	if ta.currentKey() != hotkey.F9 {
		t.Errorf("current key = %s, want F9", ta.currentKey())
	}
	if !ta.key(hotkey.F9).Registered {
		t.Error("F9 not bound again")
	}
	if len(reported) != 1 {
		t.Errorf("reported %d errors, want 1", len(reported))
	}
	if got := ta.Store.Get().Hotkey; got != "F9" {
		t.Errorf("config hotkey = %q", got)
	}
}

func TestSettingsPersist(t *testing.T) {
	ta := newTestApp(t, transcriber.NewFake("x", nil), nil)

	ta.setAction(action.Type)
	ta.setSilence(true)
	ta.selectDevice("USB Mic")

	cfg, err := config.Load(ta.path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Action != "type" || !cfg.Silence || cfg.Device != "USB Mic" {
		t.Errorf("saved %+v", cfg)
	}
	if s := ta.recordSettings(); s.Action != action.Type || !s.Silence || s.Device != "USB Mic" {
		t.Errorf("record settings %+v", s)
	}
}

func TestSelectModelNeedsLocalEngine(t *testing.T) {
	ta := newTestApp(t, transcriber.NewFake("x", nil), nil)
	if err := ta.selectModel("ggml-base.bin"); !errors.Is(err, errNoModelChoice) {
		t.Errorf("selectModel = %v, want errNoModelChoice", err)
	}
}

func TestCopyHistory(t *testing.T) {
	ta := newTestApp(t, transcriber.NewFake("x", nil), nil)
	ta.copyHistory("earlier text")
	if got := ta.mem.Text(); got != "earlier text" {
		t.Errorf("clipboard = %q", got)
	}
}

func TestRefreshDevices(t *testing.T) {
	ta := newTestApp(t, transcriber.NewFake("x", nil), nil)
	names, changed := ta.refreshDevices()
	if !changed || !slices.Equal(names, []string{"fake"}) {
		t.Fatalf("first refresh = %v, %v", names, changed)
	}
	if _, changed := ta.refreshDevices(); changed {
		t.Error("second refresh reported a change")
	}
}
