// Package tray shows the recording state in the system tray and exposes the
// runtime preferences as menu items.
package tray

import (
	"fmt"
	"strings"
	"sync"

	"fyne.io/systray"

	"misterwhisper/action"
	"misterwhisper/audio"
	"misterwhisper/hotkey"
	"misterwhisper/status"
	"misterwhisper/transcriber"
)

const (
	historySlots    = 10
	historyLabelMax = 40
)

// Callbacks are invoked from menu clicks. Nil callbacks are skipped.
type Callbacks struct {
	SetAction     func(action.Mode)
	SetSilence    func(bool)
	SetHotkey     func(hotkey.Key)
	SelectModel   func(string)
	SelectDevice  func(string)
	CopyHistory   func(text string)
	ClearHistory  func()
	StopRecording func()
	Exit          func()
}

// State is the menu content at startup.
type State struct {
	Action  action.Mode
	Silence bool
	Key     hotkey.Key
	// Models is empty when the engine has no selectable model.
	Models  []string
	Model   string
	Devices []string
	Device  string
}

type Tray struct {
	cb Callbacks

	mu      sync.Mutex
	state   State
	status  status.Status
	history []string
	ready   bool
	quit    chan struct{}
	end     func()

	mPaste, mType, mSilence *systray.MenuItem
	mStop                   *systray.MenuItem
	mHistory, mClear        *systray.MenuItem
	mDevices                *systray.MenuItem
	keyItems                []*systray.MenuItem
	modelItems              []*systray.MenuItem
	deviceItems             []*systray.MenuItem
	historyItems            []*systray.MenuItem
}

func New(state State, cb Callbacks) *Tray {
	return &Tray{cb: cb, state: state, quit: make(chan struct{})}
}

// Start registers the tray icon. It must be called from the thread that runs
// the platform event loop.
func (t *Tray) Start() {
	start, end := systray.RunWithExternalLoop(t.onReady, func() {})
	t.mu.Lock()
	t.end = end
	t.mu.Unlock()
	start()
}

// Close removes the icon and stops the click handlers.
func (t *Tray) Close() {
	t.mu.Lock()
	end := t.end
	t.end = nil
	t.mu.Unlock()
	if end == nil {
		return
	}
	close(t.quit)
	end()
}

func Tooltip(key hotkey.Key) string {
	return fmt.Sprintf("Press %s to record", key)
}

// nextMode toggles the clicked mode: clicking the active mode turns delivery
// off, clicking the other one switches to it.
func nextMode(current, clicked action.Mode) action.Mode {
	if current == clicked {
		return action.None
	}
	return clicked
}

func historyLabel(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	r := []rune(text)
	if len(r) <= historyLabelMax {
		return text
	}
	return string(r[:historyLabelMax-1]) + "…"
}

func deviceLabel(name string) string {
	if audio.IsBluetooth(name) {
		return name + " [lower audio quality]"
	}
	return name
}

func (t *Tray) onReady() {
	t.mu.Lock()
	defer t.mu.Unlock()

	systray.SetIcon(iconFor(t.status))
	systray.SetTooltip(Tooltip(t.state.Key))

	t.mPaste = systray.AddMenuItemCheckbox("Auto paste", "Paste transcriptions into the focused window", t.state.Action == action.Paste)
	t.mType = systray.AddMenuItemCheckbox("Auto type", "Type transcriptions into the focused window", t.state.Action == action.Type)
	t.onClick(t.mPaste, func() { t.clickMode(action.Paste) })
	t.onClick(t.mType, func() { t.clickMode(action.Type) })

	t.mSilence = systray.AddMenuItemCheckbox("Silence detection", "Transcribe at each pause while recording", t.state.Silence)
	t.onClick(t.mSilence, t.clickSilence)

	mKeys := systray.AddMenuItem("Keyboard shortcut", "Recording hotkey")
	for _, k := range hotkey.Keys() {
		item := mKeys.AddSubMenuItemCheckbox(k.String(), "", k == t.state.Key)
		t.onClick(item, func() { t.clickKey(k) })
		t.keyItems = append(t.keyItems, item)
	}

	if len(t.state.Models) > 0 {
		mModels := systray.AddMenuItem("Models", "Whisper model")
		for _, m := range t.state.Models {
			item := mModels.AddSubMenuItemCheckbox(transcriber.ModelLabel(m), m, m == t.state.Model)
			t.onClick(item, func() { t.clickModel(m) })
			t.modelItems = append(t.modelItems, item)
		}
	}

	t.mDevices = systray.AddMenuItem("Audio inputs", "Microphone")
	t.refreshDevicesLocked()

	t.mHistory = systray.AddMenuItem("History", "Click an entry to copy it")
	for i := range historySlots {
		item := t.mHistory.AddSubMenuItem("", "")
		item.Hide()
		t.onClick(item, func() { t.clickHistory(i) })
		t.historyItems = append(t.historyItems, item)
	}
	t.mClear = t.mHistory.AddSubMenuItem("Clear", "Forget all transcriptions")
	t.onClick(t.mClear, func() { call(t.cb.ClearHistory) })
	t.refreshHistoryLocked()

	systray.AddSeparator()
	t.mStop = systray.AddMenuItem("Stop recording", "Stop the current recording")
	t.onClick(t.mStop, func() { call(t.cb.StopRecording) })
	mExit := systray.AddMenuItem("Exit", "Quit misterwhisper")
	t.onClick(mExit, func() { call(t.cb.Exit) })

	t.ready = true
	t.applyStatusLocked()
}

func call(fn func()) {
	if fn != nil {
		fn()
	}
}

func (t *Tray) onClick(item *systray.MenuItem, fn func()) {
	go func() {
		for {
			select {
			case <-item.ClickedCh:
				fn()
			case <-t.quit:
				return
			}
		}
	}()
}

func (t *Tray) clickMode(clicked action.Mode) {
	t.mu.Lock()
	mode := nextMode(t.state.Action, clicked)
	t.state.Action = mode
	setChecked(t.mPaste, mode == action.Paste)
	setChecked(t.mType, mode == action.Type)
	t.mu.Unlock()
	if t.cb.SetAction != nil {
		t.cb.SetAction(mode)
	}
}

func (t *Tray) clickSilence() {
	t.mu.Lock()
	on := !t.state.Silence
	t.state.Silence = on
	setChecked(t.mSilence, on)
	t.mu.Unlock()
	if t.cb.SetSilence != nil {
		t.cb.SetSilence(on)
	}
}

func (t *Tray) clickKey(k hotkey.Key) {
	if t.cb.SetHotkey != nil {
		t.cb.SetHotkey(k)
	}
}

// SetKey reflects the bound hotkey in the menu and tooltip.
func (t *Tray) SetKey(k hotkey.Key) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.Key = k
	if !t.ready {
		return
	}
	for i, item := range t.keyItems {
		setChecked(item, hotkey.Keys()[i] == k)
	}
	systray.SetTooltip(Tooltip(k))
}

func (t *Tray) clickModel(name string) {
	t.mu.Lock()
	t.state.Model = name
	for i, item := range t.modelItems {
		setChecked(item, t.state.Models[i] == name)
	}
	t.mu.Unlock()
	if t.cb.SelectModel != nil {
		t.cb.SelectModel(name)
	}
}

func (t *Tray) clickDevice(i int) {
	t.mu.Lock()
	if i >= len(t.state.Devices) {
		t.mu.Unlock()
		return
	}
	name := t.state.Devices[i]
	t.state.Device = name
	t.refreshDevicesLocked()
	t.mu.Unlock()
	if t.cb.SelectDevice != nil {
		t.cb.SelectDevice(name)
	}
}

// SetDevices replaces the audio input list.
func (t *Tray) SetDevices(names []string, selected string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.Devices = names
	t.state.Device = selected
	if t.ready {
		t.refreshDevicesLocked()
	}
}

func (t *Tray) refreshDevicesLocked() {
	names := t.state.Devices
	for i := len(t.deviceItems); i < len(names); i++ {
		item := t.mDevices.AddSubMenuItemCheckbox("", "", false)
		t.onClick(item, func() { t.clickDevice(i) })
		t.deviceItems = append(t.deviceItems, item)
	}
	for i, item := range t.deviceItems {
		if i >= len(names) {
			item.Hide()
			item.Uncheck()
			continue
		}
		item.SetTitle(deviceLabel(names[i]))
		item.SetTooltip(names[i])
		setChecked(item, names[i] == t.state.Device)
		item.Show()
	}
}

func (t *Tray) clickHistory(i int) {
	t.mu.Lock()
	if i >= len(t.history) {
		t.mu.Unlock()
		return
	}
	text := t.history[i]
	t.mu.Unlock()
	if t.cb.CopyHistory != nil {
		t.cb.CopyHistory(text)
	}
}

// SetHistory shows the most recent entries, newest first.
func (t *Tray) SetHistory(recent []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(recent) > historySlots {
		recent = recent[:historySlots]
	}
	t.history = append([]string(nil), recent...)
	if t.ready {
		t.refreshHistoryLocked()
	}
}

func (t *Tray) refreshHistoryLocked() {
	for i, item := range t.historyItems {
		if i < len(t.history) {
			item.SetTitle(historyLabel(t.history[i]))
			item.SetTooltip(t.history[i])
			item.Show()
		} else {
			item.Hide()
		}
	}
	if len(t.history) == 0 {
		t.mClear.Disable()
	} else {
		t.mClear.Enable()
	}
}

// SetStatus updates the icon and the stop item. Safe to use as a status
// observer.
func (t *Tray) SetStatus(s status.Status) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = s
	if t.ready {
		t.applyStatusLocked()
	}
}

func (t *Tray) applyStatusLocked() {
	systray.SetIcon(iconFor(t.status))
	if t.status.Recording {
		t.mStop.Enable()
		t.mDevices.Disable()
	} else {
		t.mStop.Disable()
		t.mDevices.Enable()
	}
}

func setChecked(item *systray.MenuItem, on bool) {
	if on {
		item.Check()
	} else {
		item.Uncheck()
	}
}
