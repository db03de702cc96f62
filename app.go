package main

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"misterwhisper/action"
	"misterwhisper/audio"
	"misterwhisper/beep"
	"misterwhisper/config"
	"misterwhisper/dispatch"
	"misterwhisper/history"
	"misterwhisper/hotkey"
	"misterwhisper/log"
	"misterwhisper/notify"
	"misterwhisper/recorder"
	"misterwhisper/status"
	"misterwhisper/transcriber"
	"misterwhisper/tray"
)

const (
	recentHistory = 10
	devicePoll    = 3 * time.Second
	flushTimeout  = 5 * time.Second
)

var errNoModelChoice = errors.New("model selection needs the local engine")

type appDeps struct {
	Store     *config.Store
	Audio     audio.Context
	Engine    transcriber.Transcriber
	Clipboard action.Clipboard
	Keyboard  action.Keyboard
	Report    *notify.Reporter
	NewHotkey func(hotkey.Key) hotkey.Hotkey
}

// app owns the long-lived workers: the capture worker, the transcription
// dispatcher and the delivery executor, plus the hotkey monitor that drives
// them.
type app struct {
	appDeps

	status   *status.Holder
	history  *history.History
	exec     *action.Executor
	dispatch *dispatch.Dispatcher
	recorder *recorder.Recorder
	monitor  *hotkey.Monitor
	tray     *tray.Tray

	mu      sync.Mutex
	key     hotkey.Key
	devices []string

	cancelWorkers context.CancelFunc
	stopOnce      sync.Once
}

func newApp(d appDeps) *app {
	if d.NewHotkey == nil {
		d.NewHotkey = hotkey.New
	}
	cfg := d.Store.Get()
	a := &app{
		appDeps: d,
		status:  status.New(),
		history: history.New(log.TranscriptionText),
		monitor: hotkey.NewMonitor(hotkey.HoldThreshold),
	}
	a.exec = action.NewExecutor(d.Clipboard, d.Keyboard, a.history, action.DefaultOptions())
	a.dispatch = dispatch.New(d.Engine, a.exec, a.status, d.Report, dispatch.Options{
		TempDir:    cfg.TempDir,
		ArchiveDir: cfg.ArchiveDir,
		Timeout:    cfg.EngineTimeout.Duration,
	})
	a.recorder = recorder.New(d.Audio, a.status, a.dispatch, d.Report, a.recordSettings)

	beep.SetEnabled(cfg.Beep)
	a.status.Subscribe(beep.NewCues().Observe)
	d.Report.OnError(func(error) { beep.PlayError() })
	return a
}

func (a *app) recordSettings() recorder.Settings {
	cfg := a.Store.Get()
	return recorder.Settings{
		Device:         cfg.Device,
		PreviousDevice: cfg.PreviousDevice,
		Silence:        cfg.Silence,
		Detector:       cfg.SilenceDetector,
		Action:         cfg.Mode(),
	}
}

// start launches the workers and registers the configured hotkey. The
// workers outlive ctx until stop so that queued text is still delivered.
func (a *app) start(ctx context.Context) error {
	wctx, cancel := context.WithCancel(context.Background())
	a.cancelWorkers = cancel
	a.exec.Start(wctx)
	a.dispatch.Start(wctx)
	go a.recorder.Run(wctx)
	go a.handleIntents(ctx)

	key := a.Store.Get().Key()
	if err := a.monitor.Bind(a.NewHotkey(key)); err != nil {
		return fmt.Errorf("registering hotkey %s: %w", key, err)
	}
	a.mu.Lock()
	a.key = key
	a.mu.Unlock()
	log.Infof("hotkey %s bound", key)
	return nil
}

// stop releases the hotkey, ends any recording and waits briefly for the
// queued segments to be transcribed and delivered. Only the first call does
// anything.
func (a *app) stop() {
	a.stopOnce.Do(func() {
		a.monitor.Close()
		a.recorder.Stop()
		// A stopped session may not have handed over its final task yet.
		want := a.dispatch.Stats().Finals
		if a.recorder.Busy() {
			want++
		}
		ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		defer cancel()
		if err := a.settle(ctx, want); err != nil {
			log.Warnf("shutdown: undelivered transcriptions dropped: %v", err)
		}
		if a.cancelWorkers != nil {
			a.cancelWorkers()
		}
	})
}

// settle waits until at least finals recordings have been handed to the
// dispatcher and everything queued so far has been transcribed and
// delivered.
func (a *app) settle(ctx context.Context, finals int64) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		st := a.dispatch.Stats()
		if st.Finals >= finals && st.Processed == st.Submitted {
			break
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	a.exec.Flush(ctx)
	return ctx.Err()
}

func (a *app) handleIntents(ctx context.Context) {
	for {
		select {
		case i := <-a.monitor.Intents():
			switch i {
			case hotkey.Toggle:
				a.recorder.Toggle()
			case hotkey.Stop:
				a.recorder.Stop()
			}
		case <-ctx.Done():
			return
		}
	}
}

func (a *app) currentKey() hotkey.Key {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.key
}

func (a *app) setAction(m action.Mode) {
	if err := a.Store.Update(func(c *config.Config) { c.Action = m.String() }); err != nil {
		a.Report.ReportError(fmt.Errorf("saving action: %w", err))
		return
	}
	log.Infof("action set to %s", m)
}

func (a *app) setSilence(on bool) {
	if err := a.Store.Update(func(c *config.Config) { c.Silence = on }); err != nil {
		a.Report.ReportError(fmt.Errorf("saving silence detection: %w", err))
		return
	}
	log.Infof("silence detection %t", on)
}

// setHotkey rebinds the OS hook. When the new key cannot be registered the
// previous key is bound again.
func (a *app) setHotkey(k hotkey.Key) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if k == a.key {
		return nil
	}
	if err := a.monitor.Bind(a.NewHotkey(k)); err != nil {
		if rerr := a.monitor.Bind(a.NewHotkey(a.key)); rerr != nil {
			log.Errorf("restoring hotkey %s: %v", a.key, rerr)
		}
		err = fmt.Errorf("registering hotkey %s: %w", k, err)
		a.Report.ReportError(err)
		return err
	}
	a.key = k
	if err := a.Store.Update(func(c *config.Config) { c.Hotkey = k.String() }); err != nil {
		a.Report.ReportError(fmt.Errorf("saving hotkey: %w", err))
	}
	if a.tray != nil {
		a.tray.SetKey(k)
	}
	log.Infof("hotkey %s bound", k)
	return nil
}

// selectModel swaps the model file under the running local engine.
func (a *app) selectModel(name string) error {
	local, ok := a.Engine.(*transcriber.Local)
	if !ok {
		return errNoModelChoice
	}
	dir := a.Store.Get().ModelsDir
	if err := local.SetModel(transcriber.ModelPath(dir, name)); err != nil {
		a.Report.ReportError(err)
		return err
	}
	if err := a.Store.Update(func(c *config.Config) { c.Model = name }); err != nil {
		a.Report.ReportError(fmt.Errorf("saving model: %w", err))
	}
	log.Infof("model set to %s", name)
	return nil
}

func (a *app) selectDevice(name string) {
	if err := a.Store.SelectDevice(name); err != nil {
		a.Report.ReportError(fmt.Errorf("saving device: %w", err))
		return
	}
	log.Infof("input device set to %s", name)
	if a.tray != nil {
		a.mu.Lock()
		names := a.devices
		a.mu.Unlock()
		a.tray.SetDevices(names, name)
	}
}

func (a *app) copyHistory(text string) {
	if err := a.Clipboard.Write(text); err != nil {
		a.Report.ReportError(fmt.Errorf("copying to clipboard: %w", err))
	}
}

// refreshDevices re-reads the input list and reports whether it changed.
func (a *app) refreshDevices() ([]string, bool) {
	devices, err := a.Audio.Devices()
	if err != nil {
		log.Warnf("listing audio inputs: %v", err)
		return nil, false
	}
	names := audio.DeviceNames(devices)
	a.mu.Lock()
	defer a.mu.Unlock()
	if slices.Equal(a.devices, names) {
		return names, false
	}
	a.devices = names
	return names, true
}

// watchDevices keeps the tray's input list current as devices come and go.
func (a *app) watchDevices(ctx context.Context) {
	ticker := time.NewTicker(devicePoll)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if names, changed := a.refreshDevices(); changed {
				log.Infof("audio inputs changed: %d available", len(names))
				if a.tray != nil {
					a.tray.SetDevices(names, a.Store.Get().Device)
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

// newTray builds the tray menu and hooks it to status and history changes.
// quit is called when Exit is clicked.
func (a *app) newTray(quit func()) *tray.Tray {
	cfg := a.Store.Get()
	names, _ := a.refreshDevices()
	state := tray.State{
		Action:  cfg.Mode(),
		Silence: cfg.Silence,
		Key:     a.currentKey(),
		Devices: names,
		Device:  cfg.Device,
	}
	if _, ok := a.Engine.(*transcriber.Local); ok {
		if models, err := transcriber.ListModels(cfg.ModelsDir); err == nil {
			state.Models = models
			state.Model = cfg.Model
		}
	}

	a.tray = tray.New(state, tray.Callbacks{
		SetAction:     a.setAction,
		SetSilence:    a.setSilence,
		SetHotkey:     func(k hotkey.Key) { a.setHotkey(k) },
		SelectModel:   func(name string) { a.selectModel(name) },
		SelectDevice:  a.selectDevice,
		CopyHistory:   a.copyHistory,
		ClearHistory:  a.history.Clear,
		StopRecording: func() { a.recorder.Stop() },
		Exit:          quit,
	})
	a.status.Subscribe(a.tray.SetStatus)
	a.history.Subscribe(func(history.Event) {
		a.tray.SetHistory(a.history.Recent(recentHistory))
	})
	return a.tray
}
