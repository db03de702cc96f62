package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"misterwhisper/action"
	"misterwhisper/audio"
	"misterwhisper/clipboard"
	"misterwhisper/config"
	"misterwhisper/hotkey"
	"misterwhisper/log"
	"misterwhisper/notify"
	"misterwhisper/transcriber"
)

const settleTimeout = 30 * time.Second

// runTestMode drives the full pipeline headlessly: audio comes from a WAV
// file, the hotkey from stdin commands, and output goes to an in-memory
// clipboard unless a real one was asked for with --action.
func runTestMode(cmd *cobra.Command, o *options) error {
	if o.configPath == "" {
		o.configPath = filepath.Join(log.Dir(), "config.toml")
	}
	store, err := openStore(cmd, o)
	if err != nil {
		return err
	}
	if err := store.Override(func(c *config.Config) { c.Beep = false }); err != nil {
		return err
	}

	var engine transcriber.Transcriber
	if o.fakeEngine != "" {
		engine = transcriber.NewFake(o.fakeEngine, nil)
	} else if engine, err = buildEngine(store); err != nil {
		return explain(err, store)
	}
	log.SessionStart(engine.Name(), engineDetail(engine))

	actx, err := audio.NewFakeContextFromWAV(o.testWAV, false)
	if err != nil {
		return fmt.Errorf("loading WAV: %w", err)
	}

	mem := clipboard.NewMemory("")
	var clip action.Clipboard = mem
	var kb action.Keyboard = mem
	if cmd.Flags().Changed("action") && store.Get().Mode() != action.None {
		if _, err := clipboard.Verify(); err != nil {
			log.Warnf("keystroke init: %v", err)
		}
		clip, kb = clipboard.System{}, clipboard.System{}
	}

	report := notify.New()
	report.Send = nil
	hk := hotkey.NewFake()
	a := newApp(appDeps{
		Store:     store,
		Audio:     actx,
		Engine:    engine,
		Clipboard: clip,
		Keyboard:  kb,
		Report:    report,
		NewHotkey: func(hotkey.Key) hotkey.Hotkey { return hk },
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := a.start(ctx); err != nil {
		return err
	}
	defer a.stop()

	return driveTest(ctx, cmd.InOrStdin(), a, hk, actx)
}

// driveTest executes one stdin command per line:
//
//	KEYDOWN / KEYUP    simulate the hotkey
//	WAIT               block until the latest recording is delivered
//	WAIT_AUDIO_DONE    block until the capture has fed the whole file
//	SLEEP <ms>
//	QUIT
func driveTest(ctx context.Context, in io.Reader, a *app, hk *hotkey.FakeHotkey, actx *audio.FakeContext) error {
	var finals int64
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
		case line == "KEYDOWN":
			hk.SimKeydown()
			drain(hk.Keydown())
		case line == "KEYUP":
			hk.SimKeyup()
			drain(hk.Keyup())
		case line == "WAIT":
			finals++
			wctx, cancel := context.WithTimeout(ctx, settleTimeout)
			err := a.settle(wctx, finals)
			cancel()
			if err != nil {
				return fmt.Errorf("WAIT: recording %d not delivered: %w", finals, err)
			}
		case line == "WAIT_AUDIO_DONE":
			if err := waitAudioDone(ctx, actx); err != nil {
				return err
			}
		case strings.HasPrefix(line, "SLEEP "):
			ms, err := strconv.Atoi(strings.TrimSpace(line[len("SLEEP "):]))
			if err != nil {
				return fmt.Errorf("bad command %q", line)
			}
			time.Sleep(time.Duration(ms) * time.Millisecond)
		case line == "QUIT":
			return nil
		default:
			return fmt.Errorf("unknown command %q", line)
		}
	}
	return sc.Err()
}

func waitAudioDone(ctx context.Context, actx *audio.FakeContext) error {
	ctx, cancel := context.WithTimeout(ctx, settleTimeout)
	defer cancel()
	for {
		if caps := actx.Captures(); len(caps) > 0 {
			select {
			case <-caps[len(caps)-1].AudioDone():
				return nil
			case <-ctx.Done():
				return fmt.Errorf("WAIT_AUDIO_DONE: %w", ctx.Err())
			}
		}
		select {
		case <-time.After(10 * time.Millisecond):
		case <-ctx.Done():
			return fmt.Errorf("WAIT_AUDIO_DONE: no capture started: %w", ctx.Err())
		}
	}
}

// drain waits until the monitor has taken the simulated event, so that a
// release is never seen before its press.
func drain(ch <-chan struct{}) {
	for len(ch) > 0 {
		time.Sleep(time.Millisecond)
	}
}
