package doctor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"misterwhisper/action"
	"misterwhisper/audio"
	"misterwhisper/encoder"
	"misterwhisper/hotkey"
	"misterwhisper/silence"
	"misterwhisper/transcriber"
)

// Options selects what the checks run against. Zero values pick the real
// system: the configured hotkey, the platform audio context, the system
// clipboard and stdin/stdout.
type Options struct {
	Key            hotkey.Key
	NewHotkey      func(hotkey.Key) hotkey.Hotkey
	// DiagnoseHotkey, when set, describes the platform hotkey source.
	DiagnoseHotkey func() (string, error)
	Audio          audio.Context
	Device         string
	PreviousDevice string
	Engine         transcriber.Transcriber
	Clipboard      action.Clipboard
	// VerifyKeyboard checks that synthetic key events can be sent.
	VerifyKeyboard func() (string, error)
	Record         time.Duration
	KeyTimeout     time.Duration

	In  io.Reader
	Out io.Writer
}

type doctor struct {
	Options
	in  *bufio.Reader
	pcm []byte
}

const checks = 4

// Run executes the interactive checks in order, stopping at the first
// failure, and returns the process exit code.
func Run(opts Options) int {
	if opts.In == nil {
		opts.In = os.Stdin
		resetTerminal()
		setupInterruptHandler()
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Key == 0 {
		opts.Key = hotkey.DefaultKey
	}
	if opts.NewHotkey == nil {
		opts.NewHotkey = hotkey.New
	}
	if opts.Record == 0 {
		opts.Record = 3 * time.Second
	}
	if opts.KeyTimeout == 0 {
		opts.KeyTimeout = 10 * time.Second
	}
	d := &doctor{Options: opts, in: bufio.NewReader(opts.In)}

	d.printf("misterwhisper doctor - interactive system diagnostics\n")
	d.printf("=====================================================\n")

	ok := d.checkHotkey() && d.checkMicrophone() && d.checkEngine() && d.checkClipboard()

	d.printf("\n")
	if !ok {
		d.printf("Some checks failed. See details above.\n")
		return 1
	}
	d.printf("All checks passed!\n")
	return 0
}

func (d *doctor) printf(format string, args ...any) {
	fmt.Fprintf(d.Out, format, args...)
}

func (d *doctor) step(n int, title string) {
	d.printf("\n[%d/%d] %s\n", n, checks, title)
}

func (d *doctor) confirm(question string) bool {
	d.printf("%s [y/n]: ", question)
	answer, _ := d.in.ReadString('\n')
	answer = strings.TrimSpace(strings.ToLower(answer))
	return answer == "y" || answer == "yes"
}

func (d *doctor) checkHotkey() bool {
	d.step(1, "Hotkey detection")
	if d.DiagnoseHotkey != nil {
		if info, err := d.DiagnoseHotkey(); err != nil {
			d.printf("  WARN: %v\n", err)
		} else {
			d.printf("  %s\n", info)
		}
	}
	d.printf("Press %s...\n", d.Key)

	hk := d.NewHotkey(d.Key)
	if err := hk.Register(); err != nil {
		d.printf("  FAIL: could not register hotkey: %v\n", err)
		return false
	}
	defer hk.Unregister()

	select {
	case <-hk.Keydown():
		d.printf("  PASS: hotkey detected\n")
		select {
		case <-hk.Keyup():
		case <-time.After(5 * time.Second):
		}
		if d.In == os.Stdin {
			resetTerminal()
		}
		return true
	case <-time.After(d.KeyTimeout):
		d.printf("  FAIL: timeout waiting for %s\n", d.Key)
		return false
	}
}

func (d *doctor) checkMicrophone() bool {
	d.step(2, "Microphone level")

	actx := d.Audio
	if actx == nil {
		var err error
		actx, err = audio.NewContext()
		if err != nil {
			d.printf("  FAIL: cannot connect to audio: %v\n", err)
			return false
		}
		defer actx.Close()
	}

	devices, err := actx.Devices()
	if err != nil {
		d.printf("  FAIL: cannot list devices: %v\n", err)
		return false
	}
	device, source, err := audio.ResolveDevice(devices, d.Device, d.PreviousDevice)
	if err != nil {
		d.printf("  FAIL: %v\n", err)
		return false
	}
	d.printf("Using %s (%s)\n", device.Name, source)
	if audio.IsBluetooth(device.Name) {
		d.printf("  Warning: Bluetooth microphones usually record at reduced quality\n")
	}

	d.printf("Press Enter and speak for %s...", d.Record)
	d.in.ReadString('\n')

	pcm, peak, err := record(actx, device, d.Record)
	if err != nil {
		d.printf("  FAIL: recording error: %v\n", err)
		return false
	}
	d.pcm = pcm
	d.printf("  Recorded %.1f KB, peak level %d\n", float64(len(pcm))/1024, peak)

	if msg, ok := levelVerdict(len(pcm), peak); !ok {
		d.printf("  FAIL: %s\n", msg)
		return false
	}
	d.printf("  PASS: microphone is picking up sound\n")
	return true
}

// record reads whole chunks from device for roughly dur and returns the audio
// and its peak amplitude.
func record(actx audio.Context, device *audio.DeviceInfo, dur time.Duration) ([]byte, int, error) {
	stream, err := audio.OpenStream(actx, device, audio.DefaultCaptureConfig())
	if err != nil {
		return nil, 0, err
	}
	defer stream.Close()

	var pcm []byte
	peak := 0
	chunk := make([]byte, audio.ChunkSize)
	for range int(dur / audio.ChunkDuration) {
		n, err := stream.ReadChunk(chunk)
		pcm = append(pcm, chunk[:n]...)
		peak = max(peak, silence.Peak(chunk, n))
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return pcm, peak, err
		}
	}
	return pcm, peak, nil
}

func levelVerdict(n, peak int) (string, bool) {
	switch {
	case n == 0:
		return "no audio captured", false
	case peak < silence.GuardThreshold:
		return fmt.Sprintf("input is silent (peak %d below %d); check the mute switch and input volume", peak, silence.GuardThreshold), false
	case peak < silence.SegmentThreshold:
		return "input is very quiet; silence detection will treat this as silence", true
	}
	return "", true
}

func (d *doctor) checkEngine() bool {
	d.step(3, "Transcription engine")
	if d.Engine == nil {
		d.printf("  FAIL: no engine configured\n")
		return false
	}
	d.printf("Using %s engine\n", d.Engine.Name())

	wavPath := filepath.Join(os.TempDir(), "misterwhisper_doctor_"+uuid.NewString()[:8]+".wav")
	if err := encoder.WriteWAVFile(wavPath, d.pcm); err != nil {
		d.printf("  FAIL: writing wav: %v\n", err)
		return false
	}
	defer os.Remove(wavPath)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	start := time.Now()
	text, err := d.Engine.Transcribe(ctx, wavPath)
	if err != nil {
		d.printf("  FAIL: transcription error: %v\n", err)
		return false
	}
	text = strings.TrimSpace(text)
	if text == "" {
		text = "(no speech detected)"
	}
	d.printf("\n  Transcribed in %s: %s\n\n", time.Since(start).Round(time.Millisecond), text)

	if !d.confirm("Is this correct?") {
		d.printf("  FAIL: transcription not confirmed\n")
		return false
	}
	d.printf("  PASS: transcription verified by user\n")
	return true
}

func (d *doctor) checkClipboard() bool {
	d.step(4, "Clipboard and keystrokes")

	if d.Clipboard != nil {
		prev, prevErr := d.Clipboard.Read()
		probe := fmt.Sprintf("misterwhisper-doctor-%d", time.Now().UnixNano())
		got, err := roundTrip(d.Clipboard, probe, 3*time.Second)
		if prevErr == nil {
			d.Clipboard.Write(prev)
		}
		if err != nil {
			d.printf("  FAIL: %v\n", err)
			return false
		}
		if got != probe {
			d.printf("  FAIL: clipboard mismatch: wrote %q, got %q\n", probe, got)
			return false
		}
		d.printf("  PASS: clipboard write/read verified\n")
	}

	if d.VerifyKeyboard != nil {
		msg, err := d.VerifyKeyboard()
		if err != nil {
			d.printf("  FAIL: %v\n", err)
			if strings.Contains(err.Error(), "uinput") {
				d.printf("  Fix with: sudo chmod 660 /dev/uinput && sudo chgrp input /dev/uinput\n")
			}
			return false
		}
		d.printf("  PASS: %s\n", msg)
	}
	return true
}

// roundTrip writes probe and reads it back. Clipboard helpers can hang when
// the display server is unreachable, hence the timeout.
func roundTrip(clip action.Clipboard, probe string, timeout time.Duration) (string, error) {
	type result struct {
		text  string
		err   error
		phase string
	}
	ch := make(chan result, 1)
	go func() {
		if err := clip.Write(probe); err != nil {
			ch <- result{err: err, phase: "write"}
			return
		}
		got, err := clip.Read()
		ch <- result{text: got, err: err, phase: "read"}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			return "", fmt.Errorf("clipboard %s failed: %w", res.phase, res.err)
		}
		return res.text, nil
	case <-time.After(timeout):
		return "", errors.New("clipboard timed out (is the display server reachable?)")
	}
}
