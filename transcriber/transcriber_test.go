package transcriber

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNetworkMetricsSum(t *testing.T) {
	m := &NetworkMetrics{
		ConnWait:   10 * time.Millisecond,
		DNS:        20 * time.Millisecond,
		TCP:        30 * time.Millisecond,
		TLS:        40 * time.Millisecond,
		ReqHeaders: 5 * time.Millisecond,
		ReqBody:    15 * time.Millisecond,
		TTFB:       50 * time.Millisecond,
		Download:   25 * time.Millisecond,
	}
	if got, want := m.Sum(), 195*time.Millisecond; got != want {
		t.Errorf("Sum() = %v, want %v", got, want)
	}
}

func TestNewSelectsRemote(t *testing.T) {
	tr, err := New(Config{RemoteURL: "http://localhost:8080"})
	if err != nil {
		t.Fatal(err)
	}
	if tr.Name() != "remote" {
		t.Errorf("Name = %q, want remote", tr.Name())
	}
}

func TestNewLocalMissingModel(t *testing.T) {
	bin := filepath.Join(t.TempDir(), "whisper-cli")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	_, err := New(Config{WhisperBinary: bin, ModelsDir: t.TempDir(), Model: "ggml-none.bin"})
	if !errors.Is(err, ErrModelNotFound) {
		t.Errorf("err = %v, want ErrModelNotFound", err)
	}
}

func TestFindWhisperBinaryConfiguredMissing(t *testing.T) {
	_, err := FindWhisperBinary(filepath.Join(t.TempDir(), "nope"))
	if !errors.Is(err, ErrEngineNotFound) {
		t.Errorf("err = %v, want ErrEngineNotFound", err)
	}
}

func TestFakeAndFunc(t *testing.T) {
	f := NewFake("hi", nil)
	if got, _ := f.Transcribe(t.Context(), "a.wav"); got != "hi" {
		t.Errorf("Fake text = %q", got)
	}
	if f.Calls() != 1 || f.Paths()[0] != "a.wav" {
		t.Errorf("Fake recorded %v", f.Paths())
	}

	boom := errors.New("boom")
	fn := Func(func(_ context.Context, p string) (string, error) { return "", boom })
	if _, err := fn.Transcribe(t.Context(), "b.wav"); !errors.Is(err, boom) {
		t.Errorf("Func err = %v", err)
	}
}
