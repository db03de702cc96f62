// Package transcriber turns a WAV file into text using whisper.cpp, either as
// a local CLI bound to a model file or as a remote HTTP server.
package transcriber

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrModelNotFound  = errors.New("model file not found")
	ErrNoModels       = errors.New("no model files found")
	ErrEngineNotFound = errors.New("whisper.cpp binary not found")
)

// ModelsURL is where whisper.cpp ggml models can be downloaded.
const ModelsURL = "https://huggingface.co/ggerganov/whisper.cpp/tree/main"

type Transcriber interface {
	Name() string
	Transcribe(ctx context.Context, wavPath string) (string, error)
}

type Config struct {
	RemoteURL     string
	ModelsDir     string
	Model         string // file name inside ModelsDir
	WhisperBinary string // empty means search PATH and common locations
	Language      string
}

// New selects the engine once: remote when a URL is configured, local
// otherwise.
func New(cfg Config) (Transcriber, error) {
	if cfg.RemoteURL != "" {
		return NewRemote(cfg.RemoteURL, cfg.Language)
	}
	bin, err := FindWhisperBinary(cfg.WhisperBinary)
	if err != nil {
		return nil, err
	}
	return NewLocal(bin, ModelPath(cfg.ModelsDir, cfg.Model), cfg.Language)
}

type NetworkMetrics struct {
	DNS         time.Duration
	ConnWait    time.Duration
	TCP         time.Duration
	TLS         time.Duration
	ReqHeaders  time.Duration
	ReqBody     time.Duration
	TTFB        time.Duration
	Download    time.Duration
	Total       time.Duration
	ConnReused  bool
	TLSProtocol string
}

func (m *NetworkMetrics) Sum() time.Duration {
	return m.ConnWait + m.DNS + m.TCP + m.TLS + m.ReqHeaders + m.ReqBody + m.TTFB + m.Download
}

func (m *NetworkMetrics) String() string {
	return fmt.Sprintf("dns=%s tcp=%s tls=%s ttfb=%s download=%s total=%s reused=%t",
		m.DNS, m.TCP, m.TLS, m.TTFB, m.Download, m.Total, m.ConnReused)
}
