package transcriber

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"sync"
	"time"
)

var binaryNames = []string{"whisper-cli", "whisper-cpp", "whisper", "main"}

// FindWhisperBinary returns configured if set, otherwise searches PATH and the
// usual install locations for the whisper.cpp CLI.
func FindWhisperBinary(configured string) (string, error) {
	if configured != "" {
		if _, err := os.Stat(configured); err != nil {
			if p, lerr := exec.LookPath(configured); lerr == nil {
				return p, nil
			}
			return "", fmt.Errorf("%w: %s", ErrEngineNotFound, configured)
		}
		return configured, nil
	}

	for _, name := range binaryNames {
		if p, err := exec.LookPath(name); err == nil {
			return p, nil
		}
	}

	home, _ := os.UserHomeDir()
	locations := []string{
		"/opt/homebrew/bin",
		"/usr/local/bin",
		filepath.Join(home, ".local", "bin"),
		filepath.Join(home, "whisper.cpp", "build", "bin"),
	}
	if exe, err := os.Executable(); err == nil {
		locations = append([]string{filepath.Dir(exe)}, locations...)
	}
	for _, loc := range locations {
		for _, name := range binaryNames {
			if runtime.GOOS == "windows" {
				name += ".exe"
			}
			p := filepath.Join(loc, name)
			if _, err := os.Stat(p); err == nil {
				return p, nil
			}
		}
	}
	return "", ErrEngineNotFound
}

// Local runs the whisper.cpp CLI once per segment against a model file. The
// model can be swapped between calls.
type Local struct {
	binary   string
	language string

	mu    sync.RWMutex
	model string
}

func NewLocal(binary, modelPath, language string) (*Local, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, modelPath)
	}
	if language == "" {
		language = "auto"
	}
	return &Local{binary: binary, model: modelPath, language: language}, nil
}

func (l *Local) Name() string { return "local" }

func (l *Local) Binary() string { return l.binary }

func (l *Local) Model() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.model
}

// SetModel switches the model used by later calls.
func (l *Local) SetModel(modelPath string) error {
	if _, err := os.Stat(modelPath); err != nil {
		return fmt.Errorf("%w: %s", ErrModelNotFound, modelPath)
	}
	l.mu.Lock()
	l.model = modelPath
	l.mu.Unlock()
	return nil
}

func (l *Local) Transcribe(ctx context.Context, wavPath string) (string, error) {
	cmd := exec.CommandContext(ctx, l.binary,
		"-m", l.Model(),
		"-f", wavPath,
		"-l", l.language,
		"-nt", "-np",
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("whisper.cpp: %w", ctx.Err())
		}
		return "", fmt.Errorf("whisper.cpp failed: %w, stderr: %s", err, strings.TrimSpace(stderr.String()))
	}
	return parseCLIOutput(stdout.String()), nil
}

var timestampPrefix = regexp.MustCompile(`^\[\d{2}:\d{2}:\d{2}\.\d{3} --> \d{2}:\d{2}:\d{2}\.\d{3}\]\s*`)

// parseCLIOutput joins the printed lines, dropping timestamp prefixes that
// older builds emit even with -nt.
func parseCLIOutput(out string) string {
	var parts []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(timestampPrefix.ReplaceAllString(strings.TrimSpace(line), ""))
		if line != "" {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, " ")
}
