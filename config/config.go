package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/BurntSushi/toml"

	"misterwhisper/action"
	"misterwhisper/hotkey"
	"misterwhisper/silence"
	"misterwhisper/transcriber"
)

var ErrInvalid = errors.New("invalid configuration")

// Duration wraps time.Duration so it reads and writes as "1m30s" in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type Config struct {
	Hotkey          string   `toml:"hotkey"`
	Action          string   `toml:"action"`
	Silence         bool     `toml:"silence_detection"`
	SilenceDetector string   `toml:"silence_detector"`
	Device          string   `toml:"device"`
	PreviousDevice  string   `toml:"previous_device"`
	ModelsDir       string   `toml:"models_dir"`
	Model           string   `toml:"model"`
	WhisperBinary   string   `toml:"whisper_binary"`
	RemoteURL       string   `toml:"remote_url"`
	Language        string   `toml:"language"`
	TempDir         string   `toml:"temp_dir"`
	ArchiveDir      string   `toml:"archive_dir"`
	Beep            bool     `toml:"beep"`
	EngineTimeout   Duration `toml:"engine_timeout"`
}

func Default() Config {
	return Config{
		Hotkey:          hotkey.DefaultKey.String(),
		Action:          action.Paste.String(),
		SilenceDetector: "peak",
		ModelsDir:       "models",
		Model:           transcriber.DefaultModel,
		Language:        "auto",
	}
}

// Validate reports the first unusable value, wrapped in ErrInvalid.
func (c Config) Validate() error {
	if _, err := hotkey.ParseKey(c.Hotkey); err != nil {
		return fmt.Errorf("%w: hotkey: %v", ErrInvalid, err)
	}
	if _, err := action.ParseMode(c.Action); err != nil {
		return fmt.Errorf("%w: action: %v", ErrInvalid, err)
	}
	if c.SilenceDetector != "" && c.SilenceDetector != "peak" && c.SilenceDetector != "vad" {
		return fmt.Errorf("%w: silence_detector %q (want peak or vad)", ErrInvalid, c.SilenceDetector)
	}
	if c.EngineTimeout.Duration < 0 {
		return fmt.Errorf("%w: engine_timeout must not be negative", ErrInvalid)
	}
	return nil
}

// Key is the parsed hotkey. Call Validate first.
func (c Config) Key() hotkey.Key {
	k, err := hotkey.ParseKey(c.Hotkey)
	if err != nil {
		return hotkey.DefaultKey
	}
	return k
}

// Mode is the parsed action mode. Call Validate first.
func (c Config) Mode() action.Mode {
	m, err := action.ParseMode(c.Action)
	if err != nil {
		return action.Paste
	}
	return m
}

// Detector builds the silence detector named by silence_detector.
func (c Config) Detector() (silence.Detector, error) {
	return silence.NewDetector(c.SilenceDetector)
}

func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "misterwhisper", "config.toml"), nil
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return cfg, fmt.Errorf("%w: %s: %v", ErrInvalid, path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes cfg next to path and renames it into place.
func Save(path string, cfg Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".config-*.toml")
	if err != nil {
		return fmt.Errorf("creating temp config: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("writing config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing config: %w", err)
	}
	return nil
}

// Store guards the live configuration. Changes made through Update are
// persisted before Update returns; overrides applied with Override are not.
type Store struct {
	path string

	mu  sync.Mutex
	cfg Config
}

func Open(path string) (*Store, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &Store{path: path, cfg: cfg}, nil
}

func (s *Store) Path() string { return s.path }

func (s *Store) Get() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Override changes the live configuration for this process only. The change
// is replaced as soon as an Update touches the same field.
func (s *Store) Override(fn func(*Config)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.cfg
	fn(&next)
	if err := next.Validate(); err != nil {
		return err
	}
	s.cfg = next
	return nil
}

// Update applies fn and persists the result. The file holds only the fields
// the user changed at runtime on top of what was already on disk.
func (s *Store) Update(fn func(*Config)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cfg
	fn(&next)
	if err := next.Validate(); err != nil {
		return err
	}

	onDisk, err := Load(s.path)
	if err != nil {
		onDisk = Default()
	}
	fn(&onDisk)
	if err := Save(s.path, onDisk); err != nil {
		return err
	}
	s.cfg = next
	return nil
}

// SelectDevice makes name the preferred device, remembering the old one as
// the previous device.
func (s *Store) SelectDevice(name string) error {
	return s.Update(func(c *Config) {
		if c.Device == name {
			return
		}
		if c.Device != "" {
			c.PreviousDevice = c.Device
		}
		c.Device = name
	})
}
