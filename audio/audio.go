package audio

import (
	"errors"
	"strings"
	"time"
)

// Capture format shared by every component: 16 kHz mono s16le.
const (
	SampleRate     = 16000
	Channels       = 1
	BitsPerSample  = 16
	BytesPerSample = BitsPerSample / 8
	BytesPerSecond = SampleRate * Channels * BytesPerSample

	ChunkDuration = 250 * time.Millisecond
	ChunkSize     = BytesPerSecond / 4 // 8000 bytes

	WAVHeaderSize = 44
)

var (
	ErrNoDevice     = errors.New("no audio input device found")
	ErrStreamClosed = errors.New("audio stream closed")
)

var btKeywords = []string{
	"airpods", "beats", "bose", "wh-1000", "wf-1000",
	"jabra", "galaxy buds", "pixel buds", "powerbeats",
	"jbl ", "plantronics", "bluetooth", "bluez", " bt ", " bt)",
}

// IsBluetooth guesses from the device name whether the input is a Bluetooth
// headset, which usually means a low-bandwidth (8/16 kHz HFP) microphone.
func IsBluetooth(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range btKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

type DataCallback func(data []byte, frameCount uint32)

type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
}

// DefaultCaptureConfig is the fixed capture format.
func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{SampleRate: SampleRate, Channels: Channels}
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	Close()
}

type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
	DeviceName() string
}

// Finite is implemented by capture devices whose input ends on its own
// (file-backed fakes). Done is closed after the last callback.
type Finite interface {
	Done() <-chan struct{}
}

// DeviceNames returns the names of devices in order.
func DeviceNames(devices []DeviceInfo) []string {
	names := make([]string, len(devices))
	for i, d := range devices {
		names[i] = d.Name
	}
	return names
}
