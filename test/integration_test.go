//go:build integration

package test_test

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"misterwhisper/clipboard"
)

var (
	testBinary string
	dataDir    string
)

func TestMain(m *testing.M) {
	testBinary = os.Getenv("MISTERWHISPER_TEST_BIN")
	if testBinary == "" {
		fmt.Fprintln(os.Stderr, "MISTERWHISPER_TEST_BIN not set; build the binary and point it there")
		os.Exit(1)
	}

	var err error
	dataDir, err = os.MkdirTemp("", "misterwhisper-it-")
	if err != nil {
		fmt.Fprintf(os.Stderr, "creating data dir: %v\n", err)
		os.Exit(1)
	}
	gen := map[string]func(i int) int16{
		"silence.wav": func(int) int16 { return 0 },
		"tone.wav": func(i int) int16 {
			return int16(8000 * math.Sin(2*math.Pi*440*float64(i)/16000))
		},
	}
	for name, sample := range gen {
		if err := writeWAV(filepath.Join(dataDir, name), 16000, 2.0, sample); err != nil {
			fmt.Fprintf(os.Stderr, "generating %s: %v\n", name, err)
			os.Exit(1)
		}
	}

	code := m.Run()
	os.RemoveAll(dataDir)
	os.Exit(code)
}

func writeWAV(path string, sampleRate int, durationS float64, sample func(int) int16) error {
	const headerSize = 44
	numSamples := int(float64(sampleRate) * durationS)
	dataSize := numSamples * 2

	buf := make([]byte, headerSize+dataSize)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(headerSize-8+dataSize))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], 1) // mono
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*2))
	binary.LittleEndian.PutUint16(buf[32:34], 2)  // block align
	binary.LittleEndian.PutUint16(buf[34:36], 16) // bits per sample
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	for i := range numSamples {
		binary.LittleEndian.PutUint16(buf[headerSize+i*2:], uint16(sample(i)))
	}

	return os.WriteFile(path, buf, 0644)
}

func wav(name string) string {
	return filepath.Join(dataDir, name)
}

func cmds(parts ...string) string {
	return strings.Join(parts, "\n") + "\n"
}

func run(t *testing.T, stdin string, args ...string) (logDir string) {
	t.Helper()
	logDir = t.TempDir()
	cmdArgs := append([]string{"--logpath", logDir}, args...)

	cmd := exec.Command(testBinary, cmdArgs...)
	cmd.Stdin = strings.NewReader(stdin)
	cmd.Env = os.Environ()

	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("misterwhisper exited with error: %v\noutput: %s", err, out)
	}
	return logDir
}

func readLog(t *testing.T, logDir, filename string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(logDir, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return ""
		}
		t.Fatalf("failed to read %s: %v", filename, err)
	}
	return string(data)
}

func transcripts(t *testing.T, logDir string) []string {
	t.Helper()
	var texts []string
	for _, line := range strings.Split(readLog(t, logDir, "transcribe_log.txt"), "\n") {
		if parts := strings.SplitN(line, "\t", 3); len(parts) == 3 {
			texts = append(texts, parts[2])
		}
	}
	return texts
}

func TestTapTranscribes(t *testing.T) {
	logDir := run(t, cmds("KEYDOWN", "KEYUP", "WAIT", "QUIT"),
		"--test", wav("tone.wav"), "--fake-engine", " hello there")
	got := transcripts(t, logDir)
	if len(got) != 1 || got[0] != "hello there" {
		t.Errorf("transcripts = %q", got)
	}
}

func TestTwoRecordings(t *testing.T) {
	logDir := run(t, cmds("KEYDOWN", "KEYUP", "WAIT", "KEYDOWN", "SLEEP 400", "KEYUP", "WAIT", "QUIT"),
		"--test", wav("tone.wav"), "--fake-engine", "again")
	if got := transcripts(t, logDir); len(got) != 2 {
		t.Errorf("transcripts = %q, want 2", got)
	}
	diag := readLog(t, logDir, "diagnostics_log.txt")
	if strings.Count(diag, `"recording_start"`) < 2 {
		t.Error("expected 2 recording_start entries in diagnostics")
	}
}

func TestSilenceNotTranscribed(t *testing.T) {
	logDir := run(t, cmds("KEYDOWN", "KEYUP", "WAIT", "QUIT"),
		"--test", wav("silence.wav"), "--fake-engine", "ghost")
	if got := transcripts(t, logDir); len(got) != 0 {
		t.Errorf("silence produced %q", got)
	}
}

func TestAudioDoneThenRelease(t *testing.T) {
	logDir := run(t, cmds("KEYDOWN", "WAIT_AUDIO_DONE", "SLEEP 300", "KEYUP", "WAIT", "QUIT"),
		"--test", wav("tone.wav"), "--fake-engine", "done")
	if got := transcripts(t, logDir); len(got) != 1 {
		t.Errorf("transcripts = %q", got)
	}
}

func TestClipboardRestore(t *testing.T) {
	sentinel := fmt.Sprintf("misterwhisper-sentinel-%d", time.Now().UnixNano())
	if err := clipboard.Write(sentinel); err != nil {
		t.Skip("clipboard not available")
	}

	_ = run(t, cmds("KEYDOWN", "KEYUP", "WAIT", "SLEEP 1200", "QUIT"),
		"--test", wav("tone.wav"), "--fake-engine", "pasted", "--action", "paste")

	clip, err := clipboard.Read()
	if err != nil {
		t.Skip("clipboard not available")
	}
	if strings.TrimSpace(clip) != sentinel {
		t.Errorf("clipboard not restored: got %q, want %q", strings.TrimSpace(clip), sentinel)
	}
}
