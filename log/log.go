package log

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	appName         = "misterwhisper"
	diagnosticsFile = "diagnostics_log.txt"
	transcribeFile  = "transcribe_log.txt"
	crashFile       = "crash_log.txt"
	timeFormat      = "2006-01-02 15:04:05"
)

var (
	diagLog    zerolog.Logger
	diagWriter *lumberjack.Logger
	textFile   *os.File
	crashOut   *os.File
	logMu      sync.Mutex
	logReady   bool
	pid        int
	dir        string
	verbose    bool
)

func ResolveDir(flagPath string) (string, error) {
	if flagPath != "" {
		return absolute(flagPath)
	}
	if envPath := os.Getenv("MISTERWHISPER_LOG_PATH"); envPath != "" {
		return absolute(envPath)
	}
	return getDefaultDir()
}

func absolute(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, p), nil
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

// SetVerbose mirrors diagnostics to stderr. It takes effect on the next Init.
func SetVerbose(v bool) {
	verbose = v
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}
	pid = os.Getpid()

	var err error
	textFile, err = os.OpenFile(filepath.Join(dir, transcribeFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	diagWriter = &lumberjack.Logger{
		Filename:   filepath.Join(dir, diagnosticsFile),
		MaxSize:    5, // megabytes
		MaxBackups: 3,
	}
	var out io.Writer = zerolog.ConsoleWriter{
		Out:        diagWriter,
		TimeFormat: timeFormat,
		NoColor:    true,
	}
	if verbose {
		out = zerolog.MultiLevelWriter(out, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	}
	diagLog = zerolog.New(out).With().Timestamp().Int("pid", pid).Logger()

	if f, err := os.OpenFile(filepath.Join(dir, crashFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644); err == nil {
		if debug.SetCrashOutput(f, debug.CrashOptions{}) == nil {
			crashOut = f
		} else {
			f.Close()
		}
	}

	logReady = true
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagWriter != nil {
		diagWriter.Close()
		diagWriter = nil
	}
	if textFile != nil {
		textFile.Close()
		textFile = nil
	}
	if crashOut != nil {
		debug.SetCrashOutput(nil, debug.CrashOptions{})
		crashOut.Close()
		crashOut = nil
	}
	logReady = false
}

func Info(msg string) {
	if logReady {
		diagLog.Info().Msg(msg)
	}
}

func Infof(format string, args ...any) {
	if logReady {
		diagLog.Info().Msg(fmt.Sprintf(format, args...))
	}
}

func Error(msg string) {
	if logReady {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

func SessionStart(engine, detail string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("engine", engine).
		Str("detail", detail).
		Msg("session_start")
}

func RecordingStart(device, source string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("device", device).
		Str("source", source).
		Msg("recording_start")
}

func RecordingStop(bytes int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Int("bytes", bytes).
		Float64("audio_s", float64(bytes)/32000).
		Msg("recording_stop")
}

func SegmentQueued(bytes int, final bool) {
	if !logReady {
		return
	}
	diagLog.Info().
		Int("bytes", bytes).
		Bool("final", final).
		Msg("segment_queued")
}

func Transcription(engine string, audioS float64, elapsed time.Duration, chars int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("engine", engine).
		Float64("audio_s", audioS).
		Float64("total_ms", float64(elapsed.Microseconds())/1000).
		Int("chars", chars).
		Msg("transcription")
}

func Delivery(mode string, err error) {
	if !logReady {
		return
	}
	ev := diagLog.Info()
	if err != nil {
		ev = diagLog.Warn().Err(err)
	}
	ev.Str("mode", mode).Msg("delivery")
}

func TranscriptionText(text string) {
	logMu.Lock()
	defer logMu.Unlock()
	if !logReady || textFile == nil {
		return
	}
	line := fmt.Sprintf("%s\t[%d]\t%s\n", time.Now().Format(timeFormat), pid, text)
	textFile.WriteString(line)
}

// Entry is one line of the transcription log.
type Entry struct {
	Time time.Time
	PID  int
	Text string
}

// ReadTranscriptions parses the transcription log in the current directory.
// Malformed lines are skipped.
func ReadTranscriptions() ([]Entry, error) {
	f, err := os.Open(filepath.Join(dir, transcribeFile))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries []Entry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		parts := strings.SplitN(sc.Text(), "\t", 3)
		if len(parts) != 3 {
			continue
		}
		ts, err := time.ParseInLocation(timeFormat, parts[0], time.Local)
		if err != nil {
			continue
		}
		var p int
		fmt.Sscanf(parts[1], "[%d]", &p)
		entries = append(entries, Entry{Time: ts, PID: p, Text: parts[2]})
	}
	return entries, sc.Err()
}
