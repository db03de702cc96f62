// Package dispatch runs captured segments through the speech-to-text engine
// one at a time, in the order they were recorded.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"misterwhisper/action"
	"misterwhisper/audio"
	"misterwhisper/encoder"
	"misterwhisper/internal/fifo"
	"misterwhisper/log"
	"misterwhisper/silence"
	"misterwhisper/transcriber"
)

// MinSegmentBytes is the padded floor: 2.1 s of 16 kHz mono s16le.
const MinSegmentBytes = 67200

type Task struct {
	Segment []byte
	Action  action.Mode
	Final   bool
}

type Deliverer interface {
	Deliver(text string, mode action.Mode)
}

type Reporter interface {
	ReportError(err error)
}

type StatusSetter interface {
	SetTranscribing(bool)
}

type Options struct {
	TempDir    string        // empty means os.TempDir()
	ArchiveDir string        // FLAC copy of every transcribed segment when set
	Timeout    time.Duration // 0 means wait for the engine indefinitely
	MinBytes   int           // 0 means MinSegmentBytes
}

type Dispatcher struct {
	engine  transcriber.Transcriber
	deliver Deliverer
	status  StatusSetter
	report  Reporter
	opts    Options
	queue   *fifo.Queue[Task]

	submitted atomic.Int64
	finals    atomic.Int64
	processed atomic.Int64

	// idle receives after each processed task; used by tests.
	idle chan struct{}
}

func New(engine transcriber.Transcriber, deliver Deliverer, status StatusSetter, report Reporter, opts Options) *Dispatcher {
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	if opts.MinBytes == 0 {
		opts.MinBytes = MinSegmentBytes
	}
	return &Dispatcher{
		engine:  engine,
		deliver: deliver,
		status:  status,
		report:  report,
		opts:    opts,
		queue:   fifo.New[Task](),
	}
}

// Submit queues t and never blocks. The dispatcher owns t.Segment afterwards.
func (d *Dispatcher) Submit(t Task) {
	log.SegmentQueued(len(t.Segment), t.Final)
	d.submitted.Add(1)
	if t.Final {
		d.finals.Add(1)
	}
	d.queue.Push(t)
}

// Stats counts tasks since the dispatcher was created.
type Stats struct {
	Submitted int64
	Finals    int64
	Processed int64
}

func (d *Dispatcher) Stats() Stats {
	p := d.processed.Load()
	return Stats{Submitted: d.submitted.Load(), Finals: d.finals.Load(), Processed: p}
}

func (d *Dispatcher) Pending() int {
	return d.queue.Len()
}

// Start runs the single worker until ctx is done. Tasks still queued at that
// point are dropped.
func (d *Dispatcher) Start(ctx context.Context) {
	go func() {
		for {
			t, ok := d.queue.Pop(ctx)
			if !ok {
				return
			}
			d.process(ctx, t)
			d.processed.Add(1)
			if d.idle != nil {
				d.idle <- struct{}{}
			}
		}
	}()
}

func (d *Dispatcher) process(ctx context.Context, t Task) {
	if silence.IsSilent(t.Segment, len(t.Segment), silence.GuardThreshold) {
		log.Infof("discarding silent segment (%d bytes, final=%t)", len(t.Segment), t.Final)
		return
	}
	seg := Pad(t.Segment, d.opts.MinBytes)

	d.status.SetTranscribing(true)
	defer d.status.SetTranscribing(false)

	text, err := d.transcribe(ctx, seg)
	if err != nil {
		log.Errorf("transcription failed: %v", err)
		d.report.ReportError(fmt.Errorf("transcription failed: %w", err))
		return
	}

	text = Normalize(text, t.Final)
	if strings.TrimSpace(text) == "" {
		log.Info("engine returned no text")
		return
	}
	d.deliver.Deliver(text, t.Action)
}

func (d *Dispatcher) transcribe(ctx context.Context, seg []byte) (string, error) {
	name := TempName(time.Now())
	path := filepath.Join(d.opts.TempDir, name)
	if err := encoder.WriteWAVFile(path, seg); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warnf("removing temp file: %v", err)
		}
	}()

	if d.opts.ArchiveDir != "" {
		d.archive(strings.TrimSuffix(name, ".wav")+".flac", seg)
	}

	if d.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := d.engine.Transcribe(ctx, path)
	if err != nil {
		return "", err
	}
	log.Transcription(d.engine.Name(), float64(len(seg))/audio.BytesPerSecond, time.Since(start), len(text))
	return text, nil
}

func (d *Dispatcher) archive(name string, seg []byte) {
	if err := os.MkdirAll(d.opts.ArchiveDir, 0o755); err != nil {
		log.Warnf("archive dir: %v", err)
		return
	}
	if err := encoder.WriteFLACFile(filepath.Join(d.opts.ArchiveDir, name), seg); err != nil {
		log.Warnf("archiving segment: %v", err)
	}
}

// TempName is rec_<yyyyMMdd_HHmmss>_<8 hex>.wav.
func TempName(now time.Time) string {
	return fmt.Sprintf("rec_%s_%s.wav", now.Format("20060102_150405"), uuid.NewString()[:8])
}

// Pad zero-extends segment to floor bytes. Segments at or above the floor
// are returned unchanged.
func Pad(segment []byte, floor int) []byte {
	if len(segment) >= floor {
		return segment
	}
	out := make([]byte, floor)
	copy(out, segment)
	return out
}

var whitespaceReplacer = strings.NewReplacer("\n", " ", "\r", " ", "\t", " ")

// Normalize flattens line breaks and tabs to spaces and trims. Non-final
// segments get a trailing space so that consecutive segments join cleanly.
func Normalize(text string, final bool) string {
	text = strings.TrimSpace(whitespaceReplacer.Replace(text))
	if !final {
		text += " "
	}
	return text
}
