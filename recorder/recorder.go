// Package recorder owns the microphone for the length of a recording and
// turns captured audio into transcription tasks.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"misterwhisper/action"
	"misterwhisper/audio"
	"misterwhisper/dispatch"
	"misterwhisper/log"
	"misterwhisper/silence"
	"misterwhisper/status"
)

type Submitter interface {
	Submit(dispatch.Task)
}

type Reporter interface {
	ReportError(err error)
}

// Settings are read once when a recording starts.
type Settings struct {
	Device         string
	PreviousDevice string
	Silence        bool
	Detector       string // "peak" or "vad"
	Action         action.Mode
}

type Recorder struct {
	audio    audio.Context
	status   *status.Holder
	sink     Submitter
	report   Reporter
	settings func() Settings

	requests chan request

	// mu guards the session lifecycle. busy is set from an accepted Start
	// until the session's final task is submitted; stop is closed by Stop.
	mu   sync.Mutex
	busy bool
	stop chan struct{}

	// sessionDone receives after every session; used by tests.
	sessionDone chan struct{}
}

func New(actx audio.Context, st *status.Holder, sink Submitter, report Reporter, settings func() Settings) *Recorder {
	return &Recorder{
		audio:    actx,
		status:   st,
		sink:     sink,
		report:   report,
		settings: settings,
		requests: make(chan request, 1),
	}
}

type request struct {
	settings Settings
	stop     <-chan struct{}
}

// Run is the capture worker. It handles one recording at a time until ctx is
// done.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case req := <-r.requests:
			r.session(req.settings, req.stop)
			if r.sessionDone != nil {
				r.sessionDone <- struct{}{}
			}
		case <-ctx.Done():
			return
		}
	}
}

// Start begins a recording unless one is active or still winding down.
func (r *Recorder) Start() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.busy || !r.status.TryStartRecording() {
		return false
	}
	stop := make(chan struct{})
	select {
	case r.requests <- request{settings: r.settings(), stop: stop}:
		r.busy = true
		r.stop = stop
		return true
	default:
		r.status.StopRecording()
		log.Warn("capture worker busy, start ignored")
		return false
	}
}

// Stop asks the active recording to finish. The worker notices within one
// chunk; until then Busy stays true and Start is refused.
func (r *Recorder) Stop() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stop == nil {
		return false
	}
	close(r.stop)
	r.stop = nil
	r.status.StopRecording()
	return true
}

// Toggle starts a recording when idle and stops the active one otherwise.
func (r *Recorder) Toggle() {
	if !r.Start() {
		r.Stop()
	}
}

// Busy reports whether a session has been started and has not yet handed
// over its final task.
func (r *Recorder) Busy() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.busy
}

// finish ends the current session. A nil final means the session aborted,
// which leaves the transcribing flag to the dispatcher.
func (r *Recorder) finish(final *dispatch.Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stop != nil {
		close(r.stop)
		r.stop = nil
	}
	if final != nil {
		r.status.Reset()
		r.sink.Submit(*final)
	} else {
		r.status.StopRecording()
	}
	r.busy = false
}

func (r *Recorder) abort(err error) {
	r.finish(nil)
	log.Errorf("recording aborted: %v", err)
	r.report.ReportError(err)
}

func (r *Recorder) session(s Settings, stop <-chan struct{}) {
	devices, err := r.audio.Devices()
	if err != nil {
		r.abort(fmt.Errorf("listing audio inputs: %w", err))
		return
	}
	dev, src, err := audio.ResolveDevice(devices, s.Device, s.PreviousDevice)
	if err != nil {
		r.abort(err)
		return
	}
	stream, err := audio.OpenStream(r.audio, dev, audio.DefaultCaptureConfig())
	if err != nil {
		r.abort(fmt.Errorf("opening %s: %w", dev.Name, err))
		return
	}
	log.RecordingStart(dev.Name, src.String())

	var detector silence.Detector
	if s.Silence {
		detector, err = silence.NewDetector(s.Detector)
		if err != nil {
			log.Warnf("%v, using peak detector", err)
			detector = silence.PeakDetector{Threshold: silence.SegmentThreshold}
		}
	}

	total := 0
	buf := r.capture(stream, stop, detector, s.Action, &total)

	stream.Close()
	log.RecordingStop(total)
	r.finish(&dispatch.Task{Segment: buf, Action: s.Action, Final: true})
}

// capture reads chunks until stop is closed or the source ends. With a
// detector, each silent chunk closes the current segment and is itself
// dropped.
func (r *Recorder) capture(stream *audio.Stream, stop <-chan struct{}, detector silence.Detector, mode action.Mode, total *int) []byte {
	var buf []byte
	chunk := make([]byte, audio.ChunkSize)
	for !stopped(stop) {
		n, err := stream.ReadChunk(chunk)
		*total += n
		if n > 0 {
			data := chunk[:n]
			if detector != nil && detector.Silent(data) {
				if len(buf) > 0 {
					r.sink.Submit(dispatch.Task{Segment: buf, Action: mode, Final: false})
					buf = nil
				}
			} else {
				buf = append(buf, data...)
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Warnf("audio read: %v", err)
			}
			break
		}
	}
	return buf
}

func stopped(stop <-chan struct{}) bool {
	select {
	case <-stop:
		return true
	default:
		return false
	}
}
