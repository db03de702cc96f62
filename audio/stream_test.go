package audio

import (
	"errors"
	"io"
	"testing"
	"time"
)

func openFake(t *testing.T, pcm []byte) (*Stream, *FakeContext) {
	t.Helper()
	ctx := NewFakeContext(pcm, "Mic")
	devices, _ := ctx.Devices()
	s, err := OpenStream(ctx, &devices[0], DefaultCaptureConfig())
	if err != nil {
		t.Fatalf("OpenStream: %v", err)
	}
	t.Cleanup(s.Close)
	return s, ctx
}

func TestStreamReadsFullChunks(t *testing.T) {
	pcm := make([]byte, ChunkSize*2+1000)
	for i := range pcm {
		pcm[i] = byte(i)
	}
	s, _ := openFake(t, pcm)

	buf := make([]byte, ChunkSize)
	var got []byte
	for {
		n, err := s.ReadChunk(buf)
		got = append(got, buf[:n]...)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("ReadChunk: %v", err)
		}
		if n != ChunkSize && n != 1000 {
			t.Fatalf("short read of %d bytes", n)
		}
	}
	if len(got) != len(pcm) {
		t.Fatalf("read %d bytes, want %d", len(got), len(pcm))
	}
	for i := range pcm {
		if got[i] != pcm[i] {
			t.Fatalf("byte %d = %d, want %d", i, got[i], pcm[i])
		}
	}
}

func TestStreamEmptySourceEOF(t *testing.T) {
	s, _ := openFake(t, nil)
	n, err := s.ReadChunk(make([]byte, ChunkSize))
	if n != 0 || !errors.Is(err, io.EOF) {
		t.Fatalf("got (%d, %v), want (0, EOF)", n, err)
	}
}

func TestStreamCloseWakesReader(t *testing.T) {
	ctx := NewFakeContext(nil, "Mic")
	ctx.Realtime = true
	s, err := OpenStream(ctx, nil, DefaultCaptureConfig())
	if err != nil {
		t.Fatal(err)
	}

	errCh := make(chan error, 1)
	go func() {
		// Far more than the fake ever delivers before Close.
		_, err := s.ReadChunk(make([]byte, BytesPerSecond*60))
		errCh <- err
	}()

	time.Sleep(50 * time.Millisecond)
	s.Close()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrStreamClosed) {
			t.Fatalf("err = %v, want ErrStreamClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("reader not woken by Close")
	}

	caps := ctx.Captures()
	if len(caps) != 1 || !caps[0].Closed() {
		t.Fatal("capture device not closed")
	}
	s.Close() // idempotent
}

func TestStreamOpenError(t *testing.T) {
	ctx := NewFakeContext(nil)
	ctx.OpenErr = errors.New("busy")
	if _, err := OpenStream(ctx, nil, DefaultCaptureConfig()); err == nil {
		t.Fatal("expected error")
	}
}

func TestStreamDeviceName(t *testing.T) {
	s, _ := openFake(t, nil)
	if s.DeviceName() != "Mic" {
		t.Errorf("DeviceName = %q", s.DeviceName())
	}
}
