package encoder

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/mewkiz/flac"
)

func pcmRamp(n int) []byte {
	buf := make([]byte, n*2)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(int16(i%2000-1000)))
	}
	return buf
}

func TestFlacEncoder(t *testing.T) {
	data, err := os.ReadFile("../test/data/short.wav")
	if err != nil {
		t.Skip("test/data/short.wav not found")
	}
	samples := Samples(data[44:])

	enc, err := NewFlac()
	if err != nil {
		t.Fatalf("NewFlac: %v", err)
	}
	var totalFed uint64
	for i := 0; i < len(samples); i += BlockSize {
		block := samples[i:min(i+BlockSize, len(samples))]
		if err := enc.EncodeBlock(block); err != nil {
			t.Fatalf("EncodeBlock at offset %d: %v", i, err)
		}
		totalFed += uint64(len(block))
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if enc.TotalFrames() != totalFed {
		t.Errorf("TotalFrames = %d, want %d", enc.TotalFrames(), totalFed)
	}
	if out := enc.Bytes(); len(out) < 4 || string(out[:4]) != "fLaC" {
		t.Fatal("output does not start with FLAC magic")
	}
}

func TestFlacEncoderEmpty(t *testing.T) {
	enc, err := NewFlac()
	if err != nil {
		t.Fatalf("NewFlac: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close on empty encoder: %v", err)
	}
	if enc.TotalFrames() != 0 {
		t.Errorf("TotalFrames = %d, want 0", enc.TotalFrames())
	}
	if len(enc.Bytes()) == 0 {
		t.Error("expected non-empty FLAC output (at least header)")
	}
}

func TestFlacEncoderRejectsOversizedBlock(t *testing.T) {
	enc, err := NewFlac()
	if err != nil {
		t.Fatal(err)
	}
	if err := enc.EncodeBlock(make([]int16, BlockSize+1)); err == nil {
		t.Error("expected error for oversized block")
	}
}

func TestEncodeFLACRoundTrip(t *testing.T) {
	pcm := pcmRamp(BlockSize*2 + 100)
	data, err := EncodeFLAC(pcm)
	if err != nil {
		t.Fatalf("EncodeFLAC: %v", err)
	}

	stream, err := flac.New(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("flac.New: %v", err)
	}
	defer stream.Close()
	if stream.Info.SampleRate != SampleRate || stream.Info.NChannels != Channels {
		t.Errorf("stream info = %+v", stream.Info)
	}

	want := Samples(pcm)
	var got []int16
	for {
		f, err := stream.ParseNext()
		if err != nil {
			break
		}
		for _, s := range f.Subframes[0].Samples {
			got = append(got, int16(s))
		}
	}
	if len(got) != len(want) {
		t.Fatalf("decoded %d samples, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sample %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestWriteFLACFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seg.flac")
	if err := WriteFLACFile(path, pcmRamp(1000)); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data[:4]) != "fLaC" {
		t.Error("missing FLAC magic")
	}
}
