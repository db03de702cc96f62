package encoder

import (
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WriteWAV writes pcm as a canonical 16-bit mono WAV stream.
func WriteWAV(w io.WriteSeeker, pcm []byte) error {
	enc := wav.NewEncoder(w, SampleRate, BitsPerSample, Channels, 1)

	samples := Samples(pcm)
	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: Channels, SampleRate: SampleRate},
		Data:           data,
		SourceBitDepth: BitsPerSample,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("writing wav samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalizing wav: %w", err)
	}
	return nil
}

// WriteWAVFile creates path and writes pcm into it. The file is removed if
// writing fails.
func WriteWAVFile(path string, pcm []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteWAV(f, pcm); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}
