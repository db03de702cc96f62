package tray

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"math"
	"runtime"

	"misterwhisper/status"
)

const iconSize = 44

var (
	iconIdle         []byte
	iconRecording    []byte
	iconTranscribing []byte
)

func init() {
	red := color.RGBA{R: 255, G: 59, B: 48, A: 255}
	amber := color.RGBA{R: 255, G: 176, B: 0, A: 255}
	grey := color.RGBA{R: 200, G: 200, B: 200, A: 255}
	dotR := iconSize / 6.5
	iconIdle = platformIcon(renderIcon(iconSize, &grey, dotR/2))
	iconRecording = platformIcon(renderIcon(iconSize, &red, dotR))
	iconTranscribing = platformIcon(renderIcon(iconSize, &amber, dotR))
}

// iconFor picks the icon for s. Recording wins over transcribing.
func iconFor(s status.Status) []byte {
	switch s.State() {
	case status.Recording:
		return iconRecording
	case status.Transcribing:
		return iconTranscribing
	}
	return iconIdle
}

func encodePNG(img image.Image) []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic("encodePNG: " + err.Error())
	}
	return buf.Bytes()
}

func renderIcon(size int, dot *color.RGBA, dotR float64) []byte {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	cx, cy := float64(size)/2, float64(size)/2
	r := float64(size)/2 - 1
	for y := range size {
		for x := range size {
			d := math.Hypot(float64(x)+0.5-cx, float64(y)+0.5-cy)
			switch {
			case d <= dotR:
				img.Set(x, y, dot)
			case d <= r:
				img.Set(x, y, color.Black)
			}
		}
	}
	return encodePNG(img)
}

func platformIcon(pngData []byte) []byte {
	if runtime.GOOS == "windows" {
		return wrapICO(pngData, iconSize)
	}
	return pngData
}

// wrapICO embeds a PNG image in a single-entry ICO container, which is what
// the Windows tray expects.
func wrapICO(pngData []byte, size int) []byte {
	var buf bytes.Buffer
	le := binary.LittleEndian
	binary.Write(&buf, le, [3]uint16{0, 1, 1}) // reserved, type icon, count
	dim := byte(size)
	if size >= 256 {
		dim = 0
	}
	buf.Write([]byte{dim, dim, 0, 0})
	binary.Write(&buf, le, [2]uint16{1, 32}) // planes, bits per pixel
	binary.Write(&buf, le, [2]uint32{uint32(len(pngData)), 6 + 16})
	buf.Write(pngData)
	return buf.Bytes()
}
