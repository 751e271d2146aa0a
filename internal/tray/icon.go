//go:build !linux

package tray

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"runtime"
)

const iconSize = 32

// iconData draws the tray icon: a card outline with a contactless arc.
// Windows needs an ICO container, which may hold PNG data directly.
func iconData(active bool) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, iconSize, iconSize))
	fg := color.NRGBA{R: 0x1e, G: 0x88, B: 0xe5, A: 0xff}
	if !active {
		fg = color.NRGBA{R: 0x9e, G: 0x9e, B: 0x9e, A: 0xff}
	}

	for x := 3; x < 29; x++ {
		img.Set(x, 7, fg)
		img.Set(x, 24, fg)
	}
	for y := 7; y <= 24; y++ {
		img.Set(3, y, fg)
		img.Set(28, y, fg)
	}
	for y := 11; y <= 20; y++ {
		for x := 7; x <= 12; x++ {
			img.Set(x, y, fg)
		}
	}
	for i, r := range []int{3, 6, 9} {
		for dy := -r; dy <= r; dy++ {
			img.Set(17+r-abs(dy)/(i+1), 15+dy, fg)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil
	}
	if runtime.GOOS != "windows" {
		return buf.Bytes()
	}
	return wrapICO(buf.Bytes())
}

func wrapICO(pngData []byte) []byte {
	var buf bytes.Buffer
	// ICONDIR
	binary.Write(&buf, binary.LittleEndian, [3]uint16{0, 1, 1})
	// ICONDIRENTRY
	buf.Write([]byte{iconSize, iconSize, 0, 0})
	binary.Write(&buf, binary.LittleEndian, [2]uint16{1, 32})
	binary.Write(&buf, binary.LittleEndian, [2]uint32{uint32(len(pngData)), 6 + 16})
	buf.Write(pngData)
	return buf.Bytes()
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
