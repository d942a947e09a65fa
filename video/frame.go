// Package video produces RGBA8 source frames for the render session. Row 0
// of every frame is the bottom row of the picture, matching texture space.
package video

import (
	"sync/atomic"
)

// Frame is one decoded picture.
type Frame struct {
	Pix    []byte
	Width  int
	Height int
	// Seq increases with every published frame, starting at 1.
	Seq uint64
}

// Latest is a single-slot mailbox holding the newest frame. Publishing never
// blocks; a frame the renderer has not picked up yet is replaced.
type Latest struct {
	frame atomic.Pointer[Frame]
	seq   atomic.Uint64
}

// Publish stores pix as the newest frame and returns its sequence number.
// The slot takes ownership of pix.
func (l *Latest) Publish(pix []byte, width, height int) uint64 {
	seq := l.seq.Add(1)
	l.frame.Store(&Frame{Pix: pix, Width: width, Height: height, Seq: seq})
	return seq
}

// Latest returns the newest frame, if any has been published.
func (l *Latest) Latest() (Frame, bool) {
	f := l.frame.Load()
	if f == nil {
		return Frame{}, false
	}
	return *f, true
}

// Solid returns a width x height frame filled with one opaque color.
func Solid(width, height int, r, g, b byte) []byte {
	pix := make([]byte, width*height*4)
	for i := 0; i < len(pix); i += 4 {
		pix[i], pix[i+1], pix[i+2], pix[i+3] = r, g, b, 255
	}
	return pix
}

var barColors = [][3]byte{
	{192, 192, 192}, {192, 192, 0}, {0, 192, 192}, {0, 192, 0},
	{192, 0, 192}, {192, 0, 0}, {0, 0, 192},
}

// Bars returns a seven-bar color test pattern.
func Bars(width, height int) []byte {
	pix := make([]byte, width*height*4)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := barColors[x*len(barColors)/width]
			i := (y*width + x) * 4
			pix[i], pix[i+1], pix[i+2], pix[i+3] = c[0], c[1], c[2], 255
		}
	}
	return pix
}

// Static returns a slot holding a single frame.
func Static(pix []byte, width, height int) *Latest {
	l := &Latest{}
	l.Publish(pix, width, height)
	return l
}

// vflip reverses the row order of a tightly packed RGBA8 buffer in place.
func vflip(pix []byte, width, height int) {
	row := width * 4
	tmp := make([]byte, row)
	for y := 0; y < height/2; y++ {
		top := pix[y*row : (y+1)*row]
		bottom := pix[(height-1-y)*row : (height-y)*row]
		copy(tmp, top)
		copy(top, bottom)
		copy(bottom, tmp)
	}
}
