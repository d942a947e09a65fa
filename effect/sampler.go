package effect

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Sampler returns the filtered color of a texture at normalized coordinates.
type Sampler interface {
	Sample(uv mgl32.Vec2) mgl32.Vec3
}

// Image is an RGBA8 texture sampled with linear filtering and clamp-to-edge
// wrapping, matching the parameters the pipeline sets on its textures.
// Row 0 is at v = 0.
type Image struct {
	Pix    []byte
	Width  int
	Height int
}

// NewImage wraps pix, which must hold width*height*4 bytes.
func NewImage(pix []byte, width, height int) *Image {
	return &Image{Pix: pix, Width: width, Height: height}
}

// Texel returns the unfiltered color at integer coordinates, clamped to the
// edge.
func (im *Image) Texel(x, y int) mgl32.Vec3 {
	x = clampInt(x, 0, im.Width-1)
	y = clampInt(y, 0, im.Height-1)
	i := (y*im.Width + x) * 4
	return mgl32.Vec3{
		float32(im.Pix[i]) / 255,
		float32(im.Pix[i+1]) / 255,
		float32(im.Pix[i+2]) / 255,
	}
}

func (im *Image) Sample(uv mgl32.Vec2) mgl32.Vec3 {
	// Incomplete textures sample as black.
	if im == nil || im.Width <= 0 || im.Height <= 0 || len(im.Pix) < im.Width*im.Height*4 {
		return mgl32.Vec3{}
	}
	x := float64(uv[0])*float64(im.Width) - 0.5
	y := float64(uv[1])*float64(im.Height) - 0.5
	x0f, y0f := math.Floor(x), math.Floor(y)
	fx, fy := float32(x-x0f), float32(y-y0f)
	x0, y0 := int(x0f), int(y0f)

	c00 := im.Texel(x0, y0)
	c10 := im.Texel(x0+1, y0)
	c01 := im.Texel(x0, y0+1)
	c11 := im.Texel(x0+1, y0+1)
	return mix3(mix3(c00, c10, fx), mix3(c01, c11, fx), fy)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
