package effect

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/richinsley/goglitch/shader"
)

// Uniforms reads the current value of a program's uniforms by name. Unset
// uniforms read as zero.
type Uniforms interface {
	Float(name string) float32
	Vec2(name string) mgl32.Vec2
}

// Bind collects the glitch program's inputs from u and the textures bound to
// its sampler units.
func Bind(u Uniforms, source, feedback Sampler) *Inputs {
	return &Inputs{
		Resolution: u.Vec2(shader.UResolution),
		Time:       u.Float(shader.UTime),
		DryWet:     u.Float(shader.UDryWet),
		Amount:     u.Float(shader.UAmount),
		Glitch:     u.Float(shader.UGlitch),
		Audio:      u.Float(shader.UAudio),
		Effect:     u.Float(shader.UEffect),
		Psy:        u.Float(shader.UPsy),
		Trail:      u.Float(shader.UTrail),
		Source:     source,
		Feedback:   feedback,
	}
}

// Render shades every pixel of a width x height target into RGBA8, row 0
// first, quantizing the way an 8-bit framebuffer does.
func (in *Inputs) Render(width, height int) []byte {
	out := make([]byte, width*height*4)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := in.Shade(mgl32.Vec2{float32(x) + 0.5, float32(y) + 0.5})
			i := (y*width + x) * 4
			out[i] = Quantize(c[0])
			out[i+1] = Quantize(c[1])
			out[i+2] = Quantize(c[2])
			out[i+3] = 255
		}
	}
	return out
}

// Quantize converts a normalized channel to an unsigned byte.
func Quantize(c float32) byte {
	if c != c {
		return 0
	}
	return byte(mgl32.Clamp(c, 0, 1)*255 + 0.5)
}
