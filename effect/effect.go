// Package effect is a CPU rendition of the glitch fragment program. It
// mirrors shader.GetGlitchFragmentShader operation by operation so the effect
// can be rendered without a GPU and its properties checked in tests.
package effect

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Psychedelia is the fixed intensity of the kaleidoscope warp.
const Psychedelia = 0.7

// GrainStrength scales the additive film grain of the tear branch.
const GrainStrength = 0.12

var tearAxis = mgl32.Vec2{0.8, 0.6}.Normalize()

// Inputs carries the uniform values and samplers of one draw.
type Inputs struct {
	Resolution mgl32.Vec2
	Time       float32
	DryWet     float32
	Amount     float32
	Glitch     float32
	Audio      float32
	Effect     float32
	Psy        float32
	Trail      float32
	Source     Sampler
	Feedback   Sampler
}

// Hash is the program's position/time noise: a pure function of p.
func Hash(p mgl32.Vec2) float32 {
	d := p.Dot(mgl32.Vec2{127.1, 311.7})
	return fract(float32(math.Sin(float64(d))) * 43758.5453)
}

// FilmGrain returns the grey grain added by the tear branch.
func FilmGrain(uv mgl32.Vec2, t float32) mgl32.Vec3 {
	n := Hash(uv.Mul(t*0.1 + 1.0))
	return mgl32.Vec3{n, n, n}.Mul(GrainStrength)
}

// ChromaSplit samples red and blue at opposite offsets along dir.
func ChromaSplit(tex Sampler, uv, dir mgl32.Vec2, amount float32) mgl32.Vec3 {
	o := dir.Mul(amount)
	return mgl32.Vec3{
		sample(tex, uv.Add(o))[0],
		sample(tex, uv)[1],
		sample(tex, uv.Sub(o))[2],
	}
}

// Shade evaluates the program for the pixel whose center is fragCoord.
func (in *Inputs) Shade(fragCoord mgl32.Vec2) mgl32.Vec3 {
	uv := mgl32.Vec2{fragCoord[0] / in.Resolution[0], fragCoord[1] / in.Resolution[1]}
	base := sample(in.Source, uv)
	col := base

	m := float32(math.Floor(float64(in.Effect) + 0.5))
	switch {
	case m < 0.5:
		col = mix3(in.Tear(uv), sample(in.Feedback, uv), in.Trail)
	case m < 1.5:
		col = mix3(in.Kaleidoscope(uv), sample(in.Feedback, uv), in.Trail)
	}
	return mix3(base, col, mgl32.Clamp(in.DryWet, 0, 1))
}

// Tear quantizes to a coarse grid, shifts periodic horizontal lines, warps
// and splits channels, then adds grain.
func (in *Inputs) Tear(uv mgl32.Vec2) mgl32.Vec3 {
	t := in.Time
	px := mix(1, 120, mgl32.Clamp(in.Amount*0.85+in.Audio*0.25, 0, 1))
	uvPix := mgl32.Vec2{floor(uv[0]*px) / px, floor(uv[1]*px) / px}

	lines := mix(40, 400, in.Glitch)
	linePhase := fract(uv[1]*lines + t*(2+in.Audio*6))
	tearMask := step(linePhase, in.Glitch*0.7+in.Audio*0.5)
	randShift := (Hash(mgl32.Vec2{uv[1] * 100, t}) - 0.5) * (0.06 * (in.Glitch + in.Audio))
	uvGlitch := uvPix.Add(mgl32.Vec2{tearMask * randShift, 0})

	w := in.Amount*0.8 + in.Audio*0.6
	uvGlitch[0] += 0.015 * w * sin(uvGlitch[1]*20+t*2.5)
	uvGlitch[1] += 0.010 * w * cos(uvGlitch[0]*18+t*2.0)

	off := 0.007 * (in.Amount*0.7 + in.Audio*0.5)
	grain := FilmGrain(uv.Add(mgl32.Vec2{t, t}), t)
	return ChromaSplit(in.Source, uvGlitch, tearAxis, off).Add(grain)
}

// Kaleidoscope warps in polar space, mirrors into a repeating tile and splits
// channels along an axis rotating with time.
func (in *Inputs) Kaleidoscope(uv mgl32.Vec2) mgl32.Vec3 {
	t := in.Time
	p := uv.Mul(2).Sub(mgl32.Vec2{1, 1})
	r := p.Len()
	a := float32(math.Atan2(float64(p[1]), float64(p[0])))

	warp := (sin(r*12-t*3) + cos((r+t*0.5)*9)) * (0.25*in.Psy + 0.25*in.Audio)
	a += warp + 0.35*in.Amount
	r += 0.12 * sin(a*8+t*2.5) * (in.Psy + in.Audio)

	uv2 := mgl32.Vec2{cos(a), sin(a)}.Mul(r * 0.5).Add(mgl32.Vec2{0.5, 0.5})
	uv2 = mgl32.Vec2{abs(fract(uv2[0]*2) - 0.5), abs(fract(uv2[1]*2) - 0.5)}

	off := 0.015 * (in.Psy + in.Audio)
	dir := mgl32.Vec2{cos(t * 0.7), sin(t * 0.7)}
	return ChromaSplit(in.Source, uv2, dir, off)
}

func sample(s Sampler, uv mgl32.Vec2) mgl32.Vec3 {
	if s == nil {
		return mgl32.Vec3{}
	}
	return s.Sample(uv)
}

func mix(x, y, a float32) float32 { return x + (y-x)*a }

func mix3(x, y mgl32.Vec3, a float32) mgl32.Vec3 { return x.Add(y.Sub(x).Mul(a)) }

func fract(x float32) float32 { return x - floor(x) }

func floor(x float32) float32 { return float32(math.Floor(float64(x))) }

func sin(x float32) float32 { return float32(math.Sin(float64(x))) }

func cos(x float32) float32 { return float32(math.Cos(float64(x))) }

func abs(x float32) float32 { return float32(math.Abs(float64(x))) }

// step follows GLSL: 0 when x < edge, otherwise 1.
func step(edge, x float32) float32 {
	if x < edge {
		return 0
	}
	return 1
}
