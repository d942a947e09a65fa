package effect

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richinsley/goglitch/params"
)

func solid(w, h int, r, g, b byte) *Image {
	pix := make([]byte, w*h*4)
	for i := 0; i < len(pix); i += 4 {
		pix[i], pix[i+1], pix[i+2], pix[i+3] = r, g, b, 255
	}
	return NewImage(pix, w, h)
}

func gradient(w, h int) *Image {
	pix := make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * 4
			pix[i] = byte(x * 255 / (w - 1))
			pix[i+1] = byte(y * 255 / (h - 1))
			pix[i+2] = byte((x + y) * 4)
			pix[i+3] = 255
		}
	}
	return NewImage(pix, w, h)
}

func inputs(src *Image, mode params.EffectMode, dryWet float32) *Inputs {
	return &Inputs{
		Resolution: mgl32.Vec2{float32(src.Width), float32(src.Height)},
		Time:       1.25,
		DryWet:     dryWet,
		Amount:     0.6,
		Glitch:     0.35,
		Audio:      0.4,
		Effect:     mode.Uniform(),
		Psy:        Psychedelia,
		Source:     src,
		Feedback:   solid(src.Width, src.Height, 0, 0, 0),
	}
}

func TestHashIsDeterministicAndNormalized(t *testing.T) {
	for _, p := range []mgl32.Vec2{{0, 0}, {0.5, 0.25}, {12.5, 3}, {-4, 7.75}, {100, 1.5}} {
		h := Hash(p)
		assert.Equal(t, h, Hash(p))
		assert.GreaterOrEqual(t, h, float32(0))
		assert.LessOrEqual(t, h, float32(1))
	}
	assert.NotEqual(t, Hash(mgl32.Vec2{0.1, 0.2}), Hash(mgl32.Vec2{0.2, 0.1}))
}

func TestImageSampleAtTexelCenters(t *testing.T) {
	im := gradient(8, 4)
	for y := 0; y < 4; y++ {
		for x := 0; x < 8; x++ {
			uv := mgl32.Vec2{(float32(x) + 0.5) / 8, (float32(y) + 0.5) / 4}
			got := im.Sample(uv)
			want := im.Texel(x, y)
			for c := 0; c < 3; c++ {
				assert.InDelta(t, want[c], got[c], 1e-4)
			}
		}
	}
}

func TestImageSampleClampsToEdge(t *testing.T) {
	im := gradient(8, 4)
	assert.Equal(t, im.Texel(0, 0), im.Sample(mgl32.Vec2{-3, -3}))
	assert.Equal(t, im.Texel(7, 3), im.Sample(mgl32.Vec2{5, 5}))
}

func TestImageSampleBilinear(t *testing.T) {
	pix := []byte{
		0, 0, 0, 255,
		255, 255, 255, 255,
	}
	im := NewImage(pix, 2, 1)
	got := im.Sample(mgl32.Vec2{0.5, 0.5})
	assert.InDelta(t, 0.5, got[0], 1e-6)
}

func TestIncompleteImageSamplesBlack(t *testing.T) {
	var nilImage *Image
	assert.Equal(t, mgl32.Vec3{}, nilImage.Sample(mgl32.Vec2{0.5, 0.5}))
	assert.Equal(t, mgl32.Vec3{}, NewImage(make([]byte, 4), 4, 4).Sample(mgl32.Vec2{0.5, 0.5}))
	assert.Equal(t, mgl32.Vec3{}, sample(nil, mgl32.Vec2{0.5, 0.5}))
}

func TestPassthroughReproducesSource(t *testing.T) {
	src := gradient(16, 8)
	in := inputs(src, params.Passthrough, 0.75)
	assert.Equal(t, src.Pix, in.Render(16, 8))
}

func TestDryWetZeroReturnsBaseForEveryMode(t *testing.T) {
	src := gradient(16, 8)
	for m := 0; m < params.NumModes; m++ {
		mode := params.ModeFromIndex(m)
		in := inputs(src, mode, 0)
		assert.Equal(t, src.Pix, in.Render(16, 8), mode.String())
	}
}

func TestDryWetOneReturnsEffect(t *testing.T) {
	src := gradient(16, 8)
	in := inputs(src, params.Tear, 1)
	for _, fc := range []mgl32.Vec2{{0.5, 0.5}, {7.5, 3.5}, {15.5, 7.5}} {
		uv := mgl32.Vec2{fc[0] / 16, fc[1] / 8}
		want := in.Tear(uv)
		got := in.Shade(fc)
		for c := 0; c < 3; c++ {
			assert.InDelta(t, want[c], got[c], 1e-5)
		}
	}

	in = inputs(src, params.Kaleidoscope, 1)
	uv := mgl32.Vec2{3.5 / 16, 5.5 / 8}
	want := in.Kaleidoscope(uv)
	got := in.Shade(mgl32.Vec2{3.5, 5.5})
	for c := 0; c < 3; c++ {
		assert.InDelta(t, want[c], got[c], 1e-5)
	}
}

func TestDryWetIsClamped(t *testing.T) {
	src := gradient(8, 8)
	over := inputs(src, params.Kaleidoscope, 4)
	one := inputs(src, params.Kaleidoscope, 1)
	assert.Equal(t, one.Render(8, 8), over.Render(8, 8))

	under := inputs(src, params.Kaleidoscope, -2)
	assert.Equal(t, src.Pix, under.Render(8, 8))
}

func TestTearOnSolidColorOnlyAddsGrain(t *testing.T) {
	src := solid(16, 16, 255, 0, 0)
	in := inputs(src, params.Tear, 1)
	in.Glitch = 0
	in.Audio = 0

	out := in.Render(16, 16)
	maxGrain := int(math.Ceil(GrainStrength*255)) + 1
	for i := 0; i < len(out); i += 4 {
		assert.Equal(t, byte(255), out[i])
		assert.LessOrEqual(t, int(out[i+1]), maxGrain)
		assert.LessOrEqual(t, int(out[i+2]), maxGrain)
		assert.Equal(t, byte(255), out[i+3])
	}
}

func TestTrailMixesTowardFeedback(t *testing.T) {
	src := gradient(8, 8)
	in := inputs(src, params.Kaleidoscope, 1)
	in.Feedback = solid(8, 8, 0, 255, 0)
	in.Trail = 1

	out := in.Render(8, 8)
	for i := 0; i < len(out); i += 4 {
		assert.Equal(t, []byte{0, 255, 0, 255}, out[i:i+4])
	}
}

func TestModeIsRoundedBeforeDispatch(t *testing.T) {
	src := gradient(8, 8)
	in := inputs(src, params.Passthrough, 1)
	in.Effect = 1.6
	assert.Equal(t, src.Pix, in.Render(8, 8))
}

type mapUniforms map[string]float32

func (m mapUniforms) Float(name string) float32 { return m[name] }
func (m mapUniforms) Vec2(name string) mgl32.Vec2 {
	return mgl32.Vec2{m[name+".x"], m[name+".y"]}
}

func TestBindReadsProgramUniforms(t *testing.T) {
	u := mapUniforms{
		"u_resolution.x": 320, "u_resolution.y": 240,
		"u_time": 2, "u_dryWet": 0.5, "u_amount": 0.25, "u_glitch": 0.125,
		"u_audio": 0.9, "u_effect": 1, "u_psy": 0.7, "u_trail": 0.3,
	}
	src := solid(2, 2, 1, 2, 3)
	in := Bind(u, src, nil)
	require.NotNil(t, in)
	assert.Equal(t, mgl32.Vec2{320, 240}, in.Resolution)
	assert.Equal(t, float32(2), in.Time)
	assert.Equal(t, float32(0.5), in.DryWet)
	assert.Equal(t, float32(0.25), in.Amount)
	assert.Equal(t, float32(0.125), in.Glitch)
	assert.Equal(t, float32(0.9), in.Audio)
	assert.Equal(t, float32(1), in.Effect)
	assert.Equal(t, float32(0.7), in.Psy)
	assert.Equal(t, float32(0.3), in.Trail)
	assert.Same(t, src, in.Source)
	assert.Nil(t, in.Feedback)
}

func TestQuantize(t *testing.T) {
	assert.Equal(t, byte(0), Quantize(-1))
	assert.Equal(t, byte(255), Quantize(2))
	assert.Equal(t, byte(128), Quantize(0.5))
	var nan float32
	nan = nan / nan
	assert.Equal(t, byte(0), Quantize(nan))
}
