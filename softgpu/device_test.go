package softgpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richinsley/goglitch/effect"
	"github.com/richinsley/goglitch/gpu"
	"github.com/richinsley/goglitch/params"
	"github.com/richinsley/goglitch/shader"
)

func solidRed(w, h int) []byte {
	pix := make([]byte, w*h*4)
	for i := 0; i < len(pix); i += 4 {
		pix[i], pix[i+3] = 255, 255
	}
	return pix
}

func TestCompileParsesUniforms(t *testing.T) {
	dev := New(GlitchKernel)
	p, err := gpu.Compile(dev, shader.GenerateVertexShader(false), shader.GetGlitchFragmentShader())
	require.NoError(t, err)

	found, err := p.ResolveBindings(shader.Uniforms...)
	require.NoError(t, err)
	assert.Len(t, found, len(shader.Uniforms))
}

func TestCompileRejectsSourceWithoutMain(t *testing.T) {
	dev := New(GlitchKernel)
	_, err := gpu.Compile(dev, shader.GenerateVertexShader(true), "uniform float u_time;")
	var ce *gpu.ShaderCompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, gpu.FragmentStage, ce.Stage)
}

func TestLinkRequiresBothStages(t *testing.T) {
	dev := New(GlitchKernel)
	vs, _, ok := dev.CompileShader(gpu.VertexStage, shader.GenerateVertexShader(false))
	require.True(t, ok)
	_, log, ok := dev.LinkProgram(vs, vs)
	assert.False(t, ok)
	assert.NotEmpty(t, log)
}

func TestTexImageLimits(t *testing.T) {
	dev := New(GlitchKernel)
	dev.MaxTextureSize = 16
	id, err := dev.CreateTexture()
	require.NoError(t, err)

	assert.NoError(t, dev.TexImage(id, 16, 16, nil))
	assert.Error(t, dev.TexImage(id, 17, 4, nil))
	assert.Error(t, dev.TexImage(id, 2, 2, make([]byte, 3)))
	assert.Error(t, dev.TexImage(99, 2, 2, nil))

	require.NoError(t, dev.TexImage(id, 1, 1, []byte{1, 2, 3, 4}))
	require.NoError(t, dev.TexImage(id, 1, 1, nil))
	pix, w, h := dev.TextureData(id)
	assert.Equal(t, []byte{0, 0, 0, 0}, pix)
	assert.Equal(t, 1, w)
	assert.Equal(t, 1, h)
}

func TestDrawRunsKernelWithUniforms(t *testing.T) {
	var got struct {
		time  float32
		res   [2]float32
		units []effect.Sampler
	}
	kernel := func(u effect.Uniforms, units []effect.Sampler, w, h int) []byte {
		got.time = u.Float(shader.UTime)
		r := u.Vec2(shader.UResolution)
		got.res = [2]float32{r[0], r[1]}
		got.units = units
		return solidRed(w, h)
	}
	dev := New(kernel)
	p, err := gpu.Compile(dev, shader.GenerateVertexShader(false), shader.GetGlitchFragmentShader())
	require.NoError(t, err)
	tex, err := dev.CreateTexture()
	require.NoError(t, err)
	require.NoError(t, dev.TexImage(tex, 2, 2, nil))

	p.BindParameters(params.NewSnapshot(params.Defaults(), 0, 3, 2, 2))
	dev.BindTexture(0, tex)
	dev.Viewport(2, 2)
	dev.DrawQuad()
	require.NoError(t, dev.Err())

	assert.Equal(t, float32(3), got.time)
	assert.Equal(t, [2]float32{2, 2}, got.res)
	assert.NotNil(t, got.units[0])
	assert.Nil(t, got.units[1])
	assert.Equal(t, solidRed(2, 2), dev.ReadPixels(2, 2))
	assert.Nil(t, dev.ReadPixels(3, 3))
}

func TestDrawWithoutProgramFails(t *testing.T) {
	dev := New(GlitchKernel)
	dev.Viewport(1, 1)
	dev.DrawQuad()
	assert.Error(t, dev.Err())
}

func TestCopyToTexture(t *testing.T) {
	dev := New(func(u effect.Uniforms, units []effect.Sampler, w, h int) []byte { return solidRed(w, h) })
	p, err := gpu.Compile(dev, shader.GenerateVertexShader(false), shader.GetGlitchFragmentShader())
	require.NoError(t, err)
	dev.UseProgram(p.ID())

	tex, err := dev.CreateTexture()
	require.NoError(t, err)
	require.NoError(t, dev.TexImage(tex, 3, 2, nil))
	dev.Viewport(3, 2)
	dev.DrawQuad()
	dev.CopyToTexture(tex, 3, 2)
	require.NoError(t, dev.Err())

	pix, _, _ := dev.TextureData(tex)
	assert.Equal(t, solidRed(3, 2), pix)

	dev.CopyToTexture(tex, 4, 4)
	assert.Error(t, dev.Err())
}

func TestLoseContext(t *testing.T) {
	dev := New(GlitchKernel)
	tex, err := dev.CreateTexture()
	require.NoError(t, err)

	dev.LoseContext()
	assert.ErrorIs(t, dev.Err(), ErrContextLost)
	_, err = dev.CreateTexture()
	assert.ErrorIs(t, err, ErrContextLost)
	assert.ErrorIs(t, dev.TexImage(tex, 1, 1, nil), ErrContextLost)
	_, _, ok := dev.CompileShader(gpu.VertexStage, shader.GenerateVertexShader(false))
	assert.False(t, ok)
}

func TestGlitchKernelPassthrough(t *testing.T) {
	dev := New(GlitchKernel)
	p, err := gpu.Compile(dev, shader.GenerateVertexShader(false), shader.GetGlitchFragmentShader())
	require.NoError(t, err)
	p.BindConstants(effect.Psychedelia)

	fp, err := gpu.NewFramePipeline(dev, 4, 4)
	require.NoError(t, err)
	require.NoError(t, fp.IngestSourceFrame(solidRed(4, 4), 4, 4))
	require.NoError(t, fp.BindForDraw())

	v := params.Defaults()
	v.Mode = params.Passthrough
	v.DryWet = 1
	p.BindParameters(params.NewSnapshot(v, 0, 0, 4, 4))
	dev.Viewport(4, 4)
	dev.DrawQuad()
	require.NoError(t, fp.CommitFeedback())

	assert.Equal(t, solidRed(4, 4), dev.ReadPixels(4, 4))
	assert.Equal(t, uint32(1), dev.BoundTexture(shader.FeedbackUnit)-dev.BoundTexture(shader.SourceUnit))
}
