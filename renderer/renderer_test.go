package renderer

import (
	"context"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richinsley/goglitch/effect"
	"github.com/richinsley/goglitch/gpu"
	"github.com/richinsley/goglitch/graphics"
	"github.com/richinsley/goglitch/params"
	"github.com/richinsley/goglitch/shader"
	"github.com/richinsley/goglitch/softgpu"
	"github.com/richinsley/goglitch/video"
)

// spy wraps the software device and records, for every draw, what the
// feedback unit held when the draw started and what the draw produced.
type spy struct {
	*softgpu.Device
	width, height int
	feedbackReads [][]byte
	outputs       [][]byte
	events        *[]string
}

func newSpy(kernel softgpu.Kernel) *spy {
	return &spy{Device: softgpu.New(kernel)}
}

func (s *spy) Viewport(w, h int) {
	s.width, s.height = w, h
	s.Device.Viewport(w, h)
}

func (s *spy) DrawQuad() {
	fb, _, _ := s.TextureData(s.BoundTexture(shader.FeedbackUnit))
	s.feedbackReads = append(s.feedbackReads, fb)
	s.Device.DrawQuad()
	s.outputs = append(s.outputs, s.ReadPixels(s.width, s.height))
}

func (s *spy) DeleteProgram(id uint32) {
	if s.events != nil {
		*s.events = append(*s.events, "gpu")
	}
	s.Device.DeleteProgram(id)
}

func (s *spy) DeleteTexture(id uint32) {
	if s.events != nil {
		*s.events = append(*s.events, "gpu")
	}
	s.Device.DeleteTexture(id)
}

// uniformLog records selected uniforms of every draw.
type uniformLog struct {
	time  []float32
	audio []float32
	res   []mgl32.Vec2
}

func (l *uniformLog) kernel(u effect.Uniforms, units []effect.Sampler, w, h int) []byte {
	l.time = append(l.time, u.Float(shader.UTime))
	l.audio = append(l.audio, u.Float(shader.UAudio))
	l.res = append(l.res, u.Vec2(shader.UResolution))
	return softgpu.GlitchKernel(u, units, w, h)
}

type fixedLevel struct {
	level  float32
	events *[]string
}

func (f fixedLevel) Level() float32 { return f.level }
func (f fixedLevel) Close() error {
	if f.events != nil {
		*f.events = append(*f.events, "audio")
	}
	return nil
}

type loggingScheduler struct {
	*ManualScheduler
	events *[]string
}

func (l loggingScheduler) Cancel() {
	*l.events = append(*l.events, "cancel")
	l.ManualScheduler.Cancel()
}

type sequenceClock struct {
	times []float64
	i     int
}

func (c *sequenceClock) Time() float64 {
	t := c.times[min(c.i, len(c.times)-1)]
	c.i++
	return t
}

func gradient(w, h int) []byte {
	pix := make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * 4
			pix[i] = byte(x * 255 / max(w-1, 1))
			pix[i+1] = byte(y * 255 / max(h-1, 1))
			pix[i+2] = 64
			pix[i+3] = 255
		}
	}
	return pix
}

func newTestSession(t *testing.T, dev gpu.Device, cfg Config) (*Session, *ManualScheduler) {
	t.Helper()
	sched := NewManualScheduler()
	cfg.Device = dev
	if cfg.Scheduler == nil {
		cfg.Scheduler = sched
	} else if ls, ok := cfg.Scheduler.(loggingScheduler); ok {
		sched = ls.ManualScheduler
	}
	if cfg.Clock == nil {
		cfg.Clock = graphics.NewStepClock(30)
	}
	if cfg.Width == 0 {
		cfg.Width, cfg.Height = 8, 8
	}
	s, err := NewSession(cfg)
	require.NoError(t, err)
	return s, sched
}

func TestSessionStateTransitions(t *testing.T) {
	s, sched := newTestSession(t, softgpu.New(softgpu.GlitchKernel), Config{})
	assert.Equal(t, Ready, s.State())

	require.NoError(t, s.Start())
	assert.Equal(t, Running, s.State())
	assert.Error(t, s.Start())
	assert.True(t, sched.Pending())

	require.True(t, sched.Step())
	assert.Equal(t, uint64(1), s.Ticks())
	assert.True(t, sched.Pending())

	s.Teardown()
	assert.Equal(t, Stopped, s.State())
	assert.False(t, sched.Pending())
	assert.Error(t, s.Start(), "no way back from stopped")

	s.Tick()
	assert.Equal(t, uint64(1), s.Ticks())
	assert.NoError(t, s.Err())
	s.Teardown()
}

func TestEndToEndSolidRed(t *testing.T) {
	controls := params.NewControls(params.Defaults())
	controls.SetMode(params.Passthrough)
	controls.SetDryWet(1)
	s, sched := newTestSession(t, softgpu.New(softgpu.GlitchKernel), Config{
		Controls: controls,
		Frames:   video.Static(video.Solid(8, 8, 255, 0, 0), 8, 8),
	})
	defer s.Teardown()

	require.NoError(t, s.Start())
	require.True(t, sched.Step())
	assert.Equal(t, video.Solid(8, 8, 255, 0, 0), s.ReadFrame())

	controls.SetMode(params.Tear)
	controls.SetAmount(1)
	controls.SetGlitch(0)
	require.True(t, sched.Step())

	out := s.ReadFrame()
	require.Len(t, out, 8*8*4)
	maxGrain := int(math.Ceil(effect.GrainStrength*255)) + 1
	for i := 0; i < len(out); i += 4 {
		assert.Equal(t, byte(255), out[i])
		assert.LessOrEqual(t, int(out[i+1]), maxGrain)
		assert.LessOrEqual(t, int(out[i+2]), maxGrain)
	}
}

func TestFeedbackHoldsPreviousTickOutput(t *testing.T) {
	dev := newSpy(softgpu.GlitchKernel)
	controls := params.NewControls(params.Defaults())
	controls.SetDryWet(1)
	controls.SetTrail(0.5)
	s, sched := newTestSession(t, dev, Config{
		Controls: controls,
		Frames:   video.Static(gradient(8, 8), 8, 8),
		Audio:    fixedLevel{level: 0.5},
	})
	defer s.Teardown()

	require.NoError(t, s.Start())
	for i := 0; i < 4; i++ {
		require.True(t, sched.Step())
	}
	require.Len(t, dev.feedbackReads, 4)
	require.Len(t, dev.outputs, 4)

	assert.Equal(t, make([]byte, 8*8*4), dev.feedbackReads[0])
	for k := 0; k < 3; k++ {
		assert.Equal(t, dev.outputs[k], dev.feedbackReads[k+1], "feedback at tick %d", k+1)
	}
	assert.NotEqual(t, dev.outputs[0], dev.outputs[1])
}

func TestResizeZeroesFeedbackAndUpdatesResolution(t *testing.T) {
	var uniforms uniformLog
	dev := newSpy(uniforms.kernel)
	controls := params.NewControls(params.Defaults())
	controls.SetMode(params.Passthrough)
	controls.SetDryWet(1)
	s, sched := newTestSession(t, dev, Config{
		Controls: controls,
		Frames:   video.Static(video.Solid(4, 4, 255, 0, 0), 4, 4),
		Width:    4,
		Height:   4,
	})
	defer s.Teardown()

	require.NoError(t, s.Start())
	require.True(t, sched.Step())
	require.True(t, sched.Step())
	assert.Equal(t, video.Solid(4, 4, 255, 0, 0), dev.feedbackReads[1])

	s.Resize(6, 3)
	assert.Equal(t, 4, dev.width, "resize is applied on the next tick")
	require.True(t, sched.Step())

	assert.Equal(t, make([]byte, 6*3*4), dev.feedbackReads[2])
	assert.Equal(t, mgl32.Vec2{6, 3}, uniforms.res[2])
	w, h := s.Size()
	assert.Equal(t, 6, w)
	assert.Equal(t, 3, h)
	assert.Equal(t, video.Solid(6, 3, 255, 0, 0), s.ReadFrame(), "source frame uploaded again")

	require.True(t, sched.Step())
	assert.Equal(t, video.Solid(6, 3, 255, 0, 0), dev.feedbackReads[3])

	s.Resize(6, 3)
	require.True(t, sched.Step())
	assert.Equal(t, make([]byte, 6*3*4), dev.feedbackReads[4], "same-size resize still clears feedback")
	assert.Equal(t, video.Solid(6, 3, 255, 0, 0), s.ReadFrame())
}

func TestAudioLevelReachesProgram(t *testing.T) {
	var uniforms uniformLog
	s, sched := newTestSession(t, softgpu.New(uniforms.kernel), Config{Audio: fixedLevel{level: 0.9}})
	defer s.Teardown()
	require.NoError(t, s.Start())
	require.True(t, sched.Step())
	assert.Equal(t, []float32{0.9}, uniforms.audio)

	var silent uniformLog
	s2, sched2 := newTestSession(t, softgpu.New(silent.kernel), Config{})
	defer s2.Teardown()
	require.NoError(t, s2.Start())
	require.True(t, sched2.Step())
	assert.Equal(t, []float32{0}, silent.audio)
}

func TestElapsedNeverDecreases(t *testing.T) {
	var uniforms uniformLog
	clock := &sequenceClock{times: []float64{10, 11, 9, 12.5}}
	s, sched := newTestSession(t, softgpu.New(uniforms.kernel), Config{Clock: clock})
	defer s.Teardown()

	require.NoError(t, s.Start())
	for i := 0; i < 4; i++ {
		require.True(t, sched.Step())
	}
	assert.Equal(t, []float32{0, 1, 1, 2.5}, uniforms.time)
}

func TestStepClockFirstFrameAtZero(t *testing.T) {
	var uniforms uniformLog
	s, sched := newTestSession(t, softgpu.New(uniforms.kernel), Config{Clock: graphics.NewStepClock(4)})
	defer s.Teardown()

	require.NoError(t, s.Start())
	for i := 0; i < 3; i++ {
		require.True(t, sched.Step())
	}
	assert.Equal(t, []float32{0, 0.25, 0.5}, uniforms.time)
}

func TestTeardownOrder(t *testing.T) {
	var events []string
	dev := newSpy(softgpu.GlitchKernel)
	dev.events = &events
	s, sched := newTestSession(t, dev, Config{
		Audio:     fixedLevel{events: &events},
		Scheduler: loggingScheduler{ManualScheduler: NewManualScheduler(), events: &events},
	})
	require.NoError(t, s.Start())
	require.True(t, sched.Step())

	s.Teardown()
	s.Teardown()
	assert.Equal(t, []string{"cancel", "audio", "gpu", "gpu", "gpu"}, events)
}

func TestContextLossStopsSession(t *testing.T) {
	dev := softgpu.New(softgpu.GlitchKernel)
	var stopErr error
	s, sched := newTestSession(t, dev, Config{OnStop: func(err error) { stopErr = err }})
	defer s.Teardown()

	require.NoError(t, s.Start())
	require.True(t, sched.Step())

	dev.LoseContext()
	require.True(t, sched.Step())
	assert.Equal(t, Stopped, s.State())
	assert.False(t, sched.Pending())

	var ae *gpu.ResourceAllocationError
	require.ErrorAs(t, s.Err(), &ae)
	assert.ErrorIs(t, s.Err(), softgpu.ErrContextLost)
	assert.Equal(t, s.Err(), stopErr)
	assert.Equal(t, uint64(1), s.Ticks())
}

func TestMalformedFrameIsSkipped(t *testing.T) {
	s, sched := newTestSession(t, softgpu.New(softgpu.GlitchKernel), Config{
		Frames: video.Static(make([]byte, 7), 2, 2),
	})
	defer s.Teardown()
	require.NoError(t, s.Start())
	require.True(t, sched.Step())
	assert.Equal(t, Running, s.State())
}

func TestNewSessionFailures(t *testing.T) {
	_, err := NewSession(Config{})
	var ie *InitializationError
	require.ErrorAs(t, err, &ie)

	_, err = NewSession(Config{
		Device:         softgpu.New(softgpu.GlitchKernel),
		FragmentSource: "#version 300 es\nprecision highp float;",
	})
	require.ErrorAs(t, err, &ie)
	var ce *gpu.ShaderCompileError
	assert.ErrorAs(t, err, &ce)

	dev := softgpu.New(softgpu.GlitchKernel)
	dev.MaxTextureSize = 16
	_, err = NewSession(Config{Device: dev, Width: 64, Height: 64})
	require.ErrorAs(t, err, &ie)
	var ae *gpu.ResourceAllocationError
	assert.ErrorAs(t, err, &ae)
}

type collectSink struct {
	frames [][]byte
	fail   error
}

func (c *collectSink) WriteFrame(pix []byte, w, h int) error {
	if c.fail != nil {
		return c.fail
	}
	c.frames = append(c.frames, pix)
	return nil
}

func TestRecord(t *testing.T) {
	s, sched := newTestSession(t, softgpu.New(softgpu.GlitchKernel), Config{
		Frames: video.Static(gradient(8, 8), 8, 8),
	})
	defer s.Teardown()

	sink := &collectSink{}
	require.NoError(t, Record(context.Background(), s, sched, 3, sink))
	require.Len(t, sink.frames, 3)
	for _, f := range sink.frames {
		assert.Len(t, f, 8*8*4)
	}
	assert.Equal(t, uint64(3), s.Ticks())
}

func TestRecordStopsOnCancelAndSinkError(t *testing.T) {
	s, sched := newTestSession(t, softgpu.New(softgpu.GlitchKernel), Config{})
	defer s.Teardown()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Record(ctx, s, sched, 0, &collectSink{}), context.Canceled)

	sinkErr := errors.New("disk full")
	err := Record(context.Background(), s, sched, 2, &collectSink{fail: sinkErr})
	assert.ErrorIs(t, err, sinkErr)
}
