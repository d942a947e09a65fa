// Package renderer drives the glitch program one tick at a time. A Session
// owns every GPU object it creates; ticks are requested through an injected
// Scheduler so the same loop runs against a display or synchronously.
package renderer

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/richinsley/goglitch/audio"
	"github.com/richinsley/goglitch/effect"
	"github.com/richinsley/goglitch/gpu"
	"github.com/richinsley/goglitch/graphics"
	"github.com/richinsley/goglitch/params"
	"github.com/richinsley/goglitch/shader"
	"github.com/richinsley/goglitch/video"
)

// State is the lifecycle stage of a Session.
type State int32

const (
	Uninitialized State = iota
	Ready
	Running
	Stopped
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// InitializationError is returned by NewSession when the program or the
// frame textures cannot be created.
type InitializationError struct {
	Err error
}

func (e *InitializationError) Error() string {
	return "failed to initialize render session: " + e.Err.Error()
}

func (e *InitializationError) Unwrap() error { return e.Err }

// FrameSource yields the newest source frame.
type FrameSource interface {
	Latest() (video.Frame, bool)
}

// Config describes a session. Only Device is required.
type Config struct {
	Device gpu.Device
	// Initial viewport; values below 1 are raised to 1.
	Width  int
	Height int

	Controls  *params.Controls
	Audio     audio.LevelSource
	Frames    FrameSource
	Scheduler Scheduler
	Clock     graphics.Clock

	// OnStop is called on the render goroutine when a tick fails.
	OnStop func(error)

	// Program sources; the glitch program when empty.
	VertexSource   string
	FragmentSource string
}

type size struct{ w, h int }

// Session is one render session. Apart from Resize, State and Err, its
// methods must be called on the goroutine owning the device.
type Session struct {
	dev      gpu.Device
	program  *gpu.Program
	frames   *gpu.FramePipeline
	controls *params.Controls
	audio    audio.LevelSource
	source   FrameSource
	sched    Scheduler
	clock    graphics.Clock
	onStop   func(error)

	state   atomic.Int32
	resize  atomic.Pointer[size]
	width   int
	height  int
	start   float64
	started bool
	elapsed float64
	lastSeq uint64
	ticks   uint64

	mu       sync.Mutex
	err      error
	tornDown bool
}

// NewSession compiles the program, binds its constant inputs and allocates
// the frame textures. On failure nothing stays allocated and the error is an
// *InitializationError.
func NewSession(cfg Config) (*Session, error) {
	if cfg.Device == nil {
		return nil, &InitializationError{Err: errors.New("no gpu device")}
	}
	s := &Session{
		dev:      cfg.Device,
		controls: cfg.Controls,
		audio:    cfg.Audio,
		source:   cfg.Frames,
		sched:    cfg.Scheduler,
		clock:    cfg.Clock,
		onStop:   cfg.OnStop,
		width:    max(cfg.Width, 1),
		height:   max(cfg.Height, 1),
	}
	if s.controls == nil {
		s.controls = params.NewControls(params.Defaults())
	}
	if s.audio == nil {
		s.audio = audio.Silent{}
	}
	if s.sched == nil {
		s.sched = NewManualScheduler()
	}
	if s.clock == nil {
		s.clock = graphics.NewWallClock()
	}

	vs, fs := cfg.VertexSource, cfg.FragmentSource
	if vs == "" {
		vs = shader.GenerateVertexShader(false)
	}
	if fs == "" {
		fs = shader.GetGlitchFragmentShader()
	}

	var err error
	s.program, err = gpu.Compile(s.dev, vs, fs)
	if err != nil {
		return nil, &InitializationError{Err: err}
	}
	if _, err := s.program.ResolveBindings(shader.Uniforms...); err != nil {
		logrus.WithError(err).Warn("Glitch program is missing uniforms; they will be skipped")
	}
	s.program.BindConstants(effect.Psychedelia)

	s.frames, err = gpu.NewFramePipeline(s.dev, s.width, s.height)
	if err != nil {
		s.program.Destroy()
		return nil, &InitializationError{Err: err}
	}

	s.state.Store(int32(Ready))
	logrus.WithFields(logrus.Fields{
		"function": "NewSession",
		"width":    s.width,
		"height":   s.height,
	}).Info("Render session ready")
	return s, nil
}

func (s *Session) State() State { return State(s.state.Load()) }

// Err returns the error that stopped the session, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Size returns the viewport of the last tick.
func (s *Session) Size() (int, int) { return s.width, s.height }

// Ticks returns the number of completed ticks.
func (s *Session) Ticks() uint64 { return s.ticks }

func (s *Session) Controls() *params.Controls { return s.controls }

// Start begins scheduling ticks. Only a Ready session can start.
func (s *Session) Start() error {
	if !s.state.CompareAndSwap(int32(Ready), int32(Running)) {
		return errors.Errorf("cannot start a %s session", s.State())
	}
	s.sched.Schedule(s.Tick)
	return nil
}

// Resize requests a new viewport. It may be called from any goroutine and
// takes effect at the start of the next tick.
func (s *Session) Resize(width, height int) {
	s.resize.Store(&size{w: max(width, 1), h: max(height, 1)})
}

// Tick renders one frame and schedules the next. Ticks on a session that is
// not running do nothing.
func (s *Session) Tick() {
	if s.State() != Running {
		return
	}
	if err := s.renderFrame(); err != nil {
		s.stop(err)
		return
	}
	s.ticks++
	s.sched.Schedule(s.Tick)
}

func (s *Session) renderFrame() error {
	if sz := s.resize.Swap(nil); sz != nil {
		if err := s.frames.Resize(sz.w, sz.h); err != nil {
			return err
		}
		s.width, s.height = sz.w, sz.h
		// The source texture was reallocated; upload the frame again.
		s.lastSeq = 0
	}

	// Time is measured from the first tick, which renders at elapsed 0.
	now := s.clock.Time()
	if !s.started {
		s.start, s.started = now, true
	}
	elapsed := now - s.start
	if elapsed < s.elapsed || elapsed != elapsed {
		elapsed = s.elapsed
	}
	s.elapsed = elapsed

	snap := params.NewSnapshot(s.controls.Values(), s.audio.Level(), elapsed, s.width, s.height)

	if err := s.ingest(); err != nil {
		return err
	}
	if err := s.frames.BindForDraw(); err != nil {
		return err
	}
	s.program.BindParameters(snap)
	s.dev.Viewport(s.width, s.height)
	s.dev.DrawQuad()
	return s.frames.CommitFeedback()
}

func (s *Session) ingest() error {
	if s.source == nil {
		return nil
	}
	f, ok := s.source.Latest()
	if !ok || f.Seq == s.lastSeq {
		return nil
	}
	err := s.frames.IngestSourceFrame(f.Pix, f.Width, f.Height)
	var ae *gpu.ResourceAllocationError
	if errors.As(err, &ae) {
		return err
	}
	if err != nil {
		logrus.WithError(err).WithField("seq", f.Seq).Warn("Dropping malformed source frame")
	}
	s.lastSeq = f.Seq
	return nil
}

func (s *Session) stop(err error) {
	var ae *gpu.ResourceAllocationError
	if !errors.As(err, &ae) {
		err = &gpu.ResourceAllocationError{Op: "render tick", Err: err}
	}
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	s.state.Store(int32(Stopped))
	s.sched.Cancel()

	logrus.WithError(err).WithField("ticks", s.ticks).Error("Render session stopped")
	if s.onStop != nil {
		s.onStop(err)
	}
}

// ReadFrame returns the pixels of the last rendered frame, row 0 at the
// bottom.
func (s *Session) ReadFrame() []byte {
	return s.dev.ReadPixels(s.width, s.height)
}

// Teardown stops scheduling, closes the audio subscription and releases the
// program and textures, in that order. It is safe to call more than once.
func (s *Session) Teardown() {
	s.mu.Lock()
	if s.tornDown {
		s.mu.Unlock()
		return
	}
	s.tornDown = true
	s.mu.Unlock()

	s.state.Store(int32(Stopped))
	s.sched.Cancel()
	if err := s.audio.Close(); err != nil {
		logrus.WithError(err).Warn("Failed to close audio subscription")
	}
	s.program.Destroy()
	s.frames.Destroy()
	logrus.WithField("ticks", s.ticks).Info("Render session torn down")
}
