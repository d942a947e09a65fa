package graphics

import "time"

// Clock reports seconds since an arbitrary origin.
type Clock interface {
	Time() float64
}

// Context defines the interface for a display surface that owns an OpenGL
// context.
type Context interface {
	Clock
	MakeCurrent()
	Shutdown()
	ShouldClose() bool
	EndFrame()
	GetFramebufferSize() (int, int)
}

// WallClock measures monotonic time since its creation.
type WallClock struct {
	start time.Time
}

func NewWallClock() *WallClock {
	return &WallClock{start: time.Now()}
}

func (c *WallClock) Time() float64 {
	return time.Since(c.start).Seconds()
}

// StepClock advances by a fixed step every time it is read, which makes
// offscreen renders independent of how long each frame takes.
type StepClock struct {
	Step float64
	now  float64
}

// NewStepClock returns a clock advancing 1/fps seconds per reading. The
// first reading is 0.
func NewStepClock(fps int) *StepClock {
	if fps <= 0 {
		fps = 30
	}
	return &StepClock{Step: 1 / float64(fps), now: -1 / float64(fps)}
}

func (c *StepClock) Time() float64 {
	c.now += c.Step
	return c.now
}
