package params

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"
)

// EffectMode selects which distortion branch the effect program runs.
type EffectMode int

const (
	Tear EffectMode = iota
	Kaleidoscope
	Passthrough
)

// NumModes is the number of selectable effect modes.
const NumModes = 3

func (m EffectMode) String() string {
	switch m {
	case Tear:
		return "tear"
	case Kaleidoscope:
		return "kaleidoscope"
	case Passthrough:
		return "passthrough"
	default:
		return fmt.Sprintf("EffectMode(%d)", int(m))
	}
}

// Uniform returns the value written into the program's u_effect slot.
func (m EffectMode) Uniform() float32 {
	return float32(ModeFromIndex(int(m)))
}

// ModeFromIndex maps a control-surface selector onto a mode, clamping out of
// range selectors to the nearest valid mode.
func ModeFromIndex(i int) EffectMode {
	if i < int(Tear) {
		return Tear
	}
	if i > int(Passthrough) {
		return Passthrough
	}
	return EffectMode(i)
}

// ParseEffectMode accepts a mode name or its numeric selector.
func ParseEffectMode(s string) (EffectMode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "tear", "0":
		return Tear, nil
	case "kaleidoscope", "kaleido", "1":
		return Kaleidoscope, nil
	case "passthrough", "pass", "2":
		return Passthrough, nil
	}
	if i, err := strconv.Atoi(s); err == nil {
		return ModeFromIndex(i), nil
	}
	return Tear, errors.Errorf("unknown effect mode %q", s)
}

// Values holds the control-surface inputs sampled once per render tick.
type Values struct {
	DryWet float32
	Amount float32
	Glitch float32
	Trail  float32
	Mode   EffectMode
}

// Defaults returns the initial control-surface positions.
func Defaults() Values {
	return Values{
		DryWet: 0.75,
		Amount: 0.6,
		Glitch: 0.35,
		Trail:  0,
		Mode:   Tear,
	}
}

// Clamp01 limits v to [0,1]. NaN maps to 0.
func Clamp01(v float32) float32 {
	if v != v || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Snapshot is the immutable parameter set consumed by exactly one frame.
type Snapshot struct {
	DryWet         float32
	Amount         float32
	Glitch         float32
	Trail          float32
	AudioLevel     float32
	Mode           EffectMode
	Elapsed        float64
	ViewportWidth  int
	ViewportHeight int
}

// NewSnapshot builds a frame snapshot, clamping every bounded field.
func NewSnapshot(v Values, audioLevel float32, elapsed float64, width, height int) Snapshot {
	s := Snapshot{
		DryWet:         v.DryWet,
		Amount:         v.Amount,
		Glitch:         v.Glitch,
		Trail:          v.Trail,
		AudioLevel:     audioLevel,
		Mode:           v.Mode,
		Elapsed:        elapsed,
		ViewportWidth:  width,
		ViewportHeight: height,
	}
	return s.Clamp()
}

// Clamp returns a copy of s with every field inside its declared range.
func (s Snapshot) Clamp() Snapshot {
	s.DryWet = Clamp01(s.DryWet)
	s.Amount = Clamp01(s.Amount)
	s.Glitch = Clamp01(s.Glitch)
	s.Trail = Clamp01(s.Trail)
	s.AudioLevel = Clamp01(s.AudioLevel)
	s.Mode = ModeFromIndex(int(s.Mode))
	if s.Elapsed != s.Elapsed || s.Elapsed < 0 {
		s.Elapsed = 0
	}
	if s.ViewportWidth < 1 {
		s.ViewportWidth = 1
	}
	if s.ViewportHeight < 1 {
		s.ViewportHeight = 1
	}
	return s
}

// Controls is the live control surface. Setters may be called from any
// goroutine; the render tick reads a consistent-enough copy with Values.
type Controls struct {
	dryWet atomic.Uint32
	amount atomic.Uint32
	glitch atomic.Uint32
	trail  atomic.Uint32
	mode   atomic.Int32
}

// NewControls returns a control surface initialised to v.
func NewControls(v Values) *Controls {
	c := &Controls{}
	c.SetDryWet(v.DryWet)
	c.SetAmount(v.Amount)
	c.SetGlitch(v.Glitch)
	c.SetTrail(v.Trail)
	c.SetMode(v.Mode)
	return c
}

func storeClamped(a *atomic.Uint32, v float32) {
	a.Store(math.Float32bits(Clamp01(v)))
}

func load(a *atomic.Uint32) float32 {
	return math.Float32frombits(a.Load())
}

func (c *Controls) SetDryWet(v float32) { storeClamped(&c.dryWet, v) }
func (c *Controls) SetAmount(v float32) { storeClamped(&c.amount, v) }
func (c *Controls) SetGlitch(v float32) { storeClamped(&c.glitch, v) }
func (c *Controls) SetTrail(v float32)  { storeClamped(&c.trail, v) }

// SetMode selects the effect mode. Out of range modes are clamped.
func (c *Controls) SetMode(m EffectMode) {
	c.mode.Store(int32(ModeFromIndex(int(m))))
}

// Control names one of the bounded controls.
type Control int

const (
	DryWet Control = iota
	Amount
	Glitch
	Trail
)

func (c Control) String() string {
	switch c {
	case DryWet:
		return "drywet"
	case Amount:
		return "amount"
	case Glitch:
		return "glitch"
	case Trail:
		return "trail"
	default:
		return fmt.Sprintf("Control(%d)", int(c))
	}
}

func (c *Controls) cell(ctrl Control) *atomic.Uint32 {
	switch ctrl {
	case DryWet:
		return &c.dryWet
	case Amount:
		return &c.amount
	case Glitch:
		return &c.glitch
	case Trail:
		return &c.trail
	}
	return nil
}

// Nudge adjusts a bounded control by delta and returns the new value.
func (c *Controls) Nudge(ctrl Control, delta float32) (float32, error) {
	a := c.cell(ctrl)
	if a == nil {
		return 0, errors.Errorf("unknown control %s", ctrl)
	}
	for {
		old := a.Load()
		v := Clamp01(math.Float32frombits(old) + delta)
		if a.CompareAndSwap(old, math.Float32bits(v)) {
			return v, nil
		}
	}
}

// Values samples the current control positions.
func (c *Controls) Values() Values {
	return Values{
		DryWet: load(&c.dryWet),
		Amount: load(&c.amount),
		Glitch: load(&c.glitch),
		Trail:  load(&c.trail),
		Mode:   EffectMode(c.mode.Load()),
	}
}
