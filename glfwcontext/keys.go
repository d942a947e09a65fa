package glfwcontext

import (
	glfw "github.com/go-gl/glfw/v3.3/glfw"
	"github.com/sirupsen/logrus"

	"github.com/richinsley/goglitch/params"
)

// ControlStep is how far one key press moves a continuous control.
const ControlStep = 0.05

// KeyBinding maps a key to a control change.
type KeyBinding struct {
	Key   glfw.Key
	Mode  *params.EffectMode
	Field params.Control
	Delta float32
}

func mode(m params.EffectMode) *params.EffectMode { return &m }

// DefaultKeyBindings: 1/2/3 select the mode, up/down dry/wet, left/right
// amount, G/H glitch, T/Y trail.
var DefaultKeyBindings = []KeyBinding{
	{Key: glfw.Key1, Mode: mode(params.Tear)},
	{Key: glfw.Key2, Mode: mode(params.Kaleidoscope)},
	{Key: glfw.Key3, Mode: mode(params.Passthrough)},
	{Key: glfw.KeyUp, Field: params.DryWet, Delta: ControlStep},
	{Key: glfw.KeyDown, Field: params.DryWet, Delta: -ControlStep},
	{Key: glfw.KeyRight, Field: params.Amount, Delta: ControlStep},
	{Key: glfw.KeyLeft, Field: params.Amount, Delta: -ControlStep},
	{Key: glfw.KeyH, Field: params.Glitch, Delta: ControlStep},
	{Key: glfw.KeyG, Field: params.Glitch, Delta: -ControlStep},
	{Key: glfw.KeyY, Field: params.Trail, Delta: ControlStep},
	{Key: glfw.KeyT, Field: params.Trail, Delta: -ControlStep},
}

// Apply performs the binding's change on controls.
func (b KeyBinding) Apply(controls *params.Controls) {
	if b.Mode != nil {
		controls.SetMode(*b.Mode)
		logrus.WithField("mode", b.Mode.String()).Info("Effect mode changed")
		return
	}
	v, err := controls.Nudge(b.Field, b.Delta)
	if err != nil {
		logrus.WithError(err).Warn("Ignoring key binding")
		return
	}
	logrus.WithField(b.Field.String(), v).Debug("Control changed")
}

// BindControls registers bindings on the window.
func (c *Context) BindControls(controls *params.Controls, bindings []KeyBinding) {
	for _, b := range bindings {
		c.RegisterKeyCallback(b.Key, func() { b.Apply(controls) })
	}
}
