package glfwcontext

import (
	"runtime"
	"sync"

	glfw "github.com/go-gl/glfw/v3.3/glfw"
	"github.com/sirupsen/logrus"

	"github.com/richinsley/goglitch/graphics"
)

// Context is a GLFW window with an OpenGL 4.1 core context. It also acts as
// the display-refresh scheduler of a render session: Run executes the
// scheduled tick once per refresh and then presents the frame.
type Context struct {
	window       *glfw.Window
	keyCallbacks map[glfw.Key]func()
	onResize     func(width, height int)
	onPresent    func(width, height int)

	mu        sync.Mutex
	next      func()
	cancelled bool
}

var _ graphics.Context = (*Context)(nil)

// New creates a window of width x height. Hidden windows back offscreen
// rendering.
func New(width, height int, title string, visible bool) (*Context, error) {
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	if visible {
		glfw.WindowHint(glfw.Resizable, glfw.True)
	} else {
		glfw.WindowHint(glfw.Visible, glfw.False)
	}

	win, err := glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		return nil, err
	}

	c := &Context{
		window:       win,
		keyCallbacks: make(map[glfw.Key]func()),
	}
	win.SetKeyCallback(c.glfwKeyCallback)
	win.SetFramebufferSizeCallback(c.glfwFramebufferSizeCallback)
	win.MakeContextCurrent()
	glfw.SwapInterval(1)
	return c, nil
}

// RegisterKeyCallback registers f to run when key is pressed or held.
func (c *Context) RegisterKeyCallback(key glfw.Key, f func()) {
	c.keyCallbacks[key] = f
}

// OnResize registers the framebuffer size listener.
func (c *Context) OnResize(f func(width, height int)) {
	c.onResize = f
}

// OnPresent registers f to copy the rendered frame into the window's
// framebuffer before each swap.
func (c *Context) OnPresent(f func(width, height int)) {
	c.onPresent = f
}

func (c *Context) glfwKeyCallback(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	if key == glfw.KeyEscape && action == glfw.Press {
		w.SetShouldClose(true)
	}
	if action == glfw.Press || action == glfw.Repeat {
		if callback, ok := c.keyCallbacks[key]; ok {
			callback()
		}
	}
}

func (c *Context) glfwFramebufferSizeCallback(w *glfw.Window, width, height int) {
	if c.onResize != nil && width > 0 && height > 0 {
		c.onResize(width, height)
	}
}

// Schedule queues tick for the next refresh.
func (c *Context) Schedule(tick func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.cancelled {
		c.next = tick
	}
}

func (c *Context) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelled = true
	c.next = nil
}

func (c *Context) take() func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	tick := c.next
	c.next = nil
	return tick
}

// Run executes scheduled ticks once per refresh until the window is closed
// or nothing is scheduled any more. It must run on the main thread.
func (c *Context) Run() {
	for !c.ShouldClose() {
		tick := c.take()
		if tick == nil {
			logrus.Debug("Nothing scheduled, leaving display loop")
			return
		}
		tick()
		if c.onPresent != nil {
			c.onPresent(c.GetFramebufferSize())
		}
		c.EndFrame()
	}
}

func (c *Context) MakeCurrent() {
	c.window.MakeContextCurrent()
}

func (c *Context) Shutdown() {
	c.window.Destroy()
}

func (c *Context) ShouldClose() bool {
	return c.window.ShouldClose()
}

func (c *Context) EndFrame() {
	c.window.SwapBuffers()
	glfw.PollEvents()
}

func (c *Context) GetFramebufferSize() (int, int) {
	return c.window.GetFramebufferSize()
}

func (c *Context) Time() float64 {
	return glfw.GetTime()
}

// InitGraphics initializes GLFW. Must be called from the main thread.
func InitGraphics() error {
	runtime.LockOSThread()
	if err := glfw.Init(); err != nil {
		return err
	}
	logrus.Info("GLFW initialized")
	return nil
}

// TerminateGraphics shuts GLFW down. Must be called from the main thread.
func TerminateGraphics() {
	glfw.Terminate()
	logrus.Info("GLFW terminated")
}
