//go:build linux

// Package headless creates an OpenGL 4.1 core context through EGL with no
// window system, for offscreen recording on servers and in containers.
package headless

/*
#cgo LDFLAGS: -lEGL
#include <EGL/egl.h>
#include <EGL/eglext.h>

static PFNEGLQUERYDEVICESEXTPROC query_devices_fn = NULL;
static PFNEGLGETPLATFORMDISPLAYEXTPROC platform_display_fn = NULL;

static void load_device_extensions() {
    query_devices_fn = (PFNEGLQUERYDEVICESEXTPROC) eglGetProcAddress("eglQueryDevicesEXT");
    platform_display_fn = (PFNEGLGETPLATFORMDISPLAYEXTPROC) eglGetProcAddress("eglGetPlatformDisplayEXT");
}

static EGLBoolean query_devices(EGLint max, EGLDeviceEXT *devices, EGLint *count) {
    if (!query_devices_fn) {
        return EGL_FALSE;
    }
    return query_devices_fn(max, devices, count);
}

static EGLDisplay device_display(EGLDeviceEXT device) {
    if (!platform_display_fn) {
        return EGL_NO_DISPLAY;
    }
    return platform_display_fn(EGL_PLATFORM_DEVICE_EXT, (void *) device, NULL);
}
*/
import "C"

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Context is an EGL display, pbuffer surface and GL context.
type Context struct {
	display C.EGLDisplay
	surface C.EGLSurface
	context C.EGLContext
}

// openDisplay prefers the first enumerable GPU device and falls back to the
// default display.
func openDisplay() (C.EGLDisplay, error) {
	C.load_device_extensions()

	var count C.EGLint
	if C.query_devices(0, nil, &count) == C.EGL_TRUE && count > 0 {
		devices := make([]C.EGLDeviceEXT, count)
		if C.query_devices(count, &devices[0], &count) == C.EGL_TRUE {
			for i := 0; i < int(count); i++ {
				if d := C.device_display(devices[i]); d != C.EGLDisplay(C.EGL_NO_DISPLAY) {
					logrus.WithField("device", i).Debug("Using EGL device display")
					return d, nil
				}
			}
		}
	}

	logrus.Debug("EGL device enumeration unavailable, using the default display")
	d := C.eglGetDisplay(C.EGLNativeDisplayType(C.EGL_DEFAULT_DISPLAY))
	if d == C.EGLDisplay(C.EGL_NO_DISPLAY) {
		return d, errors.New("no EGL display available")
	}
	return d, nil
}

// New creates a width x height pbuffer with a current GL 4.1 core context.
// Call it from the thread that will issue GL calls.
func New(width, height int) (*Context, error) {
	display, err := openDisplay()
	if err != nil {
		return nil, err
	}
	c := &Context{
		display: display,
		surface: C.EGLSurface(C.EGL_NO_SURFACE),
		context: C.EGLContext(C.EGL_NO_CONTEXT),
	}

	var major, minor C.EGLint
	if C.eglInitialize(display, &major, &minor) == C.EGL_FALSE {
		return nil, errors.Errorf("eglInitialize failed (0x%x)", int(C.eglGetError()))
	}
	if C.eglBindAPI(C.EGL_OPENGL_API) == C.EGL_FALSE {
		c.Shutdown()
		return nil, errors.New("EGL has no desktop OpenGL support")
	}

	configAttribs := []C.EGLint{
		C.EGL_SURFACE_TYPE, C.EGL_PBUFFER_BIT,
		C.EGL_RED_SIZE, 8,
		C.EGL_GREEN_SIZE, 8,
		C.EGL_BLUE_SIZE, 8,
		C.EGL_ALPHA_SIZE, 8,
		C.EGL_RENDERABLE_TYPE, C.EGL_OPENGL_BIT,
		C.EGL_NONE,
	}
	var config C.EGLConfig
	var n C.EGLint
	if C.eglChooseConfig(display, &configAttribs[0], &config, 1, &n) == C.EGL_FALSE || n == 0 {
		c.Shutdown()
		return nil, errors.New("no matching EGL config")
	}

	surfaceAttribs := []C.EGLint{
		C.EGL_WIDTH, C.EGLint(width),
		C.EGL_HEIGHT, C.EGLint(height),
		C.EGL_NONE,
	}
	c.surface = C.eglCreatePbufferSurface(display, config, &surfaceAttribs[0])
	if c.surface == C.EGLSurface(C.EGL_NO_SURFACE) {
		c.Shutdown()
		return nil, errors.Errorf("eglCreatePbufferSurface failed (0x%x)", int(C.eglGetError()))
	}

	contextAttribs := []C.EGLint{
		C.EGL_CONTEXT_MAJOR_VERSION, 4,
		C.EGL_CONTEXT_MINOR_VERSION, 1,
		C.EGL_CONTEXT_OPENGL_PROFILE_MASK, C.EGL_CONTEXT_OPENGL_CORE_PROFILE_BIT,
		C.EGL_NONE,
	}
	c.context = C.eglCreateContext(display, config, C.EGLContext(C.EGL_NO_CONTEXT), &contextAttribs[0])
	if c.context == C.EGLContext(C.EGL_NO_CONTEXT) {
		c.Shutdown()
		return nil, errors.Errorf("eglCreateContext failed (0x%x)", int(C.eglGetError()))
	}

	c.MakeCurrent()
	logrus.WithFields(logrus.Fields{
		"function": "headless.New",
		"egl":      [2]int{int(major), int(minor)},
		"width":    width,
		"height":   height,
	}).Info("Headless EGL context ready")
	return c, nil
}

func (c *Context) MakeCurrent() {
	C.eglMakeCurrent(c.display, c.surface, c.surface, c.context)
}

// Shutdown releases the context, surface and display.
func (c *Context) Shutdown() {
	none := C.EGLSurface(C.EGL_NO_SURFACE)
	C.eglMakeCurrent(c.display, none, none, C.EGLContext(C.EGL_NO_CONTEXT))
	if c.context != C.EGLContext(C.EGL_NO_CONTEXT) {
		C.eglDestroyContext(c.display, c.context)
	}
	if c.surface != none {
		C.eglDestroySurface(c.display, c.surface)
	}
	C.eglTerminate(c.display)
}
