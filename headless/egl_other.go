//go:build !linux

package headless

import "github.com/pkg/errors"

type Context struct{}

func New(width, height int) (*Context, error) {
	return nil, errors.New("headless EGL rendering is only supported on linux")
}

func (c *Context) MakeCurrent() {}

func (c *Context) Shutdown() {}
