package gpu

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrFeedbackNotCommitted is returned when a draw is bound before the
// previous draw's output has been committed to the feedback texture.
var ErrFeedbackNotCommitted = errors.New("feedback texture not committed since last draw")

// ShaderCompileError carries the driver's info log for a failed stage.
type ShaderCompileError struct {
	Stage Stage
	Log   string
}

func (e *ShaderCompileError) Error() string {
	return fmt.Sprintf("failed to compile %s shader: %s", e.Stage, strings.TrimRight(e.Log, "\x00\n "))
}

type ProgramLinkError struct {
	Log string
}

func (e *ProgramLinkError) Error() string {
	return fmt.Sprintf("failed to link program: %s", strings.TrimRight(e.Log, "\x00\n "))
}

// BindingNotFoundError lists uniform names the program does not expose.
type BindingNotFoundError struct {
	Names []string
}

func (e *BindingNotFoundError) Error() string {
	return fmt.Sprintf("uniform bindings not found: %s", strings.Join(e.Names, ", "))
}

// ResourceAllocationError reports a texture or context failure. It is fatal
// to a render session.
type ResourceAllocationError struct {
	Op  string
	Err error
}

func (e *ResourceAllocationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ResourceAllocationError) Unwrap() error { return e.Err }
