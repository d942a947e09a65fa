package gpu

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/richinsley/goglitch/shader"
)

// FramePipeline owns the source texture and the feedback texture. The
// feedback texture always holds the output of the last committed draw, or
// zeros after creation and after every resize.
type FramePipeline struct {
	dev      Device
	current  uint32
	feedback uint32
	width    int
	height   int
	bound    bool
}

// NewFramePipeline allocates both textures at width x height.
func NewFramePipeline(dev Device, width, height int) (*FramePipeline, error) {
	fp := &FramePipeline{dev: dev}
	var err error
	if fp.current, err = dev.CreateTexture(); err != nil {
		return nil, &ResourceAllocationError{Op: "create source texture", Err: err}
	}
	if fp.feedback, err = dev.CreateTexture(); err != nil {
		dev.DeleteTexture(fp.current)
		return nil, &ResourceAllocationError{Op: "create feedback texture", Err: err}
	}
	if err := fp.Resize(width, height); err != nil {
		fp.Destroy()
		return nil, err
	}
	return fp, nil
}

func (fp *FramePipeline) Width() int  { return fp.width }
func (fp *FramePipeline) Height() int { return fp.height }

// IngestSourceFrame uploads an RGBA8 frame into the source texture.
func (fp *FramePipeline) IngestSourceFrame(pix []byte, width, height int) error {
	if width <= 0 || height <= 0 || len(pix) != width*height*4 {
		return errors.Errorf("source frame is %d bytes, want %dx%dx4", len(pix), width, height)
	}
	if err := fp.dev.TexImage(fp.current, width, height, pix); err != nil {
		return &ResourceAllocationError{Op: "upload source frame", Err: err}
	}
	return nil
}

// BindForDraw attaches the source texture to the source unit and the
// feedback texture to the feedback unit.
func (fp *FramePipeline) BindForDraw() error {
	if fp.bound {
		return ErrFeedbackNotCommitted
	}
	fp.dev.BindTexture(shader.SourceUnit, fp.current)
	fp.dev.BindTexture(shader.FeedbackUnit, fp.feedback)
	fp.bound = true
	return nil
}

// CommitFeedback copies the draw target into the feedback texture. Without
// a preceding BindForDraw it does nothing.
func (fp *FramePipeline) CommitFeedback() error {
	if !fp.bound {
		return nil
	}
	fp.bound = false
	fp.dev.CopyToTexture(fp.feedback, fp.width, fp.height)
	if err := fp.dev.Err(); err != nil {
		return &ResourceAllocationError{Op: "commit feedback", Err: err}
	}
	return nil
}

// Resize reallocates both textures. The feedback texture is zeroed.
func (fp *FramePipeline) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return &ResourceAllocationError{Op: "resize", Err: errors.Errorf("invalid size %dx%d", width, height)}
	}
	if err := fp.dev.TexImage(fp.current, width, height, nil); err != nil {
		return &ResourceAllocationError{Op: "allocate source texture", Err: err}
	}
	if err := fp.dev.TexImage(fp.feedback, width, height, nil); err != nil {
		return &ResourceAllocationError{Op: "allocate feedback texture", Err: err}
	}
	fp.width, fp.height = width, height
	fp.bound = false
	logrus.WithFields(logrus.Fields{
		"function": "FramePipeline.Resize",
		"width":    width,
		"height":   height,
	}).Debug("Frame textures reallocated")
	return nil
}

// Destroy releases both textures. It is safe to call more than once.
func (fp *FramePipeline) Destroy() {
	if fp.current != 0 {
		fp.dev.DeleteTexture(fp.current)
		fp.current = 0
	}
	if fp.feedback != 0 {
		fp.dev.DeleteTexture(fp.feedback)
		fp.feedback = 0
	}
}
