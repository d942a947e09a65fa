package video

import (
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// FFmpegSource decodes a file, stream or capture device with an external
// ffmpeg process and publishes every frame into a Latest slot, scaled to
// Width x Height.
type FFmpegSource struct {
	Input      string
	Format     string // capture API such as "v4l2" or "avfoundation"; empty for files and URLs
	FFmpegPath string
	Width      int
	Height     int
	Loop       bool

	slot Latest
	cmd  *exec.Cmd
	wg   sync.WaitGroup
}

func NewFFmpegSource(input, format string, width, height int) *FFmpegSource {
	return &FFmpegSource{Input: input, Format: format, Width: width, Height: height}
}

func (s *FFmpegSource) inputArgs() ffmpeg.KwArgs {
	args := ffmpeg.KwArgs{}
	if s.Format != "" {
		args["f"] = s.Format
	} else {
		// Files are paced at their native frame rate.
		args["re"] = nil
		if s.Loop {
			args["stream_loop"] = "-1"
		}
	}
	return args
}

func (s *FFmpegSource) outputArgs() ffmpeg.KwArgs {
	return ffmpeg.KwArgs{
		"f":       "rawvideo",
		"pix_fmt": "rgba",
		"vf":      fmt.Sprintf("scale=%d:%d,vflip", s.Width, s.Height),
		"an":      nil,
	}
}

// Start launches ffmpeg. Frames become visible through Latest as they are
// decoded.
func (s *FFmpegSource) Start() error {
	if s.Width <= 0 || s.Height <= 0 {
		return errors.Errorf("invalid video size %dx%d", s.Width, s.Height)
	}
	stream := ffmpeg.Input(s.Input, s.inputArgs()).Output("pipe:", s.outputArgs())
	if s.FFmpegPath != "" {
		stream = stream.SetFfmpegPath(s.FFmpegPath)
	}
	cmd := stream.Compile()
	cmd.Stdout = nil
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return errors.Wrap(err, "failed to attach to ffmpeg stdout")
	}
	if err := cmd.Start(); err != nil {
		return errors.Wrapf(err, "failed to start ffmpeg for %q", s.Input)
	}
	s.cmd = cmd

	logrus.WithFields(logrus.Fields{
		"function": "FFmpegSource.Start",
		"input":    s.Input,
		"format":   s.Format,
		"size":     fmt.Sprintf("%dx%d", s.Width, s.Height),
	}).Info("Starting FFmpeg video input")

	s.wg.Add(1)
	go s.readLoop(stdout)
	return nil
}

func (s *FFmpegSource) readLoop(r io.Reader) {
	defer s.wg.Done()
	size := s.Width * s.Height * 4
	for {
		pix := make([]byte, size)
		if _, err := io.ReadFull(r, pix); err != nil {
			if err != io.EOF && err != io.ErrUnexpectedEOF {
				logrus.WithError(err).Warn("FFmpeg video stream read failed")
			} else {
				logrus.WithField("input", s.Input).Info("FFmpeg video stream ended")
			}
			return
		}
		s.slot.Publish(pix, s.Width, s.Height)
	}
}

// Latest returns the newest decoded frame.
func (s *FFmpegSource) Latest() (Frame, bool) { return s.slot.Latest() }

// Stop kills ffmpeg and waits for the reader. The last frame stays
// available.
func (s *FFmpegSource) Stop() error {
	if s.cmd == nil {
		return nil
	}
	if s.cmd.Process != nil {
		s.cmd.Process.Kill()
	}
	s.wg.Wait()
	s.cmd.Wait()
	s.cmd = nil
	return nil
}
