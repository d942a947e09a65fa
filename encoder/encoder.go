// Package encoder records rendered frames to a file or stream through an
// external ffmpeg process.
package encoder

import (
	"fmt"
	"io"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// Frame is one rendered RGBA8 frame, row 0 at the bottom.
type Frame struct {
	Pixels []byte
	PTS    int64
}

type Config struct {
	Output     string
	Width      int
	Height     int
	FPS        int
	Codec      string // "h264" or "hevc"
	HWAccel    bool   // prefer the platform's hardware encoder
	Stream     bool   // write MPEG-TS instead of inferring the container
	FFmpegPath string
}

// FFmpegEncoder pipes raw frames into ffmpeg. Frames are queued and written
// by a single goroutine.
type FFmpegEncoder struct {
	cfg    Config
	frames chan *Frame
	writer *io.PipeWriter
	done   chan error
	pts    int64

	closeOnce sync.Once
	closeErr  error
	writeErr  error
	writeDone chan struct{}
}

// VideoEncoder picks the ffmpeg encoder name for codec on goos.
func VideoEncoder(goos, codec string, hwaccel bool) string {
	hevc := codec == "hevc"
	if hwaccel {
		switch goos {
		case "linux", "windows":
			if hevc {
				return "hevc_nvenc"
			}
			return "h264_nvenc"
		case "darwin":
			if hevc {
				return "hevc_videotoolbox"
			}
			return "h264_videotoolbox"
		}
	}
	if hevc {
		return "libx265"
	}
	return "libx264"
}

// Args returns the ffmpeg input and output options for cfg.
func Args(cfg Config, goos string) (inputArgs ffmpeg.KwArgs, outputArgs ffmpeg.KwArgs) {
	inputArgs = ffmpeg.KwArgs{
		"f":         "rawvideo",
		"pix_fmt":   "rgba",
		"s":         fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		"framerate": strconv.Itoa(cfg.FPS),
	}

	vcodec := VideoEncoder(goos, cfg.Codec, cfg.HWAccel)
	outputArgs = ffmpeg.KwArgs{
		// GL rows run bottom to top.
		"vf":      "vflip",
		"c:v":     vcodec,
		"pix_fmt": "yuv420p",
		"b:v":     "25M",
	}
	if strings.HasSuffix(vcodec, "_nvenc") {
		outputArgs["preset"] = "p2"
	}
	if cfg.Codec == "hevc" && strings.HasSuffix(cfg.Output, ".mp4") {
		outputArgs["tag:v"] = "hvc1"
	}
	if cfg.Stream {
		outputArgs["f"] = "mpegts"
	}
	return
}

// NewFFmpegEncoder starts ffmpeg writing to cfg.Output.
func NewFFmpegEncoder(cfg Config) (*FFmpegEncoder, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, errors.Errorf("invalid frame size %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.FPS <= 0 {
		cfg.FPS = 30
	}
	if cfg.Output == "" {
		return nil, errors.New("no output file")
	}

	pipeReader, pipeWriter := io.Pipe()
	inputArgs, outputArgs := Args(cfg, runtime.GOOS)
	ffmpegCmd := ffmpeg.Input("pipe:", inputArgs).
		Output(cfg.Output, outputArgs).
		OverWriteOutput().WithInput(pipeReader).ErrorToStdOut()
	if cfg.FFmpegPath != "" {
		ffmpegCmd = ffmpegCmd.SetFfmpegPath(cfg.FFmpegPath)
	}

	e := &FFmpegEncoder{
		cfg:       cfg,
		frames:    make(chan *Frame, 3),
		writer:    pipeWriter,
		done:      make(chan error, 1),
		writeDone: make(chan struct{}),
	}
	go func() {
		err := ffmpegCmd.Run()
		// Unblock the writer if ffmpeg exits early.
		pipeReader.CloseWithError(io.ErrClosedPipe)
		e.done <- err
	}()
	go e.run()

	logrus.WithFields(logrus.Fields{
		"function": "NewFFmpegEncoder",
		"output":   cfg.Output,
		"codec":    outputArgs["c:v"],
		"size":     fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		"fps":      cfg.FPS,
	}).Info("Started FFmpeg encoder")
	return e, nil
}

func (e *FFmpegEncoder) run() {
	defer close(e.writeDone)
	for frame := range e.frames {
		if e.writeErr != nil {
			continue
		}
		if _, err := e.writer.Write(frame.Pixels); err != nil {
			e.writeErr = errors.Wrapf(err, "failed to write frame %d to ffmpeg", frame.PTS)
			logrus.WithError(err).Error("FFmpeg encoder pipe failed")
		}
	}
	e.writer.Close()
}

// WriteFrame queues a copy of pix. It blocks while the queue is full.
func (e *FFmpegEncoder) WriteFrame(pix []byte, width, height int) error {
	if width != e.cfg.Width || height != e.cfg.Height {
		return errors.Errorf("frame is %dx%d, encoder expects %dx%d", width, height, e.cfg.Width, e.cfg.Height)
	}
	if len(pix) != width*height*4 {
		return errors.Errorf("frame is %d bytes, want %d", len(pix), width*height*4)
	}
	e.frames <- &Frame{Pixels: append([]byte(nil), pix...), PTS: e.pts}
	e.pts++
	return nil
}

// Close flushes queued frames and waits for ffmpeg to finish.
func (e *FFmpegEncoder) Close() error {
	e.closeOnce.Do(func() {
		close(e.frames)
		<-e.writeDone
		err := <-e.done
		switch {
		case e.writeErr != nil:
			e.closeErr = e.writeErr
		case err != nil:
			e.closeErr = errors.Wrap(err, "ffmpeg exited with an error")
		}
		logrus.WithField("frames", e.pts).Info("FFmpeg encoder closed")
	})
	return e.closeErr
}
