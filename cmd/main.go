package main

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/integrii/flaggy"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/richinsley/goglitch/audio"
	"github.com/richinsley/goglitch/encoder"
	"github.com/richinsley/goglitch/gldevice"
	"github.com/richinsley/goglitch/glfwcontext"
	"github.com/richinsley/goglitch/gpu"
	"github.com/richinsley/goglitch/graphics"
	"github.com/richinsley/goglitch/headless"
	"github.com/richinsley/goglitch/options"
	"github.com/richinsley/goglitch/params"
	"github.com/richinsley/goglitch/renderer"
	"github.com/richinsley/goglitch/softgpu"
	"github.com/richinsley/goglitch/video"
)

const (
	AppName = "goglitch"
	AppDesc = "Audio-reactive glitch effects for live video"
)

var version = "unknown"

// GL calls and GLFW events must stay on the main thread.
func init() {
	runtime.LockOSThread()
}

func parseFlags(o *options.Options) error {
	parser := flaggy.NewParser(AppName)
	parser.Description = AppDesc
	parser.Version = version

	parser.Int(&o.Width, "W", "width", "output width")
	parser.Int(&o.Height, "H", "height", "output height")

	parser.String(&o.Input, "i", "input", "video input (file, URL or capture device) read through ffmpeg")
	parser.String(&o.InputFormat, "if", "input-format", "ffmpeg input format, e.g. v4l2 or avfoundation")
	parser.String(&o.Image, "img", "image", "still image to use as the source")
	parser.Bool(&o.Loop, "l", "loop", "loop a file input")

	parser.String(&o.Audio, "a", "audio", "audio backend (portaudio, ffmpeg, none)")
	parser.String(&o.AudioDevice, "ad", "audio-device", "ffmpeg audio input (defaults to the video input)")
	parser.String(&o.AudioMetric, "am", "audio-metric", "loudness metric (rms, spectrum)")
	parser.Int(&o.WindowSize, "n", "window", "audio analysis window in samples (power of two)")

	parser.String(&o.Mode, "m", "mode", "effect mode (tear, kaleidoscope, passthrough)")
	parser.Float64(&o.DryWet, "dw", "drywet", "dry/wet mix [0, 1]")
	parser.Float64(&o.Amount, "amt", "amount", "effect amount [0, 1]")
	parser.Float64(&o.Glitch, "g", "glitch", "glitch intensity [0, 1]")
	parser.Float64(&o.Trail, "tr", "trail", "feedback trail [0, 1]")

	parser.String(&o.Record, "r", "record", "render offscreen into this file or URL")
	parser.Int(&o.Frames, "f", "frames", "number of frames to record (0 until interrupted)")
	parser.Int(&o.FPS, "fps", "fps", "recording frame rate")
	parser.String(&o.Codec, "c", "codec", "recording codec (h264, hevc)")
	parser.Bool(&o.HWAccel, "hw", "hwaccel", "use the platform's hardware encoder")
	parser.Bool(&o.Stream, "s", "stream", "write MPEG-TS for streaming outputs")

	parser.String(&o.FFmpegPath, "ff", "ffmpeg", "path to the ffmpeg executable")
	parser.Bool(&o.Software, "sw", "software", "render on the CPU (recording only)")
	parser.Bool(&o.Verbose, "v", "verbose", "debug logging")

	if err := parser.Parse(); err != nil {
		return err
	}
	return o.Sanitize()
}

func openAudio(o *options.Options) audio.LevelSource {
	var dev audio.AudioDevice
	switch o.Audio {
	case "portaudio":
		mic, err := audio.NewMicrophone(audio.DefaultSampleRate, o.WindowSize)
		if err != nil {
			logrus.WithError(err).Warn("Microphone unavailable, continuing without audio")
			return audio.Silent{}
		}
		dev = mic
	case "ffmpeg":
		format := ""
		if o.AudioDevice == o.Input {
			format = "file"
		}
		fd := audio.NewFFmpegDevice(o.AudioDevice, format, o.WindowSize)
		fd.FFmpegPath = o.FFmpegPath
		dev = fd
	default:
		return audio.Silent{}
	}

	cfg := audio.Config{WindowSize: o.WindowSize}
	if o.AudioMetric == "spectrum" {
		cfg.Extractor = audio.NewSpectrumExtractor(o.WindowSize, 0.5)
	}
	levels, err := audio.Subscribe(dev, cfg)
	if err != nil {
		// Subscribe already degraded to silence.
		logrus.WithError(err).Warn("Continuing without audio")
	}
	return levels
}

func openFrames(o *options.Options) (renderer.FrameSource, func(), error) {
	switch {
	case o.Input != "":
		src := video.NewFFmpegSource(o.Input, o.InputFormat, o.Width, o.Height)
		src.Loop = o.Loop
		src.FFmpegPath = o.FFmpegPath
		if err := src.Start(); err != nil {
			return nil, nil, err
		}
		return src, func() {
			if err := src.Stop(); err != nil {
				logrus.WithError(err).Debug("Video input stopped with an error")
			}
		}, nil
	case o.Image != "":
		pix, err := video.LoadStill(o.Image, o.Width, o.Height)
		if err != nil {
			return nil, nil, err
		}
		return video.Static(pix, o.Width, o.Height), func() {}, nil
	default:
		return video.Static(video.Bars(o.Width, o.Height), o.Width, o.Height), func() {}, nil
	}
}

// openOffscreen makes a GL context current for recording. EGL is tried
// first; a hidden GLFW window is the fallback.
func openOffscreen(width, height int) (func(), error) {
	egl, err := headless.New(width, height)
	if err == nil {
		return egl.Shutdown, nil
	}
	logrus.WithError(err).Debug("Headless EGL unavailable, using a hidden window")

	if err := glfwcontext.InitGraphics(); err != nil {
		return nil, errors.Wrap(err, "failed to initialize graphics")
	}
	win, err := glfwcontext.New(width, height, AppName, false)
	if err != nil {
		glfwcontext.TerminateGraphics()
		return nil, errors.Wrap(err, "failed to create offscreen context")
	}
	return func() {
		win.Shutdown()
		glfwcontext.TerminateGraphics()
	}, nil
}

func record(ctx context.Context, o *options.Options, levels audio.LevelSource, frames renderer.FrameSource) error {
	var dev gpu.Device
	if o.Software {
		dev = softgpu.New(softgpu.GlitchKernel)
	} else {
		shutdown, err := openOffscreen(o.Width, o.Height)
		if err != nil {
			return err
		}
		defer shutdown()

		gld, err := gldevice.New(ctx)
		if err != nil {
			return err
		}
		defer gld.Destroy()
		dev = gld
	}

	sink, err := encoder.NewFFmpegEncoder(encoder.Config{
		Output:     o.Record,
		Width:      o.Width,
		Height:     o.Height,
		FPS:        o.FPS,
		Codec:      o.Codec,
		HWAccel:    o.HWAccel,
		Stream:     o.Stream,
		FFmpegPath: o.FFmpegPath,
	})
	if err != nil {
		return err
	}

	sched := renderer.NewManualScheduler()
	session, err := renderer.NewSession(renderer.Config{
		Device:    dev,
		Width:     o.Width,
		Height:    o.Height,
		Controls:  params.NewControls(o.Values()),
		Audio:     levels,
		Frames:    frames,
		Scheduler: sched,
		Clock:     graphics.NewStepClock(o.FPS),
	})
	if err != nil {
		sink.Close()
		return err
	}
	defer session.Teardown()

	err = renderer.Record(ctx, session, sched, o.Frames, sink)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if cerr := sink.Close(); err == nil {
		err = cerr
	}
	return err
}

func display(ctx context.Context, o *options.Options, levels audio.LevelSource, frames renderer.FrameSource) error {
	if err := glfwcontext.InitGraphics(); err != nil {
		return errors.Wrap(err, "failed to initialize graphics")
	}
	defer glfwcontext.TerminateGraphics()

	win, err := glfwcontext.New(o.Width, o.Height, AppName, true)
	if err != nil {
		return errors.Wrap(err, "failed to create window")
	}
	defer win.Shutdown()

	dev, err := gldevice.New(ctx)
	if err != nil {
		return err
	}
	defer dev.Destroy()

	controls := params.NewControls(o.Values())
	width, height := win.GetFramebufferSize()
	session, err := renderer.NewSession(renderer.Config{
		Device:    dev,
		Width:     width,
		Height:    height,
		Controls:  controls,
		Audio:     levels,
		Frames:    frames,
		Scheduler: win,
		Clock:     win,
		OnStop: func(err error) {
			logrus.WithError(err).Error("Render session stopped")
		},
	})
	if err != nil {
		return err
	}
	defer session.Teardown()

	win.OnResize(session.Resize)
	win.OnPresent(dev.Present)
	win.BindControls(controls, glfwcontext.DefaultKeyBindings)

	if err := session.Start(); err != nil {
		return err
	}
	win.Run()
	return session.Err()
}

func run(o *options.Options) error {
	if o.Software && !o.Offscreen() {
		return errors.New("software rendering needs -record")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	frames, stopFrames, err := openFrames(o)
	if err != nil {
		return errors.Wrap(err, "failed to open video source")
	}
	defer stopFrames()

	levels := openAudio(o)
	defer levels.Close()

	if o.Offscreen() {
		return record(ctx, o, levels, frames)
	}
	return display(ctx, o, levels, frames)
}

func main() {
	o := options.Defaults()
	if err := parseFlags(&o); err != nil {
		logrus.WithError(err).Fatal("Invalid arguments")
	}
	if o.Verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	if err := run(&o); err != nil {
		logrus.WithError(err).Fatal("goglitch failed")
	}
}
