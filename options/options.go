package options

import (
	"github.com/pkg/errors"

	"github.com/richinsley/goglitch/audio"
	"github.com/richinsley/goglitch/params"
)

// Options holds everything the command line can set.
type Options struct {
	Width  int
	Height int

	// Video input: an ffmpeg input (file, URL or device) or a still image.
	// With neither, a built-in test pattern is shown.
	Input       string
	InputFormat string
	Image       string
	Loop        bool

	// Audio is "portaudio", "ffmpeg" or "none".
	Audio       string
	AudioDevice string
	// AudioMetric is "rms" or "spectrum".
	AudioMetric string
	WindowSize  int

	Mode   string
	DryWet float64
	Amount float64
	Glitch float64
	Trail  float64

	// Record renders offscreen into this file instead of opening a window.
	Record  string
	Frames  int
	FPS     int
	Codec   string
	HWAccel bool
	Stream  bool

	FFmpegPath string
	Software   bool
	Verbose    bool
}

func Defaults() Options {
	v := params.Defaults()
	return Options{
		Width:       1280,
		Height:      720,
		Audio:       "portaudio",
		AudioMetric: "rms",
		WindowSize:  audio.DefaultWindowSize,
		Mode:        v.Mode.String(),
		DryWet:      float64(v.DryWet),
		Amount:      float64(v.Amount),
		Glitch:      float64(v.Glitch),
		Trail:       float64(v.Trail),
		Frames:      300,
		FPS:         30,
		Codec:       "h264",
	}
}

// Sanitize validates the options and clamps the effect controls.
func (o *Options) Sanitize() error {
	if o.Width < 1 || o.Height < 1 {
		return errors.Errorf("invalid size %dx%d", o.Width, o.Height)
	}
	if o.Input != "" && o.Image != "" {
		return errors.New("use either an input or an image, not both")
	}

	switch o.Audio {
	case "portaudio", "ffmpeg", "none":
	case "":
		o.Audio = "none"
	default:
		return errors.Errorf("unknown audio backend %q", o.Audio)
	}
	if o.Audio == "ffmpeg" && o.AudioDevice == "" && o.Input != "" {
		// Take the soundtrack of the video input.
		o.AudioDevice = o.Input
	}

	switch o.AudioMetric {
	case "rms", "spectrum":
	default:
		return errors.Errorf("unknown audio metric %q", o.AudioMetric)
	}
	if o.WindowSize < 4 || o.WindowSize&(o.WindowSize-1) != 0 {
		return errors.Errorf("audio window size %d is not a power of two (4+ required)", o.WindowSize)
	}

	if _, err := params.ParseEffectMode(o.Mode); err != nil {
		return err
	}
	o.DryWet = float64(params.Clamp01(float32(o.DryWet)))
	o.Amount = float64(params.Clamp01(float32(o.Amount)))
	o.Glitch = float64(params.Clamp01(float32(o.Glitch)))
	o.Trail = float64(params.Clamp01(float32(o.Trail)))

	switch o.Codec {
	case "h264", "hevc":
	default:
		return errors.Errorf("unknown codec %q", o.Codec)
	}
	if o.FPS < 1 {
		o.FPS = 30
	}
	if o.Record != "" && o.Frames < 0 {
		o.Frames = 0
	}
	return nil
}

// Values returns the initial control values.
func (o *Options) Values() params.Values {
	mode, err := params.ParseEffectMode(o.Mode)
	if err != nil {
		mode = params.Tear
	}
	return params.Values{
		DryWet: float32(o.DryWet),
		Amount: float32(o.Amount),
		Glitch: float32(o.Glitch),
		Trail:  float32(o.Trail),
		Mode:   mode,
	}
}

// Offscreen reports whether the session renders without a window.
func (o *Options) Offscreen() bool {
	return o.Record != ""
}
