// audio/ffmpegdevice.go
package audio

import (
	"encoding/binary"
	"io"
	"math"
	"os/exec"
	"runtime"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// FFmpegDevice captures audio through an ffmpeg child process, either from a
// live device (Format set, e.g. "pulse") or from a file, and delivers mono
// chunks of ChunkSize samples.
type FFmpegDevice struct {
	Input      string
	Format     string
	FFmpegPath string
	ChunkSize  int
	// RealTime paces file inputs at their native rate.
	RealTime bool

	sampleRate int
	cmd        *exec.Cmd
	audioChan  chan []float32
	wg         sync.WaitGroup
}

// NewFFmpegDevice prepares an ffmpeg capture. An empty format selects the
// platform's default capture API; pass a file path with format "file".
func NewFFmpegDevice(input, format string, chunkSize int) *FFmpegDevice {
	if format == "" {
		format = defaultCaptureFormat()
	}
	if format == "file" {
		format = ""
	}
	return &FFmpegDevice{
		Input:      input,
		Format:     format,
		ChunkSize:  chunkSize,
		RealTime:   format == "",
		sampleRate: DefaultSampleRate,
	}
}

func defaultCaptureFormat() string {
	switch runtime.GOOS {
	case "darwin":
		return "avfoundation"
	case "windows":
		return "dshow"
	default:
		return "pulse"
	}
}

// inputArgs returns the ffmpeg input options for this capture.
func (d *FFmpegDevice) inputArgs() ffmpeg.KwArgs {
	args := ffmpeg.KwArgs{"fflags": "nobuffer"}
	if d.Format != "" {
		args["f"] = d.Format
	}
	if d.RealTime {
		args["readrate"] = "1"
	}
	return args
}

func (d *FFmpegDevice) outputArgs() ffmpeg.KwArgs {
	return ffmpeg.KwArgs{
		"f":      "f32le",
		"acodec": "pcm_f32le",
		"ac":     "2",
		"ar":     strconv.Itoa(d.sampleRate),
	}
}

// Start launches ffmpeg and returns the chunk channel.
func (d *FFmpegDevice) Start() (<-chan []float32, error) {
	if d.ChunkSize <= 0 {
		d.ChunkSize = DefaultWindowSize
	}
	stream := ffmpeg.Input(d.Input, d.inputArgs()).Output("pipe:", d.outputArgs())
	if d.FFmpegPath != "" {
		stream = stream.SetFfmpegPath(d.FFmpegPath)
	}

	cmd := stream.Compile()
	cmd.Stdout = nil
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "failed to attach to ffmpeg stdout")
	}
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "failed to start ffmpeg for %q", d.Input)
	}
	d.cmd = cmd
	d.audioChan = make(chan []float32, 16)

	logrus.WithFields(logrus.Fields{
		"function": "FFmpegDevice.Start",
		"input":    d.Input,
		"format":   d.Format,
	}).Info("Starting FFmpeg audio input")

	d.wg.Add(1)
	go d.readLoop(stdout)
	return d.audioChan, nil
}

func (d *FFmpegDevice) readLoop(r io.Reader) {
	defer d.wg.Done()
	defer close(d.audioChan)

	raw := make([]byte, d.ChunkSize*2*4)
	stereo := make([]float32, d.ChunkSize*2)
	for {
		if _, err := io.ReadFull(r, raw); err != nil {
			if err != io.EOF && err != io.ErrUnexpectedEOF {
				logrus.WithError(err).Warn("FFmpeg audio stream read failed")
			}
			return
		}
		for i := range stereo {
			stereo[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		}
		select {
		case d.audioChan <- DownmixStereoToMono(stereo):
		default:
			logrus.Debug("Audio channel buffer is full, dropping audio frame")
		}
	}
}

// Stop kills the ffmpeg process and waits for the reader to drain.
func (d *FFmpegDevice) Stop() error {
	if d.cmd == nil {
		return nil
	}
	if d.cmd.Process != nil {
		d.cmd.Process.Kill()
	}
	d.wg.Wait()
	d.cmd.Wait()
	d.cmd = nil
	return nil
}

func (d *FFmpegDevice) SampleRate() int { return d.sampleRate }
