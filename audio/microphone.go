package audio

import (
	"github.com/gordonklaus/portaudio"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Microphone captures mono samples from the default input device and sends
// one chunk per portaudio buffer.
type Microphone struct {
	sampleRate      int
	framesPerBuffer int
	stream          *portaudio.Stream
	audioChan       chan []float32
	isStreaming     bool
}

// NewMicrophone initialises portaudio. framesPerBuffer is normally the
// analysis window length so that every callback delivers one full window.
func NewMicrophone(sampleRate, framesPerBuffer int) (*Microphone, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, errors.Wrap(err, "failed to initialize portaudio")
	}
	return &Microphone{sampleRate: sampleRate, framesPerBuffer: framesPerBuffer}, nil
}

func (m *Microphone) audioCallback(in []float32) {
	// We must copy the input slice, as PortAudio will reuse its buffer.
	dataCopy := make([]float32, len(in))
	copy(dataCopy, in)

	// Never block the portaudio callback thread.
	select {
	case m.audioChan <- dataCopy:
	default:
		logrus.WithFields(logrus.Fields{
			"function": "Microphone.audioCallback",
			"samples":  len(in),
		}).Debug("Audio channel buffer is full, dropping audio frame")
	}
}

func (m *Microphone) Start() (<-chan []float32, error) {
	m.audioChan = make(chan []float32, 16)

	host, err := portaudio.DefaultHostApi()
	if err != nil {
		close(m.audioChan)
		return nil, errors.Wrap(err, "failed to get default host API")
	}
	if host.DefaultInputDevice == nil {
		close(m.audioChan)
		return nil, errors.New("no default input device found")
	}

	params := portaudio.HighLatencyParameters(host.DefaultInputDevice, nil)
	params.Input.Channels = 1
	params.SampleRate = float64(m.sampleRate)
	params.FramesPerBuffer = m.framesPerBuffer

	stream, err := portaudio.OpenStream(params, m.audioCallback)
	if err != nil {
		close(m.audioChan)
		return nil, errors.Wrap(err, "failed to open audio stream")
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		close(m.audioChan)
		return nil, errors.Wrap(err, "failed to start audio stream")
	}
	m.stream = stream
	m.isStreaming = true

	logrus.WithFields(logrus.Fields{
		"function":   "Microphone.Start",
		"device":     host.DefaultInputDevice.Name,
		"sampleRate": m.sampleRate,
	}).Info("Microphone capture started")
	return m.audioChan, nil
}

func (m *Microphone) Stop() error {
	if !m.isStreaming {
		return portaudio.Terminate()
	}
	m.isStreaming = false
	if err := m.stream.Close(); err != nil {
		portaudio.Terminate()
		return err
	}
	close(m.audioChan) // Signal that no more data will be sent.
	return portaudio.Terminate()
}

func (m *Microphone) SampleRate() int {
	return m.sampleRate
}
