package audio

// Microphone capture needs the portaudio library:
// macos:	brew install portaudio
// debian:	sudo apt-get install portaudio19-dev
// windows:	pacman -S mingw-w64-x86_64-portaudio

// DefaultSampleRate is the capture rate used when a device does not say otherwise.
const DefaultSampleRate = 44100

// AudioDevice produces mono sample chunks on a channel.
type AudioDevice interface {
	// Start opens the device. The channel is closed after Stop.
	Start() (<-chan []float32, error)
	Stop() error
	SampleRate() int
}

// NullDevice never produces samples.
type NullDevice struct {
	rate int
}

func NewNullDevice(sampleRate int) *NullDevice {
	return &NullDevice{rate: sampleRate}
}

// Start returns a nil channel; receiving from it blocks forever.
func (d *NullDevice) Start() (<-chan []float32, error) {
	return nil, nil
}

func (d *NullDevice) Stop() error { return nil }

func (d *NullDevice) SampleRate() int { return d.rate }
