package audio

import (
	"math"

	"github.com/mjibson/go-dsp/fft"
)

const (
	minDecibels = -100.0
	maxDecibels = -30.0
)

// SpectrumExtractor derives a level from the smoothed magnitude spectrum
// instead of the waveform: Blackman window, real FFT, dB magnitudes with
// temporal smoothing, each bin mapped from [minDecibels, maxDecibels] to
// [0,1] and averaged.
type SpectrumExtractor struct {
	Smoothing float64
	window    []float64
	samples   []float64
	lastDb    []float64
}

// NewSpectrumExtractor prepares an extractor for windows of n samples.
func NewSpectrumExtractor(n int, smoothing float64) *SpectrumExtractor {
	e := &SpectrumExtractor{
		Smoothing: smoothing,
		window:    blackmanWindow(n),
		samples:   make([]float64, n),
		lastDb:    make([]float64, n/2),
	}
	for i := range e.lastDb {
		e.lastDb[i] = minDecibels
	}
	return e
}

func (e *SpectrumExtractor) Extract(window []float32) float32 {
	n := len(e.window)
	if len(window) != n || n < 2 {
		return 0
	}
	for i, s := range window {
		e.samples[i] = float64(s) * e.window[i]
	}
	spectrum := fft.FFTReal(e.samples)

	var sum float64
	for i := range e.lastDb {
		re, im := real(spectrum[i]), imag(spectrum[i])
		magnitude := math.Sqrt(re*re+im*im) * (2.0 / float64(n))
		db := 20 * math.Log10(magnitude+1e-9)

		e.lastDb[i] = e.Smoothing*e.lastDb[i] + (1.0-e.Smoothing)*db
		switch d := e.lastDb[i]; {
		case d <= minDecibels:
		case d >= maxDecibels:
			sum++
		default:
			sum += (d - minDecibels) / (maxDecibels - minDecibels)
		}
	}
	return float32(sum / float64(len(e.lastDb)))
}

// blackmanWindow generates a Blackman window, as used by Shadertoy.
func blackmanWindow(size int) []float64 {
	window := make([]float64, size)
	if size < 2 {
		return window
	}
	a0 := 0.42
	a1 := 0.5
	a2 := 0.08
	invSize := 1.0 / float64(size-1)
	for i := range window {
		t := float64(i) * invSize
		window[i] = a0 - (a1 * math.Cos(2*math.Pi*t)) + (a2 * math.Cos(4*math.Pi*t))
	}
	return window
}
