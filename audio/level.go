package audio

import (
	"math"
	"sync/atomic"

	"gonum.org/v1/gonum/floats"
)

// DefaultGain maps RMS loudness onto the display level.
const DefaultGain = 3.0

// Extractor reduces a window of samples in [-1,1] to a level in [0,1].
type Extractor interface {
	Extract(window []float32) float32
}

// RMSExtractor computes min(1, rms(window) * Gain).
type RMSExtractor struct {
	Gain    float64
	scratch []float64
}

// NewRMSExtractor returns an extractor sized for windows of n samples.
func NewRMSExtractor(gain float64, n int) *RMSExtractor {
	return &RMSExtractor{Gain: gain, scratch: make([]float64, n)}
}

func (e *RMSExtractor) Extract(window []float32) float32 {
	if len(window) == 0 {
		return 0
	}
	if cap(e.scratch) < len(window) {
		e.scratch = make([]float64, len(window))
	}
	x := e.scratch[:len(window)]
	for i, s := range window {
		x[i] = float64(s)
	}
	rms := math.Sqrt(floats.Dot(x, x) / float64(len(x)))
	return float32(math.Min(1, rms*e.Gain))
}

// LevelCell is a single-slot, last-write-wins level shared between the audio
// goroutine and the render goroutine.
type LevelCell struct {
	bits atomic.Uint32
}

func (c *LevelCell) Store(level float32) { c.bits.Store(math.Float32bits(level)) }

func (c *LevelCell) Load() float32 { return math.Float32frombits(c.bits.Load()) }
