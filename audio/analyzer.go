package audio

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// AudioUnavailableError reports that the capture device could not be opened.
// It is never fatal: the subscription degrades to a constant zero level.
type AudioUnavailableError struct {
	Err error
}

func (e *AudioUnavailableError) Error() string {
	if e.Err == nil {
		return "audio unavailable"
	}
	return fmt.Sprintf("audio unavailable: %v", e.Err)
}

func (e *AudioUnavailableError) Unwrap() error { return e.Err }

// LevelSource is what the render loop consumes: the latest level and a way
// to release the capture subscription.
type LevelSource interface {
	Level() float32
	Close() error
}

// Silent is the constant-zero substitute used when no audio is available.
type Silent struct{}

func (Silent) Level() float32 { return 0 }
func (Silent) Close() error   { return nil }

// Config controls how an Analyzer turns chunks into levels.
type Config struct {
	WindowSize int
	// Extractor defaults to an RMSExtractor with DefaultGain.
	Extractor Extractor
}

func (c Config) withDefaults() Config {
	if c.WindowSize == 0 {
		c.WindowSize = DefaultWindowSize
	}
	if c.Extractor == nil {
		c.Extractor = NewRMSExtractor(DefaultGain, c.WindowSize)
	}
	return c
}

// Analyzer owns the sample ring and publishes one level per received audio
// frame into a LevelCell.
type Analyzer struct {
	device    AudioDevice
	ring      *Ring
	extractor Extractor
	window    []float32
	cell      LevelCell
	updates   chan struct{}

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// Subscribe starts dev and begins analysing its stream. When dev is nil or
// fails to start, Subscribe returns Silent together with an
// *AudioUnavailableError that callers should treat as a warning.
func Subscribe(dev AudioDevice, cfg Config) (LevelSource, error) {
	if dev == nil {
		return Silent{}, &AudioUnavailableError{Err: errors.New("no audio device configured")}
	}
	cfg = cfg.withDefaults()
	ring, err := NewRing(cfg.WindowSize)
	if err != nil {
		return Silent{}, &AudioUnavailableError{Err: err}
	}

	ch, err := dev.Start()
	if err != nil {
		return Silent{}, &AudioUnavailableError{Err: errors.Wrap(err, "could not start audio device")}
	}

	a := &Analyzer{
		device:    dev,
		ring:      ring,
		extractor: cfg.Extractor,
		window:    make([]float32, cfg.WindowSize),
		updates:   make(chan struct{}, 1),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go a.listen(ch)

	logrus.WithFields(logrus.Fields{
		"function":   "Subscribe",
		"windowSize": cfg.WindowSize,
		"sampleRate": dev.SampleRate(),
	}).Info("Audio analyzer started")
	return a, nil
}

// listen runs in a dedicated goroutine, consuming chunks from the device
// channel until it closes or the analyzer is closed.
func (a *Analyzer) listen(ch <-chan []float32) {
	defer close(a.done)
	for {
		select {
		case <-a.stop:
			return
		case samples, ok := <-ch:
			if !ok {
				logrus.WithField("function", "Analyzer.listen").Debug("Audio channel closed, listener exiting")
				return
			}
			a.ring.Write(samples)
			a.ring.Window(a.window)
			a.cell.Store(a.extractor.Extract(a.window))
			select {
			case a.updates <- struct{}{}:
			default:
			}
		}
	}
}

// Level returns the most recently extracted level. It never blocks.
func (a *Analyzer) Level() float32 { return a.cell.Load() }

// Updates signals after each extraction. Only one pending signal is kept.
func (a *Analyzer) Updates() <-chan struct{} { return a.updates }

// Close stops the device and waits for the listener goroutine to exit.
func (a *Analyzer) Close() error {
	a.closeOnce.Do(func() {
		close(a.stop)
		a.closeErr = a.device.Stop()
		<-a.done
	})
	return a.closeErr
}
