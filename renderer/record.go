package renderer

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// FrameSink consumes rendered frames, such as an encoder.
type FrameSink interface {
	WriteFrame(pix []byte, width, height int) error
}

// Record steps a session driven by sched and hands every rendered frame to
// sink. It renders frames frames, or until ctx is done when frames <= 0. A
// Ready session is started first.
func Record(ctx context.Context, s *Session, sched *ManualScheduler, frames int, sink FrameSink) error {
	if s.State() == Ready {
		if err := s.Start(); err != nil {
			return err
		}
	}
	log := logrus.WithField("function", "Record")
	log.WithField("frames", frames).Info("Starting offscreen recording")

	for n := 0; frames <= 0 || n < frames; n++ {
		select {
		case <-ctx.Done():
			log.WithField("frames", n).Info("Recording cancelled")
			return ctx.Err()
		default:
		}

		if !sched.Step() {
			if err := s.Err(); err != nil {
				return err
			}
			return errors.Errorf("session %s after %d frames", s.State(), n)
		}
		if s.State() != Running {
			return s.Err()
		}

		w, h := s.Size()
		pix := s.ReadFrame()
		if pix == nil {
			return errors.Errorf("failed to read back frame %d", n)
		}
		if err := sink.WriteFrame(pix, w, h); err != nil {
			return errors.Wrapf(err, "failed to write frame %d", n)
		}
		if n > 0 && n%100 == 0 {
			log.WithField("frames", n).Debug("Recording progress")
		}
	}
	log.WithField("frames", frames).Info("Recording finished")
	return nil
}
