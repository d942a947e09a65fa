package audio

import (
	"sync"

	"github.com/pkg/errors"
)

// DefaultWindowSize is the analysis window length in samples.
const DefaultWindowSize = 2048

// Ring keeps the most recent samples written by the capture side. Its size is
// a power of two so positions wrap with a mask.
type Ring struct {
	mu      sync.RWMutex
	samples []float32
	mask    int
	pos     int // next write position
	written int64
}

// NewRing allocates a ring holding size samples. size must be a power of two.
func NewRing(size int) (*Ring, error) {
	if size <= 0 || size&(size-1) != 0 {
		return nil, errors.Errorf("ring size %d is not a power of two", size)
	}
	return &Ring{
		samples: make([]float32, size),
		mask:    size - 1,
	}, nil
}

// Size returns the ring capacity in samples.
func (r *Ring) Size() int { return len(r.samples) }

// Write appends samples, overwriting the oldest ones.
func (r *Ring) Write(samples []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Only the tail that fits can ever be observed.
	if len(samples) > len(r.samples) {
		r.written += int64(len(samples) - len(r.samples))
		samples = samples[len(samples)-len(r.samples):]
	}
	for len(samples) > 0 {
		n := copy(r.samples[r.pos:], samples)
		samples = samples[n:]
		r.pos = (r.pos + n) & r.mask
		r.written += int64(n)
	}
}

// Window copies the most recent len(dst) samples into dst in chronological
// order. Slots never written read as zero. It returns the number of samples
// copied, which is at most Size().
func (r *Ring) Window(dst []float32) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := min(len(dst), len(r.samples))
	start := (r.pos - n) & r.mask
	first := copy(dst[:n], r.samples[start:])
	if first < n {
		copy(dst[first:n], r.samples[:n-first])
	}
	return n
}

// TotalWritten returns the number of samples ever written.
func (r *Ring) TotalWritten() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.written
}
