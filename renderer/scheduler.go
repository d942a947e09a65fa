package renderer

import "sync"

// Scheduler runs the next render tick at the next opportunity, such as the
// next display refresh. Cancel drops any pending tick and ignores later
// Schedule calls.
type Scheduler interface {
	Schedule(tick func())
	Cancel()
}

// ManualScheduler holds at most one pending tick and runs it when stepped.
// It drives sessions in tests and in offscreen recording.
type ManualScheduler struct {
	mu        sync.Mutex
	next      func()
	cancelled bool
}

func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

func (m *ManualScheduler) Schedule(tick func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.cancelled {
		m.next = tick
	}
}

func (m *ManualScheduler) Cancel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelled = true
	m.next = nil
}

// Pending reports whether a tick is waiting.
func (m *ManualScheduler) Pending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.next != nil
}

// Step runs the pending tick on the calling goroutine. It returns false when
// nothing was scheduled.
func (m *ManualScheduler) Step() bool {
	m.mu.Lock()
	tick := m.next
	m.next = nil
	m.mu.Unlock()
	if tick == nil {
		return false
	}
	tick()
	return true
}
