package animation

import (
	"sync"
	"time"

	"github.com/osa030/nightlift/internal/domain/phase"
)

// Manual is a Driver whose keyframe is set by the caller.
type Manual struct {
	mu sync.Mutex

	table    *phase.Table
	ready    bool
	duration time.Duration
	keyframe float64
	reported phase.Phase
	plays    int
	onEnd    []func()
}

// NewManual creates a ready manual driver with the given duration.
func NewManual(table *phase.Table, duration time.Duration) *Manual {
	return &Manual{
		table:    table,
		ready:    true,
		duration: duration,
	}
}

// SetReady toggles readiness.
func (m *Manual) SetReady(ready bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ready = ready
}

// SetKeyframe moves the timeline. The driver's reported phase follows the keyframe.
func (m *Manual) SetKeyframe(k float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keyframe = k
	m.reported = m.table.PhaseFor(k).Phase
}

// ReportPhase overrides the phase the driver reports, to simulate drifting bookkeeping.
func (m *Manual) ReportPhase(p phase.Phase) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reported = p
}

// Finish invokes the end-of-timeline callbacks.
func (m *Manual) Finish() {
	m.mu.Lock()
	callbacks := append([]func(){}, m.onEnd...)
	m.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
}

// Plays returns how many times Play was called.
func (m *Manual) Plays() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.plays
}

// Ready reports readiness.
func (m *Manual) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready
}

// CurrentKeyframe returns the keyframe.
func (m *Manual) CurrentKeyframe() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keyframe
}

// CurrentPhase returns the reported phase.
func (m *Manual) CurrentPhase() phase.Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reported
}

// PhaseProgress returns the progress computed from the keyframe.
func (m *Manual) PhaseProgress() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.table.PhaseFor(m.keyframe).Progress
}

// Duration returns the configured duration.
func (m *Manual) Duration() time.Duration {
	return m.duration
}

// Play rewinds the keyframe to 0.
func (m *Manual) Play() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plays++
	m.keyframe = 0
	m.reported = m.table.First()
}

// OnSequenceEnd registers an end-of-timeline callback.
func (m *Manual) OnSequenceEnd(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onEnd = append(m.onEnd, fn)
}
