package audio

import (
	"sync"
	"time"

	"github.com/osa030/nightlift/internal/domain/phase"
)

// MockResource is an in-memory Resource for tests. Its position only moves
// when Advance is called.
type MockResource struct {
	mu sync.Mutex

	id       string
	paused   bool
	position time.Duration
	volume   float64
	playErr  error

	playCalls   int
	rewindCalls int
}

// NewMockResource creates a paused mock clip.
func NewMockResource(id string) *MockResource {
	return &MockResource{
		id:     id,
		paused: true,
		volume: 1.0,
	}
}

// ID returns the asset identifier.
func (m *MockResource) ID() string {
	return m.id
}

// Play starts playback unless a failure was injected.
func (m *MockResource) Play() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.playCalls++
	if m.playErr != nil {
		return m.playErr
	}
	m.paused = false
	return nil
}

// Pause pauses playback.
func (m *MockResource) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = true
}

// Rewind resets the position.
func (m *MockResource) Rewind() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rewindCalls++
	m.position = 0
	return nil
}

// Position returns the simulated position.
func (m *MockResource) Position() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position
}

// SetVolume sets the volume.
func (m *MockResource) SetVolume(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volume = v
}

// Volume returns the volume.
func (m *MockResource) Volume() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.volume
}

// Paused reports whether the clip is paused.
func (m *MockResource) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

// FailPlay makes subsequent Play calls return err. Pass nil to clear.
func (m *MockResource) FailPlay(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playErr = err
}

// Advance moves the position forward while playing.
func (m *MockResource) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.paused {
		m.position += d
	}
}

// PlayCalls returns how many times Play was called.
func (m *MockResource) PlayCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playCalls
}

// RewindCalls returns how many times Rewind was called.
func (m *MockResource) RewindCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rewindCalls
}

// NewMockResources creates a mock clip for each window of the table.
func NewMockResources(table *phase.Table) map[phase.Phase]*MockResource {
	mocks := make(map[phase.Phase]*MockResource)
	for _, w := range table.Windows() {
		mocks[w.Phase] = NewMockResource(w.Asset)
	}
	return mocks
}

// AsResources converts mock clips into the map NewBank takes.
func AsResources(mocks map[phase.Phase]*MockResource) map[phase.Phase]Resource {
	resources := make(map[phase.Phase]Resource, len(mocks))
	for p, m := range mocks {
		resources[p] = m
	}
	return resources
}
