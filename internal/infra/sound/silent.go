package sound

import (
	"sync"
	"time"
)

// Silent is a resource that plays nothing but keeps time like a real clip,
// so positions and state stay meaningful without an audio device.
type Silent struct {
	mu sync.Mutex

	id       string
	length   time.Duration
	volume   float64
	playing  bool
	offset   time.Duration // Position accumulated before the current play
	playedAt time.Time
	now      func() time.Time
}

// NewSilent creates a silent clip of the given length.
func NewSilent(id string, length time.Duration) *Silent {
	return &Silent{
		id:     id,
		length: length,
		volume: 1.0,
		now:    time.Now,
	}
}

func (s *Silent) ID() string {
	return s.id
}

func (s *Silent) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.playing {
		s.playing = true
		s.playedAt = s.now()
	}
	return nil
}

func (s *Silent) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.playing {
		s.offset = s.positionLocked()
		s.playing = false
	}
}

func (s *Silent) Rewind() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.offset = 0
	s.playedAt = s.now()
	return nil
}

func (s *Silent) Position() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.positionLocked()
}

func (s *Silent) SetVolume(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volume = v
}

func (s *Silent) Volume() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

// Paused reports true after Pause and once the clip has run its length.
func (s *Silent) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.playing || (s.length > 0 && s.positionLocked() >= s.length)
}

func (s *Silent) positionLocked() time.Duration {
	pos := s.offset
	if s.playing {
		pos += s.now().Sub(s.playedAt)
	}
	if s.length > 0 && pos > s.length {
		pos = s.length
	}
	return pos
}
