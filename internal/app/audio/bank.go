package audio

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/nightlift/internal/domain/phase"
)

// Errors
var (
	ErrUnknownPhase    = errors.New("no resource for phase")
	ErrInvalidVolume   = errors.New("volume must be between 0 and 1")
	ErrMissingResource = errors.New("missing resource")
	ErrNothingToRetry  = errors.New("no clip is waiting to play")
)

// Bank owns one resource per phase and keeps at most one of them playing.
type Bank struct {
	mu sync.Mutex

	resources map[phase.Phase]Resource
	volume    float64

	// Intended playback: the phase whose clip should be audible.
	current   phase.Phase
	lastError error
}

// NewBank creates a bank over the given resources. Every non-idle phase
// must have a resource.
func NewBank(resources map[phase.Phase]Resource, volume float64) (*Bank, error) {
	if volume < 0 || volume > 1 {
		return nil, errors.Wrapf(ErrInvalidVolume, "got %v", volume)
	}

	owned := make(map[phase.Phase]Resource, len(phase.Sequence))
	for _, p := range phase.Sequence {
		r, ok := resources[p]
		if !ok || r == nil {
			return nil, errors.Wrapf(ErrMissingResource, "phase %s", p)
		}
		owned[p] = r
	}

	b := &Bank{
		resources: owned,
		volume:    volume,
		current:   phase.Idle,
	}
	b.stopAllLocked()
	return b, nil
}

// PlayPhase stops whatever is playing and starts the clip for p from zero.
// Playback failures are logged and recorded, not returned: the intent to play
// is kept so that Retry can re-issue it. PlayPhase(phase.Idle) stops everything.
func (b *Bank) PlayPhase(p phase.Phase) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if p == phase.Idle {
		b.stopAllLocked()
		return nil
	}

	next, ok := b.resources[p]
	if !ok {
		return errors.Wrapf(ErrUnknownPhase, "phase %s", p)
	}

	if b.current != phase.Idle {
		stop(b.resources[b.current])
	}

	b.current = p
	b.lastError = nil
	if err := next.Rewind(); err != nil {
		zlog.Warn().Msgf("audio: rewind failed: clip=%s error=%v", next.ID(), err)
	}
	next.SetVolume(b.volume)
	b.playLocked(next)

	return nil
}

// Stop stops p's clip if it is the one playing. It returns true when a clip was stopped.
func (b *Bank) Stop(p phase.Phase) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if p == phase.Idle || b.current != p {
		return false
	}

	stop(b.resources[p])
	b.current = phase.Idle
	return true
}

// StopAll pauses and rewinds every clip. Safe to call repeatedly.
func (b *Bank) StopAll() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stopAllLocked()
}

// Retry re-issues play for the clip that is supposed to be playing after its
// play failed, e.g. once a user gesture unblocked the output device. A clip
// that played and then ran to its end is left alone.
func (b *Bank) Retry() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current == phase.Idle {
		return ErrNothingToRetry
	}

	r := b.resources[b.current]
	if b.lastError == nil || !r.Paused() {
		return nil
	}
	b.lastError = nil
	r.SetVolume(b.volume)
	b.playLocked(r)
	return b.lastError
}

// SetVolume sets the master volume. The playing clip picks it up immediately;
// otherwise it is applied to the next clip started.
func (b *Bank) SetVolume(v float64) error {
	if v < 0 || v > 1 {
		return errors.Wrapf(ErrInvalidVolume, "got %v", v)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.volume = v
	if b.current != phase.Idle {
		b.resources[b.current].SetVolume(v)
	}
	return nil
}

// Volume returns the master volume.
func (b *Bank) Volume() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.volume
}

// Current returns the phase and clip intended to be playing.
func (b *Bank) Current() (phase.Phase, Resource, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current == phase.Idle {
		return phase.Idle, nil, false
	}
	return b.current, b.resources[b.current], true
}

// Position returns the playing clip's position, or zero when nothing plays.
func (b *Bank) Position() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current == phase.Idle {
		return 0
	}
	return b.resources[b.current].Position()
}

// LastError returns the most recent playback failure of the current clip.
func (b *Bank) LastError() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastError
}

// Resource returns the clip registered for p.
func (b *Bank) Resource(p phase.Phase) (Resource, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	r, ok := b.resources[p]
	return r, ok
}

// stopAllLocked must be called with lock held.
func (b *Bank) stopAllLocked() {
	for _, p := range phase.Sequence {
		stop(b.resources[p])
	}
	b.current = phase.Idle
}

// playLocked must be called with lock held.
func (b *Bank) playLocked(r Resource) {
	if err := r.Play(); err != nil {
		b.lastError = err
		zlog.Warn().Msgf("audio: play failed, continuing silently: clip=%s error=%v", r.ID(), err)
		return
	}
	zlog.Debug().Msgf("audio: playing clip=%s volume=%.2f", r.ID(), b.volume)
}

func stop(r Resource) {
	r.Pause()
	if err := r.Rewind(); err != nil {
		zlog.Warn().Msgf("audio: rewind failed: clip=%s error=%v", r.ID(), err)
	}
}
