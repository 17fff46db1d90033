// Package audio provides the audio bank that owns the elevator's phase clips.
package audio

import "time"

// Resource is a loadable, seekable, playable clip.
// Play may fail (blocked output device, decode error); callers treat the
// failure as non-fatal.
type Resource interface {
	// ID returns the asset identifier.
	ID() string
	// Play starts or resumes playback from the current position.
	Play() error
	// Pause stops playback, keeping the position.
	Pause()
	// Rewind moves the playback position back to zero.
	Rewind() error
	// Position returns the current playback position.
	Position() time.Duration
	// SetVolume sets the playback volume (0.0 to 1.0).
	SetVolume(v float64)
	// Volume returns the current volume.
	Volume() float64
	// Paused reports whether the resource is paused.
	Paused() bool
}
