package elevator

import "github.com/osa030/nightlift/internal/domain/phase"

// EventType represents an elevator sequence event type.
type EventType int

const (
	EventSequenceStarted   EventType = iota // Sequence started, closing clip requested
	EventPhaseChanged                       // Canonical phase changed, clip switched
	EventTransitStopped                     // Transit clip stopped at the end of its window
	EventPlaybackFailed                     // A clip failed to start; sequence continues silently
	EventSequenceCompleted                  // Duration elapsed, completion callback invoked
	EventSequenceStopped                    // Sequence aborted by Stop
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventSequenceStarted:
		return "sequence_started"
	case EventPhaseChanged:
		return "phase_changed"
	case EventTransitStopped:
		return "transit_stopped"
	case EventPlaybackFailed:
		return "playback_failed"
	case EventSequenceCompleted:
		return "sequence_completed"
	case EventSequenceStopped:
		return "sequence_stopped"
	default:
		return "unknown"
	}
}

// Event represents an elevator sequence event.
type Event struct {
	Type       EventType
	SequenceID string
	Phase      phase.Phase // Phase after the event
	Previous   phase.Phase // Phase before the event (phase_changed only)
	Keyframe   float64
	Clip       string // Asset identifier involved, if any
	Err        error  // Playback error (playback_failed only)
}
