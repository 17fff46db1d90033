// Package phase provides the elevator phase clock: phase tags, keyframe
// windows and the keyframe-to-phase mapping.
package phase

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// TotalFrames is the length of the elevator animation timeline in keyframes.
const TotalFrames = 300

// Phase represents a named segment of the elevator sequence.
type Phase int

const (
	Idle    Phase = iota // No sequence active
	Closing              // Doors closing
	Closed               // Doors closed, car in transit
	Opening              // Doors opening
)

// Sequence lists the non-idle phases in playback order.
var Sequence = []Phase{Closing, Closed, Opening}

// String returns the string representation of the phase.
func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	case Opening:
		return "opening"
	default:
		return "unknown"
	}
}

// ParsePhase parses a phase tag.
func ParsePhase(s string) (Phase, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "idle":
		return Idle, nil
	case "closing":
		return Closing, nil
	case "closed":
		return Closed, nil
	case "opening":
		return Opening, nil
	default:
		return Idle, errors.Newf("unknown phase: %q", s)
	}
}
