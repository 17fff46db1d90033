// Package elevator provides the elevator scene's sequence controller and the
// loop that keeps its audio clips in step with the animation timeline.
package elevator

import (
	"time"

	"github.com/osa030/nightlift/internal/domain/phase"
)

// Snapshot is the caller-facing view of the sequence.
type Snapshot struct {
	SequenceID       string
	Active           bool
	Phase            phase.Phase
	PhaseProgress    float64
	Keyframe         float64
	AudioTime        time.Duration // Position of the playing clip
	CurrentAudioFile string        // Asset identifier of the playing clip, empty when silent
	Volume           float64
	Elapsed          time.Duration
	Duration         time.Duration
}
