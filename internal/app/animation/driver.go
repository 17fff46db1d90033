// Package animation provides the animation driver contract the elevator
// sequence consumes, plus in-process drivers.
package animation

import (
	"time"

	"github.com/osa030/nightlift/internal/domain/phase"
)

// Driver is a handle on the elevator scene's animation timeline.
type Driver interface {
	// Ready reports whether the scene has finished loading.
	Ready() bool
	// CurrentKeyframe returns the current position on the timeline.
	CurrentKeyframe() float64
	// CurrentPhase returns the driver's own phase bookkeeping (telemetry only).
	CurrentPhase() phase.Phase
	// PhaseProgress returns the driver's progress within its current phase.
	PhaseProgress() float64
	// Duration returns the total animation duration, or 0 when unknown.
	Duration() time.Duration
	// Play starts the timeline from keyframe 0.
	Play()
	// OnSequenceEnd registers a callback invoked once each time the timeline finishes.
	OnSequenceEnd(fn func())
}
