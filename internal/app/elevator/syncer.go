package elevator

import (
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/nightlift/internal/app/animation"
	"github.com/osa030/nightlift/internal/app/audio"
	"github.com/osa030/nightlift/internal/domain/phase"
)

// SyncState is the per-sequence synchronization state.
type SyncState struct {
	CurrentPhase      phase.Phase // Phase computed on the latest tick
	LastObservedPhase phase.Phase // Phase whose clip was last requested
	IsPlaying         bool        // A clip is intended to be playing
}

// TickResult describes what a single sync tick observed and did.
type TickResult struct {
	Position       phase.Position // Canonical position computed from the keyframe
	Reported       phase.Phase    // Phase reported by the driver
	DriverProgress float64        // Progress reported by the driver
	Previous       phase.Phase    // Last observed phase before the tick
	Changed        bool           // Clip switched to Position.Phase
	StoppedAtEnd   bool           // Window clip stopped at its end keyframe
	PlayErr        error          // Playback failure from the switch, if any
}

// Syncer maps the driver's keyframe to a phase and switches the bank's clip
// when the phase changes. The keyframe-computed phase is authoritative; the
// driver's own phase is only logged when it disagrees.
// Syncer is not safe for concurrent use; the controller serialises it.
type Syncer struct {
	table  *phase.Table
	driver animation.Driver
	bank   *audio.Bank

	current      phase.Phase
	last         phase.Phase
	stoppedAtEnd map[phase.Phase]bool
}

// NewSyncer creates a syncer in the idle state.
func NewSyncer(table *phase.Table, driver animation.Driver, bank *audio.Bank) *Syncer {
	return &Syncer{
		table:        table,
		driver:       driver,
		bank:         bank,
		current:      phase.Idle,
		last:         phase.Idle,
		stoppedAtEnd: make(map[phase.Phase]bool),
	}
}

// Reset sets the observed phase without touching the bank.
func (s *Syncer) Reset(p phase.Phase) {
	s.current = p
	s.last = p
	s.stoppedAtEnd = make(map[phase.Phase]bool)
}

// State returns the current synchronization state.
func (s *Syncer) State() SyncState {
	_, _, playing := s.bank.Current()
	return SyncState{
		CurrentPhase:      s.current,
		LastObservedPhase: s.last,
		IsPlaying:         playing,
	}
}

// Tick runs one synchronization step.
func (s *Syncer) Tick() TickResult {
	keyframe := s.driver.CurrentKeyframe()
	reported := s.driver.CurrentPhase()
	pos := s.table.PhaseFor(keyframe)

	result := TickResult{
		Position:       pos,
		Reported:       reported,
		DriverProgress: s.driver.PhaseProgress(),
		Previous:       s.last,
	}

	if reported != phase.Idle && reported != pos.Phase {
		zlog.Debug().Msgf("elevator: driver phase disagrees: keyframe=%.1f driver=%s computed=%s",
			keyframe, reported, pos.Phase)
	}

	s.current = pos.Phase
	if pos.Phase != s.last {
		if err := s.bank.PlayPhase(pos.Phase); err != nil {
			zlog.Error().Msgf("elevator: switching clip failed: phase=%s error=%v", pos.Phase, err)
		}
		result.Changed = true
		result.PlayErr = s.bank.LastError()
		s.last = pos.Phase
	}

	w, ok := s.table.Window(pos.Phase)
	if ok && w.StopAtEnd && !s.stoppedAtEnd[w.Phase] && pos.Keyframe >= float64(w.End) {
		s.stoppedAtEnd[w.Phase] = true
		result.StoppedAtEnd = s.bank.Stop(w.Phase)
	}

	return result
}
