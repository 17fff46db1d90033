package animation

import (
	"context"
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/nightlift/internal/domain/phase"
)

// TimelineConfig holds simulated timeline configuration.
type TimelineConfig struct {
	Duration  time.Duration // Time to go from keyframe 0 to the last keyframe
	FrameRate int           // Render ticks per second
	LoadDelay time.Duration // Simulated scene load latency
}

// Timeline is a Driver that advances the keyframe linearly on its own render tick.
type Timeline struct {
	mu sync.RWMutex

	table    *phase.Table
	config   TimelineConfig
	ready    bool
	keyframe float64
	pos      phase.Position

	runCancel func()
	onEnd     []func()

	ctx    context.Context
	cancel context.CancelFunc
}

// NewTimeline creates a timeline driver. It is not ready until Load returns.
func NewTimeline(table *phase.Table, config TimelineConfig) *Timeline {
	if config.FrameRate <= 0 {
		config.FrameRate = 60
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Timeline{
		table:  table,
		config: config,
		pos:    phase.Position{Phase: phase.Idle},
		ctx:    ctx,
		cancel: cancel,
	}
}

// Load simulates loading the scene and marks the timeline ready.
func (t *Timeline) Load(ctx context.Context) error {
	if t.config.LoadDelay > 0 {
		zlog.Debug().Msgf("animation: loading scene: delay=%v", t.config.LoadDelay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.ctx.Done():
			return t.ctx.Err()
		case <-time.After(t.config.LoadDelay):
		}
	}

	t.mu.Lock()
	t.ready = true
	t.mu.Unlock()
	zlog.Info().Msg("animation: scene ready")
	return nil
}

// Ready reports whether Load has completed.
func (t *Timeline) Ready() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.ready
}

// CurrentKeyframe returns the current keyframe.
func (t *Timeline) CurrentKeyframe() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.keyframe
}

// CurrentPhase returns the phase of the current keyframe, idle when not running.
func (t *Timeline) CurrentPhase() phase.Phase {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.pos.Phase
}

// PhaseProgress returns the progress within the current phase.
func (t *Timeline) PhaseProgress() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.pos.Progress
}

// Duration returns the configured duration.
func (t *Timeline) Duration() time.Duration {
	return t.config.Duration
}

// OnSequenceEnd registers an end-of-timeline callback.
func (t *Timeline) OnSequenceEnd(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onEnd = append(t.onEnd, fn)
}

// Play restarts the timeline from keyframe 0.
func (t *Timeline) Play() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.runCancel != nil {
		t.runCancel()
	}

	t.keyframe = 0
	t.pos = t.table.PhaseFor(0)

	ctx, cancel := context.WithCancel(t.ctx)
	t.runCancel = cancel
	go t.renderLoop(ctx, time.Now())
}

// Halt stops the render loop, leaving the keyframe where it is.
func (t *Timeline) Halt() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.runCancel != nil {
		t.runCancel()
		t.runCancel = nil
	}
	t.pos = phase.Position{Phase: phase.Idle, Keyframe: t.keyframe}
}

// Close stops the timeline permanently.
func (t *Timeline) Close() {
	t.cancel()
}

// renderLoop advances the keyframe once per frame until the timeline ends.
func (t *Timeline) renderLoop(ctx context.Context, started time.Time) {
	ticker := time.NewTicker(time.Second / time.Duration(t.config.FrameRate))
	defer ticker.Stop()

	total := float64(t.table.TotalFrames())

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			elapsed := now.Sub(started)
			keyframe := total
			if t.config.Duration > 0 && elapsed < t.config.Duration {
				keyframe = total * float64(elapsed) / float64(t.config.Duration)
			}

			t.mu.Lock()
			if ctx.Err() != nil {
				t.mu.Unlock()
				return
			}
			t.keyframe = keyframe
			t.pos = t.table.PhaseFor(keyframe)
			finished := keyframe >= total
			var callbacks []func()
			if finished {
				t.runCancel = nil
				callbacks = append(callbacks, t.onEnd...)
			}
			t.mu.Unlock()

			if finished {
				zlog.Debug().Msgf("animation: timeline finished: elapsed=%v", elapsed)
				for _, fn := range callbacks {
					fn()
				}
				return
			}
		}
	}
}
