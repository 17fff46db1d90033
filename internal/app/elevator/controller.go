package elevator

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/nightlift/internal/app/animation"
	"github.com/osa030/nightlift/internal/app/audio"
	"github.com/osa030/nightlift/internal/domain/phase"
)

// Errors
var (
	ErrAlreadyActive  = errors.New("elevator sequence already active")
	ErrDriverNotReady = errors.New("animation driver not ready")
	ErrClosed         = errors.New("controller closed")
)

// Default timings.
const (
	DefaultSyncInterval     = 50 * time.Millisecond
	DefaultFallbackDuration = 8 * time.Second
	maxTimerResolution      = 100 * time.Millisecond
)

// Config holds controller configuration.
type Config struct {
	SyncInterval     time.Duration // Sync tick period
	FallbackDuration time.Duration // Used when the driver reports no duration
}

// Controller runs one elevator sequence at a time.
type Controller struct {
	mu sync.Mutex

	table  *phase.Table
	driver animation.Driver
	bank   *audio.Bank
	syncer *Syncer
	config Config

	// Sequence state
	active     bool
	sequenceID string
	generation uint64
	startTime  time.Time
	duration   time.Duration
	onComplete func()

	// Timers
	loopCancel  func() // Cancel function for the sync loop
	timerCancel func() // Cancel function for the completion timer

	// Events
	eventCh chan Event
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewController creates a controller. The bank is owned by the controller
// from here on: nothing else should start or stop its clips.
func NewController(table *phase.Table, driver animation.Driver, bank *audio.Bank, config Config) *Controller {
	if config.SyncInterval <= 0 {
		config.SyncInterval = DefaultSyncInterval
	}
	if config.FallbackDuration <= 0 {
		config.FallbackDuration = DefaultFallbackDuration
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		table:   table,
		driver:  driver,
		bank:    bank,
		syncer:  NewSyncer(table, driver, bank),
		config:  config,
		eventCh: make(chan Event, 32),
		ctx:     ctx,
		cancel:  cancel,
	}

	driver.OnSequenceEnd(c.onDriverEnd)
	return c
}

// Events returns the event channel.
func (c *Controller) Events() <-chan Event {
	return c.eventCh
}

// Start begins a sequence. onComplete is invoked exactly once when the
// driver's duration has elapsed; it is not invoked if the sequence is stopped.
// Start returns ErrAlreadyActive without side effects while a sequence runs.
func (c *Controller) Start(onComplete func()) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.active {
		return ErrAlreadyActive
	}
	if !c.driver.Ready() {
		return ErrDriverNotReady
	}

	duration := c.driver.Duration()
	if duration <= 0 {
		duration = c.config.FallbackDuration
		zlog.Warn().Msgf("elevator: driver reported no duration, using fallback: duration=%v", duration)
	}

	c.generation++
	gen := c.generation
	c.active = true
	c.sequenceID = uuid.New().String()
	c.startTime = toWallTime(time.Now())
	c.duration = duration
	c.onComplete = onComplete

	c.driver.Play()

	first := c.table.First()
	c.syncer.Reset(first)
	if err := c.bank.PlayPhase(first); err != nil {
		zlog.Error().Msgf("elevator: starting first clip failed: phase=%s error=%v", first, err)
	}

	zlog.Info().Msgf("elevator: sequence started: id=%s duration=%v interval=%v",
		c.sequenceID, duration, c.config.SyncInterval)

	c.sendEventLocked(Event{Type: EventSequenceStarted, Phase: first})
	c.sendEventLocked(Event{Type: EventPhaseChanged, Phase: first, Previous: phase.Idle, Clip: c.clipLocked(first)})
	if err := c.bank.LastError(); err != nil {
		c.sendEventLocked(Event{Type: EventPlaybackFailed, Phase: first, Clip: c.clipLocked(first), Err: err})
	}

	loopCtx, loopCancel := context.WithCancel(c.ctx)
	c.loopCancel = loopCancel
	go c.syncLoop(loopCtx, gen)

	c.timerCancel = c.startWallClockTimer(duration, func() {
		c.onDurationElapsed(gen)
	})

	return nil
}

// StartWhenReady waits for the driver to become ready, then starts a sequence.
func (c *Controller) StartWhenReady(ctx context.Context, onComplete func()) error {
	ticker := time.NewTicker(c.config.SyncInterval)
	defer ticker.Stop()

	for {
		if c.driver.Ready() {
			return c.Start(onComplete)
		}

		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "waiting for animation driver")
		case <-c.ctx.Done():
			return ErrClosed
		case <-ticker.C:
		}
	}
}

// Stop aborts the running sequence and silences every clip.
// It is safe to call at any time, any number of times.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active {
		c.bank.StopAll()
		return
	}

	zlog.Info().Msgf("elevator: sequence stopped: id=%s elapsed=%v", c.sequenceID, c.elapsedLocked())

	id := c.sequenceID
	c.teardownLocked()
	c.sendEventLocked(Event{Type: EventSequenceStopped, SequenceID: id, Phase: phase.Idle})
}

// Sync runs one synchronization tick immediately. It returns false when no
// sequence is active.
func (c *Controller) Sync() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active {
		return false
	}
	c.tickLocked()
	return true
}

// SetVolume sets the master volume.
func (c *Controller) SetVolume(v float64) error {
	return c.bank.SetVolume(v)
}

// Volume returns the master volume.
func (c *Controller) Volume() float64 {
	return c.bank.Volume()
}

// RetryPlayback re-issues play for the current clip after a playback failure.
func (c *Controller) RetryPlayback() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active {
		return audio.ErrNothingToRetry
	}
	return c.bank.Retry()
}

// IsActive reports whether a sequence is running.
func (c *Controller) IsActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// SyncState returns the synchronization state of the running sequence.
func (c *Controller) SyncState() SyncState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.syncer.State()
}

// GetState returns a snapshot of the sequence.
func (c *Controller) GetState() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		SequenceID: c.sequenceID,
		Active:     c.active,
		Phase:      phase.Idle,
		Volume:     c.bank.Volume(),
		Duration:   c.duration,
	}
	if !c.active {
		return snap
	}

	pos := c.table.PhaseFor(c.driver.CurrentKeyframe())
	snap.Phase = c.syncer.State().LastObservedPhase
	snap.PhaseProgress = pos.Progress
	snap.Keyframe = pos.Keyframe
	snap.Elapsed = c.elapsedLocked()
	if _, r, ok := c.bank.Current(); ok {
		snap.AudioTime = r.Position()
		snap.CurrentAudioFile = r.ID()
	}
	return snap
}

// Close stops any sequence and releases resources.
func (c *Controller) Close() {
	c.Stop()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.cancel()
	close(c.eventCh)
}

// syncLoop ticks until the sequence ends.
func (c *Controller) syncLoop(ctx context.Context, gen uint64) {
	ticker := time.NewTicker(c.config.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			// A stop may have raced the tick; never touch the driver after it.
			if !c.active || c.generation != gen {
				c.mu.Unlock()
				return
			}
			c.tickLocked()
			c.mu.Unlock()
		}
	}
}

// tickLocked must be called with lock held.
func (c *Controller) tickLocked() {
	result := c.syncer.Tick()
	pos := result.Position

	if result.Changed {
		clip := c.clipLocked(pos.Phase)
		zlog.Info().Msgf("elevator: phase changed: id=%s from=%s to=%s keyframe=%.1f clip=%s",
			c.sequenceID, result.Previous, pos.Phase, pos.Keyframe, clip)
		c.sendEventLocked(Event{
			Type:     EventPhaseChanged,
			Phase:    pos.Phase,
			Previous: result.Previous,
			Keyframe: pos.Keyframe,
			Clip:     clip,
		})
		if result.PlayErr != nil {
			c.sendEventLocked(Event{
				Type:     EventPlaybackFailed,
				Phase:    pos.Phase,
				Keyframe: pos.Keyframe,
				Clip:     clip,
				Err:      result.PlayErr,
			})
		}
	}

	if result.StoppedAtEnd {
		clip := c.clipLocked(pos.Phase)
		zlog.Info().Msgf("elevator: clip stopped at window end: id=%s phase=%s keyframe=%.1f clip=%s",
			c.sequenceID, pos.Phase, pos.Keyframe, clip)
		c.sendEventLocked(Event{
			Type:     EventTransitStopped,
			Phase:    pos.Phase,
			Keyframe: pos.Keyframe,
			Clip:     clip,
		})
	}
}

// onDurationElapsed completes the sequence started with generation gen.
func (c *Controller) onDurationElapsed(gen uint64) {
	c.mu.Lock()
	if !c.active || c.generation != gen {
		c.mu.Unlock()
		return
	}

	callback := c.onComplete
	id := c.sequenceID
	zlog.Info().Msgf("elevator: sequence completed: id=%s expected=%v actual=%v",
		id, c.duration, c.elapsedLocked())

	c.teardownLocked()
	c.sendEventLocked(Event{Type: EventSequenceCompleted, SequenceID: id, Phase: phase.Idle})
	c.mu.Unlock()

	if callback != nil {
		callback()
	}
}

// onDriverEnd is called when the driver's timeline finishes. Completion is
// driven by the duration timer; this is only logged.
func (c *Controller) onDriverEnd() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active {
		return
	}
	zlog.Debug().Msgf("elevator: driver timeline finished: id=%s elapsed=%v duration=%v",
		c.sequenceID, c.elapsedLocked(), c.duration)
}

// teardownLocked must be called with lock held.
func (c *Controller) teardownLocked() {
	if c.loopCancel != nil {
		c.loopCancel()
		c.loopCancel = nil
	}
	if c.timerCancel != nil {
		c.timerCancel()
		c.timerCancel = nil
	}

	c.bank.StopAll()
	c.syncer.Reset(phase.Idle)
	c.active = false
	c.onComplete = nil
}

// clipLocked returns the asset identifier for p.
func (c *Controller) clipLocked(p phase.Phase) string {
	if w, ok := c.table.Window(p); ok {
		return w.Asset
	}
	return ""
}

func (c *Controller) elapsedLocked() time.Duration {
	if c.startTime.IsZero() {
		return 0
	}
	return toWallTime(time.Now()).Sub(c.startTime)
}

// sendEventLocked sends an event without blocking.
// Must be called with lock held.
func (c *Controller) sendEventLocked(e Event) {
	if c.closed {
		return
	}
	if e.SequenceID == "" {
		e.SequenceID = c.sequenceID
	}

	select {
	case c.eventCh <- e:
	default:
		zlog.Warn().Msgf("elevator: event channel full, dropping event: type=%s", e.Type)
	}
}

// startWallClockTimer starts a timer that triggers callback after duration,
// using wall clock. Returns a cancel function.
func (c *Controller) startWallClockTimer(duration time.Duration, callback func()) func() {
	ctx, cancel := context.WithCancel(c.ctx)

	resolution := c.config.SyncInterval
	if resolution > maxTimerResolution {
		resolution = maxTimerResolution
	}

	go func() {
		endTime := toWallTime(time.Now()).Add(duration)
		ticker := time.NewTicker(resolution)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !toWallTime(time.Now()).Before(endTime) {
					callback()
					return
				}
			}
		}
	}()

	return cancel
}

// toWallTime returns the time with monotonic clock stripped.
func toWallTime(t time.Time) time.Time {
	return time.Unix(t.Unix(), int64(t.Nanosecond()))
}
