// Package scene wires the elevator controller to its subscribers and is the
// surface the server and commands drive.
package scene

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/nightlift/internal/app/elevator"
	"github.com/osa030/nightlift/internal/app/notification"
)

// Notification types emitted by the scene itself.
const (
	NotificationVolumeChanged = "volume_changed"
)

// Config holds scene callbacks.
type Config struct {
	// OnSequenceCompleted runs after each sequence that finished on schedule.
	OnSequenceCompleted func(elevator.Snapshot)
}

// Scene owns the elevator controller for its lifetime.
type Scene struct {
	controller   *elevator.Controller
	notification *notification.Manager
	config       Config

	mu  sync.Mutex
	run *pendingRun

	ctx    context.Context
	cancel context.CancelFunc
	pumped chan struct{}
}

// pendingRun tracks a sequence started by RunOnce.
type pendingRun struct {
	done   chan struct{}
	once   sync.Once
	cancel context.CancelFunc // Aborts the wait for the animation
}

func (r *pendingRun) finish() {
	r.cancel()
	r.once.Do(func() { close(r.done) })
}

// New creates a scene around controller and starts pumping its events.
func New(controller *elevator.Controller, config Config) *Scene {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scene{
		controller:   controller,
		notification: notification.NewManager(),
		config:       config,
		ctx:          ctx,
		cancel:       cancel,
		pumped:       make(chan struct{}),
	}

	go s.eventLoop()
	return s
}

// Start begins a sequence.
func (s *Scene) Start() (elevator.Snapshot, error) {
	if err := s.controller.Start(s.onCompleted); err != nil {
		return s.controller.GetState(), err
	}
	return s.controller.GetState(), nil
}

// RunOnce waits for the animation to be ready, starts a sequence and returns
// a channel closed when that sequence completes or is stopped.
func (s *Scene) RunOnce(ctx context.Context) (<-chan struct{}, error) {
	s.mu.Lock()
	if s.run != nil {
		s.mu.Unlock()
		return nil, elevator.ErrAlreadyActive
	}
	waitCtx, cancel := context.WithCancel(ctx)
	run := &pendingRun{done: make(chan struct{}), cancel: cancel}
	s.run = run
	s.mu.Unlock()

	if err := s.controller.StartWhenReady(waitCtx, s.onCompleted); err != nil {
		s.mu.Lock()
		if s.run == run {
			s.run = nil
		}
		s.mu.Unlock()
		run.finish()
		return nil, err
	}
	return run.done, nil
}

// Done returns the channel of the pending RunOnce sequence, or nil.
func (s *Scene) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run == nil {
		return nil
	}
	return s.run.done
}

// Stop aborts the running sequence, if any.
func (s *Scene) Stop() elevator.Snapshot {
	s.controller.Stop()
	s.finishRun()
	return s.controller.GetState()
}

// SetVolume changes the master volume and notifies subscribers.
func (s *Scene) SetVolume(v float64) error {
	if err := s.controller.SetVolume(v); err != nil {
		return err
	}

	zlog.Info().Msgf("scene: volume changed: volume=%.2f", v)
	s.notification.Broadcast(&notification.Notification{
		Type:    NotificationVolumeChanged,
		Payload: map[string]any{"volume": v},
	})
	return nil
}

// Volume returns the master volume.
func (s *Scene) Volume() float64 {
	return s.controller.Volume()
}

// State returns a snapshot of the running sequence.
func (s *Scene) State() elevator.Snapshot {
	return s.controller.GetState()
}

// Closed returns a channel closed once the scene has shut down.
func (s *Scene) Closed() <-chan struct{} {
	return s.ctx.Done()
}

// LastSequenceNo returns the sequence number of the last notification sent.
func (s *Scene) LastSequenceNo() uint64 {
	return s.notification.SequenceNo()
}

// SubscriberCount returns the number of active subscribers.
func (s *Scene) SubscriberCount() int {
	return s.notification.SubscriberCount()
}

// Subscribe registers stream for event notifications. The returned channel
// is closed when the subscription ends.
func (s *Scene) Subscribe(stream notification.Stream) (string, <-chan struct{}) {
	return s.notification.Subscribe(stream)
}

// Unsubscribe removes a subscription.
func (s *Scene) Unsubscribe(id string) {
	s.notification.Unsubscribe(id)
}

// Close stops the scene and waits for the event pump to drain.
func (s *Scene) Close() {
	s.controller.Close()
	s.finishRun()

	<-s.pumped
	s.cancel()
	s.notification.Close()
}

func (s *Scene) onCompleted() {
	snap := s.controller.GetState()
	if s.config.OnSequenceCompleted != nil {
		s.config.OnSequenceCompleted(snap)
	}
	s.finishRun()
}

func (s *Scene) finishRun() {
	s.mu.Lock()
	run := s.run
	s.run = nil
	s.mu.Unlock()

	if run != nil {
		run.finish()
	}
}

// eventLoop forwards controller events to subscribers until the controller
// closes its event channel.
func (s *Scene) eventLoop() {
	defer func() {
		if r := recover(); r != nil {
			zlog.Error().Msgf("scene: event loop panicked: %v", r)
			zlog.Info().Msg("scene: restarting event loop")
			go s.eventLoop()
			return
		}
		close(s.pumped)
	}()

	for {
		select {
		case <-s.ctx.Done():
			return
		case e, ok := <-s.controller.Events():
			if !ok {
				return
			}
			s.handleEvent(e)
		}
	}
}

func (s *Scene) handleEvent(e elevator.Event) {
	n := ToNotification(e)
	queued := s.notification.Broadcast(n)

	zlog.Debug().Msgf("scene: event: type=%s seq=%d phase=%s queued=%d",
		e.Type, n.SequenceNo, e.Phase, queued)
}

// ToNotification converts a controller event into a notification payload.
func ToNotification(e elevator.Event) *notification.Notification {
	payload := map[string]any{
		"sequence_id": e.SequenceID,
		"phase":       e.Phase.String(),
	}
	switch e.Type {
	case elevator.EventPhaseChanged:
		payload["previous"] = e.Previous.String()
		payload["keyframe"] = e.Keyframe
		payload["clip"] = e.Clip
	case elevator.EventTransitStopped:
		payload["keyframe"] = e.Keyframe
		payload["clip"] = e.Clip
	case elevator.EventPlaybackFailed:
		payload["clip"] = e.Clip
		if e.Err != nil {
			payload["error"] = errors.UnwrapAll(e.Err).Error()
			payload["detail"] = e.Err.Error()
		}
	}

	return &notification.Notification{
		Type:    e.Type.String(),
		Payload: payload,
	}
}
