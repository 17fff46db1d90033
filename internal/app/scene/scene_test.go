package scene

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/nightlift/internal/app/animation"
	"github.com/osa030/nightlift/internal/app/audio"
	"github.com/osa030/nightlift/internal/app/elevator"
	"github.com/osa030/nightlift/internal/app/notification"
	"github.com/osa030/nightlift/internal/domain/phase"
)

type collector struct {
	mu  sync.Mutex
	got []*notification.Notification
}

func (c *collector) Send(n *notification.Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, n)
	return nil
}

func (c *collector) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var types []string
	for _, n := range c.got {
		types = append(types, n.Type)
	}
	return types
}

type fixture struct {
	driver *animation.Manual
	mocks  map[phase.Phase]*audio.MockResource
	ctrl   *elevator.Controller
	scene  *Scene
}

func newFixture(t *testing.T, duration time.Duration, config Config) *fixture {
	t.Helper()

	table := phase.DefaultTable()
	mocks := audio.NewMockResources(table)
	bank, err := audio.NewBank(audio.AsResources(mocks), 0.5)
	require.NoError(t, err)

	driver := animation.NewManual(table, duration)
	ctrl := elevator.NewController(table, driver, bank, elevator.Config{SyncInterval: 10 * time.Millisecond})
	s := New(ctrl, config)
	t.Cleanup(s.Close)

	return &fixture{driver: driver, mocks: mocks, ctrl: ctrl, scene: s}
}

func TestScene_EventsReachSubscribers(t *testing.T) {
	f := newFixture(t, time.Hour, Config{})
	c := &collector{}
	f.scene.Subscribe(c)

	snap, err := f.scene.Start()
	require.NoError(t, err)
	assert.True(t, snap.Active)

	f.driver.SetKeyframe(100)
	f.ctrl.Sync()
	f.scene.Stop()

	require.Eventually(t, func() bool {
		return len(c.types()) == 4
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"sequence_started", "phase_changed", "phase_changed", "sequence_stopped"}, c.types())

	c.mu.Lock()
	defer c.mu.Unlock()
	assert.Equal(t, "closed", c.got[2].Payload["phase"])
	assert.Equal(t, "closing", c.got[2].Payload["previous"])
	assert.Equal(t, "elevator_moving", c.got[2].Payload["clip"])
	assert.Equal(t, snap.SequenceID, c.got[0].Payload["sequence_id"])
	for i, n := range c.got {
		assert.Equal(t, uint64(i+1), n.SequenceNo)
	}
}

func TestScene_StartWhileActive(t *testing.T) {
	f := newFixture(t, time.Hour, Config{})

	first, err := f.scene.Start()
	require.NoError(t, err)

	second, err := f.scene.Start()
	assert.True(t, errors.Is(err, elevator.ErrAlreadyActive))
	assert.Equal(t, first.SequenceID, second.SequenceID)
	assert.Equal(t, 1, f.driver.Plays())
}

func TestScene_SetVolume(t *testing.T) {
	f := newFixture(t, time.Hour, Config{})
	c := &collector{}
	f.scene.Subscribe(c)

	_, err := f.scene.Start()
	require.NoError(t, err)

	require.NoError(t, f.scene.SetVolume(0.25))
	assert.Equal(t, 0.25, f.scene.Volume())
	assert.Equal(t, 0.25, f.mocks[phase.Closing].Volume())
	require.Eventually(t, func() bool {
		return len(c.types()) == 3
	}, time.Second, 5*time.Millisecond)
	assert.Contains(t, c.types(), NotificationVolumeChanged)

	err = f.scene.SetVolume(1.5)
	assert.True(t, errors.Is(err, audio.ErrInvalidVolume))
	assert.Equal(t, 0.25, f.scene.Volume())
}

func TestScene_RunOnce(t *testing.T) {
	var completed []elevator.Snapshot
	var mu sync.Mutex
	f := newFixture(t, 60*time.Millisecond, Config{
		OnSequenceCompleted: func(s elevator.Snapshot) {
			mu.Lock()
			defer mu.Unlock()
			completed = append(completed, s)
		},
	})

	done, err := f.scene.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, done, f.scene.Done())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sequence did not complete")
	}

	mu.Lock()
	require.Len(t, completed, 1)
	assert.False(t, completed[0].Active)
	mu.Unlock()
	assert.Nil(t, f.scene.Done())
}

func TestScene_RunOnceWaitsForDriver(t *testing.T) {
	f := newFixture(t, time.Hour, Config{})
	f.driver.SetReady(false)

	go func() {
		time.Sleep(30 * time.Millisecond)
		f.driver.SetReady(true)
	}()

	done, err := f.scene.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, f.scene.State().Active)

	f.scene.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stop did not end the run")
	}
}

func TestScene_RunOnceCancelled(t *testing.T) {
	f := newFixture(t, time.Hour, Config{})
	f.driver.SetReady(false)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := f.scene.RunOnce(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, f.scene.Done())
	assert.False(t, f.scene.State().Active)
}

func TestScene_CloseIsIdempotent(t *testing.T) {
	f := newFixture(t, time.Hour, Config{})
	_, err := f.scene.Start()
	require.NoError(t, err)

	f.scene.Close()
	f.scene.Close()

	for _, p := range phase.Sequence {
		assert.True(t, f.mocks[p].Paused())
	}
	_, err = f.scene.Start()
	assert.True(t, errors.Is(err, elevator.ErrClosed))
}

func TestToNotification(t *testing.T) {
	n := ToNotification(elevator.Event{
		Type:       elevator.EventPlaybackFailed,
		SequenceID: "abc",
		Phase:      phase.Closed,
		Clip:       "elevator_moving",
		Err:        errors.Wrap(errors.New("device busy"), "play"),
	})

	assert.Equal(t, "playback_failed", n.Type)
	assert.Equal(t, "abc", n.Payload["sequence_id"])
	assert.Equal(t, "closed", n.Payload["phase"])
	assert.Equal(t, "device busy", n.Payload["error"])
	assert.Equal(t, "play: device busy", n.Payload["detail"])
}
