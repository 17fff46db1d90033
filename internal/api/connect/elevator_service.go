package connect

import (
	"context"
	"sync"
	"time"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/osa030/nightlift/internal/app/audio"
	"github.com/osa030/nightlift/internal/app/elevator"
	"github.com/osa030/nightlift/internal/app/notification"
	"github.com/osa030/nightlift/internal/app/scene"
)

// NotificationInitialState is the first message of every WatchEvents stream.
const NotificationInitialState = "initial_state"

// ElevatorService implements the ElevatorService RPC.
type ElevatorService struct {
	scene *scene.Scene
}

// NewElevatorService creates a new ElevatorService.
func NewElevatorService(s *scene.Scene) *ElevatorService {
	return &ElevatorService{
		scene: s,
	}
}

// Start begins a sequence and returns its state.
func (s *ElevatorService) Start(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[structpb.Struct], error) {
	snap, err := s.scene.Start()
	if err != nil {
		return nil, toConnectError(err)
	}
	return snapshotResponse(snap)
}

// Stop aborts any running sequence. Stopping an idle elevator succeeds.
func (s *ElevatorService) Stop(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[structpb.Struct], error) {
	return snapshotResponse(s.scene.Stop())
}

// SetVolume sets the master volume and echoes the applied value.
func (s *ElevatorService) SetVolume(
	ctx context.Context,
	req *connect.Request[wrapperspb.DoubleValue],
) (*connect.Response[wrapperspb.DoubleValue], error) {
	if err := s.scene.SetVolume(req.Msg.GetValue()); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(wrapperspb.Double(s.scene.Volume())), nil
}

// GetVolume returns the master volume.
func (s *ElevatorService) GetVolume(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[wrapperspb.DoubleValue], error) {
	return connect.NewResponse(wrapperspb.Double(s.scene.Volume())), nil
}

// GetState returns a snapshot of the sequence.
func (s *ElevatorService) GetState(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[structpb.Struct], error) {
	return snapshotResponse(s.scene.State())
}

// WatchEvents streams the current state, then every scene notification
// until the client goes away, the scene shuts down, or the watcher falls
// behind and is dropped.
func (s *ElevatorService) WatchEvents(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
	stream *connect.ServerStream[structpb.Struct],
) error {
	adapter := &notificationStreamAdapter{stream: stream}

	// Hold the adapter until the initial state is out so queued
	// notifications follow it.
	adapter.mu.Lock()
	subscriptionID, dropped := s.scene.Subscribe(adapter)
	defer s.scene.Unsubscribe(subscriptionID)

	initial, err := notificationStruct(&notification.Notification{
		Type:       NotificationInitialState,
		SequenceNo: s.scene.LastSequenceNo(),
		Time:       time.Now(),
		Payload:    snapshotMap(s.scene.State()),
	})
	if err == nil {
		err = stream.Send(initial)
	}
	adapter.mu.Unlock()
	if err != nil {
		return connect.NewError(connect.CodeInternal, errors.Wrap(err, "failed to send initial state"))
	}

	zlog.Debug().Msgf("api: watcher connected: subscription=%s peer=%s", subscriptionID, req.Peer().Addr)

	select {
	case <-ctx.Done():
	case <-s.scene.Closed():
	case <-dropped:
		return connect.NewError(connect.CodeResourceExhausted, errors.New("watcher fell behind and was dropped"))
	}
	return nil
}

// notificationStreamAdapter adapts connect.ServerStream to notification.Stream.
type notificationStreamAdapter struct {
	mu     sync.Mutex
	stream *connect.ServerStream[structpb.Struct]
}

func (a *notificationStreamAdapter) Send(n *notification.Notification) error {
	msg, err := notificationStruct(n)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stream.Send(msg)
}

func notificationStruct(n *notification.Notification) (*structpb.Struct, error) {
	fields := map[string]any{
		"type":        n.Type,
		"sequence_no": float64(n.SequenceNo),
		"time":        n.Time.UTC().Format(time.RFC3339Nano),
	}
	if n.Payload != nil {
		fields["payload"] = n.Payload
	}
	msg, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode %s notification", n.Type)
	}
	return msg, nil
}

func snapshotMap(snap elevator.Snapshot) map[string]any {
	return map[string]any{
		"sequence_id":        snap.SequenceID,
		"active":             snap.Active,
		"phase":              snap.Phase.String(),
		"phase_progress":     snap.PhaseProgress,
		"keyframe":           snap.Keyframe,
		"audio_time_ms":      float64(snap.AudioTime.Milliseconds()),
		"current_audio_file": snap.CurrentAudioFile,
		"volume":             snap.Volume,
		"elapsed_ms":         float64(snap.Elapsed.Milliseconds()),
		"duration_ms":        float64(snap.Duration.Milliseconds()),
	}
}

func snapshotResponse(snap elevator.Snapshot) (*connect.Response[structpb.Struct], error) {
	msg, err := structpb.NewStruct(snapshotMap(snap))
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, errors.Wrap(err, "failed to encode state"))
	}
	return connect.NewResponse(msg), nil
}

// toConnectError maps scene errors onto Connect codes.
func toConnectError(err error) *connect.Error {
	switch {
	case errors.Is(err, elevator.ErrAlreadyActive):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, elevator.ErrDriverNotReady), errors.Is(err, elevator.ErrClosed):
		return connect.NewError(connect.CodeUnavailable, err)
	case errors.Is(err, audio.ErrInvalidVolume):
		return connect.NewError(connect.CodeInvalidArgument, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}
