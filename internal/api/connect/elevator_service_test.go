package connect

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/osa030/nightlift/internal/app/animation"
	"github.com/osa030/nightlift/internal/app/audio"
	"github.com/osa030/nightlift/internal/app/elevator"
	"github.com/osa030/nightlift/internal/app/scene"
	"github.com/osa030/nightlift/internal/domain/phase"
	"github.com/osa030/nightlift/internal/infra/config"
)

const testToken = "secret"

type testServer struct {
	driver *animation.Manual
	scene  *scene.Scene
	client *ElevatorServiceClient
}

func newTestServer(t *testing.T, serverCfg config.ServerConfig) *testServer {
	t.Helper()

	table := phase.DefaultTable()
	bank, err := audio.NewBank(audio.AsResources(audio.NewMockResources(table)), 0.5)
	require.NoError(t, err)

	driver := animation.NewManual(table, time.Hour)
	ctrl := elevator.NewController(table, driver, bank, elevator.Config{SyncInterval: 10 * time.Millisecond})
	sc := scene.New(ctrl, scene.Config{})

	mux := http.NewServeMux()
	path, handler := NewElevatorServiceHandler(
		NewElevatorService(sc),
		connect.WithInterceptors(NewAdminAuthInterceptor(serverCfg), NewRateLimitInterceptor(serverCfg)),
	)
	mux.Handle(path, handler)

	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		sc.Close()
		srv.Close()
	})

	return &testServer{
		driver: driver,
		scene:  sc,
		client: NewElevatorServiceClient(srv.Client(), srv.URL),
	}
}

func defaultServerConfig() config.ServerConfig {
	return config.ServerConfig{AdminToken: testToken, RateLimitPerSec: 100, RateBurst: 100}
}

func authed[T any](msg *T) *connect.Request[T] {
	req := connect.NewRequest(msg)
	req.Header().Set(AdminTokenHeader, testToken)
	return req
}

func TestElevatorService_StartStop(t *testing.T) {
	ts := newTestServer(t, defaultServerConfig())
	ctx := context.Background()

	resp, err := ts.client.Start(ctx, authed(&emptypb.Empty{}))
	require.NoError(t, err)
	fields := resp.Msg.AsMap()
	assert.Equal(t, true, fields["active"])
	assert.Equal(t, "closing", fields["phase"])
	assert.Equal(t, "elevator_close_door", fields["current_audio_file"])
	assert.Equal(t, 0.5, fields["volume"])
	assert.NotEmpty(t, fields["sequence_id"])

	_, err = ts.client.Start(ctx, authed(&emptypb.Empty{}))
	assert.Equal(t, connect.CodeFailedPrecondition, connect.CodeOf(err))

	state, err := ts.client.GetState(ctx, connect.NewRequest(&emptypb.Empty{}))
	require.NoError(t, err)
	assert.Equal(t, fields["sequence_id"], state.Msg.AsMap()["sequence_id"])

	stopped, err := ts.client.Stop(ctx, authed(&emptypb.Empty{}))
	require.NoError(t, err)
	assert.Equal(t, false, stopped.Msg.AsMap()["active"])
	assert.Equal(t, "idle", stopped.Msg.AsMap()["phase"])

	_, err = ts.client.Stop(ctx, authed(&emptypb.Empty{}))
	assert.NoError(t, err, "stop is idempotent")
}

func TestElevatorService_DriverNotReady(t *testing.T) {
	ts := newTestServer(t, defaultServerConfig())
	ts.driver.SetReady(false)

	_, err := ts.client.Start(context.Background(), authed(&emptypb.Empty{}))
	assert.Equal(t, connect.CodeUnavailable, connect.CodeOf(err))
}

func TestElevatorService_Volume(t *testing.T) {
	ts := newTestServer(t, defaultServerConfig())
	ctx := context.Background()

	resp, err := ts.client.SetVolume(ctx, authed(wrapperspb.Double(0.8)))
	require.NoError(t, err)
	assert.Equal(t, 0.8, resp.Msg.GetValue())

	got, err := ts.client.GetVolume(ctx, connect.NewRequest(&emptypb.Empty{}))
	require.NoError(t, err)
	assert.Equal(t, 0.8, got.Msg.GetValue())

	_, err = ts.client.SetVolume(ctx, authed(wrapperspb.Double(-0.1)))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
}

func TestElevatorService_AdminToken(t *testing.T) {
	ts := newTestServer(t, defaultServerConfig())
	ctx := context.Background()

	_, err := ts.client.Start(ctx, connect.NewRequest(&emptypb.Empty{}))
	assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))

	req := connect.NewRequest(&emptypb.Empty{})
	req.Header().Set(AdminTokenHeader, "wrong")
	_, err = ts.client.Stop(ctx, req)
	assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))

	_, err = ts.client.GetState(ctx, connect.NewRequest(&emptypb.Empty{}))
	assert.NoError(t, err, "reads need no token")
	assert.False(t, ts.scene.State().Active)
}

func TestElevatorService_OpenWithoutToken(t *testing.T) {
	ts := newTestServer(t, config.ServerConfig{RateLimitPerSec: 100, RateBurst: 100})

	_, err := ts.client.Start(context.Background(), connect.NewRequest(&emptypb.Empty{}))
	assert.NoError(t, err)
}

func TestElevatorService_RateLimit(t *testing.T) {
	ts := newTestServer(t, config.ServerConfig{AdminToken: testToken, RateLimitPerSec: 0.001, RateBurst: 2})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := ts.client.Stop(ctx, authed(&emptypb.Empty{}))
		require.NoError(t, err)
	}
	_, err := ts.client.Stop(ctx, authed(&emptypb.Empty{}))
	assert.Equal(t, connect.CodeResourceExhausted, connect.CodeOf(err))

	_, err = ts.client.GetState(ctx, connect.NewRequest(&emptypb.Empty{}))
	assert.NoError(t, err, "reads are not throttled")
}

func TestElevatorService_WatchEvents(t *testing.T) {
	ts := newTestServer(t, defaultServerConfig())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := ts.client.WatchEvents(ctx, connect.NewRequest(&emptypb.Empty{}))
	require.NoError(t, err)
	defer stream.Close()

	require.True(t, stream.Receive(), stream.Err())
	initial := stream.Msg().AsMap()
	assert.Equal(t, NotificationInitialState, initial["type"])
	assert.Equal(t, "idle", initial["payload"].(map[string]any)["phase"])

	assert.Equal(t, float64(ts.scene.LastSequenceNo()), initial["sequence_no"])
	// Subscribed before the initial state went out, so nothing after it is missed.
	assert.Equal(t, 1, ts.scene.SubscriberCount())

	_, err = ts.client.SetVolume(ctx, authed(wrapperspb.Double(0.6)))
	require.NoError(t, err)
	require.True(t, stream.Receive(), stream.Err())
	got := stream.Msg().AsMap()
	assert.Equal(t, scene.NotificationVolumeChanged, got["type"])
	assert.Equal(t, 0.6, got["payload"].(map[string]any)["volume"])

	_, err = ts.client.Start(ctx, authed(&emptypb.Empty{}))
	require.NoError(t, err)

	var types []string
	for len(types) < 2 && stream.Receive() {
		types = append(types, stream.Msg().AsMap()["type"].(string))
	}
	assert.Equal(t, []string{"sequence_started", "phase_changed"}, types)
}
