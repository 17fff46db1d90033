package connect

import (
	"context"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Start calls lift.v1.ElevatorService.Start.
func (c *ElevatorServiceClient) Start(ctx context.Context, req *connect.Request[emptypb.Empty]) (*connect.Response[structpb.Struct], error) {
	return c.start.CallUnary(ctx, req)
}

// Stop calls lift.v1.ElevatorService.Stop.
func (c *ElevatorServiceClient) Stop(ctx context.Context, req *connect.Request[emptypb.Empty]) (*connect.Response[structpb.Struct], error) {
	return c.stop.CallUnary(ctx, req)
}

// SetVolume calls lift.v1.ElevatorService.SetVolume.
func (c *ElevatorServiceClient) SetVolume(ctx context.Context, req *connect.Request[wrapperspb.DoubleValue]) (*connect.Response[wrapperspb.DoubleValue], error) {
	return c.setVolume.CallUnary(ctx, req)
}

// GetVolume calls lift.v1.ElevatorService.GetVolume.
func (c *ElevatorServiceClient) GetVolume(ctx context.Context, req *connect.Request[emptypb.Empty]) (*connect.Response[wrapperspb.DoubleValue], error) {
	return c.getVolume.CallUnary(ctx, req)
}

// GetState calls lift.v1.ElevatorService.GetState.
func (c *ElevatorServiceClient) GetState(ctx context.Context, req *connect.Request[emptypb.Empty]) (*connect.Response[structpb.Struct], error) {
	return c.getState.CallUnary(ctx, req)
}

// WatchEvents calls lift.v1.ElevatorService.WatchEvents.
func (c *ElevatorServiceClient) WatchEvents(ctx context.Context, req *connect.Request[emptypb.Empty]) (*connect.ServerStreamForClient[structpb.Struct], error) {
	return c.watchEvents.CallServerStream(ctx, req)
}
