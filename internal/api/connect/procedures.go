// Package connect provides the Connect RPC control surface of the elevator scene.
package connect

import (
	"net/http"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ElevatorServiceName is the fully-qualified name of the ElevatorService service.
const ElevatorServiceName = "lift.v1.ElevatorService"

// Procedure paths of ElevatorService.
const (
	ElevatorServiceStartProcedure       = "/" + ElevatorServiceName + "/Start"
	ElevatorServiceStopProcedure        = "/" + ElevatorServiceName + "/Stop"
	ElevatorServiceSetVolumeProcedure   = "/" + ElevatorServiceName + "/SetVolume"
	ElevatorServiceGetVolumeProcedure   = "/" + ElevatorServiceName + "/GetVolume"
	ElevatorServiceGetStateProcedure    = "/" + ElevatorServiceName + "/GetState"
	ElevatorServiceWatchEventsProcedure = "/" + ElevatorServiceName + "/WatchEvents"
)

// mutatingProcedures need the admin token and are rate limited.
var mutatingProcedures = map[string]bool{
	ElevatorServiceStartProcedure:     true,
	ElevatorServiceStopProcedure:      true,
	ElevatorServiceSetVolumeProcedure: true,
}

// NewElevatorServiceHandler builds an HTTP handler serving svc. It returns the
// path prefix to mount it on.
func NewElevatorServiceHandler(svc *ElevatorService, opts ...connect.HandlerOption) (string, http.Handler) {
	start := connect.NewUnaryHandler(ElevatorServiceStartProcedure, svc.Start, opts...)
	stop := connect.NewUnaryHandler(ElevatorServiceStopProcedure, svc.Stop, opts...)
	setVolume := connect.NewUnaryHandler(ElevatorServiceSetVolumeProcedure, svc.SetVolume, opts...)
	getVolume := connect.NewUnaryHandler(ElevatorServiceGetVolumeProcedure, svc.GetVolume, opts...)
	getState := connect.NewUnaryHandler(ElevatorServiceGetStateProcedure, svc.GetState, opts...)
	watchEvents := connect.NewServerStreamHandler(ElevatorServiceWatchEventsProcedure, svc.WatchEvents, opts...)

	return "/" + ElevatorServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case ElevatorServiceStartProcedure:
			start.ServeHTTP(w, r)
		case ElevatorServiceStopProcedure:
			stop.ServeHTTP(w, r)
		case ElevatorServiceSetVolumeProcedure:
			setVolume.ServeHTTP(w, r)
		case ElevatorServiceGetVolumeProcedure:
			getVolume.ServeHTTP(w, r)
		case ElevatorServiceGetStateProcedure:
			getState.ServeHTTP(w, r)
		case ElevatorServiceWatchEventsProcedure:
			watchEvents.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// ElevatorServiceClient is a client for ElevatorService.
type ElevatorServiceClient struct {
	start       *connect.Client[emptypb.Empty, structpb.Struct]
	stop        *connect.Client[emptypb.Empty, structpb.Struct]
	setVolume   *connect.Client[wrapperspb.DoubleValue, wrapperspb.DoubleValue]
	getVolume   *connect.Client[emptypb.Empty, wrapperspb.DoubleValue]
	getState    *connect.Client[emptypb.Empty, structpb.Struct]
	watchEvents *connect.Client[emptypb.Empty, structpb.Struct]
}

// NewElevatorServiceClient creates a client for the service at baseURL.
func NewElevatorServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *ElevatorServiceClient {
	return &ElevatorServiceClient{
		start:       connect.NewClient[emptypb.Empty, structpb.Struct](httpClient, baseURL+ElevatorServiceStartProcedure, opts...),
		stop:        connect.NewClient[emptypb.Empty, structpb.Struct](httpClient, baseURL+ElevatorServiceStopProcedure, opts...),
		setVolume:   connect.NewClient[wrapperspb.DoubleValue, wrapperspb.DoubleValue](httpClient, baseURL+ElevatorServiceSetVolumeProcedure, opts...),
		getVolume:   connect.NewClient[emptypb.Empty, wrapperspb.DoubleValue](httpClient, baseURL+ElevatorServiceGetVolumeProcedure, opts...),
		getState:    connect.NewClient[emptypb.Empty, structpb.Struct](httpClient, baseURL+ElevatorServiceGetStateProcedure, opts...),
		watchEvents: connect.NewClient[emptypb.Empty, structpb.Struct](httpClient, baseURL+ElevatorServiceWatchEventsProcedure, opts...),
	}
}
