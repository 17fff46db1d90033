// Package main provides the elevator control CLI entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	apiconnect "github.com/osa030/nightlift/internal/api/connect"
)

var (
	app    = kingpin.New("liftctl", "Elevator scene control client")
	server = app.Flag("server", "Server address").Default("http://localhost:8080").Envar("LIFT_SERVER").String()
	token  = app.Flag("token", "Admin token (or set LIFT_ADMIN_TOKEN env)").Envar("LIFT_ADMIN_TOKEN").String()

	// status command
	statusCmd = app.Command("status", "Show the elevator state")

	// start command
	startCmd = app.Command("start", "Start an elevator sequence")

	// stop command
	stopCmd = app.Command("stop", "Stop the running sequence")

	// volume command
	volumeCmd   = app.Command("volume", "Show or set the master volume")
	volumeValue = volumeCmd.Arg("value", "New volume (0.0 to 1.0)").String()

	// watch command
	watchCmd = app.Command("watch", "Stream elevator events")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	client := apiconnect.NewElevatorServiceClient(http.DefaultClient, *server)
	ctx := context.Background()

	switch command {
	case statusCmd.FullCommand():
		status(ctx, client)
	case startCmd.FullCommand():
		start(ctx, client)
	case stopCmd.FullCommand():
		stop(ctx, client)
	case volumeCmd.FullCommand():
		volume(ctx, client)
	case watchCmd.FullCommand():
		watch(ctx, client)
	}
}

func authed[T any](msg *T) *connect.Request[T] {
	req := connect.NewRequest(msg)
	if *token != "" {
		req.Header().Set(apiconnect.AdminTokenHeader, *token)
	}
	return req
}

func exitOnError(err error) {
	if err == nil {
		return
	}
	fmt.Printf("Error: %v\n", err)
	os.Exit(1)
}

func status(ctx context.Context, client *apiconnect.ElevatorServiceClient) {
	resp, err := client.GetState(ctx, connect.NewRequest(&emptypb.Empty{}))
	exitOnError(err)

	fmt.Println("\n=== ELEVATOR STATE ===")
	printState(resp.Msg)
	fmt.Println()
}

func start(ctx context.Context, client *apiconnect.ElevatorServiceClient) {
	resp, err := client.Start(ctx, authed(&emptypb.Empty{}))
	if connect.CodeOf(err) == connect.CodeFailedPrecondition {
		fmt.Println("A sequence is already running")
		return
	}
	exitOnError(err)

	fmt.Printf("Sequence started: %s\n", resp.Msg.GetFields()["sequence_id"].GetStringValue())
}

func stop(ctx context.Context, client *apiconnect.ElevatorServiceClient) {
	_, err := client.Stop(ctx, authed(&emptypb.Empty{}))
	exitOnError(err)
	fmt.Println("Elevator stopped")
}

func volume(ctx context.Context, client *apiconnect.ElevatorServiceClient) {
	if *volumeValue == "" {
		resp, err := client.GetVolume(ctx, connect.NewRequest(&emptypb.Empty{}))
		exitOnError(err)
		fmt.Printf("Volume: %.2f\n", resp.Msg.GetValue())
		return
	}

	v, err := strconv.ParseFloat(*volumeValue, 64)
	exitOnError(err)

	resp, err := client.SetVolume(ctx, authed(wrapperspb.Double(v)))
	exitOnError(err)
	fmt.Printf("Volume set to %.2f\n", resp.Msg.GetValue())
}

func watch(ctx context.Context, client *apiconnect.ElevatorServiceClient) {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	stream, err := client.WatchEvents(ctx, connect.NewRequest(&emptypb.Empty{}))
	exitOnError(err)
	defer stream.Close()

	for stream.Receive() {
		msg := stream.Msg().GetFields()
		fmt.Printf("[%s] #%d %s",
			msg["time"].GetStringValue(), int64(msg["sequence_no"].GetNumberValue()), msg["type"].GetStringValue())
		if payload := msg["payload"].GetStructValue(); payload != nil {
			fields := payload.GetFields()
			for _, key := range []string{"phase", "previous", "clip", "keyframe", "volume", "error"} {
				if v, ok := fields[key]; ok {
					fmt.Printf(" %s=%v", key, v.AsInterface())
				}
			}
		}
		fmt.Println()
	}

	if err := stream.Err(); err != nil && ctx.Err() == nil {
		exitOnError(err)
	}
}

func printState(s *structpb.Struct) {
	f := s.GetFields()
	fmt.Printf("Active: %v\n", f["active"].GetBoolValue())
	fmt.Printf("Sequence ID: %s\n", f["sequence_id"].GetStringValue())
	fmt.Printf("Phase: %s (%.0f%%)\n", f["phase"].GetStringValue(), f["phase_progress"].GetNumberValue()*100)
	fmt.Printf("Keyframe: %.1f\n", f["keyframe"].GetNumberValue())
	if clip := f["current_audio_file"].GetStringValue(); clip != "" {
		fmt.Printf("Clip: %s at %.0fms\n", clip, f["audio_time_ms"].GetNumberValue())
	} else {
		fmt.Println("Clip: none")
	}
	fmt.Printf("Volume: %.2f\n", f["volume"].GetNumberValue())
	fmt.Printf("Elapsed: %.0fms of %.0fms\n", f["elapsed_ms"].GetNumberValue(), f["duration_ms"].GetNumberValue())
}
