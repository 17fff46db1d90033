// Package main provides the elevator scene server entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	apiconnect "github.com/osa030/nightlift/internal/api/connect"
	"github.com/osa030/nightlift/internal/app/animation"
	"github.com/osa030/nightlift/internal/app/elevator"
	"github.com/osa030/nightlift/internal/app/scene"
	"github.com/osa030/nightlift/internal/infra/config"
	"github.com/osa030/nightlift/internal/infra/logger"
	"github.com/osa030/nightlift/internal/infra/sound"
)

var (
	app        = kingpin.New("liftd", "Elevator scene audio/animation server")
	configPath = app.Flag("config", "Path to config file (built-in defaults when empty)").Envar("LIFT_CONFIG").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()

	// play command
	playCmd = app.Command("play", "Run one elevator sequence locally and exit")

	// phases command
	phasesCmd = app.Command("phases", "Print the phase windows and exit")
)

func init() {
	app.Command("serve", "Start the control server (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	loggerConfig := logger.Config{
		Output: "stdout",
		Level:  "info",
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	switch command {
	case phasesCmd.FullCommand():
		err = printPhases(cfg)
	case playCmd.FullCommand():
		err = play(cfg)
	default:
		err = serve(cfg)
	}
	if err != nil {
		zlog.Error().Msgf("liftd: %v", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		zlog.Info().Msg("No config file given, using defaults")
		return config.Default()
	}
	zlog.Info().Msgf("Loading config from %s", path)
	return config.Load(path)
}

// printPhases prints the phase windows.
func printPhases(cfg *config.Config) error {
	table, err := cfg.Elevator.Table()
	if err != nil {
		return err
	}

	fmt.Printf("%-8s %-11s %-10s %-24s %s\n", "PHASE", "KEYFRAMES", "NOMINAL", "ASSET", "STOP AT END")
	for _, w := range table.Windows() {
		fmt.Printf("%-8s %4d-%-6d %-10v %-24s %v\n", w.Phase, w.Start, w.End, w.Nominal, w.Asset, w.StopAtEnd)
	}
	fmt.Printf("\nkeyframes: %d  nominal clips total: %v  sync interval: %v  fallback duration: %v\n",
		table.TotalFrames(), table.NominalTotal(), cfg.Elevator.SyncInterval(), cfg.Elevator.FallbackDuration())
	return nil
}

// runtime is the assembled scene with its animation driver.
type runtime struct {
	scene    *scene.Scene
	timeline *animation.Timeline
}

func (r *runtime) Close() {
	r.scene.Close()
	r.timeline.Close()
}

// buildRuntime assembles timeline, clips, controller and scene from config.
func buildRuntime(ctx context.Context, cfg *config.Config) (*runtime, error) {
	table, err := cfg.Elevator.Table()
	if err != nil {
		return nil, err
	}

	chain, err := sound.NewLoaderChainFromConfig(cfg.Audio, sound.NewOtoOutput)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create audio backends")
	}
	bank, err := sound.LoadBank(ctx, chain, table, cfg.Elevator.MasterVolume())
	if err != nil {
		return nil, errors.Wrap(err, "failed to load clips")
	}

	timeline := animation.NewTimeline(table, animation.TimelineConfig{
		Duration:  cfg.Animation.Duration(),
		FrameRate: cfg.Animation.FrameRate,
		LoadDelay: cfg.Animation.LoadDelay(),
	})
	go func() {
		if err := timeline.Load(ctx); err != nil {
			zlog.Error().Msgf("Failed to load animation: %v", err)
		}
	}()

	ctrl := elevator.NewController(table, timeline, bank, elevator.Config{
		SyncInterval:     cfg.Elevator.SyncInterval(),
		FallbackDuration: cfg.Elevator.FallbackDuration(),
	})

	sc := scene.New(ctrl, scene.Config{
		OnSequenceCompleted: func(snap elevator.Snapshot) {
			zlog.Info().Msgf("Sequence completed: id=%s duration=%v", snap.SequenceID, snap.Duration)
			go executeHooks(cfg.Server.Hooks.OnSequenceCompleted, "on_sequence_completed")
		},
	})

	return &runtime{scene: sc, timeline: timeline}, nil
}

// play runs a single sequence and exits when it completes or on a signal.
func play(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := buildRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	done, err := rt.scene.RunOnce(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to start sequence")
	}

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			zlog.Info().Msg("Sequence finished")
			return nil
		case <-ctx.Done():
			zlog.Info().Msg("Received shutdown signal...")
			rt.scene.Stop()
			return nil
		case <-ticker.C:
			s := rt.scene.State()
			zlog.Info().Msgf("phase=%s keyframe=%.1f progress=%.2f clip=%s audio=%v",
				s.Phase, s.Keyframe, s.PhaseProgress, s.CurrentAudioFile, s.AudioTime.Round(time.Millisecond))
		}
	}
}

// serve runs the control server until a signal or server error.
func serve(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := buildRuntime(ctx, cfg)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	path, handler := apiconnect.NewElevatorServiceHandler(
		apiconnect.NewElevatorService(rt.scene),
		connect.WithInterceptors(
			apiconnect.NewAdminAuthInterceptor(cfg.Server),
			apiconnect.NewRateLimitInterceptor(cfg.Server),
		),
	)
	mux.Handle(path, handler)

	// Create server with h2c (HTTP/2 cleartext) support
	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           h2c.NewHandler(mux, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		zlog.Info().Msgf("Starting server: addr=%s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
	}()

	executeHooks(cfg.Server.Hooks.OnStarted, "on_started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
	case err := <-serverErrCh:
		runErr = errors.Wrap(err, "server error")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Close the scene first so watch streams end
	rt.Close()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}

	zlog.Info().Msg("Server stopped")
	executeHooks(cfg.Server.Hooks.OnStopped, "on_stopped")

	return runErr
}

// executeHooks runs a list of shell commands.
func executeHooks(hooks []string, stage string) {
	if len(hooks) == 0 {
		return
	}

	zlog.Info().Msgf("Executing %s hooks (%d commands)", stage, len(hooks))

	for _, hook := range hooks {
		zlog.Info().Msgf("Executing hook: %s", hook)
		cmd := exec.Command("sh", "-c", hook)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("Failed to execute hook: %s", hook)
		}
	}
}
