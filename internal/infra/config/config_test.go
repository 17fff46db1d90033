package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/nightlift/internal/domain/phase"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 50*time.Millisecond, cfg.Elevator.SyncInterval())
	assert.Equal(t, 8*time.Second, cfg.Elevator.FallbackDuration())
	assert.InDelta(t, 0.7, cfg.Elevator.MasterVolume(), 1e-9)
	assert.Equal(t, 8*time.Second, cfg.Animation.Duration())
	assert.Equal(t, 60, cfg.Animation.FrameRate)
	assert.Equal(t, 44100, cfg.Audio.SampleRate)
	assert.Equal(t, 2, cfg.Audio.Channels)
	require.Len(t, cfg.Audio.Backends, 1)
	assert.Equal(t, "silent", cfg.Audio.Backends[0].Type)

	table, err := cfg.Elevator.Table()
	require.NoError(t, err)
	assert.Equal(t, phase.DefaultTable().Windows(), table.Windows())
}

func TestParse_ExplicitZeroVolumeIsKept(t *testing.T) {
	cfg, err := Parse([]byte("elevator:\n  volume: 0\n"))
	require.NoError(t, err)
	assert.Equal(t, 0.0, cfg.Elevator.MasterVolume())
}

func TestParse_CustomWindows(t *testing.T) {
	data := []byte(`
elevator:
  windows:
    - {phase: closing, start: 0, end: 50, asset: close}
    - {phase: closed, start: 51, end: 250, asset: moving, nominal_ms: 12000, stop_at_end: true}
    - {phase: opening, start: 251, end: 300, asset: open}
`)
	cfg, err := Parse(data)
	require.NoError(t, err)

	table, err := cfg.Elevator.Table()
	require.NoError(t, err)
	assert.Equal(t, phase.Closed, table.PhaseFor(51).Phase)

	w, ok := table.Window(phase.Closed)
	require.True(t, ok)
	assert.Equal(t, 12*time.Second, w.Nominal)
	assert.True(t, w.StopAtEnd)
}

func TestParse_Validation(t *testing.T) {
	tests := []struct {
		name   string
		yaml   string
		errMsg string
	}{
		{
			name:   "volume out of range",
			yaml:   "elevator:\n  volume: 1.5\n",
			errMsg: "Volume",
		},
		{
			name:   "sync interval too small",
			yaml:   "elevator:\n  sync_interval_ms: 1\n",
			errMsg: "SyncIntervalMs",
		},
		{
			name:   "unknown backend",
			yaml:   "audio:\n  backends:\n    - type: midi\n",
			errMsg: "Type",
		},
		{
			name:   "unsupported sample rate",
			yaml:   "audio:\n  sample_rate: 8000\n",
			errMsg: "SampleRate",
		},
		{
			name: "window gap",
			yaml: `
elevator:
  windows:
    - {phase: closing, start: 0, end: 50, asset: close}
    - {phase: closed, start: 60, end: 250, asset: moving}
    - {phase: opening, start: 251, end: 300, asset: open}
`,
			errMsg: "invalid phase table",
		},
		{
			name: "window end before start",
			yaml: `
elevator:
  windows:
    - {phase: closing, start: 10, end: 5, asset: close}
`,
			errMsg: "End",
		},
		{
			name:   "malformed yaml",
			yaml:   "elevator: [",
			errMsg: "failed to parse",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err, "expected config to be rejected")
			assert.Contains(t, err.Error(), tt.errMsg,
				"error message should mention the problematic field")
		})
	}
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv("LIFT_ADMIN_TOKEN", "from-env")
	t.Setenv("LIFT_VOLUME", "0.25")
	t.Setenv("LIFT_ASSETS_DIR", "/srv/sounds")

	cfg, err := Parse([]byte(`
server:
  admin_token: from-file
audio:
  backends:
    - type: file
    - type: silent
`))
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Server.AdminToken)
	assert.InDelta(t, 0.25, cfg.Elevator.MasterVolume(), 1e-9)
	assert.Equal(t, "/srv/sounds", cfg.Audio.Backends[0].Settings["dir"])
	assert.Nil(t, cfg.Audio.Backends[1].Settings)
}

func TestParse_InvalidVolumeEnv(t *testing.T) {
	t.Setenv("LIFT_VOLUME", "loud")
	_, err := Parse([]byte("{}"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LIFT_VOLUME")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "liftd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: \":9090\"\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_SampleConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "..", "config", "liftd.yaml"))
	require.NoError(t, err)

	table, err := cfg.Elevator.Table()
	require.NoError(t, err)
	assert.Equal(t, 300, table.TotalFrames())
	assert.Len(t, cfg.Audio.Backends, 3)
	assert.Equal(t, []string{`echo "elevator arrived"`}, cfg.Server.Hooks.OnSequenceCompleted)
}
