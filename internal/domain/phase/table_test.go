package phase

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestPhase_String(t *testing.T) {
	tests := []struct {
		phase    Phase
		expected string
	}{
		{Idle, "idle"},
		{Closing, "closing"},
		{Closed, "closed"},
		{Opening, "opening"},
		{Phase(42), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.phase.String())
		})
	}
}

func TestParsePhase(t *testing.T) {
	for _, p := range []Phase{Idle, Closing, Closed, Opening} {
		parsed, err := ParsePhase(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, parsed)
	}

	parsed, err := ParsePhase(" Closed ")
	require.NoError(t, err)
	assert.Equal(t, Closed, parsed)

	_, err = ParsePhase("ascending")
	assert.Error(t, err)
}

func TestTable_PhaseFor(t *testing.T) {
	tests := []struct {
		name     string
		keyframe float64
		phase    Phase
		progress float64
	}{
		{name: "start of closing", keyframe: 0, phase: Closing, progress: 0},
		{name: "middle of closing", keyframe: 35, phase: Closing, progress: 0.5},
		{name: "end of closing", keyframe: 70, phase: Closing, progress: 1},
		{name: "start of closed", keyframe: 71, phase: Closed, progress: 0},
		{name: "end of closed", keyframe: 230, phase: Closed, progress: 1},
		{name: "start of opening", keyframe: 231, phase: Opening, progress: 0},
		{name: "end of opening", keyframe: 300, phase: Opening, progress: 1},
		{name: "between windows", keyframe: 70.5, phase: Closed, progress: 0},
		{name: "negative keyframe", keyframe: -12, phase: Closing, progress: 0},
		{name: "overrun keyframe", keyframe: 345, phase: Opening, progress: 1},
		{name: "NaN keyframe", keyframe: math.NaN(), phase: Closing, progress: 0},
	}

	table := DefaultTable()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos := table.PhaseFor(tt.keyframe)
			assert.Equal(t, tt.phase, pos.Phase)
			assert.InDelta(t, tt.progress, pos.Progress, 1e-9)
		})
	}
}

func TestTable_PhaseForEveryIntegerKeyframe(t *testing.T) {
	table := DefaultTable()
	for _, w := range table.Windows() {
		for k := w.Start; k <= w.End; k++ {
			assert.Equal(t, w.Phase, table.PhaseFor(float64(k)).Phase, "keyframe %d", k)
		}
	}
}

func TestProperty_ProgressStaysInUnitRange(t *testing.T) {
	table := DefaultTable()
	rapid.Check(t, func(t *rapid.T) {
		k := rapid.Float64Range(-1000, 1000).Draw(t, "keyframe")
		pos := table.PhaseFor(k)

		if pos.Progress < 0 || pos.Progress > 1 {
			t.Fatalf("progress %v out of range for keyframe %v", pos.Progress, k)
		}
		if pos.Phase == Idle {
			t.Fatalf("keyframe %v mapped to idle", k)
		}
	})
}

func TestProperty_PhaseIsMonotonic(t *testing.T) {
	table := DefaultTable()
	rapid.Check(t, func(t *rapid.T) {
		a := rapid.Float64Range(0, TotalFrames).Draw(t, "a")
		b := rapid.Float64Range(a, TotalFrames).Draw(t, "b")

		if table.PhaseFor(a).Phase > table.PhaseFor(b).Phase {
			t.Fatalf("phase went backwards between %v and %v", a, b)
		}
	})
}

func TestNewTable_Validation(t *testing.T) {
	valid := func() []Window {
		return []Window{
			{Phase: Closing, Start: 0, End: 10, Asset: "a"},
			{Phase: Closed, Start: 11, End: 20, Asset: "b"},
			{Phase: Opening, Start: 21, End: 30, Asset: "c"},
		}
	}

	tests := []struct {
		name   string
		mutate func([]Window) []Window
	}{
		{name: "empty", mutate: func([]Window) []Window { return nil }},
		{name: "not starting at zero", mutate: func(w []Window) []Window { w[0].Start = 1; return w }},
		{name: "gap", mutate: func(w []Window) []Window { w[1].Start = 12; return w }},
		{name: "overlap", mutate: func(w []Window) []Window { w[1].Start = 10; return w }},
		{name: "empty window", mutate: func(w []Window) []Window { w[2].End = 21; w[2].Start = 21; return w }},
		{name: "duplicate phase", mutate: func(w []Window) []Window { w[2].Phase = Closed; return w }},
		{name: "idle window", mutate: func(w []Window) []Window { w[0].Phase = Idle; return w }},
		{name: "missing asset", mutate: func(w []Window) []Window { w[1].Asset = ""; return w }},
	}

	_, err := NewTable(valid())
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTable(tt.mutate(valid()))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidTable)
		})
	}
}

func TestTable_Accessors(t *testing.T) {
	table := DefaultTable()

	assert.Equal(t, Closing, table.First())
	assert.Equal(t, TotalFrames, table.TotalFrames())
	assert.Equal(t, 28*time.Second, table.NominalTotal())

	w, ok := table.Window(Closed)
	require.True(t, ok)
	assert.Equal(t, "elevator_moving", w.Asset)
	assert.True(t, w.StopAtEnd)
	assert.True(t, w.Contains(71))
	assert.False(t, w.Contains(231))

	_, ok = table.Window(Idle)
	assert.False(t, ok)

	windows := table.Windows()
	windows[0].Asset = "mutated"
	first, _ := table.Window(Closing)
	assert.Equal(t, "elevator_close_door", first.Asset)
}

func TestPhaseFor_UsesDefaultTable(t *testing.T) {
	assert.Equal(t, Closed, PhaseFor(100).Phase)
	assert.Equal(t, Opening, PhaseFor(231).Phase)
}
