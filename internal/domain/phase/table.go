package phase

import (
	"time"

	"github.com/cockroachdb/errors"
)

// ErrInvalidTable is returned when phase windows do not tile the timeline.
var ErrInvalidTable = errors.New("invalid phase table")

// Window maps a phase to its keyframe range and audio clip.
type Window struct {
	Phase     Phase
	Start     int           // First keyframe of the window (inclusive)
	End       int           // Last keyframe of the window (inclusive)
	Asset     string        // Audio asset identifier
	Nominal   time.Duration // Nominal clip length, display only
	StopAtEnd bool          // Stop the clip as soon as the keyframe reaches End
}

// Contains reports whether the keyframe lies inside the window.
func (w Window) Contains(keyframe float64) bool {
	return keyframe >= float64(w.Start) && keyframe <= float64(w.End)
}

// Position is the result of mapping a keyframe onto the table.
type Position struct {
	Phase    Phase
	Progress float64 // Fraction of the window elapsed, always in [0,1]
	Keyframe float64 // Keyframe after clamping to the table range
}

// Table is an ordered, contiguous set of phase windows.
type Table struct {
	windows []Window
}

// DefaultTable returns the elevator scene's built-in windows.
func DefaultTable() *Table {
	t, err := NewTable([]Window{
		{Phase: Closing, Start: 0, End: 70, Asset: "elevator_close_door", Nominal: 4 * time.Second},
		{Phase: Closed, Start: 71, End: 230, Asset: "elevator_moving", Nominal: 20 * time.Second, StopAtEnd: true},
		{Phase: Opening, Start: 231, End: TotalFrames, Asset: "elevator_open_door", Nominal: 4 * time.Second},
	})
	if err != nil {
		panic(err)
	}
	return t
}

// NewTable validates and builds a table. Windows must start at keyframe 0,
// follow each other without gaps or overlap, and name each non-idle phase once.
func NewTable(windows []Window) (*Table, error) {
	if len(windows) == 0 {
		return nil, errors.Wrap(ErrInvalidTable, "no windows")
	}
	if windows[0].Start != 0 {
		return nil, errors.Wrapf(ErrInvalidTable, "first window starts at %d, want 0", windows[0].Start)
	}

	seen := make(map[Phase]bool, len(windows))
	for i, w := range windows {
		if w.Phase == Idle {
			return nil, errors.Wrapf(ErrInvalidTable, "window %d: idle has no window", i)
		}
		if seen[w.Phase] {
			return nil, errors.Wrapf(ErrInvalidTable, "window %d: duplicate phase %s", i, w.Phase)
		}
		seen[w.Phase] = true

		if w.End <= w.Start {
			return nil, errors.Wrapf(ErrInvalidTable, "window %s: end %d must be after start %d", w.Phase, w.End, w.Start)
		}
		if w.Asset == "" {
			return nil, errors.Wrapf(ErrInvalidTable, "window %s: asset is required", w.Phase)
		}
		if i > 0 && w.Start != windows[i-1].End+1 {
			return nil, errors.Wrapf(ErrInvalidTable, "window %s starts at %d, want %d",
				w.Phase, w.Start, windows[i-1].End+1)
		}
	}

	copied := make([]Window, len(windows))
	copy(copied, windows)
	return &Table{windows: copied}, nil
}

// PhaseFor maps a keyframe onto the table. Keyframes outside the timeline are
// clamped into the first or last window, and keyframes falling between two
// integer windows belong to the later one.
func (t *Table) PhaseFor(keyframe float64) Position {
	first := t.windows[0]
	last := t.windows[len(t.windows)-1]

	k := keyframe
	if k < float64(first.Start) || k != k {
		k = float64(first.Start)
	}
	if k > float64(last.End) {
		k = float64(last.End)
	}

	w := last
	for _, candidate := range t.windows {
		if k <= float64(candidate.End) {
			w = candidate
			break
		}
	}

	progress := (k - float64(w.Start)) / float64(w.End-w.Start)
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}

	return Position{Phase: w.Phase, Progress: progress, Keyframe: k}
}

// Window returns the window for the given phase.
func (t *Table) Window(p Phase) (Window, bool) {
	for _, w := range t.windows {
		if w.Phase == p {
			return w, true
		}
	}
	return Window{}, false
}

// Windows returns a copy of the table's windows in order.
func (t *Table) Windows() []Window {
	result := make([]Window, len(t.windows))
	copy(result, t.windows)
	return result
}

// First returns the phase a sequence starts in.
func (t *Table) First() Phase {
	return t.windows[0].Phase
}

// TotalFrames returns the last keyframe covered by the table.
func (t *Table) TotalFrames() int {
	return t.windows[len(t.windows)-1].End
}

// NominalTotal returns the sum of nominal clip durations.
// The animation driver's duration is authoritative; this is for display.
func (t *Table) NominalTotal() time.Duration {
	var total time.Duration
	for _, w := range t.windows {
		total += w.Nominal
	}
	return total
}

// PhaseFor maps a keyframe onto the default table.
func PhaseFor(keyframe float64) Position {
	return defaultTable.PhaseFor(keyframe)
}

var defaultTable = DefaultTable()
