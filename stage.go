package glshim

// Stage identifies a programmable shader stage. The emulated feature
// set has exactly two: vertex and fragment. Per-stage data throughout
// the package is held in fixed arrays indexed by Stage for O(1) access
// and a closed iteration order.
type Stage uint8

const (
	// StageVertex is the vertex shader stage.
	StageVertex Stage = iota

	// StageFragment is the fragment shader stage.
	StageFragment

	// numStages is the number of shader stages.
	numStages
)

// String returns the lowercase stage name.
func (s Stage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	default:
		return "unknown"
	}
}

// allStages lists every stage in iteration order.
var allStages = [numStages]Stage{StageVertex, StageFragment}

// StageMask is a bitset over the closed stage enumeration. It tracks
// which stages hold unflushed uniform data.
type StageMask uint8

// Mask returns the single-stage mask for s.
func (s Stage) Mask() StageMask { return 1 << s }

// Set returns m with the given stage's bit set.
func (m StageMask) Set(s Stage) StageMask { return m | s.Mask() }

// Clear returns m with the given stage's bit cleared.
func (m StageMask) Clear(s Stage) StageMask { return m &^ s.Mask() }

// Has reports whether the given stage's bit is set.
func (m StageMask) Has(s Stage) bool { return m&s.Mask() != 0 }

// Any reports whether any stage bit is set.
func (m StageMask) Any() bool { return m != 0 }
