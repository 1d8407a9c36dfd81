package mesh

import "math"

// AuxSequence is the built per-step sequence of an auxiliary action.
type AuxSequence struct {
	name    string
	enabled bool
	values  []float64
}

// NewAuxSequence wraps already-built values.
func NewAuxSequence(name string, enabled bool, values []float64) AuxSequence {
	return AuxSequence{name: name, enabled: enabled, values: append([]float64(nil), values...)}
}

// BuildAuxiliary broadcasts the raw values of spec across the mesh and
// applies its substitutions. NaN values survive both steps. A disabled
// spec yields an empty, disabled sequence.
func BuildAuxiliary(spec AuxSpec, steps []int) (AuxSequence, error) {
	if !spec.Enabled {
		return AuxSequence{name: spec.Name}, nil
	}
	seq, err := broadcast(spec.Name+" values", spec.Values, spec.LoopDims, steps)
	if err != nil {
		return AuxSequence{}, withSection(err, spec.Name)
	}
	seq, err = Apply(seq, spec.SubValues, spec.SubIndices, steps)
	if err != nil {
		return AuxSequence{}, withSection(err, spec.Name)
	}
	return AuxSequence{name: spec.Name, enabled: true, values: seq}, nil
}

func (s AuxSequence) Name() string  { return s.name }
func (s AuxSequence) Enabled() bool { return s.enabled }

// At returns the value for step i. ok is false when i is past the end.
func (s AuxSequence) At(i int) (v float64, ok bool) {
	if i < 0 || i >= len(s.values) {
		return 0, false
	}
	return s.values[i], true
}

// Values returns a copy of the sequence.
func (s AuxSequence) Values() []float64 {
	return append([]float64(nil), s.values...)
}

// Draw is the outcome of advancing a Cursor.
type Draw int

const (
	// Drawn means a usable value was drawn.
	Drawn Draw = iota
	// Skipped means the drawn value is the NaN sentinel.
	Skipped
	// Exhausted means the cursor ran past the end of the sequence.
	Exhausted
)

func (d Draw) String() string {
	switch d {
	case Drawn:
		return "drawn"
	case Skipped:
		return "skipped"
	default:
		return "exhausted"
	}
}

// Cursor walks an AuxSequence forward without mutating it.
type Cursor struct {
	seq AuxSequence
	pos int
}

// Cursor returns a cursor positioned at the first step.
func (s AuxSequence) Cursor() *Cursor {
	return &Cursor{seq: s}
}

// Next draws the value for the current step and advances.
func (c *Cursor) Next() (float64, Draw) {
	v, ok := c.seq.At(c.pos)
	if !ok {
		return 0, Exhausted
	}
	c.pos++
	if math.IsNaN(v) {
		return v, Skipped
	}
	return v, Drawn
}

// Pos is the number of values drawn so far.
func (c *Cursor) Pos() int { return c.pos }

// Reset rewinds the cursor to the first step.
func (c *Cursor) Reset() { c.pos = 0 }
