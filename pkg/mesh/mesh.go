// Package mesh builds the N-dimensional iteration mesh of an imprint scan.
//
// Every per-axis and auxiliary quantity is declared over a subset of the
// scan dimensions (its loop dimensions) and broadcast across the rest.
// The result is a set of flattened sequences, one entry per grid cell in
// row-major order with the last dimension varying fastest.
package mesh

import (
	"fmt"
	"strings"
)

// AxisKind tags an axis as a single motor or a group of co-moving motors.
type AxisKind int

const (
	Simple AxisKind = iota
	Grouped
)

func (k AxisKind) String() string {
	if k == Grouped {
		return "grouped"
	}
	return "simple"
}

// Position is the commanded value of one axis at one grid cell. A simple
// axis has one component, a grouped axis one per member motor.
type Position []float64

func (p Position) String() string {
	if len(p) == 1 {
		return fmt.Sprintf("%g", p[0])
	}
	parts := make([]string, len(p))
	for i, v := range p {
		parts[i] = fmt.Sprintf("%g", v)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Index addresses a grid cell either by coordinate or by flattened offset.
type Index struct {
	coord  []int
	offset int
	flat   bool
}

// Coord returns a coordinate index.
func Coord(c ...int) Index {
	return Index{coord: append([]int(nil), c...)}
}

// Offset returns a flattened-offset index.
func Offset(o int) Index {
	return Index{offset: o, flat: true}
}

// IsOffset reports whether ix is a flattened offset.
func (ix Index) IsOffset() bool { return ix.flat }

// Coordinate returns a copy of the coordinate components.
func (ix Index) Coordinate() []int { return append([]int(nil), ix.coord...) }

func (ix Index) String() string {
	if ix.flat {
		return fmt.Sprintf("%d", ix.offset)
	}
	parts := make([]string, len(ix.coord))
	for i, c := range ix.coord {
		parts[i] = fmt.Sprintf("%d", c)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// AxisSpec describes one motor or motor group.
type AxisSpec struct {
	Name     string
	Kind     AxisKind
	Channels []string
	// Initial holds one component per channel.
	Initial []float64
	// Deltas holds either one tuple used on every loop dimension or one
	// tuple per loop dimension, in the order LoopDims is declared.
	Deltas     [][]float64
	LoopDims   []int
	SubValues  [][]float64
	SubIndices []Index
}

// Width is the number of motors moved by the axis.
func (a AxisSpec) Width() int { return len(a.Channels) }

// AuxSpec describes an auxiliary per-step value such as the attenuator
// setpoint or the burst shot count. NaN values mean "no action".
type AuxSpec struct {
	Name       string
	Enabled    bool
	Values     []float64
	LoopDims   []int
	SubValues  []float64
	SubIndices []Index
}

// Plan is a complete mesh declaration.
type Plan struct {
	Steps      []int
	Axes       []AxisSpec
	Attenuator AuxSpec
	Burst      AuxSpec
}

// Sequences holds the built, immutable mesh. Callers must treat the
// returned slices as read-only.
type Sequences struct {
	Steps      []int
	Names      []string
	Axes       [][]Position
	Attenuator AuxSequence
	Burst      AuxSequence
}

// Size is the number of grid cells.
func (s *Sequences) Size() int { return MeshSize(s.Steps) }

// Coord returns the grid coordinate of flat index f.
func (s *Sequences) Coord(f int) []int { return Unravel(f, s.Steps) }

// At returns the commanded positions of every axis at flat index f.
func (s *Sequences) At(f int) []Position {
	out := make([]Position, len(s.Axes))
	for i, seq := range s.Axes {
		out[i] = seq[f]
	}
	return out
}
