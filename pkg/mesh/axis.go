package mesh

import (
	hosterrors "imprint-scan/pkg/errors"
)

// AxisPositions builds the full position sequence of one axis.
//
// Over the grid of the axis' loop dimensions, component j of the position
// is Initial[j] plus Deltas[k][j] times the step index along the k-th loop
// dimension, summed over k. The grid is then broadcast across the mesh
// and the axis substitutions are applied.
func AxisPositions(axis AxisSpec, steps []int) ([]Position, error) {
	if err := checkAxis(axis); err != nil {
		return nil, err
	}
	dims, perm, err := sortLoopDims(axis.Name, axis.LoopDims, len(steps))
	if err != nil {
		return nil, err
	}

	// deltas[k] pairs with dims[k]
	deltas := make([][]float64, len(dims))
	for k, p := range perm {
		if len(axis.Deltas) == 1 {
			deltas[k] = axis.Deltas[0]
		} else {
			deltas[k] = axis.Deltas[p]
		}
	}

	grid := subShape(steps, dims)
	n := MeshSize(grid)
	raw := make([]Position, n)
	idx := make([]int, len(grid))
	for i := 0; i < n; i++ {
		pos := make(Position, len(axis.Initial))
		copy(pos, axis.Initial)
		for k, step := range idx {
			for j := range pos {
				pos[j] += deltas[k][j] * float64(step)
			}
		}
		raw[i] = pos
		advance(idx, grid)
	}

	seq, err := broadcast(axis.Name+" positions", raw, axis.LoopDims, steps)
	if err != nil {
		return nil, err
	}
	subs := make([]Position, len(axis.SubValues))
	for i, v := range axis.SubValues {
		subs[i] = Position(append([]float64(nil), v...))
	}
	seq, err = Apply(seq, subs, axis.SubIndices, steps)
	return seq, withSection(err, axis.Name)
}

// checkAxis verifies the tuple widths of one axis.
func checkAxis(axis AxisSpec) error {
	width := axis.Width()
	if axis.Kind == Simple && width != 1 {
		return hosterrors.ShapeMismatchError(axis.Name+" motors", "simple axis width", width, 1)
	}
	if len(axis.Initial) != width {
		return hosterrors.ShapeMismatchError(axis.Name+" motors", axis.Name+" initialPositions",
			width, len(axis.Initial))
	}
	for _, d := range axis.Deltas {
		if len(d) != width {
			return hosterrors.ShapeMismatchError(axis.Name+" motors", axis.Name+" deltas", width, len(d))
		}
	}
	switch {
	case len(axis.LoopDims) == 0 && len(axis.Deltas) <= 1:
	case len(axis.Deltas) == 1:
	case len(axis.Deltas) != len(axis.LoopDims):
		return hosterrors.ShapeMismatchError(axis.Name+" deltas", axis.Name+" loopDimensions",
			len(axis.Deltas), len(axis.LoopDims))
	}
	for _, d := range axis.LoopDims {
		if d < 0 {
			return hosterrors.ShapeMismatchError(axis.Name+" loop dimension", "mesh dimensions", d, 0)
		}
	}
	return nil
}

func withSection(err error, name string) error {
	if err == nil {
		return nil
	}
	if he, ok := hosterrors.As(err); ok && he.Section == "" {
		he.SetSection(name)
	}
	return err
}
