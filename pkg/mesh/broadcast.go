package mesh

import (
	hosterrors "imprint-scan/pkg/errors"
)

// Broadcast expands raw values declared over loopDims into a full mesh
// sequence.
//
// raw is read row-major with the shape of steps at the sorted loop
// dimensions. Every dimension not in loopDims replicates the whole array
// along that dimension. The result has one entry per grid cell in
// row-major order. A single value with no loop dimensions is constant
// across the mesh.
func Broadcast[T any](raw []T, loopDims, steps []int) ([]T, error) {
	return broadcast("values", raw, loopDims, steps)
}

func broadcast[T any](name string, raw []T, loopDims, steps []int) ([]T, error) {
	dims, _, err := sortLoopDims(name, loopDims, len(steps))
	if err != nil {
		return nil, err
	}
	if err := CheckCount("expected "+name, "declared "+name, ExpectedCount(steps, dims), len(raw)); err != nil {
		return nil, err
	}
	for d, s := range steps {
		if s < 1 {
			return nil, hosterrors.ShapeMismatchError("numSteps", "minimum step count", s, 1).
				SetContext("dimension", d)
		}
	}

	total := MeshSize(steps)
	out := make([]T, total)
	coord := make([]int, len(steps))
	for f := 0; f < total; f++ {
		src := 0
		for _, d := range dims {
			src = src*steps[d] + coord[d]
		}
		out[f] = raw[src]
		advance(coord, steps)
	}
	return out, nil
}
