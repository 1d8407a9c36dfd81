package mesh

import (
	"sort"

	hosterrors "imprint-scan/pkg/errors"
)

// MaxMeshSize bounds the number of cells Validate accepts. Every sequence
// holds one value per cell, so larger meshes cannot be built in memory.
const MaxMeshSize = 1 << 24

// MeshSize is the product of all step counts.
func MeshSize(steps []int) int {
	n := 1
	for _, s := range steps {
		n *= s
	}
	return n
}

// ExpectedCount is the number of raw values a quantity looping on
// loopDims must declare: the product of those dimensions' step counts,
// or 1 when it loops on nothing.
func ExpectedCount(steps, loopDims []int) int {
	n := 1
	for _, d := range loopDims {
		if d >= 0 && d < len(steps) {
			n *= steps[d]
		}
	}
	return n
}

// CheckCount fails with SHAPE_MISMATCH when got differs from expected.
func CheckCount(nameA, nameB string, expected, got int) error {
	if expected != got {
		return hosterrors.ShapeMismatchError(nameA, nameB, expected, got)
	}
	return nil
}

// Unravel converts a flat row-major offset into a coordinate.
func Unravel(f int, steps []int) []int {
	coord := make([]int, len(steps))
	for d := len(steps) - 1; d >= 0; d-- {
		if steps[d] > 0 {
			coord[d] = f % steps[d]
			f /= steps[d]
		}
	}
	return coord
}

// Ravel converts an in-bounds coordinate into its row-major offset:
// sum of coord[d] times the product of steps[d+1:].
func Ravel(coord, steps []int) int {
	off := 0
	for d := range steps {
		off = off*steps[d] + coord[d]
	}
	return off
}

// advance increments coord as an odometer over shape, last digit fastest.
func advance(coord, shape []int) {
	for d := len(shape) - 1; d >= 0; d-- {
		coord[d]++
		if coord[d] < shape[d] {
			return
		}
		coord[d] = 0
	}
}

// sortLoopDims returns loopDims sorted ascending together with the
// permutation that sorted them. Duplicates and dimensions outside the
// mesh are rejected.
func sortLoopDims(name string, loopDims []int, ndim int) ([]int, []int, error) {
	perm := make([]int, len(loopDims))
	for i := range perm {
		perm[i] = i
	}
	sort.SliceStable(perm, func(a, b int) bool { return loopDims[perm[a]] < loopDims[perm[b]] })

	dims := make([]int, len(loopDims))
	for i, p := range perm {
		d := loopDims[p]
		if d < 0 || d >= ndim {
			return nil, nil, hosterrors.ShapeMismatchError(name+" loop dimension", "mesh dimensions", d, ndim)
		}
		if i > 0 && dims[i-1] == d {
			return nil, nil, hosterrors.ShapeMismatchError(name+" loop dimensions", "unique loop dimensions",
				len(loopDims), len(loopDims)-1)
		}
		dims[i] = d
	}
	return dims, perm, nil
}

// subShape is the step counts of the given dimensions.
func subShape(steps, dims []int) []int {
	shape := make([]int, len(dims))
	for i, d := range dims {
		shape[i] = steps[d]
	}
	return shape
}
