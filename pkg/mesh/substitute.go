package mesh

import (
	hosterrors "imprint-scan/pkg/errors"
)

// Flat resolves ix to a flattened offset into a sequence of length n
// built over steps. Coordinates must have one component per dimension,
// each within [0, steps[d]).
func (ix Index) Flat(steps []int, n int) (int, error) {
	if ix.flat {
		if ix.offset < 0 || ix.offset >= n {
			return 0, hosterrors.IndexOutOfRangeError("substitution offset", ix.offset, n)
		}
		return ix.offset, nil
	}
	if len(ix.coord) != len(steps) {
		return 0, hosterrors.ShapeMismatchError("substitution index", "mesh dimensions", len(ix.coord), len(steps))
	}
	for d, c := range ix.coord {
		if c < 0 || c >= steps[d] {
			return 0, hosterrors.IndexOutOfRangeError("substitution", ix.String(), steps[d]).
				SetContext("dimension", d)
		}
	}
	off := Ravel(ix.coord, steps)
	if off >= n {
		return 0, hosterrors.IndexOutOfRangeError("substitution offset", off, n)
	}
	return off, nil
}

// Apply returns a copy of seq with values[i] written at indices[i], in
// declaration order. A later value for the same cell wins. With no values
// the sequence is returned unchanged whatever the index count.
func Apply[T any](seq []T, values []T, indices []Index, steps []int) ([]T, error) {
	out := make([]T, len(seq))
	copy(out, seq)
	if len(values) == 0 {
		return out, nil
	}
	if len(values) != len(indices) {
		return nil, hosterrors.ShapeMismatchError("substitution values", "substitution indices",
			len(values), len(indices))
	}
	for i, v := range values {
		off, err := indices[i].Flat(steps, len(out))
		if err != nil {
			return nil, err
		}
		out[off] = v
	}
	return out, nil
}
