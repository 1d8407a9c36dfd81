package mesh

import (
	"fmt"

	hosterrors "imprint-scan/pkg/errors"
)

// Validate cross-checks a plan before any hardware is touched. The first
// failure is returned and every failure is a SHAPE_MISMATCH naming the
// two quantities compared. Checks run in this order:
//
//	axis tuple widths, loop-dimension count against numSteps, mesh size,
//	attenuator value count, shot count value count, substitution counts.
func Validate(plan Plan) error {
	for _, axis := range plan.Axes {
		if err := checkAxis(axis); err != nil {
			return err
		}
	}

	ndim := 0
	for _, axis := range plan.Axes {
		for _, d := range axis.LoopDims {
			if d+1 > ndim {
				ndim = d + 1
			}
		}
	}
	if ndim != len(plan.Steps) {
		return hosterrors.ShapeMismatchError("Motors", "numSteps", ndim, len(plan.Steps))
	}
	for d, s := range plan.Steps {
		if s < 1 {
			return hosterrors.ShapeMismatchError(fmt.Sprintf("numSteps[%d]", d), "minimum step count", s, 1)
		}
	}
	cells := 1
	for _, s := range plan.Steps {
		if cells > MaxMeshSize/s {
			return hosterrors.ShapeMismatchError("numSteps", "maximum mesh size", fmt.Sprint(plan.Steps), MaxMeshSize)
		}
		cells *= s
	}

	for _, aux := range []AuxSpec{plan.Attenuator, plan.Burst} {
		if err := checkAux(aux, plan.Steps); err != nil {
			return err
		}
	}

	for _, axis := range plan.Axes {
		if len(axis.SubValues) == 0 {
			continue
		}
		if len(axis.SubValues) != len(axis.SubIndices) {
			return hosterrors.ShapeMismatchError(axis.Name+" substituteValues", axis.Name+" substituteIndices",
				len(axis.SubValues), len(axis.SubIndices))
		}
		for _, v := range axis.SubValues {
			if len(v) != axis.Width() {
				return hosterrors.ShapeMismatchError(axis.Name+" motors", axis.Name+" substituteValues",
					axis.Width(), len(v))
			}
		}
	}
	for _, aux := range []AuxSpec{plan.Attenuator, plan.Burst} {
		if !aux.Enabled || len(aux.SubValues) == 0 {
			continue
		}
		if len(aux.SubValues) != len(aux.SubIndices) {
			return hosterrors.ShapeMismatchError(aux.Name+" substituteValues", aux.Name+" substituteIndices",
				len(aux.SubValues), len(aux.SubIndices))
		}
	}
	return nil
}

func checkAux(aux AuxSpec, steps []int) error {
	if !aux.Enabled {
		return nil
	}
	for _, d := range aux.LoopDims {
		if d < 0 || d >= len(steps) {
			return hosterrors.ShapeMismatchError(aux.Name+" loop dimension", "numSteps", d, len(steps))
		}
	}
	return CheckCount(
		fmt.Sprintf("Expected Number of %s Values", aux.Name),
		fmt.Sprintf("Number of inputted %s Values", aux.Name),
		ExpectedCount(steps, aux.LoopDims), len(aux.Values))
}

// Build validates plan and builds every sequence. Nothing is built when
// validation fails.
func Build(plan Plan) (*Sequences, error) {
	if err := Validate(plan); err != nil {
		return nil, err
	}
	seqs := &Sequences{
		Steps: append([]int(nil), plan.Steps...),
		Names: make([]string, len(plan.Axes)),
		Axes:  make([][]Position, len(plan.Axes)),
	}
	for i, axis := range plan.Axes {
		seq, err := AxisPositions(axis, plan.Steps)
		if err != nil {
			return nil, err
		}
		seqs.Names[i] = axis.Name
		seqs.Axes[i] = seq
	}
	var err error
	if seqs.Attenuator, err = BuildAuxiliary(plan.Attenuator, plan.Steps); err != nil {
		return nil, err
	}
	if seqs.Burst, err = BuildAuxiliary(plan.Burst, plan.Steps); err != nil {
		return nil, err
	}
	return seqs, nil
}
