package mesh

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	hosterrors "imprint-scan/pkg/errors"
)

var nan = math.NaN()

func simpleAxis(name string, initial, delta float64, loopDims ...int) AxisSpec {
	return AxisSpec{
		Name:     name,
		Kind:     Simple,
		Channels: []string{name},
		Initial:  []float64{initial},
		Deltas:   [][]float64{{delta}},
		LoopDims: loopDims,
	}
}

func firsts(seq []Position) []float64 {
	out := make([]float64, len(seq))
	for i, p := range seq {
		out[i] = p[0]
	}
	return out
}

func TestTwoAxesOnSeparateDimensions(t *testing.T) {
	plan := Plan{
		Steps: []int{2, 3},
		Axes: []AxisSpec{
			simpleAxis("x", 0, 1, 0),
			simpleAxis("y", 10, 5, 1),
		},
	}
	seqs, err := Build(plan)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if seqs.Size() != 6 {
		t.Fatalf("expected 6 cells, got %d", seqs.Size())
	}
	if diff := cmp.Diff([]float64{0, 0, 0, 1, 1, 1}, firsts(seqs.Axes[0])); diff != "" {
		t.Errorf("axis 0 mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{10, 15, 20, 10, 15, 20}, firsts(seqs.Axes[1])); diff != "" {
		t.Errorf("axis 1 mismatch (-want +got):\n%s", diff)
	}
}

func TestAttenuatorBroadcastAndSubstitution(t *testing.T) {
	steps := []int{2, 3}
	spec := AuxSpec{
		Name:     "Attenuator",
		Enabled:  true,
		Values:   []float64{5, 7},
		LoopDims: []int{0},
	}
	seq, err := BuildAuxiliary(spec, steps)
	if err != nil {
		t.Fatalf("BuildAuxiliary failed: %v", err)
	}
	if diff := cmp.Diff([]float64{5, 5, 5, 7, 7, 7}, seq.Values()); diff != "" {
		t.Errorf("broadcast mismatch (-want +got):\n%s", diff)
	}

	spec.SubValues = []float64{9}
	spec.SubIndices = []Index{Coord(1, 2)}
	seq, err = BuildAuxiliary(spec, steps)
	if err != nil {
		t.Fatalf("BuildAuxiliary with substitution failed: %v", err)
	}
	if diff := cmp.Diff([]float64{5, 5, 5, 7, 7, 9}, seq.Values()); diff != "" {
		t.Errorf("substitution mismatch (-want +got):\n%s", diff)
	}
}

func TestSubstitutionIndexOutOfRange(t *testing.T) {
	seq := []float64{0, 1, 2, 3, 4, 5}
	_, err := Apply(seq, []float64{9}, []Index{Coord(2, 0)}, []int{2, 3})
	if !hosterrors.Is(err, hosterrors.ErrIndexOutOfRange) {
		t.Fatalf("expected INDEX_OUT_OF_RANGE, got %v", err)
	}

	_, err = Apply(seq, []float64{9}, []Index{Offset(6)}, []int{2, 3})
	if !hosterrors.Is(err, hosterrors.ErrIndexOutOfRange) {
		t.Fatalf("expected INDEX_OUT_OF_RANGE for offset, got %v", err)
	}

	_, err = Apply(seq, []float64{9}, []Index{Coord(1)}, []int{2, 3})
	if !hosterrors.Is(err, hosterrors.ErrShapeMismatch) {
		t.Fatalf("expected SHAPE_MISMATCH for short coordinate, got %v", err)
	}
}

func TestBroadcastLength(t *testing.T) {
	tests := []struct {
		steps    []int
		loopDims []int
		raw      int
	}{
		{[]int{4}, nil, 1},
		{[]int{4}, []int{0}, 4},
		{[]int{2, 3}, []int{1}, 3},
		{[]int{2, 3, 4}, []int{0, 2}, 8},
		{[]int{2, 3, 4}, []int{2, 0}, 8},
		{[]int{2, 3, 4}, []int{0, 1, 2}, 24},
		{[]int{1, 1, 5}, []int{}, 1},
	}
	for _, tt := range tests {
		if got := ExpectedCount(tt.steps, tt.loopDims); got != tt.raw {
			t.Errorf("ExpectedCount(%v, %v) = %d, want %d", tt.steps, tt.loopDims, got, tt.raw)
		}
		raw := make([]int, tt.raw)
		out, err := Broadcast(raw, tt.loopDims, tt.steps)
		if err != nil {
			t.Errorf("Broadcast(%v, %v) failed: %v", tt.steps, tt.loopDims, err)
			continue
		}
		if len(out) != MeshSize(tt.steps) {
			t.Errorf("Broadcast(%v, %v) length %d, want %d", tt.steps, tt.loopDims, len(out), MeshSize(tt.steps))
		}
	}
}

func TestBroadcastConstant(t *testing.T) {
	out, err := Broadcast([]string{"c"}, nil, []int{2, 2, 3})
	if err != nil {
		t.Fatalf("Broadcast failed: %v", err)
	}
	if len(out) != 12 {
		t.Fatalf("expected 12 copies, got %d", len(out))
	}
	for i, v := range out {
		if v != "c" {
			t.Errorf("out[%d] = %q, want c", i, v)
		}
	}
}

func TestBroadcastUnsortedLoopDims(t *testing.T) {
	steps := []int{2, 3, 2}
	raw := []string{"a", "b", "c", "d"}
	out, err := Broadcast(raw, []int{2, 0}, steps)
	if err != nil {
		t.Fatalf("Broadcast failed: %v", err)
	}
	for f, v := range out {
		c := Unravel(f, steps)
		want := raw[c[0]*2+c[2]]
		if v != want {
			t.Errorf("cell %v = %s, want %s", c, v, want)
		}
	}
}

func TestBroadcastShapeMismatch(t *testing.T) {
	_, err := Broadcast([]float64{1, 2, 3}, []int{0}, []int{2, 3})
	m, ok := hosterrors.MismatchOf(err)
	if !ok {
		t.Fatalf("expected SHAPE_MISMATCH, got %v", err)
	}
	if m.SizeA != 2 || m.SizeB != 3 {
		t.Errorf("expected sizes 2 and 3, got %v and %v", m.SizeA, m.SizeB)
	}

	_, err = Broadcast([]float64{1, 2}, []int{0, 0}, []int{2, 3})
	if !hosterrors.Is(err, hosterrors.ErrShapeMismatch) {
		t.Errorf("expected SHAPE_MISMATCH for duplicate loop dims, got %v", err)
	}
}

// Substitution offsets and broadcast ordering must agree on every cell.
func TestFlattenRoundTrip(t *testing.T) {
	steps := []int{2, 3, 4}
	axis := AxisSpec{
		Name:     "probe",
		Kind:     Simple,
		Channels: []string{"probe"},
		Initial:  []float64{0},
		Deltas:   [][]float64{{100}, {10}, {1}},
		LoopDims: []int{0, 1, 2},
	}
	seq, err := AxisPositions(axis, steps)
	if err != nil {
		t.Fatalf("AxisPositions failed: %v", err)
	}
	for f := 0; f < MeshSize(steps); f++ {
		c := Unravel(f, steps)
		encoded := float64(100*c[0] + 10*c[1] + c[2])
		if seq[f][0] != encoded {
			t.Fatalf("cell %d holds %v, want %v", f, seq[f][0], encoded)
		}
		off, err := Coord(c...).Flat(steps, len(seq))
		if err != nil {
			t.Fatalf("Flat(%v) failed: %v", c, err)
		}
		if off != f {
			t.Errorf("Flat(%v) = %d, want %d", c, off, f)
		}
		out, err := Apply(seq, []Position{{-1}}, []Index{Coord(c...)}, steps)
		if err != nil {
			t.Fatalf("Apply(%v) failed: %v", c, err)
		}
		if out[f][0] != -1 {
			t.Errorf("Apply(%v) did not write cell %d", c, f)
		}
	}
}

func TestApplyEmptyIsIdentity(t *testing.T) {
	seq := []float64{1, 2, 3}
	out, err := Apply(seq, nil, nil, []int{3})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if diff := cmp.Diff(seq, out); diff != "" {
		t.Errorf("unexpected change (-want +got):\n%s", diff)
	}

	// Indices without values mean no overrides are configured.
	out, err = Apply(seq, nil, []Index{Coord(0), Coord(1)}, []int{3})
	if err != nil {
		t.Fatalf("Apply with dangling indices failed: %v", err)
	}
	if diff := cmp.Diff(seq, out); diff != "" {
		t.Errorf("unexpected change (-want +got):\n%s", diff)
	}
}

func TestApplyIdempotentAndLastWriteWins(t *testing.T) {
	steps := []int{2, 2}
	seq := []float64{0, 0, 0, 0}

	once, err := Apply(seq, []float64{4}, []Index{Coord(1, 0)}, steps)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	twice, err := Apply(once, []float64{4}, []Index{Coord(1, 0)}, steps)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("second application changed sequence (-once +twice):\n%s", diff)
	}

	out, err := Apply(seq, []float64{1, 2, 3}, []Index{Coord(0, 1), Offset(3), Coord(0, 1)}, steps)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if diff := cmp.Diff([]float64{0, 3, 0, 2}, out); diff != "" {
		t.Errorf("unexpected result (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{0, 0, 0, 0}, seq); diff != "" {
		t.Errorf("input was modified (-want +got):\n%s", diff)
	}
}

func TestGroupedAxis(t *testing.T) {
	axis := AxisSpec{
		Name:     "m2+m3",
		Kind:     Grouped,
		Channels: []string{"m2", "m3"},
		Initial:  []float64{10, 20},
		Deltas:   [][]float64{{5, -5}},
		LoopDims: []int{1},
	}
	seq, err := AxisPositions(axis, []int{2, 3})
	if err != nil {
		t.Fatalf("AxisPositions failed: %v", err)
	}
	want := []Position{
		{10, 20}, {15, 15}, {20, 10},
		{10, 20}, {15, 15}, {20, 10},
	}
	if diff := cmp.Diff(want, seq); diff != "" {
		t.Errorf("grouped positions mismatch (-want +got):\n%s", diff)
	}
}

func TestPerDimensionDeltasFollowDeclaredOrder(t *testing.T) {
	steps := []int{2, 3}
	want := []float64{0, 10, 20, 1, 11, 21}

	sorted := simpleAxis("a", 0, 0, 0, 1)
	sorted.Deltas = [][]float64{{1}, {10}}
	reversed := simpleAxis("a", 0, 0, 1, 0)
	reversed.Deltas = [][]float64{{10}, {1}}

	for _, axis := range []AxisSpec{sorted, reversed} {
		seq, err := AxisPositions(axis, steps)
		if err != nil {
			t.Fatalf("AxisPositions(%v) failed: %v", axis.LoopDims, err)
		}
		if diff := cmp.Diff(want, firsts(seq)); diff != "" {
			t.Errorf("loop dims %v mismatch (-want +got):\n%s", axis.LoopDims, diff)
		}
	}
}

func TestNaNSurvivesBroadcastAndSubstitution(t *testing.T) {
	spec := AuxSpec{
		Name:       "Linac",
		Enabled:    true,
		Values:     []float64{nan, 20},
		LoopDims:   []int{1},
		SubValues:  []float64{nan},
		SubIndices: []Index{Coord(1, 1)},
	}
	seq, err := BuildAuxiliary(spec, []int{2, 2})
	if err != nil {
		t.Fatalf("BuildAuxiliary failed: %v", err)
	}
	want := []float64{nan, 20, nan, nan}
	if diff := cmp.Diff(want, seq.Values(), cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("NaN not preserved (-want +got):\n%s", diff)
	}

	cur := seq.Cursor()
	wantDraws := []Draw{Skipped, Drawn, Skipped, Skipped, Exhausted, Exhausted}
	for i, want := range wantDraws {
		if _, got := cur.Next(); got != want {
			t.Errorf("draw %d = %v, want %v", i, got, want)
		}
	}
	cur.Reset()
	if _, got := cur.Next(); got != Skipped || cur.Pos() != 1 {
		t.Errorf("reset cursor drew %v at %d", got, cur.Pos())
	}
}

func TestDisabledAuxiliaryIsNotBuilt(t *testing.T) {
	seq, err := BuildAuxiliary(AuxSpec{Name: "Attenuator", Values: []float64{1, 2, 3}}, []int{2})
	if err != nil {
		t.Fatalf("disabled spec must not be checked: %v", err)
	}
	if seq.Enabled() || len(seq.Values()) != 0 {
		t.Errorf("expected empty disabled sequence, got %d values", len(seq.Values()))
	}
	if _, ok := seq.At(0); ok {
		t.Error("At on empty sequence must report exhausted")
	}
}
