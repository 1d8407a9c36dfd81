package scan

import (
	"context"
	"testing"

	hosterrors "imprint-scan/pkg/errors"
	"imprint-scan/pkg/mesh"
	"imprint-scan/pkg/metrics"
	"imprint-scan/pkg/motor"
)

type recordingHooks struct {
	events []string
	cancel context.CancelFunc
	stopAt int
}

func (h *recordingHooks) PreScan(ctx context.Context)  { h.events = append(h.events, "pre_scan") }
func (h *recordingHooks) PostScan(ctx context.Context) { h.events = append(h.events, "post_scan") }
func (h *recordingHooks) PreStep(ctx context.Context, step Step) {
	h.events = append(h.events, "pre_step")
}
func (h *recordingHooks) PostStep(ctx context.Context, step Step) {
	h.events = append(h.events, "post_step")
	if h.cancel != nil && step.Index == h.stopAt {
		h.cancel()
	}
}

func twoCellMesh(t *testing.T) *mesh.Sequences {
	t.Helper()
	seqs, err := mesh.Build(mesh.Plan{
		Steps: []int{2},
		Axes: []mesh.AxisSpec{{
			Name: "x", Kind: mesh.Simple, Channels: []string{"x"},
			Initial: []float64{1}, Deltas: [][]float64{{2}}, LoopDims: []int{0},
		}},
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return seqs
}

func TestWalkerCallOrder(t *testing.T) {
	m := motor.NewSimulated("x")
	w := &Walker{Seqs: twoCellMesh(t), Axes: []motor.Axis{motor.Single{Motor: m}}}
	h := &recordingHooks{}

	if err := w.Walk(context.Background(), h); err != nil {
		t.Fatalf("Walk failed: %v", err)
	}
	want := []string{"pre_scan", "pre_step", "post_step", "pre_step", "post_step", "post_scan"}
	if len(h.events) != len(want) {
		t.Fatalf("events %v, want %v", h.events, want)
	}
	for i := range want {
		if h.events[i] != want[i] {
			t.Fatalf("events %v, want %v", h.events, want)
		}
	}
	if moves := m.Moves(); len(moves) != 2 || moves[1] != 3 {
		t.Errorf("unexpected moves %v", moves)
	}
	if m.Waits() != 2 {
		t.Errorf("expected a wait per step, got %d", m.Waits())
	}
}

func TestWalkerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := &recordingHooks{cancel: cancel, stopAt: 0}
	w := &Walker{Seqs: twoCellMesh(t), DryRun: true}

	if err := w.Walk(ctx, h); !hosterrors.Is(err, hosterrors.ErrRuntime) {
		t.Fatalf("expected runtime error, got %v", err)
	}
	if h.events[len(h.events)-1] != "post_step" || len(h.events) != 3 {
		t.Errorf("walk should stop after the first step, got %v", h.events)
	}
}

func TestWalkerCountMismatch(t *testing.T) {
	a, b := motor.NewSimulated("a"), motor.NewSimulated("b")
	sm := metrics.NewScanMetrics()
	w := &Walker{Seqs: twoCellMesh(t), Axes: []motor.Axis{motor.NewGroup(a, b)}, Metrics: sm}

	err := w.Walk(context.Background(), &recordingHooks{})
	if !hosterrors.Is(err, hosterrors.ErrCountMismatch) {
		t.Fatalf("expected count mismatch, got %v", err)
	}
	if len(a.Moves())+len(b.Moves()) != 0 {
		t.Error("no motor may move on a count mismatch")
	}
	if got := sm.MotorFailures.Get(metrics.Labels{"axis": "a+b"}); got != 1 {
		t.Errorf("motor failures = %d, want 1", got)
	}
}

func TestWalkerAxisCount(t *testing.T) {
	w := &Walker{Seqs: twoCellMesh(t)}
	if err := w.Walk(context.Background(), &recordingHooks{}); !hosterrors.Is(err, hosterrors.ErrShapeMismatch) {
		t.Fatalf("expected shape mismatch, got %v", err)
	}
}
