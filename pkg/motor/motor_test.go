package motor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"imprint-scan/pkg/channel"
	hosterrors "imprint-scan/pkg/errors"
	"imprint-scan/pkg/mesh"
)

func TestGroupMoveTo(t *testing.T) {
	a, b := NewSimulated("a"), NewSimulated("b")
	g := NewGroup(a, b)
	ctx := context.Background()

	if g.Name() != "a+b" || g.Width() != 2 {
		t.Fatalf("unexpected group %q width %d", g.Name(), g.Width())
	}
	if err := g.MoveTo(ctx, []float64{1, 2}); err != nil {
		t.Fatalf("MoveTo failed: %v", err)
	}
	if err := g.Wait(ctx); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	pos, err := g.Positions(ctx)
	if err != nil {
		t.Fatalf("Positions failed: %v", err)
	}
	if diff := cmp.Diff([]float64{1, 2}, pos); diff != "" {
		t.Errorf("positions mismatch (-want +got):\n%s", diff)
	}
	if a.Waits() != 1 || b.Waits() != 1 {
		t.Errorf("expected one wait per member, got %d and %d", a.Waits(), b.Waits())
	}
}

func TestGroupCountMismatch(t *testing.T) {
	a, b := NewSimulated("a"), NewSimulated("b")
	g := NewGroup(a, b)

	err := g.MoveTo(context.Background(), []float64{1, 2, 3})
	if !hosterrors.Is(err, hosterrors.ErrCountMismatch) {
		t.Fatalf("expected count mismatch, got %v", err)
	}
	if len(a.Moves())+len(b.Moves()) != 0 {
		t.Error("no member should move on a count mismatch")
	}

	err = Single{Motor: a}.MoveTo(context.Background(), []float64{1, 2})
	if !hosterrors.Is(err, hosterrors.ErrCountMismatch) {
		t.Fatalf("expected count mismatch for single, got %v", err)
	}
}

func TestSimulatedFailure(t *testing.T) {
	m := NewSimulated("x")
	boom := errors.New("limit switch")
	m.FailWhen(func(target float64) error {
		if target > 10 {
			return boom
		}
		return nil
	})

	if err := m.Move(context.Background(), 11); !errors.Is(err, boom) {
		t.Fatalf("expected limit error, got %v", err)
	}
	if err := m.Move(context.Background(), 3); err != nil {
		t.Fatalf("Move failed: %v", err)
	}
	if p, _ := m.Position(context.Background()); p != 3 {
		t.Errorf("expected position 3, got %v", p)
	}
}

func TestPVMotor(t *testing.T) {
	store := channel.NewMemory()
	channel.SimulateMotor(store, "XPP:MOT:01", "sample x", 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	m, err := PVFactory(store)(ctx, "XPP:MOT:01")
	if err != nil {
		t.Fatalf("factory failed: %v", err)
	}
	if m.Name() != "sample x" {
		t.Errorf("expected name from description, got %q", m.Name())
	}
	if err := m.Move(ctx, 4.5); err != nil {
		t.Fatalf("Move failed: %v", err)
	}
	if err := m.Wait(ctx); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if p, err := m.Position(ctx); err != nil || p != 4.5 {
		t.Errorf("Position = %v, %v; want 4.5", p, err)
	}
}

// laggingMotor makes pv report DMOV=1 for a while after each put before
// the move visibly starts.
func laggingMotor(store *channel.Memory, pv string, lag, travel time.Duration) {
	store.Set(pv, 0)
	store.Set(pv+FieldReadback, 0)
	store.Set(pv+FieldDoneMoving, 1)
	store.OnPut(pv, func(v float64) {
		time.AfterFunc(lag, func() {
			store.Set(pv+FieldDoneMoving, 0)
			time.AfterFunc(travel, func() {
				store.Set(pv+FieldReadback, v)
				store.Set(pv+FieldDoneMoving, 1)
			})
		})
	})
}

func TestPVMotorWaitsForMoveToStart(t *testing.T) {
	store := channel.NewMemory()
	laggingMotor(store, "XPP:MOT:03", 30*time.Millisecond, 30*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	m := NewPVMotor(store, "XPP:MOT:03", "")
	if err := m.Move(ctx, 7); err != nil {
		t.Fatalf("Move failed: %v", err)
	}
	if err := m.Wait(ctx); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if p, _ := m.Position(ctx); p != 7 {
		t.Errorf("Wait returned before the move finished: position %v", p)
	}
}

func TestPVMotorStartTimeout(t *testing.T) {
	store := channel.NewMemory()
	store.Set("XPP:MOT:04", 0)
	store.Set("XPP:MOT:04"+FieldReadback, 0)
	store.Set("XPP:MOT:04"+FieldDoneMoving, 1)

	m := NewPVMotor(store, "XPP:MOT:04", "")
	m.StartTimeout = 20 * time.Millisecond
	ctx := context.Background()
	if err := m.Move(ctx, 3); err != nil {
		t.Fatalf("Move failed: %v", err)
	}
	start := time.Now()
	if err := m.Wait(ctx); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("a record that never moves should only cost the start timeout, took %v", elapsed)
	}
}

func TestPVMotorNameFallback(t *testing.T) {
	store := channel.NewMemory()
	channel.SimulateMotor(store, "XPP:MOT:02", "", 0)

	m, _ := PVFactory(store)(context.Background(), "XPP:MOT:02")
	if m.Name() != "XPP:MOT:02" {
		t.Errorf("expected PV name, got %q", m.Name())
	}

	_, err := m.Position(context.Background())
	if err != nil {
		t.Fatalf("Position failed: %v", err)
	}
	missing := NewPVMotor(store, "NOPE", "")
	if _, err := missing.Position(context.Background()); !hosterrors.Is(err, hosterrors.ErrRuntimeMotor) {
		t.Errorf("expected motor error, got %v", err)
	}
}

func TestBindAxes(t *testing.T) {
	sim := NewSimulation()
	specs := []mesh.AxisSpec{
		{Name: "x", Kind: mesh.Simple, Channels: []string{"X"}},
		{Name: "yz", Kind: mesh.Grouped, Channels: []string{"Y", "Z"}},
	}

	axes, err := BindAxes(context.Background(), sim.Factory(), specs)
	if err != nil {
		t.Fatalf("BindAxes failed: %v", err)
	}
	if _, ok := axes[0].(Single); !ok {
		t.Errorf("expected Single for simple axis, got %T", axes[0])
	}
	if axes[1].Name() != "Y+Z" || axes[1].Width() != 2 {
		t.Errorf("unexpected group %q width %d", axes[1].Name(), axes[1].Width())
	}
	if diff := cmp.Diff([]string{"X", "Y", "Z"}, sim.Names()); diff != "" {
		t.Errorf("motor creation order mismatch (-want +got):\n%s", diff)
	}
}
