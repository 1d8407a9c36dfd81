package channel

import (
	"context"
	"testing"
	"time"

	hosterrors "imprint-scan/pkg/errors"
)

func TestMemoryGetPut(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if _, err := m.Get(ctx, "missing"); !hosterrors.Is(err, hosterrors.ErrRuntimeChannel) {
		t.Fatalf("expected channel error, got %v", err)
	}
	if err := m.Put(ctx, "A", 3); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if v, err := m.Get(ctx, "A"); err != nil || v != 3 {
		t.Errorf("Get = %v, %v", v, err)
	}
	m.Put(ctx, "A", 4)
	if puts := m.Puts("A"); len(puts) != 2 || puts[1] != 4 {
		t.Errorf("unexpected put history %v", puts)
	}
}

func TestMemoryWaitForValue(t *testing.T) {
	m := NewMemory()
	SimulateReadback(m, "SP", "SP.RBV", 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := m.Put(ctx, "SP", 2.5); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := m.WaitForValue(ctx, "SP.RBV", 2.5); err != nil {
		t.Fatalf("WaitForValue failed: %v", err)
	}
}

func TestMemoryWaitTimeout(t *testing.T) {
	m := NewMemory()
	m.Set("SP.RBV", 0)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := m.WaitForValue(ctx, "SP.RBV", 1)
	if !hosterrors.Is(err, hosterrors.ErrRuntimeWait) {
		t.Fatalf("expected wait error, got %v", err)
	}
}

func TestSimulateMotor(t *testing.T) {
	m := NewMemory()
	SimulateMotor(m, "M1", "sample x", 0)
	ctx := context.Background()

	if err := m.Put(ctx, "M1", 12); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if v, _ := m.Get(ctx, "M1.RBV"); v != 12 {
		t.Errorf("expected readback 12, got %v", v)
	}
	if v, _ := m.Get(ctx, "M1.DMOV"); v != 1 {
		t.Errorf("expected motion done, got %v", v)
	}
	if d, err := m.Describe(ctx, "M1.DESC"); err != nil || d != "sample x" {
		t.Errorf("Describe = %q, %v", d, err)
	}
}

func TestSimulateBurst(t *testing.T) {
	m := NewMemory()
	SimulateBurst(m, "COUNT", "CTRL", 0)
	ctx := context.Background()

	m.Put(ctx, "COUNT", 10)
	m.Put(ctx, "CTRL", 1)
	m.Put(ctx, "COUNT", 5)
	m.Put(ctx, "CTRL", 1)

	if v, _ := m.Get(ctx, "CTRL"); v != 0 {
		t.Errorf("expected trigger reset, got %v", v)
	}
	if v, _ := m.Get(ctx, "COUNT.DONE"); v != 15 {
		t.Errorf("expected 15 shots fired, got %v", v)
	}
}

func TestPollStopsOnHardError(t *testing.T) {
	calls := 0
	get := func(context.Context, string) (float64, error) {
		calls++
		return 0, hosterrors.RuntimeError("gateway down")
	}
	err := Poll(context.Background(), get, "X", 1, DefaultTolerance, time.Millisecond)
	if !hosterrors.Is(err, hosterrors.ErrRuntimeWait) || calls != 1 {
		t.Fatalf("expected immediate wait error, got %v after %d calls", err, calls)
	}
}
