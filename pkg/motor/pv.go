package motor

import (
	"context"
	"sync"
	"time"

	"imprint-scan/pkg/channel"
	hosterrors "imprint-scan/pkg/errors"
)

// Motor record fields.
const (
	FieldReadback   = ".RBV"
	FieldDoneMoving = ".DMOV"
	FieldDesc       = ".DESC"
)

// DefaultStartTimeout bounds how long Wait looks for a move to begin.
const DefaultStartTimeout = 500 * time.Millisecond

// PVMotor drives a motor record through a setpoint channel: a put to the
// record moves it, <pv>.DMOV reads 1 once the move is done, and <pv>.RBV
// holds the readback.
//
// A record may still report DMOV=1 for a moment after the put, so Wait
// first waits for the move to start: DMOV drops to 0, the readback is
// already at the target, or StartTimeout passes.
type PVMotor struct {
	client channel.Client
	pv     string
	name   string

	// StartTimeout overrides DefaultStartTimeout when positive.
	StartTimeout time.Duration

	mu      sync.Mutex
	target  float64
	pending bool
}

// NewPVMotor creates a motor for pv. An empty name defaults to pv.
func NewPVMotor(client channel.Client, pv, name string) *PVMotor {
	if name == "" {
		name = pv
	}
	return &PVMotor{client: client, pv: pv, name: name}
}

func (m *PVMotor) Name() string { return m.name }

// PV returns the motor record name.
func (m *PVMotor) PV() string { return m.pv }

func (m *PVMotor) Move(ctx context.Context, target float64) error {
	if err := m.client.Put(ctx, m.pv, target); err != nil {
		return hosterrors.MotorError("move", m.name, err)
	}
	m.mu.Lock()
	m.target, m.pending = target, true
	m.mu.Unlock()
	return nil
}

func (m *PVMotor) Position(ctx context.Context) (float64, error) {
	v, err := m.client.Get(ctx, m.pv+FieldReadback)
	if err != nil {
		return 0, hosterrors.MotorError("position", m.name, err)
	}
	return v, nil
}

func (m *PVMotor) Wait(ctx context.Context) error {
	m.mu.Lock()
	target, pending := m.target, m.pending
	m.pending = false
	m.mu.Unlock()

	if pending {
		if err := m.awaitStart(ctx, target); err != nil {
			return hosterrors.MotorError("wait", m.name, err)
		}
	}
	if err := m.client.WaitForValue(ctx, m.pv+FieldDoneMoving, 1); err != nil {
		return hosterrors.MotorError("wait", m.name, err)
	}
	return nil
}

func (m *PVMotor) awaitStart(ctx context.Context, target float64) error {
	timeout := m.StartTimeout
	if timeout <= 0 {
		timeout = DefaultStartTimeout
	}
	deadline := time.Now().Add(timeout)
	interval := min(channel.DefaultPollInterval, timeout/10+time.Millisecond)
	for {
		done, err := m.client.Get(ctx, m.pv+FieldDoneMoving)
		if err != nil {
			return err
		}
		if done == 0 {
			return nil
		}
		if rbv, err := m.client.Get(ctx, m.pv+FieldReadback); err == nil && channel.Matches(rbv, target, channel.DefaultTolerance) {
			return nil
		}
		if !time.Now().Before(deadline) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}
