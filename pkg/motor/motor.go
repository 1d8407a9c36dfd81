// Package motor provides the motor and axis abstractions driven by a scan.
//
// A Motor moves one physical positioner. An Axis is what a scan walks:
// either a Single motor or a Group of motors that move together as one
// virtual motor.
package motor

import (
	"context"
	"strings"

	hosterrors "imprint-scan/pkg/errors"
)

// Motor is a single positioner.
type Motor interface {
	// Name returns the display name of the motor.
	Name() string

	// Move commands a new target. It does not wait for the move to finish.
	Move(ctx context.Context, target float64) error

	// Position returns the current readback position.
	Position(ctx context.Context) (float64, error)

	// Wait blocks until the last commanded move has finished.
	Wait(ctx context.Context) error
}

// Axis is one scanned axis: a fixed tuple of motors moved together.
type Axis interface {
	Name() string
	Width() int
	MoveTo(ctx context.Context, targets []float64) error
	Positions(ctx context.Context) ([]float64, error)
	Wait(ctx context.Context) error
}

// Single adapts one motor to the Axis interface.
type Single struct {
	Motor Motor
}

func (s Single) Name() string { return s.Motor.Name() }
func (s Single) Width() int   { return 1 }

// MoveTo moves the motor to targets[0].
func (s Single) MoveTo(ctx context.Context, targets []float64) error {
	if len(targets) != 1 {
		return hosterrors.CountMismatchError(s.Name(), 1, len(targets))
	}
	return s.Motor.Move(ctx, targets[0])
}

func (s Single) Positions(ctx context.Context) ([]float64, error) {
	p, err := s.Motor.Position(ctx)
	if err != nil {
		return nil, err
	}
	return []float64{p}, nil
}

func (s Single) Wait(ctx context.Context) error { return s.Motor.Wait(ctx) }

// Group fans moves out over a fixed tuple of motors.
type Group struct {
	motors []Motor
	name   string
}

// NewGroup creates a group named after its members joined with "+".
func NewGroup(motors ...Motor) *Group {
	names := make([]string, len(motors))
	for i, m := range motors {
		names[i] = m.Name()
	}
	return &Group{motors: motors, name: strings.Join(names, "+")}
}

func (g *Group) Name() string { return g.name }
func (g *Group) Width() int   { return len(g.motors) }

// Motors returns the group members.
func (g *Group) Motors() []Motor { return g.motors }

// MoveTo commands every member. The target count must equal the group
// size; nothing moves otherwise.
func (g *Group) MoveTo(ctx context.Context, targets []float64) error {
	if len(targets) != len(g.motors) {
		return hosterrors.CountMismatchError(g.name, len(g.motors), len(targets))
	}
	for i, m := range g.motors {
		if err := m.Move(ctx, targets[i]); err != nil {
			return err
		}
	}
	return nil
}

// Positions returns the readback of every member, in order.
func (g *Group) Positions(ctx context.Context) ([]float64, error) {
	out := make([]float64, len(g.motors))
	for i, m := range g.motors {
		p, err := m.Position(ctx)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

// Wait waits for every member in turn.
func (g *Group) Wait(ctx context.Context) error {
	for _, m := range g.motors {
		if err := m.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}
