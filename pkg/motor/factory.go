package motor

import (
	"context"
	"strings"
	"sync"

	"imprint-scan/pkg/channel"
	"imprint-scan/pkg/mesh"
)

// Factory creates the motor behind a channel name.
type Factory func(ctx context.Context, pv string) (Motor, error)

// PVFactory returns a factory for PVMotors on client. When the client can
// describe channels, the motor is named after <pv>.DESC; otherwise, or if
// the description is empty or unavailable, the PV name is used.
func PVFactory(client channel.Client) Factory {
	return func(ctx context.Context, pv string) (Motor, error) {
		name := pv
		if d, ok := client.(channel.Describer); ok {
			if desc, err := d.Describe(ctx, pv+FieldDesc); err == nil && strings.TrimSpace(desc) != "" {
				name = strings.TrimSpace(desc)
			}
		}
		return NewPVMotor(client, pv, name), nil
	}
}

// BindAxis creates the axis for spec: a Single for a simple axis and a
// Group for a grouped one.
func BindAxis(ctx context.Context, f Factory, spec mesh.AxisSpec) (Axis, error) {
	motors := make([]Motor, len(spec.Channels))
	for i, pv := range spec.Channels {
		m, err := f(ctx, pv)
		if err != nil {
			return nil, err
		}
		motors[i] = m
	}
	if spec.Kind == mesh.Simple && len(motors) == 1 {
		return Single{Motor: motors[0]}, nil
	}
	return NewGroup(motors...), nil
}

// BindAxes binds every axis of a plan, in order.
func BindAxes(ctx context.Context, f Factory, specs []mesh.AxisSpec) ([]Axis, error) {
	axes := make([]Axis, len(specs))
	for i, spec := range specs {
		a, err := BindAxis(ctx, f, spec)
		if err != nil {
			return nil, err
		}
		axes[i] = a
	}
	return axes, nil
}

// Simulation hands out simulated motors by channel name and keeps them
// for inspection.
type Simulation struct {
	mu     sync.Mutex
	motors map[string]*Simulated
	order  []string
}

// NewSimulation creates an empty simulation.
func NewSimulation() *Simulation {
	return &Simulation{motors: make(map[string]*Simulated)}
}

// Factory returns a factory creating (or reusing) simulated motors.
func (s *Simulation) Factory() Factory {
	return func(ctx context.Context, pv string) (Motor, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if m, ok := s.motors[pv]; ok {
			return m, nil
		}
		m := NewSimulated(pv)
		s.motors[pv] = m
		s.order = append(s.order, pv)
		return m, nil
	}
}

// Motor returns the simulated motor for pv, or nil.
func (s *Simulation) Motor(pv string) *Simulated {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.motors[pv]
}

// Names returns the channel names in creation order.
func (s *Simulation) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

// TotalMoves returns the number of moves across all motors.
func (s *Simulation) TotalMoves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.motors {
		n += len(m.Moves())
	}
	return n
}
