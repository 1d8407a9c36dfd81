package motor

import (
	"context"
	"sync"

	hosterrors "imprint-scan/pkg/errors"
)

// Simulated is an in-memory motor that reaches every target instantly.
// It records the commanded targets.
type Simulated struct {
	mu     sync.Mutex
	name   string
	pos    float64
	moves  []float64
	waits  int
	failOn func(target float64) error
}

// NewSimulated creates a simulated motor at position 0.
func NewSimulated(name string) *Simulated {
	return &Simulated{name: name}
}

// FailWhen makes Move return the error fn reports for a target.
func (s *Simulated) FailWhen(fn func(target float64) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOn = fn
}

func (s *Simulated) Name() string { return s.name }

func (s *Simulated) Move(ctx context.Context, target float64) error {
	if err := ctx.Err(); err != nil {
		return hosterrors.MotorError("move", s.name, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn != nil {
		if err := s.failOn(target); err != nil {
			return hosterrors.MotorError("move", s.name, err)
		}
	}
	s.pos = target
	s.moves = append(s.moves, target)
	return nil
}

func (s *Simulated) Position(ctx context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos, nil
}

func (s *Simulated) Wait(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waits++
	return nil
}

// Moves returns every commanded target, in order.
func (s *Simulated) Moves() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]float64(nil), s.moves...)
}

// Waits returns how many times Wait was called.
func (s *Simulated) Waits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waits
}
