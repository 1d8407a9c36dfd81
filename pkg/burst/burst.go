// Burst control for the linac shot source
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package burst

import (
	"context"
	"fmt"
	"math"
	"sync"

	"imprint-scan/pkg/channel"
	hosterrors "imprint-scan/pkg/errors"
)

// MaxShots is the largest shot count a single burst may request.
const MaxShots = math.MaxInt32

// Controller requests bursts of shots and waits for them to be fired.
type Controller interface {
	RequestBurst(ctx context.Context, n int) error
	WaitForCompletion(ctx context.Context) error
}

// PVConfig names the channels of a burst controller.
type PVConfig struct {
	// CountPV receives the number of shots in the next burst.
	CountPV string
	// TriggerPV starts a burst when set to 1 and reads 0 once it is done.
	TriggerPV string
	// StatePV, when set, reads 0 while idle and replaces the trigger
	// readback as the completion signal.
	StatePV string
}

// PVController drives a burst source through a setpoint channel.
type PVController struct {
	client channel.Client
	cfg    PVConfig
}

// NewPVController creates a controller for the channels in cfg.
func NewPVController(client channel.Client, cfg PVConfig) (*PVController, error) {
	if cfg.CountPV == "" || cfg.TriggerPV == "" {
		return nil, fmt.Errorf("burst: count and trigger channels are required")
	}
	return &PVController{client: client, cfg: cfg}, nil
}

// RequestBurst writes the shot count and fires the trigger.
func (c *PVController) RequestBurst(ctx context.Context, n int) error {
	if n < 0 || n > MaxShots {
		return hosterrors.RuntimeError(fmt.Sprintf("burst: shot count %d out of range", n))
	}
	if err := c.client.Put(ctx, c.cfg.CountPV, float64(n)); err != nil {
		return err
	}
	return c.client.Put(ctx, c.cfg.TriggerPV, 1)
}

// WaitForCompletion blocks until the source reports idle.
func (c *PVController) WaitForCompletion(ctx context.Context) error {
	done := c.cfg.TriggerPV
	if c.cfg.StatePV != "" {
		done = c.cfg.StatePV
	}
	return c.client.WaitForValue(ctx, done, 0)
}

// Simulated records requested bursts and completes them at once.
type Simulated struct {
	mu       sync.Mutex
	requests []int
	waits    int
	fail     error
}

// NewSimulated creates a simulated controller.
func NewSimulated() *Simulated {
	return &Simulated{}
}

// Fail makes every later request return err. A nil err clears it.
func (s *Simulated) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}

func (s *Simulated) RequestBurst(ctx context.Context, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.requests = append(s.requests, n)
	return nil
}

func (s *Simulated) WaitForCompletion(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waits++
	return ctx.Err()
}

// Requests returns the requested shot counts, in order.
func (s *Simulated) Requests() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.requests...)
}

// Shots returns the total number of shots requested.
func (s *Simulated) Shots() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.requests {
		total += n
	}
	return total
}
