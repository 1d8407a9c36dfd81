// Setpoint and readback channel access
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package channel provides access to named setpoint and readback process
// variables (PVs).
package channel

import (
	"context"
	stderrors "errors"
	"math"
	"time"

	hosterrors "imprint-scan/pkg/errors"
)

// ErrNotFound is returned for a channel the backend does not know.
var ErrNotFound = stderrors.New("channel not found")

// DefaultTolerance is the absolute difference under which a readback is
// considered to have reached its target.
const DefaultTolerance = 1e-6

// DefaultPollInterval is how often polling waits re-read a channel.
const DefaultPollInterval = 50 * time.Millisecond

// Client reads and writes named channels. WaitForValue blocks until the
// channel reports target or ctx is done.
type Client interface {
	Get(ctx context.Context, name string) (float64, error)
	Put(ctx context.Context, name string, value float64) error
	WaitForValue(ctx context.Context, name string, target float64) error
}

// Describer is implemented by clients that can return the description
// string of a channel (its DESC field).
type Describer interface {
	Describe(ctx context.Context, name string) (string, error)
}

// Matches reports whether v is within tol of target.
func Matches(v, target, tol float64) bool {
	return math.Abs(v-target) <= tol
}

// Poll re-reads name through get every interval until the value matches
// target. A read error other than ErrNotFound ends the wait.
func Poll(ctx context.Context, get func(context.Context, string) (float64, error),
	name string, target, tol float64, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		v, err := get(ctx, name)
		switch {
		case err == nil && Matches(v, target, tol):
			return nil
		case err != nil && !stderrors.Is(err, ErrNotFound):
			return hosterrors.WaitError(name, err)
		}
		select {
		case <-ctx.Done():
			return hosterrors.WaitError(name, ctx.Err())
		case <-ticker.C:
		}
	}
}
