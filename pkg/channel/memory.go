// In-process channel store
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package channel

import (
	"context"
	"sort"
	"sync"

	hosterrors "imprint-scan/pkg/errors"
)

// Memory is an in-process channel store. Put hooks let it stand in for
// hardware that reacts to writes.
type Memory struct {
	mu        sync.Mutex
	values    map[string]float64
	descs     map[string]string
	hooks     map[string][]func(value float64)
	puts      map[string][]float64
	changed   chan struct{}
	tolerance float64
}

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{
		values:    make(map[string]float64),
		descs:     make(map[string]string),
		hooks:     make(map[string][]func(float64)),
		puts:      make(map[string][]float64),
		changed:   make(chan struct{}),
		tolerance: DefaultTolerance,
	}
}

// SetTolerance sets the match tolerance used by WaitForValue.
func (m *Memory) SetTolerance(tol float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tolerance = tol
}

// Set stores a value without running put hooks.
func (m *Memory) Set(name string, value float64) {
	m.mu.Lock()
	m.values[name] = value
	m.notifyLocked()
	m.mu.Unlock()
}

func (m *Memory) notifyLocked() {
	close(m.changed)
	m.changed = make(chan struct{})
}

// SetDescription sets the description returned by Describe.
func (m *Memory) SetDescription(name, desc string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.descs[name] = desc
}

// OnPut registers fn to run after every Put to name.
func (m *Memory) OnPut(name string, fn func(value float64)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks[name] = append(m.hooks[name], fn)
}

// Get implements Client.
func (m *Memory) Get(ctx context.Context, name string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, hosterrors.ChannelError("get", name, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[name]
	if !ok {
		return 0, hosterrors.ChannelError("get", name, ErrNotFound)
	}
	return v, nil
}

// Put implements Client. Hooks run synchronously after the value is
// stored.
func (m *Memory) Put(ctx context.Context, name string, value float64) error {
	if err := ctx.Err(); err != nil {
		return hosterrors.ChannelError("put", name, err)
	}
	m.mu.Lock()
	m.values[name] = value
	m.puts[name] = append(m.puts[name], value)
	hooks := append([]func(float64){}, m.hooks[name]...)
	m.notifyLocked()
	m.mu.Unlock()

	for _, fn := range hooks {
		fn(value)
	}
	return nil
}

// WaitForValue implements Client. It wakes on every change to the store.
func (m *Memory) WaitForValue(ctx context.Context, name string, target float64) error {
	for {
		m.mu.Lock()
		v, ok := m.values[name]
		tol := m.tolerance
		changed := m.changed
		m.mu.Unlock()

		if ok && Matches(v, target, tol) {
			return nil
		}
		select {
		case <-ctx.Done():
			return hosterrors.WaitError(name, ctx.Err())
		case <-changed:
		}
	}
}

// Describe implements Describer.
func (m *Memory) Describe(ctx context.Context, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.descs[name]
	if !ok {
		return "", hosterrors.ChannelError("describe", name, ErrNotFound)
	}
	return d, nil
}

// Puts returns every value written to name with Put, in order.
func (m *Memory) Puts(name string) []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]float64(nil), m.puts[name]...)
}

// Names returns all known channel names, sorted.
func (m *Memory) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.values))
	for name := range m.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
