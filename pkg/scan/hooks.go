// Imprint scan driver
//
// A walker steps through the mesh and a step controller performs the
// per-step auxiliary actions.
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package scan

import (
	"context"

	"imprint-scan/pkg/mesh"
)

// Step is one grid cell visited by the walker.
type Step struct {
	// Index is the row-major flat index of the cell.
	Index int
	// Coord is the grid coordinate of the cell.
	Coord []int
	// Positions holds the commanded position of every axis.
	Positions []mesh.Position
}

// Hooks receives the lifecycle callbacks of a walk, in the order
// PreScan, then PreStep and PostStep for every cell, then PostScan.
type Hooks interface {
	PreScan(ctx context.Context)
	PreStep(ctx context.Context, step Step)
	PostStep(ctx context.Context, step Step)
	PostScan(ctx context.Context)
}

// Hook call slots returned by HookCalls.
const (
	CallPreScan = iota
	CallPostScan
	CallPreStep
	CallPostStep
)

// HookCalls counts lifecycle callbacks by slot.
type HookCalls [4]int
