package scan

import (
	"context"

	hosterrors "imprint-scan/pkg/errors"
	"imprint-scan/pkg/mesh"
	"imprint-scan/pkg/metrics"
	"imprint-scan/pkg/motor"
)

// Walker steps through a built mesh in row-major order, moving every axis
// to the commanded position of each cell before calling PostStep.
type Walker struct {
	// Seqs is borrowed and must not be modified during a walk.
	Seqs *mesh.Sequences
	Axes []motor.Axis
	// DryRun visits every cell without moving any axis.
	DryRun bool
	// Metrics counts failed moves per axis when set.
	Metrics *metrics.ScanMetrics
}

// Walk runs the full lifecycle against hooks. Cancelling ctx stops the
// walk between steps; PostScan is not called in that case.
func (w *Walker) Walk(ctx context.Context, hooks Hooks) error {
	if !w.DryRun && len(w.Axes) != len(w.Seqs.Axes) {
		return hosterrors.ShapeMismatchError("Motors", "axis sequences", len(w.Axes), len(w.Seqs.Axes))
	}

	hooks.PreScan(ctx)
	n := w.Seqs.Size()
	for f := 0; f < n; f++ {
		if err := ctx.Err(); err != nil {
			return hosterrors.Wrap(err, hosterrors.ErrRuntime, "scan stopped")
		}
		step := Step{Index: f, Coord: w.Seqs.Coord(f), Positions: w.Seqs.At(f)}
		hooks.PreStep(ctx, step)
		if !w.DryRun {
			if err := w.move(ctx, step); err != nil {
				return err
			}
		}
		hooks.PostStep(ctx, step)
	}
	hooks.PostScan(ctx)
	return nil
}

// move commands every axis, then waits for all of them.
func (w *Walker) move(ctx context.Context, step Step) error {
	for i, axis := range w.Axes {
		if err := axis.MoveTo(ctx, step.Positions[i]); err != nil {
			return w.failed(axis, err)
		}
	}
	for _, axis := range w.Axes {
		if err := axis.Wait(ctx); err != nil {
			return w.failed(axis, err)
		}
	}
	return nil
}

func (w *Walker) failed(axis motor.Axis, err error) error {
	if w.Metrics != nil {
		w.Metrics.MotorFailures.Inc(metrics.Labels{"axis": axis.Name()})
	}
	return err
}
