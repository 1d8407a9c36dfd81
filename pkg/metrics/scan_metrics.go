// Imprint scan metrics
//
// Copyright (C) 2026 Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ScanMetrics holds the metrics of a scan process.
type ScanMetrics struct {
	StepsTotal     *Counter
	AuxOutcomes    *Counter
	MotorFailures  *Counter
	PreflightFails *Counter
	WaitSeconds    *Histogram
	StepSeconds    *Histogram
	MeshCells      *Gauge
	StepIndex      *Gauge
	ScanRunning    *Gauge
	LastRunStart   *Gauge

	registry *Registry
}

// NewScanMetrics creates and registers the scan metrics.
func NewScanMetrics() *ScanMetrics {
	sm := &ScanMetrics{
		StepsTotal: NewCounter("imprint_steps_total",
			"Mesh cells completed, by scan mode"),
		AuxOutcomes: NewCounter("imprint_aux_outcomes_total",
			"Auxiliary action outcomes per step, by channel and outcome"),
		MotorFailures: NewCounter("imprint_motor_failures_total",
			"Failed axis moves, by axis"),
		PreflightFails: NewCounter("imprint_preflight_failures_total",
			"Scans rejected before any motion, by error code"),
		WaitSeconds: NewHistogram("imprint_wait_seconds",
			"Time spent waiting for hardware confirmation", DefaultBuckets()),
		StepSeconds: NewHistogram("imprint_step_seconds",
			"Wall time of one mesh cell", DefaultBuckets()),
		MeshCells: NewGauge("imprint_mesh_cells",
			"Number of cells in the configured mesh"),
		StepIndex: NewGauge("imprint_step_index",
			"Flat index of the last completed cell"),
		ScanRunning: NewGauge("imprint_scan_running",
			"1 while a scan is in progress"),
		LastRunStart: NewGauge("imprint_last_run_start_seconds",
			"Unix time the last scan started"),
		registry: NewRegistry(),
	}
	for _, m := range []Metric{
		sm.StepsTotal, sm.AuxOutcomes, sm.MotorFailures, sm.PreflightFails,
		sm.WaitSeconds, sm.StepSeconds, sm.MeshCells, sm.StepIndex,
		sm.ScanRunning, sm.LastRunStart,
	} {
		sm.registry.MustRegister(m)
	}
	return sm
}

// Registry returns the underlying registry.
func (sm *ScanMetrics) Registry() *Registry { return sm.registry }

// Gather renders all scan metrics.
func (sm *ScanMetrics) Gather() string { return sm.registry.Gather() }

// RunStarted marks the start of a scan over cells mesh cells.
func (sm *ScanMetrics) RunStarted(cells int, at time.Time) {
	sm.MeshCells.Set(nil, float64(cells))
	sm.ScanRunning.Set(nil, 1)
	sm.LastRunStart.Set(nil, float64(at.Unix()))
}

// RunFinished marks the end of a scan.
func (sm *ScanMetrics) RunFinished() {
	sm.ScanRunning.Set(nil, 0)
}

// RecordAux counts one auxiliary outcome.
func (sm *ScanMetrics) RecordAux(channel, outcome string) {
	sm.AuxOutcomes.Inc(Labels{"channel": channel, "outcome": outcome})
}

// WriteTextfile writes the metrics atomically to path, for collection by
// a node exporter textfile collector.
func (sm *ScanMetrics) WriteTextfile(path string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	if _, err := tmp.WriteString(sm.Gather()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("metrics: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("metrics: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("metrics: %w", err)
	}
	return nil
}
