// Simulated hardware behaviour for the in-process store
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package channel

import "time"

// after runs fn after d, or immediately when d is not positive.
func after(d time.Duration, fn func()) {
	if d <= 0 {
		fn()
		return
	}
	time.AfterFunc(d, fn)
}

// SimulateMotor makes pv behave like a motor record: a put clears
// pv.DMOV, and after settle pv.RBV takes the commanded value and pv.DMOV
// returns to 1.
func SimulateMotor(m *Memory, pv string, desc string, settle time.Duration) {
	m.Set(pv, 0)
	m.Set(pv+".RBV", 0)
	m.Set(pv+".DMOV", 1)
	if desc != "" {
		m.SetDescription(pv+".DESC", desc)
	}
	m.OnPut(pv, func(v float64) {
		m.Set(pv+".DMOV", 0)
		after(settle, func() {
			m.Set(pv+".RBV", v)
			m.Set(pv+".DMOV", 1)
		})
	})
}

// SimulateReadback copies every value put to setpoint into readback
// after settle.
func SimulateReadback(m *Memory, setpoint, readback string, settle time.Duration) {
	m.Set(setpoint, 0)
	m.Set(readback, 0)
	m.OnPut(setpoint, func(v float64) {
		after(settle, func() { m.Set(readback, v) })
	})
}

// SimulateBurst makes a trigger channel fire bursts: a non-zero put to
// trigger is acknowledged after settle by resetting it to 0, and the
// count in countPV is added to countPV.DONE.
func SimulateBurst(m *Memory, countPV, triggerPV string, settle time.Duration) {
	m.Set(countPV, 0)
	m.Set(countPV+".DONE", 0)
	m.Set(triggerPV, 0)
	m.OnPut(triggerPV, func(v float64) {
		if v == 0 {
			return
		}
		after(settle, func() {
			m.mu.Lock()
			n := m.values[countPV]
			m.values[countPV+".DONE"] += n
			m.mu.Unlock()
			m.Set(triggerPV, 0)
		})
	})
}
