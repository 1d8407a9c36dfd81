// Simulated hardware layout for a scan configuration
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package gateway

import (
	"fmt"
	"time"

	"imprint-scan/pkg/channel"
	"imprint-scan/pkg/config"
)

// Layout lists the channels a simulated beamline provides.
type Layout struct {
	Motors     []string
	Setpoint   string
	Readback   string
	BurstCount string
	Trigger    string
	// Settle delays every simulated readback.
	Settle time.Duration
}

// LayoutFromScan returns the channels a scan configuration will use.
func LayoutFromScan(sc *config.ScanConfig, settle time.Duration) Layout {
	l := Layout{
		Setpoint:   sc.Attenuator.SetpointPV,
		Readback:   sc.Attenuator.ReadbackPV,
		BurstCount: sc.Linac.CountPV,
		Trigger:    sc.Linac.TriggerPV,
		Settle:     settle,
	}
	for _, axis := range sc.Plan.Axes {
		l.Motors = append(l.Motors, axis.Channels...)
	}
	return l
}

// Install registers the layout's simulated channels in store.
func (l Layout) Install(store *channel.Memory) {
	for i, pv := range l.Motors {
		channel.SimulateMotor(store, pv, fmt.Sprintf("sim motor %d", i+1), l.Settle)
	}
	if l.Setpoint != "" && l.Readback != "" {
		channel.SimulateReadback(store, l.Setpoint, l.Readback, l.Settle)
	}
	if l.BurstCount != "" && l.Trigger != "" {
		channel.SimulateBurst(store, l.BurstCount, l.Trigger, l.Settle)
	}
}
