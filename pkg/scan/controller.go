package scan

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"imprint-scan/pkg/burst"
	"imprint-scan/pkg/channel"
	hosterrors "imprint-scan/pkg/errors"
	"imprint-scan/pkg/log"
	"imprint-scan/pkg/mesh"
	"imprint-scan/pkg/metrics"
	"imprint-scan/pkg/motor"
)

// StepRecord is the log entry of one PostStep call.
type StepRecord struct {
	RunID      string          `json:"run_id" yaml:"run_id"`
	Index      int             `json:"index" yaml:"index"`
	Coord      []int           `json:"coord" yaml:"coord"`
	Time       time.Time       `json:"time" yaml:"time"`
	Commanded  []mesh.Position `json:"commanded" yaml:"commanded"`
	Observed   [][]float64     `json:"observed,omitempty" yaml:"observed,omitempty"`
	Attenuator AuxStatus       `json:"attenuator" yaml:"attenuator"`
	Burst      AuxStatus       `json:"burst" yaml:"burst"`
}

// ControllerConfig configures a step controller.
type ControllerConfig struct {
	RunID     string
	UseMotors bool
	Verbose   bool

	// WaitTimeout bounds every blocking hardware wait. Zero waits forever.
	WaitTimeout time.Duration

	Attenuator mesh.AuxSequence
	Burst      mesh.AuxSequence

	// Channel and the two PV names drive the attenuator.
	Channel    channel.Client
	SetpointPV string
	ReadbackPV string

	Bursts burst.Controller

	// Axes are read for observed positions and the verbose status line.
	Axes []motor.Axis

	Status  io.Writer
	Logger  *log.Logger
	Metrics *metrics.ScanMetrics
	Now     func() time.Time
}

// Controller implements Hooks. PostStep is the only callback with side
// effects: it logs the step, drives the attenuator and the burst source,
// and never returns a failure to the walker.
type Controller struct {
	cfg    ControllerConfig
	logger *log.Logger

	attenuator *mesh.Cursor
	burst      *mesh.Cursor

	calls     HookCalls
	positions [][]mesh.Position
	records   []StepRecord
}

// NewController creates a controller with fresh cursors over the
// auxiliary sequences.
func NewController(cfg ControllerConfig) *Controller {
	if cfg.Logger == nil {
		cfg.Logger = log.GetLogger("scan")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Status == nil {
		cfg.Status = io.Discard
	}
	return &Controller{
		cfg:        cfg,
		logger:     cfg.Logger,
		attenuator: cfg.Attenuator.Cursor(),
		burst:      cfg.Burst.Cursor(),
	}
}

func (c *Controller) PreScan(ctx context.Context) { c.calls[CallPreScan]++ }

func (c *Controller) PostScan(ctx context.Context) { c.calls[CallPostScan]++ }

func (c *Controller) PreStep(ctx context.Context, step Step) { c.calls[CallPreStep]++ }

// PostStep records the step and performs its auxiliary actions.
func (c *Controller) PostStep(ctx context.Context, step Step) {
	c.calls[CallPostStep]++
	c.positions = append(c.positions, step.Positions)

	rec := StepRecord{
		RunID:     c.cfg.RunID,
		Index:     step.Index,
		Coord:     step.Coord,
		Time:      c.cfg.Now(),
		Commanded: step.Positions,
	}
	if c.cfg.UseMotors {
		rec.Attenuator = c.driveAttenuator(ctx)
		rec.Burst = c.driveBurst(ctx)
		rec.Observed = c.observe(ctx)
	} else {
		rec.Attenuator = motorsOff()
		rec.Burst = motorsOff()
	}
	c.records = append(c.records, rec)

	if m := c.cfg.Metrics; m != nil {
		m.RecordAux("attenuator", rec.Attenuator.Outcome.String())
		m.RecordAux("burst", rec.Burst.Outcome.String())
		m.StepIndex.Set(nil, float64(step.Index))
	}
	entry := c.logger.WithFields(log.Fields{
		"step":       step.Index,
		"attenuator": rec.Attenuator.Text,
		"burst":      rec.Burst.Text,
	})
	if rec.Attenuator.Outcome == Failed || rec.Burst.Outcome == Failed {
		entry.Warn("step completed with failures")
	} else {
		entry.Debug("step completed")
	}
	if c.cfg.Verbose {
		fmt.Fprintln(c.cfg.Status, c.statusLine(rec))
	}
}

func (c *Controller) driveAttenuator(ctx context.Context) AuxStatus {
	if !c.cfg.Attenuator.Enabled() {
		return disabled("not using gas attenuator")
	}
	return c.drive(ctx, "attenuator", c.attenuator, func(ctx context.Context, v float64) (string, error) {
		if c.cfg.Channel == nil {
			return "", hosterrors.RuntimeError("no setpoint channel")
		}
		if err := c.cfg.Channel.Put(ctx, c.cfg.SetpointPV, v); err != nil {
			return "", err
		}
		if err := c.cfg.Channel.WaitForValue(ctx, c.cfg.ReadbackPV, v); err != nil {
			return "", err
		}
		rbv, err := c.cfg.Channel.Get(ctx, c.cfg.ReadbackPV)
		if err != nil {
			return "", err
		}
		return "reached " + formatValue(rbv), nil
	})
}

func (c *Controller) driveBurst(ctx context.Context) AuxStatus {
	if !c.cfg.Burst.Enabled() {
		return disabled("not in burst mode")
	}
	return c.drive(ctx, "burst", c.burst, func(ctx context.Context, v float64) (string, error) {
		if c.cfg.Bursts == nil {
			return "", hosterrors.RuntimeError("no burst controller")
		}
		n := int(v)
		if err := c.cfg.Bursts.RequestBurst(ctx, n); err != nil {
			return "", err
		}
		if err := c.cfg.Bursts.WaitForCompletion(ctx); err != nil {
			return "", err
		}
		return fmt.Sprintf("requested %d shots", n), nil
	})
}

// drive draws the next value from cur and runs act on it under the wait
// timeout. Exhaustion and unusable values are reported as Invalid, NaN as
// Skipped, and every error or panic from act as Failed.
func (c *Controller) drive(ctx context.Context, name string, cur *mesh.Cursor,
	act func(context.Context, float64) (string, error)) (status AuxStatus) {
	v, draw := cur.Next()
	switch draw {
	case mesh.Exhausted:
		return invalid(math.NaN())
	case mesh.Skipped:
		return skipped(v)
	}
	if name == "burst" && (v < 0 || v > burst.MaxShots || v != math.Trunc(v)) {
		return invalid(v)
	}

	defer func() {
		if r := recover(); r != nil {
			status = failed(v, hosterrors.FromPanic(r))
		}
	}()

	wctx, cancel := c.waitContext(ctx)
	defer cancel()
	start := time.Now()
	text, err := act(wctx, v)
	if m := c.cfg.Metrics; m != nil {
		m.WaitSeconds.Since(metrics.Labels{"channel": name}, start)
	}
	if err != nil {
		c.logger.WithField("channel", name).WithError(err).Warn("auxiliary action failed")
		return failed(v, err)
	}
	return reached(v, text)
}

func (c *Controller) waitContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.WaitTimeout > 0 {
		return context.WithTimeout(ctx, c.cfg.WaitTimeout)
	}
	return context.WithCancel(ctx)
}

// observe reads back every axis. Unreadable axes are left nil.
func (c *Controller) observe(ctx context.Context) [][]float64 {
	if len(c.cfg.Axes) == 0 {
		return nil
	}
	out := make([][]float64, len(c.cfg.Axes))
	for i, axis := range c.cfg.Axes {
		if pos, err := axis.Positions(ctx); err == nil {
			out[i] = pos
		}
	}
	return out
}

func (c *Controller) statusLine(rec StepRecord) string {
	var sb strings.Builder
	sb.WriteString("Motor Positions:")
	for i, pos := range rec.Commanded {
		name := fmt.Sprintf("axis%d", i)
		if i < len(c.cfg.Axes) {
			name = c.cfg.Axes[i].Name()
		}
		shown := pos.String()
		if i < len(rec.Observed) && rec.Observed[i] != nil {
			shown = mesh.Position(rec.Observed[i]).String()
		}
		fmt.Fprintf(&sb, " %s: %s", name, shown)
	}
	fmt.Fprintf(&sb, " | Gas Attenuator: %s | Linac: %s", rec.Attenuator.Text, rec.Burst.Text)
	return sb.String()
}

// HookCalls returns how many times each callback ran.
func (c *Controller) HookCalls() HookCalls { return c.calls }

// Positions returns the position log, one entry per PostStep.
func (c *Controller) Positions() [][]mesh.Position {
	return append([][]mesh.Position(nil), c.positions...)
}

// Records returns the step log.
func (c *Controller) Records() []StepRecord {
	return append([]StepRecord(nil), c.records...)
}
