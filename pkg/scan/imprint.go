package scan

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"imprint-scan/pkg/burst"
	"imprint-scan/pkg/channel"
	"imprint-scan/pkg/config"
	hosterrors "imprint-scan/pkg/errors"
	"imprint-scan/pkg/log"
	"imprint-scan/pkg/mesh"
	"imprint-scan/pkg/metrics"
	"imprint-scan/pkg/motor"
)

// DefaultPath is the configuration used when Options.Path is empty.
const DefaultPath = "imprintConfigurations/imprintStandard.cfg"

// Hardware holds the hardware a scan talks to. Every field may be nil;
// a scan that needs a missing piece records a failed status for it.
type Hardware struct {
	// Motors creates the motor behind each configured channel name.
	Motors motor.Factory
	// Channel drives the attenuator and, when Burst is nil, the linac
	// burst channels.
	Channel channel.Client
	// Burst overrides the channel-based burst controller.
	Burst burst.Controller
}

// Options configures an Imprint.
type Options struct {
	// Path is the INI or YAML configuration file.
	Path string
	// Config, when set, is used instead of loading Path.
	Config   *config.Config
	Hardware Hardware

	// Verbose forces the per-step status line on.
	Verbose bool
	// WaitTimeout overrides the configured wait timeout when positive.
	WaitTimeout time.Duration

	Logger  *log.Logger
	Metrics *metrics.ScanMetrics
	// Status receives status lines. Defaults to io.Discard.
	Status io.Writer
}

// Imprint is a configured imprint scan. It is built by New; there is no
// package-level instance.
type Imprint struct {
	mu     sync.Mutex
	opts   Options
	logger *log.Logger

	path   string
	cfg    *config.ScanConfig
	seqs   *mesh.Sequences
	axes   []motor.Axis
	bursts burst.Controller

	runID     string
	calls     HookCalls
	positions [][]mesh.Position
	records   []StepRecord
}

// New loads, validates and builds a scan. Every configuration and shape
// error is reported here, before any motor is created.
func New(ctx context.Context, opts Options) (*Imprint, error) {
	if opts.Logger == nil {
		opts.Logger = log.GetLogger("imprint")
	}
	if opts.Status == nil {
		opts.Status = io.Discard
	}
	if opts.Path == "" && opts.Config == nil {
		opts.Path = DefaultPath
	}
	im := &Imprint{opts: opts, logger: opts.Logger}

	c := opts.Config
	if c == nil {
		var err error
		if c, err = config.Load(opts.Path); err != nil {
			return nil, im.preflight(err)
		}
	}
	if err := im.configure(ctx, c); err != nil {
		return nil, err
	}
	return im, nil
}

// Reconfigure loads path and rebuilds every sequence and binding. The
// current configuration is kept when the new one fails.
func (im *Imprint) Reconfigure(ctx context.Context, path string) error {
	c, err := config.Load(path)
	if err != nil {
		return im.preflight(err)
	}
	return im.configure(ctx, c)
}

func (im *Imprint) configure(ctx context.Context, c *config.Config) error {
	sc, err := config.DecodeScan(c)
	if err != nil {
		return im.preflight(err)
	}
	seqs, err := mesh.Build(sc.Plan)
	if err != nil {
		return im.preflight(err)
	}

	var axes []motor.Axis
	if sc.UseMotors && im.opts.Hardware.Motors != nil {
		if axes, err = motor.BindAxes(ctx, im.opts.Hardware.Motors, sc.Plan.Axes); err != nil {
			return err
		}
	}
	bursts := im.opts.Hardware.Burst
	if bursts == nil && im.opts.Hardware.Channel != nil && sc.Plan.Burst.Enabled {
		bursts, err = burst.NewPVController(im.opts.Hardware.Channel, burst.PVConfig{
			CountPV:   sc.Linac.CountPV,
			TriggerPV: sc.Linac.TriggerPV,
			StatePV:   sc.Linac.StatePV,
		})
		if err != nil {
			return im.preflight(hosterrors.ConfigFormatError(config.SectionLinac, "count_pv", sc.Linac.CountPV, err))
		}
	}

	im.mu.Lock()
	defer im.mu.Unlock()
	im.path = c.Path()
	im.cfg = sc
	im.seqs = seqs
	im.axes = axes
	im.bursts = bursts
	im.logger.WithFields(log.Fields{
		"path":  im.path,
		"steps": fmt.Sprint(seqs.Steps),
		"cells": seqs.Size(),
		"axes":  len(seqs.Axes),
	}).Info("scan configured")
	return nil
}

func (im *Imprint) preflight(err error) error {
	if m := im.opts.Metrics; m != nil {
		code := "unknown"
		if he, ok := hosterrors.As(err); ok {
			code = string(he.Code)
		}
		m.PreflightFails.Inc(metrics.Labels{"code": code})
	}
	return err
}

// Run walks the mesh, moving the motors and driving the auxiliary actions
// at every cell.
func (im *Imprint) Run(ctx context.Context) error {
	im.mu.Lock()
	defer im.mu.Unlock()

	useMotors := im.cfg.UseMotors
	if useMotors && im.axes == nil {
		return hosterrors.RuntimeError("no motor factory configured")
	}
	return im.walk(ctx, "run", &Walker{Seqs: im.seqs, Axes: im.axes, DryRun: !useMotors, Metrics: im.opts.Metrics})
}

// Test walks the mesh without moving anything and writes every commanded
// position to the status writer.
func (im *Imprint) Test(ctx context.Context) ([]Step, error) {
	im.mu.Lock()
	defer im.mu.Unlock()

	p := &gridPrinter{w: im.opts.Status, names: im.seqs.Names}
	err := (&Walker{Seqs: im.seqs, DryRun: true}).Walk(ctx, p)
	if m := im.opts.Metrics; m != nil {
		m.StepsTotal.Add(metrics.Labels{"mode": "test"}, uint64(len(p.steps)))
	}
	return p.steps, err
}

func (im *Imprint) walk(ctx context.Context, mode string, w *Walker) error {
	im.runID = uuid.NewString()
	timeout := im.cfg.WaitTimeout
	if im.opts.WaitTimeout > 0 {
		timeout = im.opts.WaitTimeout
	}
	ctrl := NewController(ControllerConfig{
		RunID:       im.runID,
		UseMotors:   im.cfg.UseMotors,
		Verbose:     im.cfg.Verbose || im.opts.Verbose,
		WaitTimeout: timeout,
		Attenuator:  im.seqs.Attenuator,
		Burst:       im.seqs.Burst,
		Channel:     im.opts.Hardware.Channel,
		SetpointPV:  im.cfg.Attenuator.SetpointPV,
		ReadbackPV:  im.cfg.Attenuator.ReadbackPV,
		Bursts:      im.bursts,
		Axes:        im.axes,
		Status:      im.opts.Status,
		Logger:      im.logger.WithPrefix("scan"),
		Metrics:     im.opts.Metrics,
	})

	start := time.Now()
	logger := im.logger.WithFields(log.Fields{"run": im.runID, "mode": mode})
	logger.Infof("starting scan over %d cells", im.seqs.Size())
	if m := im.opts.Metrics; m != nil {
		m.RunStarted(im.seqs.Size(), start)
		defer m.RunFinished()
	}

	err := w.Walk(ctx, &timedHooks{Hooks: ctrl, metrics: im.opts.Metrics})
	im.calls = ctrl.HookCalls()
	im.positions = ctrl.Positions()
	im.records = ctrl.Records()
	if m := im.opts.Metrics; m != nil {
		m.StepsTotal.Add(metrics.Labels{"mode": mode}, uint64(len(im.records)))
	}
	if err != nil {
		logger.WithError(err).Error("scan aborted")
		return err
	}
	logger.WithField("elapsed", time.Since(start).Round(time.Millisecond).String()).Info("scan finished")
	return nil
}

// timedHooks observes the wall time of every step.
type timedHooks struct {
	Hooks
	metrics *metrics.ScanMetrics
	start   time.Time
}

func (t *timedHooks) PreStep(ctx context.Context, step Step) {
	t.start = time.Now()
	t.Hooks.PreStep(ctx, step)
}

func (t *timedHooks) PostStep(ctx context.Context, step Step) {
	t.Hooks.PostStep(ctx, step)
	if t.metrics != nil {
		t.metrics.StepSeconds.Since(nil, t.start)
	}
}

// gridPrinter is the Hooks of a test walk.
type gridPrinter struct {
	w     io.Writer
	names []string
	steps []Step
}

func (p *gridPrinter) PreScan(ctx context.Context)            {}
func (p *gridPrinter) PostScan(ctx context.Context)           {}
func (p *gridPrinter) PreStep(ctx context.Context, step Step) {}
func (p *gridPrinter) PostStep(ctx context.Context, step Step) {
	p.steps = append(p.steps, step)
	fmt.Fprintf(p.w, "step %d %v:", step.Index, step.Coord)
	for i, pos := range step.Positions {
		fmt.Fprintf(p.w, " %s=%s", p.names[i], pos)
	}
	fmt.Fprintln(p.w)
}

// Path returns the loaded configuration path.
func (im *Imprint) Path() string {
	im.mu.Lock()
	defer im.mu.Unlock()
	return im.path
}

// Config returns the decoded configuration.
func (im *Imprint) Config() *config.ScanConfig {
	im.mu.Lock()
	defer im.mu.Unlock()
	return im.cfg
}

// Sequences returns the built mesh.
func (im *Imprint) Sequences() *mesh.Sequences {
	im.mu.Lock()
	defer im.mu.Unlock()
	return im.seqs
}

// Axes returns the bound axes, or nil when no motors are bound.
func (im *Imprint) Axes() []motor.Axis {
	im.mu.Lock()
	defer im.mu.Unlock()
	return im.axes
}

// RunID returns the id of the last run.
func (im *Imprint) RunID() string {
	im.mu.Lock()
	defer im.mu.Unlock()
	return im.runID
}

// Records returns the step log of the last run.
func (im *Imprint) Records() []StepRecord {
	im.mu.Lock()
	defer im.mu.Unlock()
	return im.records
}

// HookCalls returns the callback counts of the last run.
func (im *Imprint) HookCalls() HookCalls {
	im.mu.Lock()
	defer im.mu.Unlock()
	return im.calls
}

// Positions returns the position log of the last run.
func (im *Imprint) Positions() [][]mesh.Position {
	im.mu.Lock()
	defer im.mu.Unlock()
	return im.positions
}
