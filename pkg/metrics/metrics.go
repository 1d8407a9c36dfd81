// Metrics collection for imprint scans
//
// Prometheus-compatible counters, gauges and histograms, rendered in the
// Prometheus text exposition format. Series are written in label order so
// the output is stable between scrapes.
//
// Copyright (C) 2026 Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package metrics

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MetricType represents the type of metric
type MetricType int

const (
	TypeCounter MetricType = iota
	TypeGauge
	TypeHistogram
)

func (t MetricType) String() string {
	switch t {
	case TypeCounter:
		return "counter"
	case TypeGauge:
		return "gauge"
	case TypeHistogram:
		return "histogram"
	default:
		return "untyped"
	}
}

// Labels represents metric labels as key-value pairs
type Labels map[string]string

// Key generates a unique key for a label set
func (l Labels) Key() string {
	keys := l.sortedKeys()
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + l[k]
	}
	return strings.Join(parts, ",")
}

// String returns labels in Prometheus format
func (l Labels) String() string {
	if len(l) == 0 {
		return ""
	}
	keys := l.sortedKeys()
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=\"" + escapeLabel(l[k]) + "\""
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// With returns a copy of l with one more label.
func (l Labels) With(key, value string) Labels {
	out := l.clone()
	out[key] = value
	return out
}

func (l Labels) clone() Labels {
	out := make(Labels, len(l)+1)
	for k, v := range l {
		out[k] = v
	}
	return out
}

func escapeLabel(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	return strings.ReplaceAll(s, "\n", "\\n")
}

func (l Labels) sortedKeys() []string {
	keys := make([]string, 0, len(l))
	for k := range l {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Metric is the interface for all metric types
type Metric interface {
	Name() string
	Help() string
	Type() MetricType
	Write(sb *strings.Builder)
}

// family holds the per-label-set values of one metric.
type family[V any] struct {
	name   string
	help   string
	mu     sync.Mutex
	series map[string]*V
	labels map[string]Labels
}

func newFamily[V any](name, help string) family[V] {
	return family[V]{name: name, help: help, series: make(map[string]*V), labels: make(map[string]Labels)}
}

func (f *family[V]) Name() string { return f.name }
func (f *family[V]) Help() string { return f.help }

// with runs fn on the value for labels, creating it with init if needed.
func (f *family[V]) with(labels Labels, init func() *V, fn func(*V)) {
	key := labels.Key()
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.series[key]
	if !ok {
		v = init()
		f.series[key] = v
		f.labels[key] = labels.clone()
	}
	fn(v)
}

// lookup runs fn on the value for labels if it exists.
func (f *family[V]) lookup(labels Labels, fn func(*V)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.series[labels.Key()]; ok {
		fn(v)
	}
}

// each visits every series in label order.
func (f *family[V]) each(fn func(Labels, *V)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.series))
	for k := range f.series {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fn(f.labels[k], f.series[k])
	}
}

func (f *family[V]) header(sb *strings.Builder, t MetricType) {
	fmt.Fprintf(sb, "# HELP %s %s\n# TYPE %s %s\n", f.name, f.help, f.name, t)
}

// Counter is a monotonically increasing metric
type Counter struct {
	family[uint64]
}

// NewCounter creates a new counter metric
func NewCounter(name, help string) *Counter {
	return &Counter{newFamily[uint64](name, help)}
}

func (c *Counter) Type() MetricType { return TypeCounter }

// Inc increments the counter by 1
func (c *Counter) Inc(labels Labels) { c.Add(labels, 1) }

// Add increments the counter by the given value
func (c *Counter) Add(labels Labels, delta uint64) {
	c.with(labels, func() *uint64 { return new(uint64) }, func(v *uint64) { *v += delta })
}

// Get returns the current counter value for labels
func (c *Counter) Get(labels Labels) uint64 {
	var out uint64
	c.lookup(labels, func(v *uint64) { out = *v })
	return out
}

func (c *Counter) Write(sb *strings.Builder) {
	c.header(sb, TypeCounter)
	c.each(func(l Labels, v *uint64) {
		fmt.Fprintf(sb, "%s%s %d\n", c.name, l, *v)
	})
}

// Gauge is a metric that can go up and down
type Gauge struct {
	family[float64]
}

// NewGauge creates a new gauge metric
func NewGauge(name, help string) *Gauge {
	return &Gauge{newFamily[float64](name, help)}
}

func (g *Gauge) Type() MetricType { return TypeGauge }

// Set sets the gauge to the given value
func (g *Gauge) Set(labels Labels, value float64) {
	g.with(labels, func() *float64 { return new(float64) }, func(v *float64) { *v = value })
}

// Add adds the given value to the gauge
func (g *Gauge) Add(labels Labels, delta float64) {
	g.with(labels, func() *float64 { return new(float64) }, func(v *float64) { *v += delta })
}

// Get returns the current gauge value for labels
func (g *Gauge) Get(labels Labels) float64 {
	var out float64
	g.lookup(labels, func(v *float64) { out = *v })
	return out
}

func (g *Gauge) Write(sb *strings.Builder) {
	g.header(sb, TypeGauge)
	g.each(func(l Labels, v *float64) {
		fmt.Fprintf(sb, "%s%s %s\n", g.name, l, formatFloat(*v))
	})
}

type histogramValue struct {
	count   uint64
	sum     float64
	buckets []uint64
}

// Histogram tracks the distribution of observations
type Histogram struct {
	family[histogramValue]
	bounds []float64
}

// NewHistogram creates a new histogram metric with the given buckets
func NewHistogram(name, help string, buckets []float64) *Histogram {
	bounds := append([]float64(nil), buckets...)
	sort.Float64s(bounds)
	return &Histogram{family: newFamily[histogramValue](name, help), bounds: bounds}
}

// DefaultBuckets returns default histogram buckets for wait durations
func DefaultBuckets() []float64 {
	return []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60}
}

func (h *Histogram) Type() MetricType { return TypeHistogram }

func (h *Histogram) newValue() *histogramValue {
	return &histogramValue{buckets: make([]uint64, len(h.bounds))}
}

// Observe records a value in the histogram
func (h *Histogram) Observe(labels Labels, value float64) {
	h.with(labels, h.newValue, func(v *histogramValue) {
		v.count++
		v.sum += value
		if i := sort.SearchFloat64s(h.bounds, value); i < len(h.bounds) {
			v.buckets[i]++
		}
	})
}

// Since records the time elapsed since start.
func (h *Histogram) Since(labels Labels, start time.Time) {
	h.Observe(labels, time.Since(start).Seconds())
}

// HistogramSnapshot contains a point-in-time snapshot of histogram values
type HistogramSnapshot struct {
	Count uint64
	Sum   float64
	// Buckets holds cumulative counts per upper bound.
	Buckets map[float64]uint64
}

// Snapshot returns the current values for labels
func (h *Histogram) Snapshot(labels Labels) HistogramSnapshot {
	snap := HistogramSnapshot{Buckets: make(map[float64]uint64, len(h.bounds))}
	h.lookup(labels, func(v *histogramValue) {
		snap.Count, snap.Sum = v.count, v.sum
		var cumulative uint64
		for i, b := range h.bounds {
			cumulative += v.buckets[i]
			snap.Buckets[b] = cumulative
		}
	})
	return snap
}

func (h *Histogram) Write(sb *strings.Builder) {
	h.header(sb, TypeHistogram)
	h.each(func(l Labels, v *histogramValue) {
		var cumulative uint64
		for i, b := range h.bounds {
			cumulative += v.buckets[i]
			fmt.Fprintf(sb, "%s_bucket%s %d\n", h.name, l.With("le", formatFloat(b)), cumulative)
		}
		fmt.Fprintf(sb, "%s_bucket%s %d\n", h.name, l.With("le", "+Inf"), v.count)
		fmt.Fprintf(sb, "%s_sum%s %s\n", h.name, l, formatFloat(v.sum))
		fmt.Fprintf(sb, "%s_count%s %d\n", h.name, l, v.count)
	})
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Registry holds metrics in registration order
type Registry struct {
	mu      sync.RWMutex
	metrics map[string]Metric
	order   []string
}

// NewRegistry creates a new metrics registry
func NewRegistry() *Registry {
	return &Registry{metrics: make(map[string]Metric)}
}

// Register adds a metric to the registry
func (r *Registry) Register(metric Metric) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := metric.Name()
	if _, exists := r.metrics[name]; exists {
		return fmt.Errorf("metric %q already registered", name)
	}
	r.metrics[name] = metric
	r.order = append(r.order, name)
	return nil
}

// MustRegister adds a metric and panics on error
func (r *Registry) MustRegister(metric Metric) {
	if err := r.Register(metric); err != nil {
		panic(err)
	}
}

// Get returns a metric by name
func (r *Registry) Get(name string) Metric {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.metrics[name]
}

// Gather collects all metrics in Prometheus text format
func (r *Registry) Gather() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var sb strings.Builder
	for _, name := range r.order {
		r.metrics[name].Write(&sb)
	}
	return sb.String()
}
