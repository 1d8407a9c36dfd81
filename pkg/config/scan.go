package config

import (
	"fmt"
	"strings"
	"time"

	hosterrors "imprint-scan/pkg/errors"
	"imprint-scan/pkg/mesh"
)

// Section names of a scan configuration.
const (
	SectionMotors     = "Motors"
	SectionAttenuator = "GasAttenuator"
	SectionLinac      = "Linac"
	SectionScan       = "Scan"
)

// DefaultAttenuatorPV is the gas attenuator setpoint channel.
const DefaultAttenuatorPV = "GATT:FEE1:310:P_DES"

// Default burst control channels.
const (
	DefaultBurstCountPV   = "LINAC:BURST:COUNT"
	DefaultBurstTriggerPV = "LINAC:BURST:CTRL"
)

// AttenuatorConfig names the attenuator channels.
type AttenuatorConfig struct {
	SetpointPV string
	ReadbackPV string
}

// LinacConfig names the burst controller channels. An empty StatePV means
// completion is signalled by the trigger channel returning to zero.
type LinacConfig struct {
	CountPV   string
	TriggerPV string
	StatePV   string
}

// ScanConfig is a decoded scan configuration.
type ScanConfig struct {
	Plan        mesh.Plan
	UseMotors   bool
	Attenuator  AttenuatorConfig
	Linac       LinacConfig
	Verbose     bool
	WaitTimeout time.Duration
}

// DecodeScan reads the scan sections of c. Malformed values fail with
// CONFIG_FORMAT; option counts that disagree with the motor list fail
// with SHAPE_MISMATCH. Sequence-level checks are left to mesh.Validate.
func DecodeScan(c *Config) (*ScanConfig, error) {
	sc := &ScanConfig{}

	motors, err := c.GetSection(SectionMotors)
	if err != nil {
		return nil, formatError(err, "")
	}
	if err := decodeMotors(motors, sc); err != nil {
		return nil, err
	}

	sc.Plan.Attenuator = mesh.AuxSpec{Name: "Attenuator"}
	sc.Attenuator = AttenuatorConfig{SetpointPV: DefaultAttenuatorPV}
	if sec := c.GetSectionOptional(SectionAttenuator); sec != nil {
		if err := decodeAttenuator(sec, sc); err != nil {
			return nil, err
		}
	}
	if sc.Attenuator.ReadbackPV == "" {
		sc.Attenuator.ReadbackPV = sc.Attenuator.SetpointPV + ".RBV"
	}

	sc.Plan.Burst = mesh.AuxSpec{Name: "numShots"}
	sc.Linac = LinacConfig{CountPV: DefaultBurstCountPV, TriggerPV: DefaultBurstTriggerPV}
	if sec := c.GetSectionOptional(SectionLinac); sec != nil {
		if err := decodeLinac(sec, sc); err != nil {
			return nil, err
		}
	}

	if sec := c.GetSectionOptional(SectionScan); sec != nil {
		if sc.Verbose, err = sec.GetBool("verbose", false); err != nil {
			return nil, formatError(err, "")
		}
		if sc.WaitTimeout, err = sec.GetDuration("wait_timeout", 0); err != nil {
			return nil, formatError(err, "")
		}
	}
	return sc, nil
}

func decodeMotors(sec *Section, sc *ScanConfig) error {
	var err error
	if sc.UseMotors, err = sec.GetBool("use_motors", true); err != nil {
		return formatError(err, "")
	}

	names, err := sec.GetLiteral("motors")
	if err != nil {
		return formatError(err, "")
	}
	axes := make([]mesh.AxisSpec, 0, len(names.Elems()))
	for _, entry := range names.Elems() {
		axis, err := decodeAxisNames(sec, entry)
		if err != nil {
			return err
		}
		axes = append(axes, axis)
	}

	initial, err := perAxis(sec, "initial_positions", len(axes), true)
	if err != nil {
		return err
	}
	for i, entry := range initial {
		if axes[i].Initial, err = tupleFloats(sec, "initial_positions", entry); err != nil {
			return err
		}
	}

	deltas, err := perAxis(sec, "deltas", len(axes), true)
	if err != nil {
		return err
	}
	for i, entry := range deltas {
		if axes[i].Deltas, err = decodeDeltas(sec, entry); err != nil {
			return err
		}
	}

	steps, err := sec.GetLiteral("num_steps")
	if err != nil {
		return formatError(err, "")
	}
	if sc.Plan.Steps, err = steps.Ints(); err != nil {
		return literalError(sec, "num_steps", steps, err)
	}

	loops, err := perAxis(sec, "loop_dimensions", len(axes), false)
	if err != nil {
		return err
	}
	for i := range axes {
		if loops == nil {
			axes[i].LoopDims = []int{i}
			continue
		}
		if axes[i].LoopDims, err = loops[i].Ints(); err != nil {
			return literalError(sec, "loop_dimensions", loops[i], err)
		}
	}

	subValues, err := perAxis(sec, "substitute_values", len(axes), false)
	if err != nil {
		return err
	}
	for i, entry := range subValues {
		for _, v := range substitutionEntries(entry) {
			f, err := tupleFloats(sec, "substitute_values", v)
			if err != nil {
				return err
			}
			axes[i].SubValues = append(axes[i].SubValues, f)
		}
	}

	subIndices, err := perAxis(sec, "substitute_indices", len(axes), false)
	if err != nil {
		return err
	}
	for i, entry := range subIndices {
		if axes[i].SubIndices, err = decodeIndices(sec, "substitute_indices", entry); err != nil {
			return err
		}
	}

	sc.Plan.Axes = axes
	return nil
}

// decodeAxisNames turns a motors entry into an axis: a bare name is a
// simple axis, a tuple or list of names a group named "a+b".
func decodeAxisNames(sec *Section, entry Value) (mesh.AxisSpec, error) {
	if !entry.IsSeq() {
		if entry.Kind != KindString {
			return mesh.AxisSpec{}, literalError(sec, "motors", entry, fmt.Errorf("motor names must be strings"))
		}
		return mesh.AxisSpec{Name: entry.Str, Kind: mesh.Simple, Channels: []string{entry.Str}}, nil
	}
	if len(entry.Items) == 0 {
		return mesh.AxisSpec{}, literalError(sec, "motors", entry, fmt.Errorf("empty motor group"))
	}
	channels := make([]string, len(entry.Items))
	for i, item := range entry.Items {
		if item.Kind != KindString {
			return mesh.AxisSpec{}, literalError(sec, "motors", entry, fmt.Errorf("motor names must be strings"))
		}
		channels[i] = item.Str
	}
	return mesh.AxisSpec{Name: strings.Join(channels, "+"), Kind: mesh.Grouped, Channels: channels}, nil
}

// perAxis reads a per-axis option and checks it has one entry per axis.
// Optional options that are absent return nil.
func perAxis(sec *Section, option string, n int, required bool) ([]Value, error) {
	if !required && !sec.HasOption(option) {
		return nil, nil
	}
	v, err := sec.GetLiteral(option)
	if err != nil {
		return nil, formatError(err, "")
	}
	entries := v.Elems()
	if n == 1 && v.Kind == KindTuple {
		// a single grouped axis may be written without the outer list
		entries = []Value{v}
	}
	if len(entries) != n {
		return nil, hosterrors.ShapeMismatchError(sec.GetName(), camelCase(option), n, len(entries))
	}
	return entries, nil
}

// tupleFloats reads a scalar or a tuple of numbers.
func tupleFloats(sec *Section, option string, v Value) ([]float64, error) {
	f, err := v.Floats()
	if err != nil {
		return nil, literalError(sec, option, v, err)
	}
	return f, nil
}

// decodeDeltas reads an axis deltas entry. A scalar or tuple applies to
// every loop dimension; a list gives one scalar or tuple per dimension.
func decodeDeltas(sec *Section, v Value) ([][]float64, error) {
	if v.Kind != KindList {
		f, err := tupleFloats(sec, "deltas", v)
		if err != nil {
			return nil, err
		}
		return [][]float64{f}, nil
	}
	out := make([][]float64, 0, len(v.Items))
	for _, item := range v.Items {
		f, err := tupleFloats(sec, "deltas", item)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// substitutionEntries splits a per-axis substitution list. A bare tuple
// is one grouped value rather than a list of scalars.
func substitutionEntries(v Value) []Value {
	if v.IsSeq() && len(v.Items) == 0 {
		return nil
	}
	if v.Kind == KindTuple {
		return []Value{v}
	}
	return v.Elems()
}

// decodeIndices reads substitution indices: an integer is a flattened
// offset, a tuple or list of integers a coordinate. A bare tuple is a
// single coordinate.
func decodeIndices(sec *Section, option string, v Value) ([]mesh.Index, error) {
	entries := v.Elems()
	if v.Kind == KindTuple && len(v.Items) > 0 {
		entries = []Value{v}
	}
	out := make([]mesh.Index, 0, len(entries))
	for _, e := range entries {
		if e.IsSeq() {
			c, err := e.Ints()
			if err != nil {
				return nil, literalError(sec, option, e, err)
			}
			out = append(out, mesh.Coord(c...))
			continue
		}
		o, err := e.Int()
		if err != nil {
			return nil, literalError(sec, option, e, err)
		}
		out = append(out, mesh.Offset(o))
	}
	return out, nil
}

func decodeAux(sec *Section, spec *mesh.AuxSpec, enableKey, valuesKey string) error {
	var err error
	if spec.Enabled, err = sec.GetBool(enableKey, false); err != nil {
		return formatError(err, "")
	}
	if !spec.Enabled && !sec.HasOption(valuesKey) {
		return nil
	}
	values, err := sec.GetLiteral(valuesKey)
	if err != nil {
		return formatError(err, "")
	}
	if spec.Values, err = values.Floats(); err != nil {
		return literalError(sec, valuesKey, values, err)
	}

	loopKey := "loop_dimensions"
	if !sec.HasOption(loopKey) {
		loopKey = "loop_on_motors"
	}
	if sec.HasOption(loopKey) {
		loops, err := sec.GetLiteral(loopKey)
		if err != nil {
			return formatError(err, "")
		}
		if spec.LoopDims, err = loops.Ints(); err != nil {
			return literalError(sec, loopKey, loops, err)
		}
	}

	if sec.HasOption("substitute_values") {
		subs, err := sec.GetLiteral("substitute_values")
		if err != nil {
			return formatError(err, "")
		}
		if spec.SubValues, err = subs.Floats(); err != nil {
			return literalError(sec, "substitute_values", subs, err)
		}
	}
	if sec.HasOption("substitute_indices") {
		idx, err := sec.GetLiteral("substitute_indices")
		if err != nil {
			return formatError(err, "")
		}
		if spec.SubIndices, err = decodeIndices(sec, "substitute_indices", idx); err != nil {
			return err
		}
	}
	return nil
}

func decodeAttenuator(sec *Section, sc *ScanConfig) error {
	if err := decodeAux(sec, &sc.Plan.Attenuator, "use_attenuator", "attenuator_values"); err != nil {
		return err
	}
	var err error
	if sc.Attenuator.SetpointPV, err = sec.Get("setpoint_pv", DefaultAttenuatorPV); err != nil {
		return formatError(err, "")
	}
	if sc.Attenuator.ReadbackPV, err = sec.Get("readback_pv", ""); err != nil {
		return formatError(err, "")
	}
	return nil
}

func decodeLinac(sec *Section, sc *ScanConfig) error {
	if err := decodeAux(sec, &sc.Plan.Burst, "burst_mode", "num_shots"); err != nil {
		return err
	}
	var err error
	if sc.Linac.CountPV, err = sec.Get("count_pv", DefaultBurstCountPV); err != nil {
		return formatError(err, "")
	}
	if sc.Linac.TriggerPV, err = sec.Get("trigger_pv", DefaultBurstTriggerPV); err != nil {
		return formatError(err, "")
	}
	if sc.Linac.StatePV, err = sec.Get("state_pv", ""); err != nil {
		return formatError(err, "")
	}
	return nil
}

func literalError(sec *Section, option string, v Value, err error) error {
	return hosterrors.ConfigFormatError(sec.GetName(), option, v.String(), err)
}

// camelCase renders option names the way diagnostics refer to them,
// initial_positions becoming initialPositions.
func camelCase(option string) string {
	parts := strings.Split(option, "_")
	for i := 1; i < len(parts); i++ {
		if parts[i] != "" {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, "")
}
