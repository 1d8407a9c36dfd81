package scan

import (
	"fmt"
	"strconv"
)

// Outcome classifies what happened to an auxiliary action in one step.
type Outcome int

const (
	// Disabled means the action is switched off in the configuration.
	Disabled Outcome = iota
	// MotorsOff means hardware use is switched off altogether.
	MotorsOff
	// Reached means the action was commanded and confirmed.
	Reached
	// Skipped means the step value was NaN and nothing was commanded.
	Skipped
	// Invalid means no usable value was available for the step.
	Invalid
	// Failed means commanding or confirming the action failed.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Disabled:
		return "disabled"
	case MotorsOff:
		return "motors_off"
	case Reached:
		return "reached"
	case Skipped:
		return "skipped"
	case Invalid:
		return "invalid"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// AuxStatus is the recorded result of one auxiliary action.
type AuxStatus struct {
	Outcome Outcome `json:"outcome" yaml:"outcome"`
	Value   float64 `json:"-" yaml:"-"`
	Text    string  `json:"text" yaml:"text"`
}

func (s AuxStatus) String() string { return s.Text }

func disabled(text string) AuxStatus {
	return AuxStatus{Outcome: Disabled, Text: text}
}

func motorsOff() AuxStatus {
	return AuxStatus{Outcome: MotorsOff, Text: "motors disabled"}
}

func skipped(v float64) AuxStatus {
	return AuxStatus{Outcome: Skipped, Value: v, Text: "skipped (NaN)"}
}

func invalid(v float64) AuxStatus {
	return AuxStatus{Outcome: Invalid, Value: v, Text: "invalid input"}
}

func failed(v float64, err error) AuxStatus {
	return AuxStatus{Outcome: Failed, Value: v, Text: fmt.Sprintf("unknown error: %v", err)}
}

func reached(v float64, text string) AuxStatus {
	return AuxStatus{Outcome: Reached, Value: v, Text: text}
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
