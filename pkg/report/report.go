// Package report renders built meshes and step logs as tables or
// machine-readable exports.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"

	"imprint-scan/pkg/mesh"
	"imprint-scan/pkg/scan"
)

// Format selects an export encoding.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatTable, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want table, json or yaml)", s)
	}
}

// MeshTable writes one row per grid cell: the coordinate, every axis
// position and both auxiliary values.
func MeshTable(w io.Writer, seqs *mesh.Sequences) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	header := table.Row{"Step", "Coord"}
	for _, name := range seqs.Names {
		header = append(header, name)
	}
	header = append(header, "Attenuator", "Shots")
	tw.AppendHeader(header)

	for f := 0; f < seqs.Size(); f++ {
		row := table.Row{f, fmt.Sprint(seqs.Coord(f))}
		for _, pos := range seqs.At(f) {
			row = append(row, pos.String())
		}
		row = append(row, auxCell(seqs.Attenuator, f), auxCell(seqs.Burst, f))
		tw.AppendRow(row)
	}
	tw.Render()
}

func auxCell(seq mesh.AuxSequence, f int) string {
	if !seq.Enabled() {
		return "-"
	}
	v, ok := seq.At(f)
	switch {
	case !ok:
		return "missing"
	case math.IsNaN(v):
		return "skip"
	default:
		return fmt.Sprintf("%g", v)
	}
}

// StepTable writes the step log of a run.
func StepTable(w io.Writer, names []string, records []scan.StepRecord) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	header := table.Row{"Step", "Coord"}
	for _, name := range names {
		header = append(header, name)
	}
	header = append(header, "Gas Attenuator", "Linac")
	tw.AppendHeader(header)

	for _, rec := range records {
		row := table.Row{rec.Index, fmt.Sprint(rec.Coord)}
		for i := range names {
			row = append(row, positionCell(rec, i))
		}
		row = append(row, rec.Attenuator.Text, rec.Burst.Text)
		tw.AppendRow(row)
	}
	s := Summarize(records)
	tw.AppendFooter(table.Row{"", "", "", fmt.Sprintf("%d steps, %d failed", s.Steps, s.Failed)})
	tw.Render()
}

func positionCell(rec scan.StepRecord, i int) string {
	if i < len(rec.Observed) && rec.Observed[i] != nil {
		return mesh.Position(rec.Observed[i]).String()
	}
	if i < len(rec.Commanded) {
		return rec.Commanded[i].String()
	}
	return ""
}

// Summary counts step outcomes.
type Summary struct {
	Steps      int                  `json:"steps" yaml:"steps"`
	Failed     int                  `json:"failed" yaml:"failed"`
	Attenuator map[scan.Outcome]int `json:"attenuator" yaml:"attenuator"`
	Burst      map[scan.Outcome]int `json:"burst" yaml:"burst"`
}

// Summarize tallies the outcomes of records. A step counts as failed
// when either auxiliary action failed or had no usable value.
func Summarize(records []scan.StepRecord) Summary {
	s := Summary{
		Steps:      len(records),
		Attenuator: make(map[scan.Outcome]int),
		Burst:      make(map[scan.Outcome]int),
	}
	for _, rec := range records {
		s.Attenuator[rec.Attenuator.Outcome]++
		s.Burst[rec.Burst.Outcome]++
		if bad(rec.Attenuator) || bad(rec.Burst) {
			s.Failed++
		}
	}
	return s
}

func bad(st scan.AuxStatus) bool {
	return st.Outcome == scan.Failed || st.Outcome == scan.Invalid
}

// Export is the machine-readable form of a run.
type Export struct {
	RunID   string            `json:"run_id" yaml:"run_id"`
	Config  string            `json:"config" yaml:"config"`
	Axes    []string          `json:"axes" yaml:"axes"`
	Steps   []int             `json:"mesh" yaml:"mesh"`
	Summary Summary           `json:"summary" yaml:"summary"`
	Records []scan.StepRecord `json:"records" yaml:"records"`
}

// Write encodes e in format. FormatTable writes the step table.
func Write(w io.Writer, format Format, e Export) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(sanitize(e))
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(e); err != nil {
			return err
		}
		return enc.Close()
	default:
		StepTable(w, e.Axes, e.Records)
		return nil
	}
}

// sanitize replaces NaN positions, which JSON cannot carry, with null.
func sanitize(e Export) any {
	type record struct {
		scan.StepRecord
		Commanded [][]*float64 `json:"commanded"`
		Observed  [][]*float64 `json:"observed,omitempty"`
	}
	type export struct {
		Export
		Records []record `json:"records"`
	}
	out := export{Export: e, Records: make([]record, len(e.Records))}
	for i, rec := range e.Records {
		r := record{StepRecord: rec}
		for _, pos := range rec.Commanded {
			r.Commanded = append(r.Commanded, nullable(pos))
		}
		for _, pos := range rec.Observed {
			r.Observed = append(r.Observed, nullable(pos))
		}
		out.Records[i] = r
	}
	return out
}

func nullable(vals []float64) []*float64 {
	out := make([]*float64, len(vals))
	for i, v := range vals {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out[i] = &v
		}
	}
	return out
}

// MeshCell is one grid cell of a mesh export. Auxiliary values are nil
// when the action is disabled or the value is NaN.
type MeshCell struct {
	Index      int          `json:"index" yaml:"index"`
	Coord      []int        `json:"coord" yaml:"coord"`
	Positions  [][]*float64 `json:"positions" yaml:"positions"`
	Attenuator *float64     `json:"attenuator" yaml:"attenuator"`
	Shots      *float64     `json:"shots" yaml:"shots"`
}

// WriteMesh encodes every cell of seqs in format.
func WriteMesh(w io.Writer, format Format, seqs *mesh.Sequences) error {
	cells := make([]MeshCell, seqs.Size())
	for f := range cells {
		cell := MeshCell{Index: f, Coord: seqs.Coord(f)}
		for _, pos := range seqs.At(f) {
			cell.Positions = append(cell.Positions, nullable(pos))
		}
		cell.Attenuator = auxValue(seqs.Attenuator, f)
		cell.Shots = auxValue(seqs.Burst, f)
		cells[f] = cell
	}
	doc := struct {
		Steps []int      `json:"mesh" yaml:"mesh"`
		Axes  []string   `json:"axes" yaml:"axes"`
		Cells []MeshCell `json:"cells" yaml:"cells"`
	}{seqs.Steps, seqs.Names, cells}

	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	default:
		MeshTable(w, seqs)
		return nil
	}
}

func auxValue(seq mesh.AuxSequence, f int) *float64 {
	if !seq.Enabled() {
		return nil
	}
	if v, ok := seq.At(f); ok && !math.IsNaN(v) {
		return &v
	}
	return nil
}
