package report

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"imprint-scan/pkg/mesh"
	"imprint-scan/pkg/scan"
)

func testMesh(t *testing.T) *mesh.Sequences {
	t.Helper()
	seqs, err := mesh.Build(mesh.Plan{
		Steps: []int{2, 2},
		Axes: []mesh.AxisSpec{
			{Name: "X", Kind: mesh.Simple, Channels: []string{"X"}, Initial: []float64{0}, Deltas: [][]float64{{1}}, LoopDims: []int{0}},
			{Name: "Y", Kind: mesh.Simple, Channels: []string{"Y"}, Initial: []float64{10}, Deltas: [][]float64{{5}}, LoopDims: []int{1}},
		},
		Attenuator: mesh.AuxSpec{Name: "Attenuator", Enabled: true, Values: []float64{3, math.NaN()}, LoopDims: []int{1}},
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return seqs
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatTable, "JSON": FormatJSON, " yaml ": FormatYAML} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("csv"); err == nil {
		t.Error("expected error for csv")
	}
}

func TestMeshTable(t *testing.T) {
	var buf bytes.Buffer
	MeshTable(&buf, testMesh(t))
	out := buf.String()

	for _, want := range []string{"STEP", "ATTENUATOR", "[1 1]", "skip"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
	// Header, separators and four rows.
	if rows := strings.Count(out, "\n"); rows < 6 {
		t.Errorf("expected at least 6 lines, got %d:\n%s", rows, out)
	}
}

func sampleRecords() []scan.StepRecord {
	return []scan.StepRecord{
		{
			RunID: "run-1", Index: 0, Coord: []int{0, 0},
			Commanded:  []mesh.Position{{0}, {10}},
			Observed:   [][]float64{{0}, {10}},
			Attenuator: scan.AuxStatus{Outcome: scan.Reached, Value: 3, Text: "reached 3"},
			Burst:      scan.AuxStatus{Outcome: scan.Disabled, Text: "not in burst mode"},
		},
		{
			RunID: "run-1", Index: 1, Coord: []int{0, 1},
			Commanded:  []mesh.Position{{0}, {math.NaN()}},
			Attenuator: scan.AuxStatus{Outcome: scan.Failed, Text: "unknown error: timeout"},
			Burst:      scan.AuxStatus{Outcome: scan.Disabled, Text: "not in burst mode"},
		},
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(sampleRecords())
	if s.Steps != 2 || s.Failed != 1 {
		t.Errorf("unexpected summary %+v", s)
	}
	if s.Attenuator[scan.Reached] != 1 || s.Burst[scan.Disabled] != 2 {
		t.Errorf("unexpected outcome counts %+v", s)
	}
}

func TestStepTable(t *testing.T) {
	var buf bytes.Buffer
	StepTable(&buf, []string{"X", "Y"}, sampleRecords())
	// Footers render upper case.
	out := strings.ToLower(buf.String())
	for _, want := range []string{"reached 3", "unknown error: timeout", "2 steps, 1 failed"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestWriteJSON(t *testing.T) {
	records := sampleRecords()
	var buf bytes.Buffer
	err := Write(&buf, FormatJSON, Export{RunID: "run-1", Axes: []string{"X", "Y"}, Records: records, Summary: Summarize(records)})
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	var decoded struct {
		RunID   string `json:"run_id"`
		Records []struct {
			Commanded  [][]*float64 `json:"commanded"`
			Attenuator struct {
				Outcome string `json:"outcome"`
			} `json:"attenuator"`
		} `json:"records"`
		Summary struct {
			Attenuator map[string]int `json:"attenuator"`
		} `json:"summary"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
	}
	if decoded.RunID != "run-1" || len(decoded.Records) != 2 {
		t.Fatalf("unexpected export %+v", decoded)
	}
	if decoded.Records[1].Commanded[1][0] != nil {
		t.Error("NaN position should export as null")
	}
	if decoded.Records[1].Attenuator.Outcome != "failed" || decoded.Summary.Attenuator["reached"] != 1 {
		t.Errorf("unexpected outcomes %+v", decoded)
	}
}

func TestWriteYAML(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, FormatYAML, Export{RunID: "run-1", Records: sampleRecords()[:1]}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	var decoded map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid YAML: %v", err)
	}
	if decoded["run_id"] != "run-1" {
		t.Errorf("unexpected run id %v", decoded["run_id"])
	}
	if !strings.Contains(buf.String(), "outcome: reached") {
		t.Errorf("expected textual outcome in:\n%s", buf.String())
	}
}

func TestWriteMeshJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteMesh(&buf, FormatJSON, testMesh(t)); err != nil {
		t.Fatalf("WriteMesh failed: %v", err)
	}
	var decoded struct {
		Mesh  []int `json:"mesh"`
		Cells []struct {
			Positions  [][]float64 `json:"positions"`
			Attenuator *float64    `json:"attenuator"`
			Shots      *float64    `json:"shots"`
		} `json:"cells"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(decoded.Cells) != 4 {
		t.Fatalf("expected 4 cells, got %d", len(decoded.Cells))
	}
	last := decoded.Cells[3]
	if last.Positions[0][0] != 1 || last.Positions[1][0] != 15 {
		t.Errorf("unexpected positions %v", last.Positions)
	}
	if decoded.Cells[0].Attenuator == nil || *decoded.Cells[0].Attenuator != 3 {
		t.Errorf("expected attenuator 3 at cell 0")
	}
	if last.Attenuator != nil || last.Shots != nil {
		t.Errorf("NaN and disabled values should be null")
	}
}
