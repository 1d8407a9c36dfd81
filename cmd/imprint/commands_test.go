package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	hosterrors "imprint-scan/pkg/errors"
)

const checkConfig = `
[Motors]
motors: [X]
initial_positions: [0]
deltas: [1]
num_steps: [2]

[GasAttenuator]
use_atenuator: true
`

func writeConfig(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "imprint.cfg")
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetArgs(append(args, "--log-level", "error"))
	root.SetOut(&out)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCheckStrictRejectsMisspelledOption(t *testing.T) {
	path := writeConfig(t, checkConfig)

	_, err := execute(t, "check", "--config", path, "--strict")
	if !hosterrors.Is(err, hosterrors.ErrConfigFormat) {
		t.Fatalf("expected CONFIG_FORMAT, got %v", err)
	}
	if !strings.Contains(err.Error(), "use_atenuator") {
		t.Errorf("expected the misspelled option in %v", err)
	}
	if code := exitCode(err); code != 2 {
		t.Errorf("exit code = %d, want 2", code)
	}
}

func TestCheckWarnsWithoutStrict(t *testing.T) {
	path := writeConfig(t, checkConfig)

	out, err := execute(t, "check", "--config", path)
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if !strings.Contains(out, "OK, 1 axes over mesh [2] (2 cells)") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestCheckAppliesOverrides(t *testing.T) {
	path := writeConfig(t, checkConfig)

	out, err := execute(t, "check", "--config", path, "--set", "Motors.num_steps=[5]")
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if !strings.Contains(out, "(5 cells)") {
		t.Errorf("expected override to resize the mesh, got %q", out)
	}

	_, err = execute(t, "check", "--config", path, "--set", "num_steps")
	if !hosterrors.Is(err, hosterrors.ErrConfigFormat) {
		t.Errorf("expected CONFIG_FORMAT for a malformed override, got %v", err)
	}
}

func TestSyntaxErrorExitsAsPreflight(t *testing.T) {
	path := writeConfig(t, "[Motors]\nthis line has no separator\n")

	_, err := execute(t, "check", "--config", path)
	if !hosterrors.Is(err, hosterrors.ErrConfigFormat) {
		t.Fatalf("expected CONFIG_FORMAT, got %v", err)
	}
	if code := exitCode(err); code != 2 {
		t.Errorf("exit code = %d, want 2", code)
	}
}
