// Error taxonomy tests
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestShapeMismatchCarriesBothQuantities(t *testing.T) {
	err := ShapeMismatchError("Motors", "initialPositions", 3, 2)

	if !Is(err, ErrShapeMismatch) {
		t.Fatalf("expected SHAPE_MISMATCH, got %v", err)
	}
	m, ok := MismatchOf(err)
	if !ok {
		t.Fatal("expected mismatch context")
	}
	if m.NameA != "Motors" || m.NameB != "initialPositions" {
		t.Errorf("unexpected names: %+v", m)
	}
	if m.SizeA != 3 || m.SizeB != 2 {
		t.Errorf("unexpected sizes: %+v", m)
	}
	for _, want := range []string{"Motors", "initialPositions", "3", "2"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("message %q missing %q", err.Error(), want)
		}
	}
}

func TestIsFollowsWrapChain(t *testing.T) {
	inner := IndexOutOfRangeError("attenuator substitution", []int{2, 0}, []int{2, 3})
	wrapped := fmt.Errorf("build: %w", inner)

	if !Is(wrapped, ErrIndexOutOfRange) {
		t.Error("expected wrapped error to match INDEX_OUT_OF_RANGE")
	}
	if Is(wrapped, ErrShapeMismatch) {
		t.Error("did not expect SHAPE_MISMATCH")
	}
	if _, ok := MismatchOf(wrapped); ok {
		t.Error("index error must not report a mismatch")
	}
}

func TestIsPreflight(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"path", ConfigPathError("missing.cfg", nil), true},
		{"format", ConfigFormatError("Motors", "deltas", "[1,", nil), true},
		{"shape", ShapeMismatchError("a", "b", 1, 2), true},
		{"index", IndexOutOfRangeError("x", 7, 6), true},
		{"count", CountMismatchError("m1+m2", 2, 3), true},
		{"wait", WaitError("GATT:RBV", stderrors.New("timeout")), false},
		{"plain", stderrors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPreflight(tt.err); got != tt.want {
				t.Errorf("IsPreflight(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestErrorFormatting(t *testing.T) {
	err := ConfigFormatError("Linac", "num_shots", "[1,,2]", stderrors.New("unexpected ','"))
	msg := err.Error()
	if !strings.HasPrefix(msg, "[CONFIG_FORMAT:Linac.num_shots]") {
		t.Errorf("unexpected prefix: %s", msg)
	}
	if stderrors.Unwrap(err) == nil {
		t.Error("expected wrapped cause")
	}

	plain := RuntimeError("step failed")
	if plain.Error() != "[RUNTIME] step failed" {
		t.Errorf("unexpected message: %s", plain.Error())
	}
}

func TestFromPanic(t *testing.T) {
	var got *HostError
	func() {
		defer func() { got = FromPanic(recover()) }()
		panic("channel driver exploded")
	}()
	if got == nil || got.Code != ErrRuntime {
		t.Fatalf("expected runtime error, got %v", got)
	}
	if !strings.Contains(got.Message, "channel driver exploded") {
		t.Errorf("unexpected message: %s", got.Message)
	}
	if FromPanic(nil) != nil {
		t.Error("nil panic value must yield nil")
	}
}
