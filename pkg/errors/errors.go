// Unified error handling for imprint scans
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
)

// ErrorCode represents the category of error
type ErrorCode string

const (
	// Configuration errors
	ErrConfigPath   ErrorCode = "CONFIG_PATH"
	ErrConfigFormat ErrorCode = "CONFIG_FORMAT"

	// Mesh construction errors
	ErrShapeMismatch   ErrorCode = "SHAPE_MISMATCH"
	ErrIndexOutOfRange ErrorCode = "INDEX_OUT_OF_RANGE"

	// Motion errors
	ErrCountMismatch ErrorCode = "COUNT_MISMATCH"

	// Runtime errors
	ErrRuntime        ErrorCode = "RUNTIME"
	ErrRuntimeWait    ErrorCode = "RUNTIME_WAIT"
	ErrRuntimeChannel ErrorCode = "RUNTIME_CHANNEL"
	ErrRuntimeMotor   ErrorCode = "RUNTIME_MOTOR"
)

// HostError is the unified error type for the scan host
type HostError struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// Section is the config section or context
	Section string

	// Option is the config option name (if applicable)
	Option string

	// Err wraps the underlying error
	Err error

	// Context provides additional context
	Context map[string]interface{}
}

// Error implements the error interface
func (e *HostError) Error() string {
	switch {
	case e.Section != "" && e.Option != "":
		return fmt.Sprintf("[%s:%s.%s] %s", e.Code, e.Section, e.Option, e.Message)
	case e.Section != "":
		return fmt.Sprintf("[%s:%s] %s", e.Code, e.Section, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *HostError) Unwrap() error {
	return e.Err
}

// SetSection sets the context section
func (e *HostError) SetSection(section string) *HostError {
	e.Section = section
	return e
}

// SetOption sets the config option
func (e *HostError) SetOption(option string) *HostError {
	e.Option = option
	return e
}

// SetContext adds additional context
func (e *HostError) SetContext(key string, value interface{}) *HostError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Wrap wraps an existing error with additional context
func Wrap(err error, code ErrorCode, message string) *HostError {
	return &HostError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// New creates a new HostError
func New(code ErrorCode, message string) *HostError {
	return &HostError{
		Code:    code,
		Message: message,
	}
}

// Config errors

// ConfigPathError reports a configuration path that is not a readable file
func ConfigPathError(path string, err error) *HostError {
	return Wrap(err, ErrConfigPath, fmt.Sprintf("invalid path to cfg: %s", path)).
		SetContext("config_path", path)
}

// ConfigFormatError reports a malformed configuration literal
func ConfigFormatError(section, option, value string, err error) *HostError {
	msg := fmt.Sprintf("malformed value %q", value)
	if err != nil {
		msg = fmt.Sprintf("malformed value %q: %v", value, err)
	}
	return Wrap(err, ErrConfigFormat, msg).
		SetSection(section).
		SetOption(option)
}

// Mesh errors

// Mismatch describes the two quantities a ShapeMismatch compared.
type Mismatch struct {
	NameA string
	NameB string
	SizeA interface{}
	SizeB interface{}
}

// ShapeMismatchError creates an error for two quantities whose sizes disagree
func ShapeMismatchError(nameA, nameB string, sizeA, sizeB interface{}) *HostError {
	return New(ErrShapeMismatch, fmt.Sprintf("config values for '%s' and '%s' have incorrect corresponding sizes %v and %v",
		nameA, nameB, sizeA, sizeB)).
		SetContext("mismatch", Mismatch{NameA: nameA, NameB: nameB, SizeA: sizeA, SizeB: sizeB})
}

// IndexOutOfRangeError creates an error for a substitution index outside the mesh
func IndexOutOfRangeError(name string, index interface{}, bound interface{}) *HostError {
	return New(ErrIndexOutOfRange, fmt.Sprintf("%s index %v outside of [0, %v)", name, index, bound)).
		SetContext("index", index).
		SetContext("bound", bound)
}

// Motion errors

// CountMismatchError creates an error for a grouped move with the wrong tuple length
func CountMismatchError(group string, motors, values int) *HostError {
	return New(ErrCountMismatch, fmt.Sprintf("motor and position mismatch for %s: %d motors with %d inputted motions",
		group, motors, values)).
		SetContext("motors", motors).
		SetContext("values", values)
}

// Runtime errors

// RuntimeError creates a general runtime error
func RuntimeError(message string) *HostError {
	return New(ErrRuntime, message)
}

// WaitError creates an error for a blocking wait that did not complete
func WaitError(target string, err error) *HostError {
	return Wrap(err, ErrRuntimeWait, fmt.Sprintf("wait for %s failed: %v", target, err))
}

// ChannelError creates an error for a failed channel access
func ChannelError(operation, name string, err error) *HostError {
	return Wrap(err, ErrRuntimeChannel, fmt.Sprintf("channel %s %s failed: %v", operation, name, err))
}

// MotorError creates an error for a failed motor command
func MotorError(operation, motor string, err error) *HostError {
	return Wrap(err, ErrRuntimeMotor, fmt.Sprintf("motor %s %s failed: %v", motor, operation, err))
}

// FromPanic converts a recovered panic value into a HostError.
// Use it from a deferred function that called recover itself.
func FromPanic(r interface{}) *HostError {
	if r == nil {
		return nil
	}
	return panicError(r)
}

func panicError(r interface{}) *HostError {
	switch x := r.(type) {
	case string:
		return RuntimeError(fmt.Sprintf("panic: %s", x))
	case runtime.Error:
		return RuntimeError(x.Error())
	case error:
		return RuntimeError(x.Error())
	default:
		return RuntimeError(fmt.Sprintf("panic: %v", x))
	}
}

// As returns the first HostError in err's chain
func As(err error) (*HostError, bool) {
	var hostErr *HostError
	if stderrors.As(err, &hostErr) {
		return hostErr, true
	}
	return nil, false
}

// Is checks if error matches given error code
func Is(err error, code ErrorCode) bool {
	hostErr, ok := As(err)
	return ok && hostErr.Code == code
}

// MismatchOf returns the compared quantities of a ShapeMismatch error
func MismatchOf(err error) (Mismatch, bool) {
	hostErr, ok := As(err)
	if !ok || hostErr.Code != ErrShapeMismatch {
		return Mismatch{}, false
	}
	m, ok := hostErr.Context["mismatch"].(Mismatch)
	return m, ok
}

// IsConfig checks if error is a config error
func IsConfig(err error) bool {
	return Is(err, ErrConfigPath) || Is(err, ErrConfigFormat)
}

// IsPreflight checks if error belongs to the pre-flight taxonomy, which
// must stop a scan before any motor moves
func IsPreflight(err error) bool {
	return IsConfig(err) ||
		Is(err, ErrShapeMismatch) ||
		Is(err, ErrIndexOutOfRange) ||
		Is(err, ErrCountMismatch)
}
