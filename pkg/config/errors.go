// Package config provides scan configuration parsing with access tracking
// and validation. Files are INI-style with Python-like literal values, or
// YAML documents with the same sections and keys.
package config

import (
	"fmt"

	hosterrors "imprint-scan/pkg/errors"
)

// ConfigError represents a configuration error with context.
type ConfigError struct {
	Section string
	Option  string
	Message string
	Cause   error
}

func (e *ConfigError) Error() string {
	if e.Option != "" {
		return fmt.Sprintf("Option '%s' in section '%s': %s", e.Option, e.Section, e.Message)
	}
	if e.Section != "" {
		return fmt.Sprintf("Section '%s': %s", e.Section, e.Message)
	}
	return e.Message
}

func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// NewConfigError creates a new ConfigError.
func NewConfigError(section, option, message string) *ConfigError {
	return &ConfigError{
		Section: section,
		Option:  option,
		Message: message,
	}
}

// ErrMissingOption returns an error for a required but missing option.
func ErrMissingOption(section, option string) *ConfigError {
	return &ConfigError{
		Section: section,
		Option:  option,
		Message: "must be specified",
	}
}

// ErrMissingSection returns an error for a missing section.
func ErrMissingSection(section string) *ConfigError {
	return &ConfigError{
		Section: section,
		Message: "section not found",
	}
}

// ErrInvalidValue returns an error for an invalid value.
func ErrInvalidValue(section, option, value, expected string) *ConfigError {
	return &ConfigError{
		Section: section,
		Option:  option,
		Message: fmt.Sprintf("invalid value '%s', expected %s", value, expected),
	}
}

// syntaxError lifts a file-level parse failure into CONFIG_FORMAT. Host
// errors, such as a missing include file, pass through unchanged.
func syntaxError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := hosterrors.As(err); ok {
		return err
	}
	section := ""
	if ce, ok := err.(*ConfigError); ok {
		section = ce.Section
	}
	return hosterrors.Wrap(err, hosterrors.ErrConfigFormat, "syntax error: "+err.Error()).SetSection(section)
}

// formatError lifts a ConfigError into the host CONFIG_FORMAT taxonomy,
// keeping the section and option. Host errors pass through unchanged.
func formatError(err error, value string) error {
	if err == nil {
		return nil
	}
	if _, ok := hosterrors.As(err); ok {
		return err
	}
	if ce, ok := err.(*ConfigError); ok {
		return hosterrors.ConfigFormatError(ce.Section, ce.Option, value, ce)
	}
	return hosterrors.ConfigFormatError("", "", value, err)
}
