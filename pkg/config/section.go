package config

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Section provides access to a config section with access tracking.
// Option names are matched after normalization, so use_motors and
// useMotors are the same option.
type Section struct {
	name    string
	options map[string]string
	// original spelling for diagnostics
	spelling map[string]string

	mu       sync.RWMutex
	accessed map[string]struct{}
}

// newSection creates a new Section.
func newSection(name string, options map[string]string) *Section {
	s := &Section{
		name:     name,
		options:  make(map[string]string, len(options)),
		spelling: make(map[string]string, len(options)),
		accessed: make(map[string]struct{}),
	}
	s.merge(options)
	return s
}

func (s *Section) merge(options map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range options {
		key := normalizeKey(k)
		s.options[key] = v
		s.spelling[key] = k
	}
}

// GetName returns the section name.
func (s *Section) GetName() string {
	return s.name
}

func (s *Section) lookup(option string) (string, bool) {
	key := normalizeKey(option)
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.options[key]
	if ok {
		s.accessed[key] = struct{}{}
	}
	return v, ok
}

// GetUnusedOptions returns the options that were never read, sorted.
func (s *Section) GetUnusedOptions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []string
	for key := range s.options {
		if _, ok := s.accessed[key]; !ok {
			result = append(result, s.spelling[key])
		}
	}
	sort.Strings(result)
	return result
}

// HasOption checks if an option exists in this section.
func (s *Section) HasOption(option string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.options[normalizeKey(option)]
	return ok
}

// Get returns a string option value.
// If default is provided and option doesn't exist, returns default.
// If no default and option doesn't exist, returns error.
func (s *Section) Get(option string, fallback ...string) (string, error) {
	if v, ok := s.lookup(option); ok {
		return unquote(v), nil
	}
	if len(fallback) > 0 {
		return fallback[0], nil
	}
	return "", ErrMissingOption(s.name, option)
}

// unquote strips one level of matching quotes.
func unquote(v string) string {
	if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
		return v[1 : len(v)-1]
	}
	return v
}

// GetInt returns an integer option value.
func (s *Section) GetInt(option string, fallback ...int) (int, error) {
	if v, ok := s.lookup(option); ok {
		i, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, ErrInvalidValue(s.name, option, v, "integer")
		}
		return i, nil
	}
	if len(fallback) > 0 {
		return fallback[0], nil
	}
	return 0, ErrMissingOption(s.name, option)
}

// GetFloat returns a float64 option value.
func (s *Section) GetFloat(option string, fallback ...float64) (float64, error) {
	if v, ok := s.lookup(option); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, ErrInvalidValue(s.name, option, v, "float")
		}
		return f, nil
	}
	if len(fallback) > 0 {
		return fallback[0], nil
	}
	return 0, ErrMissingOption(s.name, option)
}

// GetBool returns a boolean option value.
// Accepts: 1, t, true, yes, on (true) and 0, f, false, no, off (false),
// case-insensitive.
func (s *Section) GetBool(option string, fallback ...bool) (bool, error) {
	if v, ok := s.lookup(option); ok {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "yes", "on":
			return true, nil
		case "0", "f", "false", "no", "off":
			return false, nil
		default:
			return false, ErrInvalidValue(s.name, option, v, "boolean (true/false/t/f/yes/no/on/off/1/0)")
		}
	}
	if len(fallback) > 0 {
		return fallback[0], nil
	}
	return false, ErrMissingOption(s.name, option)
}

// GetDuration returns a duration option. Plain numbers are seconds.
func (s *Section) GetDuration(option string, fallback ...time.Duration) (time.Duration, error) {
	if v, ok := s.lookup(option); ok {
		v = strings.TrimSpace(v)
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return time.Duration(f * float64(time.Second)), nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, ErrInvalidValue(s.name, option, v, "duration")
		}
		return d, nil
	}
	if len(fallback) > 0 {
		return fallback[0], nil
	}
	return 0, ErrMissingOption(s.name, option)
}

// GetLiteral parses an option as a Python-style literal. Malformed
// literals fail with CONFIG_FORMAT carrying the section and option.
func (s *Section) GetLiteral(option string, fallback ...Value) (Value, error) {
	if v, ok := s.lookup(option); ok {
		val, err := ParseLiteral(v)
		if err != nil {
			return Value{}, formatError(&ConfigError{
				Section: s.name,
				Option:  option,
				Message: err.Error(),
				Cause:   err,
			}, v)
		}
		return val, nil
	}
	if len(fallback) > 0 {
		return fallback[0], nil
	}
	return Value{}, ErrMissingOption(s.name, option)
}
