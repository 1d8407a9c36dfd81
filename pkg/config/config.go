package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	hosterrors "imprint-scan/pkg/errors"
)

// Config provides access to a configuration file with access tracking.
type Config struct {
	mu       sync.RWMutex
	path     string
	sections map[string]*Section
	order    []string // Maintains section order

	accessedSections map[string]struct{}
}

// New creates a new empty Config.
func New() *Config {
	return &Config{
		sections:         make(map[string]*Section),
		accessedSections: make(map[string]struct{}),
	}
}

// Load reads a configuration file and returns a Config. Files ending in
// .yaml or .yml are read with LoadYAML; everything else is INI. Supports
// [include path] directives for including other INI files.
//
// A path that is not a regular file fails with CONFIG_PATH before any
// parsing takes place.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, hosterrors.ConfigPathError(path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, hosterrors.ConfigPathError(path, fmt.Errorf("not a regular file"))
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadYAML(path)
	}
	c := New()
	c.path = path
	visited := make(map[string]bool)
	if err := c.parseFile(path, visited); err != nil {
		return nil, syntaxError(err)
	}
	return c, nil
}

// LoadString parses an INI configuration from a string.
func LoadString(data string) (*Config, error) {
	c := New()
	if err := c.parse(strings.NewReader(data), "<string>", "", nil); err != nil {
		return nil, syntaxError(err)
	}
	return c, nil
}

// Path returns the file the configuration was loaded from, if any.
func (c *Config) Path() string {
	return c.path
}

// parseFile parses a config file and handles include directives.
func (c *Config) parseFile(path string, visited map[string]bool) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return hosterrors.ConfigPathError(path, err)
	}

	// Check for recursive includes
	if visited[abs] {
		return NewConfigError("", "", fmt.Sprintf("recursive include: %s", path))
	}
	visited[abs] = true
	defer func() { visited[abs] = false }()

	f, err := os.Open(abs)
	if err != nil {
		return hosterrors.ConfigPathError(path, err)
	}
	defer f.Close()

	return c.parse(f, path, filepath.Dir(abs), visited)
}

// parse reads INI text. Indented lines continue the previous option's
// value, which lets long literals span several lines. Includes are only
// honoured when visited is non-nil.
func (c *Config) parse(r io.Reader, name, dir string, visited map[string]bool) error {
	var currentSection string
	var currentOptions map[string]string
	var lastKey string

	flush := func() {
		if currentSection != "" {
			c.addSection(currentSection, currentOptions)
		}
	}

	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		raw := scanner.Text()
		line := stripComment(raw)
		if line == "" {
			continue
		}

		continuation := raw[0] == ' ' || raw[0] == '\t'
		if continuation && lastKey != "" && currentOptions != nil {
			currentOptions[lastKey] = strings.TrimSpace(currentOptions[lastKey] + " " + line)
			continue
		}
		lastKey = ""

		// Section header
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			flush()

			header := strings.TrimSpace(line[1 : len(line)-1])
			if header == "" {
				return NewConfigError("", "", fmt.Sprintf("empty section header at line %d in %s", lineNum, name))
			}

			if strings.HasPrefix(header, "include ") && visited != nil {
				if err := c.include(strings.TrimSpace(header[8:]), dir, name, lineNum, visited); err != nil {
					return err
				}
				currentSection = ""
				currentOptions = nil
				continue
			}

			currentSection = header
			currentOptions = make(map[string]string)
			continue
		}

		// Skip options before first section
		if currentSection == "" {
			continue
		}

		key, value, ok := splitOption(line)
		if !ok {
			return NewConfigError(currentSection, "", fmt.Sprintf("invalid line %d in %s: %q", lineNum, name, line))
		}
		currentOptions[key] = value
		lastKey = key
	}
	flush()

	if err := scanner.Err(); err != nil {
		return NewConfigError("", "", fmt.Sprintf("error reading %s: %v", name, err))
	}
	return nil
}

func (c *Config) include(spec, dir, name string, lineNum int, visited map[string]bool) error {
	if spec == "" {
		return NewConfigError("", "", fmt.Sprintf("empty include at line %d in %s", lineNum, name))
	}
	glob := filepath.Join(dir, spec)
	matches, err := filepath.Glob(glob)
	if err != nil {
		return NewConfigError("", "", fmt.Sprintf("invalid include pattern %q: %v", spec, err))
	}
	sort.Strings(matches)
	if len(matches) == 0 && !hasGlobMeta(glob) {
		return hosterrors.ConfigPathError(glob, os.ErrNotExist)
	}
	for _, m := range matches {
		if err := c.parseFile(m, visited); err != nil {
			return err
		}
	}
	return nil
}

// stripComment removes '#' and ';' comments and surrounding whitespace.
// A '#' inside a quoted string is kept.
func stripComment(line string) string {
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, ";") {
		return ""
	}
	var quote byte
	for i := 0; i < len(line); i++ {
		switch ch := line[i]; {
		case quote != 0:
			if ch == quote {
				quote = 0
			}
		case ch == '\'' || ch == '"':
			quote = ch
		case ch == '#':
			return strings.TrimSpace(line[:i])
		}
	}
	return trimmed
}

// splitOption splits "key: value" or "key = value" at whichever
// separator comes first, so values may contain either character.
func splitOption(line string) (string, string, bool) {
	idx := strings.IndexAny(line, ":=")
	if idx <= 0 {
		return "", "", false
	}
	key := strings.TrimSpace(line[:idx])
	if key == "" {
		return "", "", false
	}
	return key, strings.TrimSpace(line[idx+1:]), true
}

// hasGlobMeta returns true if the path contains glob metacharacters.
func hasGlobMeta(path string) bool {
	return strings.ContainsAny(path, "*?[")
}

// normalizeKey folds option names so that use_motors, use-motors and
// useMotors address the same option.
func normalizeKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	return strings.NewReplacer("_", "", "-", "").Replace(key)
}

// normalizeSection folds section names case-insensitively.
func normalizeSection(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// addSection adds a section to the config, merging repeated sections.
func (c *Config) addSection(name string, options map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := normalizeSection(name)
	if existing, ok := c.sections[key]; ok {
		existing.merge(options)
		return
	}
	c.sections[key] = newSection(name, options)
	c.order = append(c.order, key)
}

// Set stores a single option, creating the section if needed.
func (c *Config) Set(section, option, value string) {
	c.addSection(section, map[string]string{option: value})
}

// Override applies a command line override of the form
// Section.option=value.
func (c *Config) Override(expr string) error {
	key, value, ok := strings.Cut(expr, "=")
	section, option, dot := strings.Cut(strings.TrimSpace(key), ".")
	if !ok || !dot || section == "" || option == "" {
		return hosterrors.ConfigFormatError("", "", expr, fmt.Errorf("override must be Section.option=value"))
	}
	c.Set(section, option, strings.TrimSpace(value))
	return nil
}

// GetSection returns a Section by name, or error if not found.
func (c *Config) GetSection(name string) (*Section, error) {
	sec := c.GetSectionOptional(name)
	if sec == nil {
		return nil, ErrMissingSection(name)
	}
	return sec, nil
}

// GetSectionOptional returns a Section if it exists, or nil if not.
func (c *Config) GetSectionOptional(name string) *Section {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := normalizeSection(name)
	sec, ok := c.sections[key]
	if ok {
		c.accessedSections[key] = struct{}{}
	}
	return sec
}

// HasSection checks if a section exists.
func (c *Config) HasSection(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.sections[normalizeSection(name)]
	return ok
}

// GetSectionNames returns all section names in order.
func (c *Config) GetSectionNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]string, len(c.order))
	for i, key := range c.order {
		result[i] = c.sections[key].GetName()
	}
	return result
}

// GetUnusedSections returns a list of sections that were not accessed.
func (c *Config) GetUnusedSections() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var result []string
	for key, sec := range c.sections {
		if _, ok := c.accessedSections[key]; !ok {
			result = append(result, sec.GetName())
		}
	}
	sort.Strings(result)
	return result
}

// CheckUnused returns an error describing sections and options that were
// never read. Unknown keys are usually typos.
func (c *Config) CheckUnused() error {
	var problems []string
	if unused := c.GetUnusedSections(); len(unused) > 0 {
		problems = append(problems, fmt.Sprintf("unused sections %v", unused))
	}

	c.mu.RLock()
	for _, key := range c.order {
		sec := c.sections[key]
		if _, ok := c.accessedSections[key]; !ok {
			continue
		}
		if unused := sec.GetUnusedOptions(); len(unused) > 0 {
			problems = append(problems, fmt.Sprintf("[%s]: unused options %v", sec.GetName(), unused))
		}
	}
	c.mu.RUnlock()

	if len(problems) > 0 {
		return NewConfigError("", "", strings.Join(problems, "; "))
	}
	return nil
}
