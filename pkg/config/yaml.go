package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	hosterrors "imprint-scan/pkg/errors"
)

// LoadYAML reads a YAML scan configuration. The document is a mapping of
// section names to mappings of options, for example
//
//	Motors:
//	  motors: [XPP:MOT:01, [XPP:MOT:02, XPP:MOT:03]]
//	  num_steps: [2, 3]
//
// Values are rendered into literal syntax and stored in the same section
// store as INI files. A sequence nested inside another sequence whose
// items are all scalars becomes a tuple, so [[1, 2]] reads like [(1, 2)].
// String values are taken verbatim and may hold literal syntax.
func LoadYAML(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, hosterrors.ConfigPathError(path, err)
	}
	c, err := LoadYAMLString(string(data))
	if err != nil {
		return nil, err
	}
	c.path = path
	return c, nil
}

// LoadYAMLString parses a YAML scan configuration from a string.
func LoadYAMLString(data string) (*Config, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(data), &doc); err != nil {
		return nil, hosterrors.ConfigFormatError("", "", "yaml document", err)
	}
	c := New()
	if len(doc.Content) == 0 {
		return c, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, hosterrors.ConfigFormatError("", "", "yaml document",
			fmt.Errorf("line %d: top level must be a mapping of sections", root.Line))
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		name := root.Content[i].Value
		body := root.Content[i+1]
		options := make(map[string]string)
		switch body.Kind {
		case yaml.MappingNode:
			for j := 0; j+1 < len(body.Content); j += 2 {
				key := body.Content[j].Value
				value, err := renderYAML(body.Content[j+1], 0)
				if err != nil {
					return nil, hosterrors.ConfigFormatError(name, key, "yaml value", err)
				}
				options[key] = value
			}
		case yaml.ScalarNode:
			if body.Tag != "!!null" {
				return nil, hosterrors.ConfigFormatError(name, "", body.Value,
					fmt.Errorf("line %d: section must be a mapping", body.Line))
			}
		default:
			return nil, hosterrors.ConfigFormatError(name, "", "yaml value",
				fmt.Errorf("line %d: section must be a mapping", body.Line))
		}
		c.addSection(name, options)
	}
	return c, nil
}

func renderYAML(n *yaml.Node, depth int) (string, error) {
	switch n.Kind {
	case yaml.AliasNode:
		return renderYAML(n.Alias, depth)
	case yaml.ScalarNode:
		return renderScalar(n, depth), nil
	case yaml.SequenceNode:
		parts := make([]string, len(n.Content))
		scalars := true
		for i, item := range n.Content {
			s, err := renderYAML(item, depth+1)
			if err != nil {
				return "", err
			}
			parts[i] = s
			if item.Kind != yaml.ScalarNode {
				scalars = false
			}
		}
		if depth > 0 && scalars {
			if len(parts) == 1 {
				return "(" + parts[0] + ",)", nil
			}
			return "(" + strings.Join(parts, ", ") + ")", nil
		}
		return "[" + strings.Join(parts, ", ") + "]", nil
	default:
		return "", fmt.Errorf("line %d: unsupported yaml node", n.Line)
	}
}

func renderScalar(n *yaml.Node, depth int) string {
	switch n.Tag {
	case "!!null":
		return "None"
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err == nil && b {
			return "True"
		}
		return "False"
	case "!!int":
		return n.Value
	case "!!float":
		var f float64
		if err := n.Decode(&f); err == nil {
			return strconv.FormatFloat(f, 'g', -1, 64)
		}
		return n.Value
	}
	if depth == 0 {
		return n.Value
	}
	return strconv.Quote(n.Value)
}
