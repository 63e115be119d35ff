// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package component

import (
	"fmt"
	"strconv"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"gopkg.in/yaml.v3"
)

// yamlComponent mirrors the command-component YAML schema. Only the fields
// the assembler needs are decoded; everything else is left to the service.
type yamlComponent struct {
	Name        string              `yaml:"name"`
	DisplayName string              `yaml:"display_name"`
	Version     yaml.Node           `yaml:"version"`
	Type        string              `yaml:"type"`
	Description string              `yaml:"description"`
	Code        string              `yaml:"code"`
	Environment yaml.Node           `yaml:"environment"`
	Command     string              `yaml:"command"`
	Inputs      map[string]yamlPort `yaml:"inputs"`
	Outputs     map[string]yamlPort `yaml:"outputs"`
}

type yamlPort struct {
	Type        string    `yaml:"type"`
	Description string    `yaml:"description"`
	Optional    bool      `yaml:"optional"`
	Mode        string    `yaml:"mode"`
	Default     yaml.Node `yaml:"default"`
}

func decodeYAML(path string, src []byte) (*Definition, error) {
	var raw yamlComponent
	if err := yaml.Unmarshal(src, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse component YAML %s: %w", path, err)
	}

	def := &Definition{
		Name:        raw.Name,
		DisplayName: raw.DisplayName,
		Version:     scalarValue(raw.Version),
		Type:        raw.Type,
		Description: raw.Description,
		Code:        raw.Code,
		// An inline environment mapping is replaced by the shared environment
		// later, so only a reference string is kept here.
		Environment: scalarValue(raw.Environment),
		Command:     raw.Command,
		Inputs:      make(map[string]Port, len(raw.Inputs)),
		Outputs:     make(map[string]Port, len(raw.Outputs)),
		SourcePath:  path,
	}

	for name, in := range raw.Inputs {
		port := Port{
			Name:        name,
			Type:        in.Type,
			Description: in.Description,
			Optional:    in.Optional,
			Mode:        in.Mode,
		}
		// A zero Kind means the key was absent.
		if in.Default.Kind != 0 {
			val, err := yamlDefault(port, &in.Default)
			if err != nil {
				return nil, fmt.Errorf("component %s: %w", path, err)
			}
			port.Default = &val
		}
		def.Inputs[name] = port
	}

	for name, out := range raw.Outputs {
		def.Outputs[name] = Port{
			Name:        name,
			Type:        out.Type,
			Description: out.Description,
			Mode:        out.Mode,
		}
	}

	return def, nil
}

// scalarValue returns the text of a scalar node, or "" for anything else.
func scalarValue(n yaml.Node) string {
	if n.Kind != yaml.ScalarNode {
		return ""
	}
	return n.Value
}

// yamlDefault turns a scalar default into a cty value of the port's type.
func yamlDefault(port Port, n *yaml.Node) (cty.Value, error) {
	ty, err := port.CtyType()
	if err != nil {
		return cty.NilVal, fmt.Errorf("input '%s' has a default but is not a literal port", port.Name)
	}
	if n.Kind != yaml.ScalarNode {
		return cty.NilVal, fmt.Errorf("default for input '%s' must be a scalar", port.Name)
	}

	var raw cty.Value
	switch n.Tag {
	case "!!int", "!!float":
		raw, err = cty.ParseNumberVal(n.Value)
	case "!!bool":
		var b bool
		b, err = strconv.ParseBool(n.Value)
		raw = cty.BoolVal(b)
	default:
		raw = cty.StringVal(n.Value)
	}
	if err != nil {
		return cty.NilVal, fmt.Errorf("invalid default for input '%s': %w", port.Name, err)
	}

	val, err := convert.Convert(raw, ty)
	if err != nil {
		return cty.NilVal, fmt.Errorf("default for input '%s' is not compatible with type '%s': %w", port.Name, port.Type, err)
	}
	return val, nil
}
