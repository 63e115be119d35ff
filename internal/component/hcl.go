// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package component

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// hclComponentFile is the top-level structure of an HCL definition file.
type hclComponentFile struct {
	Components []*hclComponent `hcl:"component,block"`
}

// hclComponent represents a single 'component' block for initial decoding.
type hclComponent struct {
	Name string   `hcl:"name,label"`
	Body hcl.Body `hcl:",remain"`
}

var componentBodySchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "display_name"},
		{Name: "version"},
		{Name: "type"},
		{Name: "description"},
		{Name: "command"},
		{Name: "code"},
		{Name: "environment"},
	},
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "input", LabelNames: []string{"name"}},
		{Type: "output", LabelNames: []string{"name"}},
	},
}

var portBodySchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "type", Required: true},
		{Name: "description"},
		{Name: "optional"},
		{Name: "mode"},
		{Name: "default"},
	},
}

func decodeHCL(path string, src []byte) (*Definition, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", path, diags)
	}

	var parsed hclComponentFile
	if diags := gohcl.DecodeBody(file.Body, nil, &parsed); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", path, diags)
	}
	if len(parsed.Components) != 1 {
		return nil, fmt.Errorf("HCL file %s must define exactly one component, found %d", path, len(parsed.Components))
	}

	def, diags := newDefinitionFromHCL(parsed.Components[0], path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("error parsing component in file %s: %w", path, diags)
	}
	return def, nil
}

func newDefinitionFromHCL(block *hclComponent, path string) (*Definition, hcl.Diagnostics) {
	content, diags := block.Body.Content(componentBodySchema)
	if diags.HasErrors() {
		return nil, diags
	}

	def := &Definition{
		Name:       block.Name,
		SourcePath: path,
	}

	stringAttrs := map[string]*string{
		"display_name": &def.DisplayName,
		"version":      &def.Version,
		"type":         &def.Type,
		"description":  &def.Description,
		"command":      &def.Command,
		"code":         &def.Code,
		"environment":  &def.Environment,
	}
	for name, target := range stringAttrs {
		attr, exists := content.Attributes[name]
		if !exists {
			continue
		}
		diags = append(diags, decodeStringAttr(attr, target)...)
	}

	var portDiags hcl.Diagnostics
	def.Inputs, portDiags = parsePorts(content.Blocks, "input")
	diags = append(diags, portDiags...)
	def.Outputs, portDiags = parsePorts(content.Blocks, "output")
	diags = append(diags, portDiags...)

	if diags.HasErrors() {
		return nil, diags
	}
	return def, diags
}

// decodeStringAttr evaluates a literal attribute and stores it as a string.
// Numbers and bools are accepted so that `version = 2` works.
func decodeStringAttr(attr *hcl.Attribute, target *string) hcl.Diagnostics {
	val, diags := attr.Expr.Value(nil)
	if diags.HasErrors() {
		return diags
	}
	strVal, err := convert.Convert(val, cty.String)
	if err != nil || strVal.IsNull() {
		return hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Invalid attribute value",
			Detail:   fmt.Sprintf("The '%s' attribute must be a string.", attr.Name),
			Subject:  attr.Expr.Range().Ptr(),
		}}
	}
	*target = strVal.AsString()
	return nil
}

// parsePorts finds and decodes all blocks of blockType ('input' or 'output').
func parsePorts(blocks hcl.Blocks, blockType string) (map[string]Port, hcl.Diagnostics) {
	var diags hcl.Diagnostics
	ports := make(map[string]Port)

	for _, block := range blocks.OfType(blockType) {
		// The schema guarantees us one label.
		name := block.Labels[0]

		if _, exists := ports[name]; exists {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  fmt.Sprintf("Duplicate %s definition", blockType),
				Detail:   fmt.Sprintf("An %s named '%s' has already been defined.", blockType, name),
				Subject:  &block.DefRange,
			})
			continue
		}

		content, contentDiags := block.Body.Content(portBodySchema)
		diags = append(diags, contentDiags...)
		if contentDiags.HasErrors() {
			continue
		}

		port := Port{Name: name}
		diags = append(diags, gohcl.DecodeExpression(content.Attributes["type"].Expr, nil, &port.Type)...)
		if attr, ok := content.Attributes["description"]; ok {
			diags = append(diags, gohcl.DecodeExpression(attr.Expr, nil, &port.Description)...)
		}
		if attr, ok := content.Attributes["optional"]; ok {
			diags = append(diags, gohcl.DecodeExpression(attr.Expr, nil, &port.Optional)...)
		}
		if attr, ok := content.Attributes["mode"]; ok {
			diags = append(diags, gohcl.DecodeExpression(attr.Expr, nil, &port.Mode)...)
		}
		if attr, ok := content.Attributes["default"]; ok {
			val, defDiags := hclDefault(port, attr)
			diags = append(diags, defDiags...)
			if !defDiags.HasErrors() {
				port.Default = &val
			}
		}

		ports[name] = port
	}

	return ports, diags
}

// hclDefault evaluates a default value and converts it to the port's type.
// A nil eval context is used because defaults must be literal values.
func hclDefault(port Port, attr *hcl.Attribute) (cty.Value, hcl.Diagnostics) {
	ty, err := port.CtyType()
	if err != nil {
		return cty.NilVal, hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Default on data port",
			Detail:   fmt.Sprintf("Input '%s' of type '%s' cannot have a default value.", port.Name, port.Type),
			Subject:  attr.Expr.Range().Ptr(),
		}}
	}

	val, diags := attr.Expr.Value(nil)
	if diags.HasErrors() {
		return cty.NilVal, diags
	}

	converted, err := convert.Convert(val, ty)
	if err != nil {
		return cty.NilVal, hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Invalid default value type",
			Detail:   fmt.Sprintf("The default value for '%s' is not compatible with its type, '%s'.", port.Name, port.Type),
			Subject:  attr.Expr.Range().Ptr(),
		}}
	}
	return converted, nil
}
