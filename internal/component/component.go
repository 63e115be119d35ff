// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package component

import (
	"errors"
	"fmt"
	"maps"

	"github.com/zclconf/go-cty/cty"
)

// ErrUnsupportedFormat is returned for definition files whose extension is
// neither YAML nor HCL.
var ErrUnsupportedFormat = errors.New("unsupported component definition format")

// Data port types understood by the remote service.
const (
	TypeURIFolder   = "uri_folder"
	TypeURIFile     = "uri_file"
	TypeMLTable     = "mltable"
	TypeMLflowModel = "mlflow_model"
	TypeCustomModel = "custom_model"
	TypeTritonModel = "triton_model"
)

// Literal port types.
const (
	TypeString  = "string"
	TypeNumber  = "number"
	TypeInteger = "integer"
	TypeBoolean = "boolean"
)

// Port is a named input or output declared by a step definition.
type Port struct {
	Name        string
	Type        string
	Description string
	Optional    bool
	// Mode is the data access mode requested for the port, e.g. "rw_mount".
	// Empty means the service default.
	Mode string
	// Default is the literal default for an optional literal input.
	Default *cty.Value
}

// IsLiteral reports whether the port carries a plain value rather than data.
func (p Port) IsLiteral() bool {
	_, ok := literalTypes[p.Type]
	return ok
}

// CtyType returns the cty type of a literal port.
func (p Port) CtyType() (cty.Type, error) {
	ty, ok := literalTypes[p.Type]
	if !ok {
		return cty.NilType, fmt.Errorf("port '%s' of type '%s' is not a literal port", p.Name, p.Type)
	}
	return ty, nil
}

var literalTypes = map[string]cty.Type{
	TypeString:  cty.String,
	TypeNumber:  cty.Number,
	TypeInteger: cty.Number,
	TypeBoolean: cty.Bool,
}

var dataTypes = map[string]struct{}{
	TypeURIFolder:   {},
	TypeURIFile:     {},
	TypeMLTable:     {},
	TypeMLflowModel: {},
	TypeCustomModel: {},
	TypeTritonModel: {},
}

// validPortType reports whether t is a known data or literal port type.
func validPortType(t string) bool {
	if _, ok := literalTypes[t]; ok {
		return true
	}
	_, ok := dataTypes[t]
	return ok
}

// Definition is a loaded step definition.
type Definition struct {
	Name        string
	DisplayName string
	Version     string
	Type        string
	Description string
	Command     string
	Code        string
	// Environment is the execution environment reference, e.g.
	// "azureml:taxi-env:3".
	Environment string
	Inputs      map[string]Port
	Outputs     map[string]Port
	// SourcePath is the file the definition was loaded from.
	SourcePath string
}

// Input returns the declared input port with the given name.
func (d *Definition) Input(name string) (Port, bool) {
	p, ok := d.Inputs[name]
	return p, ok
}

// Output returns the declared output port with the given name.
func (d *Definition) Output(name string) (Port, bool) {
	p, ok := d.Outputs[name]
	return p, ok
}

// Clone returns a copy of d that can be modified independently.
func (d *Definition) Clone() *Definition {
	c := *d
	c.Inputs = maps.Clone(d.Inputs)
	c.Outputs = maps.Clone(d.Outputs)
	return &c
}

func (d *Definition) validate() error {
	if d.Name == "" {
		return fmt.Errorf("component in %s has no name", d.SourcePath)
	}
	if d.Type == "" {
		d.Type = "command"
	}
	for _, ports := range []map[string]Port{d.Inputs, d.Outputs} {
		for name, p := range ports {
			if !validPortType(p.Type) {
				return fmt.Errorf("component '%s' (%s): port '%s' has unknown type '%s'", d.Name, d.SourcePath, name, p.Type)
			}
		}
	}
	for name, p := range d.Outputs {
		if p.IsLiteral() {
			return fmt.Errorf("component '%s' (%s): output '%s' must be a data port, got '%s'", d.Name, d.SourcePath, name, p.Type)
		}
	}
	return nil
}
