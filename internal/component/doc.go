// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// Package component loads the step definitions that make up a training
// pipeline. A definition describes a unit of work the remote service runs:
// the command, the code it ships, and the named inputs and outputs it
// declares.
//
// # Why declared ports matter
//
// The pipeline assembler never looks inside a step. All it can do is connect
// one step's output to another step's input by name. Loading the declared
// ports up front lets the assembler reject a binding to a port that does not
// exist before anything is submitted, instead of waiting for the remote
// service to fail the job minutes later.
//
// # Formats
//
// Definitions are read from either the service's native command-component
// YAML (.yml, .yaml) or an equivalent HCL block (.hcl):
//
//	component "prep_taxi_data" {
//	  display_name = "PrepTaxiData"
//	  version      = 1
//	  command      = "python prep.py --raw_data ${{inputs.raw_data}} --prep_data ${{outputs.prep_data}}"
//
//	  input "raw_data" {
//	    type = "uri_folder"
//	  }
//	  output "prep_data" {
//	    type = "uri_folder"
//	  }
//	}
//
// Literal ports (string, number, integer, boolean) are typed with cty so
// defaults and bound values can be checked against the declared type.
package component
