// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package component

import (
	"context"
	"errors"
	"fmt"

	"github.com/specialistvlad/amlpipe/internal/ctxlog"
	"github.com/specialistvlad/amlpipe/internal/fsutil"
)

// ErrMissingStage is returned when no definition file exists for a stage.
var ErrMissingStage = errors.New("missing component definition for stage")

// Stage identifies one of the six fixed pipeline stages. The string value is
// also the base name of the stage's definition file.
type Stage string

const (
	StagePrep      Stage = "prep"
	StageTransform Stage = "transform"
	StageTrain     Stage = "train"
	StagePredict   Stage = "predict"
	StageScore     Stage = "score"
	StageRegister  Stage = "register"
)

// Stages returns all stages in execution order.
func Stages() []Stage {
	return []Stage{StagePrep, StageTransform, StageTrain, StagePredict, StageScore, StageRegister}
}

// Set is the ordered collection of definitions, one per stage.
type Set struct {
	defs map[Stage]*Definition
}

// NewSet builds a Set from a definition per stage. Every stage must be present.
func NewSet(defs map[Stage]*Definition) (*Set, error) {
	s := &Set{defs: make(map[Stage]*Definition, len(defs))}
	for _, stage := range Stages() {
		def, ok := defs[stage]
		if !ok || def == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingStage, stage)
		}
		s.defs[stage] = def
	}
	if len(defs) != len(s.defs) {
		return nil, fmt.Errorf("unexpected stages in component set: got %d definitions, want %d", len(defs), len(s.defs))
	}
	return s, nil
}

// Get returns the definition for stage.
func (s *Set) Get(stage Stage) *Definition {
	return s.defs[stage]
}

// All returns the definitions in stage order.
func (s *Set) All() []*Definition {
	out := make([]*Definition, 0, len(s.defs))
	for _, stage := range Stages() {
		out = append(out, s.defs[stage])
	}
	return out
}

// WithEnvironment returns a copy of the set in which every definition runs in
// the given environment.
func (s *Set) WithEnvironment(ref string) *Set {
	out := &Set{defs: make(map[Stage]*Definition, len(s.defs))}
	for stage, def := range s.defs {
		c := def.Clone()
		c.Environment = ref
		out.defs[stage] = c
	}
	return out
}

// LoadSet loads the definition for every stage from dir. A stage's file is
// found by base name (e.g. "train.yml" or "train.hcl") directly inside dir;
// subdirectories and unrelated files are ignored.
func LoadSet(ctx context.Context, dir string) (*Set, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading component set.", "dir", dir)

	files, err := fsutil.FindFilesByExtension(dir, Extensions...)
	if err != nil {
		return nil, fmt.Errorf("failed to find component files in %s: %w", dir, err)
	}

	wanted := make(map[Stage]bool)
	for _, stage := range Stages() {
		wanted[stage] = true
	}

	paths := make(map[Stage]string)
	for _, file := range files {
		stage := Stage(fsutil.Stem(file))
		if !wanted[stage] {
			logger.Debug("Ignoring unrelated file in components directory.", "path", file)
			continue
		}
		if prev, dup := paths[stage]; dup {
			return nil, fmt.Errorf("ambiguous definitions for stage '%s': %s and %s", stage, prev, file)
		}
		paths[stage] = file
	}

	defs := make(map[Stage]*Definition, len(paths))
	for _, stage := range Stages() {
		path, ok := paths[stage]
		if !ok {
			return nil, fmt.Errorf("%w: %s (looked in %s)", ErrMissingStage, stage, dir)
		}
		def, err := LoadFile(ctx, path)
		if err != nil {
			return nil, err
		}
		defs[stage] = def
	}

	logger.Info("Component definitions loaded.", "count", len(defs), "dir", dir)
	return NewSet(defs)
}
