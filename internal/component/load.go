// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package component

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/specialistvlad/amlpipe/internal/ctxlog"
)

// Extensions lists the file extensions LoadFile understands.
var Extensions = []string{".yml", ".yaml", ".hcl"}

// LoadFile reads a single step definition, choosing the decoder from the
// file extension.
func LoadFile(ctx context.Context, path string) (*Definition, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading component definition.", "path", path)

	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read component %s: %w", path, err)
	}

	var def *Definition
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		def, err = decodeYAML(path, src)
	case ".hcl":
		def, err = decodeHCL(path, src)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return nil, err
	}

	if err := def.validate(); err != nil {
		return nil, err
	}

	logger.Debug("Component definition loaded.", "name", def.Name, "inputs", len(def.Inputs), "outputs", len(def.Outputs))
	return def, nil
}
