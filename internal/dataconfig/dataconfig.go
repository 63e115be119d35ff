// Package dataconfig reads the dataset descriptor file and picks the dataset
// registered for a deployment environment.
//
// The file is a JSON document of the form:
//
//	{
//	  "datasets": [
//	    {"DATA_PURPOSE": "training", "ENV_NAME": "dev", "DATASET_NAME": "nyc_taxi_dev"}
//	  ]
//	}
//
// Uniqueness of ENV_NAME is assumed, not enforced: when several entries match,
// the last one wins.
package dataconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ErrDatasetNotFound is returned by callers that require a dataset for the
// active environment and the file has none.
var ErrDatasetNotFound = errors.New("no dataset configured for environment")

// ErrMissingDatasetName is returned when the entry matching the environment
// has no DATASET_NAME.
var ErrMissingDatasetName = errors.New("dataset entry has no DATASET_NAME")

// Entry is a single dataset descriptor. Pointer fields distinguish a missing
// key from an empty value.
type Entry struct {
	DataPurpose *string `json:"DATA_PURPOSE"`
	EnvName     *string `json:"ENV_NAME"`
	DatasetName string  `json:"DATASET_NAME"`
}

// File is the parsed dataset configuration.
type File struct {
	Datasets []Entry `json:"datasets"`
}

// Load reads and parses the dataset configuration at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read data config %s: %w", path, err)
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse data config %s: %w", path, err)
	}
	return &f, nil
}

// Resolve returns the dataset name for env. Entries without both DATA_PURPOSE
// and ENV_NAME are ignored. A matching entry with an empty or missing
// DATASET_NAME is an error, even if a later entry would match too.
func (f *File) Resolve(env string) (string, bool, error) {
	name, found := "", false
	for i, e := range f.Datasets {
		if e.DataPurpose == nil || e.EnvName == nil {
			continue
		}
		if *e.EnvName != env {
			continue
		}
		if e.DatasetName == "" {
			return "", false, fmt.Errorf("%w: entry %d for environment '%s'", ErrMissingDatasetName, i, env)
		}
		name, found = e.DatasetName, true
	}
	return name, found, nil
}

// Resolve loads path and resolves the dataset name for env in one call.
func Resolve(path, env string) (string, bool, error) {
	f, err := Load(path)
	if err != nil {
		return "", false, err
	}
	name, ok, err := f.Resolve(env)
	if err != nil {
		return "", false, fmt.Errorf("invalid data config %s: %w", path, err)
	}
	return name, ok, nil
}
