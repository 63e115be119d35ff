package platform

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/specialistvlad/amlpipe/internal/ctxlog"
)

// EnvironmentSpec describes the execution environment the steps run in.
type EnvironmentSpec struct {
	Name string
	// Image is the base container image.
	Image string
	// CondaFile is the conda specification content, not its path.
	CondaFile   string
	Description string
}

// Environment is a registered environment version.
type Environment struct {
	Name    string
	Version string
	ID      string
	Created bool
}

// Reference returns the form steps use to refer to the environment.
func (e Environment) Reference() string {
	return fmt.Sprintf("azureml:%s:%s", e.Name, e.Version)
}

type environmentVersion struct {
	ID         string                 `json:"id,omitempty"`
	Name       string                 `json:"name,omitempty"`
	Properties environmentVersionProp `json:"properties"`
}

type environmentVersionProp struct {
	Image       string `json:"image,omitempty"`
	CondaFile   string `json:"condaFile,omitempty"`
	Description string `json:"description,omitempty"`
}

// EnsureEnvironment reuses the latest version of the named environment when
// its image and conda specification match spec. Otherwise a new version is
// created, numbered one above the latest.
func (c *RESTClient) EnsureEnvironment(ctx context.Context, spec EnvironmentSpec) (*Environment, error) {
	logger := ctxlog.FromContext(ctx).With("environment", spec.Name)
	if spec.Name == "" {
		return nil, errors.New("environment name is required")
	}
	if spec.Image == "" {
		return nil, errors.New("environment base image is required")
	}

	latest, err := c.latestEnvironment(ctx, spec.Name)
	if err != nil && !IsNotFound(err) {
		return nil, fmt.Errorf("failed to look up environment %s: %w", spec.Name, err)
	}

	next := "1"
	if latest != nil {
		if latest.Properties.Image == spec.Image && sameConda(latest.Properties.CondaFile, spec.CondaFile) {
			logger.Debug("Reusing environment version.", "version", latest.Name)
			return &Environment{Name: spec.Name, Version: latest.Name, ID: latest.ID}, nil
		}
		n, err := strconv.Atoi(latest.Name)
		if err != nil {
			return nil, fmt.Errorf("cannot derive next version of environment %s from '%s'", spec.Name, latest.Name)
		}
		next = strconv.Itoa(n + 1)
	}

	logger.Info("Creating environment version.", "version", next, "image", spec.Image)
	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}
	var created environmentVersion
	resp, err := req.
		SetPathParams(map[string]string{"name": spec.Name, "version": next}).
		SetBody(environmentVersion{Properties: environmentVersionProp{
			Image:       spec.Image,
			CondaFile:   spec.CondaFile,
			Description: spec.Description,
		}}).
		SetResult(&created).
		Put(workspacePath + "/environments/{name}/versions/{version}")
	if err := check(resp, err); err != nil {
		return nil, fmt.Errorf("failed to create environment %s version %s: %w", spec.Name, next, err)
	}

	return &Environment{Name: spec.Name, Version: next, ID: created.ID, Created: true}, nil
}

func (c *RESTClient) latestEnvironment(ctx context.Context, name string) (*environmentVersion, error) {
	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}
	var list versionList[environmentVersion]
	resp, err := latestQuery(req).
		SetPathParam("name", name).
		SetResult(&list).
		Get(workspacePath + "/environments/{name}/versions")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	if len(list.Value) == 0 {
		return nil, nil
	}
	return &list.Value[0], nil
}

// sameConda compares conda specifications ignoring surrounding whitespace
// and line-ending differences.
func sameConda(a, b string) bool {
	norm := func(s string) string {
		return strings.TrimSpace(strings.ReplaceAll(s, "\r\n", "\n"))
	}
	return norm(a) == norm(b)
}
