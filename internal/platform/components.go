package platform

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/specialistvlad/amlpipe/internal/component"
	"github.com/specialistvlad/amlpipe/internal/ctxlog"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

type componentVersion struct {
	ID         string                `json:"id,omitempty"`
	Properties componentVersionProps `json:"properties"`
}

type componentVersionProps struct {
	ComponentSpec componentSpec `json:"componentSpec"`
}

type componentSpec struct {
	Name        string              `json:"name"`
	Version     string              `json:"version"`
	DisplayName string              `json:"display_name,omitempty"`
	Type        string              `json:"type"`
	Description string              `json:"description,omitempty"`
	Command     string              `json:"command,omitempty"`
	Code        string              `json:"code,omitempty"`
	Environment string              `json:"environment,omitempty"`
	Inputs      map[string]portSpec `json:"inputs,omitempty"`
	Outputs     map[string]portSpec `json:"outputs,omitempty"`
}

type portSpec struct {
	Type        string          `json:"type"`
	Description string          `json:"description,omitempty"`
	Optional    bool            `json:"optional,omitempty"`
	Mode        string          `json:"mode,omitempty"`
	Default     json.RawMessage `json:"default,omitempty"`
}

// RegisterComponent registers def under its own name and version and returns
// the resource ID jobs use to refer to it.
func (c *RESTClient) RegisterComponent(ctx context.Context, def *component.Definition) (string, error) {
	spec, err := newComponentSpec(def)
	if err != nil {
		return "", err
	}

	req, err := c.request(ctx)
	if err != nil {
		return "", err
	}
	var created componentVersion
	resp, err := req.
		SetPathParams(map[string]string{"name": spec.Name, "version": spec.Version}).
		SetBody(componentVersion{Properties: componentVersionProps{ComponentSpec: spec}}).
		SetResult(&created).
		Put(workspacePath + "/components/{name}/versions/{version}")
	if err := check(resp, err); err != nil {
		return "", fmt.Errorf("failed to register component %s: %w", def.Name, err)
	}

	id := created.ID
	if id == "" {
		id = fmt.Sprintf("%s/components/%s/versions/%s", c.workspace.ResourceID(), spec.Name, spec.Version)
	}
	ctxlog.FromContext(ctx).Debug("Component registered.", "name", spec.Name, "version", spec.Version, "id", id)
	return id, nil
}

func newComponentSpec(def *component.Definition) (componentSpec, error) {
	spec := componentSpec{
		Name:        def.Name,
		Version:     def.Version,
		DisplayName: def.DisplayName,
		Type:        def.Type,
		Description: def.Description,
		Command:     def.Command,
		Code:        def.Code,
		Environment: def.Environment,
		Inputs:      make(map[string]portSpec, len(def.Inputs)),
		Outputs:     make(map[string]portSpec, len(def.Outputs)),
	}
	if spec.Version == "" {
		spec.Version = "1"
	}

	for name, p := range def.Inputs {
		ps := portSpec{Type: p.Type, Description: p.Description, Optional: p.Optional, Mode: p.Mode}
		if p.Default != nil {
			raw, err := ctyjson.Marshal(*p.Default, p.Default.Type())
			if err != nil {
				return componentSpec{}, fmt.Errorf("component %s: failed to encode default of input '%s': %w", def.Name, name, err)
			}
			ps.Default = raw
		}
		spec.Inputs[name] = ps
	}
	for name, p := range def.Outputs {
		spec.Outputs[name] = portSpec{Type: p.Type, Description: p.Description, Mode: p.Mode}
	}
	return spec, nil
}
