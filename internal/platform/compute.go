package platform

import (
	"context"
	"errors"
	"fmt"

	"github.com/specialistvlad/amlpipe/internal/ctxlog"
)

// ComputeSpec describes the cluster to create when it does not exist yet.
type ComputeSpec struct {
	Name   string
	Size   string
	Region string
	// MinInstances and MaxInstances bound the autoscaler.
	MinInstances int
	MaxInstances int
	// IdleSecondsBeforeScaleDown is how long an idle node is kept.
	IdleSecondsBeforeScaleDown int
}

// Compute is a cluster in the workspace.
type Compute struct {
	Name    string
	ID      string
	State   string
	Created bool
}

type computeResource struct {
	ID         string            `json:"id,omitempty"`
	Name       string            `json:"name,omitempty"`
	Location   string            `json:"location,omitempty"`
	Properties computeProperties `json:"properties"`
}

type computeProperties struct {
	ComputeType       string              `json:"computeType"`
	ProvisioningState string              `json:"provisioningState,omitempty"`
	Properties        *amlComputeSettings `json:"properties,omitempty"`
}

type amlComputeSettings struct {
	VMSize        string        `json:"vmSize"`
	VMPriority    string        `json:"vmPriority"`
	ScaleSettings scaleSettings `json:"scaleSettings"`
}

type scaleSettings struct {
	MinNodeCount                int    `json:"minNodeCount"`
	MaxNodeCount                int    `json:"maxNodeCount"`
	NodeIdleTimeBeforeScaleDown string `json:"nodeIdleTimeBeforeScaleDown"`
}

func (s ComputeSpec) validate() error {
	if s.Name == "" {
		return errors.New("cluster name is required")
	}
	if s.MinInstances < 0 || s.MaxInstances < s.MinInstances {
		return fmt.Errorf("invalid cluster scale range: min %d, max %d", s.MinInstances, s.MaxInstances)
	}
	if s.IdleSecondsBeforeScaleDown < 0 {
		return fmt.Errorf("idle time before scale down must not be negative, got %d", s.IdleSecondsBeforeScaleDown)
	}
	return nil
}

// EnsureCompute returns the named cluster, creating it from spec on 404.
func (c *RESTClient) EnsureCompute(ctx context.Context, spec ComputeSpec) (*Compute, error) {
	logger := ctxlog.FromContext(ctx).With("cluster", spec.Name)
	if err := spec.validate(); err != nil {
		return nil, err
	}

	existing, err := c.getCompute(ctx, spec.Name)
	if err == nil {
		logger.Info("Using existing compute cluster.", "state", existing.State)
		return existing, nil
	}
	if !IsNotFound(err) {
		return nil, fmt.Errorf("failed to look up compute %s: %w", spec.Name, err)
	}

	logger.Info("Creating compute cluster.", "size", spec.Size, "region", spec.Region,
		"min", spec.MinInstances, "max", spec.MaxInstances)

	body := computeResource{
		Location: spec.Region,
		Properties: computeProperties{
			ComputeType: "AmlCompute",
			Properties: &amlComputeSettings{
				VMSize:     spec.Size,
				VMPriority: "Dedicated",
				ScaleSettings: scaleSettings{
					MinNodeCount:                spec.MinInstances,
					MaxNodeCount:                spec.MaxInstances,
					NodeIdleTimeBeforeScaleDown: fmt.Sprintf("PT%dS", spec.IdleSecondsBeforeScaleDown),
				},
			},
		},
	}

	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}
	var created computeResource
	resp, err := req.
		SetPathParam("name", spec.Name).
		SetBody(body).
		SetResult(&created).
		Put(workspacePath + "/computes/{name}")
	if err := check(resp, err); err != nil {
		return nil, fmt.Errorf("failed to create compute %s: %w", spec.Name, err)
	}

	out := toCompute(spec.Name, created)
	out.Created = true
	return out, nil
}

func (c *RESTClient) getCompute(ctx context.Context, name string) (*Compute, error) {
	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}
	var res computeResource
	resp, err := req.
		SetPathParam("name", name).
		SetResult(&res).
		Get(workspacePath + "/computes/{name}")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return toCompute(name, res), nil
}

func toCompute(name string, res computeResource) *Compute {
	out := &Compute{Name: name, ID: res.ID, State: res.Properties.ProvisioningState}
	if res.Name != "" {
		out.Name = res.Name
	}
	return out
}
