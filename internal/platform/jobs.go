package platform

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/specialistvlad/amlpipe/internal/ctxlog"
	"github.com/specialistvlad/amlpipe/internal/monitor"
	"github.com/specialistvlad/amlpipe/internal/pipeline"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// JobRequest is a job graph ready for submission.
type JobRequest struct {
	Experiment string
	Job        *pipeline.Job
	// ComponentIDs maps step names to registered component IDs.
	ComponentIDs map[string]string
}

// JobInfo is what the service reports about a job.
type JobInfo struct {
	Name      string
	Status    monitor.Status
	StudioURL string
}

type jobResource struct {
	ID         string        `json:"id,omitempty"`
	Name       string        `json:"name,omitempty"`
	Properties jobProperties `json:"properties"`
}

type jobProperties struct {
	JobType        string                `json:"jobType"`
	DisplayName    string                `json:"displayName,omitempty"`
	ExperimentName string                `json:"experimentName,omitempty"`
	ComputeID      string                `json:"computeId,omitempty"`
	Tags           map[string]string     `json:"tags,omitempty"`
	Settings       *jobSettings          `json:"settings,omitempty"`
	Inputs         map[string]jobInput   `json:"inputs,omitempty"`
	Outputs        map[string]jobOutput  `json:"outputs,omitempty"`
	Jobs           map[string]stepJob    `json:"jobs,omitempty"`
	Status         string                `json:"status,omitempty"`
	Services       map[string]jobService `json:"services,omitempty"`
}

type jobSettings struct {
	DefaultCompute   string `json:"default_compute"`
	DefaultDatastore string `json:"default_datastore"`
	ForceRerun       bool   `json:"force_rerun"`
}

type jobInput struct {
	JobInputType string `json:"jobInputType"`
	URI          string `json:"uri"`
}

type jobOutput struct {
	JobOutputType string `json:"jobOutputType"`
	Mode          string `json:"mode,omitempty"`
}

type jobService struct {
	Endpoint string `json:"endpoint"`
}

type stepJob struct {
	Type        string                 `json:"type"`
	Name        string                 `json:"name"`
	ComponentID string                 `json:"componentId"`
	Inputs      map[string]stepBinding `json:"inputs,omitempty"`
	Outputs     map[string]stepBinding `json:"outputs,omitempty"`
}

// stepBinding is a literal or a data-binding expression.
type stepBinding struct {
	JobInputType string `json:"job_input_type,omitempty"`
	Type         string `json:"type,omitempty"`
	Value        string `json:"value"`
}

// modeNames maps definition-file access modes to their REST names.
var modeNames = map[string]string{
	"ro_mount":      "ReadOnlyMount",
	"rw_mount":      "ReadWriteMount",
	"download":      "Download",
	"upload":        "Upload",
	"direct":        "Direct",
	"eval_mount":    "EvalMount",
	"eval_download": "EvalDownload",
}

// SubmitJob creates the job under a freshly generated name.
func (c *RESTClient) SubmitJob(ctx context.Context, jr JobRequest) (*JobInfo, error) {
	body, err := newJobResource(c.workspace, jr)
	if err != nil {
		return nil, err
	}

	name := uuid.NewString()
	logger := ctxlog.FromContext(ctx).With("job", name)
	logger.Debug("Submitting job.", "experiment", jr.Experiment, "steps", len(body.Properties.Jobs))

	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}
	var created jobResource
	resp, err := req.
		SetPathParam("name", name).
		SetBody(body).
		SetResult(&created).
		Put(workspacePath + "/jobs/{name}")
	if err := check(resp, err); err != nil {
		return nil, fmt.Errorf("failed to submit job: %w", err)
	}

	info := toJobInfo(created)
	if info.Name == "" {
		info.Name = name
	}
	return info, nil
}

// GetJob reads the current state of a job.
func (c *RESTClient) GetJob(ctx context.Context, name string) (*JobInfo, error) {
	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}
	var res jobResource
	resp, err := req.
		SetPathParam("name", name).
		SetResult(&res).
		Get(workspacePath + "/jobs/{name}")
	if err := check(resp, err); err != nil {
		return nil, fmt.Errorf("failed to get job %s: %w", name, err)
	}

	info := toJobInfo(res)
	if info.Name == "" {
		info.Name = name
	}
	return info, nil
}

func toJobInfo(res jobResource) *JobInfo {
	info := &JobInfo{Name: res.Name, Status: monitor.ParseStatus(res.Properties.Status)}
	if studio, ok := res.Properties.Services["Studio"]; ok {
		info.StudioURL = studio.Endpoint
	}
	return info
}

// newJobResource translates an assembled job into the REST payload.
func newJobResource(ws Workspace, jr JobRequest) (jobResource, error) {
	job := jr.Job
	if job == nil {
		return jobResource{}, errors.New("job is required")
	}

	computeID := ws.ResourceID() + "/computes/" + job.Settings.DefaultCompute
	props := jobProperties{
		JobType:        "Pipeline",
		DisplayName:    job.DisplayName,
		ExperimentName: jr.Experiment,
		ComputeID:      computeID,
		Tags:           job.Tags,
		Settings: &jobSettings{
			DefaultCompute:   computeID,
			DefaultDatastore: ws.ResourceID() + "/datastores/" + job.Settings.DefaultDatastore,
			ForceRerun:       job.Settings.ForceRerun,
		},
		Inputs:  make(map[string]jobInput, len(job.Inputs)),
		Outputs: make(map[string]jobOutput, len(job.Outputs)),
		Jobs:    make(map[string]stepJob, len(job.Steps)),
	}

	for _, in := range job.Inputs {
		props.Inputs[in.Name] = jobInput{JobInputType: in.Type, URI: in.Path}
	}

	stepOutputs := make(map[string]map[string]stepBinding)
	for _, out := range job.Outputs {
		o := jobOutput{JobOutputType: out.Type}
		if out.Mode != "" {
			mode, ok := modeNames[out.Mode]
			if !ok {
				return jobResource{}, fmt.Errorf("output %s has unknown mode '%s'", out.Name, out.Mode)
			}
			o.Mode = mode
		}
		props.Outputs[out.Name] = o

		if stepOutputs[out.Source.Step] == nil {
			stepOutputs[out.Source.Step] = make(map[string]stepBinding)
		}
		stepOutputs[out.Source.Step][out.Source.Port] = stepBinding{
			Type:  "literal",
			Value: fmt.Sprintf("${{parent.outputs.%s}}", out.Name),
		}
	}

	for _, step := range job.Steps {
		id, ok := jr.ComponentIDs[step.Name]
		if !ok || id == "" {
			return jobResource{}, fmt.Errorf("step %s has no registered component", step.Name)
		}
		sj := stepJob{
			Type:        step.Component.Type,
			Name:        step.Name,
			ComponentID: id,
			Inputs:      make(map[string]stepBinding, len(step.Inputs)),
			Outputs:     stepOutputs[step.Name],
		}
		for _, b := range step.Inputs {
			value, err := bindingValue(b)
			if err != nil {
				return jobResource{}, fmt.Errorf("step %s: %w", step.Name, err)
			}
			sj.Inputs[b.Target.Port] = stepBinding{JobInputType: "literal", Value: value}
		}
		props.Jobs[step.Name] = sj
	}

	return jobResource{Properties: props}, nil
}

// bindingValue renders a binding as the service's expression syntax, or as
// the literal's string form.
func bindingValue(b pipeline.Binding) (string, error) {
	switch {
	case b.IsLiteral():
		s, err := convert.Convert(*b.Literal, cty.String)
		if err != nil {
			return "", fmt.Errorf("input '%s': %w", b.Target.Port, err)
		}
		if s.IsNull() {
			return "", fmt.Errorf("input '%s' is null", b.Target.Port)
		}
		return s.AsString(), nil
	case b.FromPipeline():
		return fmt.Sprintf("${{parent.inputs.%s}}", b.Source.Port), nil
	default:
		return fmt.Sprintf("${{parent.jobs.%s.outputs.%s}}", b.Source.Step, b.Source.Port), nil
	}
}
