package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/specialistvlad/amlpipe/internal/component"
	"github.com/specialistvlad/amlpipe/internal/ctxlog"
	"github.com/specialistvlad/amlpipe/internal/dag"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

var (
	// ErrUnknownPort is returned when the wiring names a port that the step
	// definition does not declare.
	ErrUnknownPort = errors.New("unknown port")
	// ErrUnboundInput is returned when a required step input is left unwired.
	ErrUnboundInput = errors.New("required input is not bound")
)

// Params are the per-run values the job is built from.
type Params struct {
	ClusterName string
	// EnvironmentRef, when set, replaces the environment of every step.
	EnvironmentRef    string
	DisplayName       string
	DeployEnvironment string
	BuildReference    string
	ModelName         string
	// DataAssetID is the path of the pipeline input.
	DataAssetID string
}

type stepSpec struct {
	name  string
	stage component.Stage
}

var stepSpecs = []stepSpec{
	{StepPrepare, component.StagePrep},
	{StepTransform, component.StageTransform},
	{StepTrain, component.StageTrain},
	{StepPredict, component.StagePredict},
	{StepScore, component.StageScore},
	{StepRegister, component.StageRegister},
}

// wire connects a port to a step input. Chain wires form the primary edge
// between two consecutive stages; there is exactly one per stage pair.
type wire struct {
	to    Ref
	from  Ref
	chain bool
}

var wires = []wire{
	{to: Ref{StepPrepare, "raw_data"}, from: Ref{"", InputName}},
	{to: Ref{StepTransform, "clean_data"}, from: Ref{StepPrepare, "prep_data"}, chain: true},
	{to: Ref{StepTrain, "training_data"}, from: Ref{StepTransform, "transformed_data"}, chain: true},
	{to: Ref{StepPredict, "model_input"}, from: Ref{StepTrain, "model_output"}, chain: true},
	{to: Ref{StepPredict, "test_data"}, from: Ref{StepTrain, "test_data"}},
	{to: Ref{StepScore, "predictions"}, from: Ref{StepPredict, "predictions"}, chain: true},
	{to: Ref{StepScore, "model"}, from: Ref{StepTrain, "model_output"}},
	{to: Ref{StepRegister, "model_metadata"}, from: Ref{StepTrain, "model_metadata"}},
	{to: Ref{StepRegister, "score_report"}, from: Ref{StepScore, "score_report"}, chain: true},
}

type outputSpec struct {
	name   string
	source Ref
	mode   string
}

var outputSpecs = []outputSpec{
	{"pipeline_job_prepped_data", Ref{StepPrepare, "prep_data"}, ModeReadWriteMount},
	{"pipeline_job_transformed_data", Ref{StepTransform, "transformed_data"}, ""},
	{"pipeline_job_trained_model", Ref{StepTrain, "model_output"}, ""},
	{"pipeline_job_test_data", Ref{StepTrain, "test_data"}, ""},
	{"pipeline_job_predictions", Ref{StepPredict, "predictions"}, ""},
	{"pipeline_job_score_report", Ref{StepScore, "score_report"}, ""},
}

// Build wires the step definitions in set into a job.
func Build(ctx context.Context, p Params, set *component.Set) (*Job, error) {
	logger := ctxlog.FromContext(ctx)

	if set == nil {
		return nil, errors.New("component set is required")
	}
	if p.EnvironmentRef != "" {
		set = set.WithEnvironment(p.EnvironmentRef)
	}

	job := &Job{
		DisplayName: p.DisplayName,
		Tags: map[string]string{
			"environment":     p.DeployEnvironment,
			"build_reference": p.BuildReference,
		},
		Settings: Settings{
			DefaultCompute:   p.ClusterName,
			DefaultDatastore: DefaultDatastore,
			ForceRerun:       true,
		},
		Inputs: []Input{{Name: InputName, Type: component.TypeURIFolder, Path: p.DataAssetID}},
		graph:  dag.New(),
	}

	steps := make(map[string]*StepInvocation, len(stepSpecs))
	for _, spec := range stepSpecs {
		step := &StepInvocation{
			Name:      spec.name,
			Stage:     spec.stage,
			Component: set.Get(spec.stage),
		}
		steps[spec.name] = step
		job.Steps = append(job.Steps, step)
		job.graph.AddNode(spec.name)
	}

	for _, w := range wires {
		target := steps[w.to.Step]
		if _, ok := target.Component.Input(w.to.Port); !ok {
			return nil, portError(target, "input", w.to.Port)
		}
		if w.from.Step != "" {
			source := steps[w.from.Step]
			if _, ok := source.Component.Output(w.from.Port); !ok {
				return nil, portError(source, "output", w.from.Port)
			}
			if err := job.graph.AddEdge(w.from.Step, w.to.Step); err != nil {
				return nil, err
			}
		}
		target.Inputs = append(target.Inputs, Binding{Target: w.to, Source: w.from})
		if w.chain {
			job.chain = append(job.chain, Edge{From: w.from, To: w.to})
		}
	}

	literals := []struct {
		to    Ref
		value string
	}{
		{Ref{StepRegister, "model_name"}, p.ModelName},
		{Ref{StepRegister, "build_reference"}, p.BuildReference},
	}
	for _, l := range literals {
		target := steps[l.to.Step]
		val, err := literalValue(target, l.to.Port, l.value)
		if err != nil {
			return nil, err
		}
		target.Inputs = append(target.Inputs, Binding{Target: l.to, Literal: &val})
	}

	for _, o := range outputSpecs {
		source := steps[o.source.Step]
		port, ok := source.Component.Output(o.source.Port)
		if !ok {
			return nil, portError(source, "output", o.source.Port)
		}
		mode := o.mode
		if mode == "" {
			mode = port.Mode
		}
		job.Outputs = append(job.Outputs, Output{Name: o.name, Type: port.Type, Mode: mode, Source: o.source})
	}

	for _, step := range job.Steps {
		if err := checkRequiredInputs(step); err != nil {
			return nil, err
		}
	}

	if err := job.graph.DetectCycles(); err != nil {
		return nil, fmt.Errorf("invalid job graph: %w", err)
	}

	for _, step := range job.Steps {
		upstream, err := job.Upstream(step.Name)
		if err != nil {
			return nil, err
		}
		downstream, err := job.Downstream(step.Name)
		if err != nil {
			return nil, err
		}
		logger.Debug("Step wired.", "step", step.Name, "component", step.Component.Name, "after", upstream, "before", downstream)
	}
	logger.Debug("Job graph assembled.", "steps", job.graph.Len(), "edges", job.graph.EdgeCount(), "chain", len(job.chain))
	return job, nil
}

func portError(step *StepInvocation, kind, port string) error {
	return fmt.Errorf("%w: step '%s' (component '%s', %s) has no %s named '%s'",
		ErrUnknownPort, step.Name, step.Component.Name, step.Component.SourcePath, kind, port)
}

// literalValue converts a parameter to the declared type of a literal input.
func literalValue(step *StepInvocation, input, raw string) (cty.Value, error) {
	port, ok := step.Component.Input(input)
	if !ok {
		return cty.NilVal, portError(step, "input", input)
	}
	ty, err := port.CtyType()
	if err != nil {
		return cty.NilVal, fmt.Errorf("step '%s': %w", step.Name, err)
	}
	val, err := convert.Convert(cty.StringVal(raw), ty)
	if err != nil {
		return cty.NilVal, fmt.Errorf("step '%s': value %q for input '%s' is not a valid %s: %w", step.Name, raw, input, port.Type, err)
	}
	return val, nil
}

// checkRequiredInputs reports the first declared input that is neither bound,
// optional, nor defaulted. Inputs are checked in name order.
func checkRequiredInputs(step *StepInvocation) error {
	names := make([]string, 0, len(step.Component.Inputs))
	for name := range step.Component.Inputs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		port := step.Component.Inputs[name]
		if port.Optional || port.Default != nil {
			continue
		}
		if _, bound := step.Binding(name); !bound {
			return fmt.Errorf("%w: step '%s' input '%s'", ErrUnboundInput, step.Name, name)
		}
	}
	return nil
}
