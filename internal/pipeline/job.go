package pipeline

import (
	"fmt"

	"github.com/specialistvlad/amlpipe/internal/component"
	"github.com/specialistvlad/amlpipe/internal/dag"
	"github.com/zclconf/go-cty/cty"
)

// Step names as they appear in the submitted job graph.
const (
	StepPrepare   = "prepare_sample_data"
	StepTransform = "transform_sample_data"
	StepTrain     = "train_with_sample_data"
	StepPredict   = "predict_with_sample_data"
	StepScore     = "score_with_sample_data"
	StepRegister  = "register_model"
)

// InputName is the single pipeline-level input carrying the dataset.
const InputName = "pipeline_job_input"

// DefaultDatastore is the datastore used for step outputs.
const DefaultDatastore = "workspaceblobstore"

// ModeReadWriteMount is the access mode of the prepped-data output.
const ModeReadWriteMount = "rw_mount"

// Ref names a port. An empty Step refers to the pipeline itself.
type Ref struct {
	Step string
	Port string
}

func (r Ref) String() string {
	if r.Step == "" {
		return "parent." + r.Port
	}
	return r.Step + "." + r.Port
}

// Binding feeds one step input, either from another port or from a literal.
type Binding struct {
	Target Ref
	// Source is the zero Ref for literal bindings.
	Source  Ref
	Literal *cty.Value
}

// IsLiteral reports whether the binding carries a plain value.
func (b Binding) IsLiteral() bool {
	return b.Literal != nil
}

// FromPipeline reports whether the binding reads a pipeline-level input.
func (b Binding) FromPipeline() bool {
	return b.Literal == nil && b.Source.Step == ""
}

// Edge is a step output connected to a step input.
type Edge struct {
	From Ref
	To   Ref
}

// Settings are the job-wide execution settings.
type Settings struct {
	DefaultCompute   string
	DefaultDatastore string
	ForceRerun       bool
}

// Input is a pipeline-level input.
type Input struct {
	Name string
	Type string
	Path string
}

// Output is a pipeline-level output and the step output that produces it.
type Output struct {
	Name   string
	Type   string
	Mode   string
	Source Ref
}

// StepInvocation is one stage of the job.
type StepInvocation struct {
	Name      string
	Stage     component.Stage
	Component *component.Definition
	Inputs    []Binding
}

// Binding returns the binding of the named input, if any.
func (s *StepInvocation) Binding(input string) (Binding, bool) {
	for _, b := range s.Inputs {
		if b.Target.Port == input {
			return b, true
		}
	}
	return Binding{}, false
}

// Job is a fully wired job graph.
type Job struct {
	DisplayName string
	Tags        map[string]string
	Settings    Settings
	Inputs      []Input
	Outputs     []Output
	Steps       []*StepInvocation

	chain []Edge
	graph *dag.Graph
}

// Step returns the invocation with the given name.
func (j *Job) Step(name string) (*StepInvocation, bool) {
	for _, s := range j.Steps {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}

// Chain returns the primary edges linking consecutive stages, in stage order.
func (j *Job) Chain() []Edge {
	out := make([]Edge, len(j.chain))
	copy(out, j.chain)
	return out
}

// Edges returns every step-to-step data binding in declaration order.
func (j *Job) Edges() []Edge {
	var edges []Edge
	for _, s := range j.Steps {
		for _, b := range s.Inputs {
			if b.IsLiteral() || b.FromPipeline() {
				continue
			}
			edges = append(edges, Edge{From: b.Source, To: b.Target})
		}
	}
	return edges
}

// Upstream returns the names of the steps whose outputs step consumes.
func (j *Job) Upstream(step string) ([]string, error) {
	if j.graph == nil {
		return nil, fmt.Errorf("job graph has not been built")
	}
	return j.graph.Dependencies(step)
}

// Downstream returns the names of the steps that consume outputs of step.
func (j *Job) Downstream(step string) ([]string, error) {
	if j.graph == nil {
		return nil, fmt.Errorf("job graph has not been built")
	}
	return j.graph.Dependents(step)
}

// Order returns the step names in execution order.
func (j *Job) Order() ([]string, error) {
	if j.graph == nil {
		return nil, fmt.Errorf("job graph has not been built")
	}
	return j.graph.TopologicalOrder()
}
