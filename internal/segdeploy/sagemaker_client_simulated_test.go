package segdeploy

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// simEndpoint tracks the scripted lifecycle of one simulated endpoint.
// While settleIn > 0 the endpoint reports its transitional state; each
// describe decrements the counter until it settles to settleTo.
type simEndpoint struct {
	state    EndpointState
	configID string
	settleIn int
	settleTo EndpointState
}

// simulatedPlatform is an in-memory stand-in for SageMaker. It implements
// platformClient, artifactStore, recordSink, and pipelineClient so the
// full deploy workflow can run without AWS credentials.
type simulatedPlatform struct {
	mu        sync.Mutex
	region    string
	accountID string

	// settleAfter is how many describes a transitional endpoint takes to
	// settle. Zero settles on the first describe after the transition.
	settleAfter int
	// failTransitions makes every create/update settle to FAILED.
	failTransitions bool

	endpoints    map[string]*simEndpoint
	configs      map[string]EndpointConfigSpec
	models       map[string]ModelSpec
	trainingJobs map[string]TrainedArtifact
	artifacts    map[string]bool
	records      map[string][]byte
	pipelines    map[string]string
	executions   []string
}

func newSimulatedPlatform() *simulatedPlatform {
	return &simulatedPlatform{
		region:       "eu-west-1",
		accountID:    "123456789012",
		endpoints:    map[string]*simEndpoint{},
		configs:      map[string]EndpointConfigSpec{},
		models:       map[string]ModelSpec{},
		trainingJobs: map[string]TrainedArtifact{},
		artifacts:    map[string]bool{},
		records:      map[string][]byte{},
		pipelines:    map[string]string{},
	}
}

func (p *simulatedPlatform) arn(resource, name string) string {
	return fmt.Sprintf("arn:aws:sagemaker:%s:%s:%s/%s", p.region, p.accountID, resource, name)
}

// seedEndpoint installs an endpoint in a settled state.
func (p *simulatedPlatform) seedEndpoint(name string, state EndpointState, configID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.endpoints[name] = &simEndpoint{state: state, configID: configID}
}

// seedTrainingJob installs a completed training job with an artifact that
// HeadArtifact will find.
func (p *simulatedPlatform) seedTrainingJob(jobID, artifactURI string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.trainingJobs[jobID] = TrainedArtifact{
		ArtifactURI:   artifactURI,
		TrainingJobID: jobID,
		CreatedAt:     time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC),
	}
	p.artifacts[artifactURI] = true
}

func (p *simulatedPlatform) settleTarget() EndpointState {
	if p.failTransitions {
		return StateFailed
	}
	return StateInService
}

// ---------- platformClient ----------

func (p *simulatedPlatform) DescribeEndpoint(_ context.Context, name string) (EndpointDescriptor, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ep, ok := p.endpoints[name]
	if !ok {
		return EndpointDescriptor{}, errEndpointNotFound
	}
	if ep.state == StateCreating || ep.state == StateUpdating {
		if ep.settleIn > 0 {
			ep.settleIn--
		} else {
			ep.state = ep.settleTo
		}
	}
	return EndpointDescriptor{Name: name, CurrentState: ep.state, ActiveConfigID: ep.configID}, nil
}

func (p *simulatedPlatform) CreateEndpoint(_ context.Context, name, configID string, _ map[string]string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.endpoints[name]; exists {
		return "", fmt.Errorf("ResourceInUse: endpoint %q already exists", name)
	}
	if _, ok := p.configs[configID]; !ok {
		return "", fmt.Errorf("ValidationException: Could not find endpoint configuration %q", configID)
	}
	p.endpoints[name] = &simEndpoint{
		state:    StateCreating,
		configID: configID,
		settleIn: p.settleAfter,
		settleTo: p.settleTarget(),
	}
	return p.arn("endpoint", name), nil
}

func (p *simulatedPlatform) UpdateEndpoint(_ context.Context, name, configID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ep, ok := p.endpoints[name]
	if !ok {
		return "", errEndpointNotFound
	}
	if ep.state != StateInService {
		return "", fmt.Errorf("ResourceInUse: endpoint %q is %s", name, ep.state)
	}
	ep.state = StateUpdating
	ep.configID = configID
	ep.settleIn = p.settleAfter
	ep.settleTo = p.settleTarget()
	return p.arn("endpoint", name), nil
}

func (p *simulatedPlatform) DeleteEndpoint(_ context.Context, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.endpoints, name)
	return nil
}

func (p *simulatedPlatform) DescribeEndpointConfig(_ context.Context, configID string) (EndpointConfigSpec, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	spec, ok := p.configs[configID]
	if !ok {
		return EndpointConfigSpec{}, errEndpointNotFound
	}
	return spec, nil
}

func (p *simulatedPlatform) CreateModel(_ context.Context, spec ModelSpec, _ map[string]string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.models[spec.ModelName]; exists {
		return "", fmt.Errorf("ResourceInUse: model %q already exists", spec.ModelName)
	}
	p.models[spec.ModelName] = spec
	return p.arn("model", spec.ModelName), nil
}

func (p *simulatedPlatform) CreateEndpointConfig(_ context.Context, spec EndpointConfigSpec, _ map[string]string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.configs[spec.ConfigID]; exists {
		return "", fmt.Errorf("ResourceInUse: endpoint config %q already exists", spec.ConfigID)
	}
	if _, ok := p.models[spec.ModelName]; !ok {
		return "", fmt.Errorf("ValidationException: Could not find model %q", spec.ModelName)
	}
	p.configs[spec.ConfigID] = spec
	return p.arn("endpoint-config", spec.ConfigID), nil
}

func (p *simulatedPlatform) DescribeTrainingJob(_ context.Context, jobID string) (TrainedArtifact, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	artifact, ok := p.trainingJobs[jobID]
	if !ok {
		return TrainedArtifact{}, fmt.Errorf("ValidationException: Could not find training job %q", jobID)
	}
	return artifact, nil
}

// ---------- artifactStore ----------

func (p *simulatedPlatform) HeadArtifact(_ context.Context, uri string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.artifacts[uri] {
		return errors.New("NotFound: no such object")
	}
	return nil
}

// ---------- recordSink ----------

func (p *simulatedPlatform) PutRecord(_ context.Context, key string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records[key] = append([]byte(nil), body...)
	return nil
}

// ---------- pipelineClient ----------

func (p *simulatedPlatform) CreatePipeline(_ context.Context, name, definition, _ string, _ map[string]string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.pipelines[name]; exists {
		return "", fmt.Errorf("ValidationException: Pipeline names must be unique within an account (%q)", name)
	}
	p.pipelines[name] = definition
	return p.arn("pipeline", name), nil
}

func (p *simulatedPlatform) UpdatePipeline(_ context.Context, name, definition, _ string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.pipelines[name]; !exists {
		return "", fmt.Errorf("ValidationException: Could not find pipeline %q", name)
	}
	p.pipelines[name] = definition
	return p.arn("pipeline", name), nil
}

func (p *simulatedPlatform) StartPipelineExecution(_ context.Context, name string, _ map[string]string, token string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.pipelines[name]; !exists {
		return "", fmt.Errorf("ValidationException: Could not find pipeline %q", name)
	}
	arn := p.arn("pipeline", name) + "/execution/" + token[:8]
	p.executions = append(p.executions, arn)
	return arn, nil
}

// testConfig returns a valid config with aggressive polling so waits
// complete in milliseconds.
func testConfig() *Config {
	cfg := &Config{
		Region:         "eu-west-1",
		RoleARN:        "arn:aws:iam::123456789012:role/seg-deploy",
		BucketName:     "seg-models",
		ProjectName:    "seg",
		InferenceImage: "123456789012.dkr.ecr.eu-west-1.amazonaws.com/sklearn-inference:1.2-1",
	}
	cfg.applyDefaults()
	cfg.Endpoint.PollInterval = time.Millisecond
	cfg.Endpoint.MaxWait = 100 * time.Millisecond
	return cfg
}

// failingSink always errors, for exercising best-effort recording.
type failingSink struct{}

func (failingSink) PutRecord(context.Context, string, []byte) error {
	return errors.New("AccessDenied: cannot write record")
}
