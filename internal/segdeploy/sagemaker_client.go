package segdeploy

import (
	"context"
	"errors"
)

// errEndpointNotFound is returned by platformClient.DescribeEndpoint when
// no endpoint with the given name exists. The prober maps it to the
// ABSENT state; every other describe failure is a ProbeError.
var errEndpointNotFound = errors.New("endpoint not found")

// platformClient abstracts the serving-platform control-plane calls so
// tests can run against an in-memory implementation.
type platformClient interface {
	// DescribeEndpoint returns the live endpoint descriptor, or
	// errEndpointNotFound if no endpoint with that name exists.
	DescribeEndpoint(ctx context.Context, name string) (EndpointDescriptor, error)

	// CreateEndpoint starts an asynchronous endpoint creation bound to
	// configID and returns the endpoint identifier (ARN).
	CreateEndpoint(ctx context.Context, name, configID string, tags map[string]string) (string, error)

	// UpdateEndpoint starts an asynchronous rolling update of an existing
	// endpoint to configID and returns the endpoint identifier.
	UpdateEndpoint(ctx context.Context, name, configID string) (string, error)

	// DeleteEndpoint removes an endpoint. Used only for the clean-recreate
	// path out of the FAILED state.
	DeleteEndpoint(ctx context.Context, name string) error

	// DescribeEndpointConfig returns a previously registered config, or
	// errEndpointNotFound if it does not exist.
	DescribeEndpointConfig(ctx context.Context, configID string) (EndpointConfigSpec, error)

	// CreateModel registers a model handle and returns its identifier.
	CreateModel(ctx context.Context, spec ModelSpec, tags map[string]string) (string, error)

	// CreateEndpointConfig registers an immutable endpoint config and
	// returns its identifier.
	CreateEndpointConfig(ctx context.Context, spec EndpointConfigSpec, tags map[string]string) (string, error)

	// DescribeTrainingJob resolves a completed training job to its
	// artifact location.
	DescribeTrainingJob(ctx context.Context, jobID string) (TrainedArtifact, error)
}

// artifactStore abstracts reachability checks against the artifact bucket.
type artifactStore interface {
	// HeadArtifact verifies the object at uri exists and is readable.
	HeadArtifact(ctx context.Context, uri string) error
}

// recordSink abstracts the best-effort deployment record store.
type recordSink interface {
	// PutRecord writes body under key. Failures are reported to the
	// caller but never undo a completed transition.
	PutRecord(ctx context.Context, key string, body []byte) error
}

// pipelineClient abstracts the training-pipeline control-plane calls.
type pipelineClient interface {
	// CreatePipeline registers a new pipeline definition and returns its ARN.
	CreatePipeline(ctx context.Context, name, definition, roleARN string, tags map[string]string) (string, error)

	// UpdatePipeline replaces the definition of an existing pipeline.
	UpdatePipeline(ctx context.Context, name, definition, roleARN string) (string, error)

	// StartPipelineExecution starts one execution and returns its ARN.
	StartPipelineExecution(ctx context.Context, name string, params map[string]string, token string) (string, error)
}
