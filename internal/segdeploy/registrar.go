package segdeploy

import (
	"context"
	"fmt"

	"github.com/raulk/clock"
	"github.com/rs/zerolog"
)

// RegisteredConfig is the result of one registrar call: a model handle and
// an endpoint config, both freshly versioned.
type RegisteredConfig struct {
	ModelName string
	ConfigID  string
	ConfigARN string
}

// Registrar allocates the model handle and the immutable endpoint config
// for a deployment attempt. Every call mints a new config with a
// collision-free identifier; configs are never reused or mutated.
type Registrar struct {
	platform platformClient
	cfg      *Config
	clk      clock.Clock
	log      zerolog.Logger
}

// NewRegistrar creates a Registrar. The clock is injected so tests can
// mint deterministic version tags.
func NewRegistrar(platform platformClient, cfg *Config, clk clock.Clock, log zerolog.Logger) *Registrar {
	return &Registrar{platform: platform, cfg: cfg, clk: clk, log: log}
}

// Register creates the model and endpoint config bound to the artifact.
// It fails with a RegistrationError when the sizing parameters are invalid
// or the platform rejects the registration (for example, the serving role
// cannot read the artifact). The config is registered before any
// transition is attempted.
func (r *Registrar) Register(ctx context.Context, artifact TrainedArtifact, endpointName string) (*RegisteredConfig, error) {
	if err := validateResourceName(endpointName, "endpoint"); err != nil {
		return nil, &RegistrationError{Reason: err.Error()}
	}
	if r.cfg.Endpoint.InstanceCount < 1 {
		return nil, &RegistrationError{
			Reason: fmt.Sprintf("instance count %d must be at least 1", r.cfg.Endpoint.InstanceCount),
		}
	}
	if r.cfg.Endpoint.InstanceType == "" {
		return nil, &RegistrationError{Reason: "instance type is required"}
	}

	tag := versionTag(r.clk)
	modelName := deriveModelName(endpointName, tag)
	configID := deriveConfigID(endpointName, tag)

	for _, derived := range []struct{ name, typ string }{
		{modelName, "model"},
		{configID, "endpoint_config"},
	} {
		if err := validateResourceName(derived.name, derived.typ); err != nil {
			return nil, &RegistrationError{ConfigID: configID, Reason: err.Error()}
		}
	}

	tags := tagsWithConfigID(
		buildResourceTags(r.cfg.ProjectName, r.cfg.Environment, r.cfg.Tags), configID)

	if _, err := r.platform.CreateModel(ctx, ModelSpec{
		ModelName:   modelName,
		Image:       r.cfg.InferenceImage,
		ArtifactURI: artifact.ArtifactURI,
		RoleARN:     r.cfg.RoleARN,
	}, tags); err != nil {
		return nil, &RegistrationError{ConfigID: configID, Reason: "create model", Cause: err}
	}

	configARN, err := r.platform.CreateEndpointConfig(ctx, EndpointConfigSpec{
		ConfigID:      configID,
		ModelName:     modelName,
		ArtifactURI:   artifact.ArtifactURI,
		InstanceType:  r.cfg.Endpoint.InstanceType,
		InstanceCount: r.cfg.Endpoint.InstanceCount,
	}, tags)
	if err != nil {
		return nil, &RegistrationError{ConfigID: configID, Reason: "create endpoint config", Cause: err}
	}

	r.log.Info().
		Str("endpoint", endpointName).
		Str("config_id", configID).
		Str("model", modelName).
		Str("artifact", artifact.ArtifactURI).
		Msg("registered endpoint config")

	return &RegisteredConfig{ModelName: modelName, ConfigID: configID, ConfigARN: configARN}, nil
}
