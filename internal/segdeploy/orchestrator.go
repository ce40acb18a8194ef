// Package segdeploy implements the endpoint lifecycle orchestrator for the
// customer-segmentation ML delivery workflow: given a freshly trained
// model artifact it decides whether the serving endpoint must be created
// or updated, performs the transition without serving downtime, and
// records the outcome so the pipeline can be safely re-run.
package segdeploy

import (
	"context"
	"errors"

	"github.com/raulk/clock"
	"github.com/rs/zerolog"
)

// DeployRequest carries the per-invocation inputs of one deployment.
type DeployRequest struct {
	// EndpointName is the serving endpoint to create or update. Empty
	// selects the conventional name derived from the config.
	EndpointName string

	// TrainingJobID resolves the artifact by convention.
	TrainingJobID string

	// ArtifactURI, when set, overrides training-job resolution verbatim.
	ArtifactURI string
}

// Deployer runs the sequential deployment workflow:
// locate -> probe -> decide -> register -> execute -> record.
// All six stages pass typed results forward; no stage parses another
// stage's printed output.
type Deployer struct {
	cfg       *Config
	locator   *ArtifactLocator
	prober    *Prober
	registrar *Registrar
	executor  *Executor
	recorder  *Recorder
	platform  platformClient
	log       zerolog.Logger
}

// NewDeployer wires a Deployer from the platform adapters. The clock is
// injected for deterministic version tags and poll timing in tests.
func NewDeployer(
	cfg *Config,
	platform platformClient,
	artifacts artifactStore,
	sink recordSink,
	clk clock.Clock,
	log zerolog.Logger,
) *Deployer {
	return &Deployer{
		cfg:       cfg,
		locator:   NewArtifactLocator(platform, artifacts),
		prober:    NewProber(platform),
		registrar: NewRegistrar(platform, cfg, clk, log),
		executor:  NewExecutor(platform, clk, cfg.Endpoint.PollInterval, cfg.Endpoint.MaxWait, log),
		recorder:  NewRecorder(sink, log),
		platform:  platform,
		log:       log,
	}
}

// Deploy runs one full orchestration. Errors before the transition
// executor (locate, probe, register) abort the run with no partial
// deployment. Executor errors (FAILED, TIMEOUT) are returned alongside a
// result and are not rolled back; the next run re-probes and reconciles.
// ErrConflict means another transition is in flight: retry with backoff.
func (d *Deployer) Deploy(ctx context.Context, req DeployRequest) (*TransitionResult, error) {
	endpointName := req.EndpointName
	if endpointName == "" {
		endpointName = d.cfg.EndpointName()
	}

	artifact, err := d.locator.Resolve(ctx, req.TrainingJobID, req.ArtifactURI)
	if err != nil {
		return nil, err
	}
	d.log.Info().
		Str("endpoint", endpointName).
		Str("artifact", artifact.ArtifactURI).
		Msg("artifact resolved")

	// A probe failure aborts here: the decision engine is never invoked
	// with a state derived from a failed probe.
	desc, err := d.prober.Probe(ctx, endpointName)
	if err != nil {
		return nil, err
	}

	action := Decide(desc.CurrentState)
	d.log.Info().
		Str("endpoint", endpointName).
		Str("state", string(desc.CurrentState)).
		Str("action", string(action)).
		Msg("lifecycle decision")

	switch action {
	case ActionConflict:
		return &TransitionResult{
			EndpointName: endpointName,
			FinalState:   desc.CurrentState,
			Action:       ActionConflict,
			Err:          ErrConflict.Error(),
		}, ErrConflict
	case ActionNone:
		return &TransitionResult{
			EndpointName: endpointName,
			FinalState:   desc.CurrentState,
			Action:       ActionNone,
		}, nil
	}

	if desc.CurrentState == StateFailed {
		d.auditOrphanedConfig(ctx, desc)
	}

	registered, err := d.registrar.Register(ctx, artifact, endpointName)
	if err != nil {
		return nil, err
	}

	result, execErr := d.executor.Execute(ctx, TransitionRequest{
		EndpointName:   endpointName,
		TargetConfigID: registered.ConfigID,
		Action:         action,
		PriorState:     desc.CurrentState,
	})
	if result == nil {
		// Probe failure mid-transition; nothing terminal to record.
		return nil, execErr
	}

	// Record regardless of outcome. Recording failures never surface as
	// deployment errors.
	_ = d.recorder.Record(ctx, result, artifact.ArtifactURI)

	return result, execErr
}

// auditOrphanedConfig looks up the config a failed endpoint was bound to
// and logs it. Configs are immutable audit records and are never deleted
// here, even when recreating from FAILED.
func (d *Deployer) auditOrphanedConfig(ctx context.Context, desc EndpointDescriptor) {
	if desc.ActiveConfigID == "" {
		return
	}
	cfg, err := d.platform.DescribeEndpointConfig(ctx, desc.ActiveConfigID)
	if err != nil {
		if errors.Is(err, errEndpointNotFound) {
			return
		}
		d.log.Warn().Err(err).
			Str("config_id", desc.ActiveConfigID).
			Msg("could not inspect config of failed endpoint")
		return
	}
	d.log.Warn().
		Str("endpoint", desc.Name).
		Str("orphaned_config", cfg.ConfigID).
		Str("artifact", cfg.ArtifactURI).
		Msg("failed endpoint leaves an orphaned config (retained for audit)")
}
