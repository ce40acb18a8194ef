package segdeploy

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/raulk/clock"
	"github.com/rs/zerolog"
)

// Executor performs a single create-or-update transition and waits for the
// endpoint to reach a stable serving state. At most one transition per
// endpoint name may be in flight at a time; a second request is rejected
// with ErrConflict rather than queued, so two racing deployments can never
// both succeed with different target configs.
type Executor struct {
	platform     platformClient
	prober       *Prober
	clk          clock.Clock
	pollInterval time.Duration
	maxWait      time.Duration
	log          zerolog.Logger

	mu       sync.Mutex
	inflight map[string]bool
}

// NewExecutor creates an Executor with the given polling budget.
func NewExecutor(platform platformClient, clk clock.Clock, pollInterval, maxWait time.Duration, log zerolog.Logger) *Executor {
	return &Executor{
		platform:     platform,
		prober:       NewProber(platform),
		clk:          clk,
		pollInterval: pollInterval,
		maxWait:      maxWait,
		log:          log,
		inflight:     make(map[string]bool),
	}
}

// Execute runs one transition. The endpoint state is re-probed immediately
// before acting (optimistic concurrency, not a lock held across calls): a
// transition observed in flight on the platform yields ErrConflict, and
// platform create/update races surface the same way. On timeout the
// created config is NOT rolled back — the in-flight platform resource
// stays the source of truth and the next run reconciles.
func (e *Executor) Execute(ctx context.Context, req TransitionRequest) (*TransitionResult, error) {
	if req.Action != ActionCreate && req.Action != ActionUpdate {
		return nil, fmt.Errorf("action %q is not executable", req.Action)
	}

	if !e.acquire(req.EndpointName) {
		return e.conflictResult(req), ErrConflict
	}
	defer e.release(req.EndpointName)

	// Fresh probe right before acting. The state observed by the caller
	// may already be stale.
	desc, err := e.prober.Probe(ctx, req.EndpointName)
	if err != nil {
		return nil, err
	}
	if desc.CurrentState == StateCreating || desc.CurrentState == StateUpdating {
		return e.conflictResult(req), ErrConflict
	}

	var arn string
	switch req.Action {
	case ActionCreate:
		arn, err = e.executeCreate(ctx, req, desc)
	case ActionUpdate:
		if desc.CurrentState != StateInService {
			return e.conflictResult(req), ErrConflict
		}
		arn, err = e.platform.UpdateEndpoint(ctx, req.EndpointName, req.TargetConfigID)
	}
	if err != nil {
		return &TransitionResult{
			EndpointName: req.EndpointName,
			FinalState:   desc.CurrentState,
			ConfigID:     req.TargetConfigID,
			Action:       req.Action,
			Err:          err.Error(),
		}, fmt.Errorf("%s endpoint %q: %w", req.Action, req.EndpointName, err)
	}

	e.log.Info().
		Str("endpoint", req.EndpointName).
		Str("config_id", req.TargetConfigID).
		Str("action", string(req.Action)).
		Msg("transition started")

	return e.waitForStable(ctx, req, arn)
}

// executeCreate issues the create call. When the prior state is FAILED the
// failed endpoint is deleted first (clean recreate): the platform rejects
// both create and update against a failed endpoint.
func (e *Executor) executeCreate(ctx context.Context, req TransitionRequest, desc EndpointDescriptor) (string, error) {
	if desc.CurrentState == StateFailed {
		e.log.Warn().
			Str("endpoint", req.EndpointName).
			Str("orphaned_config", desc.ActiveConfigID).
			Msg("deleting failed endpoint before recreate")
		if err := e.platform.DeleteEndpoint(ctx, req.EndpointName); err != nil {
			return "", fmt.Errorf("delete failed endpoint: %w", err)
		}
		if err := e.waitForGone(ctx, req.EndpointName); err != nil {
			return "", err
		}
	}
	return e.platform.CreateEndpoint(ctx, req.EndpointName, req.TargetConfigID, nil)
}

// waitForStable polls the endpoint until it reaches IN_SERVICE or FAILED,
// within the configured budget. Polling is a blocking wait on the injected
// clock, not a busy spin, and honors context cancellation.
func (e *Executor) waitForStable(ctx context.Context, req TransitionRequest, arn string) (*TransitionResult, error) {
	result := &TransitionResult{
		EndpointName: req.EndpointName,
		ConfigID:     req.TargetConfigID,
		Action:       req.Action,
		EndpointARN:  arn,
	}

	attempts := int(e.maxWait / e.pollInterval)
	if attempts < 1 {
		attempts = 1
	}

	for range attempts {
		if err := e.sleep(ctx); err != nil {
			result.FinalState = req.PriorState
			result.Err = err.Error()
			return result, err
		}

		desc, err := e.prober.Probe(ctx, req.EndpointName)
		if err != nil {
			return nil, err
		}
		result.FinalState = desc.CurrentState

		switch desc.CurrentState {
		case StateInService:
			e.log.Info().
				Str("endpoint", req.EndpointName).
				Str("config_id", req.TargetConfigID).
				Msg("endpoint in service")
			return result, nil
		case StateFailed:
			err := fmt.Errorf("endpoint %q entered FAILED state during %s", req.EndpointName, req.Action)
			result.Err = err.Error()
			return result, err
		case StateAbsent:
			// Create not yet visible, or deleted out from under us.
			// Keep polling; the budget bounds the wait either way.
		case StateCreating, StateUpdating:
			// Transitional. Keep polling.
		}
	}

	err := fmt.Errorf("%w: endpoint %q still %s after %s",
		ErrTimeout, req.EndpointName, result.FinalState, e.maxWait)
	result.Err = err.Error()
	return result, err
}

// waitForGone polls until a deleted endpoint is no longer describable.
func (e *Executor) waitForGone(ctx context.Context, name string) error {
	attempts := int(e.maxWait / e.pollInterval)
	if attempts < 1 {
		attempts = 1
	}
	for range attempts {
		_, err := e.platform.DescribeEndpoint(ctx, name)
		if errors.Is(err, errEndpointNotFound) {
			return nil
		}
		if err != nil {
			return &ProbeError{EndpointName: name, Cause: err}
		}
		if err := e.sleep(ctx); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w: endpoint %q not deleted after %s", ErrTimeout, name, e.maxWait)
}

// sleep blocks for one poll interval or until the context is cancelled.
func (e *Executor) sleep(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-e.clk.After(e.pollInterval):
		return nil
	}
}

// conflictResult builds the TransitionResult for a rejected request.
func (e *Executor) conflictResult(req TransitionRequest) *TransitionResult {
	return &TransitionResult{
		EndpointName: req.EndpointName,
		FinalState:   req.PriorState,
		ConfigID:     req.TargetConfigID,
		Action:       ActionConflict,
		Err:          ErrConflict.Error(),
	}
}

// acquire marks an endpoint as having a transition in flight. Returns
// false if one is already in progress.
func (e *Executor) acquire(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inflight[name] {
		return false
	}
	e.inflight[name] = true
	return true
}

// release clears the in-flight mark for an endpoint.
func (e *Executor) release(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inflight, name)
}
