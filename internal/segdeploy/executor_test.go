package segdeploy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/raulk/clock"
	"github.com/rs/zerolog"
)

// testExecutor polls with a real clock at millisecond intervals so waits
// resolve quickly.
func testExecutor(platform platformClient, maxWait time.Duration) *Executor {
	return NewExecutor(platform, clock.New(), time.Millisecond, maxWait, zerolog.Nop())
}

// registerTestConfig seeds a model and endpoint config the executor can
// bind endpoints to.
func registerTestConfig(t *testing.T, sim *simulatedPlatform, configID string) {
	t.Helper()
	ctx := context.Background()
	if _, err := sim.CreateModel(ctx, ModelSpec{ModelName: configID + "-model"}, nil); err != nil {
		t.Fatalf("seed model: %v", err)
	}
	_, err := sim.CreateEndpointConfig(ctx, EndpointConfigSpec{
		ConfigID:      configID,
		ModelName:     configID + "-model",
		InstanceType:  "ml.t2.medium",
		InstanceCount: 1,
	}, nil)
	if err != nil {
		t.Fatalf("seed endpoint config: %v", err)
	}
}

func TestExecuteCreateReachesInService(t *testing.T) {
	sim := newSimulatedPlatform()
	sim.settleAfter = 2
	registerTestConfig(t, sim, "seg-cfg-1")
	exec := testExecutor(sim, 100*time.Millisecond)

	result, err := exec.Execute(context.Background(), TransitionRequest{
		EndpointName:   "seg-endpoint-dev",
		TargetConfigID: "seg-cfg-1",
		Action:         ActionCreate,
		PriorState:     StateAbsent,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.FinalState != StateInService {
		t.Fatalf("final state = %q, want %q", result.FinalState, StateInService)
	}
	if result.EndpointARN == "" {
		t.Error("result has no endpoint ARN")
	}
	if result.ConfigID != "seg-cfg-1" {
		t.Errorf("result config = %q, want the target config", result.ConfigID)
	}
}

func TestExecuteUpdateRollsForward(t *testing.T) {
	sim := newSimulatedPlatform()
	sim.settleAfter = 1
	registerTestConfig(t, sim, "seg-cfg-2")
	sim.seedEndpoint("seg-endpoint-dev", StateInService, "seg-cfg-1")
	exec := testExecutor(sim, 100*time.Millisecond)

	result, err := exec.Execute(context.Background(), TransitionRequest{
		EndpointName:   "seg-endpoint-dev",
		TargetConfigID: "seg-cfg-2",
		Action:         ActionUpdate,
		PriorState:     StateInService,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.FinalState != StateInService {
		t.Fatalf("final state = %q, want %q", result.FinalState, StateInService)
	}

	desc, err := sim.DescribeEndpoint(context.Background(), "seg-endpoint-dev")
	if err != nil {
		t.Fatalf("DescribeEndpoint: %v", err)
	}
	if desc.ActiveConfigID != "seg-cfg-2" {
		t.Errorf("active config = %q, want the new config", desc.ActiveConfigID)
	}
}

func TestExecuteRejectsNonExecutableActions(t *testing.T) {
	exec := testExecutor(newSimulatedPlatform(), 10*time.Millisecond)
	for _, action := range []Action{ActionNone, ActionConflict, Action("")} {
		if _, err := exec.Execute(context.Background(), TransitionRequest{
			EndpointName: "seg-endpoint-dev",
			Action:       action,
		}); err == nil {
			t.Errorf("Execute accepted action %q", action)
		}
	}
}

func TestExecuteSingleFlightPerEndpoint(t *testing.T) {
	sim := newSimulatedPlatform()
	registerTestConfig(t, sim, "seg-cfg-1")
	exec := testExecutor(sim, 100*time.Millisecond)

	// Simulate a transition already in flight in this process.
	if !exec.acquire("seg-endpoint-dev") {
		t.Fatal("first acquire failed")
	}
	result, err := exec.Execute(context.Background(), TransitionRequest{
		EndpointName:   "seg-endpoint-dev",
		TargetConfigID: "seg-cfg-1",
		Action:         ActionCreate,
		PriorState:     StateAbsent,
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("error = %v, want ErrConflict", err)
	}
	if result.Action != ActionConflict {
		t.Errorf("result action = %q, want %q", result.Action, ActionConflict)
	}
	exec.release("seg-endpoint-dev")

	// A different endpoint name is unaffected.
	if !exec.acquire("other-endpoint") {
		t.Error("acquire for a different endpoint was blocked")
	}
}

func TestExecuteRefusesStaleState(t *testing.T) {
	sim := newSimulatedPlatform()
	sim.settleAfter = 1000 // stays transitional throughout
	registerTestConfig(t, sim, "seg-cfg-2")
	sim.seedEndpoint("seg-endpoint-dev", StateUpdating, "seg-cfg-1")
	sim.endpoints["seg-endpoint-dev"].settleIn = 1000
	sim.endpoints["seg-endpoint-dev"].settleTo = StateInService
	exec := testExecutor(sim, 20*time.Millisecond)

	// The caller decided UPDATE from an earlier probe; the fresh probe
	// sees the endpoint already transitioning.
	_, err := exec.Execute(context.Background(), TransitionRequest{
		EndpointName:   "seg-endpoint-dev",
		TargetConfigID: "seg-cfg-2",
		Action:         ActionUpdate,
		PriorState:     StateInService,
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("error = %v, want ErrConflict from the fresh probe", err)
	}
}

func TestExecuteTimeoutLeavesPlatformAlone(t *testing.T) {
	sim := newSimulatedPlatform()
	sim.settleAfter = 100000 // never settles within the budget
	registerTestConfig(t, sim, "seg-cfg-1")
	exec := testExecutor(sim, 10*time.Millisecond)

	result, err := exec.Execute(context.Background(), TransitionRequest{
		EndpointName:   "seg-endpoint-dev",
		TargetConfigID: "seg-cfg-1",
		Action:         ActionCreate,
		PriorState:     StateAbsent,
	})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("error = %v, want ErrTimeout", err)
	}
	if result == nil || result.Err == "" {
		t.Fatal("timeout must still return a recordable result")
	}

	// No rollback: the endpoint is still there, still transitioning.
	sim.mu.Lock()
	ep, ok := sim.endpoints["seg-endpoint-dev"]
	sim.mu.Unlock()
	if !ok {
		t.Fatal("timed-out endpoint was deleted; platform must stay the source of truth")
	}
	if ep.state != StateCreating {
		t.Errorf("endpoint state = %q, want still CREATING", ep.state)
	}
}

func TestExecuteFailedEndpointIsRecreated(t *testing.T) {
	sim := newSimulatedPlatform()
	registerTestConfig(t, sim, "seg-cfg-2")
	sim.seedEndpoint("seg-endpoint-dev", StateFailed, "seg-cfg-1")
	exec := testExecutor(sim, 100*time.Millisecond)

	result, err := exec.Execute(context.Background(), TransitionRequest{
		EndpointName:   "seg-endpoint-dev",
		TargetConfigID: "seg-cfg-2",
		Action:         ActionCreate,
		PriorState:     StateFailed,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.FinalState != StateInService {
		t.Fatalf("final state = %q, want %q", result.FinalState, StateInService)
	}

	desc, err := sim.DescribeEndpoint(context.Background(), "seg-endpoint-dev")
	if err != nil {
		t.Fatalf("DescribeEndpoint: %v", err)
	}
	if desc.ActiveConfigID != "seg-cfg-2" {
		t.Errorf("recreated endpoint bound to %q, want the new config", desc.ActiveConfigID)
	}
}

func TestExecuteFailedTransitionReported(t *testing.T) {
	sim := newSimulatedPlatform()
	sim.failTransitions = true
	registerTestConfig(t, sim, "seg-cfg-1")
	exec := testExecutor(sim, 100*time.Millisecond)

	result, err := exec.Execute(context.Background(), TransitionRequest{
		EndpointName:   "seg-endpoint-dev",
		TargetConfigID: "seg-cfg-1",
		Action:         ActionCreate,
		PriorState:     StateAbsent,
	})
	if err == nil {
		t.Fatal("expected an error for a FAILED transition")
	}
	if result.FinalState != StateFailed {
		t.Fatalf("final state = %q, want %q", result.FinalState, StateFailed)
	}
	if result.Err == "" {
		t.Error("result carries no error description")
	}
}

func TestExecuteHonorsContextCancellation(t *testing.T) {
	sim := newSimulatedPlatform()
	sim.settleAfter = 100000
	registerTestConfig(t, sim, "seg-cfg-1")
	exec := NewExecutor(sim, clock.New(), 10*time.Millisecond, time.Minute, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := exec.Execute(ctx, TransitionRequest{
		EndpointName:   "seg-endpoint-dev",
		TargetConfigID: "seg-cfg-1",
		Action:         ActionCreate,
		PriorState:     StateAbsent,
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}
