package segdeploy

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// recordKeyPrefix is where deployment records live in the artifact bucket.
const recordKeyPrefix = "deployments"

// Recorder persists the outcome of a transition for downstream consumers
// (smoke tests, registries). Recording is best-effort telemetry: the
// transition already happened and is the durable fact, so a write failure
// is logged and reported but never propagated as a deployment error.
type Recorder struct {
	sink recordSink
	log  zerolog.Logger
	now  func() time.Time
}

// NewRecorder creates a Recorder writing JSON records to the given sink.
func NewRecorder(sink recordSink, log zerolog.Logger) *Recorder {
	return &Recorder{sink: sink, log: log, now: time.Now}
}

// Record emits the structured result and writes the deployment record.
// The returned error is informational only; callers must not treat it as
// a deployment failure and must never attempt to undo the transition.
func (r *Recorder) Record(ctx context.Context, result *TransitionResult, artifactURI string) error {
	evt := r.log.Info()
	if result.Err != "" {
		evt = r.log.Warn()
	}
	evt.
		Str("endpoint", result.EndpointName).
		Str("final_state", string(result.FinalState)).
		Str("config_id", result.ConfigID).
		Str("action", string(result.Action)).
		Str("error", result.Err).
		Msg("deployment outcome")

	record := DeploymentRecord{
		TransitionResult: *result,
		ArtifactURI:      artifactURI,
		RecordedAt:       r.now().UTC(),
		Version:          Version,
	}
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal deployment record: %w", err)
	}

	key := RecordKey(result.EndpointName, result.ConfigID)
	if err := r.sink.PutRecord(ctx, key, body); err != nil {
		r.log.Warn().Err(err).Str("key", key).Msg("deployment record write failed")
		return fmt.Errorf("write deployment record %s: %w", key, err)
	}
	return nil
}

// RecordKey returns the object key for a deployment record.
func RecordKey(endpointName, configID string) string {
	return fmt.Sprintf("%s/%s/%s.json", recordKeyPrefix, endpointName, configID)
}
