package segdeploy

import "time"

// EndpointState is the normalized lifecycle state of a serving endpoint.
type EndpointState string

// Endpoint lifecycle states. Platform-specific status strings are mapped
// onto these five values by the prober; everything downstream of the probe
// reasons only in terms of this enum.
const (
	StateAbsent    EndpointState = "ABSENT"
	StateCreating  EndpointState = "CREATING"
	StateInService EndpointState = "IN_SERVICE"
	StateUpdating  EndpointState = "UPDATING"
	StateFailed    EndpointState = "FAILED"
)

// Action is the lifecycle decision produced by Decide.
type Action string

// Lifecycle actions.
const (
	ActionCreate   Action = "create"
	ActionUpdate   Action = "update"
	ActionNone     Action = "none"
	ActionConflict Action = "conflict"
)

// TrainedArtifact identifies the output of one successful training run.
// It is immutable after resolution.
type TrainedArtifact struct {
	ArtifactURI   string    `json:"artifact_uri"`
	TrainingJobID string    `json:"training_job_id,omitempty"`
	CreatedAt     time.Time `json:"created_at,omitempty"`
}

// EndpointDescriptor is a snapshot of the live endpoint state. It is
// refreshed on every probe and never cached across invocations.
type EndpointDescriptor struct {
	Name           string        `json:"name"`
	CurrentState   EndpointState `json:"current_state"`
	ActiveConfigID string        `json:"active_config_id,omitempty"`
}

// EndpointConfigSpec is an immutable, versioned binding of an endpoint to
// a trained artifact and hardware sizing. Old configs are retained for
// rollback and audit; this tool never deletes them.
type EndpointConfigSpec struct {
	ConfigID      string `json:"config_id"`
	ModelName     string `json:"model_name"`
	ArtifactURI   string `json:"artifact_uri"`
	InstanceType  string `json:"instance_type"`
	InstanceCount int32  `json:"instance_count"`
}

// ModelSpec describes the model handle registered with the platform before
// an endpoint config can reference it.
type ModelSpec struct {
	ModelName   string            `json:"model_name"`
	Image       string            `json:"image"`
	ArtifactURI string            `json:"artifact_uri"`
	RoleARN     string            `json:"role_arn"`
	Environment map[string]string `json:"environment,omitempty"`
}

// TransitionRequest describes a single create-or-update transition. It is
// transient and exists only for the duration of one executor call.
type TransitionRequest struct {
	EndpointName   string        `json:"endpoint_name"`
	TargetConfigID string        `json:"target_config_id"`
	Action         Action        `json:"action"`
	PriorState     EndpointState `json:"prior_state"`
}

// TransitionResult is the terminal record of one transition, handed to the
// outcome recorder and returned to the caller.
type TransitionResult struct {
	EndpointName string        `json:"endpoint_name"`
	FinalState   EndpointState `json:"final_state"`
	ConfigID     string        `json:"config_id"`
	Action       Action        `json:"action"`
	EndpointARN  string        `json:"endpoint_arn,omitempty"`
	Err          string        `json:"error,omitempty"`
}

// DeploymentRecord is the serialized outcome written for downstream
// consumers (smoke tests, registries). The transition itself is the
// durable fact; this record is best-effort telemetry.
type DeploymentRecord struct {
	TransitionResult
	ArtifactURI string    `json:"artifact_uri,omitempty"`
	RecordedAt  time.Time `json:"recorded_at"`
	Version     string    `json:"segdeploy_version"`
}

// ExecutionResult is the typed handle returned when a pipeline execution
// is started. Callers consume the ARN directly instead of scraping
// printed output.
type ExecutionResult struct {
	PipelineName string    `json:"pipeline_name"`
	ExecutionARN string    `json:"execution_arn"`
	StartedAt    time.Time `json:"started_at"`
}
