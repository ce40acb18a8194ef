package segdeploy

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Pipeline parameter names exposed for per-run overrides.
const (
	ParamNClusters             = "NClusters"
	ParamNComponents           = "NComponents"
	ParamDataFile              = "DataFile"
	ParamTrainingInstanceType  = "TrainingInstanceType"
	ParamInferenceInstanceType = "InferenceInstanceType"
)

// newRequestToken mints an idempotency token for pipeline API calls.
func newRequestToken() string {
	return uuid.NewString()
}

// PipelineManager owns the training pipeline definition and its lifecycle
// on the platform: upsert the definition, start executions.
type PipelineManager struct {
	client pipelineClient
	cfg    *Config
	log    zerolog.Logger
}

func NewPipelineManager(client pipelineClient, cfg *Config, log zerolog.Logger) *PipelineManager {
	return &PipelineManager{client: client, cfg: cfg, log: log}
}

// pipelineDefinition is the SageMaker pipeline definition schema
// (version 2020-12-01) serialized as JSON.
type pipelineDefinition struct {
	Version    string              `json:"Version"`
	Parameters []pipelineParameter `json:"Parameters"`
	Steps      []pipelineStep      `json:"Steps"`
}

type pipelineParameter struct {
	Name         string `json:"Name"`
	Type         string `json:"Type"`
	DefaultValue string `json:"DefaultValue"`
}

type pipelineStep struct {
	Name      string         `json:"Name"`
	Type      string         `json:"Type"`
	Arguments map[string]any `json:"Arguments"`
	DependsOn []string       `json:"DependsOn,omitempty"`
}

// paramRef renders a runtime reference to a pipeline parameter inside a
// step argument.
func paramRef(name string) map[string]any {
	return map[string]any{"Get": "Parameters." + name}
}

// propertyRef renders a runtime reference to a property of an earlier step.
func propertyRef(step, property string) map[string]any {
	return map[string]any{"Get": fmt.Sprintf("Steps.%s.%s", step, property)}
}

// BuildDefinition renders the full training pipeline definition: a
// training step fitting the segmentation model, a model step packaging
// the resulting artifact, and a registration step recording it in the
// model registry.
func (m *PipelineManager) BuildDefinition() (string, error) {
	cfg := m.cfg
	trainingImage := cfg.InferenceImage
	dataURI := fmt.Sprintf("s3://%s/data/", cfg.BucketName)
	outputURI := fmt.Sprintf("s3://%s/models/", cfg.BucketName)

	def := pipelineDefinition{
		Version: "2020-12-01",
		Parameters: []pipelineParameter{
			{Name: ParamNClusters, Type: "Integer", DefaultValue: strconv.Itoa(cfg.Training.NClusters)},
			{Name: ParamNComponents, Type: "Integer", DefaultValue: strconv.Itoa(cfg.Training.NComponents)},
			{Name: ParamDataFile, Type: "String", DefaultValue: cfg.Training.DataFile},
			{Name: ParamTrainingInstanceType, Type: "String", DefaultValue: cfg.Training.InstanceType},
			{Name: ParamInferenceInstanceType, Type: "String", DefaultValue: cfg.Endpoint.InstanceType},
		},
		Steps: []pipelineStep{
			{
				Name: "TrainSegmentationModel",
				Type: "Training",
				Arguments: map[string]any{
					"AlgorithmSpecification": map[string]any{
						"TrainingImage":     trainingImage,
						"TrainingInputMode": "File",
					},
					"RoleArn": cfg.RoleARN,
					"HyperParameters": map[string]any{
						"n_clusters":   paramRef(ParamNClusters),
						"n_components": paramRef(ParamNComponents),
						"data_file":    paramRef(ParamDataFile),
					},
					"InputDataConfig": []map[string]any{{
						"ChannelName": "train",
						"DataSource": map[string]any{
							"S3DataSource": map[string]any{
								"S3DataType": "S3Prefix",
								"S3Uri":      dataURI,
							},
						},
					}},
					"OutputDataConfig": map[string]any{
						"S3OutputPath": outputURI,
					},
					"ResourceConfig": map[string]any{
						"InstanceCount":  1,
						"InstanceType":   paramRef(ParamTrainingInstanceType),
						"VolumeSizeInGB": 30,
					},
					"StoppingCondition": map[string]any{
						"MaxRuntimeInSeconds": 3600,
					},
				},
			},
			{
				Name: "CreateSegmentationModel",
				Type: "Model",
				Arguments: map[string]any{
					"ExecutionRoleArn": cfg.RoleARN,
					"PrimaryContainer": map[string]any{
						"Image":        cfg.InferenceImage,
						"ModelDataUrl": propertyRef("TrainSegmentationModel", "ModelArtifacts.S3ModelArtifacts"),
					},
				},
				DependsOn: []string{"TrainSegmentationModel"},
			},
			{
				Name: "RegisterSegmentationModel",
				Type: "RegisterModel",
				Arguments: map[string]any{
					"ModelPackageGroupName": cfg.ProjectName + "-models",
					"ModelApprovalStatus":   "PendingManualApproval",
					"InferenceSpecification": map[string]any{
						"Containers": []map[string]any{{
							"Image":        cfg.InferenceImage,
							"ModelDataUrl": propertyRef("TrainSegmentationModel", "ModelArtifacts.S3ModelArtifacts"),
						}},
						"SupportedContentTypes":      []string{"application/json", "text/csv"},
						"SupportedResponseMIMETypes": []string{"application/json"},
						"SupportedRealtimeInferenceInstanceTypes": []any{
							paramRef(ParamInferenceInstanceType),
						},
					},
				},
				DependsOn: []string{"TrainSegmentationModel"},
			},
		},
	}

	raw, err := json.Marshal(def)
	if err != nil {
		return "", fmt.Errorf("marshal pipeline definition: %w", err)
	}
	return string(raw), nil
}

// Upsert creates the pipeline, or updates it in place when the name is
// already taken. Returns the pipeline ARN.
func (m *PipelineManager) Upsert(ctx context.Context) (string, error) {
	definition, err := m.BuildDefinition()
	if err != nil {
		return "", err
	}
	name := m.cfg.PipelineName()
	tags := buildResourceTags(m.cfg.ProjectName, m.cfg.Environment, m.cfg.Tags)

	arn, err := m.client.CreatePipeline(ctx, name, definition, m.cfg.RoleARN, tags)
	if err == nil {
		m.log.Info().Str("pipeline", name).Str("arn", arn).Msg("pipeline created")
		return arn, nil
	}
	if !isAlreadyExistsErr(err) {
		return "", fmt.Errorf("CreatePipeline %q: %w", name, err)
	}

	arn, err = m.client.UpdatePipeline(ctx, name, definition, m.cfg.RoleARN)
	if err != nil {
		return "", err
	}
	m.log.Info().Str("pipeline", name).Str("arn", arn).Msg("pipeline updated")
	return arn, nil
}

// Run starts a pipeline execution with the given parameter overrides.
// Unknown parameter names are passed through; the platform rejects them.
func (m *PipelineManager) Run(ctx context.Context, params map[string]string) (ExecutionResult, error) {
	name := m.cfg.PipelineName()
	token := newRequestToken()

	arn, err := m.client.StartPipelineExecution(ctx, name, params, token)
	if err != nil {
		return ExecutionResult{}, err
	}
	result := ExecutionResult{
		PipelineName: name,
		ExecutionARN: arn,
		StartedAt:    time.Now().UTC(),
	}
	m.log.Info().
		Str("pipeline", name).
		Str("execution_arn", arn).
		Msg("pipeline execution started")
	return result, nil
}
