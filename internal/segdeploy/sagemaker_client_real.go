package segdeploy

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sagemaker"
	smtypes "github.com/aws/aws-sdk-go-v2/service/sagemaker/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/rs/zerolog"
)

// variantName is the single production variant carrying all traffic, as
// registered on every endpoint config.
const variantName = "AllTraffic"

// AWSPlatform implements platformClient, artifactStore, recordSink,
// and pipelineClient against the AWS SageMaker and S3 APIs.
type AWSPlatform struct {
	sm     *sagemaker.Client
	s3     *s3.Client
	logs   *cloudwatchlogs.Client
	bucket string
	log    zerolog.Logger
}

// Logs exposes the CloudWatch Logs client for building a LogTailer.
func (c *AWSPlatform) Logs() *cloudwatchlogs.Client { return c.logs }

// NewPlatformClient builds the AWS-backed platform client. Before any
// mutating call is possible it verifies the caller's AWS account matches
// the account in the configured role ARN, catching credential mixups
// before they turn into confusing permission errors.
func NewPlatformClient(ctx context.Context, cfg *Config, log zerolog.Logger) (*AWSPlatform, error) {
	awsCfg, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	if arnAccount := extractAccountFromARN(cfg.RoleARN); arnAccount != "" {
		identity, err := sts.NewFromConfig(awsCfg).GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
		if err != nil {
			return nil, fmt.Errorf("STS GetCallerIdentity: %w", err)
		}
		callerAccount := aws.ToString(identity.Account)
		if callerAccount != arnAccount {
			return nil, fmt.Errorf(
				"AWS caller account %s does not match role_arn account %s"+
					" — check your AWS credentials or update the role ARN",
				callerAccount, arnAccount,
			)
		}
	}

	return &AWSPlatform{
		sm:     sagemaker.NewFromConfig(awsCfg),
		s3:     s3.NewFromConfig(awsCfg),
		logs:   cloudwatchlogs.NewFromConfig(awsCfg),
		bucket: cfg.BucketName,
		log:    log,
	}, nil
}

// isNotFoundErr reports whether err is the platform's "no such resource"
// response. SageMaker signals this as a ValidationException rather than a
// dedicated not-found type.
func isNotFoundErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "ValidationException") &&
		(strings.Contains(msg, "Could not find") || strings.Contains(msg, "does not exist"))
}

// isAlreadyExistsErr reports whether err means the resource name is taken.
func isAlreadyExistsErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "ResourceInUse") ||
		strings.Contains(msg, "already exist") ||
		strings.Contains(msg, "must be unique")
}

// ---------- platformClient implementation ----------

func (c *AWSPlatform) DescribeEndpoint(ctx context.Context, name string) (EndpointDescriptor, error) {
	out, err := c.sm.DescribeEndpoint(ctx, &sagemaker.DescribeEndpointInput{
		EndpointName: aws.String(name),
	})
	if err != nil {
		if isNotFoundErr(err) {
			return EndpointDescriptor{}, errEndpointNotFound
		}
		return EndpointDescriptor{}, fmt.Errorf("DescribeEndpoint %q: %w", name, err)
	}
	return EndpointDescriptor{
		Name:           name,
		CurrentState:   mapEndpointStatus(out.EndpointStatus),
		ActiveConfigID: aws.ToString(out.EndpointConfigName),
	}, nil
}

func (c *AWSPlatform) CreateEndpoint(ctx context.Context, name, configID string, tags map[string]string) (string, error) {
	out, err := c.sm.CreateEndpoint(ctx, &sagemaker.CreateEndpointInput{
		EndpointName:       aws.String(name),
		EndpointConfigName: aws.String(configID),
		Tags:               toSageMakerTags(tags),
	})
	if err != nil {
		return "", fmt.Errorf("CreateEndpoint %q: %w", name, err)
	}
	return aws.ToString(out.EndpointArn), nil
}

func (c *AWSPlatform) UpdateEndpoint(ctx context.Context, name, configID string) (string, error) {
	out, err := c.sm.UpdateEndpoint(ctx, &sagemaker.UpdateEndpointInput{
		EndpointName:       aws.String(name),
		EndpointConfigName: aws.String(configID),
	})
	if err != nil {
		return "", fmt.Errorf("UpdateEndpoint %q: %w", name, err)
	}
	return aws.ToString(out.EndpointArn), nil
}

func (c *AWSPlatform) DeleteEndpoint(ctx context.Context, name string) error {
	_, err := c.sm.DeleteEndpoint(ctx, &sagemaker.DeleteEndpointInput{
		EndpointName: aws.String(name),
	})
	if err != nil && !isNotFoundErr(err) {
		return fmt.Errorf("DeleteEndpoint %q: %w", name, err)
	}
	return nil
}

func (c *AWSPlatform) DescribeEndpointConfig(ctx context.Context, configID string) (EndpointConfigSpec, error) {
	out, err := c.sm.DescribeEndpointConfig(ctx, &sagemaker.DescribeEndpointConfigInput{
		EndpointConfigName: aws.String(configID),
	})
	if err != nil {
		if isNotFoundErr(err) {
			return EndpointConfigSpec{}, errEndpointNotFound
		}
		return EndpointConfigSpec{}, fmt.Errorf("DescribeEndpointConfig %q: %w", configID, err)
	}

	spec := EndpointConfigSpec{ConfigID: aws.ToString(out.EndpointConfigName)}
	if len(out.ProductionVariants) > 0 {
		v := out.ProductionVariants[0]
		spec.ModelName = aws.ToString(v.ModelName)
		spec.InstanceType = string(v.InstanceType)
		spec.InstanceCount = aws.ToInt32(v.InitialInstanceCount)
	}
	return spec, nil
}

func (c *AWSPlatform) CreateModel(ctx context.Context, spec ModelSpec, tags map[string]string) (string, error) {
	out, err := c.sm.CreateModel(ctx, &sagemaker.CreateModelInput{
		ModelName:        aws.String(spec.ModelName),
		ExecutionRoleArn: aws.String(spec.RoleARN),
		PrimaryContainer: &smtypes.ContainerDefinition{
			Image:        aws.String(spec.Image),
			ModelDataUrl: aws.String(spec.ArtifactURI),
			Environment:  spec.Environment,
		},
		Tags: toSageMakerTags(tags),
	})
	if err != nil {
		return "", fmt.Errorf("CreateModel %q: %w", spec.ModelName, err)
	}
	return aws.ToString(out.ModelArn), nil
}

func (c *AWSPlatform) CreateEndpointConfig(ctx context.Context, spec EndpointConfigSpec, tags map[string]string) (string, error) {
	out, err := c.sm.CreateEndpointConfig(ctx, &sagemaker.CreateEndpointConfigInput{
		EndpointConfigName: aws.String(spec.ConfigID),
		ProductionVariants: []smtypes.ProductionVariant{{
			VariantName:          aws.String(variantName),
			ModelName:            aws.String(spec.ModelName),
			InitialInstanceCount: aws.Int32(spec.InstanceCount),
			InstanceType:         smtypes.ProductionVariantInstanceType(spec.InstanceType),
		}},
		Tags: toSageMakerTags(tags),
	})
	if err != nil {
		return "", fmt.Errorf("CreateEndpointConfig %q: %w", spec.ConfigID, err)
	}
	return aws.ToString(out.EndpointConfigArn), nil
}

func (c *AWSPlatform) DescribeTrainingJob(ctx context.Context, jobID string) (TrainedArtifact, error) {
	out, err := c.sm.DescribeTrainingJob(ctx, &sagemaker.DescribeTrainingJobInput{
		TrainingJobName: aws.String(jobID),
	})
	if err != nil {
		return TrainedArtifact{}, fmt.Errorf("DescribeTrainingJob %q: %w", jobID, err)
	}
	if out.TrainingJobStatus != smtypes.TrainingJobStatusCompleted {
		return TrainedArtifact{}, fmt.Errorf(
			"training job %q is %s, not Completed", jobID, out.TrainingJobStatus)
	}
	if out.ModelArtifacts == nil || aws.ToString(out.ModelArtifacts.S3ModelArtifacts) == "" {
		return TrainedArtifact{}, fmt.Errorf("training job %q reports no model artifacts", jobID)
	}
	artifact := TrainedArtifact{
		ArtifactURI:   aws.ToString(out.ModelArtifacts.S3ModelArtifacts),
		TrainingJobID: jobID,
	}
	if out.TrainingEndTime != nil {
		artifact.CreatedAt = *out.TrainingEndTime
	}
	return artifact, nil
}

// ---------- artifactStore implementation ----------

func (c *AWSPlatform) HeadArtifact(ctx context.Context, uri string) error {
	bucket, key, err := splitS3URI(uri)
	if err != nil {
		return err
	}
	_, err = c.s3.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("S3 HeadObject %s/%s: %w", bucket, key, err)
	}
	return nil
}

// ---------- recordSink implementation ----------

func (c *AWSPlatform) PutRecord(ctx context.Context, key string, body []byte) error {
	_, err := c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("S3 PutObject %s/%s: %w", c.bucket, key, err)
	}
	c.log.Debug().Str("bucket", c.bucket).Str("key", key).Msg("deployment record written")
	return nil
}

// ---------- pipelineClient implementation ----------

func (c *AWSPlatform) CreatePipeline(ctx context.Context, name, definition, roleARN string, tags map[string]string) (string, error) {
	out, err := c.sm.CreatePipeline(ctx, &sagemaker.CreatePipelineInput{
		PipelineName:       aws.String(name),
		PipelineDefinition: aws.String(definition),
		RoleArn:            aws.String(roleARN),
		ClientRequestToken: aws.String(newRequestToken()),
		Tags:               toSageMakerTags(tags),
	})
	if err != nil {
		return "", err
	}
	return aws.ToString(out.PipelineArn), nil
}

func (c *AWSPlatform) UpdatePipeline(ctx context.Context, name, definition, roleARN string) (string, error) {
	out, err := c.sm.UpdatePipeline(ctx, &sagemaker.UpdatePipelineInput{
		PipelineName:       aws.String(name),
		PipelineDefinition: aws.String(definition),
		RoleArn:            aws.String(roleARN),
	})
	if err != nil {
		return "", fmt.Errorf("UpdatePipeline %q: %w", name, err)
	}
	return aws.ToString(out.PipelineArn), nil
}

func (c *AWSPlatform) StartPipelineExecution(ctx context.Context, name string, params map[string]string, token string) (string, error) {
	input := &sagemaker.StartPipelineExecutionInput{
		PipelineName:       aws.String(name),
		ClientRequestToken: aws.String(token),
	}
	for k, v := range params {
		input.PipelineParameters = append(input.PipelineParameters, smtypes.Parameter{
			Name:  aws.String(k),
			Value: aws.String(v),
		})
	}
	out, err := c.sm.StartPipelineExecution(ctx, input)
	if err != nil {
		return "", fmt.Errorf("StartPipelineExecution %q: %w", name, err)
	}
	return aws.ToString(out.PipelineExecutionArn), nil
}

// ---------- helpers ----------

// mapEndpointStatus normalizes SageMaker endpoint statuses onto the
// five-state lifecycle model.
func mapEndpointStatus(status smtypes.EndpointStatus) EndpointState {
	switch status {
	case smtypes.EndpointStatusInService:
		return StateInService
	case smtypes.EndpointStatusCreating:
		return StateCreating
	case smtypes.EndpointStatusUpdating,
		smtypes.EndpointStatusSystemUpdating,
		smtypes.EndpointStatusRollingBack:
		return StateUpdating
	case smtypes.EndpointStatusFailed,
		smtypes.EndpointStatusUpdateRollbackFailed,
		smtypes.EndpointStatusOutOfService:
		return StateFailed
	case smtypes.EndpointStatusDeleting:
		// Transitional; a fresh probe after deletion completes sees ABSENT.
		return StateCreating
	default:
		return StateFailed
	}
}

// toSageMakerTags converts a tag map to the SDK tag list. Returns nil for
// an empty map so requests omit the field.
func toSageMakerTags(tags map[string]string) []smtypes.Tag {
	if len(tags) == 0 {
		return nil
	}
	out := make([]smtypes.Tag, 0, len(tags))
	for k, v := range tags {
		out = append(out, smtypes.Tag{Key: aws.String(k), Value: aws.String(v)})
	}
	return out
}
