package segdeploy

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	cwltypes "github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
)

// DiagnosticWarning represents a non-fatal issue detected during
// pre-deploy diagnostics.
type DiagnosticWarning struct {
	Category string
	Message  string
	Hint     string
}

// String formats the warning for display.
func (w DiagnosticWarning) String() string {
	if w.Hint != "" {
		return fmt.Sprintf("[%s] %s (hint: %s)", w.Category, w.Message, w.Hint)
	}
	return fmt.Sprintf("[%s] %s", w.Category, w.Message)
}

// DiagnoseConfig checks the configuration for common misconfigurations and
// returns warnings. Unlike Validate(), these are non-fatal — they highlight
// issues that are likely to cause deploy failures.
func DiagnoseConfig(cfg *Config) []DiagnosticWarning {
	var warnings []DiagnosticWarning
	warnings = append(warnings, diagnoseRoleARN(cfg)...)
	warnings = append(warnings, diagnoseInstanceTypes(cfg)...)
	warnings = append(warnings, diagnoseBucket(cfg)...)
	return warnings
}

// diagnoseRoleARN checks for common IAM role ARN mistakes.
func diagnoseRoleARN(cfg *Config) []DiagnosticWarning {
	if cfg.RoleARN == "" {
		return nil // Validate() will catch this
	}
	var warnings []DiagnosticWarning
	if extractAccountFromARN(cfg.RoleARN) == "123456789012" {
		warnings = append(warnings, DiagnosticWarning{
			Category: ErrCategoryConfiguration,
			Message:  "role_arn uses the placeholder account ID 123456789012",
			Hint:     "replace with your real AWS account ID",
		})
	}
	if strings.Contains(cfg.RoleARN, ":user/") {
		warnings = append(warnings, DiagnosticWarning{
			Category: ErrCategoryPermission,
			Message:  "role_arn appears to be an IAM user, not a role",
			Hint:     "use an IAM role ARN (arn:aws:iam::<account>:role/<name>)",
		})
	}
	if strings.Contains(cfg.RoleARN, ":root") {
		warnings = append(warnings, DiagnosticWarning{
			Category: ErrCategoryPermission,
			Message:  "role_arn references the root account",
			Hint:     "create a dedicated IAM role with least-privilege permissions",
		})
	}
	return warnings
}

// diagnoseInstanceTypes flags instance types that are not SageMaker ML
// instance types. EC2 names like "t2.medium" are a frequent copy-paste
// mistake and fail only at endpoint creation time.
func diagnoseInstanceTypes(cfg *Config) []DiagnosticWarning {
	var warnings []DiagnosticWarning
	for field, value := range map[string]string{
		"endpoint.instance_type": cfg.Endpoint.InstanceType,
		"training.instance_type": cfg.Training.InstanceType,
	} {
		if value != "" && !strings.HasPrefix(value, "ml.") {
			warnings = append(warnings, DiagnosticWarning{
				Category: ErrCategoryConfiguration,
				Message:  fmt.Sprintf("%s %q is not an ML instance type", field, value),
				Hint:     fmt.Sprintf("SageMaker instance types start with \"ml.\" (e.g. ml.%s)", value),
			})
		}
	}
	sort.Slice(warnings, func(i, j int) bool { return warnings[i].Message < warnings[j].Message })
	return warnings
}

// diagnoseBucket flags bucket names written as URIs.
func diagnoseBucket(cfg *Config) []DiagnosticWarning {
	if strings.HasPrefix(cfg.BucketName, "s3://") {
		return []DiagnosticWarning{{
			Category: ErrCategoryConfiguration,
			Message:  fmt.Sprintf("bucket %q includes the s3:// scheme", cfg.BucketName),
			Hint:     "use the bare bucket name",
		}}
	}
	return nil
}

// ---------- endpoint log tail ----------

// endpointLogsAPI is the slice of the CloudWatch Logs API used to pull
// container logs for a failed endpoint.
type endpointLogsAPI interface {
	DescribeLogStreams(ctx context.Context, in *cloudwatchlogs.DescribeLogStreamsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DescribeLogStreamsOutput, error)
	GetLogEvents(ctx context.Context, in *cloudwatchlogs.GetLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.GetLogEventsOutput, error)
}

// LogTailer fetches the most recent container log lines for an endpoint,
// used to surface the failure reason when a transition ends in FAILED.
type LogTailer struct {
	logs endpointLogsAPI
}

func NewLogTailer(logs endpointLogsAPI) *LogTailer {
	return &LogTailer{logs: logs}
}

// endpointLogGroup is the CloudWatch log group SageMaker writes endpoint
// container output to.
func endpointLogGroup(endpointName string) string {
	return "/aws/sagemaker/Endpoints/" + endpointName
}

// Tail returns up to limit log lines from the most recently active log
// stream of the endpoint's log group, oldest first. A missing log group
// (endpoint never got far enough to log) returns no lines and no error.
func (t *LogTailer) Tail(ctx context.Context, endpointName string, limit int32) ([]string, error) {
	group := endpointLogGroup(endpointName)

	streams, err := t.logs.DescribeLogStreams(ctx, &cloudwatchlogs.DescribeLogStreamsInput{
		LogGroupName: aws.String(group),
		OrderBy:      cwltypes.OrderByLastEventTime,
		Descending:   aws.Bool(true),
		Limit:        aws.Int32(1),
	})
	if err != nil {
		if strings.Contains(err.Error(), "ResourceNotFoundException") {
			return nil, nil
		}
		return nil, fmt.Errorf("DescribeLogStreams %q: %w", group, err)
	}
	if len(streams.LogStreams) == 0 {
		return nil, nil
	}

	events, err := t.logs.GetLogEvents(ctx, &cloudwatchlogs.GetLogEventsInput{
		LogGroupName:  aws.String(group),
		LogStreamName: streams.LogStreams[0].LogStreamName,
		Limit:         aws.Int32(limit),
		StartFromHead: aws.Bool(false),
	})
	if err != nil {
		return nil, fmt.Errorf("GetLogEvents %q: %w", group, err)
	}

	lines := make([]string, 0, len(events.Events))
	for _, ev := range events.Events {
		lines = append(lines, aws.ToString(ev.Message))
	}
	return lines, nil
}
