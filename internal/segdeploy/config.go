package segdeploy

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the deployment configuration, loaded from a YAML file and
// optionally overridden by CLI flags.
type Config struct {
	Region      string `yaml:"region"`
	RoleARN     string `yaml:"role_arn"`
	BucketName  string `yaml:"bucket_name"`
	ProjectName string `yaml:"project_name"`
	Environment string `yaml:"environment"`

	// InferenceImage is the serving container image registered with each
	// model handle.
	InferenceImage string `yaml:"inference_image"`

	Endpoint EndpointSettings  `yaml:"endpoint"`
	Training TrainingSettings  `yaml:"training"`
	Tags     map[string]string `yaml:"tags,omitempty"`
}

// EndpointSettings holds serving-side sizing and polling parameters.
type EndpointSettings struct {
	InstanceType  string        `yaml:"instance_type"`
	InstanceCount int32         `yaml:"instance_count"`
	PollInterval  time.Duration `yaml:"poll_interval"`
	MaxWait       time.Duration `yaml:"max_wait"`
}

// TrainingSettings holds the pipeline parameters forwarded to the
// training collaborator.
type TrainingSettings struct {
	NClusters    int    `yaml:"n_clusters"`
	NComponents  int    `yaml:"n_components"`
	DataFile     string `yaml:"data_file"`
	InstanceType string `yaml:"instance_type"`
}

// Defaults applied by applyDefaults when the config omits a value.
const (
	defaultEnvironment       = "dev"
	defaultInstanceCount     = 1
	defaultInferenceInstance = "ml.t2.medium"
	defaultTrainingInstance  = "ml.m5.large"
	defaultNClusters         = 3
	defaultNComponents       = 1
	defaultDataFile          = "customer_segmentation_data.csv"
	defaultPollInterval      = 15 * time.Second
	defaultMaxWait           = 20 * time.Minute
)

var (
	regionRE  = regexp.MustCompile(`^[a-z]{2}-[a-z]+-\d+$`)
	roleARNRE = regexp.MustCompile(`^arn:aws:iam::\d{12}:role/.+$`)
)

// LoadConfig reads and parses the YAML config file at path, applies
// defaults, and returns it without validating. Callers run Validate
// after applying any flag overrides.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return ParseConfig(data)
}

// ParseConfig unmarshals YAML config bytes and applies defaults.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config YAML: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// applyDefaults fills unset fields with their defaults.
func (c *Config) applyDefaults() {
	if c.Environment == "" {
		c.Environment = defaultEnvironment
	}
	if c.Endpoint.InstanceType == "" {
		c.Endpoint.InstanceType = defaultInferenceInstance
	}
	if c.Endpoint.InstanceCount == 0 {
		c.Endpoint.InstanceCount = defaultInstanceCount
	}
	if c.Endpoint.PollInterval == 0 {
		c.Endpoint.PollInterval = defaultPollInterval
	}
	if c.Endpoint.MaxWait == 0 {
		c.Endpoint.MaxWait = defaultMaxWait
	}
	if c.Training.InstanceType == "" {
		c.Training.InstanceType = defaultTrainingInstance
	}
	if c.Training.NClusters == 0 {
		c.Training.NClusters = defaultNClusters
	}
	if c.Training.NComponents == 0 {
		c.Training.NComponents = defaultNComponents
	}
	if c.Training.DataFile == "" {
		c.Training.DataFile = defaultDataFile
	}
}

// Validate checks the config and returns any validation errors.
func (c *Config) Validate() []string {
	var errs []string

	if c.Region == "" {
		errs = append(errs, "region is required")
	} else if !regionRE.MatchString(c.Region) {
		errs = append(errs, fmt.Sprintf("region %q does not match expected format (e.g. us-east-1)", c.Region))
	}

	if c.RoleARN == "" {
		errs = append(errs, "role_arn is required")
	} else if !roleARNRE.MatchString(c.RoleARN) {
		errs = append(errs, fmt.Sprintf("role_arn %q is not a valid IAM role ARN", c.RoleARN))
	}

	if c.BucketName == "" {
		errs = append(errs, "bucket_name is required")
	}
	if c.ProjectName == "" {
		errs = append(errs, "project_name is required")
	} else if err := validateResourceName(c.ProjectName, "project"); err != nil {
		errs = append(errs, err.Error())
	}

	if c.Endpoint.InstanceCount < 1 {
		errs = append(errs, fmt.Sprintf("endpoint.instance_count %d must be at least 1", c.Endpoint.InstanceCount))
	}
	if c.Endpoint.PollInterval <= 0 {
		errs = append(errs, "endpoint.poll_interval must be positive")
	}
	if c.Endpoint.MaxWait < c.Endpoint.PollInterval {
		errs = append(errs, "endpoint.max_wait must be at least endpoint.poll_interval")
	}

	errs = append(errs, validateTags(c.Tags)...)

	return errs
}

// EndpointName returns the conventional endpoint name for the project and
// environment, e.g. "clustering-model-endpoint-dev".
func (c *Config) EndpointName() string {
	return fmt.Sprintf("%s-endpoint-%s", c.ProjectName, c.Environment)
}

// PipelineName returns the conventional pipeline name for the project and
// environment.
func (c *Config) PipelineName() string {
	return fmt.Sprintf("%s-pipeline-%s", c.ProjectName, c.Environment)
}

// maxTagKeyLen is the maximum allowed length for a tag key.
const maxTagKeyLen = 128

// maxTagValueLen is the maximum allowed length for a tag value.
const maxTagValueLen = 256

// maxTagCount is the maximum number of user-defined tags.
const maxTagCount = 50

// validateTags checks user-defined tags for valid keys and values.
func validateTags(tags map[string]string) []string {
	if len(tags) == 0 {
		return nil
	}
	var errs []string
	if len(tags) > maxTagCount {
		errs = append(errs, fmt.Sprintf("tags: at most %d tags allowed, got %d", maxTagCount, len(tags)))
	}
	for k, v := range tags {
		if k == "" {
			errs = append(errs, "tags: key must not be empty")
		}
		if len(k) > maxTagKeyLen {
			errs = append(errs, fmt.Sprintf("tags: key %q exceeds max length %d", k, maxTagKeyLen))
		}
		if len(v) > maxTagValueLen {
			errs = append(errs, fmt.Sprintf("tags: value for key %q exceeds max length %d", k, maxTagValueLen))
		}
	}
	return errs
}

// minARNParts is the minimum number of colon-separated segments in a valid
// ARN (arn:partition:service:region:account-id:resource).
const minARNParts = 5

// arnAccountIndex is the zero-based index of the account-id segment.
const arnAccountIndex = 4

// extractAccountFromARN extracts the AWS account ID from an ARN string.
// Returns an empty string if the ARN is malformed.
func extractAccountFromARN(arn string) string {
	parts := strings.Split(arn, ":")
	if len(parts) < minARNParts {
		return ""
	}
	return parts[arnAccountIndex]
}
