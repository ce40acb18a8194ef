package segdeploy

import (
	"fmt"
	"regexp"
	"sync/atomic"

	"github.com/raulk/clock"
)

// resourceNamePattern is the regex for valid SageMaker resource names
// (endpoints, configs, models, pipelines): alphanumeric with interior
// hyphens, at most 63 characters.
const resourceNamePattern = `^[a-zA-Z0-9](-*[a-zA-Z0-9]){0,62}$`

// resourceNameRe is the compiled regex for validating resource names.
var resourceNameRe = regexp.MustCompile(resourceNamePattern)

// validateResourceName checks whether name is a valid SageMaker resource
// name. The resourceType is used in the error message to identify which
// derived name is invalid.
func validateResourceName(name, resourceType string) error {
	if !resourceNameRe.MatchString(name) {
		return fmt.Errorf(
			"resource name %q (%s) is invalid: must match %s",
			name, resourceType, resourceNamePattern,
		)
	}
	return nil
}

// versionTagLayout is the timestamp layout embedded in version tags.
const versionTagLayout = "20060102-150405"

// versionSeq is a process-wide counter that disambiguates version tags
// generated within the same clock tick. Identifiers must be pairwise
// distinct so retried deployments never collide with an in-flight or
// historical config.
var versionSeq atomic.Uint64

// versionTag returns a collision-free version tag from the injected clock
// and the process counter, e.g. "20240101-150405-3".
func versionTag(clk clock.Clock) string {
	seq := versionSeq.Add(1)
	return fmt.Sprintf("%s-%d", clk.Now().UTC().Format(versionTagLayout), seq)
}

// configIDSuffix and modelNameSuffix keep registrar-derived names aligned
// between registration and transition execution.
const (
	configIDInfix  = "-cfg-"
	modelNameInfix = "-model-"
)

// deriveConfigID builds the endpoint config identifier for a deployment
// attempt from the endpoint name and a fresh version tag.
func deriveConfigID(endpointName, tag string) string {
	return endpointName + configIDInfix + tag
}

// deriveModelName builds the model name for a deployment attempt.
func deriveModelName(endpointName, tag string) string {
	return endpointName + modelNameInfix + tag
}
