package segdeploy

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for outcomes callers are expected to branch on.
var (
	// ErrArtifactNotFound means the trained model output is missing or
	// unreadable. Fatal; retrying without a new training run cannot help.
	ErrArtifactNotFound = errors.New("trained artifact not found")

	// ErrConflict means another transition for the same endpoint is in
	// flight. Retryable after backoff; never fatal.
	ErrConflict = errors.New("concurrent transition in progress")

	// ErrTimeout means the endpoint did not reach a terminal state within
	// the configured budget. The platform resource is left as-is; the next
	// run re-probes and reconciles.
	ErrTimeout = errors.New("transition did not reach a terminal state in time")
)

// ProbeError wraps a platform query failure. It is deliberately distinct
// from the ABSENT state: a failed describe call must never be read as
// "the endpoint does not exist".
type ProbeError struct {
	EndpointName string
	Cause        error
}

// Error implements the error interface.
func (e *ProbeError) Error() string {
	return fmt.Sprintf("probing endpoint %q: %v", e.EndpointName, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *ProbeError) Unwrap() error {
	return e.Cause
}

// RegistrationError wraps a model or endpoint-config registration failure
// (invalid sizing, unreadable artifact, missing permission). Fatal for the
// current run; no transition is attempted without a registered config.
type RegistrationError struct {
	ConfigID string
	Reason   string
	Cause    error
}

// Error implements the error interface.
func (e *RegistrationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("registering config %q: %s: %v", e.ConfigID, e.Reason, e.Cause)
	}
	return fmt.Sprintf("registering config %q: %s", e.ConfigID, e.Reason)
}

// Unwrap returns the underlying cause, if any.
func (e *RegistrationError) Unwrap() error {
	return e.Cause
}

// Error category constants classify deployment failures for CLI diagnostics.
const (
	ErrCategoryPermission    = "permission"
	ErrCategoryConfiguration = "configuration"
	ErrCategoryResource      = "resource"
	ErrCategoryTimeout       = "timeout"
	ErrCategoryNetwork       = "network"
)

// ClassifyError inspects an error and returns a category and a
// human-readable remediation hint based on common AWS failure patterns.
func ClassifyError(err error) (category, remediation string) {
	if err == nil {
		return ErrCategoryResource, ""
	}
	if errors.Is(err, ErrTimeout) {
		return ErrCategoryTimeout, hintRetryOrTimeout
	}
	return classifyErrorMessage(err.Error())
}

// classifyErrorMessage determines category and remediation from an error string.
func classifyErrorMessage(msg string) (category, remediation string) {
	lower := strings.ToLower(msg)

	if containsAny(lower, permissionKeywords) {
		return ErrCategoryPermission, hintCheckIAM
	}
	if containsAny(lower, networkKeywords) {
		return ErrCategoryNetwork, hintCheckNetwork
	}
	if containsAny(lower, timeoutKeywords) {
		return ErrCategoryTimeout, hintRetryOrTimeout
	}
	if containsAny(lower, configKeywords) {
		return ErrCategoryConfiguration, hintCheckConfig
	}
	return ErrCategoryResource, ""
}

// Keyword groups for error classification.
var (
	permissionKeywords = []string{
		"accessdenied", "access denied", "unauthorized",
		"not authorized", "forbidden",
	}
	networkKeywords = []string{
		"connection refused", "no such host",
		"dial tcp", "tls handshake",
	}
	timeoutKeywords = []string{
		"deadline exceeded", "context canceled",
		"did not reach a terminal state",
	}
	configKeywords = []string{
		"validation", "invalid", "malformed",
	}
)

// Remediation hint constants.
const (
	hintCheckIAM       = "verify the execution role can read the artifact bucket and manage SageMaker endpoints"
	hintCheckNetwork   = "verify the AWS region is correct and network connectivity is available"
	hintRetryOrTimeout = "the endpoint may still be transitioning; re-run to re-probe and reconcile"
	hintCheckConfig    = "check the deploy config values match SageMaker requirements"
)

// containsAny returns true if s contains any of the substrings.
func containsAny(s string, substrings []string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
