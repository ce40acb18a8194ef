package segdeploy

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"access denied", errors.New("AccessDeniedException: not authorized to perform sagemaker:CreateEndpoint"), ErrCategoryPermission},
		{"forbidden", errors.New("403 Forbidden"), ErrCategoryPermission},
		{"dns", errors.New("dial tcp: lookup api.sagemaker.eu-west-1.amazonaws.com: no such host"), ErrCategoryNetwork},
		{"deadline", errors.New("context deadline exceeded"), ErrCategoryTimeout},
		{"transition timeout", fmt.Errorf("%w: endpoint still CREATING after 20m", ErrTimeout), ErrCategoryTimeout},
		{"validation", errors.New("ValidationException: invalid instance type"), ErrCategoryConfiguration},
		{"unknown", errors.New("something odd happened"), ErrCategoryResource},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			category, _ := ClassifyError(tt.err)
			if category != tt.want {
				t.Errorf("ClassifyError(%v) = %q, want %q", tt.err, category, tt.want)
			}
		})
	}
}

func TestClassifyErrorRemediationHints(t *testing.T) {
	_, hint := ClassifyError(errors.New("AccessDenied"))
	if !strings.Contains(hint, "role") {
		t.Errorf("permission hint %q does not mention the role", hint)
	}
	_, hint = ClassifyError(fmt.Errorf("%w", ErrTimeout))
	if hint == "" {
		t.Error("timeout errors need a remediation hint")
	}
}

func TestProbeErrorWrapping(t *testing.T) {
	cause := errors.New("throttled")
	err := error(&ProbeError{EndpointName: "seg-endpoint-dev", Cause: cause})

	if !errors.Is(err, cause) {
		t.Error("ProbeError does not unwrap to its cause")
	}
	if !strings.Contains(err.Error(), "seg-endpoint-dev") {
		t.Errorf("message %q does not name the endpoint", err.Error())
	}
}

func TestRegistrationErrorMessages(t *testing.T) {
	withCause := &RegistrationError{ConfigID: "seg-cfg-1", Reason: "create model", Cause: errors.New("boom")}
	if !strings.Contains(withCause.Error(), "boom") {
		t.Errorf("message %q omits the cause", withCause.Error())
	}
	withoutCause := &RegistrationError{Reason: "instance count 0 must be at least 1"}
	if !strings.Contains(withoutCause.Error(), "instance count") {
		t.Errorf("message %q omits the reason", withoutCause.Error())
	}
}
