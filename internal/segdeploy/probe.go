package segdeploy

import (
	"context"
	"errors"
)

// Prober queries the serving platform for the current state of a named
// endpoint. The descriptor is re-read on every call and never cached, so
// decisions are always derived from freshly observed state.
type Prober struct {
	platform platformClient
}

// NewProber creates a Prober over the given platform client.
func NewProber(platform platformClient) *Prober {
	return &Prober{platform: platform}
}

// Probe returns the live endpoint descriptor. A "not found" response from
// the platform is the expected first-deployment case and maps to the
// ABSENT state. Any other failure is surfaced as a ProbeError so a masked
// error can never be mistaken for a missing endpoint.
func (p *Prober) Probe(ctx context.Context, name string) (EndpointDescriptor, error) {
	desc, err := p.platform.DescribeEndpoint(ctx, name)
	if err != nil {
		if errors.Is(err, errEndpointNotFound) {
			return EndpointDescriptor{Name: name, CurrentState: StateAbsent}, nil
		}
		return EndpointDescriptor{}, &ProbeError{EndpointName: name, Cause: err}
	}
	return desc, nil
}
