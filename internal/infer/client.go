// Package infer is a typed client for the customer-segmentation serving
// endpoint. It exists so smoke tests and callers consume structured
// predictions instead of re-parsing raw endpoint payloads.
package infer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sagemakerruntime"
	"github.com/rs/zerolog"
)

const contentTypeJSON = "application/json"

// Instance is one customer record submitted for segmentation. Age,
// Income, Purchases, and Gender are required by the model's feature
// pipeline; CustomerID is optional and assigned server-side when absent.
type Instance struct {
	CustomerID *int    `json:"Customer_ID,omitempty"`
	Age        float64 `json:"Age"`
	Income     float64 `json:"Income"`
	Purchases  float64 `json:"Purchases"`
	Gender     string  `json:"Gender"`
}

// request is the batch payload shape the endpoint accepts.
type request struct {
	Instances []Instance `json:"instances"`
}

// Prediction is the segment assignment for one instance. Confidence is
// derived from the distance to the assigned cluster center (closer means
// higher confidence).
type Prediction struct {
	ClusterID        int     `json:"cluster_id"`
	Segment          string  `json:"segment"`
	Confidence       float64 `json:"confidence"`
	DistanceToCenter float64 `json:"distance_to_center"`
}

// Response is the full endpoint reply: one prediction per submitted
// instance, in order, plus the metadata of the model version that served
// the request.
type Response struct {
	Predictions   []Prediction   `json:"predictions"`
	ModelMetadata map[string]any `json:"model_metadata,omitempty"`
}

// endpointInvoker is the slice of the SageMaker runtime API this client
// uses.
type endpointInvoker interface {
	InvokeEndpoint(ctx context.Context, params *sagemakerruntime.InvokeEndpointInput, optFns ...func(*sagemakerruntime.Options)) (*sagemakerruntime.InvokeEndpointOutput, error)
}

// Client invokes a serving endpoint by name.
type Client struct {
	api      endpointInvoker
	endpoint string
	log      zerolog.Logger
}

// New creates a Client over the AWS SageMaker runtime.
func New(awsCfg aws.Config, endpointName string, log zerolog.Logger) *Client {
	return &Client{
		api:      sagemakerruntime.NewFromConfig(awsCfg),
		endpoint: endpointName,
		log:      log,
	}
}

// newWithInvoker wires a Client over any invoker, for tests.
func newWithInvoker(api endpointInvoker, endpointName string, log zerolog.Logger) *Client {
	return &Client{api: api, endpoint: endpointName, log: log}
}

// validate checks the client-side invariants the endpoint would reject
// anyway, saving a round trip.
func validate(instances []Instance) error {
	if len(instances) == 0 {
		return fmt.Errorf("at least one instance is required")
	}
	for i, inst := range instances {
		if inst.Gender == "" {
			return fmt.Errorf("instance %d: Gender is required", i)
		}
		if inst.Age < 0 || inst.Income < 0 || inst.Purchases < 0 {
			return fmt.Errorf("instance %d: Age, Income, and Purchases must be non-negative", i)
		}
	}
	return nil
}

// Predict submits a batch of customer records and returns one segment
// prediction per record, in submission order.
func (c *Client) Predict(ctx context.Context, instances []Instance) (*Response, error) {
	if err := validate(instances); err != nil {
		return nil, err
	}

	body, err := json.Marshal(request{Instances: instances})
	if err != nil {
		return nil, fmt.Errorf("marshal inference request: %w", err)
	}

	out, err := c.api.InvokeEndpoint(ctx, &sagemakerruntime.InvokeEndpointInput{
		EndpointName: aws.String(c.endpoint),
		ContentType:  aws.String(contentTypeJSON),
		Accept:       aws.String(contentTypeJSON),
		Body:         body,
	})
	if err != nil {
		return nil, fmt.Errorf("invoke endpoint %q: %w", c.endpoint, err)
	}

	var resp Response
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return nil, fmt.Errorf("decode inference response: %w", err)
	}
	if len(resp.Predictions) != len(instances) {
		return nil, fmt.Errorf(
			"endpoint returned %d predictions for %d instances", len(resp.Predictions), len(instances))
	}

	c.log.Debug().
		Str("endpoint", c.endpoint).
		Int("instances", len(instances)).
		Msg("inference completed")
	return &resp, nil
}

// PredictOne is a convenience wrapper for single-record lookups.
func (c *Client) PredictOne(ctx context.Context, instance Instance) (*Prediction, error) {
	resp, err := c.Predict(ctx, []Instance{instance})
	if err != nil {
		return nil, err
	}
	return &resp.Predictions[0], nil
}

// DecodeResponse parses a raw endpoint reply. Exposed for callers that
// hold the response body from another transport.
func DecodeResponse(r io.Reader) (*Response, error) {
	var resp Response
	if err := json.NewDecoder(r).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode inference response: %w", err)
	}
	return &resp, nil
}
