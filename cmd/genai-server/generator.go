package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

const contentTypeJSON = "application/json"

// generator produces text completions for user prompts. Implemented
// against Bedrock in production; tests inject a fake.
type generator interface {
	// Generate returns the full completion for text.
	Generate(ctx context.Context, text string) (string, error)

	// GenerateStream invokes emit for each completion chunk as it
	// arrives. A non-nil error from emit aborts the stream.
	GenerateStream(ctx context.Context, text string, emit func(chunk string) error) error
}

// modelRequest is the Anthropic text-completion request body.
type modelRequest struct {
	Prompt            string   `json:"prompt"`
	MaxTokensToSample int      `json:"max_tokens_to_sample"`
	Temperature       float64  `json:"temperature"`
	StopSequences     []string `json:"stop_sequences"`
}

// modelResponse is the (possibly partial) completion body returned by the
// model, both for whole responses and stream chunks.
type modelResponse struct {
	Completion string `json:"completion"`
}

// bedrockGenerator calls a Bedrock foundation model.
type bedrockGenerator struct {
	client      *bedrockruntime.Client
	modelID     string
	maxTokens   int
	temperature float64
}

func newBedrockGenerator(awsCfg aws.Config, cfg config) *bedrockGenerator {
	return &bedrockGenerator{
		client:      bedrockruntime.NewFromConfig(awsCfg),
		modelID:     cfg.ModelID,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}
}

// buildBody wraps the user text in the Human/Assistant turn format the
// model expects.
func (g *bedrockGenerator) buildBody(text string) ([]byte, error) {
	return json.Marshal(modelRequest{
		Prompt:            fmt.Sprintf("Human: %s\n\nAssistant:", strings.TrimSpace(text)),
		MaxTokensToSample: g.maxTokens,
		Temperature:       g.temperature,
		StopSequences:     []string{"\n\nHuman:"},
	})
}

func (g *bedrockGenerator) Generate(ctx context.Context, text string) (string, error) {
	body, err := g.buildBody(text)
	if err != nil {
		return "", fmt.Errorf("marshal model request: %w", err)
	}

	out, err := g.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(g.modelID),
		ContentType: aws.String(contentTypeJSON),
		Accept:      aws.String(contentTypeJSON),
		Body:        body,
	})
	if err != nil {
		return "", fmt.Errorf("invoke model %q: %w", g.modelID, err)
	}

	var resp modelResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return "", fmt.Errorf("decode model response: %w", err)
	}
	return resp.Completion, nil
}

func (g *bedrockGenerator) GenerateStream(ctx context.Context, text string, emit func(string) error) error {
	body, err := g.buildBody(text)
	if err != nil {
		return fmt.Errorf("marshal model request: %w", err)
	}

	out, err := g.client.InvokeModelWithResponseStream(ctx, &bedrockruntime.InvokeModelWithResponseStreamInput{
		ModelId:     aws.String(g.modelID),
		ContentType: aws.String(contentTypeJSON),
		Accept:      aws.String(contentTypeJSON),
		Body:        body,
	})
	if err != nil {
		return fmt.Errorf("invoke model %q: %w", g.modelID, err)
	}

	stream := out.GetStream()
	defer func() { _ = stream.Close() }()

	for event := range stream.Events() {
		chunk, ok := event.(*brtypes.ResponseStreamMemberChunk)
		if !ok {
			continue
		}
		var resp modelResponse
		if err := json.Unmarshal(chunk.Value.Bytes, &resp); err != nil {
			return fmt.Errorf("decode stream chunk: %w", err)
		}
		if resp.Completion == "" {
			continue
		}
		if err := emit(resp.Completion); err != nil {
			return err
		}
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("model stream: %w", err)
	}
	return nil
}
