package main

import (
	"fmt"
	"os"
	"strconv"
)

// Environment defaults. MODEL_ID, MAX_TOKENS, and TEMPERATURE mirror the
// knobs of the serving function this server replaces.
const (
	defaultAddr        = ":8080"
	defaultModelID     = "anthropic.claude-v2"
	defaultMaxTokens   = 400
	defaultTemperature = 0.7
)

// config holds the server configuration, loaded from environment
// variables.
type config struct {
	Addr        string
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float64
}

// loadConfig reads configuration from the environment and validates it.
func loadConfig() (config, error) {
	cfg := config{
		Addr:        envOr("GENAI_ADDR", defaultAddr),
		Region:      os.Getenv("AWS_REGION"),
		ModelID:     envOr("MODEL_ID", defaultModelID),
		MaxTokens:   defaultMaxTokens,
		Temperature: defaultTemperature,
	}

	if v := os.Getenv("MAX_TOKENS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return config{}, fmt.Errorf("MAX_TOKENS %q is not an integer: %w", v, err)
		}
		cfg.MaxTokens = n
	}
	if v := os.Getenv("TEMPERATURE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return config{}, fmt.Errorf("TEMPERATURE %q is not a number: %w", v, err)
		}
		cfg.Temperature = f
	}

	if cfg.MaxTokens < 1 {
		return config{}, fmt.Errorf("MAX_TOKENS must be at least 1, got %d", cfg.MaxTokens)
	}
	if cfg.Temperature < 0 || cfg.Temperature > 1 {
		return config{}, fmt.Errorf("TEMPERATURE must be in [0, 1], got %g", cfg.Temperature)
	}
	return cfg, nil
}

// envOr returns the environment variable value or a fallback.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
