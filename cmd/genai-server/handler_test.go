package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

// fakeGenerator returns canned completions and records the last prompt.
type fakeGenerator struct {
	completion string
	chunks     []string
	err        error
	lastText   string
}

func (f *fakeGenerator) Generate(_ context.Context, text string) (string, error) {
	f.lastText = text
	if f.err != nil {
		return "", f.err
	}
	return f.completion, nil
}

func (f *fakeGenerator) GenerateStream(_ context.Context, text string, emit func(string) error) error {
	f.lastText = text
	if f.err != nil {
		return f.err
	}
	for _, c := range f.chunks {
		if err := emit(c); err != nil {
			return err
		}
	}
	return nil
}

func newTestServer(gen generator) *server {
	return newServer(gen, newHealthHandler(), zerolog.Nop())
}

func postGenerate(t *testing.T, srv *server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, req)
	return rec
}

func TestGenerate(t *testing.T) {
	gen := &fakeGenerator{completion: " The answer is 42."}
	rec := postGenerate(t, newTestServer(gen), `{"text": "What is the answer?"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp generateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if resp.Completion != " The answer is 42." {
		t.Errorf("completion = %q", resp.Completion)
	}
	if gen.lastText != "What is the answer?" {
		t.Errorf("generator received %q", gen.lastText)
	}
}

func TestGenerateBadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid JSON", `{"text": `},
		{"missing text", `{}`},
		{"blank text", `{"text": "   "}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postGenerate(t, newTestServer(&fakeGenerator{}), tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			var resp errorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.Error == "" {
				t.Errorf("error body = %q", rec.Body.String())
			}
		})
	}
}

func TestGenerateModelFailure(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("ThrottlingException")}
	rec := postGenerate(t, newTestServer(gen), `{"text": "hello"}`)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ThrottlingException") {
		t.Errorf("body %q does not carry the model error", rec.Body.String())
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(&fakeGenerator{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	srv.health.setUnhealthy()
	rec = httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("draining status = %d, want 503", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(&fakeGenerator{})
	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
