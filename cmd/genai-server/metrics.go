package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Request metrics, labeled by outcome so dashboards can separate client
// errors from model failures.
var (
	generateRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "genai_generate_requests_total",
		Help: "Text generation requests by outcome.",
	}, []string{"outcome"})

	generateDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "genai_generate_duration_seconds",
		Help:    "End-to-end latency of text generation requests.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	})

	wsConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "genai_ws_connections",
		Help: "Open WebSocket streaming connections.",
	})
)

// Outcome label values.
const (
	outcomeOK          = "ok"
	outcomeBadRequest  = "bad_request"
	outcomeModelError  = "model_error"
)
