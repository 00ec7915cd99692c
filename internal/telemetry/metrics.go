/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package telemetry holds the streaming core's Prometheus collectors:
// active multi-client jobs, subscriber counts, bytes streamed, and
// transcoder starts/restarts, registered against
// prometheus.DefaultRegisterer via promauto.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// APIRequestsTotal counts HTTP requests by method, route, and status.
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamcore_api_requests_total",
		Help: "Total HTTP requests served by the streaming core.",
	}, []string{"method", "route", "status"})

	// APIRequestDuration observes request latency by method, route, status.
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "streamcore_api_request_duration_seconds",
		Help:    "HTTP request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	// APIActiveConnections tracks in-flight HTTP requests, including
	// long-lived streaming connections.
	APIActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "streamcore_api_active_connections",
		Help: "Number of in-flight HTTP requests, including open stream connections.",
	})

	// MultiClientJobsActive is the number of MultiClientStreamJobs currently
	// Pending or Running.
	MultiClientJobsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "streamcore_multiclient_jobs_active",
		Help: "Number of multi-client stream jobs currently pending or running.",
	})

	// MultiClientSubscribersActive is the total subscriber count across all
	// active jobs.
	MultiClientSubscribersActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "streamcore_multiclient_subscribers_active",
		Help: "Total number of subscribers across all active multi-client jobs.",
	})

	// BytesStreamedTotal counts encoded audio bytes relayed from the
	// transcoder to streaming responses, labelled by stream kind.
	BytesStreamedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamcore_bytes_streamed_total",
		Help: "Total encoded audio bytes relayed to streaming clients, labelled by stream kind (single, flow, multi).",
	}, []string{"kind"})

	// TranscoderStartsTotal counts transcoder process launches, labelled by
	// output codec.
	TranscoderStartsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamcore_transcoder_starts_total",
		Help: "Total transcoder process launches, labelled by output codec.",
	}, []string{"codec"})

	// TranscoderRestartsTotal counts restarts granted by the rate-limited
	// restart budget in internal/transcoder (Process.AllowRestart).
	TranscoderRestartsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamcore_transcoder_restarts_total",
		Help: "Total transcoder restarts after an unexpected exit, labelled by codec.",
	}, []string{"codec"})

	// SubscriberLateJoinsTotal counts late-join registrations on
	// multi-client jobs.
	SubscriberLateJoinsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamcore_subscriber_late_joins_total",
		Help: "Total multi-client subscribers that joined after production had already started.",
	})
)

// Handler exposes the process's registered collectors for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}
