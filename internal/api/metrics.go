// Bookvault - Resumable Backup and Restore for Book Catalog Databases
// Copyright 2026 Bookvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bookvault/bookvault

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookvault_http_requests_total",
		Help: "HTTP requests by method, route pattern, and status code.",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bookvault_http_request_duration_seconds",
		Help:    "HTTP request latency by route pattern.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	backupBytesStreamedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookvault_backup_bytes_streamed_total",
		Help: "Archive bytes streamed to backup clients, ranges included.",
	})

	restoreChunksReceivedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookvault_restore_chunks_received_total",
		Help: "Upload chunks accepted, duplicates included.",
	})

	restoresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookvault_restores_total",
		Help: "Restore attempts by outcome.",
	}, []string{"outcome"})
)

// MetricsMiddleware records request counts and latency per route
// pattern. It runs after chi routing so the pattern, not the raw URL,
// labels the series.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		pattern := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			pattern = rctx.RoutePattern()
		}
		httpRequestsTotal.WithLabelValues(r.Method, pattern, strconv.Itoa(ww.Status())).Inc()
		httpRequestDuration.WithLabelValues(pattern).Observe(time.Since(start).Seconds())
	})
}
