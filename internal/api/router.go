// Bookvault - Resumable Backup and Restore for Book Catalog Databases
// Copyright 2026 Bookvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bookvault/bookvault

// Package api provides the HTTP surface of the transfer service using
// the Chi router.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires all endpoints with the global middleware stack.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied in order.
	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(MetricsMiddleware)

	// Transfer endpoints share one per-IP rate limit. Health and metrics
	// stay outside it so monitoring cannot be starved by a bulk upload.
	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(h.cfg.Server.RateLimitReqs, h.cfg.Server.RateLimitWindow))

		r.Get("/backup", h.BackupDownload)
		r.Get("/backup/status", h.BackupStatus)
		r.Get("/backup/verify", h.BackupVerify)
		r.Post("/restore", h.Restore)
		r.Get("/operation/status/{upload_id}", h.OperationStatus)
	})

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
