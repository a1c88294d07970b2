// Bookvault - Resumable Backup and Restore for Book Catalog Databases
// Copyright 2026 Bookvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bookvault/bookvault

package api

import (
	"net/http"
	"time"
)

// Health handles GET /healthz with uptime and tracked-operation count.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
		"operations":     h.registry.Len(),
	})
}
