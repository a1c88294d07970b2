// Bookvault - Resumable Backup and Restore for Book Catalog Databases
// Copyright 2026 Bookvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bookvault/bookvault

package api

import (
	"time"

	"github.com/bookvault/bookvault/internal/archive"
	"github.com/bookvault/bookvault/internal/config"
	"github.com/bookvault/bookvault/internal/transfer"
)

// Handler carries the dependencies for the transfer API.
//
// Handler methods are split across files:
//   - handlers.go: Handler struct and constructor (this file)
//   - handlers_backup.go: backup download, status, and verify endpoints
//   - handlers_restore.go: restore upload and operation status endpoints
//   - handlers_health.go: health endpoint
type Handler struct {
	cfg         *config.Config
	codec       *archive.Codec
	registry    *transfer.Registry
	reassembler *transfer.Reassembler
	engine      *transfer.Engine
	reclaimer   *transfer.Reclaimer
	clock       transfer.Clock
	startTime   time.Time
}

// NewHandler creates the API handler over the transfer components.
//
// Dependencies:
//   - cfg: validated application configuration
//   - codec: archive codec shared with the restore engine
//   - registry: operation registry for chunked uploads
//   - reassembler: chunk persistence and reassembly
//   - engine: checksum-gated restore engine
//   - reclaimer: deferred removal of temp archives and stale operations
//   - clock: time source, injectable for tests
func NewHandler(cfg *config.Config, codec *archive.Codec, registry *transfer.Registry, reassembler *transfer.Reassembler, engine *transfer.Engine, reclaimer *transfer.Reclaimer, clock transfer.Clock) *Handler {
	if clock == nil {
		clock = transfer.SystemClock{}
	}
	return &Handler{
		cfg:         cfg,
		codec:       codec,
		registry:    registry,
		reassembler: reassembler,
		engine:      engine,
		reclaimer:   reclaimer,
		clock:       clock,
		startTime:   time.Now(),
	}
}
