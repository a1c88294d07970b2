// Bookvault - Resumable Backup and Restore for Book Catalog Databases
// Copyright 2026 Bookvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bookvault/bookvault

/*
reclaimer.go - Deferred Resource Reclamation

A single supervised sweep loop replaces per-resource timers. Handlers
schedule a path with a grace delay; the reclaimer removes it once due.
The same sweep retires operation records after their grace period and
abandons uploads that have gone idle, removing their chunk directories.

Grace periods exist so a client that just finished a download can still
re-request ranges of the same archive, and so a client can poll a
completed operation's status before the record disappears.
*/

//nolint:staticcheck // File documentation, not package doc
package transfer

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/bookvault/bookvault/internal/logging"
)

// ReclaimerConfig carries the sweep cadence and grace periods.
type ReclaimerConfig struct {
	SweepInterval     time.Duration
	OperationGrace    time.Duration
	UploadIdleTimeout time.Duration
}

// Reclaimer removes expired archives, operation records, and abandoned
// upload directories. It implements suture.Service.
type Reclaimer struct {
	mu        sync.Mutex
	scheduled map[string]time.Time

	registry    *Registry
	reassembler *Reassembler
	clock       Clock
	cfg         ReclaimerConfig
}

// NewReclaimer returns a Reclaimer sweeping on cfg.SweepInterval.
func NewReclaimer(registry *Registry, reassembler *Reassembler, clock Clock, cfg ReclaimerConfig) *Reclaimer {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Reclaimer{
		scheduled:   make(map[string]time.Time),
		registry:    registry,
		reassembler: reassembler,
		clock:       clock,
		cfg:         cfg,
	}
}

// ScheduleRemoval marks path for deletion once delay has elapsed.
// Rescheduling an already-tracked path pushes its deadline out, so a
// re-downloaded archive gets a fresh grace period.
func (rc *Reclaimer) ScheduleRemoval(path string, delay time.Duration) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.scheduled[path] = rc.clock.Now().Add(delay)
}

// Pending returns the number of paths awaiting removal.
func (rc *Reclaimer) Pending() int {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return len(rc.scheduled)
}

// Serve runs the sweep loop until the context is canceled. It
// implements suture.Service.
func (rc *Reclaimer) Serve(ctx context.Context) error {
	ticker := time.NewTicker(rc.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			rc.sweep()
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (rc *Reclaimer) String() string {
	return "transfer-reclaimer"
}

// sweep removes everything whose grace period has expired.
func (rc *Reclaimer) sweep() {
	now := rc.clock.Now()

	rc.mu.Lock()
	var due []string
	for path, deadline := range rc.scheduled {
		if !deadline.After(now) {
			due = append(due, path)
			delete(rc.scheduled, path)
		}
	}
	rc.mu.Unlock()

	for _, path := range due {
		if err := os.RemoveAll(path); err != nil {
			logging.Warn().Err(err).Str("path", path).Msg("Failed to reclaim expired file")
			continue
		}
		logging.Debug().Str("path", path).Msg("Reclaimed expired file")
	}

	for _, id := range rc.registry.Expired(rc.cfg.OperationGrace, rc.cfg.UploadIdleTimeout) {
		if err := rc.reassembler.Discard(id); err != nil {
			logging.Warn().Err(err).Str("operation_id", id).Msg("Failed to remove upload directory")
		}
		rc.registry.Remove(id)
		logging.Debug().Str("operation_id", id).Msg("Retired operation record")
	}
}
