// Bookvault - Resumable Backup and Restore for Book Catalog Databases
// Copyright 2026 Bookvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bookvault/bookvault

/*
registry.go - In-Memory Operation Registry

The registry tracks every chunked upload operation for the lifetime of
the process. All access goes through a mutex; methods return copies so
callers never hold references into registry-owned state.

Claiming an operation for restore is a compare-and-set on the uploading
status, which guarantees that concurrent final-chunk requests cannot
both run the restore.
*/

//nolint:staticcheck // File documentation, not package doc
package transfer

import (
	"sync"
	"time"
)

// Clock abstracts time.Now so tests and the reclaimer can drive virtual
// time.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall-clock Clock used in production.
type SystemClock struct{}

// Now returns the current wall-clock time.
func (SystemClock) Now() time.Time { return time.Now() }

// Registry holds operation records keyed by ID.
type Registry struct {
	mu    sync.Mutex
	ops   map[string]*Operation
	clock Clock
}

// NewRegistry returns an empty Registry using the given clock.
func NewRegistry(clock Clock) *Registry {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Registry{
		ops:   make(map[string]*Operation),
		clock: clock,
	}
}

// Create registers a new uploading operation. Creating an ID that
// already exists replaces the record, which matches how an interrupted
// client retries an upload from scratch.
func (r *Registry) Create(id, checksum string, totalChunks int) Operation {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	op := &Operation{
		ID:          id,
		Kind:        KindRestore,
		Status:      StatusUploading,
		TotalChunks: totalChunks,
		Checksum:    checksum,
		Message:     "upload in progress",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.ops[id] = op
	return *op
}

// Lookup returns a copy of the operation, or ErrUnknownOperation.
func (r *Registry) Lookup(id string) (Operation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	op, ok := r.ops[id]
	if !ok {
		return Operation{}, ErrUnknownOperation
	}
	return *op, nil
}

// RecordProgress updates the distinct-chunk count and bumps the
// activity timestamp.
func (r *Registry) RecordProgress(id string, chunksReceived int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	op, ok := r.ops[id]
	if !ok {
		return ErrUnknownOperation
	}
	op.ChunksReceived = chunksReceived
	op.UpdatedAt = r.clock.Now()
	return nil
}

// ClaimRestore atomically moves the operation from uploading to
// restoring. Exactly one caller wins; the rest get ErrOperationClaimed.
func (r *Registry) ClaimRestore(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	op, ok := r.ops[id]
	if !ok {
		return ErrUnknownOperation
	}
	if op.Status != StatusUploading {
		return ErrOperationClaimed
	}
	op.Status = StatusRestoring
	op.Message = "restore in progress"
	op.UpdatedAt = r.clock.Now()
	return nil
}

// Complete marks the operation finished with the files that were
// restored. A record already in a terminal state is left untouched and
// ErrOperationClaimed is returned.
func (r *Registry) Complete(id string, restoredFiles []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	op, ok := r.ops[id]
	if !ok {
		return ErrUnknownOperation
	}
	if op.Status.terminal() {
		return ErrOperationClaimed
	}
	now := r.clock.Now()
	op.Status = StatusCompleted
	op.Message = "restore completed"
	op.RestoredFiles = append([]string(nil), restoredFiles...)
	op.UpdatedAt = now
	op.CompletedAt = now
	return nil
}

// Fail marks the operation failed with a human-readable reason. A
// record already in a terminal state is left untouched and
// ErrOperationClaimed is returned.
func (r *Registry) Fail(id, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	op, ok := r.ops[id]
	if !ok {
		return ErrUnknownOperation
	}
	if op.Status.terminal() {
		return ErrOperationClaimed
	}
	now := r.clock.Now()
	op.Status = StatusFailed
	op.Message = reason
	op.UpdatedAt = now
	op.CompletedAt = now
	return nil
}

// Remove deletes the operation record. Only the reclaimer calls this;
// completed and failed records stay visible until their grace period
// expires so clients can poll the outcome.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.ops, id)
}

// Expired returns the IDs of terminal operations whose last update is
// older than grace, and of uploading operations idle longer than
// idleTimeout. The reclaimer sweeps these.
func (r *Registry) Expired(grace, idleTimeout time.Duration) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	var expired []string
	for id, op := range r.ops {
		age := now.Sub(op.UpdatedAt)
		switch {
		case op.Status.terminal() && age >= grace:
			expired = append(expired, id)
		case op.Status == StatusUploading && age >= idleTimeout:
			expired = append(expired, id)
		}
	}
	return expired
}

// Len returns the number of tracked operations.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ops)
}
