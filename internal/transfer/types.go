// Bookvault - Resumable Backup and Restore for Book Catalog Databases
// Copyright 2026 Bookvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bookvault/bookvault

/*
types.go - Transfer Domain Types

Shared types and sentinel errors for the transfer package: operation
statuses, the operation record itself, and the error values handlers
translate into HTTP status codes.
*/

//nolint:staticcheck // File documentation, not package doc
package transfer

import (
	"errors"
	"fmt"
	"time"
)

// OperationStatus is the lifecycle state of a chunked upload operation.
type OperationStatus string

// Operation lifecycle states. An operation is created as StatusUploading,
// claimed into StatusRestoring by exactly one request, and ends in
// StatusCompleted or StatusFailed.
const (
	StatusUploading OperationStatus = "uploading"
	StatusRestoring OperationStatus = "restoring"
	StatusCompleted OperationStatus = "completed"
	StatusFailed    OperationStatus = "failed"
)

// terminal reports whether the status admits no further transitions.
func (s OperationStatus) terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// OperationKind labels what a transfer operation does. Restores are the
// only registered kind; downloads are stateless and never recorded.
type OperationKind string

// KindRestore is a restore-as-upload operation.
const KindRestore OperationKind = "restore"

// Operation is the record of one chunked restore upload. CompletedAt
// is zero until the operation reaches a terminal state.
type Operation struct {
	ID             string
	Kind           OperationKind
	Status         OperationStatus
	ChunksReceived int
	TotalChunks    int
	Checksum       string
	Message        string
	RestoredFiles  []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CompletedAt    time.Time
}

var (
	// ErrUnknownOperation means no operation exists under the given ID.
	ErrUnknownOperation = errors.New("unknown operation")

	// ErrOperationClaimed means the operation already left the uploading
	// state, so a second restore attempt was refused.
	ErrOperationClaimed = errors.New("operation already claimed")

	// ErrChecksumMismatch means the reassembled upload does not hash to
	// the digest the client declared.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrNothingToRestore means the uploaded archive contained none of
	// the managed database files.
	ErrNothingToRestore = errors.New("archive contains no restorable files")

	// ErrInvalidRange means the Range header could not be parsed.
	ErrInvalidRange = errors.New("invalid range header")

	// ErrRangeNotSatisfiable means the requested range starts at or past
	// the end of the resource.
	ErrRangeNotSatisfiable = errors.New("range not satisfiable")
)

// MissingChunksError reports which chunk indices never arrived when
// assembly was attempted.
type MissingChunksError struct {
	Indices []int
}

func (e *MissingChunksError) Error() string {
	return fmt.Sprintf("missing %d chunk(s): %v", len(e.Indices), e.Indices)
}
