// Bookvault - Resumable Backup and Restore for Book Catalog Databases
// Copyright 2026 Bookvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bookvault/bookvault

// Package models defines the wire types shared by the HTTP API.
package models

import (
	"time"
)

// APIResponse is the standardized response wrapper used by all JSON endpoints.
//
// Status field values:
//   - "success": request completed, see Data
//   - "error": request failed, see Error
//
// Example error response:
//
//	{
//	  "status": "error",
//	  "error": {
//	    "code": "CHECKSUM_MISMATCH",
//	    "message": "Checksum verification failed",
//	    "details": {"expected": "ab…", "calculated": "cd…"}
//	  },
//	  "metadata": {"timestamp": "2026-08-26T12:00:00Z"}
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata contains response metadata for observability.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
}

// APIError carries a machine-readable code, a human-readable message, and
// optional structured details (field names, expected values, and so on).
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// FileStatus describes one managed database file for the backup status report.
type FileStatus struct {
	Path          string `json:"path"`
	Exists        bool   `json:"exists"`
	SizeBytes     int64  `json:"size_bytes"`
	SizeFormatted string `json:"size_formatted"`
}

// BackupStatus aggregates per-file status for GET /backup/status.
type BackupStatus struct {
	Databases          []FileStatus `json:"databases"`
	TotalSizeBytes     int64        `json:"total_size_bytes"`
	TotalSizeFormatted string       `json:"total_size_formatted"`
	AllFilesExist      bool         `json:"all_files_exist"`
}

// VerifyResult reports a checksum comparison for GET /backup/verify.
type VerifyResult struct {
	Verified bool   `json:"verified"`
	Expected string `json:"expected,omitempty"`
	Received string `json:"received,omitempty"`
}

// ChunkProgress reports chunked-upload progress for POST /restore.
type ChunkProgress struct {
	UploadID       string `json:"upload_id"`
	Message        string `json:"message"`
	ChunksReceived int    `json:"chunks_received"`
	TotalChunks    int    `json:"total_chunks"`
}

// RestoreOutcome is the final payload of a successful restore.
type RestoreOutcome struct {
	UploadID      string   `json:"upload_id"`
	Message       string   `json:"message"`
	RestoredFiles []string `json:"restored_files"`
}

// OperationRecord is the polling view of a transfer operation for
// GET /operation/status/{upload_id}.
type OperationRecord struct {
	UploadID       string     `json:"upload_id"`
	Kind           string     `json:"kind"`
	Status         string     `json:"status"`
	ChunksReceived int        `json:"chunks_received"`
	TotalChunks    int        `json:"total_chunks"`
	Message        string     `json:"message"`
	RestoredFiles  []string   `json:"restored_files,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}
