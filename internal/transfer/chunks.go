// Bookvault - Resumable Backup and Restore for Book Catalog Databases
// Copyright 2026 Bookvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bookvault/bookvault

/*
chunks.go - Upload Chunk Reassembly

Chunks land on disk as they arrive, one file per index under a
per-operation directory:

	{uploads_dir}/{operation_id}/
	├── chunk_0
	├── chunk_1
	├── ...
	└── combined.zip   (written by Assemble)

The chunk files themselves are the record of what has arrived. A
re-sent index overwrites its file, so duplicates and out-of-order
arrival cannot change the assembled bytes, and the distinct-chunk count
never double-counts a retry.
*/

//nolint:staticcheck // File documentation, not package doc
package transfer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	chunkPrefix      = "chunk_"
	combinedFileName = "combined.zip"
)

// Reassembler persists upload chunks and stitches them back together.
type Reassembler struct {
	uploadsDir string
}

// NewReassembler returns a Reassembler rooted at uploadsDir.
func NewReassembler(uploadsDir string) *Reassembler {
	return &Reassembler{uploadsDir: uploadsDir}
}

// OperationDir returns the on-disk directory for an operation's chunks.
func (ra *Reassembler) OperationDir(opID string) string {
	return filepath.Join(ra.uploadsDir, opID)
}

// Accept stores one chunk and returns the number of distinct chunk
// indices now present. Writing goes through a temp file so a chunk is
// only ever observed complete.
//
//nolint:gosec // G304: opID is a validated UUID, index a parsed integer
func (ra *Reassembler) Accept(opID string, index int, r io.Reader) (int, error) {
	if index < 0 {
		return 0, fmt.Errorf("chunk index must not be negative, got %d", index)
	}

	dir := ra.OperationDir(opID)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return 0, fmt.Errorf("failed to create upload directory: %w", err)
	}

	finalPath := filepath.Join(dir, chunkPrefix+strconv.Itoa(index))
	tmpPath := finalPath + ".tmp"

	tmp, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return 0, fmt.Errorf("failed to create chunk file: %w", err)
	}
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close() //nolint:errcheck // Best effort cleanup on error
		os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to write chunk %d: %w", index, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to close chunk %d: %w", index, err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to commit chunk %d: %w", index, err)
	}

	return ra.Received(opID)
}

// Received counts the distinct chunk indices present for an operation.
func (ra *Reassembler) Received(opID string) (int, error) {
	indices, err := ra.presentIndices(opID)
	if err != nil {
		return 0, err
	}
	return len(indices), nil
}

// presentIndices lists the chunk indices on disk for an operation.
func (ra *Reassembler) presentIndices(opID string) (map[int]bool, error) {
	entries, err := os.ReadDir(ra.OperationDir(opID))
	if err != nil {
		if os.IsNotExist(err) {
			return map[int]bool{}, nil
		}
		return nil, fmt.Errorf("failed to read upload directory: %w", err)
	}

	indices := make(map[int]bool, len(entries))
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, chunkPrefix) || strings.HasSuffix(name, ".tmp") {
			continue
		}
		idx, err := strconv.Atoi(strings.TrimPrefix(name, chunkPrefix))
		if err != nil {
			continue
		}
		indices[idx] = true
	}
	return indices, nil
}

// Assemble concatenates chunks 0 through totalChunks-1 into the
// combined archive and returns its path. Any gap in the index sequence
// fails with a MissingChunksError naming every absent index.
//
//nolint:gosec // G304: paths are derived from internal upload state
func (ra *Reassembler) Assemble(opID string, totalChunks int) (string, error) {
	present, err := ra.presentIndices(opID)
	if err != nil {
		return "", err
	}

	var missing []int
	for i := 0; i < totalChunks; i++ {
		if !present[i] {
			missing = append(missing, i)
		}
	}
	if len(missing) > 0 {
		return "", &MissingChunksError{Indices: missing}
	}

	dir := ra.OperationDir(opID)
	combinedPath := filepath.Join(dir, combinedFileName)
	out, err := os.OpenFile(combinedPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return "", fmt.Errorf("failed to create combined archive: %w", err)
	}

	for i := 0; i < totalChunks; i++ {
		chunk, err := os.Open(filepath.Join(dir, chunkPrefix+strconv.Itoa(i)))
		if err != nil {
			out.Close() //nolint:errcheck // Best effort cleanup on error
			return "", fmt.Errorf("failed to open chunk %d: %w", i, err)
		}
		_, err = io.Copy(out, chunk)
		chunk.Close() //nolint:errcheck // Best effort cleanup
		if err != nil {
			out.Close() //nolint:errcheck // Best effort cleanup on error
			return "", fmt.Errorf("failed to append chunk %d: %w", i, err)
		}
	}

	if err := out.Close(); err != nil {
		return "", fmt.Errorf("failed to close combined archive: %w", err)
	}
	return combinedPath, nil
}

// Discard removes an operation's chunk directory and everything in it.
func (ra *Reassembler) Discard(opID string) error {
	return os.RemoveAll(ra.OperationDir(opID))
}
