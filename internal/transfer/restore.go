// Bookvault - Resumable Backup and Restore for Book Catalog Databases
// Copyright 2026 Bookvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bookvault/bookvault

/*
restore.go - Restore Engine

Runs the commit phase of an upload: verify the archive checksum,
validate the archive structure, snapshot the live database files, and
extract the managed entries over them.

Restore Process:
 1. Claim the operation (uploading -> restoring, exactly one winner)
 2. Hash the assembled archive and compare against the declared digest
 3. Open the archive and list entries (corruption check)
 4. Copy each existing destination to {path}.{timestamp}.bak
 5. Extract managed entries to their destinations, skipping the rest
 6. Fail if nothing was extracted, otherwise mark completed

Snapshots are plain copies, not renames, so a restore that dies midway
leaves the previous database recoverable by hand.
*/

//nolint:staticcheck // File documentation, not package doc
package transfer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/bookvault/bookvault/internal/archive"
	"github.com/bookvault/bookvault/internal/logging"
)

// ManagedFile pairs an archive entry name with the live path it
// restores to.
type ManagedFile struct {
	Name string
	Path string
}

// Engine performs checksum-gated restores of uploaded archives.
type Engine struct {
	codec    *archive.Codec
	registry *Registry
	clock    Clock
	managed  []ManagedFile
}

// NewEngine returns a restore Engine over the given managed files.
func NewEngine(codec *archive.Codec, registry *Registry, clock Clock, managed []ManagedFile) *Engine {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Engine{
		codec:    codec,
		registry: registry,
		clock:    clock,
		managed:  managed,
	}
}

// ManagedFilesFor builds the ManagedFile list from relative file paths
// resolved against dataDir. Archive entries are matched by base name.
func ManagedFilesFor(dataDir string, relPaths []string) []ManagedFile {
	managed := make([]ManagedFile, len(relPaths))
	for i, rel := range relPaths {
		managed[i] = ManagedFile{
			Name: filepath.Base(rel),
			Path: filepath.Join(dataDir, rel),
		}
	}
	return managed
}

// Restore commits the archive at archivePath over the managed files and
// records the outcome on the operation. The caller must first win the
// restore claim with Registry.ClaimRestore, before assembling the
// archive, so a single operation is never restored twice concurrently.
// An operation not in the restoring state returns ErrOperationClaimed.
// On any failure the operation is marked failed with the reason.
func (e *Engine) Restore(opID, archivePath, expectedChecksum string) (Operation, error) {
	op, err := e.registry.Lookup(opID)
	if err != nil {
		return Operation{}, err
	}
	if op.Status != StatusRestoring {
		return Operation{}, ErrOperationClaimed
	}

	restored, err := e.run(opID, archivePath, expectedChecksum)
	if err != nil {
		if failErr := e.registry.Fail(opID, err.Error()); failErr != nil {
			logging.Error().Err(failErr).Str("operation_id", opID).Msg("Failed to record restore failure")
		}
		op, _ := e.registry.Lookup(opID)
		return op, err
	}

	if err := e.registry.Complete(opID, restored); err != nil {
		return Operation{}, err
	}
	op, lookupErr := e.registry.Lookup(opID)
	if lookupErr != nil {
		return Operation{}, lookupErr
	}

	logging.Info().
		Str("operation_id", opID).
		Strs("restored_files", restored).
		Msg("Restore completed")
	return op, nil
}

// run performs the restore body after the claim has been won.
func (e *Engine) run(opID, archivePath, expectedChecksum string) ([]string, error) {
	if expectedChecksum != "" {
		actual, err := archive.FileChecksum(archivePath)
		if err != nil {
			return nil, fmt.Errorf("failed to hash uploaded archive: %w", err)
		}
		if actual != expectedChecksum {
			return nil, fmt.Errorf("%w: expected %s, got %s", ErrChecksumMismatch, expectedChecksum, actual)
		}
	}

	// Structure check before touching the live files.
	if _, err := e.codec.List(archivePath); err != nil {
		return nil, err
	}

	if err := e.snapshotExisting(opID); err != nil {
		return nil, err
	}

	destinations := make(map[string]string, len(e.managed))
	for _, mf := range e.managed {
		destinations[mf.Name] = mf.Path
	}
	restored, err := e.codec.Extract(archivePath, destinations)
	if err != nil {
		return nil, err
	}
	if len(restored) == 0 {
		return nil, ErrNothingToRestore
	}
	return restored, nil
}

// snapshotExisting copies each managed file that currently exists to a
// timestamped .bak sibling.
func (e *Engine) snapshotExisting(opID string) error {
	ts := e.clock.Now().Format("20060102_150405")
	for _, mf := range e.managed {
		if _, err := os.Stat(mf.Path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("failed to stat %s: %w", mf.Path, err)
		}
		bakPath := fmt.Sprintf("%s.%s.bak", mf.Path, ts)
		if err := copyFile(mf.Path, bakPath); err != nil {
			return fmt.Errorf("failed to snapshot %s: %w", mf.Path, err)
		}
		logging.Debug().
			Str("operation_id", opID).
			Str("snapshot", bakPath).
			Msg("Snapshotted database file before restore")
	}
	return nil
}

// copyFile copies src to dst, truncating any existing dst.
//
//nolint:gosec // G304: paths come from validated configuration
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close() //nolint:errcheck // Best effort cleanup

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close() //nolint:errcheck // Best effort cleanup on error
		return err
	}
	return out.Close()
}

// IsClientError reports whether a restore error is the client's fault
// rather than the server's.
func IsClientError(err error) bool {
	return errors.Is(err, ErrChecksumMismatch) ||
		errors.Is(err, ErrNothingToRestore) ||
		errors.Is(err, archive.ErrCorruptArchive)
}
