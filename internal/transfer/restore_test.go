// Bookvault - Resumable Backup and Restore for Book Catalog Databases
// Copyright 2026 Bookvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bookvault/bookvault

package transfer

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/bookvault/bookvault/internal/archive"
)

// buildArchive creates a zip of the given name/content pairs and
// returns its path and checksum.
func buildArchive(t *testing.T, entries map[string]string) (string, string) {
	t.Helper()
	dir := t.TempDir()

	var sources []archive.Source
	for name, content := range entries {
		srcPath := filepath.Join(dir, "src_"+name)
		if err := os.WriteFile(srcPath, []byte(content), 0o640); err != nil {
			t.Fatal(err)
		}
		sources = append(sources, archive.Source{Path: srcPath, Name: name})
	}

	codec := archive.NewCodec(6)
	arch, err := codec.Create(filepath.Join(dir, "upload.zip"), sources)
	if err != nil {
		t.Fatal(err)
	}
	return arch.Path, arch.Checksum
}

func newTestEngine(t *testing.T, dataDir string, clock Clock) (*Engine, *Registry) {
	t.Helper()
	reg := NewRegistry(clock)
	managed := ManagedFilesFor(dataDir, []string{
		"database/books_data.db",
		"database/books_static.db",
	})
	return NewEngine(archive.NewCodec(6), reg, clock, managed), reg
}

// createClaimed registers an operation and wins its restore claim, the
// state the engine requires before it will run.
func createClaimed(t *testing.T, reg *Registry, id, checksum string, totalChunks int) {
	t.Helper()
	reg.Create(id, checksum, totalChunks)
	if err := reg.ClaimRestore(id); err != nil {
		t.Fatal(err)
	}
}

func TestRestoreReplacesManagedFilesAndSnapshotsOldOnes(t *testing.T) {
	dataDir := t.TempDir()
	livePath := filepath.Join(dataDir, "database", "books_data.db")
	if err := os.MkdirAll(filepath.Dir(livePath), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(livePath, []byte("old catalog"), 0o640); err != nil {
		t.Fatal(err)
	}

	archivePath, checksum := buildArchive(t, map[string]string{
		"books_data.db": "new catalog",
	})

	clock := newFakeClock()
	engine, reg := newTestEngine(t, dataDir, clock)
	createClaimed(t, reg, "op-1", checksum, 1)

	op, err := engine.Restore("op-1", archivePath, checksum)
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if op.Status != StatusCompleted {
		t.Errorf("operation status = %s, want %s", op.Status, StatusCompleted)
	}
	if len(op.RestoredFiles) != 1 || op.RestoredFiles[0] != "books_data.db" {
		t.Errorf("restored files = %v", op.RestoredFiles)
	}

	got, err := os.ReadFile(livePath)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "new catalog" {
		t.Errorf("live file = %q, want %q", got, "new catalog")
	}

	bakPath := livePath + "." + clock.Now().Format("20060102_150405") + ".bak"
	bak, err := os.ReadFile(bakPath)
	if err != nil {
		t.Fatalf("snapshot not written: %v", err)
	}
	if string(bak) != "old catalog" {
		t.Errorf("snapshot = %q, want %q", bak, "old catalog")
	}
}

func TestRestoreSkipsSnapshotForAbsentFiles(t *testing.T) {
	dataDir := t.TempDir()
	archivePath, checksum := buildArchive(t, map[string]string{
		"books_static.db": "static data",
	})

	engine, reg := newTestEngine(t, dataDir, newFakeClock())
	createClaimed(t, reg, "op-1", checksum, 1)

	op, err := engine.Restore("op-1", archivePath, checksum)
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if op.Status != StatusCompleted {
		t.Errorf("status = %s", op.Status)
	}

	// No pre-existing file, so no .bak siblings anywhere under dataDir.
	var baks []string
	filepath.WalkDir(dataDir, func(path string, d os.DirEntry, err error) error { //nolint:errcheck // Walk over test dir
		if err == nil && !d.IsDir() && filepath.Ext(path) == ".bak" {
			baks = append(baks, path)
		}
		return nil
	})
	if len(baks) != 0 {
		t.Errorf("unexpected snapshots: %v", baks)
	}
}

func TestRestoreRejectsChecksumMismatch(t *testing.T) {
	dataDir := t.TempDir()
	livePath := filepath.Join(dataDir, "database", "books_data.db")
	if err := os.MkdirAll(filepath.Dir(livePath), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(livePath, []byte("untouched"), 0o640); err != nil {
		t.Fatal(err)
	}

	archivePath, _ := buildArchive(t, map[string]string{
		"books_data.db": "evil bytes",
	})

	engine, reg := newTestEngine(t, dataDir, newFakeClock())
	createClaimed(t, reg, "op-1", "", 1)

	wrongDigest := "0000000000000000000000000000000000000000000000000000000000000000"
	op, err := engine.Restore("op-1", archivePath, wrongDigest)
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("expected ErrChecksumMismatch, got %v", err)
	}
	if op.Status != StatusFailed {
		t.Errorf("operation status = %s, want %s", op.Status, StatusFailed)
	}

	got, _ := os.ReadFile(livePath)
	if string(got) != "untouched" {
		t.Error("live file was modified despite checksum mismatch")
	}
}

func TestRestoreRejectsCorruptArchive(t *testing.T) {
	dataDir := t.TempDir()
	bogus := filepath.Join(t.TempDir(), "bogus.zip")
	if err := os.WriteFile(bogus, []byte("not a zip"), 0o640); err != nil {
		t.Fatal(err)
	}

	engine, reg := newTestEngine(t, dataDir, newFakeClock())
	createClaimed(t, reg, "op-1", "", 1)

	_, err := engine.Restore("op-1", bogus, "")
	if !errors.Is(err, archive.ErrCorruptArchive) {
		t.Fatalf("expected ErrCorruptArchive, got %v", err)
	}
	op, _ := reg.Lookup("op-1")
	if op.Status != StatusFailed {
		t.Errorf("operation status = %s, want %s", op.Status, StatusFailed)
	}
}

func TestRestoreFailsWhenNoManagedEntries(t *testing.T) {
	dataDir := t.TempDir()
	archivePath, checksum := buildArchive(t, map[string]string{
		"unrelated.txt": "not a database",
	})

	engine, reg := newTestEngine(t, dataDir, newFakeClock())
	createClaimed(t, reg, "op-1", checksum, 1)

	_, err := engine.Restore("op-1", archivePath, checksum)
	if !errors.Is(err, ErrNothingToRestore) {
		t.Fatalf("expected ErrNothingToRestore, got %v", err)
	}
}

func TestRestoreRequiresWonClaim(t *testing.T) {
	dataDir := t.TempDir()
	archivePath, checksum := buildArchive(t, map[string]string{
		"books_data.db": "catalog",
	})

	engine, reg := newTestEngine(t, dataDir, newFakeClock())
	reg.Create("op-1", checksum, 1)

	// The engine refuses operations whose claim was never won.
	if _, err := engine.Restore("op-1", archivePath, checksum); !errors.Is(err, ErrOperationClaimed) {
		t.Fatalf("expected ErrOperationClaimed without a claim, got %v", err)
	}

	if err := reg.ClaimRestore("op-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := engine.Restore("op-1", archivePath, checksum); err != nil {
		t.Fatal(err)
	}
	if _, err := engine.Restore("op-1", archivePath, checksum); !errors.Is(err, ErrOperationClaimed) {
		t.Fatalf("expected ErrOperationClaimed on second restore, got %v", err)
	}
}

func TestIsClientError(t *testing.T) {
	if !IsClientError(ErrChecksumMismatch) || !IsClientError(ErrNothingToRestore) || !IsClientError(archive.ErrCorruptArchive) {
		t.Error("client-fault errors not recognized")
	}
	if IsClientError(os.ErrPermission) {
		t.Error("server-fault error misclassified as client error")
	}
}
