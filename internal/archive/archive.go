// Bookvault - Resumable Backup and Restore for Book Catalog Databases
// Copyright 2026 Bookvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bookvault/bookvault

/*
archive.go - Zip Archive Codec

This file handles creation, inspection, and selective extraction of the
zip archives that carry database snapshots between server and client.

Archive Structure:

	books_db_backup_{timestamp}.zip
	├── books_data.db    (catalog database)
	└── books_static.db  (static reference database)

Entry names are the base names of the managed files. Extraction is
driven by a name-to-destination map, so entries the server does not
manage are skipped rather than rejected. Deflate compression uses the
klauspost implementation registered per writer and reader.
*/

//nolint:staticcheck // File documentation, not package doc
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/flate"
)

var (
	// ErrSourceMissing means a file slated for archiving does not exist.
	ErrSourceMissing = errors.New("archive source file missing")

	// ErrCorruptArchive means the archive could not be opened or read.
	ErrCorruptArchive = errors.New("archive is corrupt or unreadable")
)

// Source names a filesystem file and the entry name it takes inside the
// archive.
type Source struct {
	Path string
	Name string
}

// Entry describes one archive member.
type Entry struct {
	Name             string
	CompressedSize   int64
	UncompressedSize int64
}

// Archive describes a finished archive on disk.
type Archive struct {
	Path     string
	Size     int64
	Checksum string
}

// Codec creates and reads zip archives at a fixed compression level.
type Codec struct {
	level int
}

// NewCodec returns a Codec compressing at the given deflate level (1-9).
func NewCodec(level int) *Codec {
	return &Codec{level: level}
}

// countingWriter tracks bytes written so archive size is known without a
// second stat call.
type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

// Create builds a zip archive at destPath from the given sources. Every
// source is checked for existence before any bytes are written, so a
// missing file fails the whole operation instead of producing a partial
// archive. The returned Archive carries the on-disk size and the SHA-256
// checksum of the archive bytes.
//
//nolint:gosec // G304: paths come from validated configuration
func (c *Codec) Create(destPath string, sources []Source) (*Archive, error) {
	for _, src := range sources {
		if _, err := os.Stat(src.Path); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrSourceMissing, src.Path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	outFile, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive file: %w", err)
	}

	hasher := newStreamHasher()
	counter := &countingWriter{w: io.MultiWriter(outFile, hasher)}

	zw := zip.NewWriter(counter)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, c.level)
	})

	for _, src := range sources {
		if err := addSource(zw, src); err != nil {
			zw.Close()      //nolint:errcheck // Best effort cleanup on error
			outFile.Close() //nolint:errcheck // Best effort cleanup on error
			os.Remove(destPath)
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		outFile.Close() //nolint:errcheck // Best effort cleanup on error
		os.Remove(destPath)
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}
	if err := outFile.Close(); err != nil {
		os.Remove(destPath)
		return nil, fmt.Errorf("failed to close archive file: %w", err)
	}

	return &Archive{
		Path:     destPath,
		Size:     counter.n,
		Checksum: hasher.Sum(),
	}, nil
}

// addSource writes one file into the archive under its entry name.
//
//nolint:gosec // G304: source paths are validated by the caller
func addSource(zw *zip.Writer, src Source) error {
	file, err := os.Open(src.Path)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrSourceMissing, src.Path)
	}
	defer file.Close() //nolint:errcheck // Best effort cleanup

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", src.Path, err)
	}

	header := &zip.FileHeader{
		Name:     src.Name,
		Method:   zip.Deflate,
		Modified: info.ModTime(),
	}
	header.SetMode(0o640)

	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to create entry %s: %w", src.Name, err)
	}
	if _, err := io.Copy(w, file); err != nil {
		return fmt.Errorf("failed to write entry %s: %w", src.Name, err)
	}
	return nil
}

// List returns the entries of the archive at path without extracting
// anything. A file that is not a readable zip reports ErrCorruptArchive.
func (c *Codec) List(path string) ([]Entry, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptArchive, err)
	}
	defer zr.Close() //nolint:errcheck // Best effort cleanup

	entries := make([]Entry, 0, len(zr.File))
	for _, f := range zr.File {
		entries = append(entries, Entry{
			Name:             f.Name,
			CompressedSize:   int64(f.CompressedSize64),
			UncompressedSize: int64(f.UncompressedSize64),
		})
	}
	return entries, nil
}

// Extract pulls entries out of the archive at archivePath. destinations
// maps entry names to target filesystem paths; entries absent from the
// map are skipped so archives carrying extra files still restore the
// managed ones. The returned slice names the entries actually written,
// in archive order.
//
//nolint:gosec // G304: destination paths come from validated configuration
func (c *Codec) Extract(archivePath string, destinations map[string]string) ([]string, error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptArchive, err)
	}
	defer zr.Close() //nolint:errcheck // Best effort cleanup

	zr.RegisterDecompressor(zip.Deflate, func(r io.Reader) io.ReadCloser {
		return flate.NewReader(r)
	})

	var extracted []string
	for _, f := range zr.File {
		destPath, wanted := destinations[f.Name]
		if !wanted {
			continue
		}
		if err := extractEntry(f, destPath); err != nil {
			return extracted, err
		}
		extracted = append(extracted, f.Name)
	}
	return extracted, nil
}

// extractEntry writes one archive member to destPath, creating parent
// directories as needed.
//
//nolint:gosec // G304/G110: destPath is caller-controlled, not attacker-controlled
func extractEntry(f *zip.File, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o750); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", f.Name, err)
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("%w: entry %s: %v", ErrCorruptArchive, f.Name, err)
	}
	defer rc.Close() //nolint:errcheck // Best effort cleanup

	out, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", destPath, err)
	}

	if _, err := io.Copy(out, rc); err != nil {
		out.Close() //nolint:errcheck // Best effort cleanup on error
		return fmt.Errorf("failed to extract %s: %w", f.Name, err)
	}
	return out.Close()
}

// BackupName returns the timestamped archive file name for a backup
// started at ts.
func BackupName(ts time.Time) string {
	return fmt.Sprintf("books_db_backup_%s.zip", ts.Format("20060102_150405"))
}
