// Bookvault - Resumable Backup and Restore for Book Catalog Databases
// Copyright 2026 Bookvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bookvault/bookvault

/*
checksum.go - Streaming SHA-256 Checksums

Checksums gate both directions of a transfer: the server advertises the
archive digest via the X-Checksum header on download, and refuses to
restore an upload whose reassembled bytes do not match the digest the
client declared. Hashing streams in fixed-size blocks so archives never
need to fit in memory.
*/

//nolint:staticcheck // File documentation, not package doc
package archive

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
	"os"
)

// checksumBlockSize is the read block used when hashing files.
const checksumBlockSize = 64 * 1024

// streamHasher accumulates a SHA-256 digest over written bytes.
type streamHasher struct {
	h hash.Hash
}

func newStreamHasher() *streamHasher {
	return &streamHasher{h: sha256.New()}
}

func (s *streamHasher) Write(p []byte) (int, error) {
	return s.h.Write(p)
}

// Sum returns the lowercase hex digest of everything written so far.
func (s *streamHasher) Sum() string {
	return hex.EncodeToString(s.h.Sum(nil))
}

// FileChecksum computes the SHA-256 digest of the file at path, reading
// in checksumBlockSize blocks.
//
//nolint:gosec // G304: path comes from internal transfer state
func FileChecksum(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close() //nolint:errcheck // Best effort cleanup

	return ReaderChecksum(file)
}

// ReaderChecksum computes the SHA-256 digest of everything readable
// from r.
func ReaderChecksum(r io.Reader) (string, error) {
	hasher := sha256.New()
	buf := make([]byte, checksumBlockSize)
	if _, err := io.CopyBuffer(hasher, r, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
