// Bookvault - Resumable Backup and Restore for Book Catalog Databases
// Copyright 2026 Bookvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bookvault/bookvault

/*
handlers_backup.go - Backup Download Endpoints

GET /backup builds a fresh archive of the managed database files and
streams it with range support, so an interrupted download resumes by
re-requesting the remaining bytes. The archive digest rides in the
X-Checksum header and the full size in X-Total-Size, letting the client
verify what it reassembles. The temp archive is scheduled for removal
after a grace period rather than deleted on the spot, keeping resumed
range requests against the same file possible.
*/

//nolint:staticcheck // File documentation, not package doc
package api

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/dustin/go-humanize"

	"github.com/bookvault/bookvault/internal/archive"
	"github.com/bookvault/bookvault/internal/logging"
	"github.com/bookvault/bookvault/internal/models"
	"github.com/bookvault/bookvault/internal/transfer"
)

// maxDownloadChunkSize caps the client-requested streaming block.
const maxDownloadChunkSize = 16 << 20

// BackupDownload handles GET /backup.
//
// Query parameters:
//   - chunk_size: streaming block size in bytes (optional)
//
// Honors a single-range Range header with 206/Content-Range, rejects
// unsatisfiable ranges with 416 and malformed ones with 400.
func (h *Handler) BackupDownload(w http.ResponseWriter, r *http.Request) {
	chunkSize := getIntParam(r, "chunk_size", h.cfg.Transfer.ChunkSize)
	if chunkSize < 1 || chunkSize > maxDownloadChunkSize {
		respondError(w, http.StatusBadRequest, "INVALID_CHUNK_SIZE",
			fmt.Sprintf("chunk_size must be between 1 and %d bytes", maxDownloadChunkSize), nil)
		return
	}

	relPaths := h.cfg.Storage.DatabaseFiles
	sources := make([]archive.Source, len(relPaths))
	for i, rel := range relPaths {
		sources[i] = archive.Source{
			Path: filepath.Join(h.cfg.Storage.DataDir, rel),
			Name: filepath.Base(rel),
		}
	}

	archivePath := filepath.Join(h.cfg.Storage.BackupsDir, archive.BackupName(h.clock.Now()))
	arch, err := h.codec.Create(archivePath, sources)
	if err != nil {
		if errors.Is(err, archive.ErrSourceMissing) {
			respondError(w, http.StatusNotFound, "FILE_NOT_FOUND", "One or more database files do not exist", err)
			return
		}
		respondError(w, http.StatusInternalServerError, "BACKUP_FAILED", "Failed to build backup archive", err)
		return
	}
	h.reclaimer.ScheduleRemoval(arch.Path, h.cfg.Transfer.ArchiveGrace)

	rangeHeader := r.Header.Get("Range")
	br, err := transfer.ResolveRange(rangeHeader, arch.Size)
	if err != nil {
		if errors.Is(err, transfer.ErrRangeNotSatisfiable) {
			w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", arch.Size))
			respondError(w, http.StatusRequestedRangeNotSatisfiable, "RANGE_NOT_SATISFIABLE", "Requested range is beyond the archive", err)
			return
		}
		respondError(w, http.StatusBadRequest, "INVALID_RANGE", "Malformed Range header", err)
		return
	}

	f, err := os.Open(arch.Path) //nolint:gosec // G304: path built from internal state
	if err != nil {
		respondError(w, http.StatusInternalServerError, "BACKUP_FAILED", "Failed to open backup archive", err)
		return
	}
	defer f.Close() //nolint:errcheck // Best effort cleanup

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, filepath.Base(arch.Path)))
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Checksum", arch.Checksum)
	w.Header().Set("X-Total-Size", strconv.FormatInt(arch.Size, 10))
	w.Header().Set("Content-Length", strconv.FormatInt(br.Length(), 10))

	status := http.StatusOK
	if rangeHeader != "" {
		w.Header().Set("Content-Range", br.ContentRange(arch.Size))
		status = http.StatusPartialContent
	}
	w.WriteHeader(status)

	if err := transfer.CopyRange(w, f, br, chunkSize); err != nil {
		// Usually a client that went away mid-download.
		logging.Warn().Err(err).Str("archive", arch.Path).Msg("Backup stream aborted")
		return
	}
	backupBytesStreamedTotal.Add(float64(br.Length()))

	logging.Info().
		Str("archive", filepath.Base(arch.Path)).
		Int64("offset", br.Start).
		Int64("bytes", br.Length()).
		Int("status", status).
		Msg("Backup archive streamed")
}

// BackupStatus handles GET /backup/status, reporting existence and size
// of every managed database file.
func (h *Handler) BackupStatus(w http.ResponseWriter, _ *http.Request) {
	var totalSize int64
	allExist := true

	files := make([]models.FileStatus, 0, len(h.cfg.Storage.DatabaseFiles))
	for _, rel := range h.cfg.Storage.DatabaseFiles {
		fs := models.FileStatus{Path: rel}
		info, err := os.Stat(filepath.Join(h.cfg.Storage.DataDir, rel))
		if err == nil {
			fs.Exists = true
			fs.SizeBytes = info.Size()
			totalSize += info.Size()
		} else {
			allExist = false
		}
		fs.SizeFormatted = humanize.Bytes(uint64(fs.SizeBytes)) //nolint:gosec // G115: file sizes are non-negative
		files = append(files, fs)
	}

	respondSuccess(w, http.StatusOK, models.BackupStatus{
		Databases:          files,
		TotalSizeBytes:     totalSize,
		TotalSizeFormatted: humanize.Bytes(uint64(totalSize)), //nolint:gosec // G115: sum of file sizes
		AllFilesExist:      allExist,
	})
}

// backupVerifyRequest carries the query parameters of GET /backup/verify.
type backupVerifyRequest struct {
	Checksum string `validate:"required,hexdigest"`
	Filename string `validate:"required"`
}

// BackupVerify handles GET /backup/verify, recomputing the digest of a
// staged archive and comparing it against the client's value.
func (h *Handler) BackupVerify(w http.ResponseWriter, r *http.Request) {
	req := backupVerifyRequest{
		Checksum: r.URL.Query().Get("checksum"),
		Filename: r.URL.Query().Get("filename"),
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondErrorDetails(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
		return
	}

	// Base name only, so the client cannot point outside the staging dir.
	staged := filepath.Join(h.cfg.Storage.BackupsDir, filepath.Base(req.Filename))
	received, err := archive.FileChecksum(staged)
	if err != nil {
		if os.IsNotExist(err) {
			respondError(w, http.StatusNotFound, "FILE_NOT_FOUND", "No staged archive with that name", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "VERIFY_FAILED", "Failed to hash staged archive", err)
		return
	}

	respondSuccess(w, http.StatusOK, models.VerifyResult{
		Verified: received == req.Checksum,
		Expected: req.Checksum,
		Received: received,
	})
}
