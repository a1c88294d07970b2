// Bookvault - Resumable Backup and Restore for Book Catalog Databases
// Copyright 2026 Bookvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bookvault/bookvault

/*
handlers_restore.go - Restore Upload Endpoints

POST /restore accepts the backup archive back, either whole or as
indexed chunks. Chunked uploads carry upload_id, chunk, total_chunks,
and checksum form fields; each request stores its chunk and reports
progress until every index is present, then the final request assembles
the archive, verifies the declared checksum, and commits the restore.

The restore claim is a compare-and-set in the registry, so two requests
racing on the last chunk cannot both run the restore; the loser gets a
409 and can poll the operation status instead.
*/

//nolint:staticcheck // File documentation, not package doc
package api

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bookvault/bookvault/internal/archive"
	"github.com/bookvault/bookvault/internal/logging"
	"github.com/bookvault/bookvault/internal/models"
	"github.com/bookvault/bookvault/internal/transfer"
)

// multipartMemoryLimit is the in-memory buffer for multipart parsing;
// larger parts spill to temp files.
const multipartMemoryLimit = 8 << 20

// chunkedRestoreRequest carries the form fields of a chunked upload.
type chunkedRestoreRequest struct {
	UploadID    string `validate:"required,max=128"`
	Chunk       int    `validate:"min=0"`
	TotalChunks int    `validate:"required,min=1,max=100000"`
	Checksum    string `validate:"required,hexdigest"`
}

// Restore handles POST /restore.
//
// Form fields:
//   - backup_file: the archive, or one chunk of it (required)
//   - chunk: zero-based chunk index (presence selects the chunked path)
//   - upload_id: operation ID (chunked; minted by the server when the
//     first chunk omits it)
//   - total_chunks: expected chunk count (chunked)
//   - checksum: SHA-256 of the complete archive (chunked: required,
//     single-shot: optional)
func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.Transfer.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_UPLOAD", "Failed to parse multipart form", err)
		return
	}

	file, _, err := r.FormFile("backup_file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "MISSING_FILE", "No backup_file part in upload", err)
		return
	}
	defer file.Close() //nolint:errcheck // Best effort cleanup

	if r.FormValue("chunk") == "" {
		h.restoreSingleShot(w, r, file)
		return
	}
	h.restoreChunk(w, r, file)
}

// restoreSingleShot handles a whole-archive upload in one request.
func (h *Handler) restoreSingleShot(w http.ResponseWriter, r *http.Request, file multipart.File) {
	checksum := r.FormValue("checksum")
	if checksum != "" {
		if apiErr := validateRequest(&struct {
			Checksum string `validate:"hexdigest"`
		}{checksum}); apiErr != nil {
			respondErrorDetails(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
			return
		}
	}

	opID := uuid.New().String()
	h.registry.Create(opID, checksum, 1)

	if _, err := h.reassembler.Accept(opID, 0, file); err != nil {
		h.registry.Fail(opID, "failed to store upload") //nolint:errcheck // Failure already reported
		respondError(w, http.StatusInternalServerError, "UPLOAD_FAILED", "Failed to store uploaded archive", err)
		return
	}
	restoreChunksReceivedTotal.Inc()

	if err := h.registry.ClaimRestore(opID); err != nil {
		respondError(w, http.StatusInternalServerError, "UPLOAD_FAILED", "Failed to claim operation", err)
		return
	}
	archivePath, err := h.reassembler.Assemble(opID, 1)
	if err != nil {
		h.registry.Fail(opID, "failed to stage upload") //nolint:errcheck // Failure already reported
		respondError(w, http.StatusInternalServerError, "UPLOAD_FAILED", "Failed to stage uploaded archive", err)
		return
	}

	h.finishRestore(w, opID, archivePath, checksum)
}

// restoreChunk handles one chunk of a resumable upload.
func (h *Handler) restoreChunk(w http.ResponseWriter, r *http.Request, file multipart.File) {
	chunkIdx, err := strconv.Atoi(r.FormValue("chunk"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_CHUNK", "chunk must be an integer", err)
		return
	}
	totalChunks, err := strconv.Atoi(r.FormValue("total_chunks"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_CHUNK", "total_chunks must be an integer", err)
		return
	}

	uploadID := r.FormValue("upload_id")
	if uploadID == "" {
		// First chunk without an ID starts a fresh operation; the minted
		// ID comes back in the progress payload for the remaining chunks.
		uploadID = uuid.New().String()
	}

	req := chunkedRestoreRequest{
		UploadID:    uploadID,
		Chunk:       chunkIdx,
		TotalChunks: totalChunks,
		Checksum:    r.FormValue("checksum"),
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondErrorDetails(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
		return
	}
	if req.Chunk >= req.TotalChunks {
		respondError(w, http.StatusBadRequest, "INVALID_CHUNK",
			fmt.Sprintf("chunk index %d out of range for %d total chunks", req.Chunk, req.TotalChunks), nil)
		return
	}

	op, err := h.registry.Lookup(req.UploadID)
	if errors.Is(err, transfer.ErrUnknownOperation) {
		op = h.registry.Create(req.UploadID, req.Checksum, req.TotalChunks)
	}
	if op.Status != transfer.StatusUploading {
		respondError(w, http.StatusConflict, "OPERATION_CLAIMED",
			fmt.Sprintf("operation %s is %s, not accepting chunks", req.UploadID, op.Status), nil)
		return
	}
	if op.TotalChunks != req.TotalChunks {
		respondError(w, http.StatusBadRequest, "INVALID_CHUNK",
			fmt.Sprintf("total_chunks %d disagrees with operation's %d", req.TotalChunks, op.TotalChunks), nil)
		return
	}

	received, err := h.reassembler.Accept(req.UploadID, req.Chunk, file)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "UPLOAD_FAILED", "Failed to store chunk", err)
		return
	}
	restoreChunksReceivedTotal.Inc()
	if err := h.registry.RecordProgress(req.UploadID, received); err != nil {
		respondError(w, http.StatusInternalServerError, "UPLOAD_FAILED", "Failed to record progress", err)
		return
	}

	if received < req.TotalChunks {
		respondSuccess(w, http.StatusOK, models.ChunkProgress{
			UploadID:       req.UploadID,
			Message:        fmt.Sprintf("chunk %d received", req.Chunk),
			ChunksReceived: received,
			TotalChunks:    req.TotalChunks,
		})
		return
	}

	// Win the claim before touching combined.zip so two requests racing
	// on the last chunk cannot assemble the same operation concurrently.
	if err := h.registry.ClaimRestore(req.UploadID); err != nil {
		respondError(w, http.StatusConflict, "OPERATION_CLAIMED",
			fmt.Sprintf("operation %s already claimed for restore", req.UploadID), nil)
		return
	}

	archivePath, err := h.reassembler.Assemble(req.UploadID, req.TotalChunks)
	if err != nil {
		var missing *transfer.MissingChunksError
		if errors.As(err, &missing) {
			h.registry.Fail(req.UploadID, "chunks missing at assembly") //nolint:errcheck // Failure already reported
			respondErrorDetails(w, http.StatusBadRequest, "MISSING_CHUNKS",
				"Upload complete in count but not in indices", map[string]interface{}{
					"missing_chunks": missing.Indices,
				})
			return
		}
		h.registry.Fail(req.UploadID, "failed to assemble chunks") //nolint:errcheck // Failure already reported
		respondError(w, http.StatusInternalServerError, "UPLOAD_FAILED", "Failed to assemble chunks", err)
		return
	}

	h.finishRestore(w, req.UploadID, archivePath, req.Checksum)
}

// finishRestore runs the restore engine and maps its errors to HTTP
// responses.
func (h *Handler) finishRestore(w http.ResponseWriter, opID, archivePath, checksum string) {
	op, err := h.engine.Restore(opID, archivePath, checksum)
	if err != nil {
		restoresTotal.WithLabelValues("failure").Inc()
		switch {
		case errors.Is(err, transfer.ErrOperationClaimed):
			respondError(w, http.StatusConflict, "OPERATION_CLAIMED", "Restore already in progress for this upload", nil)
		case errors.Is(err, transfer.ErrChecksumMismatch):
			respondError(w, http.StatusBadRequest, "CHECKSUM_MISMATCH", "Uploaded archive does not match declared checksum", err)
		case errors.Is(err, archive.ErrCorruptArchive):
			respondError(w, http.StatusBadRequest, "CORRUPT_ARCHIVE", "Uploaded file is not a readable archive", err)
		case errors.Is(err, transfer.ErrNothingToRestore):
			respondError(w, http.StatusBadRequest, "NOTHING_TO_RESTORE", "Archive contains no managed database files", err)
		default:
			respondError(w, http.StatusInternalServerError, "RESTORE_FAILED", "Restore failed", err)
		}
		return
	}
	restoresTotal.WithLabelValues("success").Inc()

	respondSuccess(w, http.StatusOK, models.RestoreOutcome{
		UploadID:      opID,
		Message:       op.Message,
		RestoredFiles: op.RestoredFiles,
	})
}

// OperationStatus handles GET /operation/status/{upload_id}.
func (h *Handler) OperationStatus(w http.ResponseWriter, r *http.Request) {
	opID := chi.URLParam(r, "upload_id")
	op, err := h.registry.Lookup(opID)
	if err != nil {
		respondError(w, http.StatusNotFound, "UNKNOWN_OPERATION", "No operation with that upload_id", nil)
		return
	}

	logging.Ctx(r.Context()).Debug().Str("operation_id", opID).Msg("Operation status polled")
	record := models.OperationRecord{
		UploadID:       op.ID,
		Kind:           string(op.Kind),
		Status:         string(op.Status),
		ChunksReceived: op.ChunksReceived,
		TotalChunks:    op.TotalChunks,
		Message:        op.Message,
		RestoredFiles:  op.RestoredFiles,
		StartedAt:      op.CreatedAt,
		UpdatedAt:      op.UpdatedAt,
	}
	if !op.CompletedAt.IsZero() {
		completed := op.CompletedAt
		record.CompletedAt = &completed
	}
	respondSuccess(w, http.StatusOK, record)
}
