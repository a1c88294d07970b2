// Bookvault - Resumable Backup and Restore for Book Catalog Databases
// Copyright 2026 Bookvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bookvault/bookvault

package api

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/bookvault/bookvault/internal/archive"
	"github.com/bookvault/bookvault/internal/config"
	"github.com/bookvault/bookvault/internal/models"
	"github.com/bookvault/bookvault/internal/transfer"
)

// testEnv wires real transfer components over temp directories.
type testEnv struct {
	cfg     *config.Config
	handler *Handler
	router  http.Handler
	dataDir string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dataDir := t.TempDir()
	cfg := &config.Config{
		Server: config.ServerConfig{
			Host:            "127.0.0.1",
			Port:            8090,
			RateLimitReqs:   1000,
			RateLimitWindow: time.Minute,
		},
		Storage: config.StorageConfig{
			DatabaseFiles: []string{
				"database/books_data.db",
				"database/books_static.db",
			},
			DataDir:    dataDir,
			UploadsDir: filepath.Join(dataDir, "temp_uploads"),
			BackupsDir: filepath.Join(dataDir, "temp_backups"),
		},
		Transfer: config.TransferConfig{
			ChunkSize:         1 << 20,
			MaxUploadBytes:    64 << 20,
			CompressionLevel:  6,
			ArchiveGrace:      10 * time.Minute,
			OperationGrace:    time.Hour,
			UploadIdleTimeout: time.Hour,
			SweepInterval:     time.Second,
		},
	}

	codec := archive.NewCodec(cfg.Transfer.CompressionLevel)
	registry := transfer.NewRegistry(nil)
	reassembler := transfer.NewReassembler(cfg.Storage.UploadsDir)
	engine := transfer.NewEngine(codec, registry, nil,
		transfer.ManagedFilesFor(cfg.Storage.DataDir, cfg.Storage.DatabaseFiles))
	reclaimer := transfer.NewReclaimer(registry, reassembler, nil, transfer.ReclaimerConfig{
		SweepInterval:     cfg.Transfer.SweepInterval,
		OperationGrace:    cfg.Transfer.OperationGrace,
		UploadIdleTimeout: cfg.Transfer.UploadIdleTimeout,
	})

	handler := NewHandler(cfg, codec, registry, reassembler, engine, reclaimer, nil)
	return &testEnv{
		cfg:     cfg,
		handler: handler,
		router:  NewRouter(handler),
		dataDir: dataDir,
	}
}

// seedDatabases writes both managed files with the given contents.
func (env *testEnv) seedDatabases(t *testing.T, data, static string) {
	t.Helper()
	for rel, content := range map[string]string{
		"database/books_data.db":   data,
		"database/books_static.db": static,
	} {
		path := filepath.Join(env.dataDir, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o640); err != nil {
			t.Fatal(err)
		}
	}
}

// backupArchive builds a valid archive of the given entries and returns
// its bytes and checksum.
func backupArchive(t *testing.T, entries map[string]string) ([]byte, string) {
	t.Helper()
	dir := t.TempDir()

	var sources []archive.Source
	for name, content := range entries {
		src := filepath.Join(dir, "src_"+name)
		if err := os.WriteFile(src, []byte(content), 0o640); err != nil {
			t.Fatal(err)
		}
		sources = append(sources, archive.Source{Path: src, Name: name})
	}

	arch, err := archive.NewCodec(6).Create(filepath.Join(dir, "a.zip"), sources)
	if err != nil {
		t.Fatal(err)
	}
	raw, err := os.ReadFile(arch.Path)
	if err != nil {
		t.Fatal(err)
	}
	return raw, arch.Checksum
}

// multipartUpload builds a multipart body with a backup_file part and
// the given form fields.
func multipartUpload(t *testing.T, fileBytes []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("backup_file", "backup.zip")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(fileBytes); err != nil {
		t.Fatal(err)
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

// multipartFieldsOnly builds a multipart body with no file part.
func multipartFieldsOnly(t *testing.T, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

// decodeEnvelope parses the standard response wrapper, re-marshaling
// Data into out when non-nil.
func decodeEnvelope(t *testing.T, body io.Reader, out interface{}) *models.APIResponse {
	t.Helper()
	var resp models.APIResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response envelope: %v", err)
	}
	if out != nil && resp.Data != nil {
		raw, err := json.Marshal(resp.Data)
		if err != nil {
			t.Fatal(err)
		}
		if err := json.Unmarshal(raw, out); err != nil {
			t.Fatalf("failed to decode data payload: %v", err)
		}
	}
	return &resp
}
