// Bookvault - Resumable Backup and Restore for Book Catalog Databases
// Copyright 2026 Bookvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bookvault/bookvault

// Package config loads and validates the Bookvault configuration using
// Koanf v2 with layered sources: built-in defaults, an optional YAML file,
// and environment variables (highest priority).
package config

import (
	"fmt"
	"path/filepath"
	"time"
)

// Config is the root configuration for the Bookvault server.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Storage  StorageConfig  `koanf:"storage"`
	Transfer TransferConfig `koanf:"transfer"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`

	// Timeout is the read header timeout for inbound requests. Response
	// writes are deliberately unbounded: large range downloads on slow
	// links can legitimately take a long time.
	Timeout time.Duration `koanf:"timeout"`

	// ShutdownTimeout bounds graceful shutdown of in-flight requests.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// RateLimitReqs is the per-client request budget per RateLimitWindow.
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// StorageConfig describes where managed files and scratch data live.
type StorageConfig struct {
	// DatabaseFiles are the managed database files, relative to DataDir.
	// The transfer protocol treats them as opaque byte blobs.
	DatabaseFiles []string `koanf:"database_files"`

	// DataDir is the root under which DatabaseFiles resolve.
	DataDir string `koanf:"data_dir"`

	// UploadsDir holds per-operation chunk staging directories.
	UploadsDir string `koanf:"uploads_dir"`

	// BackupsDir holds temporary download archives.
	BackupsDir string `koanf:"backups_dir"`
}

// TransferConfig tunes the transfer protocol itself.
type TransferConfig struct {
	// ChunkSize is the default streaming block size for downloads when the
	// client does not pass ?chunk_size=.
	ChunkSize int `koanf:"chunk_size"`

	// MaxUploadBytes caps the in-memory portion of multipart parsing.
	MaxUploadBytes int64 `koanf:"max_upload_bytes"`

	// CompressionLevel is the deflate level used when building archives.
	CompressionLevel int `koanf:"compression_level"`

	// ArchiveGrace is how long a streamed temp archive survives before the
	// reclaimer deletes it.
	ArchiveGrace time.Duration `koanf:"archive_grace"`

	// OperationGrace is how long a completed or failed operation's staging
	// directory and registry entry survive before reclamation.
	OperationGrace time.Duration `koanf:"operation_grace"`

	// UploadIdleTimeout fails and reclaims chunked uploads that receive no
	// chunk for this long. Zero disables the sweep.
	UploadIdleTimeout time.Duration `koanf:"upload_idle_timeout"`

	// SweepInterval is how often the reclaimer scans for due work.
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// LoggingConfig mirrors logging.Config for koanf unmarshaling.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8090,
			Timeout:         30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Storage: StorageConfig{
			DatabaseFiles: []string{
				"database/books_data.db",
				"database/books_static.db",
			},
			DataDir:    "/data",
			UploadsDir: "/data/temp_uploads",
			BackupsDir: "/data/temp_backups",
		},
		Transfer: TransferConfig{
			ChunkSize:         1 << 20, // 1 MiB
			MaxUploadBytes:    64 << 20,
			CompressionLevel:  6,
			ArchiveGrace:      10 * time.Minute,
			OperationGrace:    time.Hour,
			UploadIdleTimeout: time.Hour,
			SweepInterval:     30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if len(c.Storage.DatabaseFiles) == 0 {
		return fmt.Errorf("storage.database_files must name at least one managed file")
	}
	for _, f := range c.Storage.DatabaseFiles {
		if filepath.IsAbs(f) {
			return fmt.Errorf("storage.database_files entries must be relative to data_dir, got %s", f)
		}
	}
	if c.Storage.DataDir == "" || c.Storage.UploadsDir == "" || c.Storage.BackupsDir == "" {
		return fmt.Errorf("storage.data_dir, storage.uploads_dir and storage.backups_dir are required")
	}
	if c.Transfer.ChunkSize < 1 {
		return fmt.Errorf("transfer.chunk_size must be positive, got %d", c.Transfer.ChunkSize)
	}
	if c.Transfer.CompressionLevel < 1 || c.Transfer.CompressionLevel > 9 {
		return fmt.Errorf("transfer.compression_level must be between 1 and 9, got %d", c.Transfer.CompressionLevel)
	}
	if c.Transfer.ArchiveGrace < 0 || c.Transfer.OperationGrace < 0 || c.Transfer.UploadIdleTimeout < 0 {
		return fmt.Errorf("transfer grace periods must not be negative")
	}
	if c.Transfer.SweepInterval < time.Second {
		return fmt.Errorf("transfer.sweep_interval must be at least 1s, got %s", c.Transfer.SweepInterval)
	}
	return nil
}

// ManagedFilePaths resolves the configured database files against DataDir.
func (c *Config) ManagedFilePaths() []string {
	paths := make([]string, len(c.Storage.DatabaseFiles))
	for i, f := range c.Storage.DatabaseFiles {
		paths[i] = filepath.Join(c.Storage.DataDir, f)
	}
	return paths
}
