// Bookvault - Resumable Backup and Restore for Book Catalog Databases
// Copyright 2026 Bookvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bookvault/bookvault

// Package main is the entry point for the Bookvault transfer server.
//
// Bookvault exposes a resumable backup and restore surface for a book
// catalog's database files: GET /backup streams a freshly built zip
// archive with byte-range support, POST /restore accepts it back whole
// or in chunks, verifies the declared checksum, and commits it over the
// live files with timestamped snapshots taken first.
//
// # Startup order
//
//  1. Configuration: Koanf v2 layered defaults, YAML file, environment
//  2. Logging: zerolog initialized from config
//  3. Transfer components: codec, registry, reassembler, engine, reclaimer
//  4. Supervisor tree: reclaimer in the transfer layer, HTTP server in
//     the api layer
//
// # Signal handling
//
// SIGINT and SIGTERM trigger a graceful stop: the HTTP server drains
// in-flight requests within the shutdown timeout and the reclaimer's
// sweep loop exits with the context.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/bookvault/bookvault/internal/api"
	"github.com/bookvault/bookvault/internal/archive"
	"github.com/bookvault/bookvault/internal/config"
	"github.com/bookvault/bookvault/internal/logging"
	"github.com/bookvault/bookvault/internal/supervisor"
	"github.com/bookvault/bookvault/internal/supervisor/services"
	"github.com/bookvault/bookvault/internal/transfer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Config is not available yet, so the default logger reports this.
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("data_dir", cfg.Storage.DataDir).
		Strs("database_files", cfg.Storage.DatabaseFiles).
		Int("port", cfg.Server.Port).
		Msg("Configuration loaded")

	for _, dir := range []string{cfg.Storage.UploadsDir, cfg.Storage.BackupsDir} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			logging.Fatal().Err(err).Str("dir", dir).Msg("Failed to create working directory")
		}
	}

	clock := transfer.SystemClock{}
	codec := archive.NewCodec(cfg.Transfer.CompressionLevel)
	registry := transfer.NewRegistry(clock)
	reassembler := transfer.NewReassembler(cfg.Storage.UploadsDir)
	engine := transfer.NewEngine(codec, registry, clock,
		transfer.ManagedFilesFor(cfg.Storage.DataDir, cfg.Storage.DatabaseFiles))
	reclaimer := transfer.NewReclaimer(registry, reassembler, clock, transfer.ReclaimerConfig{
		SweepInterval:     cfg.Transfer.SweepInterval,
		OperationGrace:    cfg.Transfer.OperationGrace,
		UploadIdleTimeout: cfg.Transfer.UploadIdleTimeout,
	})

	handler := api.NewHandler(cfg, codec, registry, reassembler, engine, reclaimer, clock)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.Timeout,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Bridge zerolog into slog for sutureslog.
	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	tree.AddTransferService(reclaimer)
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Bookvault stopped gracefully")
}
