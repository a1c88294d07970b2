// Bookvault - Resumable Backup and Restore for Book Catalog Databases
// Copyright 2026 Bookvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bookvault/bookvault

// Package transfer implements the resumable transfer machinery behind
// backup downloads and restore uploads.
//
// Downloads negotiate byte ranges over a freshly built archive so an
// interrupted client can resume where it stopped. Uploads arrive as
// indexed chunks that are reassembled on disk, verified against the
// client's declared checksum, and only then committed over the live
// database files with timestamped .bak snapshots taken first.
//
// Every chunked upload is tracked as an Operation in the Registry. The
// Reclaimer sweeps expired archives, retired operation records, and
// abandoned uploads on a fixed cadence under supervision, replacing
// one-shot timers that would be lost on restart.
package transfer
