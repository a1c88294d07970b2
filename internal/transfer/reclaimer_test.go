// Bookvault - Resumable Backup and Restore for Book Catalog Databases
// Copyright 2026 Bookvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bookvault/bookvault

package transfer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestReclaimer(t *testing.T, clock Clock) (*Reclaimer, *Registry, *Reassembler) {
	t.Helper()
	reg := NewRegistry(clock)
	ra := NewReassembler(t.TempDir())
	rc := NewReclaimer(reg, ra, clock, ReclaimerConfig{
		SweepInterval:     time.Second,
		OperationGrace:    time.Hour,
		UploadIdleTimeout: 30 * time.Minute,
	})
	return rc, reg, ra
}

func TestSweepRemovesDueFilesOnly(t *testing.T) {
	clock := newFakeClock()
	rc, _, _ := newTestReclaimer(t, clock)

	dir := t.TempDir()
	soon := filepath.Join(dir, "soon.zip")
	later := filepath.Join(dir, "later.zip")
	for _, p := range []string{soon, later} {
		if err := os.WriteFile(p, []byte("archive"), 0o640); err != nil {
			t.Fatal(err)
		}
	}

	rc.ScheduleRemoval(soon, 10*time.Minute)
	rc.ScheduleRemoval(later, time.Hour)

	clock.Advance(15 * time.Minute)
	rc.sweep()

	if _, err := os.Stat(soon); !os.IsNotExist(err) {
		t.Error("due file survived the sweep")
	}
	if _, err := os.Stat(later); err != nil {
		t.Error("file swept before its deadline")
	}
	if rc.Pending() != 1 {
		t.Errorf("pending = %d, want 1", rc.Pending())
	}
}

func TestRescheduleExtendsDeadline(t *testing.T) {
	clock := newFakeClock()
	rc, _, _ := newTestReclaimer(t, clock)

	path := filepath.Join(t.TempDir(), "archive.zip")
	if err := os.WriteFile(path, []byte("archive"), 0o640); err != nil {
		t.Fatal(err)
	}

	rc.ScheduleRemoval(path, 10*time.Minute)
	clock.Advance(9 * time.Minute)
	// A fresh download of the same archive pushes the deadline out.
	rc.ScheduleRemoval(path, 10*time.Minute)
	clock.Advance(5 * time.Minute)
	rc.sweep()

	if _, err := os.Stat(path); err != nil {
		t.Error("rescheduled file was swept on the original deadline")
	}

	clock.Advance(6 * time.Minute)
	rc.sweep()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("file survived past the extended deadline")
	}
}

func TestSweepRetiresExpiredOperations(t *testing.T) {
	clock := newFakeClock()
	rc, reg, ra := newTestReclaimer(t, clock)

	reg.Create("idle-op", "", 4)
	if _, err := ra.Accept("idle-op", 0, strings.NewReader("chunk")); err != nil {
		t.Fatal(err)
	}

	clock.Advance(10 * time.Minute)
	rc.sweep()
	if _, err := reg.Lookup("idle-op"); err != nil {
		t.Fatal("operation retired before idle timeout")
	}

	clock.Advance(25 * time.Minute)
	rc.sweep()
	if _, err := reg.Lookup("idle-op"); err == nil {
		t.Error("idle operation still registered after timeout")
	}
	if _, err := os.Stat(ra.OperationDir("idle-op")); !os.IsNotExist(err) {
		t.Error("chunk directory survived operation retirement")
	}
}

func TestServeStopsOnContextCancel(t *testing.T) {
	clock := newFakeClock()
	rc, _, _ := newTestReclaimer(t, clock)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rc.Serve(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Serve returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
}
