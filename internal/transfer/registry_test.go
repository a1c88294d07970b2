// Bookvault - Resumable Backup and Restore for Book Catalog Databases
// Copyright 2026 Bookvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bookvault/bookvault

package transfer

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestRegistryCreateAndLookup(t *testing.T) {
	clock := newFakeClock()
	reg := NewRegistry(clock)

	created := reg.Create("op-1", "abc123", 4)
	if created.Status != StatusUploading {
		t.Errorf("new operation status = %s, want %s", created.Status, StatusUploading)
	}
	if created.TotalChunks != 4 || created.Checksum != "abc123" {
		t.Errorf("unexpected record: %+v", created)
	}

	got, err := reg.Lookup("op-1")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if got.ID != "op-1" || got.CreatedAt != clock.Now() {
		t.Errorf("unexpected lookup result: %+v", got)
	}

	if _, err := reg.Lookup("absent"); !errors.Is(err, ErrUnknownOperation) {
		t.Errorf("expected ErrUnknownOperation, got %v", err)
	}
}

func TestRegistryLookupReturnsCopy(t *testing.T) {
	reg := NewRegistry(newFakeClock())
	reg.Create("op-1", "", 2)

	got, _ := reg.Lookup("op-1")
	got.Status = StatusFailed
	got.ChunksReceived = 99

	fresh, _ := reg.Lookup("op-1")
	if fresh.Status != StatusUploading || fresh.ChunksReceived != 0 {
		t.Error("mutating a Lookup result changed registry state")
	}
}

func TestRegistryClaimRestoreSingleWinner(t *testing.T) {
	reg := NewRegistry(newFakeClock())
	reg.Create("op-1", "", 2)

	const attempts = 16
	var wins, losses int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := reg.ClaimRestore("op-1")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrOperationClaimed):
				losses++
			default:
				t.Errorf("unexpected claim error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins != 1 || losses != attempts-1 {
		t.Errorf("expected exactly one winner, got %d wins and %d losses", wins, losses)
	}
	op, _ := reg.Lookup("op-1")
	if op.Status != StatusRestoring {
		t.Errorf("status after claim = %s, want %s", op.Status, StatusRestoring)
	}
}

func TestRegistryClaimRejectsTerminalStates(t *testing.T) {
	reg := NewRegistry(newFakeClock())
	reg.Create("op-1", "", 1)
	if err := reg.ClaimRestore("op-1"); err != nil {
		t.Fatal(err)
	}
	if err := reg.Complete("op-1", []string{"books_data.db"}); err != nil {
		t.Fatal(err)
	}
	if err := reg.ClaimRestore("op-1"); !errors.Is(err, ErrOperationClaimed) {
		t.Errorf("claim on completed op: got %v, want ErrOperationClaimed", err)
	}
	if err := reg.ClaimRestore("no-such"); !errors.Is(err, ErrUnknownOperation) {
		t.Errorf("claim on unknown op: got %v, want ErrUnknownOperation", err)
	}
}

func TestRegistryCompleteAndFail(t *testing.T) {
	clock := newFakeClock()
	reg := NewRegistry(clock)

	created := reg.Create("done", "", 1)
	if created.Kind != KindRestore {
		t.Errorf("kind = %q, want %q", created.Kind, KindRestore)
	}
	if !created.CompletedAt.IsZero() {
		t.Errorf("fresh record has completion time %v", created.CompletedAt)
	}

	reg.ClaimRestore("done") //nolint:errcheck // Setup
	files := []string{"books_data.db", "books_static.db"}
	if err := reg.Complete("done", files); err != nil {
		t.Fatal(err)
	}
	op, _ := reg.Lookup("done")
	if op.Status != StatusCompleted || len(op.RestoredFiles) != 2 {
		t.Errorf("unexpected completed record: %+v", op)
	}
	if op.CompletedAt != clock.Now() {
		t.Errorf("completion time = %v, want %v", op.CompletedAt, clock.Now())
	}

	reg.Create("broken", "", 1)
	if err := reg.Fail("broken", "checksum mismatch"); err != nil {
		t.Fatal(err)
	}
	op, _ = reg.Lookup("broken")
	if op.Status != StatusFailed || op.Message != "checksum mismatch" {
		t.Errorf("unexpected failed record: %+v", op)
	}
	if op.CompletedAt.IsZero() {
		t.Error("failed record has no completion time")
	}
}

func TestRegistryTerminalRecordsAreImmutable(t *testing.T) {
	reg := NewRegistry(newFakeClock())

	reg.Create("op-1", "", 1)
	reg.ClaimRestore("op-1") //nolint:errcheck // Setup
	if err := reg.Complete("op-1", []string{"books_data.db"}); err != nil {
		t.Fatal(err)
	}

	if err := reg.Fail("op-1", "late failure"); !errors.Is(err, ErrOperationClaimed) {
		t.Errorf("Fail on completed op: got %v, want ErrOperationClaimed", err)
	}
	if err := reg.Complete("op-1", nil); !errors.Is(err, ErrOperationClaimed) {
		t.Errorf("Complete on completed op: got %v, want ErrOperationClaimed", err)
	}

	op, _ := reg.Lookup("op-1")
	if op.Status != StatusCompleted || op.Message != "restore completed" || len(op.RestoredFiles) != 1 {
		t.Errorf("terminal record was mutated: %+v", op)
	}
}

func TestRegistryExpired(t *testing.T) {
	clock := newFakeClock()
	reg := NewRegistry(clock)
	grace := time.Hour
	idle := 30 * time.Minute

	reg.Create("stale-upload", "", 4)
	reg.Create("fresh-upload", "", 4)
	reg.Create("old-done", "", 1)
	reg.ClaimRestore("old-done")                 //nolint:errcheck // Setup
	reg.Complete("old-done", []string{"a.db"})   //nolint:errcheck // Setup
	clock.Advance(45 * time.Minute)              // stale-upload past idle, old-done not past grace
	reg.RecordProgress("fresh-upload", 1)        //nolint:errcheck // Refreshes activity
	expired := reg.Expired(grace, idle)

	if len(expired) != 1 || expired[0] != "stale-upload" {
		t.Fatalf("after 45m expected only stale-upload expired, got %v", expired)
	}

	clock.Advance(time.Hour) // old-done now past grace, fresh-upload past idle
	expired = reg.Expired(grace, idle)
	if len(expired) != 3 {
		t.Fatalf("after 105m expected all three expired, got %v", expired)
	}

	for _, id := range expired {
		reg.Remove(id)
	}
	if reg.Len() != 0 {
		t.Errorf("expected empty registry after removal, got %d records", reg.Len())
	}
}
