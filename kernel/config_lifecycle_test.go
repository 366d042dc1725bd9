package kernel

import (
	"testing"

	"advancedtimer/kernel/storage"
)

const validCandidateJSON = `{
	"schemaVersion": "2.0.0",
	"scanIntervalMs": 100,
	"wifiStaOnly": true,
	"cards": [
		{"ID": 1, "Type": 0, "Enabled": true, "Label": "di1", "DI": {}}
	]
}`

func newLifecycle() (*ConfigLifecycle, storage.Storage) {
	store := storage.NewMemory()
	cl := NewConfigLifecycle(store, nil, fullProfile())
	return cl, store
}

func TestConfigLifecycle_ValidateStagedNoSlotIsNotFound(t *testing.T) {
	cl, _ := newLifecycle()
	_, _, err := cl.ValidateStaged()
	if err == nil {
		t.Fatal("expected an error when the staged slot is empty")
	}
}

func TestConfigLifecycle_SaveAndGetActive(t *testing.T) {
	cl, store := newLifecycle()
	if err := store.WriteAtomic(storage.SlotActive, []byte("previously-committed")); err != nil {
		t.Fatal(err)
	}
	got, err := cl.GetActive()
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "previously-committed" {
		t.Fatalf("expected active bytes to round-trip, got %q", got)
	}
}

func TestConfigLifecycle_CommitPromotesStagedAndRotatesLKG(t *testing.T) {
	cl, store := newLifecycle()
	if err := store.WriteAtomic(storage.SlotActive, []byte("old-active")); err != nil {
		t.Fatal(err)
	}
	if err := cl.SaveStaged([]byte(validCandidateJSON)); err != nil {
		t.Fatal(err)
	}

	errs, err := cl.Commit()
	if err != nil {
		t.Fatalf("unexpected commit error: %v", err)
	}
	if len(errs) != 0 {
		t.Fatalf("expected a clean commit, got validation errors: %v", errs)
	}

	lkg, err := store.Read(storage.SlotLKG)
	if err != nil {
		t.Fatal(err)
	}
	if string(lkg) != "old-active" {
		t.Fatalf("expected the previous active to rotate into LKG, got %q", lkg)
	}

	active, err := store.Read(storage.SlotActive)
	if err != nil {
		t.Fatal(err)
	}
	if string(active) != validCandidateJSON {
		t.Fatal("expected the staged candidate to be promoted to active")
	}
}

func TestConfigLifecycle_CommitLeavesActiveUntouchedOnValidationFailure(t *testing.T) {
	cl, store := newLifecycle()
	if err := store.WriteAtomic(storage.SlotActive, []byte("old-active")); err != nil {
		t.Fatal(err)
	}
	badCandidate := `{"schemaVersion": "9.9.9", "scanIntervalMs": 100, "wifiStaOnly": true}`
	if err := cl.SaveStaged([]byte(badCandidate)); err != nil {
		t.Fatal(err)
	}

	errs, err := cl.Commit()
	if err != nil {
		t.Fatal(err)
	}
	if len(errs) == 0 {
		t.Fatal("expected validation errors for an unsupported schema version")
	}

	active, err := store.Read(storage.SlotActive)
	if err != nil {
		t.Fatal(err)
	}
	if string(active) != "old-active" {
		t.Fatal("a failed commit must leave the active slot untouched")
	}
}

func TestConfigLifecycle_RestoreRejectsStagedSlot(t *testing.T) {
	cl, _ := newLifecycle()
	if _, err := cl.Restore(storage.SlotStaged); err == nil {
		t.Fatal("expected Restore to reject anything other than LKG/FACTORY")
	}
}

func TestConfigLifecycle_RestoreFromLKG(t *testing.T) {
	cl, store := newLifecycle()
	if err := store.WriteAtomic(storage.SlotLKG, []byte(validCandidateJSON)); err != nil {
		t.Fatal(err)
	}
	errs, err := cl.Restore(storage.SlotLKG)
	if err != nil {
		t.Fatalf("unexpected restore error: %v", err)
	}
	if len(errs) != 0 {
		t.Fatalf("expected a clean restore, got %v", errs)
	}
	active, err := store.Read(storage.SlotActive)
	if err != nil {
		t.Fatal(err)
	}
	if string(active) != validCandidateJSON {
		t.Fatal("expected LKG contents to be promoted to active after restore")
	}
}
