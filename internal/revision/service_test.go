package revision

import (
	"encoding/json"
	"testing"
)

func TestSnapshotRoundTrip(t *testing.T) {
	svc := New(t.TempDir())

	initial := Snapshot{
		Title:  "Welcome",
		Blocks: json.RawMessage(`[{"id":"blk-0","type":"title","text":"Welcome"}]`),
		Theme:  json.RawMessage(`{"accent":"#1a73e8"}`),
	}
	if err := svc.EnsureRepo("pg-1", initial, "Avery Editor"); err != nil {
		t.Fatalf("EnsureRepo failed: %v", err)
	}
	// Second call is a no-op.
	if err := svc.EnsureRepo("pg-1", initial, "Avery Editor"); err != nil {
		t.Fatalf("EnsureRepo second call failed: %v", err)
	}

	edited := initial
	edited.Title = "Welcome Guide"
	info, err := svc.Commit("pg-1", edited, "Avery Editor", "Edit page")
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if info.Hash == "" {
		t.Fatal("commit info missing hash")
	}

	history, err := svc.History("pg-1", 10)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}
	if history[0].Hash != info.Hash {
		t.Fatalf("newest commit = %s, want %s", history[0].Hash, info.Hash)
	}

	snap, err := svc.GetByHash("pg-1", info.Hash)
	if err != nil {
		t.Fatalf("GetByHash failed: %v", err)
	}
	if snap.Title != "Welcome Guide" {
		t.Fatalf("restored title = %q", snap.Title)
	}

	older, err := svc.GetByHash("pg-1", history[1].Hash)
	if err != nil {
		t.Fatalf("GetByHash for baseline failed: %v", err)
	}
	if older.Title != "Welcome" {
		t.Fatalf("baseline title = %q", older.Title)
	}
}

func TestHistoryLimit(t *testing.T) {
	svc := New(t.TempDir())
	snap := Snapshot{Title: "Welcome"}
	if err := svc.EnsureRepo("pg-1", snap, "editor"); err != nil {
		t.Fatalf("EnsureRepo failed: %v", err)
	}
	for i := 0; i < 4; i++ {
		if _, err := svc.Commit("pg-1", snap, "editor", "Edit page"); err != nil {
			t.Fatalf("Commit %d failed: %v", i, err)
		}
	}
	history, err := svc.History("pg-1", 3)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("history length = %d, want 3", len(history))
	}
}

func TestRemove(t *testing.T) {
	svc := New(t.TempDir())
	if err := svc.EnsureRepo("pg-1", Snapshot{Title: "Welcome"}, "editor"); err != nil {
		t.Fatalf("EnsureRepo failed: %v", err)
	}
	if err := svc.Remove("pg-1"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := svc.History("pg-1", 5); err == nil {
		t.Fatal("expected error reading history of a removed repo")
	}
}
